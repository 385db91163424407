package client

import (
	"time"

	"go.uber.org/multierr"
)

// ProximityThreshold 超过该距离才下发移动意图
const ProximityThreshold = 0.1

// Intent 代理角色的移动意图
type Intent int

const (
	IntentNone Intent = iota
	IntentJump
	IntentRun
	IntentWalk
)

func (i Intent) String() string {
	switch i {
	case IntentJump:
		return "jump"
	case IntentRun:
		return "run"
	case IntentWalk:
		return "walk"
	}
	return "none"
}

// SelectIntent 优先级：跳 > 跑 > 走；都没有则不动
func SelectIntent(s Snapshot) Intent {
	switch {
	case s.IsJumping:
		return IntentJump
	case s.IsSprinting:
		return IntentRun
	case s.IsWalking:
		return IntentWalk
	}
	return IntentNone
}

// Proxy 独占远端代理角色句柄及其模型预留，只在 Tick 线程使用
type Proxy struct {
	world  World
	model  string
	budget time.Duration

	actor    ActorHandle
	reserved ModelHandle
}

// NewProxy 创建代理角色驱动器，角色在第一次 Apply 时才生成
func NewProxy(world World, model string, budget time.Duration) *Proxy {
	return &Proxy{world: world, model: model, budget: budget}
}

// Actor 当前代理角色句柄
func (p *Proxy) Actor() (ActorHandle, bool) {
	return p.actor, p.actor != NoActor
}

// Apply 把一帧快照应用到代理角色。需要生成代理角色时本帧只负责生成（或等待模型加载），
// 快照从下一帧开始生效。
func (p *Proxy) Apply(snap Snapshot) error {
	if p.actor == NoActor || !p.world.ActorExists(p.actor) {
		p.actor = NoActor
		return p.spawn()
	}

	target := snap.Position()
	// 先读当前位置，距离按写入前计算
	current, err := p.world.ActorPosition(p.actor)
	if err != nil {
		return &ApplyError{Op: "position", Err: err}
	}
	if err := p.world.SetActorPosition(p.actor, target); err != nil {
		return &ApplyError{Op: "set position", Err: err}
	}
	if err := p.world.SetActorHeading(p.actor, snap.Heading); err != nil {
		return &ApplyError{Op: "set heading", Err: err}
	}
	if err := p.world.SetActorHealth(p.actor, snap.Health); err != nil {
		return &ApplyError{Op: "set health", Err: err}
	}

	if current.Sub(target).Len() <= ProximityThreshold {
		return nil
	}
	switch SelectIntent(snap) {
	case IntentJump:
		err = p.world.Jump(p.actor)
	case IntentRun:
		err = p.world.RunTo(p.actor, target)
	case IntentWalk:
		err = p.world.GoTo(p.actor, target)
	}
	if err != nil {
		return &ApplyError{Op: "intent", Err: err}
	}
	return nil
}

// spawn 重新预留模型；加载完成则在本地角色位置生成代理角色
func (p *Proxy) spawn() error {
	if p.reserved != NoModel {
		err := p.world.ReleaseModel(p.reserved)
		p.reserved = NoModel
		if err != nil {
			return &ApplyError{Op: "release model", Err: err}
		}
	}

	m, err := p.world.RequestModel(p.model, p.budget)
	if err != nil {
		return &ApplyError{Op: "request model", Err: err}
	}
	p.reserved = m
	if !p.world.ModelLoaded(m) {
		return nil
	}

	local, err := p.world.LocalState()
	if err != nil {
		return &ApplyError{Op: "local state", Err: err}
	}
	a, err := p.world.SpawnActor(m, local.Position())
	if err != nil {
		return &ApplyError{Op: "spawn", Err: err}
	}
	p.actor = a
	return nil
}

// Destroy 删除代理角色并释放模型预留。可重复调用。
func (p *Proxy) Destroy() error {
	var err error
	if p.actor != NoActor && p.world.ActorExists(p.actor) {
		if derr := p.world.DeleteActor(p.actor); derr != nil {
			err = multierr.Append(err, &ApplyError{Op: "delete", Err: derr})
		}
	}
	p.actor = NoActor

	if p.reserved != NoModel {
		if rerr := p.world.ReleaseModel(p.reserved); rerr != nil {
			err = multierr.Append(err, &ApplyError{Op: "release model", Err: rerr})
		}
		p.reserved = NoModel
	}
	return err
}
