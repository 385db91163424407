// Package sim 提供内存中的宿主世界实现，供演示宿主和测试使用
package sim

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"coopsync/client"
)

var (
	ErrNoActor = errors.New("actor does not exist")
	ErrNoModel = errors.New("model is not reserved")
	ErrNotLoad = errors.New("model is not loaded")
)

// Actor 世界中生成的角色
type Actor struct {
	Model    string
	Position mgl32.Vec3
	Heading  float32
	Health   int
}

// IntentCall 记录一次移动意图调用
type IntentCall struct {
	Actor  client.ActorHandle
	Kind   client.Intent
	Target mgl32.Vec3
}

// World 实现 client.World。非并发安全，与真实宿主一样只在 Tick 线程调用。
type World struct {
	// Local 本地角色状态，由宿主逐帧更新
	Local client.Snapshot
	// LoadDelay 模型需要被请求多少次后才算加载完成
	LoadDelay int
	// Faults 按操作名注入错误，如 "SetActorHealth"
	Faults map[string]error

	actors    map[client.ActorHandle]*Actor
	reserved  map[client.ModelHandle]string
	streamed  map[string]int // 模型名 → 已累计的流式加载次数
	nextActor client.ActorHandle
	nextModel client.ModelHandle

	Intents  []IntentCall
	Reclaims int
}

// NewWorld 创建空世界，本地角色位于原点、满血
func NewWorld() *World {
	return &World{
		Local:    client.Snapshot{Health: 100},
		Faults:   make(map[string]error),
		actors:   make(map[client.ActorHandle]*Actor),
		reserved: make(map[client.ModelHandle]string),
		streamed: make(map[string]int),
	}
}

var _ client.World = (*World)(nil)

func (w *World) fault(op string) error {
	if err, ok := w.Faults[op]; ok {
		return err
	}
	return nil
}

func (w *World) actor(a client.ActorHandle) (*Actor, error) {
	act, ok := w.actors[a]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNoActor, a)
	}
	return act, nil
}

func (w *World) LocalState() (client.Snapshot, error) {
	if err := w.fault("LocalState"); err != nil {
		return client.Snapshot{}, err
	}
	return w.Local, nil
}

// RequestModel 每次请求推进一次流式加载，预算只用于校验
func (w *World) RequestModel(name string, budget time.Duration) (client.ModelHandle, error) {
	if err := w.fault("RequestModel"); err != nil {
		return client.NoModel, err
	}
	if budget <= 0 {
		return client.NoModel, fmt.Errorf("request %s: budget must be positive", name)
	}
	w.streamed[name]++
	w.nextModel++
	w.reserved[w.nextModel] = name
	return w.nextModel, nil
}

func (w *World) ModelLoaded(m client.ModelHandle) bool {
	name, ok := w.reserved[m]
	return ok && w.streamed[name] > w.LoadDelay
}

func (w *World) ReleaseModel(m client.ModelHandle) error {
	if err := w.fault("ReleaseModel"); err != nil {
		return err
	}
	if _, ok := w.reserved[m]; !ok {
		return fmt.Errorf("%w: %d", ErrNoModel, m)
	}
	delete(w.reserved, m)
	return nil
}

func (w *World) SpawnActor(m client.ModelHandle, at mgl32.Vec3) (client.ActorHandle, error) {
	if err := w.fault("SpawnActor"); err != nil {
		return client.NoActor, err
	}
	if !w.ModelLoaded(m) {
		return client.NoActor, ErrNotLoad
	}
	w.nextActor++
	w.actors[w.nextActor] = &Actor{Model: w.reserved[m], Position: at, Health: 100}
	return w.nextActor, nil
}

func (w *World) ActorExists(a client.ActorHandle) bool {
	_, ok := w.actors[a]
	return ok
}

func (w *World) ActorPosition(a client.ActorHandle) (mgl32.Vec3, error) {
	act, err := w.actor(a)
	if err != nil {
		return mgl32.Vec3{}, err
	}
	return act.Position, nil
}

func (w *World) SetActorPosition(a client.ActorHandle, p mgl32.Vec3) error {
	if err := w.fault("SetActorPosition"); err != nil {
		return err
	}
	act, err := w.actor(a)
	if err != nil {
		return err
	}
	act.Position = p
	return nil
}

func (w *World) SetActorHeading(a client.ActorHandle, heading float32) error {
	if err := w.fault("SetActorHeading"); err != nil {
		return err
	}
	act, err := w.actor(a)
	if err != nil {
		return err
	}
	act.Heading = heading
	return nil
}

func (w *World) SetActorHealth(a client.ActorHandle, health int) error {
	if err := w.fault("SetActorHealth"); err != nil {
		return err
	}
	act, err := w.actor(a)
	if err != nil {
		return err
	}
	act.Health = health
	return nil
}

func (w *World) Jump(a client.ActorHandle) error {
	return w.intent("Jump", a, client.IntentJump, mgl32.Vec3{})
}

func (w *World) RunTo(a client.ActorHandle, target mgl32.Vec3) error {
	return w.intent("RunTo", a, client.IntentRun, target)
}

func (w *World) GoTo(a client.ActorHandle, target mgl32.Vec3) error {
	return w.intent("GoTo", a, client.IntentWalk, target)
}

func (w *World) intent(op string, a client.ActorHandle, kind client.Intent, target mgl32.Vec3) error {
	if err := w.fault(op); err != nil {
		return err
	}
	if _, err := w.actor(a); err != nil {
		return err
	}
	w.Intents = append(w.Intents, IntentCall{Actor: a, Kind: kind, Target: target})
	return nil
}

func (w *World) DeleteActor(a client.ActorHandle) error {
	if err := w.fault("DeleteActor"); err != nil {
		return err
	}
	if _, err := w.actor(a); err != nil {
		return err
	}
	delete(w.actors, a)
	return nil
}

// Reclaim 丢弃既无预留也无角色引用的模型流式数据
func (w *World) Reclaim() int {
	w.Reclaims++
	inUse := make(map[string]bool)
	for _, name := range w.reserved {
		inUse[name] = true
	}
	for _, act := range w.actors {
		inUse[act.Model] = true
	}
	released := 0
	for name := range w.streamed {
		if !inUse[name] {
			delete(w.streamed, name)
			released++
		}
	}
	return released
}

// Despawn 模拟宿主自行移除角色（例如场景切换）
func (w *World) Despawn(a client.ActorHandle) {
	delete(w.actors, a)
}

// Actor 返回角色副本
func (w *World) Actor(a client.ActorHandle) (Actor, bool) {
	act, ok := w.actors[a]
	if !ok {
		return Actor{}, false
	}
	return *act, true
}

// ActorCount 当前存活角色数
func (w *World) ActorCount() int { return len(w.actors) }

// ReservedModels 当前未释放的模型预留数
func (w *World) ReservedModels() int { return len(w.reserved) }

// Wander 让本地角色绕圆周移动：每 10 秒在走和跑之间切换，每 3 秒起跳一次
func (w *World) Wander(elapsed time.Duration) {
	const radius = 5.0
	t := elapsed.Seconds()
	angle := t * 0.5
	w.Local.X = float32(radius * math.Cos(angle))
	w.Local.Y = float32(radius * math.Sin(angle))
	w.Local.Heading = float32(math.Mod(angle*180/math.Pi+90, 360))

	sprint := int(t/10)%2 == 1
	w.Local.IsSprinting = sprint
	w.Local.IsWalking = !sprint
	w.Local.IsJumping = math.Mod(t, 3) < 0.2
}
