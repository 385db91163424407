package client

import (
	"time"

	"github.com/go-gl/mathgl/mgl32"
)

// ActorHandle 宿主角色句柄，0 表示无
type ActorHandle uint32

// ModelHandle 宿主模型预留句柄，0 表示无
type ModelHandle uint32

const (
	NoActor ActorHandle = 0
	NoModel ModelHandle = 0
)

// World 宿主提供的角色/世界接口。所有方法只在 Tick 线程调用。
type World interface {
	// LocalState 读取本地角色当前状态
	LocalState() (Snapshot, error)

	// RequestModel 以加载预算请求模型（非阻塞），返回预留句柄
	RequestModel(name string, budget time.Duration) (ModelHandle, error)
	ModelLoaded(m ModelHandle) bool
	ReleaseModel(m ModelHandle) error

	SpawnActor(m ModelHandle, at mgl32.Vec3) (ActorHandle, error)
	ActorExists(a ActorHandle) bool
	ActorPosition(a ActorHandle) (mgl32.Vec3, error)
	SetActorPosition(a ActorHandle, p mgl32.Vec3) error
	SetActorHeading(a ActorHandle, heading float32) error
	SetActorHealth(a ActorHandle, health int) error
	Jump(a ActorHandle) error
	RunTo(a ActorHandle, target mgl32.Vec3) error
	GoTo(a ActorHandle, target mgl32.Vec3) error
	DeleteActor(a ActorHandle) error

	// Reclaim 释放不再被引用的临时资源，返回释放数量
	Reclaim() int
}
