package client_test

import (
	"errors"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coopsync/client"
	"coopsync/sim"
)

func TestSelectIntent(t *testing.T) {
	tests := []struct {
		name string
		snap client.Snapshot
		want client.Intent
	}{
		{name: "jump beats sprint", snap: client.Snapshot{IsJumping: true, IsSprinting: true}, want: client.IntentJump},
		{name: "jump beats everything", snap: client.Snapshot{IsJumping: true, IsSprinting: true, IsWalking: true}, want: client.IntentJump},
		{name: "sprint beats walk", snap: client.Snapshot{IsSprinting: true, IsWalking: true}, want: client.IntentRun},
		{name: "walk", snap: client.Snapshot{IsWalking: true}, want: client.IntentWalk},
		{name: "idle", snap: client.Snapshot{}, want: client.IntentNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, client.SelectIntent(tt.snap))
		})
	}
}

// spawnedProxy 返回一个已在原点生成代理角色的 Proxy
func spawnedProxy(t *testing.T) (*client.Proxy, *sim.World, client.ActorHandle) {
	t.Helper()
	w := sim.NewWorld()
	p := client.NewProxy(w, "CS_Cassidy", time.Second)
	require.NoError(t, p.Apply(client.Snapshot{Health: 100}))
	a, ok := p.Actor()
	require.True(t, ok)
	require.Empty(t, w.Intents)
	return p, w, a
}

func TestProxyIntentAboveThreshold(t *testing.T) {
	target := mgl32.Vec3{3, 4, 0}
	tests := []struct {
		name  string
		flags client.Snapshot
		want  []sim.IntentCall
	}{
		{name: "jump and sprint", flags: client.Snapshot{IsJumping: true, IsSprinting: true}, want: []sim.IntentCall{{Actor: 1, Kind: client.IntentJump}}},
		{name: "sprint and walk", flags: client.Snapshot{IsSprinting: true, IsWalking: true}, want: []sim.IntentCall{{Actor: 1, Kind: client.IntentRun, Target: target}}},
		{name: "walk", flags: client.Snapshot{IsWalking: true}, want: []sim.IntentCall{{Actor: 1, Kind: client.IntentWalk, Target: target}}},
		{name: "no flags", flags: client.Snapshot{}, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, w, a := spawnedProxy(t)
			snap := tt.flags.WithPosition(target)
			snap.Heading, snap.Health = 270, 64

			require.NoError(t, p.Apply(snap))
			assert.Equal(t, tt.want, w.Intents)

			act, _ := w.Actor(a)
			assert.Equal(t, target, act.Position, "position is always applied")
			assert.Equal(t, float32(270), act.Heading)
			assert.Equal(t, 64, act.Health)
		})
	}
}

func TestProxyNoIntentWithinThreshold(t *testing.T) {
	p, w, a := spawnedProxy(t)

	snap := client.Snapshot{X: 0.05, Y: 0.05, Health: 90, IsJumping: true, IsSprinting: true, IsWalking: true}
	require.NoError(t, p.Apply(snap))

	assert.Empty(t, w.Intents)
	act, _ := w.Actor(a)
	assert.Equal(t, snap.Position(), act.Position)
	assert.Equal(t, 90, act.Health)
}

func TestProxySpawnTickOnlySpawns(t *testing.T) {
	w := sim.NewWorld()
	w.Local = client.Snapshot{X: 2, Y: 2, Health: 100}
	p := client.NewProxy(w, "CS_Cassidy", time.Second)

	require.NoError(t, p.Apply(client.Snapshot{X: 10, Y: 2, Health: 55, IsSprinting: true}))

	a, ok := p.Actor()
	require.True(t, ok)
	act, _ := w.Actor(a)
	assert.Equal(t, "CS_Cassidy", act.Model)
	assert.Equal(t, mgl32.Vec3{2, 2, 0}, act.Position, "spawned at the local actor")
	assert.Equal(t, 100, act.Health, "snapshot is not applied on the spawn tick")
	assert.Empty(t, w.Intents)

	// 下一帧才开始应用快照
	require.NoError(t, p.Apply(client.Snapshot{X: 12, Y: 2, Health: 55, IsSprinting: true}))
	act, _ = w.Actor(a)
	assert.Equal(t, mgl32.Vec3{12, 2, 0}, act.Position)
	assert.Equal(t, 55, act.Health)
	assert.Equal(t, []sim.IntentCall{{Actor: a, Kind: client.IntentRun, Target: mgl32.Vec3{12, 2, 0}}}, w.Intents)
}

func TestProxyWaitsForModelLoad(t *testing.T) {
	w := sim.NewWorld()
	w.LoadDelay = 1
	p := client.NewProxy(w, "CS_Cassidy", time.Second)

	require.NoError(t, p.Apply(client.Snapshot{X: 5, IsWalking: true}))
	_, ok := p.Actor()
	assert.False(t, ok, "model still streaming")
	assert.Equal(t, 0, w.ActorCount())
	assert.Equal(t, 1, w.ReservedModels())

	require.NoError(t, p.Apply(client.Snapshot{X: 5, IsWalking: true}))
	_, ok = p.Actor()
	assert.True(t, ok)
	assert.Equal(t, 1, w.ReservedModels(), "previous reservation is released before re-requesting")
}

func TestProxyRespawnsWhenActorVanishes(t *testing.T) {
	p, w, first := spawnedProxy(t)
	w.Despawn(first)

	require.NoError(t, p.Apply(client.Snapshot{Health: 100}))
	second, ok := p.Actor()
	require.True(t, ok)
	assert.NotEqual(t, first, second)
	assert.Equal(t, 1, w.ActorCount())
}

func TestProxyApplyErrorLeavesProxyUsable(t *testing.T) {
	p, w, a := spawnedProxy(t)
	boom := errors.New("native call failed")
	w.Faults["SetActorHealth"] = boom

	err := p.Apply(client.Snapshot{X: 10, Health: 1, IsWalking: true})
	var ae *client.ApplyError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, "set health", ae.Op)
	assert.ErrorIs(t, err, boom)

	delete(w.Faults, "SetActorHealth")
	require.NoError(t, p.Apply(client.Snapshot{X: 20, Health: 1, IsWalking: true}))
	got, _ := p.Actor()
	assert.Equal(t, a, got)
	act, _ := w.Actor(a)
	assert.Equal(t, 1, act.Health)
}

func TestProxyDestroy(t *testing.T) {
	p, w, _ := spawnedProxy(t)

	require.NoError(t, p.Destroy())
	_, ok := p.Actor()
	assert.False(t, ok)
	assert.Equal(t, 0, w.ActorCount())
	assert.Equal(t, 0, w.ReservedModels())

	assert.NoError(t, p.Destroy())
}

func TestProxyDestroyCollectsErrors(t *testing.T) {
	p, w, _ := spawnedProxy(t)
	w.Faults["DeleteActor"] = errors.New("delete failed")
	w.Faults["ReleaseModel"] = errors.New("release failed")

	err := p.Destroy()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delete failed")
	assert.Contains(t, err.Error(), "release failed")
	_, ok := p.Actor()
	assert.False(t, ok, "handle is dropped even when the host call fails")
}
