package relay

import (
	"errors"
	"math/rand"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ErrRoomFull 房间已达连接上限
var ErrRoomFull = errors.New("room is full")

// RoomConfig 可热更新的房间配置
type RoomConfig struct {
	MaxPeers int
	DropProb float64 // 模拟丢包概率
}

// Room 转发房间：任一端发来的帧转发给房间内其他所有端
type Room struct {
	ID string

	mu      sync.RWMutex
	peers   map[PeerID]*ClientConn
	cfg     RoomConfig
	rng     *rand.Rand
	metrics *RoomMetrics
	log     *zap.SugaredLogger
}

// NewRoom 创建房间，初始化数据结构
func NewRoom(id string, cfg RoomConfig, log *zap.SugaredLogger) *Room {
	return &Room{
		ID:      id,
		peers:   make(map[PeerID]*ClientConn),
		cfg:     cfg,
		rng:     rand.New(rand.NewSource(rand.Int63())),
		metrics: &RoomMetrics{},
		log:     log,
	}
}

// Join 加入房间；满员返回 ErrRoomFull
func (r *Room) Join(c *ClientConn) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	// 已关闭但读协程尚未退出的连接不再占位
	for id, p := range r.peers {
		if p.closed() {
			delete(r.peers, id)
		}
	}
	if len(r.peers) >= r.cfg.MaxPeers {
		r.metrics.IncJoinsRejected()
		return ErrRoomFull
	}
	r.peers[c.ID] = c
	r.metrics.SetPeers(len(r.peers))
	return nil
}

// Leave 将连接移出房间并关闭
func (r *Room) Leave(id PeerID) {
	if c, ok := r.detach(id); ok {
		_ = c.Close()
	}
}

// detach 只移出房间、不关闭连接；返回连接是否仍在房间内
func (r *Room) detach(id PeerID) (*ClientConn, bool) {
	r.mu.Lock()
	c, ok := r.peers[id]
	delete(r.peers, id)
	r.metrics.SetPeers(len(r.peers))
	r.mu.Unlock()
	if ok {
		r.log.Infow("peer left", "room", r.ID, "peer", id)
	}
	return c, ok
}

// Forward 把一帧转发给除发送者外的所有连接（非阻塞）
func (r *Room) Forward(from PeerID, payload []byte) {
	r.metrics.IncFramesIn()

	r.mu.Lock()
	drop := r.cfg.DropProb > 0 && r.rng.Float64() < r.cfg.DropProb
	r.mu.Unlock()
	if drop {
		r.metrics.IncDropsSimulated()
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	for id, c := range r.peers {
		if id == from {
			continue
		}
		if c.Enqueue(payload) {
			r.metrics.IncForwarded()
		} else {
			r.metrics.IncChanFullDiscarded()
		}
	}
}

// Config 返回当前配置副本
func (r *Room) Config() RoomConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cfg
}

// SetConfig 热更新配置；已连接的超额连接不会被踢出
func (r *Room) SetConfig(cfg RoomConfig) {
	r.mu.Lock()
	r.cfg = cfg
	r.mu.Unlock()
}

// Peers 当前连接数
func (r *Room) Peers() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}

func (r *Room) Metrics() *RoomMetrics { return r.metrics }

// Close 关闭所有连接
func (r *Room) Close() error {
	r.mu.Lock()
	peers := r.peers
	r.peers = make(map[PeerID]*ClientConn)
	r.metrics.SetPeers(0)
	r.mu.Unlock()

	var err error
	for _, c := range peers {
		err = multierr.Append(err, c.Close())
	}
	return err
}
