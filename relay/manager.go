package relay

import (
	"net/http"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"coopsync/config"
	"coopsync/logging"
)

// DefaultRoom 未指定 room 参数时使用的房间
const DefaultRoom = "room-1"

// Manager 管理多个房间的生命周期
type Manager struct {
	log *zap.SugaredLogger

	mu       sync.RWMutex
	defaults RoomConfig
	rooms    map[string]*Room
}

// NewManager 创建房间管理器，新建房间使用 cfg 中的默认配置
func NewManager(cfg config.Relay, log *zap.SugaredLogger) *Manager {
	if log == nil {
		log = logging.Nop()
	}
	return &Manager{
		log:      log,
		defaults: RoomConfig{MaxPeers: cfg.MaxPeers, DropProb: cfg.DropProb},
		rooms:    make(map[string]*Room),
	}
}

// GetOrCreateRoom 获取或创建房间
func (m *Manager) GetOrCreateRoom(id string) *Room {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[id]
	if !ok {
		r = NewRoom(id, m.defaults, m.log)
		m.rooms[id] = r
		m.log.Infow("room created", "room", id, "maxPeers", m.defaults.MaxPeers, "dropProb", m.defaults.DropProb)
	}
	return r
}

// Routes 返回中继服务的全部 HTTP 路由
func (m *Manager) Routes() http.Handler {
	mux := http.NewServeMux()
	// 客户端默认直接连根路径
	mux.HandleFunc("/", m.HandleWS)
	mux.HandleFunc("/ws", m.HandleWS)
	mux.HandleFunc("/admin/config", m.HandleAdminConfig)
	mux.HandleFunc("/metrics", m.HandleMetrics)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// Close 关闭所有房间
func (m *Manager) Close() error {
	m.mu.Lock()
	rooms := m.rooms
	m.rooms = make(map[string]*Room)
	m.mu.Unlock()

	var err error
	for _, r := range rooms {
		err = multierr.Append(err, r.Close())
	}
	return err
}
