package relay

import (
	"encoding/json"
	"net/http"
)

func roomParam(r *http.Request) string {
	if id := r.URL.Query().Get("room"); id != "" {
		return id
	}
	return DefaultRoom
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// HandleAdminConfig 提供房间配置的读取与更新
// GET /admin/config?room=room-1  返回当前配置
// POST /admin/config?room=room-1 以 JSON 载荷更新部分字段
func (m *Manager) HandleAdminConfig(w http.ResponseWriter, r *http.Request) {
	roomID := roomParam(r)
	room := m.GetOrCreateRoom(roomID)

	type cfg struct {
		MaxPeers *int     `json:"maxPeers,omitempty"`
		DropProb *float64 `json:"dropProb,omitempty"`
	}

	switch r.Method {
	case http.MethodGet:
		cur := room.Config()
		writeJSON(w, cfg{MaxPeers: &cur.MaxPeers, DropProb: &cur.DropProb})
	case http.MethodPost:
		var body cfg
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		next := room.Config()
		if body.MaxPeers != nil {
			next.MaxPeers = *body.MaxPeers
		}
		if body.DropProb != nil {
			next.DropProb = *body.DropProb
		}
		if next.MaxPeers < 2 || next.DropProb < 0 || next.DropProb >= 1 {
			http.Error(w, "maxPeers must be >= 2 and dropProb in [0,1)", http.StatusBadRequest)
			return
		}
		room.SetConfig(next)
		writeJSON(w, map[string]any{"ok": true})
		m.log.Infow("config updated", "room", roomID, "maxPeers", next.MaxPeers, "dropProb", next.DropProb)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleMetrics 输出指定房间的运行指标
// GET /metrics?room=room-1
func (m *Manager) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	roomID := roomParam(r)
	room := m.GetOrCreateRoom(roomID)
	writeJSON(w, map[string]any{
		"room":    roomID,
		"metrics": room.Metrics().Snapshot(),
	})
}
