package relay

import (
	"sync/atomic"
)

// RoomMetrics 记录房间运行期的关键指标（用于监控与调试）
type RoomMetrics struct {
	Peers             int64 // 当前连接数
	JoinsRejected     int64 // 因满员被拒绝的连接数
	FramesIn          int64 // 收到的帧数
	Forwarded         int64 // 成功入队转发的帧数（按接收端计）
	DropsSimulated    int64 // 因模拟丢包被丢弃的帧数
	ChanFullDiscarded int64 // 因发送队列满被丢弃的帧数
}

func (m *RoomMetrics) SetPeers(n int)          { atomic.StoreInt64(&m.Peers, int64(n)) }
func (m *RoomMetrics) IncJoinsRejected()       { atomic.AddInt64(&m.JoinsRejected, 1) }
func (m *RoomMetrics) IncFramesIn()            { atomic.AddInt64(&m.FramesIn, 1) }
func (m *RoomMetrics) IncForwarded()           { atomic.AddInt64(&m.Forwarded, 1) }
func (m *RoomMetrics) IncDropsSimulated()      { atomic.AddInt64(&m.DropsSimulated, 1) }
func (m *RoomMetrics) IncChanFullDiscarded()   { atomic.AddInt64(&m.ChanFullDiscarded, 1) }

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *RoomMetrics) Snapshot() map[string]any {
	return map[string]any{
		"peers":               atomic.LoadInt64(&m.Peers),
		"joins_rejected":      atomic.LoadInt64(&m.JoinsRejected),
		"frames_in":           atomic.LoadInt64(&m.FramesIn),
		"forwarded":           atomic.LoadInt64(&m.Forwarded),
		"drops_simulated":     atomic.LoadInt64(&m.DropsSimulated),
		"chan_full_discarded": atomic.LoadInt64(&m.ChanFullDiscarded),
	}
}
