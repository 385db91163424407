package client

import "sync/atomic"

// Metrics 同步客户端运行期指标
type Metrics struct {
	SessionsOpened  int64
	FramesSent      int64
	FramesReceived  int64
	SendsDropped    int64 // 发送队列满时丢弃的旧帧
	TransportErrors int64
	DecodeErrors    int64
	ApplyErrors     int64
	ReclaimPasses   int64
}

func (m *Metrics) IncSessionsOpened()  { atomic.AddInt64(&m.SessionsOpened, 1) }
func (m *Metrics) IncSent()            { atomic.AddInt64(&m.FramesSent, 1) }
func (m *Metrics) IncReceived()        { atomic.AddInt64(&m.FramesReceived, 1) }
func (m *Metrics) IncSendsDropped()    { atomic.AddInt64(&m.SendsDropped, 1) }
func (m *Metrics) IncTransportErrors() { atomic.AddInt64(&m.TransportErrors, 1) }
func (m *Metrics) IncDecodeErrors()    { atomic.AddInt64(&m.DecodeErrors, 1) }
func (m *Metrics) IncApplyErrors()     { atomic.AddInt64(&m.ApplyErrors, 1) }
func (m *Metrics) IncReclaimPasses()   { atomic.AddInt64(&m.ReclaimPasses, 1) }

// Snapshot 返回只读副本，便于日志输出
func (m *Metrics) Snapshot() map[string]any {
	return map[string]any{
		"sessions_opened":  atomic.LoadInt64(&m.SessionsOpened),
		"frames_sent":      atomic.LoadInt64(&m.FramesSent),
		"frames_received":  atomic.LoadInt64(&m.FramesReceived),
		"sends_dropped":    atomic.LoadInt64(&m.SendsDropped),
		"transport_errors": atomic.LoadInt64(&m.TransportErrors),
		"decode_errors":    atomic.LoadInt64(&m.DecodeErrors),
		"apply_errors":     atomic.LoadInt64(&m.ApplyErrors),
		"reclaim_passes":   atomic.LoadInt64(&m.ReclaimPasses),
	}
}
