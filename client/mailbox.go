package client

import "sync"

// Mailbox 单槽交接：接收协程只覆盖最新一帧，Tick 取走并清除待处理标记
type Mailbox struct {
	mu      sync.Mutex
	snap    Snapshot
	pending bool
}

// Put 覆盖槽位（不排队、不阻塞写方）
func (m *Mailbox) Put(s Snapshot) {
	m.mu.Lock()
	m.snap = s
	m.pending = true
	m.mu.Unlock()
}

// Take 取出最新一帧并清除标记；无数据时 ok 为 false
func (m *Mailbox) Take() (s Snapshot, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.pending {
		return Snapshot{}, false
	}
	m.pending = false
	return m.snap, true
}

// Pending 是否有未消费的数据
func (m *Mailbox) Pending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending
}

// Clear 丢弃槽位内容
func (m *Mailbox) Clear() {
	m.mu.Lock()
	m.snap = Snapshot{}
	m.pending = false
	m.mu.Unlock()
}
