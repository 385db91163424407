package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// Peer 测试用对端：接受 websocket 连接，记录收到的帧，并可向客户端推送帧
type Peer struct {
	URL string

	srv      *httptest.Server
	conns    chan *websocket.Conn
	frames   chan []byte
	accepted atomic.Int32
	ended    atomic.Int32

	mu   sync.Mutex
	live []*websocket.Conn
}

// StartPeer 启动对端，测试结束时自动关闭
func StartPeer(t *testing.T) *Peer {
	t.Helper()
	p := &Peer{
		conns:  make(chan *websocket.Conn, 8),
		frames: make(chan []byte, 1024),
	}
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	p.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		p.mu.Lock()
		p.live = append(p.live, conn)
		p.mu.Unlock()
		p.accepted.Add(1)
		p.conns <- conn

		defer p.ended.Add(1)
		for {
			_, b, err := conn.ReadMessage()
			if err != nil {
				return
			}
			select {
			case p.frames <- b:
			default:
			}
		}
	}))
	p.URL = "ws" + strings.TrimPrefix(p.srv.URL, "http")

	t.Cleanup(func() {
		p.mu.Lock()
		for _, c := range p.live {
			c.Close()
		}
		p.mu.Unlock()
		p.srv.Close()
	})
	return p
}

// Accept 等待下一条客户端连接
func (p *Peer) Accept(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case c := <-p.conns:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("no client connected")
		return nil
	}
}

// Push 以文本帧推送任意 JSON 值
func (p *Peer) Push(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	p.PushRaw(t, conn, b)
}

// PushRaw 推送原始文本帧
func (p *Peer) PushRaw(t *testing.T, conn *websocket.Conn, b []byte) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, b))
}

// Frame 等待客户端发来的下一帧
func (p *Peer) Frame(t *testing.T) []byte {
	t.Helper()
	select {
	case b := <-p.frames:
		return b
	case <-time.After(2 * time.Second):
		t.Fatal("no frame from client")
		return nil
	}
}

// Accepted 已接受的连接数
func (p *Peer) Accepted() int { return int(p.accepted.Load()) }

// Ended 已结束（读失败）的连接数
func (p *Peer) Ended() int { return int(p.ended.Load()) }
