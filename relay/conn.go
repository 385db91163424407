package relay

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 5 * time.Second
	readWait   = 60 * time.Second
	pingPeriod = readWait * 9 / 10
	maxFrame   = 1 << 20 // 1MB
)

// PeerID 连接唯一标识
type PeerID string

// ClientConn 负责发送（写）数据到客户端的轻量包装
type ClientConn struct {
	ID   PeerID
	ws   *websocket.Conn
	send chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

func NewClientConn(ws *websocket.Conn) *ClientConn {
	return &ClientConn{
		ID:   PeerID(uuid.NewString()),
		ws:   ws,
		send: make(chan []byte, 64),
		done: make(chan struct{}),
	}
}

// Enqueue 将要发送的消息压入队列（非阻塞，满则丢弃），返回是否入队
func (c *ClientConn) Enqueue(b []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- b:
		return true
	default:
		// 为了实时性，丢弃（防止阻塞转发）
		return false
	}
}

// Close 关闭底层连接并结束写协程，可重复调用
func (c *ClientConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.ws.Close()
	})
	return err
}

func (c *ClientConn) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// reject 以策略违规关闭码拒绝连接
func (c *ClientConn) reject(reason string) {
	msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	_ = c.Close()
}

// writePump 独立协程，负责从 send 队列写出到 WS，并定期 ping
func (c *ClientConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer c.ws.Close()
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// readPump 读取客户端的文本帧并交给房间转发；退出时离开房间
func (c *ClientConn) readPump(room *Room) {
	defer c.Close()
	defer room.Leave(c.ID)
	c.ws.SetReadLimit(maxFrame)
	c.ws.SetReadDeadline(time.Now().Add(readWait))
	c.ws.SetPongHandler(func(string) error { c.ws.SetReadDeadline(time.Now().Add(readWait)); return nil })
	// 先离开房间再回应 close 帧，对端收到回应时位置已空出，可立即重连
	c.ws.SetCloseHandler(func(code int, text string) error {
		room.detach(c.ID)
		msg := []byte{}
		if code != websocket.CloseNoStatusReceived {
			msg = websocket.FormatCloseMessage(code, "")
		}
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		return nil
	})

	for {
		mt, payload, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		c.ws.SetReadDeadline(time.Now().Add(readWait))
		if mt != websocket.TextMessage {
			continue
		}
		room.Forward(c.ID, payload)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// 客户端不是浏览器，不校验来源
		return true
	},
}

// HandleWS WebSocket 接入：/ws?room=room-1
func (m *Manager) HandleWS(w http.ResponseWriter, r *http.Request) {
	roomID := roomParam(r)

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.log.Warnw("upgrade", "remote", r.RemoteAddr, "error", err)
		return
	}

	room := m.GetOrCreateRoom(roomID)
	client := NewClientConn(ws)
	if err := room.Join(client); err != nil {
		m.log.Infow("join rejected", "room", roomID, "peer", client.ID, "error", err)
		client.reject(err.Error())
		return
	}
	m.log.Infow("peer joined", "room", roomID, "peer", client.ID, "remote", r.RemoteAddr)

	go client.writePump()
	go client.readPump(room)
}
