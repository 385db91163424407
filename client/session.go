package client

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// closeGrace 关闭时发送 close 帧及等待对端回应的最长时间
	closeGrace            = 250 * time.Millisecond
	defaultConnectTimeout = 5 * time.Second
	defaultWriteTimeout   = 2 * time.Second
)

// SessionOptions 会话参数
type SessionOptions struct {
	ConnectTimeout time.Duration
	WriteTimeout   time.Duration
	SendQueue      int
}

// Session 一条活动连接：socket、取消范围、接收协程与写协程
type Session struct {
	id       uuid.UUID
	endpoint string
	conn     *websocket.Conn
	ctx      context.Context
	cancel   context.CancelFunc
	mailbox  *Mailbox
	metrics  *Metrics

	send         chan []byte
	writeTimeout time.Duration

	wg        sync.WaitGroup
	done      chan struct{} // 接收协程退出时关闭
	closeOnce sync.Once
	closing   atomic.Bool

	mu  sync.Mutex
	err error // 导致会话结束的第一个错误
}

// Dial 建立连接并启动接收/写协程。失败时不残留任何资源，返回 *ConnectionError。
func Dial(ctx context.Context, endpoint string, mailbox *Mailbox, metrics *Metrics, opts SessionOptions) (*Session, error) {
	timeout := opts.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	dialCtx, cancelDial := context.WithTimeout(ctx, timeout)
	defer cancelDial()

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: timeout,
	}
	conn, resp, err := dialer.DialContext(dialCtx, endpoint, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, &ConnectionError{Endpoint: endpoint, Err: err}
	}

	if metrics == nil {
		metrics = &Metrics{}
	}
	queue := opts.SendQueue
	if queue <= 0 {
		queue = 1
	}
	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}

	sctx, cancel := context.WithCancel(ctx)
	s := &Session{
		id:           uuid.New(),
		endpoint:     endpoint,
		conn:         conn,
		ctx:          sctx,
		cancel:       cancel,
		mailbox:      mailbox,
		metrics:      metrics,
		send:         make(chan []byte, queue),
		writeTimeout: writeTimeout,
		done:         make(chan struct{}),
	}
	// 取消即关闭 socket，阻塞中的 ReadMessage 随之返回
	context.AfterFunc(sctx, func() { _ = conn.Close() })

	s.wg.Add(2)
	go s.receiveLoop()
	go s.writePump()
	return s, nil
}

func (s *Session) ID() uuid.UUID    { return s.id }
func (s *Session) Endpoint() string { return s.endpoint }

// Done 接收协程退出后关闭
func (s *Session) Done() <-chan struct{} { return s.done }

// Err 返回导致会话结束的错误；主动关闭时为 nil
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Alive 会话未被取消
func (s *Session) Alive() bool {
	return s.ctx.Err() == nil
}

// Send 编码并放入发送队列后立即返回；队列满时丢弃最旧的一帧
func (s *Session) Send(snap Snapshot) error {
	if !s.Alive() {
		return ErrNotConnected
	}
	b, err := Encode(snap)
	if err != nil {
		return err
	}
	select {
	case s.send <- b:
		return nil
	default:
	}
	select {
	case <-s.send:
		s.metrics.IncSendsDropped()
	default:
	}
	select {
	case s.send <- b:
	default:
		s.metrics.IncSendsDropped()
	}
	return nil
}

// Close 发送 close 帧并等待对端回应（最多 closeGrace），然后取消会话、关闭 socket，
// 等待两个协程退出。可重复调用。
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.closing.Store(true)
		if s.Alive() {
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			if err := s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGrace)); err == nil {
				// 等对端回应 close 帧，对端回应前已释放本连接占用的位置
				select {
				case <-s.done:
				case <-time.After(closeGrace):
				}
			}
		}
		s.cancel()
		s.wg.Wait()
	})
}

// receiveLoop 读取文本帧并覆盖 Mailbox；任何读/解析错误都结束循环
func (s *Session) receiveLoop() {
	defer s.wg.Done()
	defer close(s.done)

	for {
		mt, payload, err := s.conn.ReadMessage()
		if err != nil {
			if !s.closedLocally() {
				s.metrics.IncTransportErrors()
				s.fail(&TransportError{Op: "read", Err: err})
			}
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		snap, err := Decode(payload)
		if err != nil {
			s.metrics.IncDecodeErrors()
			s.fail(err)
			return
		}
		s.metrics.IncReceived()
		s.mailbox.Put(snap)
	}
}

// writePump 独立协程，负责从 send 队列写出到 WS
func (s *Session) writePump() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case msg := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				if !s.closedLocally() {
					s.metrics.IncTransportErrors()
					s.fail(&TransportError{Op: "write", Err: err})
				}
				return
			}
			s.metrics.IncSent()
		}
	}
}

// closedLocally 本端已开始关闭，此后的读写错误不算失败
func (s *Session) closedLocally() bool {
	return s.closing.Load() || s.ctx.Err() != nil
}

// fail 记录第一个错误并取消会话
func (s *Session) fail(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
	s.cancel()
}

// IsClosedByPeer 错误是否为对端正常关闭
func IsClosedByPeer(err error) bool {
	var ce *websocket.CloseError
	if !errors.As(err, &ce) {
		return false
	}
	return ce.Code == websocket.CloseNormalClosure || ce.Code == websocket.CloseGoingAway
}
