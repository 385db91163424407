package client

import (
	"context"
	"time"

	"go.uber.org/zap"

	"coopsync/config"
	"coopsync/logging"
)

// State 同步功能开关状态
type State int

const (
	Disabled State = iota
	Enabled
)

func (s State) String() string {
	if s == Enabled {
		return "Enabled"
	}
	return "Disabled"
}

// ConnState 连接状态
type ConnState int

const (
	Disconnected ConnState = iota
	Connecting
	Connected
	Closing
)

func (c ConnState) String() string {
	switch c {
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	case Closing:
		return "Closing"
	}
	return "Disconnected"
}

// Option 控制器可选项
type Option func(*Controller)

// WithLogger 指定日志
func WithLogger(log *zap.SugaredLogger) Option {
	return func(c *Controller) {
		if log != nil {
			c.log = log
		}
	}
}

// WithMetrics 共享外部指标对象
func WithMetrics(m *Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// Controller 顶层状态：响应开关，驱动每帧的回收、消费与发送。
// 除 Session 内部两个协程外，所有方法都只在宿主 Tick 线程调用。
type Controller struct {
	cfg     config.Client
	world   World
	log     *zap.SugaredLogger
	metrics *Metrics

	state       State
	conn        ConnState
	session     *Session
	mailbox     *Mailbox
	proxy       *Proxy
	lastReclaim time.Time
}

// NewController 创建处于 Disabled 状态的控制器
func NewController(cfg config.Client, world World, opts ...Option) *Controller {
	c := &Controller{
		cfg:     cfg,
		world:   world,
		log:     logging.Nop(),
		metrics: &Metrics{},
		mailbox: &Mailbox{},
		proxy:   NewProxy(world, cfg.Model, cfg.ModelBudget),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) State() State         { return c.state }
func (c *Controller) ConnState() ConnState { return c.conn }
func (c *Controller) Metrics() *Metrics    { return c.metrics }

// Session 当前会话，未连接时为 nil
func (c *Controller) Session() *Session { return c.session }

// ProxyActor 当前代理角色句柄
func (c *Controller) ProxyActor() (ActorHandle, bool) { return c.proxy.Actor() }

// HasPending Mailbox 中是否有未消费的快照
func (c *Controller) HasPending() bool { return c.mailbox.Pending() }

// Toggle 处理一次开关按键
func (c *Controller) Toggle(ctx context.Context) error {
	if c.state == Enabled {
		return c.Disable()
	}
	return c.Enable(ctx)
}

// Enable 建立新会话。已有会话会先被完整释放，因此重复调用也只保留一个会话。
// 连接失败时回到 Disabled 并返回 *ConnectionError，不做重试。
func (c *Controller) Enable(ctx context.Context) error {
	if err := c.Teardown(); err != nil {
		c.log.Warnw("teardown before connect", "error", err)
	}

	c.state = Enabled
	c.conn = Connecting
	s, err := Dial(ctx, c.cfg.Endpoint, c.mailbox, c.metrics, SessionOptions{
		ConnectTimeout: c.cfg.ConnectTimeout,
		WriteTimeout:   c.cfg.WriteTimeout,
		SendQueue:      c.cfg.SendQueue,
	})
	if err != nil {
		c.log.Warnw("connect failed", "endpoint", c.cfg.Endpoint, "error", err)
		c.state = Disabled
		if terr := c.Teardown(); terr != nil {
			c.log.Warnw("teardown after failed connect", "error", terr)
		}
		return err
	}

	c.session = s
	c.conn = Connected
	c.metrics.IncSessionsOpened()
	c.log.Infow("sync enabled", "session", s.ID(), "endpoint", c.cfg.Endpoint)
	return nil
}

// Disable 无条件完整释放并回到 Disabled
func (c *Controller) Disable() error {
	c.state = Disabled
	err := c.Teardown()
	if err != nil {
		c.log.Warnw("teardown", "error", err)
	}
	c.log.Info("sync disabled")
	return err
}

// Close 宿主中止脚本时调用
func (c *Controller) Close() error {
	return c.Disable()
}

// Teardown 取消会话、关闭 socket、删除代理角色、释放模型、清空 Mailbox。
// 无活动资源时什么也不做，可重复调用；开关状态由调用方决定。
func (c *Controller) Teardown() error {
	if c.session != nil {
		c.conn = Closing
		c.session.Close()
		c.session = nil
	}
	err := c.proxy.Destroy()
	c.mailbox.Clear()
	c.conn = Disconnected
	c.lastReclaim = time.Time{}
	return err
}

// Tick 每帧调用一次：会话存活检查 → 周期回收 → 消费 Mailbox → 发送本地快照
func (c *Controller) Tick(now time.Time) {
	if c.state != Enabled {
		return
	}
	if c.sessionEnded() {
		return
	}
	c.reclaimIfDue(now)
	c.applyPending()
	c.sendLocal()
}

// sessionEnded 接收协程已退出时做完整释放并关闭开关，不自动重连
func (c *Controller) sessionEnded() bool {
	if c.session == nil {
		c.state = Disabled
		return true
	}
	select {
	case <-c.session.Done():
	default:
		return false
	}

	err := c.session.Err()
	if IsClosedByPeer(err) {
		c.log.Infow("session closed by peer", "session", c.session.ID())
	} else {
		c.log.Warnw("session ended", "session", c.session.ID(), "error", err)
	}
	c.state = Disabled
	if terr := c.Teardown(); terr != nil {
		c.log.Warnw("teardown after session end", "error", terr)
	}
	return true
}

// reclaimIfDue 周期性轻量回收，不触碰连接与代理角色
func (c *Controller) reclaimIfDue(now time.Time) {
	if c.lastReclaim.IsZero() {
		c.lastReclaim = now
		return
	}
	if now.Sub(c.lastReclaim) < c.cfg.ReclaimInterval {
		return
	}
	c.lastReclaim = now
	released := c.world.Reclaim()
	c.metrics.IncReclaimPasses()
	c.log.Debugw("reclamation pass", "released", released)
}

func (c *Controller) applyPending() {
	snap, ok := c.mailbox.Take()
	if !ok {
		return
	}
	if err := c.proxy.Apply(snap); err != nil {
		c.metrics.IncApplyErrors()
		c.log.Debugw("apply snapshot", "error", err)
	}
}

// sendLocal 读取本地角色并投递到写队列，不等待写完成
func (c *Controller) sendLocal() {
	if c.session == nil || !c.session.Alive() {
		return
	}
	snap, err := c.world.LocalState()
	if err != nil {
		c.log.Debugw("read local state", "error", err)
		return
	}
	if err := c.session.Send(snap); err != nil {
		c.log.Debugw("send snapshot", "error", err)
	}
}
