package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// EnvPrefix 所有环境变量的前缀
const EnvPrefix = "COOPSYNC_"

// Client 同步客户端配置
type Client struct {
	Endpoint        string        // ws://host:port
	TickRate        int           // 宿主每秒 Tick 次数（仅演示宿主使用）
	ReclaimInterval time.Duration // 周期回收间隔
	ConnectTimeout  time.Duration
	WriteTimeout    time.Duration
	Model           string        // 代理角色的模型名
	ModelBudget     time.Duration // 模型请求预算
	SendQueue       int           // 发送队列容量，满则丢弃最旧帧
	ToggleKey       string
	LogLevel        string
	LogFile         string
}

// DefaultClient 返回默认客户端配置
func DefaultClient() Client {
	return Client{
		Endpoint:        "ws://localhost:8765",
		TickRate:        60,
		ReclaimInterval: 5000 * time.Millisecond,
		ConnectTimeout:  5 * time.Second,
		WriteTimeout:    2 * time.Second,
		Model:           "CS_Cassidy",
		ModelBudget:     1000 * time.Millisecond,
		SendQueue:       8,
		ToggleKey:       "F5",
		LogLevel:        "info",
	}
}

// Relay 中继服务配置
type Relay struct {
	Addr     string
	MaxPeers int     // 每个房间最多连接数
	DropProb float64 // 模拟丢包概率 [0,1)
	LogLevel string
	LogFile  string
}

// DefaultRelay 返回默认中继配置
func DefaultRelay() Relay {
	return Relay{
		Addr:     ":8765",
		MaxPeers: 2,
		LogLevel: "info",
	}
}

// LoadClient 按 默认值 < .env < 环境变量 < 命令行 的优先级加载客户端配置
func LoadClient(args []string) (Client, error) {
	cfg := DefaultClient()
	if err := loadDotEnv(); err != nil {
		return cfg, err
	}

	env := envReader{}
	cfg.Endpoint = env.str("ENDPOINT", cfg.Endpoint)
	cfg.TickRate = env.integer("TICK_RATE", cfg.TickRate)
	cfg.ReclaimInterval = env.duration("RECLAIM_INTERVAL", cfg.ReclaimInterval)
	cfg.ConnectTimeout = env.duration("CONNECT_TIMEOUT", cfg.ConnectTimeout)
	cfg.WriteTimeout = env.duration("WRITE_TIMEOUT", cfg.WriteTimeout)
	cfg.Model = env.str("MODEL", cfg.Model)
	cfg.ModelBudget = env.duration("MODEL_BUDGET", cfg.ModelBudget)
	cfg.SendQueue = env.integer("SEND_QUEUE", cfg.SendQueue)
	cfg.ToggleKey = env.str("TOGGLE_KEY", cfg.ToggleKey)
	cfg.LogLevel = env.str("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFile = env.str("LOG_FILE", cfg.LogFile)
	if env.err != nil {
		return cfg, env.err
	}

	flags := pflag.NewFlagSet("coopsync", pflag.ContinueOnError)
	flags.StringVar(&cfg.Endpoint, "endpoint", cfg.Endpoint, "peer relay endpoint, e.g. ws://localhost:8765")
	flags.IntVar(&cfg.TickRate, "tick-rate", cfg.TickRate, "host ticks per second")
	flags.DurationVar(&cfg.ReclaimInterval, "reclaim-interval", cfg.ReclaimInterval, "interval between reclamation passes")
	flags.DurationVar(&cfg.ConnectTimeout, "connect-timeout", cfg.ConnectTimeout, "timeout for establishing the connection")
	flags.DurationVar(&cfg.WriteTimeout, "write-timeout", cfg.WriteTimeout, "deadline for a single frame write")
	flags.StringVar(&cfg.Model, "model", cfg.Model, "model used for the remote proxy")
	flags.DurationVar(&cfg.ModelBudget, "model-budget", cfg.ModelBudget, "load budget for a model request")
	flags.IntVar(&cfg.SendQueue, "send-queue", cfg.SendQueue, "outgoing frame queue size")
	flags.StringVar(&cfg.ToggleKey, "toggle-key", cfg.ToggleKey, "input line that toggles synchronization")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")
	flags.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "rolling log file (stderr when empty)")
	if err := flags.Parse(args); err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}

// Validate 校验客户端配置
func (c Client) Validate() error {
	if err := validateEndpoint(c.Endpoint); err != nil {
		return err
	}
	if c.TickRate <= 0 {
		return fmt.Errorf("tick rate must be positive, got %d", c.TickRate)
	}
	if c.ReclaimInterval <= 0 || c.ConnectTimeout <= 0 || c.WriteTimeout <= 0 || c.ModelBudget <= 0 {
		return errors.New("intervals, timeouts and model budget must be positive")
	}
	if c.SendQueue <= 0 {
		return fmt.Errorf("send queue must be positive, got %d", c.SendQueue)
	}
	if c.Model == "" {
		return errors.New("model must not be empty")
	}
	return nil
}

// LoadRelay 加载中继配置，优先级与 LoadClient 相同
func LoadRelay(args []string) (Relay, error) {
	cfg := DefaultRelay()
	if err := loadDotEnv(); err != nil {
		return cfg, err
	}

	env := envReader{}
	cfg.Addr = env.str("RELAY_ADDR", cfg.Addr)
	cfg.MaxPeers = env.integer("RELAY_MAX_PEERS", cfg.MaxPeers)
	cfg.DropProb = env.number("RELAY_DROP_PROB", cfg.DropProb)
	cfg.LogLevel = env.str("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFile = env.str("LOG_FILE", cfg.LogFile)
	if env.err != nil {
		return cfg, env.err
	}

	flags := pflag.NewFlagSet("coopsync-relay", pflag.ContinueOnError)
	flags.StringVar(&cfg.Addr, "addr", cfg.Addr, "listen address, e.g. :8765")
	flags.IntVar(&cfg.MaxPeers, "max-peers", cfg.MaxPeers, "peers allowed per room")
	flags.Float64Var(&cfg.DropProb, "drop-prob", cfg.DropProb, "probability of dropping a forwarded frame")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")
	flags.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "rolling log file (stderr when empty)")
	if err := flags.Parse(args); err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}

// Validate 校验中继配置
func (r Relay) Validate() error {
	if r.Addr == "" {
		return errors.New("listen address must not be empty")
	}
	if r.MaxPeers < 2 {
		return fmt.Errorf("max peers must be at least 2, got %d", r.MaxPeers)
	}
	if r.DropProb < 0 || r.DropProb >= 1 {
		return fmt.Errorf("drop probability must be in [0,1), got %v", r.DropProb)
	}
	return nil
}

func validateEndpoint(endpoint string) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	// 仅支持明文 ws
	if u.Scheme != "ws" {
		return fmt.Errorf("endpoint %q must use the ws scheme", endpoint)
	}
	if u.Host == "" {
		return fmt.Errorf("endpoint %q has no host", endpoint)
	}
	return nil
}

// loadDotEnv 读取 .env（或 COOPSYNC_ENV_FILE 指定的文件），文件不存在时忽略
func loadDotEnv() error {
	path := os.Getenv(EnvPrefix + "ENV_FILE")
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// envReader 读取带前缀的环境变量，记录第一个解析错误
type envReader struct {
	err error
}

func (e *envReader) lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + key)
	return v, ok && v != ""
}

func (e *envReader) str(key, def string) string {
	if v, ok := e.lookup(key); ok {
		return v
	}
	return def
}

func (e *envReader) integer(key string, def int) int {
	v, ok := e.lookup(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, err)
		return def
	}
	return n
}

func (e *envReader) number(key string, def float64) float64 {
	v, ok := e.lookup(key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.fail(key, err)
		return def
	}
	return f
}

func (e *envReader) duration(key string, def time.Duration) time.Duration {
	v, ok := e.lookup(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(key, err)
		return def
	}
	return d
}

func (e *envReader) fail(key string, err error) {
	if e.err == nil {
		e.err = fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
	}
}
