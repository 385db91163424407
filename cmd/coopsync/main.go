package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"coopsync/client"
	"coopsync/config"
	"coopsync/logging"
	"coopsync/sim"
)

// coopsync：用模拟世界驱动同步客户端。标准输入输入开关键（默认 F5）切换同步。
func main() {
	cfg, err := config.LoadClient(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log, err := logging.New(logging.Options{File: cfg.LogFile, Level: cfg.LogLevel})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer logging.Sync(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	world := sim.NewWorld()
	metrics := &client.Metrics{}
	c := client.NewController(cfg, world, client.WithLogger(log), client.WithMetrics(metrics))

	toggles := make(chan struct{}, 1)
	go readKeys(cfg.ToggleKey, toggles)
	log.Infow("host started", "toggleKey", cfg.ToggleKey, "endpoint", cfg.Endpoint, "tickRate", cfg.TickRate)

	start := time.Now()
	ticker := time.NewTicker(time.Second / time.Duration(cfg.TickRate))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if err := c.Close(); err != nil {
				log.Warnw("close", "error", err)
			}
			log.Infow("host stopped", "metrics", metrics.Snapshot())
			return
		case <-toggles:
			// 连接失败已在 Controller 内记录，开关回到关闭
			_ = c.Toggle(ctx)
		case now := <-ticker.C:
			world.Wander(now.Sub(start))
			c.Tick(now)
		}
	}
}

// readKeys 逐行读取标准输入，与开关键相同（不区分大小写）即触发一次切换
func readKeys(key string, out chan<- struct{}) {
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		if !strings.EqualFold(strings.TrimSpace(sc.Text()), key) {
			continue
		}
		select {
		case out <- struct{}{}:
		default:
		}
	}
}
