package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coopsync/config"
	"coopsync/logging"
	"coopsync/relay"
)

// coopsync-relay：把每个房间内一端发来的快照转发给另一端
func main() {
	cfg, err := config.LoadRelay(os.Args[1:])
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

	m := relay.NewManager(cfg, log)
	// 预创建默认房间，便于 /metrics 直接查看
	_ = m.GetOrCreateRoom(relay.DefaultRoom)

	srv := &http.Server{Addr: cfg.Addr, Handler: m.Routes()}
	go func() {
		log.Infow("relay listening", "addr", cfg.Addr, "maxPeers", cfg.MaxPeers, "dropProb", cfg.DropProb)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("listen", "error", err)
		}
	}()

	// 优雅退出（Ctrl+C）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warnw("shutdown", "error", err)
	}
	if err := m.Close(); err != nil {
		log.Warnw("close rooms", "error", err)
	}
}
