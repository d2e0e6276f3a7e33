package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type sessionSweeper interface {
	SweepExpired(ctx context.Context) (int64, error)
}

// Sweeper 定时清理过期会话。每轮只是一条 DELETE，不持有任何应用层锁
type Sweeper struct {
	sessions sessionSweeper
	interval time.Duration
	timeout  time.Duration
	log      *zap.Logger
}

func NewSweeper(sessions sessionSweeper, interval time.Duration, log *zap.Logger) *Sweeper {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Sweeper{sessions: sessions, interval: interval, timeout: 30 * time.Second, log: log.Named("sweeper")}
}

// Run 阻塞直到 ctx 取消；启动时先扫一次
func (w *Sweeper) Run(ctx context.Context) {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	w.log.Info("session sweeper started", zap.Duration("interval", w.interval))
	for {
		w.sweepOnce(ctx)
		select {
		case <-ctx.Done():
			w.log.Info("session sweeper stopped")
			return
		case <-t.C:
		}
	}
}

// Start 在后台运行；返回的 channel 在最后一轮清理结束后关闭，关库前需等待它
func (w *Sweeper) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx)
	}()
	return done
}

func (w *Sweeper) sweepOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	n, err := w.sessions.SweepExpired(ctx)
	if err != nil {
		w.log.Warn("sweep expired sessions failed", zap.Error(err))
		return
	}
	if n > 0 {
		w.log.Info("expired sessions swept", zap.Int64("count", n))
	}
}
