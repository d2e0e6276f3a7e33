package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"invoicesys/internal/core/config"
)

func BuildServer(addr string, handler http.Handler, rt, wt, it time.Duration) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       rt,
		ReadHeaderTimeout: rt,
		WriteTimeout:      wt,
		IdleTimeout:       it,
		MaxHeaderBytes:    1 << 20, // 1MB
	}
}

// FromConfig 按 app.http 配置构造 http.Server
func FromConfig(c config.HTTP, handler http.Handler) *http.Server {
	return BuildServer(
		Addr(c.Host, c.Port), handler,
		time.Duration(c.ReadTimeoutSec)*time.Second,
		time.Duration(c.WriteTimeoutSec)*time.Second,
		time.Duration(c.IdleTimeoutSec)*time.Second,
	)
}

func Addr(host string, port int) string { return fmt.Sprintf("%s:%d", host, port) }

// Run 阻塞直到 ctx 取消或监听失败；取消后在 grace 内优雅关闭
func Run(ctx context.Context, srv *http.Server, grace time.Duration, l *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		l.Info("http starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	sctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	l.Info("http stopped gracefully")
	return nil
}
