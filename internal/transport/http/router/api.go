package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"invoicesys/internal/core/config"
	mdw "invoicesys/internal/transport/http/middleware"
	resp "invoicesys/internal/transport/http/response"
)

type Deps struct {
	Log      *zap.Logger
	Limits   config.Limits
	CORS     config.CORS
	Sessions mdw.SessionValidator
	Modules  []APIModule
}

// NewAPIEngine 业务接口挂在 /api 下；/health 与 /metrics 在根路径
func NewAPIEngine(d Deps) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true

	r.Use(
		mdw.RequestID(),
		mdw.Recovery(d.Log),
		mdw.Metrics(),
		mdw.AccessLog(d.Log),
		corsMiddleware(d.CORS),
	)
	r.Use(protection(d.Limits)...)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, resp.Error(resp.CodeNotFound, "Route not found"))
	})
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, resp.Error(http.StatusMethodNotAllowed, "Method not allowed"))
	})

	reg := &Registry{}
	reg.Register(d.Modules...)

	// 根路径只挂公开部分（健康检查）
	root := r.Group("")
	api := r.Group("/api")
	authed := api.Group("", mdw.SessionAuth(d.Sessions, d.Log))

	for _, m := range d.Modules {
		if p, ok := m.(rootMounter); ok {
			p.MountRoot(root)
		}
	}
	reg.MountAll(api, authed)
	return r
}

// protection 各项限制为 0 表示关闭
func protection(lim config.Limits) []gin.HandlerFunc {
	var hs []gin.HandlerFunc
	if lim.RPS > 0 {
		hs = append(hs, mdw.RateLimit(rate.Limit(lim.RPS), max(lim.Burst, 1)))
	}
	if lim.PerIPRPS > 0 {
		hs = append(hs, mdw.RateLimitPerIP(rate.Limit(lim.PerIPRPS), max(lim.PerIPBurst, 1)))
	}
	if lim.Concurrency > 0 {
		hs = append(hs, mdw.ConcurrencyLimit(lim.Concurrency))
	}
	if lim.MaxBodyMB > 0 {
		hs = append(hs, mdw.MaxBodyBytes(lim.MaxBodyMB<<20))
	}
	if lim.RequestTimeoutSec > 0 {
		hs = append(hs, mdw.Timeout(time.Duration(lim.RequestTimeoutSec)*time.Second))
	}
	return hs
}

// rootMounter 需要同时暴露在根路径的模块（如 /health）
type rootMounter interface{ MountRoot(*gin.RouterGroup) }

func corsMiddleware(c config.CORS) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", mdw.KeyRequestID},
		ExposeHeaders:    []string{mdw.KeyRequestID},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(c.AllowOrigins) == 0 || (len(c.AllowOrigins) == 1 && c.AllowOrigins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = c.AllowOrigins
	}
	return cors.New(cfg)
}
