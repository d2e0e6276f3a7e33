package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler 存活探针，不需要登录
type HealthHandler struct {
	db  pinger
	now func() time.Time
}

func NewHealthHandler(db pinger) *HealthHandler {
	return &HealthHandler{db: db, now: time.Now}
}

func (h *HealthHandler) Priority() int { return 0 }

func (h *HealthHandler) MountAPI(pub, _ *gin.RouterGroup) {
	pub.GET("/health", h.Health)
}

func (h *HealthHandler) MountRoot(root *gin.RouterGroup) {
	root.GET("/health", h.Health)
}

// Health 与其他接口不同，直接返回 {status,timestamp}，便于探针解析
func (h *HealthHandler) Health(c *gin.Context) {
	body := gin.H{"status": "ok", "timestamp": h.now().UTC().Format(time.RFC3339Nano)}
	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			body["status"] = "degraded"
			body["db"] = err.Error()
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}
	}
	c.JSON(http.StatusOK, body)
}
