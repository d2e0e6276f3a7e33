package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AccessLog 每个请求一行；query 里的敏感 key 打码
func AccessLog(l *zap.Logger) gin.HandlerFunc {
	sensitiveKeys := map[string]struct{}{
		"password": {}, "currentpassword": {}, "newpassword": {},
		"token": {}, "authorization": {}, "apikey": {}, "api_key": {},
	}

	mask := func(kv map[string][]string) map[string][]string {
		out := map[string][]string{}
		for k, v := range kv {
			lk := strings.ToLower(k)
			if _, ok := sensitiveKeys[lk]; ok {
				out[k] = []string{"****"}
			} else {
				out[k] = v
			}
		}
		return out
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		q := mask(c.Request.URL.Query())
		status := c.Writer.Status()
		lvl := zap.InfoLevel
		if status >= 500 {
			lvl = zap.ErrorLevel
		}
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		l.Log(lvl, "HTTP",
			zap.String("rid", c.GetString(KeyRequestID)),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
			zap.String("ua", c.Request.UserAgent()),
			zap.Any("query", q),
			zap.Int("size", c.Writer.Size()),
		)
	}
}
