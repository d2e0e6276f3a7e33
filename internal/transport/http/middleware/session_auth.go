package middleware

import (
	"context"
	"errors"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"invoicesys/internal/core/auth"
	"invoicesys/internal/domain"
	resp "invoicesys/internal/transport/http/response"
)

const (
	KeyIdentity = "identity"
	KeyToken    = "token"
)

type SessionValidator interface {
	Validate(ctx context.Context, token string) (*domain.Identity, error)
}

// SessionAuth 校验 Authorization: Bearer <token>，通过后把身份放进 gin.Context
func SessionAuth(v SessionValidator, l *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok, ok := auth.BearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, resp.Error(resp.CodeUnauthorized, "Authentication required"))
			return
		}
		id, err := v.Validate(c.Request.Context(), tok)
		if err != nil {
			if errors.Is(err, domain.ErrUnauthenticated) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, resp.Error(resp.CodeUnauthorized, domain.Message(err)))
				return
			}
			l.Error("session validation failed", zap.String("rid", c.GetString(KeyRequestID)), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, resp.Error(resp.CodeServerError, "internal error"))
			return
		}
		c.Set(KeyIdentity, id)
		c.Set(KeyToken, tok)
		c.Next()
	}
}

// RequireRole 必须挂在 SessionAuth 之后
func RequireRole(roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := IdentityFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, resp.Error(resp.CodeUnauthorized, "Authentication required"))
			return
		}
		if !slices.Contains(roles, id.Role) {
			c.AbortWithStatusJSON(http.StatusForbidden, resp.Error(resp.CodeForbidden, "Insufficient permissions"))
			return
		}
		c.Next()
	}
}

func IdentityFrom(c *gin.Context) (*domain.Identity, bool) {
	v, ok := c.Get(KeyIdentity)
	if !ok {
		return nil, false
	}
	id, ok := v.(*domain.Identity)
	return id, ok && id != nil
}

func TokenFrom(c *gin.Context) string { return c.GetString(KeyToken) }
