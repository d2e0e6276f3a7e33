package domain

import (
	"context"
	"time"
)

type Session struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IssuedSession 是返回给客户端的部分
type IssuedSession struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type SessionRepository interface {
	Create(ctx context.Context, s *Session) error
	// FindIdentity 在一条语句里同时判断 token 与过期时间，过期与不存在同样返回 ErrSessionInvalid
	FindIdentity(ctx context.Context, token string, now time.Time) (*Identity, error)
	DeleteByToken(ctx context.Context, token string) (int64, error)
	DeleteByUser(ctx context.Context, userID string) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
