package service

import (
	"context"
	"strings"
	"time"

	"invoicesys/internal/domain"
)

type AuthResult struct {
	User      *domain.User `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
}

// AuthService 注册/登录/登出，组合凭据存储与会话管理
type AuthService struct {
	users    *UserService
	sessions *SessionService
}

func NewAuthService(users *UserService, sessions *SessionService) *AuthService {
	return &AuthService{users: users, sessions: sessions}
}

func (a *AuthService) issue(ctx context.Context, u *domain.User) (*AuthResult, error) {
	sess, err := a.sessions.Issue(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: u, Token: sess.Token, ExpiresAt: sess.ExpiresAt}, nil
}

func (a *AuthService) Register(ctx context.Context, in domain.NewUser) (*AuthResult, error) {
	u, err := a.users.Create(ctx, in)
	if err != nil {
		return nil, err
	}
	return a.issue(ctx, u)
}

func (a *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, domain.Validationf("Please fill in all fields")
	}
	u, err := a.users.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return a.issue(ctx, u)
}

func (a *AuthService) Logout(ctx context.Context, token string) error {
	return a.sessions.Revoke(ctx, token)
}
