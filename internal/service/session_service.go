package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"invoicesys/internal/core/auth"
	"invoicesys/internal/domain"
	"invoicesys/pkg/utils"
)

const DefaultSessionTTL = 7 * 24 * time.Hour

// SessionService 会话：Active →（到期，查询时惰性判断）Expired；登出/删用户 → 删除
type SessionService struct {
	repo     domain.SessionRepository
	ttl      time.Duration
	log      *zap.Logger
	now      func() time.Time
	newToken func() (string, error)
}

func NewSessionService(repo domain.SessionRepository, ttl time.Duration, log *zap.Logger) *SessionService {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionService{
		repo:     repo,
		ttl:      ttl,
		log:      log.Named("service.session"),
		now:      time.Now,
		newToken: auth.NewToken,
	}
}

// Issue 允许同一用户多个并发会话
func (s *SessionService) Issue(ctx context.Context, userID string) (domain.IssuedSession, error) {
	tok, err := s.newToken()
	if err != nil {
		return domain.IssuedSession{}, fmt.Errorf("generate token: %w", err)
	}
	now := s.now().UTC()
	sess := &domain.Session{
		ID:        utils.NewID(),
		UserID:    userID,
		Token:     tok,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.repo.Create(ctx, sess); err != nil {
		s.log.Error("create session failed", zap.String("user_id", userID), zap.Error(err))
		return domain.IssuedSession{}, fmt.Errorf("create session: %w", err)
	}
	sessionsIssued.Inc()
	return domain.IssuedSession{Token: tok, ExpiresAt: sess.ExpiresAt}, nil
}

// Validate 不存在、已撤销、已过期统一返回 ErrSessionInvalid
func (s *SessionService) Validate(ctx context.Context, token string) (*domain.Identity, error) {
	if token == "" {
		return nil, domain.ErrSessionInvalid
	}
	id, err := s.repo.FindIdentity(ctx, token, s.now())
	if err != nil {
		if errors.Is(err, domain.ErrUnauthenticated) {
			return nil, err
		}
		s.log.Error("validate session failed", zap.Error(err))
		return nil, fmt.Errorf("validate session: %w", err)
	}
	return id, nil
}

// Revoke 幂等：未知 token 不报错
func (s *SessionService) Revoke(ctx context.Context, token string) error {
	if _, err := s.repo.DeleteByToken(ctx, token); err != nil {
		s.log.Error("revoke session failed", zap.Error(err))
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

func (s *SessionService) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	n, err := s.repo.DeleteByUser(ctx, userID)
	if err != nil {
		s.log.Error("revoke user sessions failed", zap.String("user_id", userID), zap.Error(err))
		return 0, fmt.Errorf("revoke user sessions: %w", err)
	}
	return n, nil
}

func (s *SessionService) SweepExpired(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("sweep sessions: %w", err)
	}
	sessionsSwept.Add(float64(n))
	return n, nil
}
