package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"invoicesys/internal/domain"
)

type SessionRepo struct{ db *gorm.DB }

func NewSessionRepo(db *gorm.DB) *SessionRepo { return &SessionRepo{db: db} }

var _ domain.SessionRepository = (*SessionRepo)(nil)

func (r *SessionRepo) Create(ctx context.Context, s *domain.Session) error {
	m := &SessionModel{
		ID:        s.ID,
		UserID:    s.UserID,
		Token:     s.Token,
		ExpiresAt: s.ExpiresAt.UTC(),
	}
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		if isDupKey(err) {
			return domain.ErrConflict
		}
		return err
	}
	s.CreatedAt = m.CreatedAt
	return nil
}

type identityRow struct {
	ID         string
	Name       string
	Email      string
	Department string
	Role       string
	Avatar     string
	Status     string
}

// FindIdentity token 匹配与过期判断在同一条 SELECT 里完成，
// 与并发的 DeleteExpired 之间不存在“查到后又过期”的中间态
func (r *SessionRepo) FindIdentity(ctx context.Context, token string, now time.Time) (*domain.Identity, error) {
	var row identityRow
	res := r.db.WithContext(ctx).
		Table("sessions AS s").
		Select("u.id, u.name, u.email, u.department, u.role, u.avatar, u.status").
		Joins("JOIN users u ON u.id = s.user_id").
		Where("s.token = ? AND s.expires_at > ?", token, now.UTC()).
		Limit(1).
		Scan(&row)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, domain.ErrSessionInvalid
	}
	return &domain.Identity{
		ID: row.ID, Name: row.Name, Email: row.Email, Department: row.Department,
		Role: domain.Role(row.Role), Avatar: row.Avatar, Status: domain.UserStatus(row.Status),
	}, nil
}

func (r *SessionRepo) delete(ctx context.Context, query string, args ...any) (int64, error) {
	res := r.db.WithContext(ctx).Where(query, args...).Delete(&SessionModel{})
	return res.RowsAffected, res.Error
}

func (r *SessionRepo) DeleteByToken(ctx context.Context, token string) (int64, error) {
	return r.delete(ctx, "token = ?", token)
}

func (r *SessionRepo) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	return r.delete(ctx, "user_id = ?", userID)
}

func (r *SessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return r.delete(ctx, "expires_at <= ?", now.UTC())
}
