package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"invoicesys/internal/domain"
)

type UserRepo struct{ db *gorm.DB }

func NewUserRepo(db *gorm.DB) *UserRepo { return &UserRepo{db: db} }

var _ domain.UserRepository = (*UserRepo)(nil)

func toUserModel(u *domain.User) *UserModel {
	return &UserModel{
		ID: u.ID, Name: u.Name, Email: u.Email, PasswordHash: u.PasswordHash,
		Department: u.Department, Role: string(u.Role), Avatar: u.Avatar,
		Status: string(u.Status), CreatedAt: u.CreatedAt, LastLogin: u.LastLogin,
	}
}

func (m *UserModel) toDomain() *domain.User {
	return &domain.User{
		ID: m.ID, Name: m.Name, Email: m.Email, PasswordHash: m.PasswordHash,
		Department: m.Department, Role: domain.Role(m.Role), Avatar: m.Avatar,
		Status: domain.UserStatus(m.Status), CreatedAt: m.CreatedAt, LastLogin: m.LastLogin,
	}
}

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	m := toUserModel(u)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		if isDupKey(err) {
			return domain.ErrDuplicateEmail
		}
		return err
	}
	u.CreatedAt = m.CreatedAt
	return nil
}

func (r *UserRepo) first(ctx context.Context, query string, arg any) (*domain.User, error) {
	var m UserModel
	err := r.db.WithContext(ctx).Where(query, arg).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return m.toDomain(), nil
}

func (r *UserRepo) FindByID(ctx context.Context, id string) (*domain.User, error) {
	return r.first(ctx, "id = ?", id)
}

// FindByEmail 邮箱入库前已小写，这里同样归一化
func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.first(ctx, "email = ?", domain.NormalizeEmail(email))
}

func (r *UserRepo) List(ctx context.Context) ([]domain.User, error) {
	var ms []UserModel
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&ms).Error; err != nil {
		return nil, err
	}
	out := make([]domain.User, 0, len(ms))
	for i := range ms {
		u := ms[i].toDomain()
		u.PasswordHash = "" // 列表永不带哈希
		out = append(out, *u)
	}
	return out, nil
}

func (r *UserRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&UserModel{}).Count(&n).Error
	return n, err
}

// Update 只写资料字段，不动密码和时间戳
func (r *UserRepo) Update(ctx context.Context, u *domain.User) error {
	res := r.db.WithContext(ctx).Model(&UserModel{}).Where("id = ?", u.ID).Updates(map[string]any{
		"name":       u.Name,
		"department": u.Department,
		"role":       string(u.Role),
		"status":     string(u.Status),
		"avatar":     u.Avatar,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *UserRepo) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	res := r.db.WithContext(ctx).Model(&UserModel{}).Where("id = ?", id).Update("password_hash", hash)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *UserRepo) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&UserModel{}).Where("id = ?", id).Update("last_login", at.UTC()).Error
}

// Delete 会话由外键级联删除；关联发票的 user_id 置空
func (r *UserRepo) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&UserModel{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}
