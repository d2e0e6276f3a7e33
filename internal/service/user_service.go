package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"invoicesys/internal/domain"
	"invoicesys/pkg/utils"
)

// UserService 凭据存储：用户资料 + 密码哈希
type UserService struct {
	users    domain.UserRepository
	sessions domain.SessionRepository
	log      *zap.Logger
	now      func() time.Time
}

func NewUserService(users domain.UserRepository, sessions domain.SessionRepository, log *zap.Logger) *UserService {
	return &UserService{users: users, sessions: sessions, log: log.Named("service.user"), now: time.Now}
}

func validateNewUser(in *domain.NewUser) error {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = domain.NormalizeEmail(in.Email)
	in.Department = strings.TrimSpace(in.Department)
	if len(in.Name) < 2 {
		return domain.Validationf("Name must be at least 2 characters")
	}
	if in.Email == "" || !strings.Contains(in.Email, "@") {
		return domain.Validationf("Please enter a valid email")
	}
	if len(in.Password) < domain.MinSecretLen {
		return domain.ErrWeakSecret
	}
	if in.Role == "" {
		in.Role = domain.RoleUser
	}
	if !in.Role.Valid() {
		return domain.Validationf("Invalid role %q", in.Role)
	}
	return nil
}

func (s *UserService) Create(ctx context.Context, in domain.NewUser) (*domain.User, error) {
	if err := validateNewUser(&in); err != nil {
		return nil, err
	}
	if _, err := s.users.FindByEmail(ctx, in.Email); err == nil {
		return nil, domain.ErrDuplicateEmail
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, s.internal("find user by email", err)
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, s.internal("hash password", err)
	}
	u := &domain.User{
		ID:           utils.NewID(),
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Department:   in.Department,
		Role:         in.Role,
		Status:       domain.UserActive,
		Avatar:       domain.AvatarURL(in.Name),
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, domain.ErrDuplicateEmail) {
			return nil, err // 并发注册撞唯一索引
		}
		return nil, s.internal("create user", err)
	}
	return u, nil
}

func (s *UserService) FindByID(ctx context.Context, id string) (*domain.User, error) {
	u, err := s.users.FindByID(ctx, id)
	return u, s.passNotFound("find user", err)
}

func (s *UserService) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	u, err := s.users.FindByEmail(ctx, email)
	return u, s.passNotFound("find user", err)
}

func (s *UserService) List(ctx context.Context) ([]domain.User, error) {
	us, err := s.users.List(ctx)
	if err != nil {
		return nil, s.internal("list users", err)
	}
	return us, nil
}

func (s *UserService) Count(ctx context.Context) (int64, error) {
	n, err := s.users.Count(ctx)
	if err != nil {
		return 0, s.internal("count users", err)
	}
	return n, nil
}

// Update 只合并 patch 中给出的字段
func (s *UserService) Update(ctx context.Context, id string, patch domain.UserPatch) (*domain.User, error) {
	u, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := patch.Apply(u); err != nil {
		return nil, err
	}
	if err := s.users.Update(ctx, u); err != nil {
		return nil, s.passNotFound("update user", err)
	}
	return u, nil
}

// Authenticate 登录校验；区分“邮箱不存在”和“密码错误”
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	u, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrEmailNotFound
	}
	if err != nil {
		return nil, s.internal("find user by email", err)
	}
	if !utils.CheckPassword(password, u.PasswordHash) {
		return nil, domain.ErrIncorrectPassword
	}
	at := s.now().UTC()
	if err := s.users.TouchLastLogin(ctx, u.ID, at); err != nil {
		s.log.Warn("touch last login failed", zap.String("user_id", u.ID), zap.Error(err))
	} else {
		u.LastLogin = &at
	}
	return u, nil
}

func (s *UserService) ChangePassword(ctx context.Context, id, current, next string) error {
	u, err := s.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if !utils.CheckPassword(current, u.PasswordHash) {
		return domain.ErrInvalidCredential
	}
	if len(next) < domain.MinSecretLen {
		return domain.Validationf("New password must be at least %d characters", domain.MinSecretLen)
	}
	hash, err := utils.HashPassword(next)
	if err != nil {
		return s.internal("hash password", err)
	}
	return s.passNotFound("update password", s.users.UpdatePasswordHash(ctx, id, hash))
}

// Delete callerID 为当前登录者；不允许删自己
func (s *UserService) Delete(ctx context.Context, callerID, id string) error {
	if callerID == id {
		return domain.ErrSelfDeletion
	}
	if _, err := s.FindByID(ctx, id); err != nil {
		return err
	}
	if n, err := s.sessions.DeleteByUser(ctx, id); err != nil {
		return s.internal("revoke user sessions", err)
	} else if n > 0 {
		s.log.Info("user sessions revoked", zap.String("user_id", id), zap.Int64("count", n))
	}
	return s.passNotFound("delete user", s.users.Delete(ctx, id))
}

func (s *UserService) passNotFound(op string, err error) error {
	if err == nil || errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return s.internal(op, err)
}

func (s *UserService) internal(op string, err error) error {
	s.log.Error(op+" failed", zap.Error(err))
	return fmt.Errorf("%s: %w", op, err)
}
