package domain

import (
	"context"
	"net/url"
	"strings"
	"time"
)

type Role string

const (
	RoleUser    Role = "User"
	RoleManager Role = "Manager"
	RoleAdmin   Role = "Admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleManager, RoleAdmin:
		return true
	}
	return false
}

type UserStatus string

const (
	UserActive   UserStatus = "Active"
	UserInactive UserStatus = "Inactive"
)

func (s UserStatus) Valid() bool { return s == UserActive || s == UserInactive }

const MinSecretLen = 6

type User struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Department   string     `json:"department"`
	Role         Role       `json:"role"`
	Status       UserStatus `json:"status"`
	Avatar       string     `json:"avatar"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastLogin    *time.Time `json:"lastLogin"`
}

// Identity 是会话解析出来的身份快照
type Identity struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Email      string     `json:"email"`
	Department string     `json:"department"`
	Role       Role       `json:"role"`
	Avatar     string     `json:"avatar"`
	Status     UserStatus `json:"status"`
}

func (u *User) Identity() Identity {
	return Identity{
		ID: u.ID, Name: u.Name, Email: u.Email, Department: u.Department,
		Role: u.Role, Avatar: u.Avatar, Status: u.Status,
	}
}

type NewUser struct {
	Name       string
	Email      string
	Password   string
	Department string
	Role       Role
}

// UserPatch 只有非 nil 字段会被写入
type UserPatch struct {
	Name       *string     `json:"name"`
	Department *string     `json:"department"`
	Role       *Role       `json:"role"`
	Status     *UserStatus `json:"status"`
}

// Apply 合并 patch；改名时重新生成头像
func (p UserPatch) Apply(u *User) error {
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if len(name) < 2 {
			return Validationf("Name must be at least 2 characters")
		}
		if name != u.Name {
			u.Name = name
			u.Avatar = AvatarURL(name)
		}
	}
	if p.Department != nil {
		u.Department = strings.TrimSpace(*p.Department)
	}
	if p.Role != nil {
		if !p.Role.Valid() {
			return Validationf("Invalid role %q", *p.Role)
		}
		u.Role = *p.Role
	}
	if p.Status != nil {
		if !p.Status.Valid() {
			return Validationf("Invalid status %q", *p.Status)
		}
		u.Status = *p.Status
	}
	return nil
}

func NormalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

// AvatarURL 空格编码为 %20，与前端 encodeURIComponent 一致
func AvatarURL(name string) string {
	return "https://ui-avatars.com/api/?name=" + strings.ReplaceAll(url.QueryEscape(name), "+", "%20") + "&background=2C5CC5&color=fff"
}

type UserRepository interface {
	Create(ctx context.Context, u *User) error
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context) ([]User, error)
	Count(ctx context.Context) (int64, error)
	Update(ctx context.Context, u *User) error
	UpdatePasswordHash(ctx context.Context, id, hash string) error
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error
}
