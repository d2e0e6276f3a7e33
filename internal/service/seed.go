package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"invoicesys/internal/domain"
)

var demoAccounts = []domain.NewUser{
	{Name: "Admin User", Email: "admin@invoicesys.com", Password: "admin123", Department: "IT", Role: domain.RoleAdmin},
	{Name: "Demo User", Email: "demo@invoicesys.com", Password: "demo123", Department: "Sales", Role: domain.RoleUser},
}

// SeedDemoAccounts 只在用户表为空时写入演示账号，可重复调用
func SeedDemoAccounts(ctx context.Context, users *UserService, log *zap.Logger) (bool, error) {
	n, err := users.Count(ctx)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	for _, acc := range demoAccounts {
		if _, err := users.Create(ctx, acc); err != nil {
			return false, fmt.Errorf("seed %s: %w", acc.Email, err)
		}
	}
	log.Info("demo accounts created", zap.Int("count", len(demoAccounts)))
	return true, nil
}
