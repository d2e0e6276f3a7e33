// Package app 把配置、存储与各服务装配在一起，供 cmd/api 与 cmd/admin 共用
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"invoicesys/internal/core/cache"
	"invoicesys/internal/core/config"
	"invoicesys/internal/core/database"
	"invoicesys/internal/integration/freshservice"
	"invoicesys/internal/repo"
	"invoicesys/internal/service"
)

type App struct {
	Cfg *config.Config
	Log *zap.Logger
	DB  *gorm.DB
	// Cache redis.addr 为空时为 nil
	Cache *cache.Cache

	Users        *service.UserService
	Sessions     *service.SessionService
	Auth         *service.AuthService
	Invoices     *service.InvoiceService
	Freshservice *freshservice.Client
	Importer     *freshservice.Importer
}

func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	db, err := database.NewGorm(database.Opts{
		Driver:             cfg.DB.Driver,
		DSN:                cfg.DB.DSN,
		Username:           cfg.DB.Username,
		Password:           cfg.DB.Password,
		MaxOpenConns:       cfg.DB.MaxOpenConns,
		MaxIdleConns:       cfg.DB.MaxIdleConns,
		ConnMaxLifetimeMin: cfg.DB.ConnMaxLifetimeMin,
		LogLevel:           cfg.DB.LogLevel,
		Logger:             log,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a := &App{Cfg: cfg, Log: log, DB: db}

	if cfg.Redis.Addr != "" {
		a.Cache = cache.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := a.Cache.Ping(pctx)
		cancel()
		if err != nil {
			// 缓存不可用时直接回源，不阻止启动
			log.Warn("redis unavailable, stats cache disabled", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
			_ = a.Cache.Close()
			a.Cache = nil
		}
	}

	userRepo, sessRepo := repo.NewUserRepo(db), repo.NewSessionRepo(db)
	a.Users = service.NewUserService(userRepo, sessRepo, log)
	a.Sessions = service.NewSessionService(sessRepo, time.Duration(cfg.Session.TTLHours)*time.Hour, log)
	a.Auth = service.NewAuthService(a.Users, a.Sessions)
	a.Invoices = service.NewInvoiceService(repo.NewInvoiceRepo(db), a.Cache,
		time.Duration(cfg.Redis.StatsTTLSec)*time.Second, log)
	a.Freshservice = freshservice.New(freshservice.ConfigFrom(cfg.Freshservice), log)
	a.Importer = freshservice.NewImporter(a.Freshservice, a.Invoices, log)
	return a, nil
}

func (a *App) Migrate() error {
	if err := repo.Migrate(a.DB); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	a.Log.Info("migrate done")
	return nil
}

func (a *App) Close() {
	if a.Cache != nil {
		_ = a.Cache.Close()
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
