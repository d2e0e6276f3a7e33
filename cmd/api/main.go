package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "go.uber.org/automaxprocs"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"invoicesys/internal/app"
	"invoicesys/internal/core/config"
	"invoicesys/internal/core/logger"
	"invoicesys/internal/core/server"
	"invoicesys/internal/service"
	"invoicesys/internal/transport/http/handler"
	"invoicesys/internal/transport/http/router"
)

func main() {
	_ = godotenv.Load()
	cfg := config.MustLoad("")
	log, cleanup := logger.New(cfg.Log)
	if err := run(cfg, log); err != nil {
		log.Error("invoice api stopped with error", zap.Error(err))
		cleanup()
		os.Exit(1)
	}
	cleanup()
}

func run(cfg *config.Config, log *zap.Logger) error {
	if cfg.App.Env != "local" && cfg.App.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()
	log.Info("database connected", zap.String("driver", cfg.DB.Driver))

	if cfg.DB.AutoMigrate {
		if err := a.Migrate(); err != nil {
			return err
		}
	}
	if cfg.Seed.Demo {
		if _, err := service.SeedDemoAccounts(ctx, a.Users, log); err != nil {
			return fmt.Errorf("seed demo accounts: %w", err)
		}
	}

	sweeper := service.NewSweeper(a.Sessions, time.Duration(cfg.Session.SweepIntervalMin)*time.Minute, log)
	sweepDone := sweeper.Start(ctx)

	sqlDB, err := a.DB.DB()
	if err != nil {
		return err
	}
	engine := router.NewAPIEngine(router.Deps{
		Log:      log,
		Limits:   cfg.Limits,
		CORS:     cfg.App.CORS,
		Sessions: a.Sessions,
		Modules: []router.APIModule{
			handler.NewHealthHandler(sqlDB),
			handler.NewAuthHandler(a.Auth, log),
			handler.NewUserHandler(a.Users, log),
			handler.NewInvoiceHandler(a.Invoices, log),
			handler.NewIntegrationHandler(a.Freshservice, a.Importer, log),
		},
	})
	srv := server.FromConfig(cfg.App.HTTP, engine)

	host4human := cfg.App.HTTP.Host
	if host4human == "" || host4human == "0.0.0.0" {
		host4human = "127.0.0.1"
	}
	baseURL := "http://" + host4human + ":" + fmt.Sprint(cfg.App.HTTP.Port)
	log.Info("invoice api starting",
		zap.String("open", baseURL),
		zap.String("health", baseURL+"/health"),
		zap.String("api", baseURL+"/api"),
	)

	err = server.Run(ctx, srv, 10*time.Second, log)
	// 等清理协程退出后再由 defer 关闭数据库
	stop()
	<-sweepDone
	return err
}
