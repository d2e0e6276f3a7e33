package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"invoicesys/internal/app"
	"invoicesys/internal/service"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: withApp(func(_ context.Context, a *app.App) error {
		return a.Migrate()
	}),
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create demo accounts when the user table is empty",
	RunE: withApp(func(ctx context.Context, a *app.App) error {
		created, err := service.SeedDemoAccounts(ctx, a.Users, a.Log)
		if err != nil {
			return err
		}
		if !created {
			fmt.Println("users already present, nothing seeded")
		}
		return nil
	}),
}

var sweepCmd = &cobra.Command{
	Use:   "sweep-sessions",
	Short: "Delete expired sessions once",
	RunE: withApp(func(ctx context.Context, a *app.App) error {
		n, err := a.Sessions.SweepExpired(ctx)
		if err != nil {
			return err
		}
		a.Log.Info("expired sessions swept", zap.Int64("count", n))
		fmt.Printf("%d expired sessions deleted\n", n)
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(migrateCmd, seedCmd, sweepCmd)
}
