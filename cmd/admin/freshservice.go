package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"invoicesys/internal/app"
)

var freshserviceCmd = &cobra.Command{
	Use:   "freshservice",
	Short: "Freshservice integration",
}

var checkFreshserviceCmd = &cobra.Command{
	Use:   "check",
	Short: "Test the Freshservice connection",
	RunE: withApp(func(ctx context.Context, a *app.App) error {
		ok, msg := a.Freshservice.TestConnection(ctx)
		fmt.Println(msg)
		if !ok {
			return errors.New("freshservice connection failed")
		}
		return nil
	}),
}

var importFreshserviceCmd = &cobra.Command{
	Use:   "import <po-id>...",
	Short: "Import purchase orders as invoices",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			if err := a.Migrate(); err != nil {
				return err
			}
			rep, err := a.Importer.Import(ctx, args)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				Imported int      `json:"imported"`
				Skipped  []string `json:"skipped"`
				Failed   any      `json:"failed"`
			}{len(rep.Imported), rep.Skipped, rep.Failed})
		})(cmd, args)
	},
}

func init() {
	freshserviceCmd.AddCommand(checkFreshserviceCmd, importFreshserviceCmd)
	rootCmd.AddCommand(freshserviceCmd)
}
