package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/warp/agency-billing/config"
	"github.com/warp/agency-billing/logger"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the store schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		closer, err := logger.Setup(cfg.Log)
		if err != nil {
			return fmt.Errorf("logger: %w", err)
		}
		defer closer.Close()

		store, err := openStore(cfg.Database)
		if err != nil {
			return fmt.Errorf("open %s store: %w", cfg.Database.Driver, err)
		}
		defer store.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()
		if err := store.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		log := logger.WithComponent("migrate")
		log.Info().Str("driver", cfg.Database.Driver).Msg("schema up to date")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
