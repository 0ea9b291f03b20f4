package main

import (
	"fmt"

	"github.com/kevinye7/PokeHub/internal/config"
	"github.com/kevinye7/PokeHub/internal/engine"

	"github.com/spf13/cobra"
)

// NewMigrateCommand creates the profiles, posts, post_likes and comments
// tables on a direct Postgres connection.
func NewMigrateCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database tables (postgres backend only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := root.setup()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			if cfg.StoreType != config.StorePostgres {
				return fmt.Errorf("migrate needs STORE_TYPE=postgres, got %q", cfg.StoreType)
			}
			ctx := cmd.Context()

			backend, err := engine.NewBackend(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer backend.Close(ctx) //nolint:errcheck

			if err := backend.Postgres.InitializeTables(ctx); err != nil {
				return fmt.Errorf("failed to create tables: %w", err)
			}
			logger.Info("tables ready")
			return nil
		},
	}
}
