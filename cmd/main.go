// dispatchd runs the emergency alert dispatch backend.
//
// Usage:
//
//	dispatchd migrate
//	dispatchd serve
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"emergency-dispatch/internal/config"
	"emergency-dispatch/internal/db"
	"emergency-dispatch/internal/logging"
	"emergency-dispatch/internal/settings"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "dispatchd",
		Short:   "Emergency alert dispatch backend",
		Version: version,
	}
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the schema and seed default settings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			defer logger.Close()

			dbConn, err := openDB(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer dbConn.Close()

			logger.Info("Schema migrated and settings seeded")
			return nil
		},
	}
}

func bootstrap() (config.Config, *logging.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("config load failed: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		log.Printf("Logger init failed: %v", err)
		return config.Config{}, nil, fmt.Errorf("logger init failed: %w", err)
	}
	return cfg, logger, nil
}

// openDB connects, migrates and seeds. Both commands start this way so a
// fresh database is usable by serve alone.
func openDB(ctx context.Context, cfg config.Config, logger *logging.Logger) (*db.DB, error) {
	dbConn, err := db.New(ctx, cfg.DB.DSN)
	if err != nil {
		logger.Errorf("DB connect failed: %v", err)
		return nil, fmt.Errorf("db connect failed: %w", err)
	}
	if err := dbConn.Migrate(ctx); err != nil {
		dbConn.Close()
		return nil, fmt.Errorf("db migrate failed: %w", err)
	}
	if err := settings.Seed(ctx, dbConn); err != nil {
		dbConn.Close()
		return nil, fmt.Errorf("settings seed failed: %w", err)
	}
	return dbConn, nil
}
