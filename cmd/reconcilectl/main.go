package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/tair/payment-reconciler/internal/config"
	"github.com/tair/payment-reconciler/pkg/database"
	"github.com/tair/payment-reconciler/pkg/logger"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "reconcilectl",
		Short:         "Operator tooling for the payment reconciliation service",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(replayCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openDatabase loads the service configuration and connects to the ledger
func openDatabase() (*config.Config, *gorm.DB, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}
	logger.Init("reconcilectl", cfg.IsDevelopment())
	logger.SetLevel(cfg.LogLevel)

	if cfg.StoreDriver != config.StoreDriverPostgres {
		return nil, nil, nil, fmt.Errorf("store driver %q has no persistent ledger to operate on", cfg.StoreDriver)
	}

	db, err := database.NewGormConnection(cfg.Database)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	return cfg, db, func() { sqlDB.Close() }, nil
}
