// Package cmd holds the food-order command line.
package cmd

import (
	"fmt"
	"os"

	"food-order/config"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var Version = "dev"

// Execute runs the root command and exits non-zero on failure
func Execute() {
	rootCmd := &cobra.Command{
		Use:           "food-order",
		Short:         "Food order lifecycle API",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(createAdminCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// bootstrap loads configuration and builds the root logger shared by every subcommand
func bootstrap() (*config.Config, zerolog.Logger) {
	cfg := config.Load()
	return cfg, config.NewLogger(cfg.LogLevel, cfg.LogFormat)
}
