package cmd

import (
	"fmt"

	"food-order/config"
	"food-order/repository"

	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log := bootstrap()
			db, err := config.OpenDB(cfg.DBDriver, cfg.DBDSN)
			if err != nil {
				return err
			}
			if err := repository.AutoMigrate(db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			log.Info().Str("driver", cfg.DBDriver).Msg("schema up to date")
			return nil
		},
	}
}
