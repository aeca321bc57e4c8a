package cmd

import (
	"errors"
	"fmt"

	"food-order/config"
	"food-order/models"
	"food-order/repository"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

// createAdminCmd seeds an ADMIN account; sign-up never hands out that role
func createAdminCmd() *cobra.Command {
	var name, email, password string

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an admin account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(password) < 6 {
				return errors.New("password must be at least 6 characters")
			}
			cfg, log := bootstrap()
			db, err := config.OpenDB(cfg.DBDriver, cfg.DBDSN)
			if err != nil {
				return err
			}
			if err := repository.AutoMigrate(db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}

			hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
			if err != nil {
				return err
			}
			user := models.User{Name: name, Email: email, PasswordHash: string(hash), Role: models.RoleAdmin}
			store := repository.NewStore(db)
			if err := store.Repos().Users.Create(cmd.Context(), &user); err != nil {
				if errors.Is(err, repository.ErrDuplicate) {
					return fmt.Errorf("a user with email %s already exists", email)
				}
				return err
			}
			log.Info().Uint("user_id", user.ID).Str("email", email).Msg("admin created")
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "Admin", "display name")
	cmd.Flags().StringVar(&email, "email", "", "login email")
	cmd.Flags().StringVar(&password, "password", "", "login password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
