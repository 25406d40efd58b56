package main

import (
	"fmt"

	"github.com/jogardn/roastery-orders/internal/auth"
	"github.com/jogardn/roastery-orders/internal/config"
	"github.com/jogardn/roastery-orders/internal/store"
	"github.com/jogardn/roastery-orders/pkg/models"
	"github.com/spf13/cobra"
)

var adminName string

// createAdminCmd bootstraps the first admin straight into the database, since
// the API only lets admins create accounts.
var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an admin account directly in the database",
	Long: `Create an admin account using --email and --password. Connects to
PostgreSQL with the same DB_* environment variables as the storefront.`,
	RunE: runCreateAdmin,
}

func init() {
	createAdminCmd.Flags().StringVar(&adminName, "name", "Administrator", "display name")
}

func runCreateAdmin(cmd *cobra.Command, args []string) error {
	if adminEmail == "" {
		return fmt.Errorf("--email is required")
	}
	hash, err := auth.HashPassword(adminPassword)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	st, err := store.Open(cmd.Context(), cfg.DB.DSN(), logger)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Migrate(cmd.Context()); err != nil {
		return err
	}

	user := &models.User{
		Email:        adminEmail,
		Name:         adminName,
		Role:         models.RoleAdmin,
		IsActive:     true,
		PasswordHash: hash,
	}
	if err := st.CreateUser(cmd.Context(), user); err != nil {
		return fmt.Errorf("create admin %s: %w", adminEmail, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created admin %s (%s)\n", user.Email, user.ID)
	return nil
}
