// Command coffeectl administers a running storefront: catalog seeding,
// production reports and order-number lookups.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jogardn/roastery-orders/internal/client"
	"github.com/jogardn/roastery-orders/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	apiURL        string
	adminEmail    string
	adminPassword string
	logLevel      string

	logger = logrus.New()
)

var rootCmd = &cobra.Command{
	Use:           "coffeectl",
	Short:         "Administer the roastery storefront",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		logger = config.NewLogger(level)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", envOr("COFFEECTL_API", "http://localhost:8080"), "storefront base URL")
	rootCmd.PersistentFlags().StringVar(&adminEmail, "email", os.Getenv("COFFEECTL_EMAIL"), "admin email")
	rootCmd.PersistentFlags().StringVar(&adminPassword, "password", os.Getenv("COFFEECTL_PASSWORD"), "admin password")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level")

	rootCmd.AddCommand(seedCmd, productionCmd, orderNumberCmd, createAdminCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.WithError(err).Error("coffeectl failed")
		stop()
		os.Exit(1)
	}
}

// login returns a client holding an admin session.
func login(cmd *cobra.Command) (*client.Client, error) {
	c := client.New(apiURL, logger)
	if err := c.Login(cmd.Context(), adminEmail, adminPassword); err != nil {
		return nil, err
	}
	return c, nil
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
