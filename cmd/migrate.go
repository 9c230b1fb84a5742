package cmd

import (
	"context"

	"github.com/vibast-solutions/ms-go-identity/config"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Prepare the credential store schema",
	Long:  `Apply MySQL schema migrations or create the MongoDB indexes for the configured store driver.`,
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if err = configureLogging(cfg); err != nil {
			return err
		}

		ctx := context.Background()
		store, err := openUserStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer store.close()

		if err = store.migrate(ctx); err != nil {
			return err
		}

		logrus.WithField("driver", cfg.Store.Driver).Info("Credential store is up to date")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
