package main

import (
	"github.com/spf13/cobra"

	"RecallWatch/internal/app"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the recall, alert and run tables",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	repo, err := app.Migrate(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer repo.Close()

	logger.Info("schema up to date", "driver", repo.Driver())
	return nil
}
