// Package main is the recallwatch command: the recall ingestion service,
// one-shot refreshes and schema migration.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"RecallWatch/internal/config"
	"RecallWatch/internal/logging"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "recallwatch",
	Short:         "Food recall ingestion and alert generation",
	Long:          "recallwatch pulls FDA and USDA FSIS recalls, stores them idempotently and alerts users whose saved products were recalled.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to the YAML config (overrides "+config.ConfigPathEnv+")")
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig resolves and validates configuration and builds the root logger.
func loadConfig() (config.Config, *slog.Logger, error) {
	if configPath != "" {
		if err := os.Setenv(config.ConfigPathEnv, configPath); err != nil {
			return config.Config{}, nil, fmt.Errorf("set config path: %w", err)
		}
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logging.New(cfg.Logging.Level, cfg.Logging.Format), nil
}
