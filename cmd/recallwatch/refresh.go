package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"RecallWatch/internal/app"
	"RecallWatch/internal/domain"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Run the recall pipeline once",
	Long:  `Fetch, normalize and store recalls once, generate alerts, and print the run summary as JSON. Exits non-zero when the run failed.`,
	RunE:  runRefresh,
}

func init() {
	rootCmd.AddCommand(refreshCmd)
}

func runRefresh(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	application, err := app.New(cmd.Context(), cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	defer application.Close()

	run, runErr := application.RunOnce(cmd.Context())

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary(run)); err != nil {
		return fmt.Errorf("print summary: %w", err)
	}

	if run.Status == domain.RunFailed {
		return fmt.Errorf("run %s failed: %w", run.ID, runErr)
	}
	return nil
}

type runOutput struct {
	RunID         string                `json:"run_id"`
	Status        domain.RunStatus      `json:"status"`
	Fetched       int                   `json:"fetched"`
	Dropped       int                   `json:"dropped"`
	Upserted      int                   `json:"upserted"`
	Inserted      int                   `json:"inserted"`
	Updated       int                   `json:"updated"`
	AlertsCreated int                   `json:"alerts_created"`
	Sources       []domain.SourceResult `json:"sources"`
	Duration      string                `json:"duration"`
	Error         string                `json:"error,omitempty"`
}

func summary(run domain.PipelineRun) runOutput {
	return runOutput{
		RunID:         run.ID,
		Status:        run.Status,
		Fetched:       run.Fetched,
		Dropped:       run.Dropped,
		Upserted:      run.Upserted,
		Inserted:      run.Inserted,
		Updated:       run.Updated,
		AlertsCreated: run.AlertsCreated,
		Sources:       run.Sources,
		Duration:      run.Duration().String(),
		Error:         run.Error,
	}
}
