package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"RecallWatch/internal/config"
	"RecallWatch/internal/domain"
	"RecallWatch/internal/infrastructure/fetcher"
	"RecallWatch/internal/infrastructure/scheduler"
	"RecallWatch/internal/infrastructure/storage"
	"RecallWatch/internal/infrastructure/telegram"
	"RecallWatch/internal/logging"
	"RecallWatch/internal/matcher"
	"RecallWatch/internal/ports"
	"RecallWatch/internal/server"
	"RecallWatch/internal/usecase"
)

const shutdownTimeout = 30 * time.Second

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg        config.Config
	logger     *slog.Logger
	repo       *storage.Repository
	controller *usecase.Controller
	scheduler  *usecase.Scheduler
	http       *echo.Echo
}

// New opens the store, applies the schema and wires every component.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	repo, err := Migrate(ctx, cfg)
	if err != nil {
		return nil, err
	}

	sources := cfg.EnabledSources()
	client := &http.Client{}
	registry := fetcher.NewRegistry(client, sources, baseLogger)
	collector := fetcher.NewCollector(registry, sources, baseLogger.With("component", "source"))

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Source:    collector,
		Store:     repo,
		Generator: matcher.NewGenerator(baseLogger.With("component", "matcher")),
		Logger:    baseLogger.With("component", "pipeline"),
	})

	var reporter ports.RunReporter
	if cfg.Notifications.Telegram.Enabled() {
		reporter = telegram.NewNotifier(cfg.Notifications.Telegram)
	}

	controller := usecase.NewController(usecase.ControllerDeps{
		Pipeline:    pipeline,
		Runs:        repo,
		Reporter:    reporter,
		Logger:      baseLogger.With("component", "controller"),
		HistorySize: cfg.Scheduler.HistorySize,
	})

	driver := scheduler.NewCronScheduler(cfg.Scheduler.Interval, cfg.Scheduler.Location(),
		baseLogger.With("component", "scheduler"))

	e := server.New(server.Deps{
		Runner:  controller,
		Runs:    repo,
		Alerts:  repo,
		Recalls: repo,
		Store:   repo,
		Logger:  baseLogger.With("component", "http"),
	})

	baseLogger.Info("application wired",
		"driver", cfg.Database.Driver, "sources", len(sources), "operator_reports", reporter != nil)

	return &Application{
		cfg:        cfg,
		logger:     baseLogger,
		repo:       repo,
		controller: controller,
		scheduler: usecase.NewScheduler(driver, controller, cfg.Scheduler.ShouldRunOnStart(),
			baseLogger.With("component", "scheduler")),
		http: e,
	}, nil
}

// Migrate opens the configured store and applies the schema.
func Migrate(ctx context.Context, cfg config.Config) (*storage.Repository, error) {
	repo, err := storage.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := repo.Migrate(ctx); err != nil {
		_ = repo.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}
	return repo, nil
}

// Serve runs the scheduler and the HTTP API until ctx is cancelled.
func (a *Application) Serve(ctx context.Context) error {
	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http listening", "addr", a.cfg.HTTP.Addr)
		if err := a.http.Start(a.cfg.HTTP.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.http.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("http shutdown", "error", err)
	}
	if err := a.scheduler.Stop(shutdownCtx); err != nil {
		a.logger.Warn("scheduler shutdown", "error", err)
	}
	return serveErr
}

// RunOnce triggers a single manual run and returns its summary.
func (a *Application) RunOnce(ctx context.Context) (domain.PipelineRun, error) {
	return a.controller.Trigger(ctx, domain.TriggerManual)
}

// Close releases the store.
func (a *Application) Close() error {
	return a.repo.Close()
}
