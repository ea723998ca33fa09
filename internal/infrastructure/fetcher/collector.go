package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"RecallWatch/internal/config"
	"RecallWatch/internal/domain"
	"RecallWatch/internal/logging"
	"RecallWatch/internal/ports"
	"RecallWatch/internal/source"
)

// Collector implements ports.RecallSource by running every configured fetcher
// concurrently, each under its own timeout.
type Collector struct {
	registry *source.Registry
	sources  []config.SourceConfig
	logger   *slog.Logger
}

var _ ports.RecallSource = (*Collector)(nil)

// NewCollector wires the fetcher registry with config-defined sources.
func NewCollector(reg *source.Registry, sources []config.SourceConfig, log *slog.Logger) *Collector {
	if log == nil {
		log = logging.Discard()
	}
	return &Collector{
		registry: reg,
		sources:  sources,
		logger:   log,
	}
}

// NewRegistry builds fetchers for the known authorities from config.
func NewRegistry(client *http.Client, sources []config.SourceConfig, log *slog.Logger) *source.Registry {
	if log == nil {
		log = logging.Discard()
	}
	reg := source.NewRegistry()
	for _, src := range sources {
		opts := Options{BaseURL: src.BaseURL, PageSize: src.PageSize, Retries: src.RetryCount()}
		switch strings.ToLower(src.Name) {
		case "fda":
			reg.Register(NewFDAFetcher(client, opts, log.With("component", "fetcher.fda")))
		case "fsis":
			reg.Register(NewFSISFetcher(client, opts, log.With("component", "fetcher.fsis")))
		default:
			log.Warn("no fetcher for configured source", "source", src.Name)
		}
	}
	return reg
}

// Collect fetches every source for the window ending at now. A failing source
// never affects the others; its outcome carries a *domain.NetworkError.
func (c *Collector) Collect(ctx context.Context, now time.Time) []source.Outcome {
	outcomes := make([]source.Outcome, len(c.sources))

	var g errgroup.Group
	for i, src := range c.sources {
		window := domain.Window{From: now.Add(-src.Lookback), To: now}
		outcomes[i] = source.Outcome{
			Name:      src.Name,
			Authority: domain.Authority(strings.ToUpper(src.Name)),
			Window:    window,
		}

		if c.registry == nil {
			outcomes[i].Err = fmt.Errorf("fetcher registry is not configured")
			continue
		}
		fetcher, err := c.registry.Resolve(src.Name)
		if err != nil {
			outcomes[i].Err = err
			continue
		}
		outcomes[i].Authority = fetcher.Authority()

		g.Go(func() error {
			fctx, cancel := context.WithTimeout(ctx, src.Timeout)
			defer cancel()

			started := time.Now()
			batch, err := fetcher.Fetch(fctx, window)
			if err != nil {
				outcomes[i].Err = &domain.NetworkError{Authority: fetcher.Authority(), Err: err}
				c.logger.Warn("source fetch failed",
					"source", src.Name, "elapsed", time.Since(started), "error", err)
				return nil
			}

			outcomes[i].Batch = batch
			c.logger.Debug("source fetched",
				"source", src.Name, "records", len(batch.Records), "dropped", len(batch.Dropped),
				"elapsed", time.Since(started))
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}
