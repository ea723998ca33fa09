package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"RecallWatch/internal/domain"
	"RecallWatch/internal/logging"
	"RecallWatch/internal/source"
)

const fsisBaseURL = "https://www.fsis.usda.gov/fsis/api/recall/v/1"

// FSISFetcher reads the USDA FSIS recall feed and keeps English notices in the window.
type FSISFetcher struct {
	http    httpGetter
	baseURL string
	logger  *slog.Logger
}

var _ source.Fetcher = (*FSISFetcher)(nil)

// NewFSISFetcher wires an HTTP client against the FSIS recall API.
func NewFSISFetcher(client *http.Client, opts Options, logger *slog.Logger) *FSISFetcher {
	if logger == nil {
		logger = logging.Discard()
	}
	if opts.BaseURL == "" {
		opts.BaseURL = fsisBaseURL
	}
	return &FSISFetcher{
		http:    newHTTPGetter(client, opts),
		baseURL: opts.BaseURL,
		logger:  logger,
	}
}

// Name identifies the fetcher inside the registry.
func (f *FSISFetcher) Name() string {
	return "fsis"
}

// Authority is the regulator behind the endpoint.
func (f *FSISFetcher) Authority() domain.Authority {
	return domain.AuthorityFSIS
}

// Fetch downloads the feed once and filters it to the window. Notices with an
// unreadable date are kept so the normalizer can report them.
func (f *FSISFetcher) Fetch(ctx context.Context, window domain.Window) (source.Batch, error) {
	status, body, err := f.http.get(ctx, f.baseURL)
	if err != nil {
		return source.Batch{}, err
	}
	if status != http.StatusOK {
		return source.Batch{}, fmt.Errorf("FSIS returned %d", status)
	}

	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil {
		return source.Batch{}, fmt.Errorf("decode feed: %w", err)
	}

	var (
		batch      source.Batch
		translated int
		outside    int
	)
	for i, raw := range items {
		var rec source.FSISRecall
		if err := json.Unmarshal(raw, &rec); err != nil {
			batch.Dropped = append(batch.Dropped, &domain.ParseError{
				Authority: domain.AuthorityFSIS,
				Ref:       fmt.Sprintf("#%d", i),
				Reason:    "malformed payload: " + err.Error(),
			})
			continue
		}

		if rec.Language != "" && !strings.EqualFold(rec.Language, "English") {
			translated++
			continue
		}
		if date, err := time.Parse("2006-01-02", strings.TrimSpace(rec.RecallDate)); err == nil && !window.Contains(date) {
			outside++
			continue
		}

		batch.Records = append(batch.Records, source.RawRecord{Authority: domain.AuthorityFSIS, FSIS: &rec})
	}

	f.logger.Debug("fsis feed", "items", len(items), "kept", len(batch.Records),
		"translations", translated, "outside_window", outside)
	return batch, nil
}
