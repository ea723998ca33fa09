package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"RecallWatch/internal/domain"
	"RecallWatch/internal/logging"
	"RecallWatch/internal/source"
)

const (
	fdaBaseURL     = "https://api.fda.gov/food/enforcement.json"
	fdaDateLayout  = "20060102"
	fdaMaxSkip     = 25000
	fdaMaxPageSize = 1000
)

// FDAFetcher pages through the openFDA food enforcement endpoint.
type FDAFetcher struct {
	http     httpGetter
	baseURL  string
	pageSize int
	logger   *slog.Logger
}

var _ source.Fetcher = (*FDAFetcher)(nil)

type fdaPage struct {
	Meta struct {
		Results struct {
			Skip  int `json:"skip"`
			Limit int `json:"limit"`
			Total int `json:"total"`
		} `json:"results"`
	} `json:"meta"`
	Results []json.RawMessage `json:"results"`
}

// NewFDAFetcher wires an HTTP client; pageSize defaults to 100.
func NewFDAFetcher(client *http.Client, opts Options, logger *slog.Logger) *FDAFetcher {
	if logger == nil {
		logger = logging.Discard()
	}
	if opts.BaseURL == "" {
		opts.BaseURL = fdaBaseURL
	}
	if opts.PageSize <= 0 || opts.PageSize > fdaMaxPageSize {
		opts.PageSize = 100
	}
	return &FDAFetcher{
		http:     newHTTPGetter(client, opts),
		baseURL:  opts.BaseURL,
		pageSize: opts.PageSize,
		logger:   logger,
	}
}

// Name identifies the fetcher inside the registry.
func (f *FDAFetcher) Name() string {
	return "fda"
}

// Authority is the regulator behind the endpoint.
func (f *FDAFetcher) Authority() domain.Authority {
	return domain.AuthorityFDA
}

// Fetch returns every enforcement report whose report date falls inside window.
func (f *FDAFetcher) Fetch(ctx context.Context, window domain.Window) (source.Batch, error) {
	var batch source.Batch

	for skip := 0; ; skip += f.pageSize {
		pageURL, err := buildPageURL(f.baseURL, window, skip, f.pageSize)
		if err != nil {
			return source.Batch{}, err
		}

		status, body, err := f.http.get(ctx, pageURL)
		if err != nil {
			return source.Batch{}, err
		}
		// openFDA answers 404 when the search matches nothing.
		if status == http.StatusNotFound {
			break
		}
		if status != http.StatusOK {
			return source.Batch{}, fmt.Errorf("openFDA returned %d", status)
		}

		var page fdaPage
		if err := json.Unmarshal(body, &page); err != nil {
			return source.Batch{}, fmt.Errorf("decode page skip=%d: %w", skip, err)
		}

		for i, raw := range page.Results {
			var rec source.FDAEnforcement
			if err := json.Unmarshal(raw, &rec); err != nil {
				batch.Dropped = append(batch.Dropped, &domain.ParseError{
					Authority: domain.AuthorityFDA,
					Ref:       fmt.Sprintf("skip=%d#%d", skip, i),
					Reason:    "malformed payload: " + err.Error(),
				})
				continue
			}
			batch.Records = append(batch.Records, source.RawRecord{Authority: domain.AuthorityFDA, FDA: &rec})
		}

		f.logger.Debug("fda page", "skip", skip, "results", len(page.Results), "total", page.Meta.Results.Total)

		total := page.Meta.Results.Total
		if len(page.Results) < f.pageSize || (total > 0 && skip+f.pageSize >= total) || skip+f.pageSize > fdaMaxSkip {
			break
		}
	}

	return batch, nil
}

func buildPageURL(base string, window domain.Window, skip, pageSize int) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid openFDA url %s: %w", base, err)
	}

	query := parsed.Query()
	query.Set("search", fmt.Sprintf("report_date:[%s TO %s]",
		window.From.Format(fdaDateLayout), window.To.Format(fdaDateLayout)))
	query.Set("sort", "report_date:asc")
	query.Set("limit", strconv.Itoa(pageSize))
	query.Set("skip", strconv.Itoa(skip))
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
