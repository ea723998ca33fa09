package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	userAgent      = "RecallWatch/1.0"
	maxBodyBytes   = 32 << 20
	defaultBackoff = 500 * time.Millisecond
)

// Options configures one authority's HTTP fetcher.
type Options struct {
	BaseURL  string
	PageSize int
	Retries  int
	Backoff  time.Duration
}

// httpGetter issues GET requests, retrying transport errors, 429 and 5xx.
type httpGetter struct {
	client  *http.Client
	retries int
	backoff time.Duration
}

func newHTTPGetter(client *http.Client, opts Options) httpGetter {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	backoff := opts.Backoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	return httpGetter{client: client, retries: opts.Retries, backoff: backoff}
}

func (g httpGetter) get(ctx context.Context, rawURL string) (int, []byte, error) {
	interval := g.backoff
	var lastErr error

	for attempt := 0; attempt <= g.retries; attempt++ {
		if attempt > 0 {
			if err := wait(ctx, interval); err != nil {
				return 0, nil, fmt.Errorf("%w (last attempt: %v)", err, lastErr)
			}
			interval *= 2
		}

		status, body, err := g.once(ctx, rawURL)
		switch {
		case err != nil:
			lastErr = err
		case retryableStatus(status):
			lastErr = fmt.Errorf("upstream returned %d", status)
		default:
			return status, body, nil
		}

		if ctx.Err() != nil {
			break
		}
	}

	return 0, nil, lastErr
}

func (g httpGetter) once(ctx context.Context, rawURL string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request %s: %w", req.URL.Host, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("read body: %w", err)
	}
	return resp.StatusCode, body, nil
}

func retryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

// wait blocks for d or until ctx is done.
func wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
