package telegram

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"RecallWatch/internal/config"
	"RecallWatch/internal/domain"
	"RecallWatch/internal/ports"
)

const defaultAPIURL = "https://api.telegram.org"

// Notifier reports degraded pipeline runs to an operator Telegram chat.
type Notifier struct {
	botToken string
	chatID   string
	apiURL   string
	client   *http.Client
}

var _ ports.RunReporter = (*Notifier)(nil)

// NewNotifier registers bot token and chat identifier.
func NewNotifier(cfg config.TelegramConfig) *Notifier {
	apiURL := strings.TrimRight(cfg.APIURL, "/")
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	return &Notifier{
		botToken: cfg.BotToken,
		chatID:   cfg.ChatID,
		apiURL:   apiURL,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

// ReportRun posts a Markdown run summary to Telegram.
func (n *Notifier) ReportRun(ctx context.Context, run domain.PipelineRun) error {
	if n.botToken == "" || n.chatID == "" || n.client == nil {
		return fmt.Errorf("telegram notifier misconfigured")
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.apiURL, n.botToken)
	form := url.Values{}
	form.Set("chat_id", n.chatID)
	form.Set("text", FormatRun(run))
	form.Set("parse_mode", "Markdown")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram error: %s", resp.Status)
	}

	return nil
}

// FormatRun renders the operator message for a run.
func FormatRun(run domain.PipelineRun) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Recall run %s*: `%s`\n", run.Status, run.ID)
	fmt.Fprintf(&b, "Trigger: %s, took %s\n", run.Trigger, run.Duration().Round(time.Millisecond))
	fmt.Fprintf(&b, "Fetched %d, dropped %d, upserted %d (%d new), alerts %d\n",
		run.Fetched, run.Dropped, run.Upserted, run.Inserted, run.AlertsCreated)

	for _, src := range run.Sources {
		if src.Failed() {
			fmt.Fprintf(&b, "- %s failed: %s\n", src.Authority, src.Error)
			continue
		}
		fmt.Fprintf(&b, "- %s: %d fetched, %d records\n", src.Authority, src.Fetched, src.Records)
	}
	if run.Error != "" {
		fmt.Fprintf(&b, "Error: %s\n", run.Error)
	}
	return b.String()
}
