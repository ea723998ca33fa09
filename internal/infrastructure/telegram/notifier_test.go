package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RecallWatch/internal/config"
	"RecallWatch/internal/domain"
)

func degradedRun() domain.PipelineRun {
	started := time.Date(2025, 1, 20, 6, 0, 0, 0, time.UTC)
	return domain.PipelineRun{
		ID:         "5d0c",
		Trigger:    domain.TriggerSchedule,
		Status:     domain.RunPartiallyFailed,
		StartedAt:  started,
		FinishedAt: started.Add(2 * time.Second),
		Fetched:    12,
		Upserted:   10,
		Inserted:   3,
		Sources: []domain.SourceResult{
			{Authority: domain.AuthorityFDA, Fetched: 12, Records: 10},
			{Authority: domain.AuthorityFSIS, Error: "fetch FSIS: context deadline exceeded"},
		},
	}
}

func TestReportRunPostsMessage(t *testing.T) {
	t.Parallel()

	forms := make(chan map[string]string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		require.NoError(t, r.ParseForm())
		forms <- map[string]string{
			"chat_id":    r.PostForm.Get("chat_id"),
			"parse_mode": r.PostForm.Get("parse_mode"),
			"text":       r.PostForm.Get("text"),
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	n := NewNotifier(config.TelegramConfig{BotToken: "TOKEN", ChatID: "42", APIURL: srv.URL + "/"})
	require.NoError(t, n.ReportRun(context.Background(), degradedRun()))
	form := <-forms

	assert.Equal(t, "42", form["chat_id"])
	assert.Equal(t, "Markdown", form["parse_mode"])
	assert.Contains(t, form["text"], "partially_failed")
	assert.Contains(t, form["text"], "FSIS failed")
}

func TestReportRunSurfacesAPIErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	n := NewNotifier(config.TelegramConfig{BotToken: "bad", ChatID: "42", APIURL: srv.URL})
	err := n.ReportRun(context.Background(), degradedRun())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestReportRunMisconfigured(t *testing.T) {
	t.Parallel()

	assert.Error(t, NewNotifier(config.TelegramConfig{}).ReportRun(context.Background(), degradedRun()))
}

func TestFormatRun(t *testing.T) {
	t.Parallel()

	msg := FormatRun(degradedRun())
	assert.Contains(t, msg, "Fetched 12, dropped 0, upserted 10 (3 new), alerts 0")
	assert.Contains(t, msg, "- FDA: 12 fetched, 10 records")
	assert.Contains(t, msg, "took 2s")
}
