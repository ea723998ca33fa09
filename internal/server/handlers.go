package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"RecallWatch/internal/domain"
	"RecallWatch/internal/ports"
)

type errorBody struct {
	Error string `json:"error"`
}

type runSummary struct {
	RunID         string                `json:"run_id"`
	Trigger       domain.RunTrigger     `json:"trigger"`
	Status        domain.RunStatus      `json:"status"`
	Fetched       int                   `json:"fetched"`
	Dropped       int                   `json:"dropped"`
	Upserted      int                   `json:"upserted"`
	Inserted      int                   `json:"inserted"`
	Updated       int                   `json:"updated"`
	AlertsCreated int                   `json:"alerts_created"`
	Sources       []domain.SourceResult `json:"sources"`
	StartedAt     time.Time             `json:"started_at"`
	FinishedAt    *time.Time            `json:"finished_at,omitempty"`
	Error         string                `json:"error,omitempty"`
}

func toRunSummary(run domain.PipelineRun) runSummary {
	out := runSummary{
		RunID:         run.ID,
		Trigger:       run.Trigger,
		Status:        run.Status,
		Fetched:       run.Fetched,
		Dropped:       run.Dropped,
		Upserted:      run.Upserted,
		Inserted:      run.Inserted,
		Updated:       run.Updated,
		AlertsCreated: run.AlertsCreated,
		Sources:       run.Sources,
		StartedAt:     run.StartedAt,
		Error:         run.Error,
	}
	if out.Sources == nil {
		out.Sources = []domain.SourceResult{}
	}
	if !run.FinishedAt.IsZero() {
		finished := run.FinishedAt
		out.FinishedAt = &finished
	}
	return out
}

type recallBody struct {
	ID           int64     `json:"id"`
	UPC          string    `json:"upc"`
	ProductName  string    `json:"product_name"`
	BrandName    string    `json:"brand_name"`
	RecallDate   string    `json:"recall_date"`
	Reason       string    `json:"reason"`
	HazardTier   string    `json:"hazard_tier"`
	FirmName     string    `json:"firm_name"`
	Distribution string    `json:"distribution"`
	Source       string    `json:"source"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toRecallBody(rec domain.RecallRecord) recallBody {
	return recallBody{
		ID:           rec.ID,
		UPC:          rec.ProductID,
		ProductName:  rec.ProductName,
		BrandName:    rec.BrandName,
		RecallDate:   rec.RecallDate.Format(time.DateOnly),
		Reason:       rec.Reason,
		HazardTier:   rec.HazardTier.String(),
		FirmName:     rec.FirmName,
		Distribution: rec.Distribution,
		Source:       string(rec.Source),
		UpdatedAt:    rec.UpdatedAt,
	}
}

type alertBody struct {
	ID        int64       `json:"id"`
	UserID    string      `json:"user_id"`
	RecallID  int64       `json:"recall_id"`
	UPC       string      `json:"upc"`
	CreatedAt time.Time   `json:"created_at"`
	Viewed    bool        `json:"viewed"`
	Notified  bool        `json:"notified"`
	Recall    *recallBody `json:"recall,omitempty"`
}

func toAlertBody(a domain.Alert) alertBody {
	return alertBody{
		ID:        a.ID,
		UserID:    a.UserID,
		RecallID:  a.RecallID,
		UPC:       a.ProductID,
		CreatedAt: a.CreatedAt,
		Viewed:    a.Viewed,
		Notified:  a.Notified,
	}
}

// RefreshHandler triggers a run and answers with its summary. A concurrent
// trigger gets 409; a Failed run is reported with 503 and its summary.
func RefreshHandler(runner Runner) echo.HandlerFunc {
	return func(c echo.Context) error {
		// The run outlives a disconnecting client.
		ctx := context.WithoutCancel(c.Request().Context())

		run, err := runner.Trigger(ctx, domain.TriggerManual)
		switch {
		case errors.Is(err, domain.ErrAlreadyRunning):
			return c.JSON(http.StatusConflict, errorBody{Error: domain.ErrAlreadyRunning.Error()})
		case err != nil:
			return c.JSON(http.StatusServiceUnavailable, toRunSummary(run))
		}
		return c.JSON(http.StatusOK, toRunSummary(run))
	}
}

// RunsHandler lists recent runs, newest first.
func RunsHandler(runs ports.RunRepository, runner Runner) echo.HandlerFunc {
	return func(c echo.Context) error {
		limit, err := limitParam(c, 20)
		if err != nil {
			return err
		}

		var history []domain.PipelineRun
		if runs != nil {
			history, err = runs.ListRuns(c.Request().Context(), limit)
			if err != nil {
				return storeError(err)
			}
		} else {
			history = runner.History()
			if len(history) > limit {
				history = history[:limit]
			}
		}

		out := make([]runSummary, 0, len(history))
		for _, run := range history {
			out = append(out, toRunSummary(run))
		}
		return c.JSON(http.StatusOK, out)
	}
}

// UserAlertsHandler returns a user's alerts joined with recall details.
func UserAlertsHandler(alerts ports.AlertRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID := c.Param("userId")
		if userID == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "user id is required")
		}

		views, err := alerts.AlertsForUser(c.Request().Context(), userID)
		if err != nil {
			return storeError(err)
		}

		out := make([]alertBody, 0, len(views))
		for _, view := range views {
			body := toAlertBody(view.Alert)
			recall := toRecallBody(view.Recall)
			body.Recall = &recall
			out = append(out, body)
		}
		return c.JSON(http.StatusOK, out)
	}
}

// PendingAlertsHandler serves the notification dispatcher.
func PendingAlertsHandler(alerts ports.AlertRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		limit, err := limitParam(c, 100)
		if err != nil {
			return err
		}

		pending, err := alerts.PendingAlerts(c.Request().Context(), limit)
		if err != nil {
			return storeError(err)
		}

		out := make([]alertBody, 0, len(pending))
		for _, a := range pending {
			out = append(out, toAlertBody(a))
		}
		return c.JSON(http.StatusOK, out)
	}
}

// MarkViewedHandler sets viewed=true on an alert.
func MarkViewedHandler(alerts ports.AlertRepository) echo.HandlerFunc {
	return markHandler(alerts.MarkViewed)
}

// MarkNotifiedHandler sets notified=true on an alert. It is never reset.
func MarkNotifiedHandler(alerts ports.AlertRepository) echo.HandlerFunc {
	return markHandler(alerts.MarkNotified)
}

func markHandler(mark func(ctx context.Context, alertID int64) error) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := strconv.ParseInt(c.Param("alertId"), 10, 64)
		if err != nil || id <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "alert id must be a positive integer")
		}

		if err := mark(c.Request().Context(), id); err != nil {
			return storeError(err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

// ListRecallsHandler lists stored recalls, newest first.
func ListRecallsHandler(recalls ports.RecallReader) echo.HandlerFunc {
	return func(c echo.Context) error {
		limit, err := limitParam(c, 50)
		if err != nil {
			return err
		}

		recs, err := recalls.ListRecalls(c.Request().Context(), limit)
		if err != nil {
			return storeError(err)
		}

		out := make([]recallBody, 0, len(recs))
		for _, rec := range recs {
			out = append(out, toRecallBody(rec))
		}
		return c.JSON(http.StatusOK, out)
	}
}

type checkBody struct {
	UPC        string      `json:"upc"`
	IsRecalled bool        `json:"is_recalled"`
	Recall     *recallBody `json:"recall,omitempty"`
}

// CheckRecallHandler tells whether a product identifier has any recall.
func CheckRecallHandler(recalls ports.RecallReader) echo.HandlerFunc {
	return func(c echo.Context) error {
		upc := c.Param("upc")
		rec, err := recalls.LatestRecall(c.Request().Context(), upc)
		if errors.Is(err, domain.ErrNotFound) {
			return c.JSON(http.StatusOK, checkBody{UPC: upc})
		}
		if err != nil {
			return storeError(err)
		}

		body := toRecallBody(rec)
		return c.JSON(http.StatusOK, checkBody{UPC: upc, IsRecalled: true, Recall: &body})
	}
}

// HealthHandler pings the store and reports the controller state.
func HealthHandler(store Pinger, runner Runner) echo.HandlerFunc {
	return func(c echo.Context) error {
		body := map[string]string{"status": "ok"}
		if runner != nil {
			body["run_status"] = string(runner.Status())
		}

		if store != nil {
			if err := store.Ping(c.Request().Context()); err != nil {
				body["status"] = "unavailable"
				body["error"] = err.Error()
				return c.JSON(http.StatusServiceUnavailable, body)
			}
		}
		return c.JSON(http.StatusOK, body)
	}
}

func limitParam(c echo.Context, fallback int) (int, error) {
	raw := c.QueryParam("limit")
	if raw == "" {
		return fallback, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
	}
	return limit, nil
}

func storeError(err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error()).SetInternal(err)
	case errors.Is(err, domain.ErrStoreUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "store unavailable").SetInternal(err)
	default:
		return echo.NewHTTPError(http.StatusInternalServerError).SetInternal(err)
	}
}
