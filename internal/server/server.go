// Package server exposes the admin trigger, run history and the alert and
// recall read surface over HTTP with echo.
package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"RecallWatch/internal/domain"
	"RecallWatch/internal/logging"
	"RecallWatch/internal/ports"
)

// Runner is the single-flight run controller as seen by the admin surface.
type Runner interface {
	Trigger(ctx context.Context, trigger domain.RunTrigger) (domain.PipelineRun, error)
	Status() domain.RunStatus
	History() []domain.PipelineRun
}

// Pinger reports whether the recall store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps wires the handlers. Runs may be nil, in which case run history is
// served from the controller's memory.
type Deps struct {
	Runner  Runner
	Runs    ports.RunRepository
	Alerts  ports.AlertRepository
	Recalls ports.RecallReader
	Store   Pinger
	Logger  *slog.Logger
}

// New builds the echo instance with every route registered.
func New(deps Deps) *echo.Echo {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(requestLogger(logger))

	e.GET("/health", HealthHandler(deps.Store, deps.Runner))

	admin := e.Group("/admin")
	admin.POST("/refresh-recalls", RefreshHandler(deps.Runner))
	admin.GET("/runs", RunsHandler(deps.Runs, deps.Runner))

	alerts := e.Group("/alerts")
	alerts.GET("/pending", PendingAlertsHandler(deps.Alerts))
	alerts.GET("/:userId", UserAlertsHandler(deps.Alerts))
	alerts.PATCH("/:alertId/viewed", MarkViewedHandler(deps.Alerts))
	alerts.PATCH("/:alertId/notified", MarkNotifiedHandler(deps.Alerts))

	recalls := e.Group("/recalls")
	recalls.GET("", ListRecallsHandler(deps.Recalls))
	recalls.GET("/check/:upc", CheckRecallHandler(deps.Recalls))

	return e
}

func requestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			begin := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			attrs := []any{
				"method", req.Method,
				"path", req.URL.Path,
				"status", c.Response().Status,
				"elapsed", time.Since(begin),
			}
			if err != nil {
				logger.Warn("request failed", append(attrs, "error", err)...)
			} else {
				logger.Debug("request", attrs...)
			}
			return nil
		}
	}
}
