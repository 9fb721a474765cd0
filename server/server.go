// Package server exposes the assistant over HTTP: the first-party chat API,
// analytics, allowlist management, audit views, Prometheus metrics and the
// Telegram webhook ingress.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/kestrelhq/kestrel/ai/metrics"
	"github.com/kestrelhq/kestrel/ai/pipeline"
	"github.com/kestrelhq/kestrel/internal/profile"
	"github.com/kestrelhq/kestrel/plugin/channels/telegram"
	"github.com/kestrelhq/kestrel/store"
)

// Server is the HTTP surface of the assistant.
type Server struct {
	profile   *profile.Profile
	store     *store.Store
	pipeline  *pipeline.Pipeline
	collector *metrics.Collector
	exporter  *metrics.PrometheusExporter
	telegram  *telegram.Channel

	echoServer *echo.Echo
}

// NewServer creates the HTTP server and registers all routes. telegram may
// be nil when no bot token is configured.
func NewServer(p *profile.Profile, st *store.Store, pl *pipeline.Pipeline, collector *metrics.Collector, exporter *metrics.PrometheusExporter, tg *telegram.Channel) (*Server, error) {
	if p.SessionSecret == "" {
		return nil, errors.New("session secret required")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	s := &Server{
		profile:    p,
		store:      st,
		pipeline:   pl,
		collector:  collector,
		exporter:   exporter,
		telegram:   tg,
		echoServer: e,
	}

	e.GET("/healthz", s.handleHealthz)
	if exporter != nil {
		e.GET("/metrics", echo.WrapHandler(exporter.Handler()))
	}

	api := e.Group("/api/v1", s.authMiddleware)
	api.POST("/chat", s.handleChat)
	api.GET("/analytics/summary", s.handleAnalyticsSummary)
	api.GET("/allowlist", s.handleListAllowlist)
	api.POST("/allowlist", s.handleUpsertAllowlist)
	api.DELETE("/allowlist/:id", s.handleDeleteAllowlist)
	api.GET("/audit/trust", s.handleListTrustDecisions)
	api.GET("/audit/grounding", s.handleListGroundingViolations)

	if tg != nil {
		e.POST("/webhooks/telegram/:token", s.handleTelegramWebhook)
	}

	return s, nil
}

// Start serves until the context is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.profile.Addr, s.profile.Port)
	slog.Info("http server listening", "addr", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.echoServer.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "http server")
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.echoServer.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
