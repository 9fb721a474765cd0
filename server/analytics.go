package server

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/kestrelhq/kestrel/ai/metrics"
)

const (
	defaultTopIntents     = 5
	defaultRecentFailures = 10
)

func (s *Server) handleAnalyticsSummary(c echo.Context) error {
	if s.collector == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "analytics not configured")
	}

	hours := 24
	if raw := c.QueryParam("hours"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "hours must be an integer")
		}
		if parsed < metrics.MinWindowHours || parsed > metrics.MaxWindowHours {
			return echo.NewHTTPError(http.StatusBadRequest, "hours must be between 1 and 168")
		}
		hours = parsed
	}

	summary, err := s.collector.Summarize(c.Request().Context(), hours, defaultTopIntents, defaultRecentFailures)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to compute analytics")
	}
	return c.JSON(http.StatusOK, summary)
}
