package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/kestrelhq/kestrel/store"
)

const defaultAuditLimit = 50

func (s *Server) handleListTrustDecisions(c echo.Context) error {
	userID := requestUserID(c)
	find := &store.FindTrustDecision{UserID: &userID, Limit: auditLimit(c)}
	if mode := strings.ToUpper(c.QueryParam("mode")); mode != "" {
		if mode != "ACT" && mode != "READ" {
			return echo.NewHTTPError(http.StatusBadRequest, "mode must be ACT or READ")
		}
		find.Mode = &mode
	}

	decisions, err := s.store.ListTrustDecisions(c.Request().Context(), find)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list trust decisions")
	}
	return c.JSON(http.StatusOK, decisions)
}

func (s *Server) handleListGroundingViolations(c echo.Context) error {
	userID := requestUserID(c)
	violations, err := s.store.ListGroundingViolations(c.Request().Context(), &store.FindGroundingViolation{
		UserID: &userID,
		Limit:  auditLimit(c),
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list grounding violations")
	}
	return c.JSON(http.StatusOK, violations)
}

func auditLimit(c echo.Context) int {
	if raw := c.QueryParam("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil && limit > 0 && limit <= 500 {
			return limit
		}
	}
	return defaultAuditLimit
}
