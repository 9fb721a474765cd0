package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/kestrelhq/kestrel/ai/intent"
	"github.com/kestrelhq/kestrel/store"
)

type upsertAllowlistRequest struct {
	ContactType  string   `json:"contact_type"`
	ContactValue string   `json:"contact_value"`
	Permissions  []string `json:"permissions"`
	Label        string   `json:"label"`
	Condition    string   `json:"condition"`
}

var validPermissions = map[string]bool{
	intent.PermissionAll:      true,
	intent.PermissionDevice:   true,
	intent.PermissionCalendar: true,
	intent.PermissionLists:    true,
	intent.PermissionJournal:  true,
	intent.PermissionRead:     true,
}

func (s *Server) handleListAllowlist(c echo.Context) error {
	userID := requestUserID(c)
	entries, err := s.store.ListAllowlistEntries(c.Request().Context(), &store.FindAllowlistEntry{UserID: &userID})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list allowlist")
	}
	return c.JSON(http.StatusOK, entries)
}

func (s *Server) handleUpsertAllowlist(c echo.Context) error {
	var req upsertAllowlistRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	req.ContactType = strings.TrimSpace(req.ContactType)
	req.ContactValue = strings.TrimSpace(req.ContactValue)
	if req.ContactType == "" || req.ContactValue == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "contact_type and contact_value are required")
	}
	if len(req.Permissions) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "at least one permission is required")
	}
	for _, p := range req.Permissions {
		if !validPermissions[p] {
			return echo.NewHTTPError(http.StatusBadRequest, "unknown permission: "+p)
		}
	}

	entry, err := s.store.UpsertAllowlistEntry(c.Request().Context(), &store.UpsertAllowlistEntry{
		UserID:       requestUserID(c),
		ContactType:  req.ContactType,
		ContactValue: req.ContactValue,
		Permissions:  req.Permissions,
		Label:        req.Label,
		Condition:    req.Condition,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to save allowlist entry")
	}
	return c.JSON(http.StatusOK, entry)
}

func (s *Server) handleDeleteAllowlist(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid entry id")
	}

	err = s.store.DeleteAllowlistEntry(c.Request().Context(), &store.DeleteAllowlistEntry{
		ID:     int32(id),
		UserID: requestUserID(c),
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to delete allowlist entry")
	}
	return c.NoContent(http.StatusNoContent)
}
