package server

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/kestrelhq/kestrel/server/auth"
)

const (
	userIDContextKey    = "user_id"
	sessionIDContextKey = "session_id"
)

// authMiddleware verifies the bearer token and stamps the user onto the
// request. Every /api/v1 route requires a valid first-party session.
func (s *Server) authMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
		}

		userID, sessionID, err := auth.VerifyAccessToken(token, []byte(s.profile.SessionSecret))
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
		}

		c.Set(userIDContextKey, userID)
		c.Set(sessionIDContextKey, sessionID)
		c.SetRequest(c.Request().WithContext(auth.ContextWithUserID(c.Request().Context(), userID)))
		return next(c)
	}
}

func requestUserID(c echo.Context) int32 {
	userID, _ := c.Get(userIDContextKey).(int32)
	return userID
}

func requestSessionID(c echo.Context) string {
	sessionID, _ := c.Get(sessionIDContextKey).(string)
	return sessionID
}
