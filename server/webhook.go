package server

import (
	"crypto/subtle"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/kestrelhq/kestrel/ai/pipeline"
	"github.com/kestrelhq/kestrel/plugin/channels/telegram"
)

// defaultOwnerUserID is the assistant owner in a single-owner deployment.
// Third-party channels act on this user's allowlist.
const defaultOwnerUserID int32 = 1

func (s *Server) handleTelegramWebhook(c echo.Context) error {
	// The bot token in the path is the shared secret Telegram echoes back.
	token := c.Param("token")
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.telegram.Token())) != 1 {
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	}

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, 1<<20))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable body")
	}

	msg, err := s.telegram.ParseUpdate(body)
	if err != nil {
		if errors.Is(err, telegram.ErrInvalidPayload) {
			// Acknowledge so Telegram stops retrying updates we cannot use.
			return c.NoContent(http.StatusOK)
		}
		return echo.NewHTTPError(http.StatusBadRequest, "invalid update")
	}

	out := s.pipeline.Run(c.Request().Context(), &pipeline.Turn{
		UserID:      defaultOwnerUserID,
		SessionID:   fmt.Sprintf("telegram:%d", msg.ChatID),
		Text:        msg.Content,
		SourceType:  "telegram",
		SourceValue: msg.PlatformUserID,
		Channel:     "telegram",
	})

	if err := s.telegram.Reply(c.Request().Context(), msg.ChatID, out.Response); err != nil {
		slog.Warn("failed to reply on telegram", "chat_id", msg.ChatID, "error", err)
	}
	return c.NoContent(http.StatusOK)
}
