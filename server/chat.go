package server

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/lithammer/shortuuid/v4"

	"github.com/kestrelhq/kestrel/ai/pipeline"
	"github.com/kestrelhq/kestrel/store"
)

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
	// Channel is the first-party surface the message came from. Defaults
	// to "web"; anything outside the known first-party set is rejected.
	Channel string `json:"channel"`
}

type chatResponse struct {
	Response   string  `json:"response"`
	SessionID  string  `json:"session_id"`
	Intent     string  `json:"intent"`
	Tier       int     `json:"tier"`
	Confidence float32 `json:"confidence"`
	TrustMode  string  `json:"trust_mode"`
	Executed   bool    `json:"executed"`
	Unresolved bool    `json:"unresolved"`
	LatencyMs  int64   `json:"latency_ms"`
}

var allowedChatChannels = map[string]bool{
	"web":   true,
	"app":   true,
	"voice": true,
}

func (s *Server) handleChat(c echo.Context) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}
	if req.Channel == "" {
		req.Channel = "web"
	}
	if !allowedChatChannels[req.Channel] {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown channel")
	}

	userID := requestUserID(c)
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = requestSessionID(c)
	}
	if sessionID == "" {
		sessionID = shortuuid.New()
	}

	out := s.pipeline.Run(c.Request().Context(), &pipeline.Turn{
		UserID:        userID,
		SessionID:     sessionID,
		Text:          req.Message,
		SourceType:    "session",
		SourceValue:   sessionID,
		Channel:       req.Channel,
		Authenticated: true,
	})

	s.persistTurns(c, userID, sessionID, req.Message, out)

	resp := &chatResponse{
		Response:   out.Response,
		SessionID:  sessionID,
		Tier:       out.Result.Tier,
		Confidence: out.Confidence,
		Executed:   out.Executed,
		Unresolved: out.Result.Unresolved,
		LatencyMs:  out.LatencyMs,
	}
	if !out.Result.Unresolved {
		resp.Intent = string(out.Result.Intent)
	}
	if out.Decision != nil {
		resp.TrustMode = string(out.Decision.Mode)
	}
	return c.JSON(http.StatusOK, resp)
}

// slotEntityKinds maps classifier slots worth remembering to entity kinds
// for later reference resolution.
var slotEntityKinds = map[string]string{
	"device": "device",
	"room":   "room",
	"topic":  "topic",
	"list":   "list",
}

// persistTurns appends both sides of the exchange to conversation history
// and tracks entities the user mentioned. History failures are logged, not
// surfaced; the response has already been produced.
func (s *Server) persistTurns(c echo.Context, userID int32, sessionID, message string, out *pipeline.Outcome) {
	if s.store == nil || sessionID == "" {
		return
	}
	ctx := c.Request().Context()

	intentName := ""
	if !out.Result.Unresolved {
		intentName = string(out.Result.Intent)
	}
	if _, err := s.store.CreateConversationTurn(ctx, &store.CreateConversationTurn{
		UserID:    userID,
		SessionID: sessionID,
		Role:      "user",
		Text:      message,
		Intent:    intentName,
	}); err != nil {
		slog.Warn("failed to persist user turn", "session_id", sessionID, "error", err)
	}
	if _, err := s.store.CreateConversationTurn(ctx, &store.CreateConversationTurn{
		UserID:    userID,
		SessionID: sessionID,
		Role:      "assistant",
		Text:      out.Response,
	}); err != nil {
		slog.Warn("failed to persist assistant turn", "session_id", sessionID, "error", err)
	}

	for slot, kind := range slotEntityKinds {
		name, ok := out.Result.Slots[slot]
		if !ok || name == "" {
			continue
		}
		if _, err := s.store.UpsertKnownEntity(ctx, &store.UpsertKnownEntity{
			UserID:    userID,
			SessionID: sessionID,
			Name:      name,
			Kind:      kind,
		}); err != nil {
			slog.Warn("failed to record known entity", "name", name, "error", err)
		}
	}
}
