package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelhq/kestrel/ai/intent"
	"github.com/kestrelhq/kestrel/ai/metrics"
	"github.com/kestrelhq/kestrel/ai/pipeline"
	"github.com/kestrelhq/kestrel/ai/routing"
	"github.com/kestrelhq/kestrel/ai/trust"
	"github.com/kestrelhq/kestrel/internal/profile"
	"github.com/kestrelhq/kestrel/server/auth"
	"github.com/kestrelhq/kestrel/store"
	"github.com/kestrelhq/kestrel/store/db/sqlite"
)

func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()

	p := &profile.Profile{
		Mode:          "dev",
		Driver:        "sqlite",
		DSN:           filepath.Join(t.TempDir(), "kestrel_test.db"),
		SessionSecret: "test-secret",
	}

	driver, err := sqlite.NewDB(p)
	require.NoError(t, err)
	st := store.New(driver, p)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	reg := intent.DefaultRegistry()
	execs := pipeline.NewExecutorRegistry()
	for _, def := range reg.SideEffecting() {
		execs.Register(def.Intent, pipeline.ExecutorFunc(func(context.Context, *pipeline.Turn, *routing.Result) (string, error) {
			return "Done.", nil
		}))
	}

	collector := metrics.NewCollector(metrics.CollectorConfig{Sink: st.Metrics(), QueueSize: 32})
	t.Cleanup(collector.Close)

	pl, err := pipeline.New(pipeline.Config{
		Registry: reg,
		Chain: routing.NewChain(routing.ChainConfig{
			Registry: reg,
			Context:  st.ConversationContext(),
		}),
		Gate:      trust.NewGate(st.Allowlist(), nil),
		Executors: execs,
		Collector: collector,
	})
	require.NoError(t, err)

	srv, err := NewServer(p, st, pl, collector, nil, nil)
	require.NoError(t, err)
	return srv, st
}

func bearerToken(t *testing.T, secret string) string {
	t.Helper()
	token, err := auth.GenerateAccessToken(1, "s1", time.Now().Add(time.Hour), []byte(secret))
	require.NoError(t, err)
	return "Bearer " + token
}

func TestChatRequiresAuth(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(`{"message":"hi"}`))
	req.Header.Set(echoContentType, "application/json")
	rec := httptest.NewRecorder()
	srv.echoServer.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

const echoContentType = "Content-Type"

func TestChatExecutesTrustedCommand(t *testing.T) {
	srv, st := newTestServer(t)

	body := `{"message":"turn on the kitchen light","session_id":"s1"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(body))
	req.Header.Set(echoContentType, "application/json")
	req.Header.Set("Authorization", bearerToken(t, "test-secret"))
	rec := httptest.NewRecorder()
	srv.echoServer.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp chatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "device_control", resp.Intent)
	assert.Equal(t, 0, resp.Tier)
	assert.True(t, resp.Executed)
	assert.Equal(t, string(trust.ModeAct), resp.TrustMode)

	// Both sides of the exchange land in history.
	sessionID := "s1"
	turns, err := st.ListConversationTurns(context.Background(), &store.FindConversationTurn{SessionID: &sessionID})
	require.NoError(t, err)
	assert.Len(t, turns, 2)
}

func TestChatRejectsUnknownChannel(t *testing.T) {
	srv, _ := newTestServer(t)

	body := `{"message":"hello","channel":"email"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(body))
	req.Header.Set(echoContentType, "application/json")
	req.Header.Set("Authorization", bearerToken(t, "test-secret"))
	rec := httptest.NewRecorder()
	srv.echoServer.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyticsWindowValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/analytics/summary?hours=999", nil)
	req.Header.Set("Authorization", bearerToken(t, "test-secret"))
	rec := httptest.NewRecorder()
	srv.echoServer.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAllowlistCRUD(t *testing.T) {
	srv, _ := newTestServer(t)
	token := bearerToken(t, "test-secret")

	body := `{"contact_type":"email","contact_value":"mom@example.com","permissions":["calendar"],"label":"Mom"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/allowlist", strings.NewReader(body))
	req.Header.Set(echoContentType, "application/json")
	req.Header.Set("Authorization", token)
	rec := httptest.NewRecorder()
	srv.echoServer.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var entry store.AllowlistEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entry))
	assert.NotZero(t, entry.ID)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/allowlist", nil)
	req.Header.Set("Authorization", token)
	rec = httptest.NewRecorder()
	srv.echoServer.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "mom@example.com")
}

func TestAllowlistRejectsUnknownPermission(t *testing.T) {
	srv, _ := newTestServer(t)

	body := `{"contact_type":"email","contact_value":"x@example.com","permissions":["sudo"]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/allowlist", strings.NewReader(body))
	req.Header.Set(echoContentType, "application/json")
	req.Header.Set("Authorization", bearerToken(t, "test-secret"))
	rec := httptest.NewRecorder()
	srv.echoServer.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.echoServer.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
