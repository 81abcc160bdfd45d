package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/keladiary/core/internal/adapters/repository"
	"github.com/keladiary/core/internal/infrastructure/config"
	"github.com/keladiary/core/internal/infrastructure/logger"
	"github.com/keladiary/core/internal/infrastructure/metrics"
	"github.com/keladiary/core/internal/ports"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	)
}

func newTestServer(t *testing.T, mutate func(*config.Config)) (*Server, *App) {
	t.Helper()

	cfg := config.Default()
	cfg.Storage.Backend = "memory"
	cfg.App.SeedSamples = false
	cfg.Calendar.Timezone = "UTC"
	cfg.Security.BcryptCost = 4
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	if mutate != nil {
		mutate(cfg)
	}

	log := logger.NewNop()
	app, err := NewApp(context.Background(), cfg, repository.NewMemoryKVStore(), metrics.New(), log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	return New(cfg, app, log), app
}

func serve(t *testing.T, s *Server, method, path, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoints(t *testing.T) {
	s, app := newTestServer(t, nil)

	rec := serve(t, s, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	rec = serve(t, s, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(t, s, http.MethodGet, "/health/detailed", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status string                            `json:"status"`
		Checks map[string]map[string]interface{} `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "memory", body.Checks["storage"]["backend"])
	assert.Equal(t, false, body.Checks["chat"]["configured"])
	assert.Equal(t, false, body.Checks["calendar"]["mirror"])
	assert.Nil(t, app.Completer)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t, nil)

	serve(t, s, http.MethodGet, "/api/v1/notes", "", nil)
	rec := serve(t, s, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestSecurityHeaders(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := serve(t, s, http.MethodGet, "/api/v1/todos", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}

func TestProxyRouteBypassesCORSMiddleware(t *testing.T) {
	s, _ := newTestServer(t, func(cfg *config.Config) {
		cfg.Security.CORSAllowedOrigins = "https://app.example.com"
	})

	header := http.Header{"Origin": {"https://elsewhere.example.com"}}
	for _, path := range []string{"/api/openrouter", "/api/openrouter/chat/completions"} {
		rec := serve(t, s, http.MethodOptions, path, "", header)
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"), path)
	}

	rec := serve(t, s, http.MethodOptions, "/api/v1/notes", "", http.Header{
		"Origin":                        {"https://app.example.com"},
		"Access-Control-Request-Method": {"POST"},
	})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequireAuth(t *testing.T) {
	s, _ := newTestServer(t, func(cfg *config.Config) {
		cfg.Security.RequireAuth = true
	})

	rec := serve(t, s, http.MethodGet, "/api/v1/notes", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(t, s, http.MethodGet, "/api/v1/notes", "", http.Header{"Authorization": {"Token abc"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(t, s, http.MethodGet, "/api/v1/notes", "", http.Header{"Authorization": {"Bearer not-a-jwt"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(t, s, http.MethodPost, "/api/v1/auth/register",
		`{"username":"mina","email":"mina@example.com","password":"secret1"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var auth ports.AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &auth))
	require.NotEmpty(t, auth.Token)

	rec = serve(t, s, http.MethodGet, "/api/v1/notes", "", http.Header{"Authorization": {"Bearer " + auth.Token}})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRunStopsOnCancel(t *testing.T) {
	s, _ := newTestServer(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return s.echo.ListenerAddr() != nil }, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Get("http://" + s.echo.ListenerAddr().String() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestSplitOrigins(t *testing.T) {
	assert.Equal(t, []string{"*"}, splitOrigins(""))
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, splitOrigins(" https://a.example, ,https://b.example"))
}
