package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/keladiary/core/internal/adapters/repository"
	"github.com/keladiary/core/internal/application/services"
	"github.com/keladiary/core/internal/infrastructure/config"
	"github.com/keladiary/core/internal/infrastructure/events"
	"github.com/keladiary/core/internal/infrastructure/logger"
	"github.com/keladiary/core/internal/ports"
)

var (
	testZone = time.FixedZone("CST", 8*3600)
	testNow  = time.Date(2024, time.May, 15, 10, 0, 0, 0, testZone)
)

type fakeCompleter struct {
	mu     sync.Mutex
	reply  string
	chunks []string
	err    error
	calls  int
}

func (f *fakeCompleter) Complete(_ context.Context, req ports.CompletionRequest) (*ports.CompletionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &ports.CompletionResponse{Message: f.reply, Model: req.Model}, nil
}

func (f *fakeCompleter) Stream(_ context.Context, _ ports.CompletionRequest, onChunk func(string)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	for _, c := range f.chunks {
		onChunk(c)
	}
	return f.err
}

type testAPI struct {
	e         *echo.Echo
	kv        *repository.MemoryKVStore
	completer *fakeCompleter
	notes     *services.NoteService
	todos     *services.TodoService
	boards    *services.BoardService
	calendar  *services.CalendarService
	chat      *services.ChatService
	auth      *services.AuthService
	themes    *services.ThemeService
}

// newTestAPI wires every service against an in-memory store and mounts the
// routes under /api/v1.
func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	ctx := context.Background()
	log := logger.NewNop()
	kv := repository.NewMemoryKVStore()
	bus := events.NewBus(log)
	opts := []services.Option{
		services.WithClock(func() time.Time { return testNow }),
		services.WithLocation(testZone),
		services.WithSampleData(false),
	}

	api := &testAPI{kv: kv, completer: &fakeCompleter{reply: "Hello from the model"}}
	api.notes = services.NewNoteService(kv, bus, log, opts...)
	api.todos = services.NewTodoService(kv, bus, log, opts...)
	api.boards = services.NewBoardService(kv, bus, log, opts...)
	api.calendar = services.NewCalendarService(api.todos, api.boards, nil, log, opts...)
	t.Cleanup(api.calendar.Attach(bus))
	api.chat = services.NewChatService(kv, api.completer, log, services.ChatSettings{}, opts...)
	api.auth = services.NewAuthService(kv, config.JWTConfig{Secret: "test-secret", ExpiresIn: time.Hour, Issuer: "kela-diary"}, bcrypt.MinCost, log, opts...)
	api.themes = services.NewThemeService(kv, log, opts...)

	for _, r := range []interface{ Restore(context.Context) error }{api.notes, api.todos, api.boards, api.chat, api.auth, api.themes} {
		require.NoError(t, r.Restore(ctx))
	}

	e := echo.New()
	e.Validator = NewValidator()
	e.HTTPErrorHandler = ErrorHandler(log)
	h := &Handlers{
		Auth:     NewAuthHandler(api.auth, log),
		Notes:    NewNoteHandler(api.notes, log),
		Todos:    NewTodoHandler(api.todos, log),
		Boards:   NewBoardHandler(api.boards, log),
		Calendar: NewCalendarHandler(api.calendar, testZone, log),
		Chat:     NewChatHandler(api.chat, log),
		Themes:   NewThemeHandler(api.themes, log),
	}
	h.Register(e.Group("/api/v1"))
	api.e = e
	return api
}

func (a *testAPI) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, "/api/v1"+path, r)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{notFound("note", "x"), http.StatusNotFound},
		{services.ErrCardNotFound, http.StatusNotFound},
		{&ports.CompletionError{StatusCode: 429, Message: "slow down"}, http.StatusBadGateway},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, StatusFor(tt.err), tt.err.Error())
	}
}
