package http

import (
	"bufio"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keladiary/core/internal/application/services"
	"github.com/keladiary/core/internal/domain/entities"
	"github.com/keladiary/core/internal/ports"
)

func TestChatSendMessage(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/chat/messages", `{"content":"What should I focus on today?"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	reply := decode[entities.ChatMessage](t, rec)
	assert.Equal(t, entities.RoleAssistant, reply.Role)
	assert.Equal(t, "Hello from the model", reply.Content)
	assert.Equal(t, entities.DefaultChatModel, reply.Model)

	rec = api.do(t, http.MethodGet, "/chat/current", "")
	require.Equal(t, http.StatusOK, rec.Code)
	session := decode[entities.ChatSession](t, rec)
	require.Len(t, session.Messages, 2)
	assert.Equal(t, "What should I focus on today?", session.Title)

	rec = api.do(t, http.MethodPost, "/chat/messages", `{"content":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatProviderFailure(t *testing.T) {
	api := newTestAPI(t)
	api.completer.err = &ports.CompletionError{StatusCode: http.StatusUnauthorized, Message: "Invalid API key"}

	rec := api.do(t, http.MethodPost, "/chat/messages", `{"content":"hi"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, decode[ErrorResponse](t, rec).Error, "Invalid API key")

	rec = api.do(t, http.MethodGet, "/chat/state", "")
	state := decode[services.ChatState](t, rec)
	assert.Contains(t, state.LastError, "Invalid API key")
	assert.False(t, state.Loading)

	rec = api.do(t, http.MethodDelete, "/chat/error", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = api.do(t, http.MethodGet, "/chat/state", "")
	assert.Empty(t, decode[services.ChatState](t, rec).LastError)
}

func TestChatStreamMessage(t *testing.T) {
	api := newTestAPI(t)
	api.completer.chunks = []string{"Hel", "lo"}

	rec := api.do(t, http.MethodPost, "/chat/messages/stream", `{"content":"greet me"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	var events []string
	var data []string
	sc := bufio.NewScanner(strings.NewReader(rec.Body.String()))
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			events = append(events, strings.TrimPrefix(line, "event: "))
		case strings.HasPrefix(line, "data: "):
			data = append(data, strings.TrimPrefix(line, "data: "))
		}
	}
	require.Equal(t, []string{"chunk", "chunk", "done"}, events)
	assert.JSONEq(t, `{"content":"Hel"}`, data[0])
	assert.Contains(t, data[2], `"content":"Hello"`)

	rec = api.do(t, http.MethodGet, "/chat/current", "")
	session := decode[entities.ChatSession](t, rec)
	require.Len(t, session.Messages, 2)
	assert.Equal(t, "Hello", session.Messages[1].Content)
}

func TestChatStreamFailureEmitsErrorEvent(t *testing.T) {
	api := newTestAPI(t)
	api.completer.chunks = []string{"partial"}
	api.completer.err = &ports.CompletionError{StatusCode: http.StatusTooManyRequests, Message: "Rate limited"}

	rec := api.do(t, http.MethodPost, "/chat/messages/stream", `{"content":"hi"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "event: chunk")
	assert.Contains(t, body, "event: error")
	assert.NotContains(t, body, "event: done")
}

func TestChatSessions(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/chat/sessions", "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	first := decode[entities.ChatSession](t, rec)
	assert.Equal(t, services.DefaultSessionTitle, first.Title)

	rec = api.do(t, http.MethodPost, "/chat/sessions", `{"title":"Trip planning"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	second := decode[entities.ChatSession](t, rec)

	rec = api.do(t, http.MethodGet, "/chat/sessions?q=trip", "")
	sessions := decode[[]entities.ChatSession](t, rec)
	require.Len(t, sessions, 1)
	assert.Equal(t, second.ID, sessions[0].ID)

	rec = api.do(t, http.MethodPost, "/chat/sessions/"+first.ID+"/switch", "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = api.do(t, http.MethodGet, "/chat/state", "")
	assert.Equal(t, first.ID, decode[services.ChatState](t, rec).CurrentSessionID)

	rec = api.do(t, http.MethodPut, "/chat/sessions/"+first.ID+"/title", `{"title":"Renamed"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Renamed", decode[entities.ChatSession](t, rec).Title)

	rec = api.do(t, http.MethodPut, "/chat/model", `{"model":"openai/gpt-4o"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "openai/gpt-4o", decode[services.ChatState](t, rec).CurrentModel)

	rec = api.do(t, http.MethodDelete, "/chat/sessions/"+first.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = api.do(t, http.MethodGet, "/chat/sessions/"+first.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = api.do(t, http.MethodPost, "/chat/sessions/"+first.ID+"/switch", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChatExportImportAndBackups(t *testing.T) {
	api := newTestAPI(t)
	require.Equal(t, http.StatusOK, api.do(t, http.MethodPost, "/chat/messages", `{"content":"remember this"}`).Code)

	rec := api.do(t, http.MethodGet, "/chat/export", "")
	require.Equal(t, http.StatusOK, rec.Code)
	export := rec.Body.String()
	assert.Contains(t, export, "remember this")

	rec = api.do(t, http.MethodPost, "/chat/backups", "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	key := decode[BackupResponse](t, rec).Key
	assert.True(t, strings.HasPrefix(key, ports.KeyChatBackupPrefix))

	rec = api.do(t, http.MethodDelete, "/chat/sessions", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = api.do(t, http.MethodGet, "/chat/sessions", "")
	assert.Empty(t, decode[[]entities.ChatSession](t, rec))

	rec = api.do(t, http.MethodGet, "/chat/backups", "")
	backups := decode[[]services.BackupInfo](t, rec)
	require.NotEmpty(t, backups)

	rec = api.do(t, http.MethodPost, "/chat/backups/"+key+"/restore", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, decode[services.ChatState](t, rec).SessionCount)

	rec = api.do(t, http.MethodPost, "/chat/import", `{"sessions":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, decode[ports.ImportResult](t, rec).Success)

	rec = api.do(t, http.MethodDelete, "/chat/sessions", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = api.do(t, http.MethodPost, "/chat/import", export)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[ports.ImportResult](t, rec).Success)

	rec = api.do(t, http.MethodPost, "/chat/backups/not-a-backup/restore", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
