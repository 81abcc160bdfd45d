package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/keladiary/core/internal/domain/entities"
	"github.com/keladiary/core/internal/infrastructure/logger"
	"github.com/keladiary/core/internal/ports"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	)
}

func newTestClient(url string) *OpenRouterClient {
	return NewOpenRouterClient(OpenRouterConfig{
		APIKey:   "sk-test",
		BaseURL:  url,
		SiteURL:  "https://kela-diary.vercel.app",
		SiteName: "Kela Diary",
		Timeout:  5 * time.Second,
	}, logger.NewNop())
}

var sampleRequest = ports.CompletionRequest{
	Model: "openai/gpt-4o",
	Messages: []ports.CompletionMessage{
		{Role: entities.RoleSystem, Content: "be brief"},
		{Role: entities.RoleUser, Content: "hi"},
	},
	Temperature: 0.7,
	MaxTokens:   2000,
}

func TestOpenRouterClient_Complete(t *testing.T) {
	var got openRouterRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "https://kela-diary.vercel.app", r.Header.Get("HTTP-Referer"))
		assert.Equal(t, "Kela Diary", r.Header.Get("X-Title"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"model":"openai/gpt-4o-2024","choices":[{"message":{"role":"assistant","content":"hello!"}}],"usage":{"prompt_tokens":5,"completion_tokens":2,"total_tokens":7}}`)
	}))
	defer srv.Close()

	resp, err := newTestClient(srv.URL).Complete(context.Background(), sampleRequest)
	require.NoError(t, err)
	assert.Equal(t, "hello!", resp.Message)
	assert.Equal(t, "openai/gpt-4o-2024", resp.Model)
	assert.Equal(t, &ports.Usage{PromptTokens: 5, CompletionTokens: 2, TotalTokens: 7}, resp.Usage)

	assert.False(t, got.Stream)
	assert.Equal(t, 2000, got.MaxTokens)
	assert.Equal(t, []openRouterMessage{{Role: "system", Content: "be brief"}, {Role: "user", Content: "hi"}}, got.Messages)
}

func TestOpenRouterClient_CompleteErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"provider message", http.StatusUnauthorized, `{"error":{"message":"invalid key"}}`, "invalid key"},
		{"status fallback", http.StatusBadGateway, `upstream down`, "request failed: 502 Bad Gateway"},
		{"no choices", http.StatusOK, `{"choices":[]}`, "response contained no choices"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			_, err := newTestClient(srv.URL).Complete(context.Background(), sampleRequest)
			var ce *ports.CompletionError
			require.True(t, errors.As(err, &ce), "got %v", err)
			assert.Equal(t, tt.status, ce.StatusCode)
			assert.Equal(t, tt.wantMsg, ce.Message)
		})
	}
}

func TestOpenRouterClient_MissingKey(t *testing.T) {
	c := NewOpenRouterClient(OpenRouterConfig{BaseURL: "http://127.0.0.1:1"}, logger.NewNop())
	_, err := c.Complete(context.Background(), sampleRequest)
	assert.ErrorIs(t, err, entities.ErrNotConfigured)
	assert.False(t, c.ValidateAPIKey(context.Background()))
}

func TestOpenRouterClient_Stream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openRouterRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))

		w.Header().Set("Content-Type", "text/event-stream")
		for _, line := range []string{
			`: keep-alive`,
			`data: {"choices":[{"delta":{"content":"Hel"}}]}`,
			`data: not json`,
			`data: {"choices":[{"delta":{"content":""}}]}`,
			`data: {"choices":[{"delta":{"content":"lo"}}]}`,
			`data: [DONE]`,
			`data: {"choices":[{"delta":{"content":"ignored"}}]}`,
		} {
			fmt.Fprintf(w, "%s\n\n", line)
		}
	}))
	defer srv.Close()

	var chunks []string
	err := newTestClient(srv.URL).Stream(context.Background(), sampleRequest, func(s string) {
		chunks = append(chunks, s)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Hel", "lo"}, chunks)
}

func TestOpenRouterClient_StreamProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"error\":{\"message\":\"overloaded\"}}\n\n")
	}))
	defer srv.Close()

	err := newTestClient(srv.URL).Stream(context.Background(), sampleRequest, func(string) {})
	var ce *ports.CompletionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "overloaded", ce.Message)
}

func TestOpenRouterClient_StreamCancelled(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"first\"}}]}\n\n")
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	var chunks []string
	err := newTestClient(srv.URL).Stream(ctx, sampleRequest, func(s string) {
		chunks = append(chunks, s)
		cancel()
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"first"}, chunks)
}

func TestOpenRouterClient_ValidateAPIKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models", r.URL.Path)
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"data":[]}`)
	}))
	defer srv.Close()

	assert.True(t, newTestClient(srv.URL).ValidateAPIKey(context.Background()))
}

type countingObserver struct {
	ok, failed int
}

func (o *countingObserver) ObserveCompletion(_ string, err error) {
	if err != nil {
		o.failed++
		return
	}
	o.ok++
}

func TestInstrument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	obs := &countingObserver{}
	c := Instrument(newTestClient(srv.URL), "openrouter", obs)
	_, err := c.Complete(context.Background(), sampleRequest)
	require.Error(t, err)
	assert.Error(t, c.Stream(context.Background(), sampleRequest, func(string) {}))
	assert.Equal(t, 2, obs.failed)

	assert.Nil(t, Instrument(nil, "openrouter", obs))
}
