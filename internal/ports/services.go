package ports

import (
	"context"
	"fmt"

	"github.com/keladiary/core/internal/domain/entities"
)

// CompletionMessage is one message sent to a chat-completion provider.
type CompletionMessage struct {
	Role    entities.MessageRole `json:"role"`
	Content string               `json:"content"`
}

// CompletionRequest is a provider-neutral chat-completion call.
type CompletionRequest struct {
	Model       string              `json:"model"`
	Messages    []CompletionMessage `json:"messages"`
	Temperature float64             `json:"temperature"`
	MaxTokens   int                 `json:"max_tokens"`
}

// Usage reports token accounting when the provider supplies it.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CompletionResponse is the reply of a full (non-streaming) completion.
type CompletionResponse struct {
	Message string `json:"message"`
	Model   string `json:"model"`
	Usage   *Usage `json:"usage,omitempty"`
}

// ChatCompleter is the external chat-completion collaborator. Stream calls
// onChunk for every content fragment in arrival order and returns once the
// provider signals the end of the stream.
type ChatCompleter interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	Stream(ctx context.Context, req CompletionRequest, onChunk func(string)) error
}

// CompletionError is a typed provider failure.
type CompletionError struct {
	StatusCode int
	Message    string
}

func (e *CompletionError) Error() string {
	if e.StatusCode == 0 {
		return e.Message
	}
	return fmt.Sprintf("completion failed with status %d: %s", e.StatusCode, e.Message)
}

// CalendarMirror receives derived calendar events after reconciliation.
type CalendarMirror interface {
	Upsert(ctx context.Context, events []entities.CalendarEvent) error
	Remove(ctx context.Context, eventID string) error
}

// Metrics receives store-level observations.
type Metrics interface {
	ObservePersist(key string, err error)
	ObserveCalendarSync(source string, upserted int)
}
