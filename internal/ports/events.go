package ports

import (
	"context"
	"time"

	"github.com/keladiary/core/internal/domain/entities"
)

// Topic names a collection-changed notification.
type Topic string

const (
	TopicNotesChanged  Topic = "notes.changed"
	TopicTodosChanged  Topic = "todos.changed"
	TopicBoardsChanged Topic = "boards.changed"
)

// Event carries a snapshot of the collection after a committed mutation.
// Payload is one of NotesChanged, TodosChanged or BoardsChanged.
type Event struct {
	Topic      Topic
	Payload    any
	OccurredAt time.Time
}

// NotesChanged is the payload of TopicNotesChanged.
type NotesChanged struct {
	Notes []entities.Note
}

// TodosChanged is the payload of TopicTodosChanged.
type TodosChanged struct {
	Todos []entities.Todo
}

// BoardsChanged is the payload of TopicBoardsChanged.
type BoardsChanged struct {
	Boards []entities.Board
}

// EventHandler reacts to a published event.
type EventHandler func(ctx context.Context, evt Event)

// EventPublisher delivers events to subscribers synchronously.
type EventPublisher interface {
	Publish(ctx context.Context, evt Event)
}

// EventBus adds subscription to EventPublisher.
type EventBus interface {
	EventPublisher
	Subscribe(topic Topic, h EventHandler) (unsubscribe func())
}
