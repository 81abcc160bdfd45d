package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/keladiary/core/internal/domain/entities"
	"github.com/keladiary/core/internal/infrastructure/logger"
	"github.com/keladiary/core/internal/ports"
)

// upcomingTodoDays is how far ahead Upcoming looks.
const upcomingTodoDays = 3

// TodosExport is the todos export envelope.
type TodosExport struct {
	Version    string          `json:"version"`
	ExportTime time.Time       `json:"exportTime"`
	Todos      []entities.Todo `json:"todos"`
}

type todoRecord struct {
	ID        string `json:"id" validate:"required"`
	Title     string `json:"title" validate:"required"`
	Completed *bool  `json:"completed" validate:"required"`
}

// TodoService owns the todo collection.
type TodoService struct {
	mu     sync.RWMutex
	todos  []entities.Todo
	slot   slot[[]entities.Todo]
	events ports.EventPublisher
	logger *logger.Logger
	opts   options
}

// NewTodoService creates an empty service. Call Restore to load durable state.
func NewTodoService(kv ports.KVStore, events ports.EventPublisher, log *logger.Logger, opts ...Option) *TodoService {
	o := buildOptions(opts)
	log = log.WithComponent("todos")
	return &TodoService{
		slot:   newSlot[[]entities.Todo](kv, ports.KeyTodos, log, o.metrics),
		events: events,
		logger: log,
		opts:   o,
	}
}

// Restore loads the collection. An absent or unreadable slot is replaced by
// the sample todos.
func (s *TodoService) Restore(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	todos, found, err := s.slot.load(ctx)
	var corrupt *corruptError
	switch {
	case err != nil && !errors.As(err, &corrupt):
		return err
	case found && err == nil:
		if todos == nil {
			todos = []entities.Todo{}
		}
		s.todos = todos
		s.logger.Infow("Todos restored", "count", len(todos))
		s.publishLocked(ctx)
		return nil
	}

	if corrupt != nil {
		s.logger.Warnw("Stored todos unreadable, reseeding", "error", corrupt.Error())
	}
	s.todos = []entities.Todo{}
	if s.opts.seedSamples {
		s.todos = sampleTodos(s.opts.clock(), s.opts.newID)
	}
	return s.commitLocked(ctx)
}

// Persist writes the whole collection.
func (s *TodoService) Persist(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.slot.save(ctx, s.todos)
}

// Add inserts a new todo at the head of the collection.
func (s *TodoService) Add(ctx context.Context, req ports.CreateTodoRequest) (*entities.Todo, error) {
	if err := recordValidator.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", entities.ErrValidation, err)
	}
	priority := req.Priority
	if priority == "" {
		priority = entities.PriorityMedium
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.opts.clock()
	todo := entities.Todo{
		ID:          s.opts.newID(),
		Title:       req.Title,
		Description: req.Description,
		Completed:   req.Completed,
		Priority:    priority,
		DueDate:     req.DueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.todos = append([]entities.Todo{todo}, s.todos...)

	if err := s.commitLocked(ctx); err != nil {
		return nil, err
	}
	return &todo, nil
}

// Update merges the non-nil fields of req. It returns nil, nil when id is unknown.
// An empty due date clears it.
func (s *TodoService) Update(ctx context.Context, id string, req ports.UpdateTodoRequest) (*entities.Todo, error) {
	if err := recordValidator.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", entities.ErrValidation, err)
	}
	if req.DueDate != nil && *req.DueDate != "" {
		if _, err := time.Parse(entities.DateLayout, *req.DueDate); err != nil {
			return nil, fmt.Errorf("%w: due date %q must be YYYY-MM-DD", entities.ErrValidation, *req.DueDate)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return nil, nil
	}

	t := &s.todos[i]
	if req.Title != nil {
		t.Title = *req.Title
	}
	if req.Description != nil {
		t.Description = *req.Description
	}
	if req.Priority != nil {
		t.Priority = *req.Priority
	}
	if req.DueDate != nil {
		t.DueDate = *req.DueDate
	}
	if req.Completed != nil {
		t.Completed = *req.Completed
	}
	t.UpdatedAt = s.opts.clock()
	updated := *t

	if err := s.commitLocked(ctx); err != nil {
		return nil, err
	}
	return &updated, nil
}

// Toggle flips the completion flag. It returns nil, nil when id is unknown.
func (s *TodoService) Toggle(ctx context.Context, id string) (*entities.Todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return nil, nil
	}
	s.todos[i].Completed = !s.todos[i].Completed
	s.todos[i].UpdatedAt = s.opts.clock()
	updated := s.todos[i]

	if err := s.commitLocked(ctx); err != nil {
		return nil, err
	}
	return &updated, nil
}

// Delete removes a todo and returns it, or nil when id is unknown.
func (s *TodoService) Delete(ctx context.Context, id string) (*entities.Todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return nil, nil
	}
	removed := s.todos[i]
	s.todos = append(s.todos[:i], s.todos[i+1:]...)

	if err := s.commitLocked(ctx); err != nil {
		return nil, err
	}
	return &removed, nil
}

// ClearCompleted removes every completed todo and returns how many went.
func (s *TodoService) ClearCompleted(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := make([]entities.Todo, 0, len(s.todos))
	for _, t := range s.todos {
		if !t.Completed {
			kept = append(kept, t)
		}
	}
	removed := len(s.todos) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	s.todos = kept

	if err := s.commitLocked(ctx); err != nil {
		return 0, err
	}
	return removed, nil
}

// Get returns a copy of the todo or nil.
func (s *TodoService) Get(id string) *entities.Todo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.indexLocked(id); i >= 0 {
		t := s.todos[i]
		return &t
	}
	return nil
}

// List filters by status and keyword. Open todos come first, then higher
// priority, then newer.
func (s *TodoService) List(filter ports.TodoFilter) []entities.Todo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]entities.Todo, 0, len(s.todos))
	for _, t := range s.todos {
		if filter.Status.Accepts(t) && t.Matches(filter.Keyword) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Completed != b.Completed {
			return !a.Completed
		}
		if a.Priority.Weight() != b.Priority.Weight() {
			return a.Priority.Weight() > b.Priority.Weight()
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
	return out
}

// Stats summarises the collection.
func (s *TodoService) Stats() entities.TodoStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	weekStart := entities.StartOfWeek(s.opts.clock())
	stats := entities.TodoStats{Total: len(s.todos)}
	for _, t := range s.todos {
		if t.Completed {
			stats.Completed++
		} else if t.Priority == entities.PriorityHigh {
			stats.HighPriority++
		}
		if !t.CreatedAt.Before(weekStart) {
			stats.ThisWeek++
		}
	}
	stats.Active = stats.Total - stats.Completed
	if stats.Total > 0 {
		stats.CompletionRate = int(math.Round(float64(stats.Completed) / float64(stats.Total) * 100))
	}
	return stats
}

// Upcoming returns open todos due by the end of the day three days from now,
// soonest first. Overdue todos are included.
func (s *TodoService) Upcoming() []entities.Todo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := entities.EndOfDay(s.opts.clock().AddDate(0, 0, upcomingTodoDays))
	type dated struct {
		todo entities.Todo
		due  time.Time
	}
	var hits []dated
	for _, t := range s.todos {
		if t.Completed || t.DueDate == "" {
			continue
		}
		due, err := entities.ParseDueDate(t.DueDate, s.opts.loc)
		if err != nil || due.After(limit) {
			continue
		}
		hits = append(hits, dated{todo: t, due: due})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].due.Before(hits[j].due) })

	out := make([]entities.Todo, len(hits))
	for i, h := range hits {
		out[i] = h.todo
	}
	return out
}

// Snapshot returns a copy of the collection in stored order.
func (s *TodoService) Snapshot() []entities.Todo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]entities.Todo(nil), s.todos...)
}

// Export returns the export envelope.
func (s *TodoService) Export() TodosExport {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return TodosExport{
		Version:    ExportVersion,
		ExportTime: s.opts.now().UTC(),
		Todos:      append([]entities.Todo{}, s.todos...),
	}
}

// Import replaces the collection with the valid records of data and returns
// how many were accepted.
func (s *TodoService) Import(ctx context.Context, data []byte) (int, error) {
	records, err := decodeRecords(data, "todos")
	if err != nil {
		return 0, fmt.Errorf("%w: %v", entities.ErrInvalidImport, err)
	}

	todos := make([]entities.Todo, 0, len(records))
	for _, raw := range records {
		var rec todoRecord
		if json.Unmarshal(raw, &rec) != nil || recordValidator.Struct(rec) != nil {
			continue
		}
		var t entities.Todo
		if err := json.Unmarshal(raw, &t); err != nil {
			continue
		}
		todos = append(todos, t)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.todos = todos
	if err := s.commitLocked(ctx); err != nil {
		return 0, err
	}
	s.logger.Infow("Todos imported", "received", len(records), "accepted", len(todos))
	return len(todos), nil
}

func (s *TodoService) indexLocked(id string) int {
	for i := range s.todos {
		if s.todos[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *TodoService) commitLocked(ctx context.Context) error {
	if err := s.slot.save(ctx, s.todos); err != nil {
		return err
	}
	s.publishLocked(ctx)
	return nil
}

func (s *TodoService) publishLocked(ctx context.Context) {
	if s.events == nil {
		return
	}
	s.events.Publish(ctx, ports.Event{
		Topic:      ports.TopicTodosChanged,
		Payload:    ports.TodosChanged{Todos: append([]entities.Todo(nil), s.todos...)},
		OccurredAt: s.opts.now(),
	})
}
