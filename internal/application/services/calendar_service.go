package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/keladiary/core/internal/domain/entities"
	"github.com/keladiary/core/internal/infrastructure/logger"
	"github.com/keladiary/core/internal/ports"
)

const (
	upcomingEventWindow = 7 * 24 * time.Hour
	upcomingEventLimit  = 10
	monthGridCells      = 42
	mirrorQueueSize     = 64
)

// DefaultEventTitle names custom events created without a title.
const DefaultEventTitle = "New event"

// TodoSnapshotter supplies the current todo collection.
type TodoSnapshotter interface {
	Snapshot() []entities.Todo
}

// BoardSnapshotter supplies the current board hierarchy.
type BoardSnapshotter interface {
	Snapshot() []entities.Board
}

// CalendarState is the navigation state of the calendar.
type CalendarState struct {
	View         entities.CalendarView `json:"view"`
	DisplayDate  time.Time             `json:"displayDate"`
	SelectedDate time.Time             `json:"selectedDate"`
	PeriodStart  time.Time             `json:"periodStart"`
	PeriodEnd    time.Time             `json:"periodEnd"`
	LastError    string                `json:"lastError,omitempty"`
}

type mirrorOp struct {
	upsert []entities.CalendarEvent
	remove string
}

// CalendarService derives events from todos and board cards and keeps custom
// events. Derived events are upserted by (sourceId, type) and never deleted
// when their source goes away.
type CalendarService struct {
	mu           sync.RWMutex
	events       []entities.CalendarEvent
	view         entities.CalendarView
	displayDate  time.Time
	selectedDate time.Time
	lastError    string

	todos  TodoSnapshotter
	boards BoardSnapshotter

	mirror      ports.CalendarMirror
	mirrorQueue chan mirrorOp

	logger *logger.Logger
	opts   options
}

// NewCalendarService creates a calendar showing the current month. Either
// source may be nil; mirror may be nil to disable mirroring.
func NewCalendarService(todos TodoSnapshotter, boards BoardSnapshotter, mirror ports.CalendarMirror, log *logger.Logger, opts ...Option) *CalendarService {
	o := buildOptions(opts)
	now := o.clock()
	s := &CalendarService{
		events:       []entities.CalendarEvent{},
		view:         entities.CalendarViewMonth,
		displayDate:  now,
		selectedDate: now,
		todos:        todos,
		boards:       boards,
		mirror:       mirror,
		logger:       log.WithComponent("calendar"),
		opts:         o,
	}
	if mirror != nil {
		s.mirrorQueue = make(chan mirrorOp, mirrorQueueSize)
	}
	return s
}

// Attach subscribes the calendar to todo and board changes. The returned
// function detaches it.
func (s *CalendarService) Attach(bus ports.EventBus) func() {
	unTodos := bus.Subscribe(ports.TopicTodosChanged, func(ctx context.Context, evt ports.Event) {
		if p, ok := evt.Payload.(ports.TodosChanged); ok {
			s.SyncTodos(ctx, p.Todos)
		}
	})
	unBoards := bus.Subscribe(ports.TopicBoardsChanged, func(ctx context.Context, evt ports.Event) {
		if p, ok := evt.Payload.(ports.BoardsChanged); ok {
			s.SyncTasks(ctx, p.Boards)
		}
	})
	return func() {
		unTodos()
		unBoards()
	}
}

// SyncTodos upserts one todo event per dated todo.
func (s *CalendarService) SyncTodos(ctx context.Context, todos []entities.Todo) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.opts.clock()
	var changed []entities.CalendarEvent
	for _, t := range todos {
		if t.DueDate == "" {
			continue
		}
		start, err := entities.ParseDueDate(t.DueDate, s.opts.loc)
		if err != nil {
			s.logger.Warnw("Skipping todo with unreadable due date", "todo_id", t.ID, "due_date", t.DueDate)
			continue
		}
		color := entities.ColorFor(entities.TodoEventColors, t.Priority)
		evt := s.upsertLocked(t.ID, entities.EventTypeTodo, now, color, func(e *entities.CalendarEvent) {
			e.Title = t.Title
			e.Description = t.Description
			e.StartDate = start
			e.Completed = t.Completed
			e.Priority = t.Priority
		})
		changed = append(changed, evt)
	}

	s.opts.metrics.ObserveCalendarSync(string(entities.EventTypeTodo), len(changed))
	s.enqueueMirrorLocked(mirrorOp{upsert: changed})
	return len(changed)
}

// SyncTasks upserts one task event per dated card. Completion is left alone
// because cards carry no completion flag.
func (s *CalendarService) SyncTasks(ctx context.Context, boards []entities.Board) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.opts.clock()
	var changed []entities.CalendarEvent
	for _, b := range boards {
		for _, l := range b.Lists {
			for _, c := range l.Cards {
				if c.DueDate == "" {
					continue
				}
				start, err := entities.ParseDueDate(c.DueDate, s.opts.loc)
				if err != nil {
					s.logger.Warnw("Skipping card with unreadable due date", "card_id", c.ID, "due_date", c.DueDate)
					continue
				}
				color := entities.ColorFor(entities.TaskEventColors, c.Priority)
				evt := s.upsertLocked(c.ID, entities.EventTypeTask, now, color, func(e *entities.CalendarEvent) {
					e.Title = c.Title
					e.Description = c.Description
					e.StartDate = start
					e.Priority = c.Priority
				})
				changed = append(changed, evt)
			}
		}
	}

	s.opts.metrics.ObserveCalendarSync(string(entities.EventTypeTask), len(changed))
	s.enqueueMirrorLocked(mirrorOp{upsert: changed})
	return len(changed)
}

// SyncAll reconciles against fresh snapshots of both sources.
func (s *CalendarService) SyncAll(ctx context.Context) {
	var (
		todos  []entities.Todo
		boards []entities.Board
	)
	if s.todos != nil {
		todos = s.todos.Snapshot()
	}
	if s.boards != nil {
		boards = s.boards.Snapshot()
	}
	s.SyncTodos(ctx, todos)
	s.SyncTasks(ctx, boards)

	s.mu.Lock()
	s.lastError = ""
	s.mu.Unlock()
}

// upsertLocked applies fill to the event for (sourceID, typ), creating it
// when absent, and returns a copy of the result.
// upsertLocked refreshes the event derived from sourceID, or creates it with
// color. An existing event keeps the colour it was created with.
func (s *CalendarService) upsertLocked(sourceID string, typ entities.EventType, now time.Time, color string, fill func(*entities.CalendarEvent)) entities.CalendarEvent {
	for i := range s.events {
		e := &s.events[i]
		if e.SourceID == sourceID && e.Type == typ {
			fill(e)
			e.UpdatedAt = now
			return *e
		}
	}
	e := entities.CalendarEvent{
		ID:        s.opts.newID(),
		Type:      typ,
		SourceID:  sourceID,
		Color:     color,
		CreatedAt: now,
		UpdatedAt: now,
	}
	fill(&e)
	s.events = append(s.events, e)
	return e
}

// Events returns every event in insertion order.
func (s *CalendarService) Events() []entities.CalendarEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]entities.CalendarEvent{}, s.events...)
}

// Event returns a copy of one event or nil.
func (s *CalendarService) Event(id string) *entities.CalendarEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.indexLocked(id); i >= 0 {
		e := s.events[i]
		return &e
	}
	return nil
}

// FilteredEvents returns events whose start falls in the visible period.
func (s *CalendarService) FilteredEvents() []entities.CalendarEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filteredLocked()
}

func (s *CalendarService) filteredLocked() []entities.CalendarEvent {
	start, end := s.view.Period(s.displayDate)
	out := []entities.CalendarEvent{}
	for _, e := range s.events {
		if !e.StartDate.Before(start) && !e.StartDate.After(end) {
			out = append(out, e)
		}
	}
	return out
}

// EventsByDate groups the visible events by YYYY-MM-DD.
func (s *CalendarService) EventsByDate() map[string][]entities.CalendarEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.groupLocked()
}

func (s *CalendarService) groupLocked() map[string][]entities.CalendarEvent {
	grouped := make(map[string][]entities.CalendarEvent)
	for _, e := range s.filteredLocked() {
		key := entities.DateKey(e.StartDate.In(s.opts.loc))
		grouped[key] = append(grouped[key], e)
	}
	return grouped
}

// TodayEvents returns today's bucket of the visible events.
func (s *CalendarService) TodayEvents() []entities.CalendarEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	today := entities.DateKey(s.opts.clock())
	if evts := s.groupLocked()[today]; evts != nil {
		return evts
	}
	return []entities.CalendarEvent{}
}

// Upcoming returns at most ten open events starting within the next seven
// days, soonest first.
func (s *CalendarService) Upcoming() []entities.CalendarEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.opts.clock()
	limit := now.Add(upcomingEventWindow)
	out := []entities.CalendarEvent{}
	for _, e := range s.events {
		if e.Completed {
			continue
		}
		if e.StartDate.After(now) && !e.StartDate.After(limit) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	if len(out) > upcomingEventLimit {
		out = out[:upcomingEventLimit]
	}
	return out
}

// EventsForDate returns every event starting on day, regardless of view.
func (s *CalendarService) EventsForDate(day time.Time) []entities.CalendarEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.forDateLocked(entities.DateKey(day.In(s.opts.loc)))
}

func (s *CalendarService) forDateLocked(key string) []entities.CalendarEvent {
	out := []entities.CalendarEvent{}
	for _, e := range s.events {
		if entities.DateKey(e.StartDate.In(s.opts.loc)) == key {
			out = append(out, e)
		}
	}
	return out
}

// MonthGrid lays out six weeks starting on the Sunday on or before the first
// of the month.
func (s *CalendarService) MonthGrid(year int, month time.Month) []entities.MonthCell {
	s.mu.RLock()
	defer s.mu.RUnlock()

	first := time.Date(year, month, 1, 0, 0, 0, 0, s.opts.loc)
	start := entities.StartOfWeek(first)
	today := entities.DateKey(s.opts.clock())
	selected := entities.DateKey(s.selectedDate.In(s.opts.loc))

	cells := make([]entities.MonthCell, 0, monthGridCells)
	for i := 0; i < monthGridCells; i++ {
		day := start.AddDate(0, 0, i)
		key := entities.DateKey(day)
		cells = append(cells, entities.MonthCell{
			Date:           key,
			Day:            day.Day(),
			IsCurrentMonth: day.Month() == month,
			IsToday:        key == today,
			IsSelected:     key == selected,
			Events:         s.forDateLocked(key),
		})
	}
	return cells
}

// CreateEvent adds an event that no source owns.
func (s *CalendarService) CreateEvent(ctx context.Context, req ports.CreateEventRequest) (*entities.CalendarEvent, error) {
	if err := recordValidator.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", entities.ErrValidation, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.opts.clock()
	evt := entities.CalendarEvent{
		ID:          s.opts.newID(),
		Title:       req.Title,
		Description: req.Description,
		StartDate:   now,
		Type:        req.Type,
		Priority:    req.Priority,
		Color:       req.Color,
		Location:    req.Location,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if evt.Title == "" {
		evt.Title = DefaultEventTitle
	}
	if evt.Type == "" {
		evt.Type = entities.EventTypeCustom
	}
	if evt.Color == "" {
		evt.Color = entities.DefaultEventColor
	}
	if req.StartDate != nil {
		start, err := entities.ParseDueDate(*req.StartDate, s.opts.loc)
		if err != nil {
			return nil, err
		}
		evt.StartDate = start
	}
	if req.EndDate != nil {
		end, err := entities.ParseDueDate(*req.EndDate, s.opts.loc)
		if err != nil {
			return nil, err
		}
		evt.EndDate = &end
	}

	s.events = append(s.events, evt)
	s.enqueueMirrorLocked(mirrorOp{upsert: []entities.CalendarEvent{evt}})
	return &evt, nil
}

// UpdateEvent merges the non-nil fields of req. It returns nil, nil when id
// is unknown.
func (s *CalendarService) UpdateEvent(ctx context.Context, id string, req ports.UpdateEventRequest) (*entities.CalendarEvent, error) {
	if err := recordValidator.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", entities.ErrValidation, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return nil, nil
	}
	updated := s.events[i]
	if req.Title != nil {
		updated.Title = *req.Title
	}
	if req.Description != nil {
		updated.Description = *req.Description
	}
	if req.StartDate != nil {
		start, err := entities.ParseDueDate(*req.StartDate, s.opts.loc)
		if err != nil {
			return nil, err
		}
		updated.StartDate = start
	}
	if req.EndDate != nil {
		if *req.EndDate == "" {
			updated.EndDate = nil
		} else {
			end, err := entities.ParseDueDate(*req.EndDate, s.opts.loc)
			if err != nil {
				return nil, err
			}
			updated.EndDate = &end
		}
	}
	if req.Priority != nil {
		updated.Priority = *req.Priority
	}
	if req.Color != nil {
		updated.Color = *req.Color
	}
	if req.Completed != nil {
		updated.Completed = *req.Completed
	}
	if req.Location != nil {
		updated.Location = *req.Location
	}
	updated.UpdatedAt = s.opts.clock()
	s.events[i] = updated

	s.enqueueMirrorLocked(mirrorOp{upsert: []entities.CalendarEvent{updated}})
	return &updated, nil
}

// DeleteEvent removes an event and reports whether it existed.
func (s *CalendarService) DeleteEvent(ctx context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return false
	}
	s.events = append(s.events[:i], s.events[i+1:]...)
	s.enqueueMirrorLocked(mirrorOp{remove: id})
	return true
}

// NavigatePrevious moves the display date back one period.
func (s *CalendarService) NavigatePrevious() CalendarState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.displayDate = s.view.Step(s.displayDate, -1)
	return s.stateLocked()
}

// NavigateNext moves the display date forward one period.
func (s *CalendarService) NavigateNext() CalendarState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.displayDate = s.view.Step(s.displayDate, 1)
	return s.stateLocked()
}

// NavigateToday shows and selects today.
func (s *CalendarService) NavigateToday() CalendarState {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.opts.clock()
	s.displayDate = now
	s.selectedDate = now
	return s.stateLocked()
}

// ChangeView switches between month, week and day.
func (s *CalendarService) ChangeView(view entities.CalendarView) (CalendarState, error) {
	if !view.IsValid() {
		return CalendarState{}, fmt.Errorf("unknown calendar view %q: %w", view, entities.ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view = view
	return s.stateLocked(), nil
}

// SelectDate selects day and shows the period containing it.
func (s *CalendarService) SelectDate(day time.Time) CalendarState {
	s.mu.Lock()
	defer s.mu.Unlock()
	day = day.In(s.opts.loc)
	s.selectedDate = day
	s.displayDate = day
	return s.stateLocked()
}

// State returns the navigation state.
func (s *CalendarService) State() CalendarState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stateLocked()
}

func (s *CalendarService) stateLocked() CalendarState {
	start, end := s.view.Period(s.displayDate)
	return CalendarState{
		View:         s.view,
		DisplayDate:  s.displayDate,
		SelectedDate: s.selectedDate,
		PeriodStart:  start,
		PeriodEnd:    end,
		LastError:    s.lastError,
	}
}

// LastError is the most recent mirror failure.
func (s *CalendarService) LastError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError
}

// ClearError resets LastError.
func (s *CalendarService) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = ""
}

func (s *CalendarService) indexLocked(id string) int {
	for i := range s.events {
		if s.events[i].ID == id {
			return i
		}
	}
	return -1
}

// enqueueMirrorLocked hands changes to RunMirror without blocking the caller,
// which may be a source store holding its own lock.
func (s *CalendarService) enqueueMirrorLocked(op mirrorOp) {
	if s.mirrorQueue == nil || (len(op.upsert) == 0 && op.remove == "") {
		return
	}
	select {
	case s.mirrorQueue <- op:
	default:
		s.lastError = "calendar mirror queue full"
		s.logger.Warnw("Dropping calendar mirror update", "events", len(op.upsert), "remove", op.remove)
	}
}

// RunMirror pushes queued changes to the mirror until ctx ends. It returns
// immediately when no mirror is configured.
func (s *CalendarService) RunMirror(ctx context.Context) error {
	if s.mirrorQueue == nil {
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case op := <-s.mirrorQueue:
			var err error
			if op.remove != "" {
				err = s.mirror.Remove(ctx, op.remove)
			} else {
				err = s.mirror.Upsert(ctx, op.upsert)
			}
			if err != nil {
				s.logger.Errorw("Calendar mirror failed", "error", err, "events", len(op.upsert), "remove", op.remove)
				s.mu.Lock()
				s.lastError = err.Error()
				s.mu.Unlock()
			}
		}
	}
}
