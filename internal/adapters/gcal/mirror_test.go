package gcal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/calendar/v3"

	"github.com/keladiary/core/internal/domain/entities"
	"github.com/keladiary/core/internal/infrastructure/config"
	"github.com/keladiary/core/internal/infrastructure/logger"
)

var testZone = time.FixedZone("CST", 8*3600)

// fakeCalendar serves the subset of the Calendar v3 events API the mirror uses.
type fakeCalendar struct {
	mu     sync.Mutex
	events map[string]*calendar.Event
	nextID int
	auth   []string
}

func newFakeCalendar(t *testing.T) (*fakeCalendar, *httptest.Server) {
	t.Helper()
	f := &fakeCalendar{events: make(map[string]*calendar.Event)}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /calendar/v3/calendars/{cal}/events", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		filter := r.URL.Query().Get("privateExtendedProperty")
		key, value, _ := strings.Cut(filter, "=")

		f.mu.Lock()
		defer f.mu.Unlock()
		list := &calendar.Events{Items: []*calendar.Event{}}
		for _, e := range f.events {
			if e.ExtendedProperties != nil && e.ExtendedProperties.Private[key] == value {
				list.Items = append(list.Items, e)
			}
		}
		writeJSON(w, list)
	})
	mux.HandleFunc("POST /calendar/v3/calendars/{cal}/events", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		var e calendar.Event
		if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.nextID++
		e.Id = fmt.Sprintf("g%d", f.nextID)
		f.events[e.Id] = &e
		f.mu.Unlock()
		writeJSON(w, &e)
	})
	mux.HandleFunc("PUT /calendar/v3/calendars/{cal}/events/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		var e calendar.Event
		if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		e.Id = r.PathValue("id")
		f.mu.Lock()
		f.events[e.Id] = &e
		f.mu.Unlock()
		writeJSON(w, &e)
	})
	mux.HandleFunc("DELETE /calendar/v3/calendars/{cal}/events/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		f.mu.Lock()
		delete(f.events, r.PathValue("id"))
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeCalendar) record(r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.auth = append(f.auth, r.Header.Get("Authorization"))
}

func (f *fakeCalendar) byLocalID(id string) *calendar.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.events {
		if e.ExtendedProperties.Private[propEventID] == id {
			return e
		}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newTestMirror(t *testing.T, srv *httptest.Server) *Mirror {
	t.Helper()
	m, err := NewMirror(context.Background(), config.GoogleCalendarConfig{
		CalendarID:  "primary",
		AccessToken: "token-123",
		Endpoint:    srv.URL + "/calendar/v3/",
	}, testZone, logger.NewNop())
	require.NoError(t, err)
	return m
}

func TestMirror_UpsertCreatesThenUpdates(t *testing.T) {
	ctx := context.Background()
	fake, srv := newFakeCalendar(t)
	m := newTestMirror(t, srv)

	due := time.Date(2024, 5, 16, 0, 0, 0, 0, testZone)
	evt := entities.CalendarEvent{ID: "evt-1", Title: "Buy milk", StartDate: due, Type: entities.EventTypeTodo, SourceID: "todo-1"}

	require.NoError(t, m.Upsert(ctx, []entities.CalendarEvent{evt}))
	got := fake.byLocalID("evt-1")
	require.NotNil(t, got)
	assert.Equal(t, "Buy milk", got.Summary)
	assert.Equal(t, "2024-05-16", got.Start.Date)
	assert.Equal(t, "2024-05-17", got.End.Date)
	assert.Equal(t, "todo", got.ExtendedProperties.Private[propEventType])

	evt.Title = "Buy oat milk"
	evt.Completed = true
	require.NoError(t, m.Upsert(ctx, []entities.CalendarEvent{evt}))

	fake.mu.Lock()
	assert.Len(t, fake.events, 1, "second upsert updates in place")
	fake.mu.Unlock()
	got = fake.byLocalID("evt-1")
	assert.Equal(t, "Buy oat milk", got.Summary)
	assert.Equal(t, "transparent", got.Transparency)

	for _, h := range fake.auth {
		assert.Equal(t, "Bearer token-123", h)
	}
}

func TestMirror_TimedEvent(t *testing.T) {
	ctx := context.Background()
	fake, srv := newFakeCalendar(t)
	m := newTestMirror(t, srv)

	start := time.Date(2024, 5, 16, 9, 30, 0, 0, testZone)
	require.NoError(t, m.Upsert(ctx, []entities.CalendarEvent{{ID: "evt-2", Title: "Standup", StartDate: start, Type: entities.EventTypeCustom}}))

	got := fake.byLocalID("evt-2")
	require.NotNil(t, got)
	assert.Equal(t, "2024-05-16T09:30:00+08:00", got.Start.DateTime)
	assert.Equal(t, "2024-05-16T10:30:00+08:00", got.End.DateTime)
}

func TestMirror_Remove(t *testing.T) {
	ctx := context.Background()
	fake, srv := newFakeCalendar(t)
	m := newTestMirror(t, srv)

	require.NoError(t, m.Upsert(ctx, []entities.CalendarEvent{{ID: "evt-3", Title: "x", StartDate: time.Date(2024, 5, 16, 0, 0, 0, 0, testZone)}}))
	require.NoError(t, m.Remove(ctx, "evt-3"))
	assert.Nil(t, fake.byLocalID("evt-3"))

	assert.NoError(t, m.Remove(ctx, "never-mirrored"))
}

func TestNewMirror_RequiresToken(t *testing.T) {
	_, err := NewMirror(context.Background(), config.GoogleCalendarConfig{}, nil, logger.NewNop())
	assert.ErrorIs(t, err, entities.ErrNotConfigured)
}
