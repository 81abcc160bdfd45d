package http

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keladiary/core/internal/application/services"
	"github.com/keladiary/core/internal/domain/entities"
)

func TestCalendarCustomEvents(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/calendar/events", `{"title":"Standup","startDate":"2024-05-15T09:30:00+08:00","location":"Room 4"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	evt := decode[entities.CalendarEvent](t, rec)
	assert.Equal(t, entities.EventTypeCustom, evt.Type)
	assert.Equal(t, entities.DefaultEventColor, evt.Color)

	rec = api.do(t, http.MethodPost, "/calendar/events", `{}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, services.DefaultEventTitle, decode[entities.CalendarEvent](t, rec).Title)

	rec = api.do(t, http.MethodGet, "/calendar/events/today", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]entities.CalendarEvent](t, rec), 2)

	rec = api.do(t, http.MethodPut, "/calendar/events/"+evt.ID, `{"title":"Retro"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Retro", decode[entities.CalendarEvent](t, rec).Title)

	rec = api.do(t, http.MethodDelete, "/calendar/events/"+evt.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = api.do(t, http.MethodGet, "/calendar/events/"+evt.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCalendarRejectsBadDates(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/calendar/events", `{"title":"x","startDate":"next tuesday"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodGet, "/calendar/days/yesterday", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodGet, "/calendar/months/2024/13", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCalendarMonthGrid(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodGet, "/calendar/months/2024/5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	cells := decode[[]entities.MonthCell](t, rec)
	require.Len(t, cells, 42)
	assert.Equal(t, "2024-04-28", cells[0].Date)
	assert.False(t, cells[0].IsCurrentMonth)

	var today []string
	for _, c := range cells {
		if c.IsToday {
			today = append(today, c.Date)
		}
	}
	assert.Equal(t, []string{"2024-05-15"}, today)
}

func TestCalendarNavigation(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPut, "/calendar/view", `{"view":"week"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	state := decode[services.CalendarState](t, rec)
	assert.Equal(t, entities.CalendarViewWeek, state.View)
	assert.Equal(t, "2024-05-12", entities.DateKey(state.PeriodStart.In(testZone)))

	rec = api.do(t, http.MethodPost, "/calendar/navigate", `{"direction":"next"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	state = decode[services.CalendarState](t, rec)
	assert.Equal(t, "2024-05-19", entities.DateKey(state.PeriodStart.In(testZone)))

	rec = api.do(t, http.MethodPost, "/calendar/navigate", `{"direction":"sideways"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodPut, "/calendar/selected", `{"date":"2024-01-31"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	state = decode[services.CalendarState](t, rec)
	assert.True(t, state.SelectedDate.Equal(time.Date(2024, time.January, 31, 0, 0, 0, 0, testZone)))

	rec = api.do(t, http.MethodPost, "/calendar/navigate", `{"direction":"today"}`)
	state = decode[services.CalendarState](t, rec)
	assert.True(t, state.SelectedDate.Equal(testNow))
}

func TestCalendarSync(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/todos", `{"title":"Renew passport","dueDate":"2024-05-17"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = api.do(t, http.MethodPost, "/calendar/sync", "")
	require.Equal(t, http.StatusOK, rec.Code)
	evts := decode[[]entities.CalendarEvent](t, rec)
	require.Len(t, evts, 1, "sync must update rather than duplicate")

	rec = api.do(t, http.MethodGet, "/calendar/events/upcoming", "")
	assert.Len(t, decode[[]entities.CalendarEvent](t, rec), 1)
}
