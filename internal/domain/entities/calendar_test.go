package entities

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalendarViewPeriod(t *testing.T) {
	loc := time.UTC
	display := time.Date(2024, 5, 15, 10, 30, 0, 0, loc) // Wednesday

	start, end := CalendarViewMonth.Period(display)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, loc), start)
	assert.Equal(t, "2024-05-31", DateKey(end))
	assert.Equal(t, 23, end.Hour())

	start, end = CalendarViewWeek.Period(display)
	assert.Equal(t, time.Date(2024, 5, 12, 0, 0, 0, 0, loc), start)
	assert.Equal(t, "2024-05-18", DateKey(end))

	start, end = CalendarViewDay.Period(display)
	assert.Equal(t, "2024-05-15", DateKey(start))
	assert.Equal(t, "2024-05-15", DateKey(end))
}

func TestCalendarViewStep(t *testing.T) {
	jan31 := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "2024-02-29", DateKey(CalendarViewMonth.Step(jan31, 1)))
	assert.Equal(t, "2023-12-31", DateKey(CalendarViewMonth.Step(jan31, -1)))
	assert.Equal(t, "2024-02-07", DateKey(CalendarViewWeek.Step(jan31, 1)))
	assert.Equal(t, "2024-01-30", DateKey(CalendarViewDay.Step(jan31, -1)))
}

func TestColorFor(t *testing.T) {
	assert.Equal(t, "#f56c6c", ColorFor(TodoEventColors, PriorityHigh))
	assert.Equal(t, "#409eff", ColorFor(TodoEventColors, ""))
	assert.Equal(t, "#00c2e0", ColorFor(TaskEventColors, "bogus"))
}

func TestParseDueDate(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*3600)

	d, err := ParseDueDate("2024-05-01", loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, loc), d)

	d, err = ParseDueDate("2024-05-01T20:00:00Z", loc)
	require.NoError(t, err)
	assert.Equal(t, "2024-05-02", DateKey(d))

	_, err = ParseDueDate("tomorrow", loc)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestStartOfWeek(t *testing.T) {
	sat := time.Date(2024, 5, 18, 22, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 5, 12, 0, 0, 0, 0, time.UTC), StartOfWeek(sat))

	sun := time.Date(2024, 5, 12, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, sun, StartOfWeek(sun))
}
