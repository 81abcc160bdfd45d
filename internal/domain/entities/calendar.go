package entities

import "time"

// EventType identifies where a calendar event came from.
type EventType string

const (
	EventTypeTodo     EventType = "todo"
	EventTypeTask     EventType = "task"
	EventTypeNote     EventType = "note"
	EventTypePomodoro EventType = "pomodoro"
	EventTypeCustom   EventType = "custom"
)

// CalendarEvent is either derived from a todo/card or created directly.
type CalendarEvent struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	StartDate   time.Time  `json:"startDate"`
	EndDate     *time.Time `json:"endDate,omitempty"`
	Type        EventType  `json:"type"`
	SourceID    string     `json:"sourceId,omitempty"`
	Priority    Priority   `json:"priority,omitempty"`
	Color       string     `json:"color,omitempty"`
	Completed   bool       `json:"completed"`
	Location    string     `json:"location,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// CalendarView is the granularity of the visible period.
type CalendarView string

const (
	CalendarViewMonth CalendarView = "month"
	CalendarViewWeek  CalendarView = "week"
	CalendarViewDay   CalendarView = "day"
)

// IsValid reports whether v is a known view.
func (v CalendarView) IsValid() bool {
	switch v {
	case CalendarViewMonth, CalendarViewWeek, CalendarViewDay:
		return true
	}
	return false
}

// Period returns the inclusive bounds of the view around display.
// Month spans first to last day, week spans Sunday to Saturday, day spans the
// display date. End bounds are at end of day.
func (v CalendarView) Period(display time.Time) (time.Time, time.Time) {
	switch v {
	case CalendarViewWeek:
		start := StartOfWeek(display)
		return start, EndOfDay(start.AddDate(0, 0, 6))
	case CalendarViewDay:
		return StartOfDay(display), EndOfDay(display)
	default:
		y, m, _ := display.Date()
		start := time.Date(y, m, 1, 0, 0, 0, 0, display.Location())
		return start, EndOfDay(start.AddDate(0, 1, -1))
	}
}

// Step moves display one period forwards (dir > 0) or backwards.
func (v CalendarView) Step(display time.Time, dir int) time.Time {
	switch v {
	case CalendarViewWeek:
		return display.AddDate(0, 0, 7*dir)
	case CalendarViewDay:
		return display.AddDate(0, 0, dir)
	default:
		y, m, d := display.Date()
		first := time.Date(y, m+time.Month(dir), 1, display.Hour(), display.Minute(), display.Second(), display.Nanosecond(), display.Location())
		// Clamp to the target month's length so Jan 31 + 1 month lands in February.
		last := first.AddDate(0, 1, -1).Day()
		if d > last {
			d = last
		}
		return first.AddDate(0, 0, d-1)
	}
}

// Colour palettes for derived events keyed by priority. The empty key is the fallback.
var (
	TodoEventColors = map[Priority]string{
		PriorityHigh:   "#f56c6c",
		PriorityMedium: "#e6a23c",
		PriorityLow:    "#67c23a",
		"":             "#409eff",
	}
	TaskEventColors = map[Priority]string{
		PriorityHigh:   "#eb5a46",
		PriorityMedium: "#f2d600",
		PriorityLow:    "#61bd4f",
		"":             "#00c2e0",
	}
)

// DefaultEventColor is used for custom events created without a colour.
const DefaultEventColor = "#409eff"

// ColorFor picks the palette colour for p, falling back to the default entry.
func ColorFor(palette map[Priority]string, p Priority) string {
	if c, ok := palette[p]; ok {
		return c
	}
	return palette[""]
}

// MonthCell is one cell of the 6x7 month grid.
type MonthCell struct {
	Date           string          `json:"date"`
	Day            int             `json:"day"`
	IsCurrentMonth bool            `json:"isCurrentMonth"`
	IsToday        bool            `json:"isToday"`
	IsSelected     bool            `json:"isSelected"`
	Events         []CalendarEvent `json:"events"`
}
