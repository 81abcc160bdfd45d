package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/keladiary/core/internal/application/services"
	"github.com/keladiary/core/internal/domain/entities"
	"github.com/keladiary/core/internal/infrastructure/logger"
	"github.com/keladiary/core/internal/ports"
)

// NavigateRequest moves the visible period.
type NavigateRequest struct {
	Direction string `json:"direction" validate:"required,oneof=previous next today"`
}

// ChangeViewRequest switches the period granularity.
type ChangeViewRequest struct {
	View entities.CalendarView `json:"view" validate:"required,oneof=month week day"`
}

// SelectDateRequest selects a day.
type SelectDateRequest struct {
	Date string `json:"date" validate:"required"`
}

// CalendarHandler serves the calendar aggregator.
type CalendarHandler struct {
	calendar *services.CalendarService
	loc      *time.Location
	logger   *logger.Logger
}

// NewCalendarHandler creates a calendar handler. Dates in requests are
// interpreted in loc.
func NewCalendarHandler(calendar *services.CalendarService, loc *time.Location, logger *logger.Logger) *CalendarHandler {
	if loc == nil {
		loc = time.Local
	}
	return &CalendarHandler{calendar: calendar, loc: loc, logger: logger}
}

// ListEvents godoc
// @Summary All calendar events
// @Tags calendar
// @Produce json
// @Success 200 {array} entities.CalendarEvent
// @Router /calendar/events [get]
func (h *CalendarHandler) ListEvents(c echo.Context) error {
	return c.JSON(http.StatusOK, h.calendar.Events())
}

// PeriodEvents godoc
// @Summary Events inside the visible period
// @Tags calendar
// @Produce json
// @Success 200 {array} entities.CalendarEvent
// @Router /calendar/events/period [get]
func (h *CalendarHandler) PeriodEvents(c echo.Context) error {
	return c.JSON(http.StatusOK, h.calendar.FilteredEvents())
}

// EventsByDate godoc
// @Summary Visible events grouped by YYYY-MM-DD
// @Tags calendar
// @Produce json
// @Success 200 {object} map[string][]entities.CalendarEvent
// @Router /calendar/events/by-date [get]
func (h *CalendarHandler) EventsByDate(c echo.Context) error {
	return c.JSON(http.StatusOK, h.calendar.EventsByDate())
}

// TodayEvents godoc
// @Summary Events starting today
// @Tags calendar
// @Produce json
// @Success 200 {array} entities.CalendarEvent
// @Router /calendar/events/today [get]
func (h *CalendarHandler) TodayEvents(c echo.Context) error {
	return c.JSON(http.StatusOK, h.calendar.TodayEvents())
}

// UpcomingEvents godoc
// @Summary Open events in the next seven days
// @Tags calendar
// @Produce json
// @Success 200 {array} entities.CalendarEvent
// @Router /calendar/events/upcoming [get]
func (h *CalendarHandler) UpcomingEvents(c echo.Context) error {
	return c.JSON(http.StatusOK, h.calendar.Upcoming())
}

// DayEvents godoc
// @Summary Events on one day
// @Tags calendar
// @Produce json
// @Param date path string true "YYYY-MM-DD"
// @Success 200 {array} entities.CalendarEvent
// @Failure 400 {object} ErrorResponse
// @Router /calendar/days/{date} [get]
func (h *CalendarHandler) DayEvents(c echo.Context) error {
	day, err := entities.ParseDueDate(c.Param("date"), h.loc)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.calendar.EventsForDate(day))
}

// MonthGrid godoc
// @Summary The 42-cell month grid
// @Tags calendar
// @Produce json
// @Param year path int true "Year"
// @Param month path int true "Month 1-12"
// @Success 200 {array} entities.MonthCell
// @Failure 400 {object} ErrorResponse
// @Router /calendar/months/{year}/{month} [get]
func (h *CalendarHandler) MonthGrid(c echo.Context) error {
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid year")
	}
	month, err := strconv.Atoi(c.Param("month"))
	if err != nil || month < 1 || month > 12 {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid month")
	}
	return c.JSON(http.StatusOK, h.calendar.MonthGrid(year, time.Month(month)))
}

// GetEvent godoc
// @Summary Get an event
// @Tags calendar
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} entities.CalendarEvent
// @Failure 404 {object} ErrorResponse
// @Router /calendar/events/{id} [get]
func (h *CalendarHandler) GetEvent(c echo.Context) error {
	evt := h.calendar.Event(c.Param("id"))
	if evt == nil {
		return notFound("event", c.Param("id"))
	}
	return c.JSON(http.StatusOK, evt)
}

// CreateEvent godoc
// @Summary Create a custom event
// @Tags calendar
// @Accept json
// @Produce json
// @Param request body ports.CreateEventRequest true "Event data"
// @Success 201 {object} entities.CalendarEvent
// @Failure 400 {object} ErrorResponse
// @Router /calendar/events [post]
func (h *CalendarHandler) CreateEvent(c echo.Context) error {
	var req ports.CreateEventRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	evt, err := h.calendar.CreateEvent(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, evt)
}

// UpdateEvent godoc
// @Summary Update an event
// @Tags calendar
// @Accept json
// @Produce json
// @Param id path string true "Event ID"
// @Param request body ports.UpdateEventRequest true "Changed fields"
// @Success 200 {object} entities.CalendarEvent
// @Failure 404 {object} ErrorResponse
// @Router /calendar/events/{id} [put]
func (h *CalendarHandler) UpdateEvent(c echo.Context) error {
	var req ports.UpdateEventRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	evt, err := h.calendar.UpdateEvent(c.Request().Context(), c.Param("id"), req)
	if err != nil {
		return err
	}
	if evt == nil {
		return notFound("event", c.Param("id"))
	}
	return c.JSON(http.StatusOK, evt)
}

// DeleteEvent godoc
// @Summary Delete an event
// @Tags calendar
// @Param id path string true "Event ID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Router /calendar/events/{id} [delete]
func (h *CalendarHandler) DeleteEvent(c echo.Context) error {
	if !h.calendar.DeleteEvent(c.Request().Context(), c.Param("id")) {
		return notFound("event", c.Param("id"))
	}
	return c.NoContent(http.StatusNoContent)
}

// Sync godoc
// @Summary Reconcile derived events from todos and boards
// @Tags calendar
// @Produce json
// @Success 200 {array} entities.CalendarEvent
// @Router /calendar/sync [post]
func (h *CalendarHandler) Sync(c echo.Context) error {
	h.calendar.SyncAll(c.Request().Context())
	return c.JSON(http.StatusOK, h.calendar.Events())
}

// State godoc
// @Summary Navigation state
// @Tags calendar
// @Produce json
// @Success 200 {object} services.CalendarState
// @Router /calendar/state [get]
func (h *CalendarHandler) State(c echo.Context) error {
	return c.JSON(http.StatusOK, h.calendar.State())
}

// Navigate godoc
// @Summary Move to the previous, next or current period
// @Tags calendar
// @Accept json
// @Produce json
// @Param request body NavigateRequest true "Direction"
// @Success 200 {object} services.CalendarState
// @Router /calendar/navigate [post]
func (h *CalendarHandler) Navigate(c echo.Context) error {
	var req NavigateRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	var state services.CalendarState
	switch req.Direction {
	case "previous":
		state = h.calendar.NavigatePrevious()
	case "next":
		state = h.calendar.NavigateNext()
	default:
		state = h.calendar.NavigateToday()
	}
	return c.JSON(http.StatusOK, state)
}

// ChangeView godoc
// @Summary Switch between month, week and day views
// @Tags calendar
// @Accept json
// @Produce json
// @Param request body ChangeViewRequest true "View"
// @Success 200 {object} services.CalendarState
// @Router /calendar/view [put]
func (h *CalendarHandler) ChangeView(c echo.Context) error {
	var req ChangeViewRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	state, err := h.calendar.ChangeView(req.View)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, state)
}

// SelectDate godoc
// @Summary Select a day
// @Tags calendar
// @Accept json
// @Produce json
// @Param request body SelectDateRequest true "Date"
// @Success 200 {object} services.CalendarState
// @Router /calendar/selected [put]
func (h *CalendarHandler) SelectDate(c echo.Context) error {
	var req SelectDateRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	day, err := entities.ParseDueDate(req.Date, h.loc)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.calendar.SelectDate(day))
}

// ClearError godoc
// @Summary Clear the last mirror failure
// @Tags calendar
// @Success 204
// @Router /calendar/error [delete]
func (h *CalendarHandler) ClearError(c echo.Context) error {
	h.calendar.ClearError()
	return c.NoContent(http.StatusNoContent)
}
