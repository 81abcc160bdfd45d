package gcal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/keladiary/core/internal/domain/entities"
	"github.com/keladiary/core/internal/infrastructure/config"
	"github.com/keladiary/core/internal/infrastructure/logger"
)

// Private extended properties linking a Google event to its local event.
const (
	propEventID   = "kela_event_id"
	propEventType = "kela_event_type"
)

// Mirror copies calendar events into a Google calendar.
type Mirror struct {
	srv        *calendar.Service
	calendarID string
	loc        *time.Location
	logger     *logger.Logger
}

// NewMirror creates a mirror authenticated with a static access token.
func NewMirror(ctx context.Context, cfg config.GoogleCalendarConfig, loc *time.Location, log *logger.Logger) (*Mirror, error) {
	if cfg.AccessToken == "" {
		return nil, fmt.Errorf("google calendar access token: %w", entities.ErrNotConfigured)
	}

	opts := []option.ClientOption{
		option.WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.AccessToken})),
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	srv, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create calendar client: %w", err)
	}

	calendarID := cfg.CalendarID
	if calendarID == "" {
		calendarID = "primary"
	}
	if loc == nil {
		loc = time.Local
	}
	return &Mirror{srv: srv, calendarID: calendarID, loc: loc, logger: log.WithComponent("gcal")}, nil
}

// Upsert creates or replaces the Google copy of every event. A failure on one
// event does not stop the others; all failures are returned together.
func (m *Mirror) Upsert(ctx context.Context, events []entities.CalendarEvent) error {
	var errs []error
	for _, evt := range events {
		if err := m.upsertOne(ctx, evt); err != nil {
			errs = append(errs, fmt.Errorf("event %s: %w", evt.ID, err))
		}
	}
	return errors.Join(errs...)
}

func (m *Mirror) upsertOne(ctx context.Context, evt entities.CalendarEvent) error {
	target := m.toGoogleEvent(evt)

	existing, err := m.find(ctx, evt.ID)
	if err != nil {
		return fmt.Errorf("error searching for event: %w", err)
	}
	if existing != nil {
		if _, err := m.srv.Events.Update(m.calendarID, existing.Id, target).Context(ctx).Do(); err != nil {
			return fmt.Errorf("failed to update event: %w", err)
		}
		m.logger.Debugw("Calendar event updated", "event_id", evt.ID, "google_id", existing.Id)
		return nil
	}

	created, err := m.srv.Events.Insert(m.calendarID, target).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	m.logger.Debugw("Calendar event created", "event_id", evt.ID, "google_id", created.Id)
	return nil
}

// Remove deletes the Google copy of eventID if one exists.
func (m *Mirror) Remove(ctx context.Context, eventID string) error {
	existing, err := m.find(ctx, eventID)
	if err != nil {
		return fmt.Errorf("error searching for event: %w", err)
	}
	if existing == nil {
		return nil
	}
	if err := m.srv.Events.Delete(m.calendarID, existing.Id).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	m.logger.Debugw("Calendar event removed", "event_id", eventID, "google_id", existing.Id)
	return nil
}

func (m *Mirror) find(ctx context.Context, eventID string) (*calendar.Event, error) {
	events, err := m.srv.Events.List(m.calendarID).
		PrivateExtendedProperty(fmt.Sprintf("%s=%s", propEventID, eventID)).
		ShowDeleted(false).
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}
	if len(events.Items) > 0 {
		return events.Items[0], nil
	}
	return nil, nil
}

// toGoogleEvent maps a local event. Events starting at local midnight with no
// end become all-day events; timed events without an end last one hour.
func (m *Mirror) toGoogleEvent(evt entities.CalendarEvent) *calendar.Event {
	out := &calendar.Event{
		Summary:     evt.Title,
		Description: evt.Description,
		Location:    evt.Location,
		ExtendedProperties: &calendar.EventExtendedProperties{
			Private: map[string]string{
				propEventID:   evt.ID,
				propEventType: string(evt.Type),
			},
		},
	}
	if evt.Completed {
		out.Transparency = "transparent"
	}

	start := evt.StartDate.In(m.loc)
	if evt.EndDate == nil && start.Equal(entities.StartOfDay(start)) {
		out.Start = &calendar.EventDateTime{Date: start.Format(time.DateOnly)}
		out.End = &calendar.EventDateTime{Date: start.AddDate(0, 0, 1).Format(time.DateOnly)}
		return out
	}

	end := start.Add(time.Hour)
	if evt.EndDate != nil && evt.EndDate.After(start) {
		end = evt.EndDate.In(m.loc)
	}
	out.Start = &calendar.EventDateTime{DateTime: start.Format(time.RFC3339)}
	out.End = &calendar.EventDateTime{DateTime: end.Format(time.RFC3339)}
	return out
}
