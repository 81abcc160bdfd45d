package services

import (
	"time"

	"github.com/google/uuid"

	"github.com/keladiary/core/internal/ports"
)

// Option customises a service at construction.
type Option func(*options)

type options struct {
	now         func() time.Time
	loc         *time.Location
	newID       func() string
	seedSamples bool
	metrics     ports.Metrics
}

func buildOptions(opts []Option) options {
	o := options{
		now:         time.Now,
		loc:         time.Local,
		newID:       func() string { return uuid.NewString() },
		seedSamples: true,
		metrics:     noopMetrics{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLocation sets the time zone used for day, week and month boundaries.
func WithLocation(loc *time.Location) Option {
	return func(o *options) {
		if loc != nil {
			o.loc = loc
		}
	}
}

// WithIDGenerator replaces the uuid generator.
func WithIDGenerator(newID func() string) Option {
	return func(o *options) { o.newID = newID }
}

// WithSampleData controls whether an empty store is seeded with samples.
func WithSampleData(seed bool) Option {
	return func(o *options) { o.seedSamples = seed }
}

// WithMetrics reports persistence and sync activity.
func WithMetrics(m ports.Metrics) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

func (o options) clock() time.Time {
	return o.now().In(o.loc)
}

type noopMetrics struct{}

func (noopMetrics) ObservePersist(string, error)    {}
func (noopMetrics) ObserveCalendarSync(string, int) {}
