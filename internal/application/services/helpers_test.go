package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/keladiary/core/internal/adapters/repository"
	"github.com/keladiary/core/internal/infrastructure/events"
	"github.com/keladiary/core/internal/infrastructure/logger"
	"github.com/keladiary/core/internal/ports"
)

var testZone = time.FixedZone("CST", 8*3600)

// testNow is a Wednesday.
var testNow = time.Date(2024, time.May, 15, 10, 0, 0, 0, testZone)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{now: testNow} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (s *seqIDs) Next() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("id-%03d", s.n)
}

// prefixedIDs yields ids disjoint from the default test generator.
func prefixedIDs(prefix string) func() string {
	ids := &seqIDs{}
	return func() string { return prefix + "-" + ids.Next() }
}

func testOptions(clock *fakeClock, extra ...Option) []Option {
	ids := &seqIDs{}
	return append([]Option{
		WithClock(clock.Now),
		WithLocation(testZone),
		WithIDGenerator(ids.Next),
	}, extra...)
}

// recorder captures published events.
type recorder struct {
	mu     sync.Mutex
	events []ports.Event
}

func (r *recorder) Publish(_ context.Context, evt ports.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recorder) topics() []ports.Topic {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ports.Topic, len(r.events))
	for i, e := range r.events {
		out[i] = e.Topic
	}
	return out
}

func (r *recorder) last() ports.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

// failingKV fails every write once armed.
type failingKV struct {
	*repository.MemoryKVStore
	fail bool
}

func (f *failingKV) Set(ctx context.Context, key string, value []byte) error {
	if f.fail {
		return fmt.Errorf("disk full")
	}
	return f.MemoryKVStore.Set(ctx, key, value)
}

func newBus(t *testing.T) *events.Bus {
	t.Helper()
	return events.NewBus(logger.NewNop())
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}
