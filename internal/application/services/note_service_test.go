package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keladiary/core/internal/adapters/repository"
	"github.com/keladiary/core/internal/domain/entities"
	"github.com/keladiary/core/internal/infrastructure/logger"
	"github.com/keladiary/core/internal/ports"
)

func newNoteService(t *testing.T, kv ports.KVStore, pub ports.EventPublisher, clock *fakeClock, opts ...Option) *NoteService {
	t.Helper()
	s := NewNoteService(kv, pub, logger.NewNop(), testOptions(clock, opts...)...)
	require.NoError(t, s.Restore(context.Background()))
	return s
}

func TestNoteService_RestoreSeedsSamples(t *testing.T) {
	kv := repository.NewMemoryKVStore()
	s := newNoteService(t, kv, nil, newFakeClock())

	notes := s.List(ports.NoteFilter{})
	require.Len(t, notes, 3)
	assert.Equal(t, "欢迎使用克拉日常笔记", notes[0].Title)
	assert.Equal(t, "周末计划", notes[2].Title)

	_, ok, err := kv.Get(context.Background(), ports.KeyNotes)
	require.NoError(t, err)
	assert.True(t, ok, "samples are persisted")
}

func TestNoteService_RestoreCorruptSlotReseeds(t *testing.T) {
	ctx := context.Background()
	kv := repository.NewMemoryKVStore()
	require.NoError(t, kv.Set(ctx, ports.KeyNotes, []byte("{not json")))

	s := newNoteService(t, kv, nil, newFakeClock())
	assert.Len(t, s.Snapshot(), 3)
}

func TestNoteService_RestoreKeepsEmptyCollection(t *testing.T) {
	ctx := context.Background()
	kv := repository.NewMemoryKVStore()
	require.NoError(t, kv.Set(ctx, ports.KeyNotes, []byte("[]")))

	s := newNoteService(t, kv, nil, newFakeClock())
	assert.Empty(t, s.Snapshot())
}

func TestNoteService_TagValidation(t *testing.T) {
	ctx := context.Background()
	s := newNoteService(t, repository.NewMemoryKVStore(), nil, newFakeClock(), WithSampleData(false))

	note, err := s.Add(ctx, ports.CreateNoteRequest{Title: "blank tags", Content: "c", Tags: []string{"", "", "work"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"work"}, note.Tags)

	_, err = s.Add(ctx, ports.CreateNoteRequest{Title: "long tag", Content: "c", Tags: []string{strings.Repeat("x", 51)}})
	assert.ErrorIs(t, err, entities.ErrValidation)
}

func TestNoteService_AddUpdateDelete(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	rec := &recorder{}
	s := newNoteService(t, repository.NewMemoryKVStore(), rec, clock, WithSampleData(false))

	note, err := s.Add(ctx, ports.CreateNoteRequest{Title: "Groceries", Content: "milk", Tags: []string{"home", "", "home"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"home"}, note.Tags)
	assert.Equal(t, testNow, note.CreatedAt)
	assert.Equal(t, note.CreatedAt, note.UpdatedAt)

	clock.Advance(time.Minute)
	title := "Groceries list"
	updated, err := s.Update(ctx, note.ID, ports.UpdateNoteRequest{Title: &title})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, "Groceries list", updated.Title)
	assert.Equal(t, "milk", updated.Content)
	assert.Equal(t, testNow.Add(time.Minute), updated.UpdatedAt)

	missing, err := s.Update(ctx, "nope", ports.UpdateNoteRequest{Title: &title})
	require.NoError(t, err)
	assert.Nil(t, missing)

	removed, err := s.Delete(ctx, note.ID)
	require.NoError(t, err)
	require.NotNil(t, removed)
	assert.Equal(t, note.ID, removed.ID)
	assert.Nil(t, s.Get(note.ID))

	gone, err := s.Delete(ctx, note.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	assert.Equal(t, []ports.Topic{
		ports.TopicNotesChanged, // restore
		ports.TopicNotesChanged,
		ports.TopicNotesChanged,
		ports.TopicNotesChanged,
	}, rec.topics())
	payload := rec.last().Payload.(ports.NotesChanged)
	assert.Empty(t, payload.Notes)
}

func TestNoteService_AddRejectsMissingTitle(t *testing.T) {
	s := newNoteService(t, repository.NewMemoryKVStore(), nil, newFakeClock(), WithSampleData(false))

	_, err := s.Add(context.Background(), ports.CreateNoteRequest{Content: "x"})
	assert.ErrorIs(t, err, entities.ErrValidation)
}

func TestNoteService_ListFiltersAndSorts(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := newNoteService(t, repository.NewMemoryKVStore(), nil, clock, WithSampleData(false))

	a, _ := s.Add(ctx, ports.CreateNoteRequest{Title: "Alpha", Content: "Go generics", Tags: []string{"code"}})
	clock.Advance(time.Minute)
	b, _ := s.Add(ctx, ports.CreateNoteRequest{Title: "Beta", Content: "shopping", Tags: []string{"home"}})
	clock.Advance(time.Minute)
	_, _ = s.Add(ctx, ports.CreateNoteRequest{Title: "Gamma", Content: "more GO", Tags: []string{"code", "Golang"}})
	clock.Advance(time.Minute)
	content := "Go again"
	_, err := s.Update(ctx, a.ID, ports.UpdateNoteRequest{Content: &content})
	require.NoError(t, err)

	titles := func(notes []entities.Note) []string {
		out := []string{}
		for _, n := range notes {
			out = append(out, n.Title)
		}
		return out
	}

	assert.Equal(t, []string{"Alpha", "Gamma", "Beta"}, titles(s.List(ports.NoteFilter{})))
	assert.Equal(t, []string{"Alpha", "Gamma"}, titles(s.List(ports.NoteFilter{Tag: "code"})))
	assert.Empty(t, s.List(ports.NoteFilter{Tag: "cod"}), "tag filter is exact")
	assert.Equal(t, []string{"Alpha", "Gamma"}, titles(s.List(ports.NoteFilter{Keyword: "go"})))
	assert.Equal(t, []string{"Gamma"}, titles(s.List(ports.NoteFilter{Keyword: "golang"})), "keyword searches tags")
	assert.Equal(t, []string{"Beta"}, titles(s.List(ports.NoteFilter{Tag: "home", Keyword: "SHOP"})))
	assert.Equal(t, b.ID, s.List(ports.NoteFilter{Tag: "home"})[0].ID)
}

func TestNoteService_StatsAndTags(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	kv := repository.NewMemoryKVStore()

	old := []entities.Note{
		{ID: "old", Title: "Old", Content: "x", Tags: []string{"b"}, CreatedAt: testNow.AddDate(0, 0, -10), UpdatedAt: testNow.AddDate(0, 0, -10)},
		{ID: "sun", Title: "Sunday", Content: "x", Tags: []string{}, CreatedAt: time.Date(2024, 5, 12, 0, 0, 0, 0, testZone)},
		{ID: "sat", Title: "Saturday", Content: "x", Tags: []string{"a", "b"}, CreatedAt: time.Date(2024, 5, 11, 23, 59, 0, 0, testZone)},
	}
	s := newNoteService(t, kv, nil, clock, WithSampleData(false))
	n, err := s.Import(ctx, mustJSON(t, old))
	require.NoError(t, err)
	require.Equal(t, 3, n)

	stats := s.Stats()
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 3, stats.Completed)
	assert.Equal(t, 2, stats.WithTags)
	assert.Equal(t, 1, stats.WithoutTags)
	assert.Equal(t, 1, stats.ThisWeek, "week starts Sunday 00:00")
	assert.Equal(t, map[string]int{"a": 1, "b": 2}, stats.TagStats)

	assert.Equal(t, []string{"a", "b"}, s.AvailableTags())
	assert.Equal(t, 2, s.TagCount("b"))
	assert.Equal(t, 0, s.TagCount("zzz"))
}

func TestNoteService_ImportDropsInvalidRecords(t *testing.T) {
	ctx := context.Background()
	s := newNoteService(t, repository.NewMemoryKVStore(), nil, newFakeClock())

	data := []byte(`{"version":"1.0","notes":[
		{"id":"1","title":"ok","content":"c","tags":[]},
		{"id":"2","title":"no tags","content":"c"},
		{"id":"","title":"no id","content":"c","tags":[]},
		{"id":"4","title":"empty content","content":"","tags":["x"]},
		"garbage"
	]}`)
	n, err := s.Import(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	notes := s.Snapshot()
	require.Len(t, notes, 1)
	assert.Equal(t, "1", notes[0].ID)

	_, err = s.Import(ctx, []byte(`"nope"`))
	assert.ErrorIs(t, err, entities.ErrInvalidImport)
}

func TestNoteService_ExportRoundTrip(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	src := newNoteService(t, repository.NewMemoryKVStore(), nil, clock)

	exported := src.Export()
	assert.Equal(t, ExportVersion, exported.Version)
	require.Len(t, exported.Notes, 3)

	dst := newNoteService(t, repository.NewMemoryKVStore(), nil, clock, WithSampleData(false))
	n, err := dst.Import(ctx, mustJSON(t, exported))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	if diff := cmp.Diff(src.Snapshot(), dst.Snapshot(), cmpopts.EquateEmpty(), cmpopts.EquateApproxTime(0)); diff != "" {
		t.Errorf("imported notes differ (-exported +imported):\n%s", diff)
	}
}

func TestNoteService_PersistFailureIsReturned(t *testing.T) {
	kv := &failingKV{MemoryKVStore: repository.NewMemoryKVStore()}
	s := newNoteService(t, kv, nil, newFakeClock(), WithSampleData(false))

	kv.fail = true
	_, err := s.Add(context.Background(), ports.CreateNoteRequest{Title: "t"})
	assert.ErrorContains(t, err, "disk full")
}
