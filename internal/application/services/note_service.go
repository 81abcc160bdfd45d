package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/keladiary/core/internal/domain/entities"
	"github.com/keladiary/core/internal/infrastructure/logger"
	"github.com/keladiary/core/internal/ports"
)

var recordValidator = validator.New()

// ExportVersion tags every export envelope.
const ExportVersion = "1.0"

// NotesExport is the notes export envelope.
type NotesExport struct {
	Version    string          `json:"version"`
	ExportTime time.Time       `json:"exportTime"`
	Notes      []entities.Note `json:"notes"`
}

type noteRecord struct {
	ID      string   `json:"id" validate:"required"`
	Title   string   `json:"title" validate:"required"`
	Content string   `json:"content" validate:"required"`
	Tags    []string `json:"tags" validate:"required"`
}

// NoteService owns the notes collection.
type NoteService struct {
	mu     sync.RWMutex
	notes  []entities.Note
	slot   slot[[]entities.Note]
	events ports.EventPublisher
	logger *logger.Logger
	opts   options
}

// NewNoteService creates an empty service. Call Restore to load durable state.
func NewNoteService(kv ports.KVStore, events ports.EventPublisher, log *logger.Logger, opts ...Option) *NoteService {
	o := buildOptions(opts)
	log = log.WithComponent("notes")
	return &NoteService{
		slot:   newSlot[[]entities.Note](kv, ports.KeyNotes, log, o.metrics),
		events: events,
		logger: log,
		opts:   o,
	}
}

// Restore loads the collection. An absent or unreadable slot is replaced by
// the sample notes.
func (s *NoteService) Restore(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	notes, found, err := s.slot.load(ctx)
	var corrupt *corruptError
	switch {
	case err != nil && !errors.As(err, &corrupt):
		return err
	case found && err == nil:
		if notes == nil {
			notes = []entities.Note{}
		}
		s.notes = notes
		s.logger.Infow("Notes restored", "count", len(notes))
		s.publishLocked(ctx)
		return nil
	}

	if corrupt != nil {
		s.logger.Warnw("Stored notes unreadable, reseeding", "error", corrupt.Error())
	}
	s.notes = []entities.Note{}
	if s.opts.seedSamples {
		s.notes = sampleNotes(s.opts.clock(), s.opts.newID)
	}
	if err := s.persistLocked(ctx); err != nil {
		return err
	}
	s.publishLocked(ctx)
	return nil
}

// Persist writes the whole collection.
func (s *NoteService) Persist(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.persistLocked(ctx)
}

// Add inserts a new note at the head of the collection.
func (s *NoteService) Add(ctx context.Context, req ports.CreateNoteRequest) (*entities.Note, error) {
	if err := recordValidator.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", entities.ErrValidation, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.opts.clock()
	note := entities.Note{
		ID:        s.opts.newID(),
		Title:     req.Title,
		Content:   req.Content,
		Tags:      normalizeTags(req.Tags),
		TextColor: req.TextColor,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.notes = append([]entities.Note{note}, s.notes...)

	if err := s.commitLocked(ctx); err != nil {
		return nil, err
	}
	return ptr(note.Clone()), nil
}

// Update merges the non-nil fields of req. It returns nil, nil when id is unknown.
func (s *NoteService) Update(ctx context.Context, id string, req ports.UpdateNoteRequest) (*entities.Note, error) {
	if err := recordValidator.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", entities.ErrValidation, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return nil, nil
	}

	n := &s.notes[i]
	if req.Title != nil {
		n.Title = *req.Title
	}
	if req.Content != nil {
		n.Content = *req.Content
	}
	if req.Tags != nil {
		n.Tags = normalizeTags(*req.Tags)
	}
	if req.TextColor != nil {
		n.TextColor = *req.TextColor
	}
	n.UpdatedAt = s.opts.clock()
	updated := n.Clone()

	if err := s.commitLocked(ctx); err != nil {
		return nil, err
	}
	return &updated, nil
}

// Delete removes a note and returns it, or nil when id is unknown.
func (s *NoteService) Delete(ctx context.Context, id string) (*entities.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return nil, nil
	}
	removed := s.notes[i]
	s.notes = append(s.notes[:i], s.notes[i+1:]...)

	if err := s.commitLocked(ctx); err != nil {
		return nil, err
	}
	return &removed, nil
}

// Get returns a copy of the note or nil.
func (s *NoteService) Get(id string) *entities.Note {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.indexLocked(id); i >= 0 {
		return ptr(s.notes[i].Clone())
	}
	return nil
}

// List applies the tag filter, then the keyword, and sorts newest update first.
func (s *NoteService) List(filter ports.NoteFilter) []entities.Note {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]entities.Note, 0, len(s.notes))
	for _, n := range s.notes {
		if filter.Tag != "" && !n.HasTag(filter.Tag) {
			continue
		}
		if !n.Matches(filter.Keyword) {
			continue
		}
		out = append(out, n.Clone())
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}

// Stats summarises the collection. Completed always equals Total.
func (s *NoteService) Stats() entities.NoteStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	weekStart := entities.StartOfWeek(s.opts.clock())
	stats := entities.NoteStats{
		Total:     len(s.notes),
		Completed: len(s.notes),
		TagStats:  make(map[string]int),
	}
	for _, n := range s.notes {
		if len(n.Tags) > 0 {
			stats.WithTags++
		} else {
			stats.WithoutTags++
		}
		if !n.CreatedAt.Before(weekStart) {
			stats.ThisWeek++
		}
		for _, t := range n.Tags {
			stats.TagStats[t]++
		}
	}
	return stats
}

// AvailableTags returns every tag in use, sorted.
func (s *NoteService) AvailableTags() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, n := range s.notes {
		for _, t := range n.Tags {
			seen[t] = struct{}{}
		}
	}
	tags := make([]string, 0, len(seen))
	for t := range seen {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}

// TagCount counts notes carrying tag.
func (s *NoteService) TagCount(tag string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, n := range s.notes {
		if n.HasTag(tag) {
			count++
		}
	}
	return count
}

// Snapshot returns a copy of the collection in stored order.
func (s *NoteService) Snapshot() []entities.Note {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneNotes(s.notes)
}

// Export returns the export envelope.
func (s *NoteService) Export() NotesExport {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return NotesExport{
		Version:    ExportVersion,
		ExportTime: s.opts.now().UTC(),
		Notes:      cloneNotes(s.notes),
	}
}

// Import replaces the collection with the valid records of data and returns
// how many were accepted.
func (s *NoteService) Import(ctx context.Context, data []byte) (int, error) {
	records, err := decodeRecords(data, "notes")
	if err != nil {
		return 0, fmt.Errorf("%w: %v", entities.ErrInvalidImport, err)
	}

	notes := make([]entities.Note, 0, len(records))
	for _, raw := range records {
		var rec noteRecord
		if json.Unmarshal(raw, &rec) != nil || recordValidator.Struct(rec) != nil {
			continue
		}
		var n entities.Note
		if err := json.Unmarshal(raw, &n); err != nil {
			continue
		}
		notes = append(notes, n)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.notes = notes
	if err := s.commitLocked(ctx); err != nil {
		return 0, err
	}
	s.logger.Infow("Notes imported", "received", len(records), "accepted", len(notes))
	return len(notes), nil
}

func (s *NoteService) indexLocked(id string) int {
	for i := range s.notes {
		if s.notes[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *NoteService) persistLocked(ctx context.Context) error {
	return s.slot.save(ctx, s.notes)
}

func (s *NoteService) commitLocked(ctx context.Context) error {
	if err := s.persistLocked(ctx); err != nil {
		return err
	}
	s.publishLocked(ctx)
	return nil
}

func (s *NoteService) publishLocked(ctx context.Context) {
	if s.events == nil {
		return
	}
	s.events.Publish(ctx, ports.Event{
		Topic:      ports.TopicNotesChanged,
		Payload:    ports.NotesChanged{Notes: cloneNotes(s.notes)},
		OccurredAt: s.opts.now(),
	})
}

func cloneNotes(in []entities.Note) []entities.Note {
	out := make([]entities.Note, len(in))
	for i, n := range in {
		out[i] = n.Clone()
	}
	return out
}

// normalizeTags drops blanks and duplicates while keeping order.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func ptr[T any](v T) *T { return &v }
