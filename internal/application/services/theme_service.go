package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/keladiary/core/internal/domain/entities"
	"github.com/keladiary/core/internal/infrastructure/logger"
	"github.com/keladiary/core/internal/ports"
)

// ThemeService keeps the theme catalogue and the selected theme.
type ThemeService struct {
	mu        sync.RWMutex
	themes    []entities.Theme
	currentID string

	kv     ports.KVStore
	slot   slot[[]entities.Theme]
	logger *logger.Logger
	opts   options
}

// NewThemeService starts with the built-in themes and aurora selected.
func NewThemeService(kv ports.KVStore, log *logger.Logger, opts ...Option) *ThemeService {
	o := buildOptions(opts)
	log = log.WithComponent("themes")
	return &ThemeService{
		themes:    entities.BuiltinThemes(),
		currentID: entities.DefaultThemeID,
		kv:        kv,
		slot:      newSlot[[]entities.Theme](kv, ports.KeyThemes, log, o.metrics),
		logger:    log,
		opts:      o,
	}
}

// Restore loads the saved catalogue when it is a non-empty array, then the
// saved selection when it names a known theme.
func (s *ThemeService) Restore(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	themes, found, err := s.slot.load(ctx)
	var corrupt *corruptError
	switch {
	case err != nil && !errors.As(err, &corrupt):
		return err
	case corrupt != nil:
		s.logger.Warnw("Stored themes unreadable, using built-ins", "error", corrupt.Error())
	case found && len(themes) > 0:
		s.themes = themes
	}

	s.currentID = entities.DefaultThemeID
	raw, ok, err := s.kv.Get(ctx, ports.KeyTheme)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", ports.KeyTheme, err)
	}
	if ok && s.indexLocked(string(raw)) >= 0 {
		s.currentID = string(raw)
	}
	return nil
}

// Themes returns the catalogue.
func (s *ThemeService) Themes() []entities.Theme {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]entities.Theme, len(s.themes))
	for i, t := range s.themes {
		out[i] = t.Clone()
	}
	return out
}

// Current returns the selected theme.
func (s *ThemeService) Current() entities.Theme {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentLocked()
}

func (s *ThemeService) currentLocked() entities.Theme {
	if i := s.indexLocked(s.currentID); i >= 0 {
		return s.themes[i].Clone()
	}
	return entities.BuiltinThemes()[0]
}

// CSSVariables renders the selected theme's custom properties.
func (s *ThemeService) CSSVariables() map[string]string {
	return s.Current().CSSVariables()
}

// SetTheme selects a known theme.
func (s *ThemeService) SetTheme(ctx context.Context, id string) (*entities.Theme, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return nil, fmt.Errorf("theme %s: %w", id, entities.ErrNotFound)
	}
	s.currentID = id
	if err := s.saveLocked(ctx); err != nil {
		return nil, err
	}
	return ptr(s.themes[i].Clone()), nil
}

// CreateCustom copies baseID under a new name.
func (s *ThemeService) CreateCustom(ctx context.Context, baseID, name string) (*entities.Theme, error) {
	if err := recordValidator.Struct(ports.CreateThemeRequest{BaseThemeID: baseID, Name: name}); err != nil {
		return nil, fmt.Errorf("%w: %v", entities.ErrValidation, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(baseID)
	if i < 0 {
		return nil, fmt.Errorf("theme %s: %w", baseID, entities.ErrNotFound)
	}
	custom := s.themes[i].Clone()
	custom.ID = "custom-" + strconv.FormatInt(s.opts.now().UnixMilli(), 10)
	custom.Name = name
	custom.IsCustom = true
	if s.indexLocked(custom.ID) >= 0 {
		return nil, fmt.Errorf("theme %s: %w", custom.ID, entities.ErrConflict)
	}
	s.themes = append(s.themes, custom)

	if err := s.saveLocked(ctx); err != nil {
		return nil, err
	}
	return ptr(custom.Clone()), nil
}

// Update merges the non-nil fields of req into a theme.
func (s *ThemeService) Update(ctx context.Context, id string, req ports.UpdateThemeRequest) (*entities.Theme, error) {
	if err := recordValidator.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", entities.ErrValidation, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return nil, fmt.Errorf("theme %s: %w", id, entities.ErrNotFound)
	}
	t := &s.themes[i]
	for _, f := range []struct {
		src *string
		dst *string
	}{
		{req.Name, &t.Name},
		{req.Primary, &t.Primary},
		{req.Secondary, &t.Secondary},
		{req.Background, &t.Background},
		{req.Surface, &t.Surface},
		{req.Text, &t.Text},
		{req.TextSecondary, &t.TextSecondary},
		{req.Border, &t.Border},
		{req.Shadow, &t.Shadow},
		{req.Gradient, &t.Gradient},
		{req.ParticleColor, &t.ParticleColor},
	} {
		if f.src != nil {
			*f.dst = *f.src
		}
	}
	if req.BackgroundImage != nil {
		bg := *req.BackgroundImage
		t.BackgroundImage = &bg
	}
	if req.Animation != nil {
		t.Animation = *req.Animation
	}
	if req.Effects != nil {
		t.Effects = *req.Effects
	}
	updated := t.Clone()

	if err := s.saveLocked(ctx); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteCustom removes a custom theme. Deleting the selected theme selects
// aurora.
func (s *ThemeService) DeleteCustom(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return fmt.Errorf("theme %s: %w", id, entities.ErrNotFound)
	}
	if !s.themes[i].IsCustom {
		return fmt.Errorf("built-in theme %s cannot be deleted: %w", id, entities.ErrConflict)
	}
	s.themes = append(s.themes[:i], s.themes[i+1:]...)
	if s.currentID == id {
		s.currentID = entities.DefaultThemeID
	}
	return s.saveLocked(ctx)
}

// Reset restores a built-in theme to its shipped values.
func (s *ThemeService) Reset(ctx context.Context, id string) (*entities.Theme, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return nil, fmt.Errorf("theme %s: %w", id, entities.ErrNotFound)
	}
	for _, builtin := range entities.BuiltinThemes() {
		if builtin.ID == id {
			s.themes[i] = builtin
			if err := s.saveLocked(ctx); err != nil {
				return nil, err
			}
			return ptr(builtin.Clone()), nil
		}
	}
	return nil, fmt.Errorf("custom theme %s has no defaults: %w", id, entities.ErrConflict)
}

func (s *ThemeService) indexLocked(id string) int {
	for i := range s.themes {
		if s.themes[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *ThemeService) saveLocked(ctx context.Context) error {
	if err := s.kv.Set(ctx, ports.KeyTheme, []byte(s.currentID)); err != nil {
		return fmt.Errorf("failed to write %s: %w", ports.KeyTheme, err)
	}
	return s.slot.save(ctx, s.themes)
}
