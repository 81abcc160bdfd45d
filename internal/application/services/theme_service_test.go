package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keladiary/core/internal/adapters/repository"
	"github.com/keladiary/core/internal/domain/entities"
	"github.com/keladiary/core/internal/infrastructure/logger"
	"github.com/keladiary/core/internal/ports"
)

func newThemeService(t *testing.T, kv ports.KVStore, clock *fakeClock) *ThemeService {
	t.Helper()
	s := NewThemeService(kv, logger.NewNop(), testOptions(clock)...)
	require.NoError(t, s.Restore(context.Background()))
	return s
}

func TestThemeService_Defaults(t *testing.T) {
	s := newThemeService(t, repository.NewMemoryKVStore(), newFakeClock())

	assert.Equal(t, entities.DefaultThemeID, s.Current().ID)
	assert.Len(t, s.Themes(), len(entities.BuiltinThemes()))
	vars := s.CSSVariables()
	assert.Equal(t, "#4facfe", vars["--theme-primary"])
	assert.Equal(t, "1", vars["--theme-animation-enabled"])
}

func TestThemeService_SetThemePersists(t *testing.T) {
	ctx := context.Background()
	kv := repository.NewMemoryKVStore()
	clock := newFakeClock()
	s := newThemeService(t, kv, clock)

	_, err := s.SetTheme(ctx, "ocean")
	require.NoError(t, err)
	_, err = s.SetTheme(ctx, "nope")
	assert.ErrorIs(t, err, entities.ErrNotFound)

	raw, _, err := kv.Get(ctx, ports.KeyTheme)
	require.NoError(t, err)
	assert.Equal(t, "ocean", string(raw), "the selection is stored as a bare id")

	assert.Equal(t, "ocean", newThemeService(t, kv, clock).Current().ID)
}

func TestThemeService_CustomThemes(t *testing.T) {
	ctx := context.Background()
	kv := repository.NewMemoryKVStore()
	clock := newFakeClock()
	s := newThemeService(t, kv, clock)

	custom, err := s.CreateCustom(ctx, "sunset", "Mine")
	require.NoError(t, err)
	assert.Equal(t, "custom-1715738400000", custom.ID)
	assert.True(t, custom.IsCustom)
	assert.Equal(t, "Mine", custom.Name)

	primary := "#123456"
	updated, err := s.Update(ctx, custom.ID, ports.UpdateThemeRequest{Primary: &primary, Effects: &entities.ThemeEffects{Noise: true}})
	require.NoError(t, err)
	assert.Equal(t, "#123456", updated.Primary)
	assert.True(t, updated.Effects.Noise)

	_, err = s.SetTheme(ctx, custom.ID)
	require.NoError(t, err)

	reloaded := newThemeService(t, kv, clock)
	assert.Equal(t, custom.ID, reloaded.Current().ID)
	assert.Equal(t, "#123456", reloaded.Current().Primary)

	require.NoError(t, reloaded.DeleteCustom(ctx, custom.ID))
	assert.Equal(t, entities.DefaultThemeID, reloaded.Current().ID, "deleting the selected theme falls back")
	assert.ErrorIs(t, reloaded.DeleteCustom(ctx, "aurora"), entities.ErrConflict)
	assert.ErrorIs(t, reloaded.DeleteCustom(ctx, custom.ID), entities.ErrNotFound)

	clock.Advance(time.Second)
	_, err = reloaded.CreateCustom(ctx, "missing", "x")
	assert.ErrorIs(t, err, entities.ErrNotFound)
}

func TestThemeService_Reset(t *testing.T) {
	ctx := context.Background()
	s := newThemeService(t, repository.NewMemoryKVStore(), newFakeClock())

	name := "Renamed"
	_, err := s.Update(ctx, "forest", ports.UpdateThemeRequest{Name: &name})
	require.NoError(t, err)

	reset, err := s.Reset(ctx, "forest")
	require.NoError(t, err)
	for _, b := range entities.BuiltinThemes() {
		if b.ID == "forest" {
			assert.Equal(t, b.Name, reset.Name)
		}
	}

	custom, err := s.CreateCustom(ctx, "forest", "c")
	require.NoError(t, err)
	_, err = s.Reset(ctx, custom.ID)
	assert.ErrorIs(t, err, entities.ErrConflict)
}

func TestThemeService_RestoreIgnoresEmptyCatalogue(t *testing.T) {
	ctx := context.Background()
	kv := repository.NewMemoryKVStore()
	require.NoError(t, kv.Set(ctx, ports.KeyThemes, []byte("[]")))
	require.NoError(t, kv.Set(ctx, ports.KeyTheme, []byte("vanished")))

	s := newThemeService(t, kv, newFakeClock())
	assert.Len(t, s.Themes(), len(entities.BuiltinThemes()))
	assert.Equal(t, entities.DefaultThemeID, s.Current().ID)
}
