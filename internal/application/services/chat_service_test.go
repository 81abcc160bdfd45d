package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keladiary/core/internal/adapters/repository"
	"github.com/keladiary/core/internal/domain/entities"
	"github.com/keladiary/core/internal/infrastructure/logger"
	"github.com/keladiary/core/internal/ports"
)

type fakeCompleter struct {
	reply    string
	chunks   []string
	err      error
	requests []ports.CompletionRequest
}

func (f *fakeCompleter) Complete(_ context.Context, req ports.CompletionRequest) (*ports.CompletionResponse, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &ports.CompletionResponse{Message: f.reply, Model: req.Model}, nil
}

func (f *fakeCompleter) Stream(_ context.Context, req ports.CompletionRequest, onChunk func(string)) error {
	f.requests = append(f.requests, req)
	for _, c := range f.chunks {
		onChunk(c)
	}
	return f.err
}

func newChatService(t *testing.T, kv ports.KVStore, completer ports.ChatCompleter, clock *fakeClock, opts ...Option) *ChatService {
	t.Helper()
	s := NewChatService(kv, completer, logger.NewNop(), ChatSettings{}, testOptions(clock, opts...)...)
	require.NoError(t, s.Restore(context.Background()))
	return s
}

func TestChatService_SendMessage(t *testing.T) {
	ctx := context.Background()
	completer := &fakeCompleter{reply: "Hello there"}
	s := newChatService(t, repository.NewMemoryKVStore(), completer, newFakeClock())

	msg, err := s.SendMessage(ctx, "Hi")
	require.NoError(t, err)
	assert.Equal(t, entities.RoleAssistant, msg.Role)
	assert.Equal(t, entities.DefaultChatModel, msg.Model)

	cur := s.CurrentSession()
	require.NotNil(t, cur, "a session is created lazily")
	assert.Equal(t, "Hi", cur.Title)
	require.Len(t, cur.Messages, 2)
	assert.Empty(t, cur.Messages[0].Model, "user messages carry no model")

	require.Len(t, completer.requests, 1)
	req := completer.requests[0]
	assert.Equal(t, entities.DefaultChatModel, req.Model)
	assert.Equal(t, 0.7, req.Temperature)
	assert.Equal(t, 2000, req.MaxTokens)
	assert.Equal(t, []ports.CompletionMessage{{Role: entities.RoleUser, Content: "Hi"}}, req.Messages)

	state := s.State()
	assert.False(t, state.Loading)
	assert.Empty(t, state.LastError)
}

func TestChatService_SendFailureKeepsUserMessage(t *testing.T) {
	ctx := context.Background()
	completer := &fakeCompleter{err: &ports.CompletionError{StatusCode: 401, Message: "bad key"}}
	s := newChatService(t, repository.NewMemoryKVStore(), completer, newFakeClock())

	_, err := s.SendMessage(ctx, "Hi")
	var cerr *ports.CompletionError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, 401, cerr.StatusCode)

	cur := s.CurrentSession()
	require.Len(t, cur.Messages, 1)
	assert.Equal(t, entities.RoleUser, cur.Messages[0].Role)
	assert.Equal(t, err.Error(), s.LastError())
	assert.False(t, s.State().Loading)

	s.ClearError()
	assert.Empty(t, s.LastError())
}

func TestChatService_SendRejectsBlankAndUnconfigured(t *testing.T) {
	ctx := context.Background()
	s := newChatService(t, repository.NewMemoryKVStore(), &fakeCompleter{}, newFakeClock())
	_, err := s.SendMessage(ctx, "   ")
	assert.ErrorIs(t, err, entities.ErrValidation)
	assert.Nil(t, s.CurrentSession())

	bare := newChatService(t, repository.NewMemoryKVStore(), nil, newFakeClock())
	_, err = bare.SendMessage(ctx, "Hi")
	assert.ErrorIs(t, err, entities.ErrNotConfigured)
}

func TestChatService_SendMessageStream(t *testing.T) {
	ctx := context.Background()
	completer := &fakeCompleter{chunks: []string{"Hel", "lo"}}
	s := newChatService(t, repository.NewMemoryKVStore(), completer, newFakeClock())

	var seen []string
	msg, err := s.SendMessageStream(ctx, "Hi", func(c string) {
		seen = append(seen, c)
		assert.True(t, s.State().Streaming)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Hel", "lo"}, seen)
	assert.Equal(t, "Hello", msg.Content)
	assert.Empty(t, s.StreamingMessage())
	assert.False(t, s.State().Streaming)

	completer.chunks = []string{"partial"}
	completer.err = &ports.CompletionError{Message: "stream broke"}
	_, err = s.SendMessageStream(ctx, "again", nil)
	require.Error(t, err)
	cur := s.CurrentSession()
	require.Len(t, cur.Messages, 3, "failed stream adds no assistant message")
	assert.Empty(t, s.StreamingMessage())
}

func TestChatService_AutoTitleTruncatesRunes(t *testing.T) {
	ctx := context.Background()
	s := newChatService(t, repository.NewMemoryKVStore(), nil, newFakeClock())

	long := strings.Repeat("日", 31)
	_, err := s.AddMessage(ctx, long, entities.RoleUser)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("日", 30)+"...", s.CurrentSession().Title)

	_, err = s.CreateSession(ctx, "")
	require.NoError(t, err)
	_, err = s.AddMessage(ctx, "system prompt", entities.RoleSystem)
	require.NoError(t, err)
	assert.Equal(t, DefaultSessionTitle, s.CurrentSession().Title, "only a first user message titles the session")
}

func TestChatService_SessionManagement(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := newChatService(t, repository.NewMemoryKVStore(), nil, clock)

	first, err := s.CreateSession(ctx, "first")
	require.NoError(t, err)
	require.NoError(t, s.SwitchModel(ctx, "openai/gpt-4o"))
	second, err := s.CreateSession(ctx, "second")
	require.NoError(t, err)
	assert.Equal(t, "openai/gpt-4o", second.Model)
	require.NoError(t, s.SwitchModel(ctx, "deepseek/deepseek-chat"))

	sessions := s.Sessions("")
	require.Len(t, sessions, 2)
	assert.Equal(t, second.ID, sessions[0].ID, "new sessions are prepended")

	_, err = s.SwitchSession(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "openai/gpt-4o", s.State().CurrentModel, "switching adopts the session model")

	renamed, err := s.UpdateSessionTitle(ctx, first.ID, "renamed")
	require.NoError(t, err)
	assert.Equal(t, "renamed", renamed.Title)
	assert.Len(t, s.Sessions("RENAMED"), 1)

	require.NoError(t, s.DeleteSession(ctx, first.ID))
	assert.Equal(t, second.ID, s.State().CurrentSessionID)
	assert.ErrorIs(t, s.DeleteSession(ctx, first.ID), entities.ErrNotFound)
	_, err = s.SwitchSession(ctx, "nope")
	assert.ErrorIs(t, err, entities.ErrNotFound)

	assert.NotEmpty(t, s.Models())
}

func TestChatService_RestoreResumesCurrentSession(t *testing.T) {
	ctx := context.Background()
	kv := repository.NewMemoryKVStore()
	clock := newFakeClock()
	s := newChatService(t, kv, nil, clock)

	a, err := s.CreateSession(ctx, "a")
	require.NoError(t, err)
	require.NoError(t, s.SwitchModel(ctx, "openai/gpt-4o"))
	_, err = s.CreateSession(ctx, "b")
	require.NoError(t, err)
	_, err = s.SwitchSession(ctx, a.ID)
	require.NoError(t, err)

	raw, ok, err := kv.Get(ctx, ports.KeyChatSessions)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotContains(t, string(raw), "\n", "sessions are stored compactly")

	restored := newChatService(t, kv, nil, clock)
	state := restored.State()
	assert.Equal(t, a.ID, state.CurrentSessionID)
	assert.Equal(t, "openai/gpt-4o", state.CurrentModel)
	assert.Equal(t, 2, state.SessionCount)
}

func TestChatService_PeriodicBackupsAndRetention(t *testing.T) {
	ctx := context.Background()
	kv := repository.NewMemoryKVStore()
	clock := newFakeClock()
	s := newChatService(t, kv, nil, clock)

	for i := 0; i < 70; i++ {
		clock.Advance(time.Second)
		_, err := s.AddMessage(ctx, "m", entities.RoleUser)
		require.NoError(t, err)
	}

	count, _, err := kv.Get(ctx, ports.KeyChatSaveCount)
	require.NoError(t, err)
	assert.Equal(t, "70", string(count))

	backups, err := s.Backups(ctx)
	require.NoError(t, err)
	require.Len(t, backups, 5, "only the newest five are kept")
	assert.Equal(t, ports.KeyChatBackupPrefix+"2024-05-15T02:01:10.000Z", backups[0].Key)
	assert.Equal(t, time.Date(2024, 5, 15, 2, 1, 10, 0, time.UTC), backups[0].Date)
	assert.True(t, backups[0].Key > backups[4].Key)
}

func TestChatService_BackupKeysStayUniqueWithinMillisecond(t *testing.T) {
	ctx := context.Background()
	kv := repository.NewMemoryKVStore()
	s := newChatService(t, kv, nil, newFakeClock())

	for i := 0; i < 50; i++ {
		_, err := s.AddMessage(ctx, "m", entities.RoleUser)
		require.NoError(t, err)
	}

	backups, err := s.Backups(ctx)
	require.NoError(t, err)
	keys := make([]string, len(backups))
	for i, b := range backups {
		keys[i] = b.Key
	}
	assert.Equal(t, []string{
		ports.KeyChatBackupPrefix + "2024-05-15T02:00:00.004Z",
		ports.KeyChatBackupPrefix + "2024-05-15T02:00:00.003Z",
		ports.KeyChatBackupPrefix + "2024-05-15T02:00:00.002Z",
		ports.KeyChatBackupPrefix + "2024-05-15T02:00:00.001Z",
		ports.KeyChatBackupPrefix + "2024-05-15T02:00:00.000Z",
	}, keys)

	key, err := s.CreateBackup(ctx)
	require.NoError(t, err)
	assert.Equal(t, ports.KeyChatBackupPrefix+"2024-05-15T02:00:00.005Z", key)
}

func TestChatService_RestoreFallsBackToNewestBackup(t *testing.T) {
	ctx := context.Background()
	kv := repository.NewMemoryKVStore()
	clock := newFakeClock()
	s := newChatService(t, kv, nil, clock)

	_, err := s.AddMessage(ctx, "keep me", entities.RoleUser)
	require.NoError(t, err)
	key, err := s.CreateBackup(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ai_chat_backup_2024-05-15T02:00:00.000Z", key)

	require.NoError(t, kv.Set(ctx, ports.KeyChatSessions, []byte("{broken")))
	restored := newChatService(t, kv, nil, clock)
	cur := restored.CurrentSession()
	require.NotNil(t, cur)
	assert.Equal(t, "keep me", cur.Title)

	require.NoError(t, restored.DeleteBackup(ctx, key))
	assert.ErrorIs(t, restored.RestoreFromBackup(ctx, key), entities.ErrNotFound)
	assert.ErrorIs(t, restored.DeleteBackup(ctx, ports.KeyNotes), entities.ErrNotFound)
}

func TestChatService_ImportExport(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	src := newChatService(t, repository.NewMemoryKVStore(), nil, clock)
	old, err := src.CreateSession(ctx, "old")
	require.NoError(t, err)
	clock.Advance(time.Hour)
	_, err = src.CreateSession(ctx, "new")
	require.NoError(t, err)

	exported := src.ExportSessions()
	assert.Equal(t, "1.0", exported.Version)
	require.Nil(t, src.ExportSession("nope"))
	single := src.ExportSession(old.ID)
	require.NotNil(t, single)
	assert.Equal(t, "old", single.Session.Title)

	dst := newChatService(t, repository.NewMemoryKVStore(), nil, clock, WithIDGenerator(prefixedIDs("dst")))
	clock.Advance(-30 * time.Minute)
	_, err = dst.CreateSession(ctx, "local")
	require.NoError(t, err)

	result := dst.ImportSessions(ctx, mustJSON(t, exported))
	assert.Equal(t, ports.ImportResult{Success: true, Message: "imported 2 sessions", Imported: 2}, result)
	result = dst.ImportSessions(ctx, mustJSON(t, exported))
	assert.Equal(t, 0, result.Imported, "duplicates are skipped")

	titles := []string{}
	for _, session := range dst.Sessions("") {
		titles = append(titles, session.Title)
	}
	assert.Equal(t, []string{"new", "local", "old"}, titles)

	assert.False(t, dst.ImportSessions(ctx, []byte("nope")).Success)
	bad := dst.ImportSessions(ctx, []byte(`{"sessions":[]}`))
	assert.Equal(t, "invalid data format", bad.Message)
}

func TestChatService_ClearAll(t *testing.T) {
	ctx := context.Background()
	kv := repository.NewMemoryKVStore()
	s := newChatService(t, kv, nil, newFakeClock())
	_, err := s.CreateSession(ctx, "x")
	require.NoError(t, err)

	require.NoError(t, s.ClearAll(ctx))
	assert.Empty(t, s.Sessions(""))
	_, ok, err := kv.Get(ctx, ports.KeyChatSessions)
	require.NoError(t, err)
	assert.False(t, ok)
}
