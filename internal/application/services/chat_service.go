package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/keladiary/core/internal/domain/entities"
	"github.com/keladiary/core/internal/infrastructure/logger"
	"github.com/keladiary/core/internal/ports"
)

const (
	// DefaultSessionTitle names sessions created without a title.
	DefaultSessionTitle = "New conversation"

	autoTitleRunes   = 30
	backupTimeLayout = "2006-01-02T15:04:05.000Z07:00"
)

// ChatSettings tunes completion calls and backups.
type ChatSettings struct {
	DefaultModel string
	Temperature  float64
	MaxTokens    int
	BackupEvery  int
	BackupRetain int
}

func (c ChatSettings) withDefaults() ChatSettings {
	if c.DefaultModel == "" {
		c.DefaultModel = entities.DefaultChatModel
	}
	if c.Temperature == 0 {
		c.Temperature = 0.7
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 2000
	}
	if c.BackupEvery <= 0 {
		c.BackupEvery = 10
	}
	if c.BackupRetain <= 0 {
		c.BackupRetain = 5
	}
	return c
}

// ChatBackup is the payload of an ai_chat_backup_* slot.
type ChatBackup struct {
	Sessions         []entities.ChatSession `json:"sessions"`
	CurrentSessionID string                 `json:"currentSessionId"`
	Timestamp        string                 `json:"timestamp"`
	Version          string                 `json:"version"`
}

// BackupInfo describes one stored backup.
type BackupInfo struct {
	Key       string    `json:"key"`
	Timestamp string    `json:"timestamp"`
	Date      time.Time `json:"date"`
}

// ChatExport is the export envelope of every session.
type ChatExport struct {
	Version    string                 `json:"version"`
	ExportTime time.Time              `json:"exportTime"`
	Sessions   []entities.ChatSession `json:"sessions"`
}

// SessionExport is the export envelope of one session.
type SessionExport struct {
	Version    string               `json:"version"`
	ExportTime time.Time            `json:"exportTime"`
	Session    entities.ChatSession `json:"session"`
}

// ChatState is the observable state of the chat store.
type ChatState struct {
	CurrentSessionID string `json:"currentSessionId"`
	CurrentModel     string `json:"currentModel"`
	Loading          bool   `json:"isLoading"`
	Streaming        bool   `json:"isStreaming"`
	StreamingMessage string `json:"streamingMessage"`
	LastError        string `json:"error,omitempty"`
	SessionCount     int    `json:"sessionCount"`
}

// ChatService owns chat sessions and talks to the injected completer.
type ChatService struct {
	mu               sync.RWMutex
	sessions         []entities.ChatSession
	currentID        string
	currentModel     string
	loading          bool
	streaming        bool
	streamingMessage string
	lastError        string

	completer ports.ChatCompleter
	kv        ports.KVStore
	settings  ChatSettings
	slot      slot[[]entities.ChatSession]
	logger    *logger.Logger
	opts      options
}

// NewChatService creates an empty store. completer may be nil, in which case
// sending fails with entities.ErrNotConfigured.
func NewChatService(kv ports.KVStore, completer ports.ChatCompleter, log *logger.Logger, settings ChatSettings, opts ...Option) *ChatService {
	o := buildOptions(opts)
	settings = settings.withDefaults()
	log = log.WithComponent("chat")
	return &ChatService{
		sessions:     []entities.ChatSession{},
		currentModel: settings.DefaultModel,
		completer:    completer,
		kv:           kv,
		settings:     settings,
		slot:         newSlot[[]entities.ChatSession](kv, ports.KeyChatSessions, log, o.metrics),
		logger:       log,
		opts:         o,
	}
}

// Restore loads sessions. An unreadable sessions slot falls back to the
// newest backup.
func (s *ChatService) Restore(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, found, err := s.slot.load(ctx)
	var corrupt *corruptError
	if err != nil && !errors.As(err, &corrupt) {
		return err
	}
	if corrupt != nil {
		s.logger.Warnw("Stored chat sessions unreadable, trying newest backup", "error", corrupt.Error())
		keys, kerr := s.backupKeysLocked(ctx)
		if kerr != nil {
			return kerr
		}
		if len(keys) == 0 {
			s.sessions = []entities.ChatSession{}
			return nil
		}
		return s.restoreBackupLocked(ctx, keys[0])
	}

	if found && sessions != nil {
		s.sessions = sessions
	}
	savedID, ok, err := s.kv.Get(ctx, ports.KeyChatCurrent)
	if err != nil {
		return fmt.Errorf("failed to read current session: %w", err)
	}
	s.currentID = ""
	if ok && s.indexLocked(string(savedID)) >= 0 {
		s.currentID = string(savedID)
	} else if len(s.sessions) > 0 {
		s.currentID = s.sessions[0].ID
	}
	if cur := s.currentLocked(); cur != nil && cur.Model != "" {
		s.currentModel = cur.Model
	}
	s.logger.Infow("Chat sessions restored", "count", len(s.sessions), "current", s.currentID)
	return nil
}

// CreateSession prepends a session and makes it current.
func (s *ChatService) CreateSession(ctx context.Context, title string) (*entities.ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session := s.createLocked(title)
	if err := s.saveLocked(ctx); err != nil {
		return nil, err
	}
	return ptr(session.Clone()), nil
}

func (s *ChatService) createLocked(title string) entities.ChatSession {
	if title == "" {
		title = DefaultSessionTitle
	}
	now := s.opts.clock()
	session := entities.ChatSession{
		ID:        s.opts.newID(),
		Title:     title,
		Messages:  []entities.ChatMessage{},
		Model:     s.currentModel,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.sessions = append([]entities.ChatSession{session}, s.sessions...)
	s.currentID = session.ID
	return session
}

// SwitchSession makes id current and adopts its model.
func (s *ChatService) SwitchSession(ctx context.Context, id string) (*entities.ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return nil, fmt.Errorf("session %s: %w", id, entities.ErrNotFound)
	}
	s.currentID = id
	if s.sessions[i].Model != "" {
		s.currentModel = s.sessions[i].Model
	}
	if err := s.saveLocked(ctx); err != nil {
		return nil, err
	}
	return ptr(s.sessions[i].Clone()), nil
}

// DeleteSession removes a session. When it was current, the first remaining
// session becomes current.
func (s *ChatService) DeleteSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return fmt.Errorf("session %s: %w", id, entities.ErrNotFound)
	}
	s.sessions = append(s.sessions[:i], s.sessions[i+1:]...)
	if s.currentID == id {
		s.currentID = ""
		if len(s.sessions) > 0 {
			s.currentID = s.sessions[0].ID
		}
	}
	return s.saveLocked(ctx)
}

// UpdateSessionTitle renames a session.
func (s *ChatService) UpdateSessionTitle(ctx context.Context, id, title string) (*entities.ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return nil, fmt.Errorf("session %s: %w", id, entities.ErrNotFound)
	}
	s.sessions[i].Title = title
	s.sessions[i].UpdatedAt = s.opts.clock()
	if err := s.saveLocked(ctx); err != nil {
		return nil, err
	}
	return ptr(s.sessions[i].Clone()), nil
}

// SwitchModel sets the model for new messages and the current session.
func (s *ChatService) SwitchModel(ctx context.Context, model string) error {
	if strings.TrimSpace(model) == "" {
		return fmt.Errorf("model is required: %w", entities.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.currentModel = model
	cur := s.currentLocked()
	if cur == nil {
		return nil
	}
	cur.Model = model
	cur.UpdatedAt = s.opts.clock()
	return s.saveLocked(ctx)
}

// Sessions lists sessions matching keyword in stored order.
func (s *ChatService) Sessions(keyword string) []entities.ChatSession {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []entities.ChatSession{}
	for _, session := range s.sessions {
		if session.Matches(keyword) {
			out = append(out, session.Clone())
		}
	}
	return out
}

// Session returns a copy of one session or nil.
func (s *ChatService) Session(id string) *entities.ChatSession {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.indexLocked(id); i >= 0 {
		return ptr(s.sessions[i].Clone())
	}
	return nil
}

// CurrentSession returns a copy of the current session or nil.
func (s *ChatService) CurrentSession() *entities.ChatSession {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if cur := s.currentLocked(); cur != nil {
		return ptr(cur.Clone())
	}
	return nil
}

// AddMessage appends a message to the current session, creating one when
// none is current.
func (s *ChatService) AddMessage(ctx context.Context, content string, role entities.MessageRole) (*entities.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, _ := s.addMessageLocked(content, role, "")
	if err := s.saveLocked(ctx); err != nil {
		return nil, err
	}
	return &msg, nil
}

// addMessageLocked appends to sessionID, or to the current session when
// sessionID is empty. It returns the message and the session it landed in.
func (s *ChatService) addMessageLocked(content string, role entities.MessageRole, sessionID string) (entities.ChatMessage, string) {
	i := s.indexLocked(sessionID)
	if i < 0 {
		i = s.indexLocked(s.currentID)
	}
	if i < 0 {
		s.createLocked("")
		i = 0
	}
	session := &s.sessions[i]

	now := s.opts.clock()
	msg := entities.ChatMessage{
		ID:        s.opts.newID(),
		Role:      role,
		Content:   content,
		Timestamp: now,
	}
	if role == entities.RoleAssistant {
		msg.Model = s.currentModel
	}
	session.Messages = append(session.Messages, msg)
	session.UpdatedAt = now

	if len(session.Messages) == 1 && role == entities.RoleUser {
		session.Title = autoTitle(content)
	}
	return msg, session.ID
}

func autoTitle(content string) string {
	runes := []rune(content)
	if len(runes) > autoTitleRunes {
		return string(runes[:autoTitleRunes]) + "..."
	}
	return content
}

// SendMessage records the user message, asks the completer for a reply and
// records it. On failure the user message stays, no reply is added and the
// error is kept in LastError.
func (s *ChatService) SendMessage(ctx context.Context, content string) (*entities.ChatMessage, error) {
	req, sessionID, err := s.beginSend(ctx, content, false)
	if err != nil {
		return nil, err
	}

	resp, err := s.completer.Complete(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		return nil, s.failSendLocked(err)
	}

	msg, _ := s.addMessageLocked(resp.Message, entities.RoleAssistant, sessionID)
	if err := s.saveLocked(ctx); err != nil {
		return nil, err
	}
	return &msg, nil
}

// SendMessageStream is SendMessage with incremental delivery. onChunk, when
// not nil, sees every fragment as it arrives; the fragments also accumulate
// in StreamingMessage until the reply is committed.
func (s *ChatService) SendMessageStream(ctx context.Context, content string, onChunk func(string)) (*entities.ChatMessage, error) {
	req, sessionID, err := s.beginSend(ctx, content, true)
	if err != nil {
		return nil, err
	}

	err = s.completer.Stream(ctx, req, func(chunk string) {
		s.mu.Lock()
		s.streamingMessage += chunk
		s.mu.Unlock()
		if onChunk != nil {
			onChunk(chunk)
		}
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	reply := s.streamingMessage
	s.loading = false
	s.streaming = false
	s.streamingMessage = ""
	if err != nil {
		return nil, s.failSendLocked(err)
	}
	if reply == "" {
		return nil, nil
	}

	msg, _ := s.addMessageLocked(reply, entities.RoleAssistant, sessionID)
	if err := s.saveLocked(ctx); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (s *ChatService) beginSend(ctx context.Context, content string, stream bool) (ports.CompletionRequest, string, error) {
	if strings.TrimSpace(content) == "" {
		return ports.CompletionRequest{}, "", fmt.Errorf("message content is required: %w", entities.ErrValidation)
	}
	if s.completer == nil {
		return ports.CompletionRequest{}, "", fmt.Errorf("chat completer: %w", entities.ErrNotConfigured)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastError = ""
	s.loading = true
	s.streaming = stream
	s.streamingMessage = ""

	_, sessionID := s.addMessageLocked(content, entities.RoleUser, "")
	if err := s.saveLocked(ctx); err != nil {
		s.loading = false
		s.streaming = false
		return ports.CompletionRequest{}, "", err
	}

	session := &s.sessions[s.indexLocked(sessionID)]
	msgs := make([]ports.CompletionMessage, len(session.Messages))
	for i, m := range session.Messages {
		msgs[i] = ports.CompletionMessage{Role: m.Role, Content: m.Content}
	}
	return ports.CompletionRequest{
		Model:       s.currentModel,
		Messages:    msgs,
		Temperature: s.settings.Temperature,
		MaxTokens:   s.settings.MaxTokens,
	}, sessionID, nil
}

func (s *ChatService) failSendLocked(err error) error {
	s.lastError = err.Error()
	s.logger.Errorw("Chat completion failed", "error", err, "model", s.currentModel)
	return err
}

// StreamingMessage is the reply accumulated so far by an in-flight stream.
func (s *ChatService) StreamingMessage() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.streamingMessage
}

// LastError is the message of the most recent failed send.
func (s *ChatService) LastError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError
}

// ClearError resets LastError.
func (s *ChatService) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = ""
}

// State reports the observable store state.
func (s *ChatService) State() ChatState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return ChatState{
		CurrentSessionID: s.currentID,
		CurrentModel:     s.currentModel,
		Loading:          s.loading,
		Streaming:        s.streaming,
		StreamingMessage: s.streamingMessage,
		LastError:        s.lastError,
		SessionCount:     len(s.sessions),
	}
}

// Models returns the selectable model catalogue.
func (s *ChatService) Models() []entities.ChatModel {
	return entities.ChatModels()
}

// ClearAll drops every session and the stored sessions slot. Backups stay.
func (s *ChatService) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions = []entities.ChatSession{}
	s.currentID = ""
	s.lastError = ""
	for _, key := range []string{ports.KeyChatSessions, ports.KeyChatCurrent} {
		if err := s.kv.Delete(ctx, key); err != nil {
			return fmt.Errorf("failed to delete %s: %w", key, err)
		}
	}
	return nil
}

// ExportSessions returns every session in an export envelope.
func (s *ChatService) ExportSessions() ChatExport {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return ChatExport{
		Version:    ExportVersion,
		ExportTime: s.opts.now().UTC(),
		Sessions:   cloneSessions(s.sessions),
	}
}

// ExportSession returns one session in an export envelope, or nil.
func (s *ChatService) ExportSession(id string) *SessionExport {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexLocked(id)
	if i < 0 {
		return nil
	}
	return &SessionExport{
		Version:    ExportVersion,
		ExportTime: s.opts.now().UTC(),
		Session:    s.sessions[i].Clone(),
	}
}

// ImportSessions merges sessions whose ids are new, then orders everything
// by most recent update. Failures are reported in the result, not as errors.
func (s *ChatService) ImportSessions(ctx context.Context, data []byte) ports.ImportResult {
	var payload struct {
		Version  string                 `json:"version"`
		Sessions []entities.ChatSession `json:"sessions"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return ports.ImportResult{Message: "failed to parse data, check the file format"}
	}
	if payload.Version == "" || payload.Sessions == nil {
		return ports.ImportResult{Message: "invalid data format"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := make(map[string]struct{}, len(s.sessions))
	for _, session := range s.sessions {
		existing[session.ID] = struct{}{}
	}
	imported := 0
	for _, session := range payload.Sessions {
		if _, dup := existing[session.ID]; dup {
			continue
		}
		if session.Messages == nil {
			session.Messages = []entities.ChatMessage{}
		}
		existing[session.ID] = struct{}{}
		s.sessions = append(s.sessions, session)
		imported++
	}
	sort.SliceStable(s.sessions, func(i, j int) bool {
		return s.sessions[i].UpdatedAt.After(s.sessions[j].UpdatedAt)
	})

	if err := s.saveLocked(ctx); err != nil {
		return ports.ImportResult{Message: err.Error()}
	}
	return ports.ImportResult{
		Success:  true,
		Message:  fmt.Sprintf("imported %d sessions", imported),
		Imported: imported,
	}
}

// CreateBackup writes a backup now and returns its key.
func (s *ChatService) CreateBackup(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createBackupLocked(ctx)
}

// Backups lists stored backups, newest first.
func (s *ChatService) Backups(ctx context.Context) ([]BackupInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys, err := s.backupKeysLocked(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]BackupInfo, 0, len(keys))
	for _, key := range keys {
		ts := strings.TrimPrefix(key, ports.KeyChatBackupPrefix)
		info := BackupInfo{Key: key, Timestamp: ts}
		if t, err := time.Parse(backupTimeLayout, ts); err == nil {
			info.Date = t
		}
		out = append(out, info)
	}
	return out, nil
}

// DeleteBackup removes one backup.
func (s *ChatService) DeleteBackup(ctx context.Context, key string) error {
	if !strings.HasPrefix(key, ports.KeyChatBackupPrefix) {
		return fmt.Errorf("backup %s: %w", key, entities.ErrNotFound)
	}
	return s.kv.Delete(ctx, key)
}

// RestoreFromBackup replaces every session with the backup's content.
func (s *ChatService) RestoreFromBackup(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restoreBackupLocked(ctx, key)
}

func (s *ChatService) restoreBackupLocked(ctx context.Context, key string) error {
	if !strings.HasPrefix(key, ports.KeyChatBackupPrefix) {
		return fmt.Errorf("backup %s: %w", key, entities.ErrNotFound)
	}
	data, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to read backup %s: %w", key, err)
	}
	if !ok {
		return fmt.Errorf("backup %s: %w", key, entities.ErrNotFound)
	}
	var backup ChatBackup
	if err := json.Unmarshal(data, &backup); err != nil {
		return fmt.Errorf("backup %s is corrupt: %w", key, err)
	}

	s.sessions = backup.Sessions
	if s.sessions == nil {
		s.sessions = []entities.ChatSession{}
	}
	s.currentID = backup.CurrentSessionID
	if cur := s.currentLocked(); cur != nil && cur.Model != "" {
		s.currentModel = cur.Model
	}
	s.logger.Infow("Chat sessions restored from backup", "key", key, "count", len(s.sessions))
	return s.saveLocked(ctx)
}

// backupKeysLocked returns backup keys, newest first.
func (s *ChatService) backupKeysLocked(ctx context.Context) ([]string, error) {
	keys, err := s.kv.Keys(ctx, ports.KeyChatBackupPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	return keys, nil
}

func (s *ChatService) createBackupLocked(ctx context.Context) (string, error) {
	at, err := s.nextBackupTimeLocked(ctx)
	if err != nil {
		return "", err
	}
	ts := at.Format(backupTimeLayout)
	key := ports.KeyChatBackupPrefix + ts
	data, err := json.Marshal(ChatBackup{
		Sessions:         s.sessions,
		CurrentSessionID: s.currentID,
		Timestamp:        ts,
		Version:          ExportVersion,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode backup: %w", err)
	}
	if err := s.kv.Set(ctx, key, data); err != nil {
		s.logger.LogPersistence("backup", key, len(data), err)
		return "", fmt.Errorf("failed to write backup: %w", err)
	}

	keys, err := s.backupKeysLocked(ctx)
	if err != nil {
		return key, err
	}
	for _, stale := range keys[min(len(keys), s.settings.BackupRetain):] {
		if err := s.kv.Delete(ctx, stale); err != nil {
			s.logger.Warnw("Failed to prune chat backup", "key", stale, "error", err)
		}
	}
	s.logger.Infow("Chat backup created", "key", key, "sessions", len(s.sessions))
	return key, nil
}

// nextBackupTimeLocked returns the current time at millisecond resolution,
// moved past the newest existing backup so keys stay unique and sort
// chronologically.
func (s *ChatService) nextBackupTimeLocked(ctx context.Context) (time.Time, error) {
	at := s.opts.now().UTC().Truncate(time.Millisecond)
	keys, err := s.backupKeysLocked(ctx)
	if err != nil {
		return time.Time{}, err
	}
	if len(keys) == 0 {
		return at, nil
	}
	newest, err := time.Parse(backupTimeLayout, strings.TrimPrefix(keys[0], ports.KeyChatBackupPrefix))
	if err == nil && !at.After(newest) {
		at = newest.UTC().Add(time.Millisecond)
	}
	return at, nil
}

// saveLocked writes sessions and the current id, and takes a backup on every
// BackupEvery-th save.
func (s *ChatService) saveLocked(ctx context.Context) error {
	if err := s.slot.save(ctx, s.sessions); err != nil {
		return err
	}
	if err := s.kv.Set(ctx, ports.KeyChatCurrent, []byte(s.currentID)); err != nil {
		return fmt.Errorf("failed to write current session: %w", err)
	}

	count := 0
	if raw, ok, err := s.kv.Get(ctx, ports.KeyChatSaveCount); err == nil && ok {
		count, _ = strconv.Atoi(string(raw))
	}
	count++
	if err := s.kv.Set(ctx, ports.KeyChatSaveCount, []byte(strconv.Itoa(count))); err != nil {
		return fmt.Errorf("failed to write save count: %w", err)
	}
	if count%s.settings.BackupEvery == 0 {
		if _, err := s.createBackupLocked(ctx); err != nil {
			s.logger.Warnw("Periodic chat backup failed", "error", err)
		}
	}
	return nil
}

func (s *ChatService) indexLocked(id string) int {
	if id == "" {
		return -1
	}
	for i := range s.sessions {
		if s.sessions[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *ChatService) currentLocked() *entities.ChatSession {
	if i := s.indexLocked(s.currentID); i >= 0 {
		return &s.sessions[i]
	}
	return nil
}

func cloneSessions(in []entities.ChatSession) []entities.ChatSession {
	out := make([]entities.ChatSession, len(in))
	for i, session := range in {
		out[i] = session.Clone()
	}
	return out
}
