package ports

import (
	"context"
	"errors"
)

// ErrStoreClosed is returned by backends after Close.
var ErrStoreClosed = errors.New("store is closed")

// KVStore is the durable slot storage every store persists through. Each key
// holds one opaque value; writes are last-writer-wins and there are no
// transactions across keys.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// Keys lists keys with the given prefix in ascending order.
	Keys(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

// Storage keys.
const (
	KeyNotes            = "kela-diary-notes"
	KeyTodos            = "kela-diary-todos"
	KeyBoards           = "project_boards"
	KeyTheme            = "kela-diary-theme"
	KeyThemes           = "kela-diary-themes"
	KeyChatSessions     = "ai_chat_sessions"
	KeyChatCurrent      = "ai_chat_current_session_id"
	KeyChatSaveCount    = "ai_chat_save_count"
	KeyChatBackupPrefix = "ai_chat_backup_"
	KeyRegisteredUsers  = "registered_users"
	KeyAuthToken        = "auth_token"
	KeyAuthUser         = "auth_user"
)
