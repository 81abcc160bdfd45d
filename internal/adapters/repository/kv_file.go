package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/keladiary/core/internal/ports"
)

const (
	fileLockTimeout    = 3 * time.Second
	fileLockRetryDelay = 100 * time.Millisecond
)

// FileKVStore keeps every slot in a single JSON object on disk. Each operation
// takes an exclusive flock on <path>.lock and rereads the file, so several
// processes may share it. Writes go to a temp file that is renamed into place.
type FileKVStore struct {
	path   string
	lock   *flock.Flock
	mu     sync.Mutex
	closed bool
}

// NewFileKVStore prepares a store backed by path. The file is created on first write.
func NewFileKVStore(path string) (*FileKVStore, error) {
	if path == "" {
		return nil, errors.New("storage file path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return &FileKVStore{
		path: path,
		lock: flock.New(path + ".lock"),
	}, nil
}

func (s *FileKVStore) withLock(ctx context.Context, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ports.ErrStoreClosed
	}

	lockCtx, cancel := context.WithTimeout(ctx, fileLockTimeout)
	defer cancel()

	locked, err := s.lock.TryLockContext(lockCtx, fileLockRetryDelay)
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("failed to acquire lock on %s", s.path)
	}
	defer func() { _ = s.lock.Unlock() }()

	return fn()
}

func (s *FileKVStore) load() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	if len(data) == 0 {
		return map[string]string{}, nil
	}

	slots := map[string]string{}
	if err := json.Unmarshal(data, &slots); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	return slots, nil
}

func (s *FileKVStore) save(slots map[string]string) error {
	data, err := json.MarshalIndent(slots, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	tmpFile := s.path + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0o600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpFile, s.path); err != nil {
		_ = os.Remove(tmpFile)
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}

func (s *FileKVStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var (
		value string
		found bool
	)
	err := s.withLock(ctx, func() error {
		slots, err := s.load()
		if err != nil {
			return err
		}
		value, found = slots[key]
		return nil
	})
	if err != nil || !found {
		return nil, false, err
	}
	return []byte(value), true, nil
}

func (s *FileKVStore) Set(ctx context.Context, key string, value []byte) error {
	return s.withLock(ctx, func() error {
		slots, err := s.load()
		if err != nil {
			return err
		}
		slots[key] = string(value)
		return s.save(slots)
	})
}

func (s *FileKVStore) Delete(ctx context.Context, key string) error {
	return s.withLock(ctx, func() error {
		slots, err := s.load()
		if err != nil {
			return err
		}
		if _, ok := slots[key]; !ok {
			return nil
		}
		delete(slots, key)
		return s.save(slots)
	})
}

func (s *FileKVStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := s.withLock(ctx, func() error {
		slots, err := s.load()
		if err != nil {
			return err
		}
		keys = make([]string, 0, len(slots))
		for k := range slots {
			if strings.HasPrefix(k, prefix) {
				keys = append(keys, k)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *FileKVStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return s.lock.Close()
}
