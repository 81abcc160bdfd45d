package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/keladiary/core/internal/infrastructure/logger"
	"github.com/keladiary/core/internal/ports"
)

// slot is one JSON document in durable storage.
type slot[T any] struct {
	kv      ports.KVStore
	key     string
	logger  *logger.Logger
	metrics ports.Metrics
}

func newSlot[T any](kv ports.KVStore, key string, log *logger.Logger, m ports.Metrics) slot[T] {
	return slot[T]{kv: kv, key: key, logger: log, metrics: m}
}

// load reports found=false for an absent slot. A slot that exists but does not
// decode returns errCorrupt.
func (s slot[T]) load(ctx context.Context) (value T, found bool, err error) {
	data, ok, err := s.kv.Get(ctx, s.key)
	if err != nil {
		s.logger.LogPersistence("get", s.key, 0, err)
		return value, false, fmt.Errorf("failed to read %s: %w", s.key, err)
	}
	if !ok {
		return value, false, nil
	}
	if err := json.Unmarshal(data, &value); err != nil {
		s.logger.LogPersistence("decode", s.key, len(data), err)
		return value, true, &corruptError{key: s.key, err: err}
	}
	return value, true, nil
}

func (s slot[T]) save(ctx context.Context, value T) error {
	data, err := json.Marshal(value)
	if err != nil {
		s.metrics.ObservePersist(s.key, err)
		return fmt.Errorf("failed to encode %s: %w", s.key, err)
	}
	err = s.kv.Set(ctx, s.key, data)
	s.logger.LogPersistence("set", s.key, len(data), err)
	s.metrics.ObservePersist(s.key, err)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", s.key, err)
	}
	return nil
}

type corruptError struct {
	key string
	err error
}

func (e *corruptError) Error() string {
	return fmt.Sprintf("stored %s is corrupt: %v", e.key, e.err)
}

func (e *corruptError) Unwrap() error { return e.err }

// decodeRecords splits a JSON array, or an object holding the array under
// field, into raw records.
func decodeRecords(data []byte, field string) ([]json.RawMessage, error) {
	var records []json.RawMessage
	if err := json.Unmarshal(data, &records); err == nil {
		return records, nil
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("import must be a JSON array or object: %w", err)
	}
	raw, ok := envelope[field]
	if !ok {
		return nil, fmt.Errorf("import object has no %q field", field)
	}
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("import field %q must be an array: %w", field, err)
	}
	return records, nil
}
