package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("document not found")

// DocumentStore persists whole JSON documents under flat string keys.
// Writes replace the previous document; there is no versioning.
type DocumentStore interface {
	Ping(ctx context.Context) error
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// GetJSON decodes the document stored under key into v. It reports false
// without error when the key is absent.
func GetJSON(ctx context.Context, s DocumentStore, key string, v any) (bool, error) {
	raw, err := s.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("get %q: %w", key, err)
	}

	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("decode %q: %w", key, err)
	}

	return true, nil
}

func PutJSON(ctx context.Context, s DocumentStore, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}

	if err := s.Put(ctx, key, raw); err != nil {
		return fmt.Errorf("put %q: %w", key, err)
	}

	return nil
}
