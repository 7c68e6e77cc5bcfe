package state

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Key enumerates the entries held in a key-value store.
type Key string

const (
	// KeyBookmarkIDMappings holds the identity mapper's full mapping set.
	KeyBookmarkIDMappings Key = "bookmarkIdMappings"
	// KeyBookmarks holds the synced bookmark tree.
	KeyBookmarks Key = "bookmarks"
	// KeyLastUpdated holds the time of the last successful sync pass.
	KeyLastUpdated Key = "lastUpdated"
)

// KV is a last-write-wins key-value store. Implemented by [*Store] and by
// the remote object store.
type KV interface {
	Get(ctx context.Context, key Key) ([]byte, bool, error)
	Set(ctx context.Context, key Key, value []byte) error
	Remove(ctx context.Context, key Key) error
}

// GetJSON decodes the value under key into v. It reports false, leaving v
// untouched, when the key is unset.
func GetJSON(ctx context.Context, kv KV, key Key, v any) (bool, error) {
	raw, ok, err := kv.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("decoding %q: %w", key, err)
	}
	return true, nil
}

// SetJSON encodes v and stores it under key, replacing any previous value.
func SetJSON(ctx context.Context, kv KV, key Key, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %q: %w", key, err)
	}
	return kv.Set(ctx, key, raw)
}

// SetLastUpdated records t under KeyLastUpdated.
func SetLastUpdated(ctx context.Context, kv KV, t time.Time) error {
	return SetJSON(ctx, kv, KeyLastUpdated, t.UTC())
}

// LastUpdated returns the time recorded under KeyLastUpdated, or the zero time.
func LastUpdated(ctx context.Context, kv KV) (time.Time, error) {
	var t time.Time
	if _, err := GetJSON(ctx, kv, KeyLastUpdated, &t); err != nil {
		return time.Time{}, err
	}
	return t, nil
}
