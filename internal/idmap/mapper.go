// Package idmap persists the bidirectional mapping between native bookmark
// ids and synced bookmark ids.
//
// The whole mapping set is stored as one JSON blob under
// [state.KeyBookmarkIDMappings], sorted by synced id. Every mutation reads the
// set, edits it in memory, and rewrites it wholesale.
package idmap

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/njoerd114/bookmarkrelay/internal/model"
	"github.com/njoerd114/bookmarkrelay/internal/state"
)

// Mapper is the identity mapper. It is not safe for concurrent mutation;
// callers serialise writes through the event queue processor.
type Mapper struct {
	store state.KV
	log   *slog.Logger
}

// New returns a Mapper persisting into store.
func New(store state.KV, logger *slog.Logger) *Mapper {
	return &Mapper{store: store, log: logger}
}

func (m *Mapper) load(ctx context.Context) ([]model.IDMapping, error) {
	var mappings []model.IDMapping
	if _, err := state.GetJSON(ctx, m.store, state.KeyBookmarkIDMappings, &mappings); err != nil {
		return nil, fmt.Errorf("loading id mappings: %w", err)
	}
	return mappings, nil
}

func (m *Mapper) save(ctx context.Context, mappings []model.IDMapping) error {
	slices.SortFunc(mappings, func(a, b model.IDMapping) int {
		return cmp.Compare(a.SyncedID, b.SyncedID)
	})
	if mappings == nil {
		mappings = []model.IDMapping{}
	}
	if err := state.SetJSON(ctx, m.store, state.KeyBookmarkIDMappings, mappings); err != nil {
		return fmt.Errorf("saving id mappings: %w", err)
	}
	return nil
}

// All returns every stored mapping, sorted by synced id.
func (m *Mapper) All(ctx context.Context) ([]model.IDMapping, error) {
	return m.load(ctx)
}

// Add stores the given mappings. An existing mapping sharing either id with a
// new one is replaced, which keeps both ids unique across the set.
func (m *Mapper) Add(ctx context.Context, mappings ...model.IDMapping) error {
	if len(mappings) == 0 {
		return nil
	}
	existing, err := m.load(ctx)
	if err != nil {
		return err
	}
	for _, add := range mappings {
		existing = slices.DeleteFunc(existing, func(e model.IDMapping) bool {
			return e.SyncedID == add.SyncedID || (add.NativeID != "" && e.NativeID == add.NativeID)
		})
		existing = append(existing, add)
	}
	if err := m.save(ctx, existing); err != nil {
		return err
	}
	m.log.Debug("id mappings added", "count", len(mappings))
	return nil
}

// GetByNativeID returns the mapping for a native id, or nil if none exists.
func (m *Mapper) GetByNativeID(ctx context.Context, nativeID string) (*model.IDMapping, error) {
	if nativeID == "" {
		return nil, nil
	}
	return m.find(ctx, func(e model.IDMapping) bool { return e.NativeID == nativeID })
}

// GetBySyncedID returns the mapping for a synced id, or nil if none exists.
func (m *Mapper) GetBySyncedID(ctx context.Context, syncedID int64) (*model.IDMapping, error) {
	return m.find(ctx, func(e model.IDMapping) bool { return e.SyncedID == syncedID })
}

func (m *Mapper) find(ctx context.Context, match func(model.IDMapping) bool) (*model.IDMapping, error) {
	mappings, err := m.load(ctx)
	if err != nil {
		return nil, err
	}
	if i := slices.IndexFunc(mappings, match); i >= 0 {
		found := mappings[i]
		return &found, nil
	}
	return nil, nil
}

// Remove deletes the mappings for every given synced id and native id. If any
// id has no mapping, nothing is removed and the error wraps
// [model.ErrMappingNotFound].
func (m *Mapper) Remove(ctx context.Context, syncedIDs []int64, nativeIDs []string) error {
	if len(syncedIDs) == 0 && len(nativeIDs) == 0 {
		return nil
	}
	mappings, err := m.load(ctx)
	if err != nil {
		return err
	}

	for _, id := range syncedIDs {
		if !slices.ContainsFunc(mappings, func(e model.IDMapping) bool { return e.SyncedID == id }) {
			return fmt.Errorf("%w: synced id %d", model.ErrMappingNotFound, id)
		}
	}
	for _, id := range nativeIDs {
		if !slices.ContainsFunc(mappings, func(e model.IDMapping) bool { return e.NativeID == id }) {
			return fmt.Errorf("%w: native id %q", model.ErrMappingNotFound, id)
		}
	}

	remaining := slices.DeleteFunc(mappings, func(e model.IDMapping) bool {
		return slices.Contains(syncedIDs, e.SyncedID) || (e.NativeID != "" && slices.Contains(nativeIDs, e.NativeID))
	})
	if err := m.save(ctx, remaining); err != nil {
		return err
	}
	m.log.Debug("id mappings removed", "synced", len(syncedIDs), "native", len(nativeIDs))
	return nil
}

// Replace swaps the native id of the mapping currently held by oldNativeID,
// preserving its synced id. It returns the updated mapping.
func (m *Mapper) Replace(ctx context.Context, oldNativeID, newNativeID string) (model.IDMapping, error) {
	old, err := m.GetByNativeID(ctx, oldNativeID)
	if err != nil {
		return model.IDMapping{}, err
	}
	if old == nil {
		return model.IDMapping{}, fmt.Errorf("%w: native id %q", model.ErrMappingNotFound, oldNativeID)
	}
	if err := m.Remove(ctx, []int64{old.SyncedID}, nil); err != nil {
		return model.IDMapping{}, err
	}
	updated := model.IDMapping{SyncedID: old.SyncedID, NativeID: newNativeID}
	if err := m.Add(ctx, updated); err != nil {
		return model.IDMapping{}, err
	}
	m.log.Info("id mapping updated", "synced_id", updated.SyncedID, "old_native_id", oldNativeID, "native_id", newNativeID)
	return updated, nil
}

// Clear deletes the whole mapping set.
func (m *Mapper) Clear(ctx context.Context) error {
	if err := m.store.Remove(ctx, state.KeyBookmarkIDMappings); err != nil {
		return fmt.Errorf("clearing id mappings: %w", err)
	}
	return nil
}
