package idmap

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/njoerd114/bookmarkrelay/internal/model"
	"github.com/njoerd114/bookmarkrelay/internal/state"
)

func newTestMapper(t *testing.T) *Mapper {
	t.Helper()
	s, err := state.Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("state.Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return New(s, slog.New(slog.DiscardHandler))
}

func TestAdd_PersistsSorted(t *testing.T) {
	ctx := context.Background()
	m := newTestMapper(t)

	if err := m.Add(ctx, model.IDMapping{SyncedID: 3, NativeID: "30"}, model.IDMapping{SyncedID: 1, NativeID: "10"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := m.Add(ctx, model.IDMapping{SyncedID: 2, NativeID: "20"}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	all, err := m.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	want := []int64{1, 2, 3}
	if len(all) != len(want) {
		t.Fatalf("len(All) = %d, want %d", len(all), len(want))
	}
	for i, id := range want {
		if all[i].SyncedID != id {
			t.Errorf("All[%d].SyncedID = %d, want %d", i, all[i].SyncedID, id)
		}
	}
}

func TestAdd_ReplacesConflicting(t *testing.T) {
	ctx := context.Background()
	m := newTestMapper(t)

	_ = m.Add(ctx, model.IDMapping{SyncedID: 1, NativeID: "10"}, model.IDMapping{SyncedID: 2, NativeID: "20"})
	// Native id 20 now belongs to synced id 5; synced id 1 gets a new native id.
	_ = m.Add(ctx, model.IDMapping{SyncedID: 5, NativeID: "20"}, model.IDMapping{SyncedID: 1, NativeID: "11"})

	all, _ := m.All(ctx)
	if len(all) != 2 {
		t.Fatalf("len(All) = %d, want 2: %+v", len(all), all)
	}
	if all[0] != (model.IDMapping{SyncedID: 1, NativeID: "11"}) {
		t.Errorf("All[0] = %+v", all[0])
	}
	if all[1] != (model.IDMapping{SyncedID: 5, NativeID: "20"}) {
		t.Errorf("All[1] = %+v", all[1])
	}
}

func TestGet_BothKeysResolve(t *testing.T) {
	ctx := context.Background()
	m := newTestMapper(t)

	mappings := []model.IDMapping{{SyncedID: 4, NativeID: "a"}, {SyncedID: 7, NativeID: "b"}, {SyncedID: 9}}
	if err := m.Add(ctx, mappings...); err != nil {
		t.Fatalf("Add: %v", err)
	}

	for _, want := range mappings {
		got, err := m.GetBySyncedID(ctx, want.SyncedID)
		if err != nil || got == nil || *got != want {
			t.Errorf("GetBySyncedID(%d) = %+v, %v; want %+v", want.SyncedID, got, err, want)
		}
		if want.NativeID == "" {
			continue
		}
		got, err = m.GetByNativeID(ctx, want.NativeID)
		if err != nil || got == nil || *got != want {
			t.Errorf("GetByNativeID(%q) = %+v, %v; want %+v", want.NativeID, got, err, want)
		}
	}
}

func TestGet_Missing(t *testing.T) {
	ctx := context.Background()
	m := newTestMapper(t)

	if got, err := m.GetBySyncedID(ctx, 1); got != nil || err != nil {
		t.Errorf("GetBySyncedID on empty = %+v, %v; want nil, nil", got, err)
	}
	if got, err := m.GetByNativeID(ctx, ""); got != nil || err != nil {
		t.Errorf("GetByNativeID(\"\") = %+v, %v; want nil, nil", got, err)
	}
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	m := newTestMapper(t)
	_ = m.Add(ctx, model.IDMapping{SyncedID: 1, NativeID: "10"}, model.IDMapping{SyncedID: 2, NativeID: "20"}, model.IDMapping{SyncedID: 3, NativeID: "30"})

	if err := m.Remove(ctx, []int64{1}, []string{"30"}); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if got, _ := m.GetBySyncedID(ctx, 1); got != nil {
		t.Errorf("synced 1 still mapped: %+v", got)
	}
	if got, _ := m.GetBySyncedID(ctx, 3); got != nil {
		t.Errorf("synced 3 still mapped: %+v", got)
	}
	if got, _ := m.GetBySyncedID(ctx, 2); got == nil {
		t.Error("synced 2 should remain")
	}
}

func TestRemove_MissingIsAtomic(t *testing.T) {
	ctx := context.Background()
	m := newTestMapper(t)
	_ = m.Add(ctx, model.IDMapping{SyncedID: 1, NativeID: "10"})

	err := m.Remove(ctx, []int64{1, 99}, nil)
	if !errors.Is(err, model.ErrMappingNotFound) {
		t.Fatalf("Remove error = %v, want ErrMappingNotFound", err)
	}
	if got, _ := m.GetBySyncedID(ctx, 1); got == nil {
		t.Error("failed Remove must not delete existing mappings")
	}

	if err := m.Remove(ctx, nil, []string{"nope"}); !errors.Is(err, model.ErrMappingNotFound) {
		t.Errorf("Remove native error = %v, want ErrMappingNotFound", err)
	}
}

func TestRemove_SameMappingByBothKeys(t *testing.T) {
	ctx := context.Background()
	m := newTestMapper(t)
	_ = m.Add(ctx, model.IDMapping{SyncedID: 1, NativeID: "10"})

	if err := m.Remove(ctx, []int64{1}, []string{"10"}); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if all, _ := m.All(ctx); len(all) != 0 {
		t.Errorf("All = %+v, want empty", all)
	}
}

func TestReplace(t *testing.T) {
	ctx := context.Background()
	m := newTestMapper(t)
	_ = m.Add(ctx, model.IDMapping{SyncedID: 8, NativeID: "old"})

	got, err := m.Replace(ctx, "old", "new")
	if err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if got != (model.IDMapping{SyncedID: 8, NativeID: "new"}) {
		t.Errorf("Replace = %+v", got)
	}
	if old, _ := m.GetByNativeID(ctx, "old"); old != nil {
		t.Errorf("old native id still mapped: %+v", old)
	}

	if _, err := m.Replace(ctx, "ghost", "x"); !errors.Is(err, model.ErrMappingNotFound) {
		t.Errorf("Replace missing error = %v, want ErrMappingNotFound", err)
	}
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	m := New(state.NewMemory(), slog.New(slog.DiscardHandler))
	_ = m.Add(ctx, model.IDMapping{SyncedID: 1, NativeID: "1"})

	if err := m.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	all, err := m.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("All after Clear = %+v, want empty", all)
	}
}
