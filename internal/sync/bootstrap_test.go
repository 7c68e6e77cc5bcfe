package sync

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/njoerd114/bookmarkrelay/internal/model"
	"github.com/njoerd114/bookmarkrelay/internal/native"
	"github.com/njoerd114/bookmarkrelay/internal/state"
)

func newTestBootstrap(h *harness, input string, yes bool) (*Bootstrap, *bytes.Buffer) {
	var out bytes.Buffer
	return NewBootstrap(h.mapper, h.mat, h.restorer, testLogger, strings.NewReader(input), &out, yes), &out
}

func TestBootstrap_SkipsWhenMapped(t *testing.T) {
	h := newHarness(t, true, nil)
	if err := h.mapper.Add(context.Background(), model.IDMapping{SyncedID: 2, NativeID: "3"}); err != nil {
		t.Fatal(err)
	}

	b, out := newTestBootstrap(h, "y\n", false)
	action, err := b.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if action != 0 {
		t.Errorf("action = %v, want none", action)
	}
	if out.Len() != 0 {
		t.Errorf("unexpected output: %q", out.String())
	}
}

func TestBootstrap_UploadsWhenRemoteEmpty(t *testing.T) {
	h := newHarness(t, true, nil)
	h.quietly(func() {
		f := h.create(t, native.OtherID, -1, "F", "")
		h.create(t, f, -1, "A", "http://a")
		h.create(t, native.ToolbarID, -1, "T", "http://t")
	})

	b, out := newTestBootstrap(h, "y\n", false)
	action, err := b.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if action != BootstrapUpload {
		t.Fatalf("action = %v, want upload", action)
	}
	if got, want := shape(h.synced(t)), "Other{F[A]} Toolbar{T}"; got != want {
		t.Errorf("synced = %s, want %s", got, want)
	}
	h.assertMapped(t)

	summary := out.String()
	for _, want := range []string{"Container", "Other", "uploaded", "Proceed?"} {
		if !strings.Contains(summary, want) {
			t.Errorf("summary missing %q:\n%s", want, summary)
		}
	}
}

func TestBootstrap_RestoresSyncedTree(t *testing.T) {
	h := newHarness(t, true, nil)
	ctx := context.Background()
	h.quietly(func() { h.create(t, native.OtherID, -1, "local", "http://l") })
	synced := []*model.Bookmark{
		{ID: 1, Title: "Other", Children: []*model.Bookmark{
			{ID: 2, Title: "R", URL: "http://r"},
			{ID: 3, Title: "-"},
		}},
		{ID: 4, Title: "Mobile", Children: []*model.Bookmark{
			{ID: 5, Title: "M", URL: "http://m"},
		}},
	}
	if err := state.SetJSON(ctx, h.remote, state.KeyBookmarks, synced); err != nil {
		t.Fatal(err)
	}

	b, _ := newTestBootstrap(h, "", true)
	action, err := b.Run(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if action != BootstrapRestore {
		t.Fatalf("action = %v, want restore", action)
	}
	if got, want := shape(h.nativeAsBookmarks(t)), "Mobile{M} Other{R,-}"; got != want {
		t.Errorf("native = %s, want %s", got, want)
	}
	all, _ := h.mapper.All(ctx)
	if len(all) != 3 {
		t.Errorf("mappings = %v, want 3", all)
	}
	h.assertMapped(t)
}

func TestBootstrap_Cancelled(t *testing.T) {
	h := newHarness(t, true, nil)
	h.quietly(func() { h.create(t, native.OtherID, -1, "A", "http://a") })

	b, _ := newTestBootstrap(h, "n\n", false)
	action, err := b.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if action != 0 {
		t.Errorf("action = %v, want none", action)
	}
	if _, ok, _ := h.remote.Get(context.Background(), state.KeyBookmarks); ok {
		t.Error("remote written despite cancellation")
	}
}

func TestRestorer_Clear(t *testing.T) {
	h := newHarness(t, true, nil)
	ctx := context.Background()
	h.quietly(func() { h.create(t, native.OtherID, -1, "A", "http://a") })
	h.seed(t)

	h.quietly(func() {
		if err := h.restorer.Clear(ctx); err != nil {
			t.Fatalf("Clear: %v", err)
		}
	})
	if children, _ := h.tree.GetChildren(ctx, native.OtherID); len(children) != 0 {
		t.Errorf("native Other has %d children, want 0", len(children))
	}
	if all, _ := h.mapper.All(ctx); len(all) != 0 {
		t.Errorf("mappings = %v, want none", all)
	}
	if got, want := shape(h.synced(t)), "Other{A}"; got != want {
		t.Errorf("synced = %s, want %s", got, want)
	}
}
