package container

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/njoerd114/bookmarkrelay/internal/model"
	"github.com/njoerd114/bookmarkrelay/internal/native"
)

func newTestResolver(t *testing.T) (*Resolver, *native.Tree) {
	t.Helper()
	tree := native.NewTree()
	return NewResolver(tree, slog.New(slog.DiscardHandler)), tree
}

func mustCreate(t *testing.T, tree *native.Tree, parent, title, url string) *model.NativeNode {
	t.Helper()
	n, err := tree.Create(context.Background(), native.CreateDetails{ParentID: parent, Title: title, URL: url})
	if err != nil {
		t.Fatalf("Create(%q): %v", title, err)
	}
	return n
}

// brokenTree hides a permanent root.
type brokenTree struct {
	*native.Tree
	hide string
}

func (b brokenTree) GetTree(ctx context.Context) (*model.NativeNode, error) {
	root, err := b.Tree.GetTree(ctx)
	if err != nil {
		return nil, err
	}
	kept := root.Children[:0]
	for _, c := range root.Children {
		if c.ID != b.hide {
			kept = append(kept, c)
		}
	}
	root.Children = kept
	return root, nil
}

func TestNativeContainerIDs(t *testing.T) {
	r, tree := newTestResolver(t)
	_ = mustCreate(t, tree, native.OtherID, "Plain", "")
	menu := mustCreate(t, tree, native.OtherID, "Menu", "")
	_ = mustCreate(t, tree, native.OtherID, "Mobile", "http://not-a-folder")

	ids, err := r.NativeContainerIDs(context.Background())
	if err != nil {
		t.Fatalf("NativeContainerIDs: %v", err)
	}
	want := IDs{Menu: menu.ID, Other: native.OtherID, Toolbar: native.ToolbarID}
	if ids != want {
		t.Errorf("ids = %+v, want %+v", ids, want)
	}
	if c, ok := ids.ContainerOf(menu.ID); !ok || c != model.ContainerMenu {
		t.Errorf("ContainerOf(menu) = %v, %v", c, ok)
	}
	if _, ok := ids.ContainerOf(""); ok {
		t.Error("ContainerOf(\"\") should be false")
	}
}

func TestNativeContainerIDs_MissingRoot(t *testing.T) {
	for _, hide := range []string{native.OtherID, native.ToolbarID} {
		r := NewResolver(brokenTree{Tree: native.NewTree(), hide: hide}, slog.New(slog.DiscardHandler))
		if _, err := r.NativeContainerIDs(context.Background()); !errors.Is(err, model.ErrContainerNotFound) {
			t.Errorf("hide %s: error = %v, want ErrContainerNotFound", hide, err)
		}
	}
}

func TestWasContainerChanged(t *testing.T) {
	ctx := context.Background()
	syncedWithMenu := []*model.Bookmark{
		{ID: 1, Title: "Menu"},
		{ID: 2, Title: "Other"},
	}

	t.Run("container title", func(t *testing.T) {
		r, _ := newTestResolver(t)
		node := &model.NativeNode{ID: "50", ParentID: "99", Title: "Menu"}
		changed, err := r.WasContainerChanged(ctx, node, nil)
		if err != nil || !changed {
			t.Errorf("changed = %v, %v; want true", changed, err)
		}
	})

	t.Run("not under other", func(t *testing.T) {
		r, tree := newTestResolver(t)
		n := mustCreate(t, tree, native.ToolbarID, "A", "http://a")
		changed, err := r.WasContainerChanged(ctx, n, syncedWithMenu)
		if err != nil || changed {
			t.Errorf("changed = %v, %v; want false", changed, err)
		}
	})

	t.Run("census matches", func(t *testing.T) {
		r, tree := newTestResolver(t)
		_ = mustCreate(t, tree, native.OtherID, "Menu", "")
		n := mustCreate(t, tree, native.OtherID, "A", "http://a")
		changed, err := r.WasContainerChanged(ctx, n, syncedWithMenu)
		if err != nil || changed {
			t.Errorf("changed = %v, %v; want false", changed, err)
		}
	})

	t.Run("expected container missing", func(t *testing.T) {
		r, tree := newTestResolver(t)
		n := mustCreate(t, tree, native.OtherID, "A", "http://a")
		changed, _ := r.WasContainerChanged(ctx, n, syncedWithMenu)
		if !changed {
			t.Error("changed = false, want true")
		}
	})

	t.Run("duplicate container", func(t *testing.T) {
		r, tree := newTestResolver(t)
		_ = mustCreate(t, tree, native.OtherID, "Menu", "")
		_ = mustCreate(t, tree, native.OtherID, "Menu", "")
		n := mustCreate(t, tree, native.OtherID, "A", "http://a")
		changed, _ := r.WasContainerChanged(ctx, n, syncedWithMenu)
		if !changed {
			t.Error("changed = false, want true")
		}
	})

	t.Run("unexpected container", func(t *testing.T) {
		r, tree := newTestResolver(t)
		_ = mustCreate(t, tree, native.OtherID, "Menu", "")
		_ = mustCreate(t, tree, native.OtherID, "Mobile", "")
		n := mustCreate(t, tree, native.OtherID, "A", "http://a")
		changed, _ := r.WasContainerChanged(ctx, n, syncedWithMenu)
		if !changed {
			t.Error("changed = false, want true")
		}
	})
}

func TestReorderUnsupportedContainers(t *testing.T) {
	ctx := context.Background()
	r, tree := newTestResolver(t)
	_ = mustCreate(t, tree, native.OtherID, "A", "http://a")
	mobile := mustCreate(t, tree, native.OtherID, "Mobile", "")
	_ = mustCreate(t, tree, native.OtherID, "B", "http://b")
	menu := mustCreate(t, tree, native.OtherID, "Menu", "")

	moved, err := r.ReorderUnsupportedContainers(ctx)
	if err != nil {
		t.Fatalf("Reorder: %v", err)
	}
	if moved != 2 {
		t.Errorf("moved = %d, want 2", moved)
	}
	children, _ := tree.GetChildren(ctx, native.OtherID)
	if children[0].ID != menu.ID || children[1].ID != mobile.ID {
		t.Errorf("order = %s,%s,%s,%s", children[0].Title, children[1].Title, children[2].Title, children[3].Title)
	}

	moved, err = r.ReorderUnsupportedContainers(ctx)
	if err != nil || moved != 0 {
		t.Errorf("second reorder moved = %d, %v; want 0", moved, err)
	}
}

func TestReorderUnsupportedContainers_MobileOnly(t *testing.T) {
	ctx := context.Background()
	r, tree := newTestResolver(t)
	_ = mustCreate(t, tree, native.OtherID, "A", "http://a")
	mobile := mustCreate(t, tree, native.OtherID, "Mobile", "")

	if _, err := r.ReorderUnsupportedContainers(ctx); err != nil {
		t.Fatalf("Reorder: %v", err)
	}
	children, _ := tree.GetChildren(ctx, native.OtherID)
	if children[0].ID != mobile.ID {
		t.Errorf("first child = %s, want Mobile", children[0].Title)
	}
}
