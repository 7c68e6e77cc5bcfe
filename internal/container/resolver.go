// Package container locates the four logical bookmark containers in the native
// tree and keeps the emulated ones in shape.
//
// Other and Toolbar map to the browser's permanent folders. Menu and Mobile
// have no native root; they are ordinary folders inside native Other carrying
// the container title, kept at the top of Other in that order.
package container

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/njoerd114/bookmarkrelay/internal/model"
	"github.com/njoerd114/bookmarkrelay/internal/native"
)

// IDs holds the native id of each container. Menu and Mobile are empty when
// their folders do not exist.
type IDs struct {
	Menu    string
	Mobile  string
	Other   string
	Toolbar string
}

// Get returns the native id for c.
func (ids IDs) Get(c model.Container) string {
	switch c {
	case model.ContainerMenu:
		return ids.Menu
	case model.ContainerMobile:
		return ids.Mobile
	case model.ContainerOther:
		return ids.Other
	case model.ContainerToolbar:
		return ids.Toolbar
	}
	return ""
}

// ContainerOf reports which container nativeID is, if any.
func (ids IDs) ContainerOf(nativeID string) (model.Container, bool) {
	if nativeID == "" {
		return "", false
	}
	for _, c := range model.Containers {
		if ids.Get(c) == nativeID {
			return c, true
		}
	}
	return "", false
}

// Resolver answers container questions against a native tree.
type Resolver struct {
	api native.API
	log *slog.Logger
}

// NewResolver returns a Resolver over api.
func NewResolver(api native.API, logger *slog.Logger) *Resolver {
	return &Resolver{api: api, log: logger}
}

// NativeContainerIDs walks the native root. It fails with
// [model.ErrContainerNotFound] when either permanent root is missing.
func (r *Resolver) NativeContainerIDs(ctx context.Context) (IDs, error) {
	root, err := r.api.GetTree(ctx)
	if err != nil {
		return IDs{}, fmt.Errorf("%w: %w", model.ErrFailedGetNativeBookmarks, err)
	}

	var ids IDs
	var other *model.NativeNode
	for _, c := range root.Children {
		switch c.ID {
		case native.OtherID:
			ids.Other = c.ID
			other = c
		case native.ToolbarID:
			ids.Toolbar = c.ID
		}
	}
	if ids.Other == "" {
		return IDs{}, fmt.Errorf("%w: %s", model.ErrContainerNotFound, model.ContainerOther)
	}
	if ids.Toolbar == "" {
		return IDs{}, fmt.Errorf("%w: %s", model.ErrContainerNotFound, model.ContainerToolbar)
	}

	for _, c := range other.Children {
		if !c.IsFolder() {
			continue
		}
		switch model.Container(c.Title) {
		case model.ContainerMenu:
			if ids.Menu == "" {
				ids.Menu = c.ID
			}
		case model.ContainerMobile:
			if ids.Mobile == "" {
				ids.Mobile = c.ID
			}
		}
	}
	return ids, nil
}

// WasContainerChanged reports whether a native change to node disturbed the
// container structure rather than being an ordinary edit. synced is the
// current synced tree, which determines the emulated containers expected
// under Other.
func (r *Resolver) WasContainerChanged(ctx context.Context, node *model.NativeNode, synced []*model.Bookmark) (bool, error) {
	if node == nil {
		return false, nil
	}
	if model.IsContainerTitle(node.Title) {
		return true, nil
	}

	ids, err := r.NativeContainerIDs(ctx)
	if err != nil {
		return false, err
	}
	if node.ParentID != ids.Other {
		return false, nil
	}

	children, err := r.api.GetChildren(ctx, ids.Other)
	if err != nil {
		return false, fmt.Errorf("%w: %w", model.ErrFailedGetNativeBookmarks, err)
	}

	census := make(map[model.Container]int)
	total := 0
	for _, c := range children {
		if model.IsUnsupportedContainerTitle(c.Title) {
			census[model.Container(c.Title)]++
			total++
		}
	}

	expected := 0
	for _, c := range model.UnsupportedContainers {
		if model.GetContainer(c, synced) == nil {
			continue
		}
		expected++
		if census[c] != 1 {
			r.log.Debug("container census mismatch", "container", c, "count", census[c])
			return true, nil
		}
	}
	return total != expected, nil
}

// ReorderUnsupportedContainers moves the Menu and Mobile folders to the top of
// native Other, Menu first. It returns the number of folders moved.
func (r *Resolver) ReorderUnsupportedContainers(ctx context.Context) (int, error) {
	ids, err := r.NativeContainerIDs(ctx)
	if err != nil {
		return 0, err
	}

	moved, target := 0, 0
	for _, c := range model.UnsupportedContainers {
		id := ids.Get(c)
		if id == "" {
			continue
		}
		n, err := r.api.Get(ctx, id)
		if err != nil {
			return moved, fmt.Errorf("%w: %w", model.ErrFailedGetNativeBookmarks, err)
		}
		if n.ParentID != ids.Other || n.Index != target {
			if _, err := r.api.Move(ctx, id, native.Destination{ParentID: ids.Other, Index: native.IntPtr(target)}); err != nil {
				return moved, fmt.Errorf("moving %s container: %w", c, err)
			}
			moved++
		}
		target++
	}
	if moved > 0 {
		r.log.Debug("unsupported containers reordered", "moved", moved)
	}
	return moved, nil
}
