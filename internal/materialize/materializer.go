// Package materialize converts between the synced bookmark tree and the native
// tree as a whole: populating native bookmarks from a synced tree, flattening
// native bookmarks into a synced tree, clearing native bookmarks, and pairing
// the two trees' ids afterwards.
package materialize

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/njoerd114/bookmarkrelay/internal/container"
	"github.com/njoerd114/bookmarkrelay/internal/model"
	"github.com/njoerd114/bookmarkrelay/internal/native"
)

// Preferences gates the toolbar branches.
type Preferences interface {
	SyncBookmarksToolbar() bool
}

// Materializer works on one native tree.
type Materializer struct {
	api        native.API
	containers *container.Resolver
	prefs      Preferences
	newTabURL  string
	log        *slog.Logger
}

// New returns a Materializer. newTabURL is the url native separators point at.
func New(api native.API, containers *container.Resolver, prefs Preferences, newTabURL string, logger *slog.Logger) *Materializer {
	return &Materializer{
		api:        api,
		containers: containers,
		prefs:      prefs,
		newTabURL:  newTabURL,
		log:        logger,
	}
}

// CreateNativeBookmarksFromBookmarks populates the native tree from the synced
// tree. Menu and Mobile are created as folders inside native Other, Other's
// children go directly into native Other, and Toolbar's children go into the
// native toolbar when toolbar sync is enabled.
//
// The four branches run concurrently. A failing branch does not stop the
// others and what they created is kept; the returned error joins every
// branch's failure, each wrapping [model.ErrFailedCreateNativeBookmarks].
// The emulated containers are reordered once all branches have finished,
// including after a partial failure.
func (m *Materializer) CreateNativeBookmarksFromBookmarks(ctx context.Context, bookmarks []*model.Bookmark) error {
	start := time.Now()

	ids, err := m.containers.NativeContainerIDs(ctx)
	if err != nil {
		return err
	}

	type branch struct {
		name     model.Container
		parentID string
		nodes    []*model.Bookmark
	}
	var branches []branch
	if menu := model.GetContainer(model.ContainerMenu, bookmarks); menu != nil {
		branches = append(branches, branch{model.ContainerMenu, ids.Other, []*model.Bookmark{menu}})
	}
	if mobile := model.GetContainer(model.ContainerMobile, bookmarks); mobile != nil {
		branches = append(branches, branch{model.ContainerMobile, ids.Other, []*model.Bookmark{mobile}})
	}
	if other := model.GetContainer(model.ContainerOther, bookmarks); other != nil {
		branches = append(branches, branch{model.ContainerOther, ids.Other, other.Children})
	}
	if toolbar := model.GetContainer(model.ContainerToolbar, bookmarks); toolbar != nil {
		if m.prefs.SyncBookmarksToolbar() {
			branches = append(branches, branch{model.ContainerToolbar, ids.Toolbar, toolbar.Children})
		} else {
			m.log.Info("toolbar sync disabled, not populating toolbar")
		}
	}

	var g errgroup.Group
	errs := make([]error, len(branches))
	for i, b := range branches {
		g.Go(func() error {
			if err := m.createTree(ctx, b.parentID, b.nodes, ids.Toolbar); err != nil {
				m.log.Error("populating native bookmarks", "container", b.name, "error", err)
				errs[i] = fmt.Errorf("populating %s: %w: %w", b.name, model.ErrFailedCreateNativeBookmarks, err)
				return errs[i]
			}
			return nil
		})
	}
	_ = g.Wait() // errs holds every branch's failure, not only the first
	popErr := errors.Join(errs...)
	if popErr == nil {
		m.log.Info("native bookmarks populated", "duration", time.Since(start))
	}

	// Branches that succeeded are kept, so they are put in order either way.
	if _, err := m.containers.ReorderUnsupportedContainers(ctx); err != nil {
		return errors.Join(popErr, fmt.Errorf("reordering containers: %w", err))
	}
	return popErr
}

// createTree creates bookmarks under parentID in order, depth first.
func (m *Materializer) createTree(ctx context.Context, parentID string, bookmarks []*model.Bookmark, toolbarID string) error {
	for _, b := range bookmarks {
		created, err := m.createNode(ctx, parentID, b, toolbarID)
		if err != nil {
			return err
		}
		if b.IsFolder() && len(b.Children) > 0 {
			if err := m.createTree(ctx, created.ID, b.Children, toolbarID); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *Materializer) createNode(ctx context.Context, parentID string, b *model.Bookmark, toolbarID string) (*model.NativeNode, error) {
	details := native.CreateDetails{ParentID: parentID, Title: b.Title, URL: b.URL}
	if b.IsSeparator() {
		details.Title = model.SeparatorTitleFor(parentID, toolbarID)
		details.URL = m.newTabURL
	}
	created, err := m.api.Create(ctx, details)
	if err != nil {
		return nil, fmt.Errorf("creating %q: %w", b.Title, err)
	}
	return created, nil
}

// CreateNativeSeparator creates a canonical separator under parentID at index
// (nil appends).
func (m *Materializer) CreateNativeSeparator(ctx context.Context, parentID string, index *int) (*model.NativeNode, error) {
	ids, err := m.containers.NativeContainerIDs(ctx)
	if err != nil {
		return nil, err
	}
	created, err := m.api.Create(ctx, native.CreateDetails{
		ParentID: parentID,
		Index:    index,
		Title:    model.SeparatorTitleFor(parentID, ids.Toolbar),
		URL:      m.newTabURL,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: separator: %w", model.ErrFailedCreateNativeBookmarks, err)
	}
	return created, nil
}

// GetNativeBookmarksAsBookmarks flattens the native tree into a synced tree.
// Containers are included only when they hold bookmarks, in the order Other,
// Toolbar, Menu, Mobile. Ids are assigned deterministically: containers
// first, then bookmarks in native creation order, then anything left in tree
// order.
func (m *Materializer) GetNativeBookmarksAsBookmarks(ctx context.Context) ([]*model.Bookmark, error) {
	ids, err := m.containers.NativeContainerIDs(ctx)
	if err != nil {
		return nil, err
	}

	subtree := func(id string) (*model.NativeNode, error) {
		n, err := m.api.GetSubTree(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", model.ErrFailedGetNativeBookmarks, err)
		}
		return n, nil
	}

	var natives []*model.NativeNode
	content := make(map[model.Container][]*model.Bookmark)

	other, err := subtree(ids.Other)
	if err != nil {
		return nil, err
	}
	model.EachNativeNode(other.Children, func(n *model.NativeNode) { natives = append(natives, n) })
	for _, b := range model.BookmarksFromNative(other.Children, m.newTabURL) {
		if !model.IsUnsupportedContainerTitle(b.Title) || !b.IsFolder() {
			content[model.ContainerOther] = append(content[model.ContainerOther], b)
		}
	}

	if m.prefs.SyncBookmarksToolbar() {
		toolbar, err := subtree(ids.Toolbar)
		if err != nil {
			return nil, err
		}
		model.EachNativeNode(toolbar.Children, func(n *model.NativeNode) { natives = append(natives, n) })
		content[model.ContainerToolbar] = model.BookmarksFromNative(toolbar.Children, m.newTabURL)
	}

	for _, c := range model.UnsupportedContainers {
		id := ids.Get(c)
		if id == "" {
			continue
		}
		folder, err := subtree(id)
		if err != nil {
			return nil, err
		}
		content[c] = model.BookmarksFromNative(folder.Children, m.newTabURL)
	}

	var bookmarks []*model.Bookmark
	for _, c := range []model.Container{model.ContainerOther, model.ContainerToolbar, model.ContainerMenu, model.ContainerMobile} {
		if len(content[c]) == 0 {
			continue
		}
		model.EnsureContainer(c, &bookmarks).Children = content[c]
	}

	natives = slices.DeleteFunc(natives, func(n *model.NativeNode) bool {
		return n.IsFolder() && model.IsUnsupportedContainerTitle(n.Title) && n.ParentID == ids.Other
	})
	assignIDs(bookmarks, natives, m.newTabURL)
	return bookmarks, nil
}

// assignIDs gives every unassigned bookmark an id. natives are visited in
// creation order and each claims the first unassigned bookmark it matches;
// leftovers are numbered in tree order.
func assignIDs(bookmarks []*model.Bookmark, natives []*model.NativeNode, newTabURL string) {
	natives = slices.Clone(natives)
	slices.SortStableFunc(natives, func(a, b *model.NativeNode) int {
		return a.DateAdded.Compare(b.DateAdded)
	})

	matches := func(n *model.NativeNode, b *model.Bookmark) bool {
		switch {
		case model.IsNativeSeparator(n, newTabURL):
			return b.IsSeparator()
		case n.IsFolder():
			return b.IsFolder() && b.Title == n.Title
		default:
			return b.URL != "" && b.URL == n.URL
		}
	}

	for _, n := range natives {
		var target *model.Bookmark
		model.EachBookmark(bookmarks, func(b *model.Bookmark) {
			if target == nil && b.ID == 0 && matches(n, b) {
				target = b
			}
		})
		if target != nil {
			target.ID = model.NewBookmarkID(bookmarks)
		}
	}

	model.EachBookmark(bookmarks, func(b *model.Bookmark) {
		if b.ID == 0 {
			b.ID = model.NewBookmarkID(bookmarks)
		}
	})
}

// ClearNativeBookmarks removes every child of native Other, and of the native
// toolbar when toolbar sync is enabled. Removal is best effort: every child is
// attempted and failures are reported together, wrapping
// [model.ErrFailedRemoveNativeBookmarks].
func (m *Materializer) ClearNativeBookmarks(ctx context.Context) error {
	ids, err := m.containers.NativeContainerIDs(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrFailedRemoveNativeBookmarks, err)
	}

	parents := []string{ids.Other}
	if m.prefs.SyncBookmarksToolbar() {
		parents = append(parents, ids.Toolbar)
	} else {
		m.log.Info("toolbar sync disabled, not clearing toolbar")
	}

	var g errgroup.Group
	errs := make([]error, len(parents))
	for i, parentID := range parents {
		g.Go(func() error {
			errs[i] = m.clearChildren(ctx, parentID)
			return errs[i]
		})
	}
	_ = g.Wait()
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", model.ErrFailedRemoveNativeBookmarks, err)
	}
	return nil
}

func (m *Materializer) clearChildren(ctx context.Context, parentID string) error {
	children, err := m.api.GetChildren(ctx, parentID)
	if err != nil {
		return fmt.Errorf("listing %s: %w", parentID, err)
	}
	var errs []error
	for _, c := range children {
		if err := m.api.Remove(ctx, c.ID); err != nil {
			m.log.Warn("removing native bookmark", "id", c.ID, "error", err)
			errs = append(errs, fmt.Errorf("removing %s: %w", c.ID, err))
		}
	}
	return errors.Join(errs...)
}

// BuildIDMappings pairs each synced bookmark below a container with the native
// node at the same position. It is meant to run straight after
// CreateNativeBookmarksFromBookmarks or GetNativeBookmarksAsBookmarks, when
// both trees have the same shape. Containers themselves are not mapped.
func (m *Materializer) BuildIDMappings(ctx context.Context, bookmarks []*model.Bookmark) ([]model.IDMapping, error) {
	ids, err := m.containers.NativeContainerIDs(ctx)
	if err != nil {
		return nil, err
	}

	children := func(id string) ([]*model.NativeNode, error) {
		n, err := m.api.GetSubTree(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", model.ErrFailedGetNativeBookmarks, err)
		}
		return n.Children, nil
	}

	var mappings []model.IDMapping
	var pair func(natives []*model.NativeNode, synced []*model.Bookmark)
	pair = func(natives []*model.NativeNode, synced []*model.Bookmark) {
		if len(natives) != len(synced) {
			m.log.Warn("native and synced trees differ in shape", "native", len(natives), "synced", len(synced))
		}
		for i := range min(len(natives), len(synced)) {
			mappings = append(mappings, model.IDMapping{SyncedID: synced[i].ID, NativeID: natives[i].ID})
			if len(natives[i].Children) > 0 {
				pair(natives[i].Children, synced[i].Children)
			}
		}
	}

	for _, c := range model.Containers {
		synced := model.GetContainer(c, bookmarks)
		if synced == nil {
			continue
		}
		if c == model.ContainerToolbar && !m.prefs.SyncBookmarksToolbar() {
			continue
		}
		nativeID := ids.Get(c)
		if nativeID == "" {
			m.log.Warn("container missing natively", "container", c)
			continue
		}
		natives, err := children(nativeID)
		if err != nil {
			return nil, err
		}
		if c == model.ContainerOther {
			natives = slices.DeleteFunc(natives, func(n *model.NativeNode) bool {
				return n.ID == ids.Menu || n.ID == ids.Mobile
			})
		}
		pair(natives, synced.Children)
	}

	slices.SortFunc(mappings, func(a, b model.IDMapping) int { return cmp.Compare(a.SyncedID, b.SyncedID) })
	return mappings, nil
}
