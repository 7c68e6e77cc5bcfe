package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/njoerd114/bookmarkrelay/internal/container"
	"github.com/njoerd114/bookmarkrelay/internal/model"
	"github.com/njoerd114/bookmarkrelay/internal/native"
	"github.com/njoerd114/bookmarkrelay/internal/state"
)

var _ Syncer = (*Pusher)(nil)

// Pusher replays bookmark changes against the synced tree in the remote
// store. The tree is read once per pass, edited in memory, and written back
// whole; id mappings are updated as each change is applied.
type Pusher struct {
	remote     state.KV
	api        native.API
	mapper     IDMapper
	containers Containers
	prefs      Preferences
	newTabURL  string
	log        *slog.Logger
	now        func() time.Time
}

// NewPusher returns a Pusher writing the synced tree to remote.
func NewPusher(remote state.KV, api native.API, mapper IDMapper, containers Containers, prefs Preferences, newTabURL string, logger *slog.Logger) *Pusher {
	return &Pusher{
		remote:     remote,
		api:        api,
		mapper:     mapper,
		containers: containers,
		prefs:      prefs,
		newTabURL:  newTabURL,
		log:        logger,
		now:        time.Now,
	}
}

// pass is the working state of one ExecuteSync call.
type pass struct {
	bookmarks []*model.Bookmark
	ids       container.IDs
}

// ExecuteSync applies changes in order. It stops at the first change that
// disturbs the container structure (the error wraps
// [model.ErrContainerChanged]) or that cannot be applied. Either way the
// changes applied before it are saved, so the synced tree always covers the
// mappings already recorded. A change that fails leaves no trace in the tree
// or the mappings.
func (p *Pusher) ExecuteSync(ctx context.Context, changes []model.BookmarkChange) error {
	var ps pass
	if _, err := state.GetJSON(ctx, p.remote, state.KeyBookmarks, &ps.bookmarks); err != nil {
		return fmt.Errorf("loading synced bookmarks: %w", err)
	}
	ids, err := p.containers.NativeContainerIDs(ctx)
	if err != nil {
		return err
	}
	ps.ids = ids

	var stopErr error
	for i, c := range changes {
		changed, err := p.containerChanged(ctx, &ps, c)
		if err != nil {
			return err
		}
		if changed {
			p.log.Warn("container structure changed natively", "change", c.Type(), "native_id", c.NodeID())
			stopErr = fmt.Errorf("%w: %s of %s", model.ErrContainerChanged, c.Type(), c.NodeID())
			break
		}
		if err := p.apply(ctx, &ps, c); err != nil {
			p.log.Error("change failed, saving earlier changes", "change", c.Type(), "native_id", c.NodeID(), "error", err)
			stopErr = fmt.Errorf("applying change %d (%s %s): %w", i, c.Type(), c.NodeID(), err)
			break
		}
	}

	if ps.bookmarks == nil {
		ps.bookmarks = []*model.Bookmark{}
	}
	if err := state.SetJSON(ctx, p.remote, state.KeyBookmarks, ps.bookmarks); err != nil {
		return fmt.Errorf("saving synced bookmarks: %w", err)
	}
	if err := state.SetLastUpdated(ctx, p.remote, p.now()); err != nil {
		return fmt.Errorf("recording sync time: %w", err)
	}
	return stopErr
}

// containerChanged checks changes touching native Other's direct children or
// carrying a container title.
func (p *Pusher) containerChanged(ctx context.Context, ps *pass, c model.BookmarkChange) (bool, error) {
	var node *model.NativeNode
	switch c := c.(type) {
	case model.AddChange:
		node = c.Node
	case model.ModifyChange:
		node = c.Node
	case model.RemoveChange:
		node = &model.NativeNode{ID: c.NativeID, ParentID: c.ParentID}
		if c.Node != nil {
			node.Title = c.Node.Title
		}
	case model.MoveChange:
		node = &model.NativeNode{ID: c.NativeID, ParentID: c.ParentID}
		if n, err := p.api.Get(ctx, c.NativeID); err == nil {
			node.Title = n.Title
		}
		if c.OldParentID == ps.ids.Other && c.ParentID != ps.ids.Other {
			node.ParentID = c.OldParentID
		}
	}
	if node == nil {
		return false, nil
	}
	if node.ParentID != ps.ids.Other && !model.IsContainerTitle(node.Title) {
		return false, nil
	}
	return p.containers.WasContainerChanged(ctx, node, ps.bookmarks)
}

func (p *Pusher) apply(ctx context.Context, ps *pass, c model.BookmarkChange) error {
	switch c := c.(type) {
	case model.AddChange:
		return p.applyAdd(ctx, ps, c)
	case model.RemoveChange:
		return p.applyRemove(ctx, ps, c)
	case model.MoveChange:
		return p.applyMove(ctx, ps, c)
	case model.ModifyChange:
		return p.applyModify(ctx, ps, c)
	default:
		return fmt.Errorf("%w: %T", model.ErrAmbiguousChangeType, c)
	}
}

func (p *Pusher) applyAdd(ctx context.Context, ps *pass, c model.AddChange) error {
	node := c.Node
	if p.hidden(ctx, ps, node.ParentID) {
		p.log.Debug("skipping add in unsynced toolbar", "native_id", node.ID)
		return nil
	}
	parent, err := p.resolveParent(ctx, ps, node.ParentID)
	if err != nil {
		return err
	}
	index, err := p.syncedIndex(ctx, ps, node.ParentID, node.Index)
	if err != nil {
		return err
	}

	b := model.BookmarkFromNative(node, p.newTabURL)
	b.Description = c.Description
	b.Tags = c.Tags

	// Number the new subtree and pair it with the native nodes.
	next := model.NewBookmarkID(ps.bookmarks)
	var mappings []model.IDMapping
	var number func(b *model.Bookmark, n *model.NativeNode)
	number = func(b *model.Bookmark, n *model.NativeNode) {
		b.ID = next
		next++
		mappings = append(mappings, model.IDMapping{SyncedID: b.ID, NativeID: n.ID})
		for i := range min(len(b.Children), len(n.Children)) {
			number(b.Children[i], n.Children[i])
		}
	}
	number(b, node)

	if err := p.mapper.Add(ctx, mappings...); err != nil {
		return err
	}
	parent.Children = model.InsertBookmark(parent.Children, index, b)
	p.log.Debug("bookmark added", "synced_id", b.ID, "native_id", node.ID, "title", b.Title)
	return nil
}

func (p *Pusher) applyRemove(ctx context.Context, ps *pass, c model.RemoveChange) error {
	m, err := p.mapper.GetByNativeID(ctx, c.NativeID)
	if err != nil {
		return err
	}
	if m == nil {
		if p.hidden(ctx, ps, c.ParentID) {
			return nil
		}
		return fmt.Errorf("%w: native id %q", model.ErrMappingNotFound, c.NativeID)
	}

	removed, _, _ := model.FindBookmark(ps.bookmarks, m.SyncedID)
	if removed == nil {
		p.log.Warn("removed bookmark missing from synced tree", "synced_id", m.SyncedID)
		return p.mapper.Remove(ctx, []int64{m.SyncedID}, nil)
	}

	all, err := p.mapper.All(ctx)
	if err != nil {
		return err
	}
	mapped := make(map[int64]bool, len(all))
	for _, e := range all {
		mapped[e.SyncedID] = true
	}
	var drop []int64
	for _, id := range model.SubtreeIDs(removed) {
		if mapped[id] {
			drop = append(drop, id)
		}
	}
	if err := p.mapper.Remove(ctx, drop, nil); err != nil {
		return err
	}
	model.RemoveBookmark(&ps.bookmarks, m.SyncedID)
	p.log.Debug("bookmark removed", "synced_id", removed.ID, "native_id", c.NativeID)
	return nil
}

func (p *Pusher) applyMove(ctx context.Context, ps *pass, c model.MoveChange) error {
	fromHidden := p.hidden(ctx, ps, c.OldParentID)
	toHidden := p.hidden(ctx, ps, c.ParentID)
	switch {
	case fromHidden && toHidden:
		return nil
	case fromHidden:
		node, err := p.api.GetSubTree(ctx, c.NativeID)
		if err != nil {
			return fmt.Errorf("%w: %w", model.ErrFailedGetNativeBookmarks, err)
		}
		return p.applyAdd(ctx, ps, model.AddChange{Node: node})
	case toHidden:
		return p.applyRemove(ctx, ps, model.RemoveChange{NativeID: c.NativeID, ParentID: c.OldParentID, Index: c.OldIndex})
	}

	m, err := p.mapper.GetByNativeID(ctx, c.NativeID)
	if err != nil {
		return err
	}
	if m == nil {
		return fmt.Errorf("%w: native id %q", model.ErrMappingNotFound, c.NativeID)
	}
	moved, _, _ := model.FindBookmark(ps.bookmarks, m.SyncedID)
	if moved == nil {
		return fmt.Errorf("%w: synced id %d not in tree", model.ErrMappingNotFound, m.SyncedID)
	}
	parent, err := p.resolveParent(ctx, ps, c.ParentID)
	if err != nil {
		return err
	}
	if slices.Contains(model.SubtreeIDs(moved), parent.ID) {
		return fmt.Errorf("moving synced id %d into its own subtree", moved.ID)
	}
	index, err := p.syncedIndex(ctx, ps, c.ParentID, c.Index)
	if err != nil {
		return err
	}
	model.RemoveBookmark(&ps.bookmarks, moved.ID)
	parent.Children = model.InsertBookmark(parent.Children, index, moved)
	p.log.Debug("bookmark moved", "synced_id", moved.ID, "native_id", c.NativeID, "index", index)
	return nil
}

func (p *Pusher) applyModify(ctx context.Context, ps *pass, c model.ModifyChange) error {
	node := c.Node
	m, err := p.mapper.GetByNativeID(ctx, node.ID)
	if err != nil {
		return err
	}
	if m == nil {
		if p.hidden(ctx, ps, node.ParentID) {
			return nil
		}
		return fmt.Errorf("%w: native id %q", model.ErrMappingNotFound, node.ID)
	}
	b, _, _ := model.FindBookmark(ps.bookmarks, m.SyncedID)
	if b == nil {
		return fmt.Errorf("%w: synced id %d not in tree", model.ErrMappingNotFound, m.SyncedID)
	}

	if model.IsNativeSeparator(node, p.newTabURL) {
		b.Title, b.URL = model.SeparatorTitle, ""
	} else {
		b.Title = node.Title
		if !node.IsFolder() {
			b.URL = node.URL
		}
	}
	p.log.Debug("bookmark modified", "synced_id", b.ID, "native_id", node.ID)
	return nil
}

// hidden reports whether nativeParentID is inside the native toolbar while
// toolbar sync is disabled.
func (p *Pusher) hidden(ctx context.Context, ps *pass, nativeParentID string) bool {
	if p.prefs.SyncBookmarksToolbar() {
		return false
	}
	for id := nativeParentID; id != "" && id != native.RootID; {
		if id == ps.ids.Toolbar {
			return true
		}
		if _, ok := ps.ids.ContainerOf(id); ok {
			return false
		}
		n, err := p.api.Get(ctx, id)
		if err != nil {
			return false
		}
		id = n.ParentID
	}
	return false
}

// resolveParent finds the synced folder standing for a native parent.
// Native containers resolve to synced containers, created on demand.
func (p *Pusher) resolveParent(ctx context.Context, ps *pass, nativeParentID string) (*model.Bookmark, error) {
	if c, ok := ps.ids.ContainerOf(nativeParentID); ok {
		return model.EnsureContainer(c, &ps.bookmarks), nil
	}
	m, err := p.mapper.GetByNativeID(ctx, nativeParentID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("%w: parent native id %q", model.ErrMappingNotFound, nativeParentID)
	}
	parent, _, _ := model.FindBookmark(ps.bookmarks, m.SyncedID)
	if parent == nil {
		return nil, fmt.Errorf("%w: parent synced id %d not in tree", model.ErrMappingNotFound, m.SyncedID)
	}
	if !parent.IsFolder() {
		return nil, errors.New("parent bookmark is not a folder")
	}
	return parent, nil
}

// syncedIndex translates a native child index into the synced sibling index.
// Under native Other the emulated container folders are not synced siblings,
// so those ahead of the position are discounted.
func (p *Pusher) syncedIndex(ctx context.Context, ps *pass, nativeParentID string, nativeIndex int) (int, error) {
	if nativeParentID != ps.ids.Other {
		return nativeIndex, nil
	}
	index := nativeIndex
	for _, id := range []string{ps.ids.Menu, ps.ids.Mobile} {
		if id == "" {
			continue
		}
		n, err := p.api.Get(ctx, id)
		if err != nil {
			return 0, fmt.Errorf("%w: %w", model.ErrFailedGetNativeBookmarks, err)
		}
		if n.Index < nativeIndex {
			index--
		}
	}
	return max(index, 0), nil
}
