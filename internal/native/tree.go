package native

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/njoerd114/bookmarkrelay/internal/model"
)

var _ API = (*Tree)(nil)

// Tree is a mutex-guarded in-memory native bookmark tree. Every mutation is
// reported to the listener set with [Tree.SetListener] once the tree lock has
// been released, so the listener may call back into the tree.
type Tree struct {
	mu        sync.Mutex
	root      *model.NativeNode
	byID      map[string]*model.NativeNode
	nextID    int
	lastAdded time.Time
	now       func() time.Time

	lmu      sync.Mutex
	listener func(model.NativeEvent)
}

// NewTree returns a tree holding only the permanent nodes.
func NewTree() *Tree {
	t := &Tree{now: time.Now}
	t.reset()
	return t
}

func (t *Tree) reset() {
	created := t.stamp()
	toolbar := &model.NativeNode{ID: ToolbarID, ParentID: RootID, Index: 0, Title: ToolbarTitle, DateAdded: created, Children: []*model.NativeNode{}}
	other := &model.NativeNode{ID: OtherID, ParentID: RootID, Index: 1, Title: OtherTitle, DateAdded: created, Children: []*model.NativeNode{}}
	t.root = &model.NativeNode{ID: RootID, DateAdded: created, Children: []*model.NativeNode{toolbar, other}}
	t.byID = map[string]*model.NativeNode{RootID: t.root, ToolbarID: toolbar, OtherID: other}
	t.nextID = 3
}

// stamp returns a creation time strictly after the previous one, so that
// ordering nodes by DateAdded is the same as ordering them by creation.
func (t *Tree) stamp() time.Time {
	ts := t.now().Truncate(time.Millisecond)
	if !ts.After(t.lastAdded) {
		ts = t.lastAdded.Add(time.Millisecond)
	}
	t.lastAdded = ts
	return ts
}

// SetListener registers fn to receive change events. A nil fn disables
// notifications.
func (t *Tree) SetListener(fn func(model.NativeEvent)) {
	t.lmu.Lock()
	t.listener = fn
	t.lmu.Unlock()
}

func (t *Tree) emit(ev model.NativeEvent) {
	t.lmu.Lock()
	fn := t.listener
	t.lmu.Unlock()
	if fn != nil {
		fn(ev)
	}
}

func isPermanent(id string) bool {
	return id == RootID || id == ToolbarID || id == OtherID
}

func (t *Tree) lookup(id string) (*model.NativeNode, error) {
	n, ok := t.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return n, nil
}

func reindex(parent *model.NativeNode) {
	for i, c := range parent.Children {
		c.Index = i
	}
}

func (t *Tree) GetTree(ctx context.Context) (*model.NativeNode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.root.Clone(), nil
}

func (t *Tree) GetSubTree(ctx context.Context, id string) (*model.NativeNode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	n, err := t.lookup(id)
	if err != nil {
		return nil, err
	}
	return n.Clone(), nil
}

func (t *Tree) GetChildren(ctx context.Context, id string) ([]*model.NativeNode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	n, err := t.lookup(id)
	if err != nil {
		return nil, err
	}
	out := make([]*model.NativeNode, len(n.Children))
	for i, c := range n.Children {
		out[i] = shallow(c)
	}
	return out, nil
}

// Get returns the node without its children.
func (t *Tree) Get(ctx context.Context, id string) (*model.NativeNode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	n, err := t.lookup(id)
	if err != nil {
		return nil, err
	}
	return shallow(n), nil
}

func shallow(n *model.NativeNode) *model.NativeNode {
	cp := *n
	cp.Children = nil
	return &cp
}

func (t *Tree) Create(ctx context.Context, d CreateDetails) (*model.NativeNode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.mu.Lock()
	created, err := t.create(d)
	t.mu.Unlock()
	if err != nil {
		return nil, err
	}
	t.emit(model.NativeEvent{
		Type:     model.ChangeAdd,
		NativeID: created.ID,
		Node:     created.Clone(),
		ParentID: created.ParentID,
		Index:    created.Index,
	})
	return created, nil
}

// create inserts a node; t.mu must be held. It returns a copy.
func (t *Tree) create(d CreateDetails) (*model.NativeNode, error) {
	parentID := d.ParentID
	if parentID == "" {
		parentID = OtherID
	}
	if parentID == RootID {
		return nil, fmt.Errorf("%w: cannot create under root", ErrPermanentNode)
	}
	parent, err := t.lookup(parentID)
	if err != nil {
		return nil, fmt.Errorf("creating in parent: %w", err)
	}
	if !parent.IsFolder() {
		return nil, fmt.Errorf("%w: parent %q is not a folder", ErrInvalidMove, parentID)
	}

	n := &model.NativeNode{
		ID:        strconv.Itoa(t.nextID),
		ParentID:  parentID,
		Title:     d.Title,
		URL:       d.URL,
		DateAdded: t.stamp(),
	}
	if n.IsFolder() {
		n.Children = []*model.NativeNode{}
	}
	t.nextID++
	t.byID[n.ID] = n
	parent.Children = insertAt(parent.Children, d.Index, n)
	reindex(parent)
	return n.Clone(), nil
}

func insertAt(children []*model.NativeNode, index *int, n *model.NativeNode) []*model.NativeNode {
	i := len(children)
	if index != nil && *index >= 0 && *index < len(children) {
		i = *index
	}
	return slices.Insert(children, i, n)
}

func (t *Tree) Move(ctx context.Context, id string, dest Destination) (*model.NativeNode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.mu.Lock()
	moved, oldParentID, oldIndex, err := t.move(id, dest)
	t.mu.Unlock()
	if err != nil {
		return nil, err
	}
	t.emit(model.NativeEvent{
		Type:        model.ChangeMove,
		NativeID:    id,
		ParentID:    moved.ParentID,
		Index:       moved.Index,
		OldParentID: oldParentID,
		OldIndex:    oldIndex,
	})
	return moved, nil
}

func (t *Tree) move(id string, dest Destination) (*model.NativeNode, string, int, error) {
	if isPermanent(id) {
		return nil, "", 0, fmt.Errorf("%w: %q", ErrPermanentNode, id)
	}
	n, err := t.lookup(id)
	if err != nil {
		return nil, "", 0, err
	}
	parentID := dest.ParentID
	if parentID == "" {
		parentID = n.ParentID
	}
	if parentID == RootID {
		return nil, "", 0, fmt.Errorf("%w: cannot move under root", ErrPermanentNode)
	}
	newParent, err := t.lookup(parentID)
	if err != nil {
		return nil, "", 0, fmt.Errorf("moving to parent: %w", err)
	}
	if !newParent.IsFolder() {
		return nil, "", 0, fmt.Errorf("%w: parent %q is not a folder", ErrInvalidMove, parentID)
	}
	for p := newParent; p != nil; p = t.byID[p.ParentID] {
		if p.ID == id {
			return nil, "", 0, fmt.Errorf("%w: %q into its own subtree", ErrInvalidMove, id)
		}
		if p.ID == RootID {
			break
		}
	}

	oldParent := t.byID[n.ParentID]
	oldParentID, oldIndex := n.ParentID, n.Index
	oldParent.Children = slices.Delete(oldParent.Children, n.Index, n.Index+1)
	reindex(oldParent)

	n.ParentID = parentID
	newParent.Children = insertAt(newParent.Children, dest.Index, n)
	reindex(newParent)
	return n.Clone(), oldParentID, oldIndex, nil
}

func (t *Tree) Update(ctx context.Context, id string, c Changes) (*model.NativeNode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.mu.Lock()
	updated, err := t.update(id, c)
	t.mu.Unlock()
	if err != nil {
		return nil, err
	}
	t.emit(model.NativeEvent{
		Type:     model.ChangeModify,
		NativeID: id,
		Node:     updated.Clone(),
		ParentID: updated.ParentID,
		Index:    updated.Index,
	})
	return updated, nil
}

func (t *Tree) update(id string, c Changes) (*model.NativeNode, error) {
	if isPermanent(id) {
		return nil, fmt.Errorf("%w: %q", ErrPermanentNode, id)
	}
	n, err := t.lookup(id)
	if err != nil {
		return nil, err
	}
	if c.URL != nil {
		if n.IsFolder() {
			return nil, fmt.Errorf("%w: cannot set url on folder %q", ErrInvalidMove, id)
		}
		if *c.URL == "" {
			return nil, fmt.Errorf("%w: cannot clear url of %q", ErrInvalidMove, id)
		}
		n.URL = *c.URL
	}
	if c.Title != nil {
		n.Title = *c.Title
	}
	return n.Clone(), nil
}

func (t *Tree) Remove(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	removed, err := t.remove(id)
	t.mu.Unlock()
	if err != nil {
		return err
	}
	t.emit(model.NativeEvent{
		Type:     model.ChangeRemove,
		NativeID: id,
		Node:     removed,
		ParentID: removed.ParentID,
		Index:    removed.Index,
	})
	return nil
}

func (t *Tree) remove(id string) (*model.NativeNode, error) {
	if isPermanent(id) {
		return nil, fmt.Errorf("%w: %q", ErrPermanentNode, id)
	}
	n, err := t.lookup(id)
	if err != nil {
		return nil, err
	}
	parent := t.byID[n.ParentID]
	parent.Children = slices.Delete(parent.Children, n.Index, n.Index+1)
	reindex(parent)

	model.EachNativeNode([]*model.NativeNode{n}, func(d *model.NativeNode) {
		delete(t.byID, d.ID)
	})
	return n.Clone(), nil
}
