package model

// --- Synced tree helpers ----------------------------------------------------

// EachBookmark calls fn for every bookmark in the tree, parents before children.
func EachBookmark(bookmarks []*Bookmark, fn func(b *Bookmark)) {
	for _, b := range bookmarks {
		fn(b)
		if len(b.Children) > 0 {
			EachBookmark(b.Children, fn)
		}
	}
}

// NewBookmarkID returns the next unused synced id: one more than the highest
// id present in the tree.
func NewBookmarkID(bookmarks []*Bookmark) int64 {
	var maxID int64
	EachBookmark(bookmarks, func(b *Bookmark) {
		if b.ID > maxID {
			maxID = b.ID
		}
	})
	return maxID + 1
}

// GetContainer returns the top-level container with the given title, or nil.
func GetContainer(c Container, bookmarks []*Bookmark) *Bookmark {
	for _, b := range bookmarks {
		if b.Title == string(c) {
			return b
		}
	}
	return nil
}

// EnsureContainer returns the container with the given title, appending a new
// empty one with a fresh id when it is missing.
func EnsureContainer(c Container, bookmarks *[]*Bookmark) *Bookmark {
	if existing := GetContainer(c, *bookmarks); existing != nil {
		return existing
	}
	container := &Bookmark{ID: NewBookmarkID(*bookmarks), Title: string(c), Children: []*Bookmark{}}
	*bookmarks = append(*bookmarks, container)
	return container
}

// FindBookmark returns the bookmark with the given id along with its parent
// (nil for top-level nodes) and its index among its siblings.
func FindBookmark(bookmarks []*Bookmark, id int64) (found, parent *Bookmark, index int) {
	var walk func(siblings []*Bookmark, p *Bookmark) bool
	walk = func(siblings []*Bookmark, p *Bookmark) bool {
		for i, b := range siblings {
			if b.ID == id {
				found, parent, index = b, p, i
				return true
			}
			if walk(b.Children, b) {
				return true
			}
		}
		return false
	}
	walk(bookmarks, nil)
	return found, parent, index
}

// RemoveBookmark detaches the bookmark with the given id from the tree and
// returns it, or nil when no such bookmark exists.
func RemoveBookmark(bookmarks *[]*Bookmark, id int64) *Bookmark {
	found, parent, index := FindBookmark(*bookmarks, id)
	if found == nil {
		return nil
	}
	if parent == nil {
		*bookmarks = append((*bookmarks)[:index:index], (*bookmarks)[index+1:]...)
	} else {
		parent.Children = append(parent.Children[:index:index], parent.Children[index+1:]...)
	}
	return found
}

// InsertBookmark inserts b into siblings at index, clamping index to the valid
// range.
func InsertBookmark(siblings []*Bookmark, index int, b *Bookmark) []*Bookmark {
	if index < 0 || index > len(siblings) {
		index = len(siblings)
	}
	siblings = append(siblings, nil)
	copy(siblings[index+1:], siblings[index:])
	siblings[index] = b
	return siblings
}

// SubtreeIDs returns the ids of b and all of its descendants.
func SubtreeIDs(b *Bookmark) []int64 {
	ids := []int64{b.ID}
	EachBookmark(b.Children, func(c *Bookmark) {
		ids = append(ids, c.ID)
	})
	return ids
}

// --- Native tree helpers ----------------------------------------------------

// EachNativeNode calls fn for every node in the native subtree list, parents
// before children.
func EachNativeNode(nodes []*NativeNode, fn func(n *NativeNode)) {
	for _, n := range nodes {
		fn(n)
		if len(n.Children) > 0 {
			EachNativeNode(n.Children, fn)
		}
	}
}
