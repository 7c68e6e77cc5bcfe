package model

import (
	"time"
)

// NativeNode is a node of the browser's own bookmark tree. Native ids are
// assigned by the browser and are not stable across profiles or restores.
type NativeNode struct {
	ID        string        `json:"id"`
	ParentID  string        `json:"parentId,omitempty"`
	Index     int           `json:"index"`
	Title     string        `json:"title"`
	URL       string        `json:"url,omitempty"`
	DateAdded time.Time     `json:"dateAdded"`
	Children  []*NativeNode `json:"children,omitempty"`
}

// IsFolder reports whether n has no target url.
func (n *NativeNode) IsFolder() bool {
	return n.URL == ""
}

// Clone returns a deep copy of n.
func (n *NativeNode) Clone() *NativeNode {
	if n == nil {
		return nil
	}
	cp := *n
	if n.Children != nil {
		cp.Children = make([]*NativeNode, len(n.Children))
		for i, c := range n.Children {
			cp.Children[i] = c.Clone()
		}
	}
	return &cp
}

// IsNativeSeparator reports whether n is a native bookmark standing in for a
// separator: a childless node titled with a separator marker whose url is
// empty or the platform's new tab url.
func IsNativeSeparator(n *NativeNode, newTabURL string) bool {
	if n == nil || len(n.Children) > 0 {
		return false
	}
	if n.URL != "" && n.URL != newTabURL {
		return false
	}
	return separatorPattern.MatchString(n.Title) || n.Title == VerticalSeparatorTitle
}

// SeparatorTitleFor returns the canonical native separator title for a node
// whose parent is parentID.
func SeparatorTitleFor(parentID, toolbarID string) string {
	if parentID == toolbarID {
		return VerticalSeparatorTitle
	}
	return HorizontalSeparatorTitle
}

// BookmarkFromNative converts a native subtree into its synced representation.
// Ids are left unassigned.
func BookmarkFromNative(n *NativeNode, newTabURL string) *Bookmark {
	if IsNativeSeparator(n, newTabURL) {
		return NewSeparator()
	}
	if !n.IsFolder() {
		return &Bookmark{Title: n.Title, URL: n.URL}
	}
	return &Bookmark{Title: n.Title, Children: BookmarksFromNative(n.Children, newTabURL)}
}

// BookmarksFromNative converts a list of native nodes, preserving order.
func BookmarksFromNative(nodes []*NativeNode, newTabURL string) []*Bookmark {
	out := make([]*Bookmark, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, BookmarkFromNative(n, newTabURL))
	}
	return out
}
