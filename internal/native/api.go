// Package native provides the browser-side bookmark tree the engine
// reconciles against.
//
// [Tree] is an in-memory implementation of [API] laid out like a Chromium
// profile: a root "0" holding the bookmarks bar "1" and other bookmarks "2".
// A Tree can be loaded from and saved to a Netscape bookmark HTML file, which
// is how the command line tool keeps a native profile on disk.
package native

import (
	"context"
	"errors"

	"github.com/njoerd114/bookmarkrelay/internal/model"
)

// Permanent node ids and titles.
const (
	RootID       = "0"
	ToolbarID    = "1"
	OtherID      = "2"
	ToolbarTitle = "Bookmarks bar"
	OtherTitle   = "Other bookmarks"
)

var (
	ErrNotFound      = errors.New("native bookmark not found")
	ErrPermanentNode = errors.New("cannot modify permanent native bookmark node")
	ErrInvalidMove   = errors.New("invalid native bookmark move")
)

// CreateDetails describes a node to create. A node without URL is a folder.
// A nil Index appends to the parent.
type CreateDetails struct {
	ParentID string
	Index    *int
	Title    string
	URL      string
}

// Destination is the target of a move. An empty ParentID keeps the current
// parent. Index is the node's position after the move; nil appends.
type Destination struct {
	ParentID string
	Index    *int
}

// Changes holds the fields to update. Nil fields are left unchanged.
type Changes struct {
	Title *string
	URL   *string
}

// API is the native bookmark collaborator. All returned nodes are copies and
// may be retained or modified by the caller.
type API interface {
	GetTree(ctx context.Context) (*model.NativeNode, error)
	GetSubTree(ctx context.Context, id string) (*model.NativeNode, error)
	GetChildren(ctx context.Context, id string) ([]*model.NativeNode, error)
	Get(ctx context.Context, id string) (*model.NativeNode, error)
	Create(ctx context.Context, details CreateDetails) (*model.NativeNode, error)
	Move(ctx context.Context, id string, dest Destination) (*model.NativeNode, error)
	Update(ctx context.Context, id string, changes Changes) (*model.NativeNode, error)
	// Remove deletes the node and everything below it.
	Remove(ctx context.Context, id string) error
}

// IntPtr returns a pointer to i, for CreateDetails.Index and Destination.Index.
func IntPtr(i int) *int { return &i }

// StrPtr returns a pointer to s, for Changes.
func StrPtr(s string) *string { return &s }
