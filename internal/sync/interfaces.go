// Package sync turns native bookmark events into changes to the synced
// bookmark tree.
//
// The package contains these components:
//
//   - [Normalizer] converts one raw native event into a [model.BookmarkChange],
//     recreating separators in canonical form and fixing id mappings.
//   - [Processor] owns the event queue. It drains events strictly in arrival
//     order, hands the changes to a [Syncer], then reorders the emulated
//     containers with native event intake suppressed.
//   - [Pusher] is the sync pass: it replays changes against the synced tree
//     held in the remote store.
//   - [Restorer] uploads or restores whole trees, and [Bootstrap] picks one
//     of the two on first run.
//   - [Engine] runs the processor and records telemetry.
package sync

import (
	"context"

	"github.com/njoerd114/bookmarkrelay/internal/container"
	"github.com/njoerd114/bookmarkrelay/internal/model"
)

// IDMapper persists native↔synced id pairs.
// Implemented by [idmap.Mapper].
type IDMapper interface {
	All(ctx context.Context) ([]model.IDMapping, error)
	Add(ctx context.Context, mappings ...model.IDMapping) error
	GetByNativeID(ctx context.Context, nativeID string) (*model.IDMapping, error)
	GetBySyncedID(ctx context.Context, syncedID int64) (*model.IDMapping, error)
	Remove(ctx context.Context, syncedIDs []int64, nativeIDs []string) error
	Replace(ctx context.Context, oldNativeID, newNativeID string) (model.IDMapping, error)
	Clear(ctx context.Context) error
}

// Containers locates and maintains the native containers.
// Implemented by [container.Resolver].
type Containers interface {
	NativeContainerIDs(ctx context.Context) (container.IDs, error)
	WasContainerChanged(ctx context.Context, node *model.NativeNode, synced []*model.Bookmark) (bool, error)
	ReorderUnsupportedContainers(ctx context.Context) (int, error)
}

// Materializer converts whole trees between the two representations.
// Implemented by [materialize.Materializer].
type Materializer interface {
	CreateNativeBookmarksFromBookmarks(ctx context.Context, bookmarks []*model.Bookmark) error
	GetNativeBookmarksAsBookmarks(ctx context.Context) ([]*model.Bookmark, error)
	ClearNativeBookmarks(ctx context.Context) error
	BuildIDMappings(ctx context.Context, bookmarks []*model.Bookmark) ([]model.IDMapping, error)
}

// MetadataSource describes the active page.
// Implemented by [metadata.Fetcher].
type MetadataSource interface {
	PageMetadata(ctx context.Context) (*model.PageMetadata, error)
}

// Syncer runs a sync pass carrying the drained changes.
// Implemented by [Pusher].
type Syncer interface {
	ExecuteSync(ctx context.Context, changes []model.BookmarkChange) error
}

// Preferences gates toolbar handling.
// Implemented by [config.Config].
type Preferences interface {
	SyncBookmarksToolbar() bool
}

// TreeRestorer rebuilds the native tree from the synced tree.
// Implemented by [Restorer].
type TreeRestorer interface {
	Restore(ctx context.Context) error
}
