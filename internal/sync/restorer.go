package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/njoerd114/bookmarkrelay/internal/model"
	"github.com/njoerd114/bookmarkrelay/internal/state"
)

// Restorer moves whole trees between the native side and the remote store,
// rebuilding the id mappings afterwards.
type Restorer struct {
	remote state.KV
	mapper IDMapper
	mat    Materializer
	log    *slog.Logger
	now    func() time.Time
}

// NewRestorer returns a Restorer.
func NewRestorer(remote state.KV, mapper IDMapper, mat Materializer, logger *slog.Logger) *Restorer {
	return &Restorer{remote: remote, mapper: mapper, mat: mat, log: logger, now: time.Now}
}

// SyncedBookmarks returns the synced tree held remotely and whether one exists.
func (r *Restorer) SyncedBookmarks(ctx context.Context) ([]*model.Bookmark, bool, error) {
	var bookmarks []*model.Bookmark
	ok, err := state.GetJSON(ctx, r.remote, state.KeyBookmarks, &bookmarks)
	if err != nil {
		return nil, false, fmt.Errorf("loading synced bookmarks: %w", err)
	}
	return bookmarks, ok, nil
}

// Restore replaces the native bookmarks with the synced tree. Callers that
// listen for native events must suppress intake around the call.
func (r *Restorer) Restore(ctx context.Context) error {
	bookmarks, _, err := r.SyncedBookmarks(ctx)
	if err != nil {
		return err
	}
	if err := r.mat.ClearNativeBookmarks(ctx); err != nil {
		return fmt.Errorf("clearing native bookmarks: %w", err)
	}
	if err := r.mat.CreateNativeBookmarksFromBookmarks(ctx, bookmarks); err != nil {
		return fmt.Errorf("populating native bookmarks: %w", err)
	}
	if err := r.remap(ctx, bookmarks); err != nil {
		return err
	}
	r.log.Info("native bookmarks restored from synced tree")
	return nil
}

// Upload replaces the synced tree with the native bookmarks and returns it.
func (r *Restorer) Upload(ctx context.Context) ([]*model.Bookmark, error) {
	bookmarks, err := r.mat.GetNativeBookmarksAsBookmarks(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading native bookmarks: %w", err)
	}
	if bookmarks == nil {
		bookmarks = []*model.Bookmark{}
	}
	if err := state.SetJSON(ctx, r.remote, state.KeyBookmarks, bookmarks); err != nil {
		return nil, fmt.Errorf("saving synced bookmarks: %w", err)
	}
	if err := state.SetLastUpdated(ctx, r.remote, r.now()); err != nil {
		return nil, fmt.Errorf("recording sync time: %w", err)
	}
	if err := r.remap(ctx, bookmarks); err != nil {
		return nil, err
	}
	r.log.Info("native bookmarks uploaded")
	return bookmarks, nil
}

// Clear removes the native bookmarks and forgets every id mapping.
func (r *Restorer) Clear(ctx context.Context) error {
	if err := r.mat.ClearNativeBookmarks(ctx); err != nil {
		return err
	}
	return r.mapper.Clear(ctx)
}

func (r *Restorer) remap(ctx context.Context, bookmarks []*model.Bookmark) error {
	mappings, err := r.mat.BuildIDMappings(ctx, bookmarks)
	if err != nil {
		return fmt.Errorf("building id mappings: %w", err)
	}
	if err := r.mapper.Clear(ctx); err != nil {
		return err
	}
	if err := r.mapper.Add(ctx, mappings...); err != nil {
		return fmt.Errorf("saving id mappings: %w", err)
	}
	r.log.Debug("id mappings rebuilt", "count", len(mappings))
	return nil
}
