package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/njoerd114/bookmarkrelay/internal/metadata"
	"github.com/njoerd114/bookmarkrelay/internal/model"
	"github.com/njoerd114/bookmarkrelay/internal/native"
)

// Normalizer converts raw native events into bookmark changes. It is driven
// by one goroutine at a time, the processor's.
type Normalizer struct {
	api        native.API
	mapper     IDMapper
	containers Containers
	meta       MetadataSource
	newTabURL  string
	log        *slog.Logger

	// aliases maps the ids of recreated separators to their replacements so
	// that events queued before the recreation still resolve.
	aliases map[string]string
}

// NewNormalizer returns a Normalizer. meta may be nil, which disables
// enrichment of added bookmarks.
func NewNormalizer(api native.API, mapper IDMapper, containers Containers, meta MetadataSource, newTabURL string, logger *slog.Logger) *Normalizer {
	return &Normalizer{
		api:        api,
		mapper:     mapper,
		containers: containers,
		meta:       meta,
		newTabURL:  newTabURL,
		log:        logger,
		aliases:    make(map[string]string),
	}
}

// Normalize produces the change for ev. Separators are recreated in canonical
// form while sup is held; when that gives the node a new native id, its id
// mapping is moved to the new id before the change is returned.
func (n *Normalizer) Normalize(ctx context.Context, ev model.NativeEvent, sup *Suppressor) (model.BookmarkChange, error) {
	aliased := false
	for id, ok := n.aliases[ev.NativeID]; ok; id, ok = n.aliases[ev.NativeID] {
		ev.NativeID, aliased = id, true
	}
	if aliased && ev.Node != nil {
		node := ev.Node.Clone()
		node.ID = ev.NativeID
		ev.Node = node
	}
	switch ev.Type {
	case model.ChangeAdd:
		return n.normalizeAdd(ctx, ev, sup)
	case model.ChangeRemove:
		return model.RemoveChange{
			NativeID: ev.NativeID,
			ParentID: ev.ParentID,
			Index:    ev.Index,
			Node:     ev.Node,
		}, nil
	case model.ChangeMove:
		return n.normalizeMove(ctx, ev, sup)
	case model.ChangeModify:
		return n.normalizeModify(ctx, ev, sup)
	default:
		return nil, fmt.Errorf("%w: %s", model.ErrAmbiguousChangeType, ev.Type)
	}
}

// forgetAliases drops the separator aliases. The processor calls it once the
// queue is empty, when no queued event can name a replaced id any more.
func (n *Normalizer) forgetAliases() {
	clear(n.aliases)
}

func (n *Normalizer) normalizeAdd(ctx context.Context, ev model.NativeEvent, sup *Suppressor) (model.BookmarkChange, error) {
	node := ev.Node
	if node == nil {
		var err error
		if node, err = n.api.GetSubTree(ctx, ev.NativeID); err != nil {
			return nil, fmt.Errorf("%w: %w", model.ErrFailedGetNativeBookmarks, err)
		}
	}
	node = node.Clone()

	if model.IsNativeSeparator(node, n.newTabURL) {
		converted, err := n.convertToSeparator(ctx, node, sup)
		if err != nil {
			return nil, err
		}
		// Replay at the position the add was reported at; later moves follow.
		converted.ParentID, converted.Index = node.ParentID, node.Index
		return model.AddChange{Node: converted}, nil
	}

	change := model.AddChange{Node: node}
	if node.IsFolder() || n.meta == nil {
		return change, nil
	}

	meta, err := n.meta.PageMetadata(ctx)
	if err != nil {
		loggerFor(ctx, n.log).Debug("page metadata unavailable", "error", err)
		return change, nil
	}
	if meta == nil || meta.URL != node.URL {
		return change, nil
	}
	if title := metadata.StripTags(meta.Title); title != "" {
		change.Node.Title = title
	}
	change.Description = metadata.StripTags(meta.Description)
	change.Tags = metadata.ParseTags(meta.Tags)
	loggerFor(ctx, n.log).Debug("added bookmark enriched from active page", "url", node.URL)
	return change, nil
}

func (n *Normalizer) normalizeMove(ctx context.Context, ev model.NativeEvent, sup *Suppressor) (model.BookmarkChange, error) {
	node, err := n.api.Get(ctx, ev.NativeID)
	if errors.Is(err, native.ErrNotFound) {
		// Removed again before the queue reached it; the removal follows.
		return model.MoveChange{
			NativeID:    ev.NativeID,
			ParentID:    ev.ParentID,
			Index:       ev.Index,
			OldParentID: ev.OldParentID,
			OldIndex:    ev.OldIndex,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrFailedGetNativeBookmarks, err)
	}
	id, err := n.canonicalID(ctx, node, sup)
	if err != nil {
		return nil, err
	}
	change := model.MoveChange{
		NativeID:    id,
		ParentID:    ev.ParentID,
		Index:       ev.Index,
		OldParentID: ev.OldParentID,
		OldIndex:    ev.OldIndex,
	}
	if change.ParentID == "" {
		change.ParentID = node.ParentID
		change.Index = node.Index
	}
	return change, nil
}

func (n *Normalizer) normalizeModify(ctx context.Context, ev model.NativeEvent, sup *Suppressor) (model.BookmarkChange, error) {
	node, err := n.api.GetSubTree(ctx, ev.NativeID)
	if errors.Is(err, native.ErrNotFound) && ev.Node != nil {
		return model.ModifyChange{Node: ev.Node.Clone()}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrFailedGetNativeBookmarks, err)
	}
	if !model.IsNativeSeparator(node, n.newTabURL) {
		return model.ModifyChange{Node: node}, nil
	}
	converted, err := n.convertToSeparator(ctx, node, sup)
	if err != nil {
		return nil, err
	}
	if err := n.remap(ctx, node.ID, converted.ID); err != nil {
		return nil, err
	}
	return model.ModifyChange{Node: converted}, nil
}

// canonicalID converts node to a canonical separator when it is one and
// returns the id the node carries afterwards.
func (n *Normalizer) canonicalID(ctx context.Context, node *model.NativeNode, sup *Suppressor) (string, error) {
	if !model.IsNativeSeparator(node, n.newTabURL) {
		return node.ID, nil
	}
	converted, err := n.convertToSeparator(ctx, node, sup)
	if err != nil {
		return "", err
	}
	if err := n.remap(ctx, node.ID, converted.ID); err != nil {
		return "", err
	}
	return converted.ID, nil
}

func (n *Normalizer) remap(ctx context.Context, oldID, newID string) error {
	if oldID == newID {
		return nil
	}
	if _, err := n.mapper.Replace(ctx, oldID, newID); err != nil {
		return fmt.Errorf("updating mapping for separator %s: %w", oldID, err)
	}
	return nil
}

// convertToSeparator deletes node and recreates it at the same position with
// the canonical separator title and url, unless it already has them.
func (n *Normalizer) convertToSeparator(ctx context.Context, node *model.NativeNode, sup *Suppressor) (*model.NativeNode, error) {
	ids, err := n.containers.NativeContainerIDs(ctx)
	if err != nil {
		return nil, err
	}
	// Position may have shifted since the event was raised.
	current, err := n.api.Get(ctx, node.ID)
	if errors.Is(err, native.ErrNotFound) {
		return node, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrFailedGetNativeBookmarks, err)
	}
	title := model.SeparatorTitleFor(current.ParentID, ids.Toolbar)
	if current.Title == title && current.URL == n.newTabURL {
		return node, nil
	}

	release := sup.Hold()
	defer release()

	if err := n.api.Remove(ctx, node.ID); err != nil {
		return nil, fmt.Errorf("%w: separator %s: %w", model.ErrFailedRemoveNativeBookmarks, node.ID, err)
	}
	created, err := n.api.Create(ctx, native.CreateDetails{
		ParentID: current.ParentID,
		Index:    native.IntPtr(current.Index),
		Title:    title,
		URL:      n.newTabURL,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: separator: %w", model.ErrFailedCreateNativeBookmarks, err)
	}
	n.aliases[node.ID] = created.ID
	loggerFor(ctx, n.log).Info("separator recreated", "old_id", node.ID, "id", created.ID)
	return created, nil
}
