package model

import "errors"

// Structural and identity errors are never retried: they indicate a
// consistency violation between the native and synced trees.
var (
	ErrMappingNotFound     = errors.New("bookmark id mapping not found")
	ErrContainerNotFound   = errors.New("native bookmark container not found")
	ErrAmbiguousChangeType = errors.New("ambiguous bookmark change type")
	ErrContainerChanged    = errors.New("bookmark container changed")
)

// Native API failures. They are wrapped together with their cause.
var (
	ErrFailedCreateNativeBookmarks = errors.New("failed to create native bookmarks")
	ErrFailedRemoveNativeBookmarks = errors.New("failed to remove native bookmarks")
	ErrFailedGetNativeBookmarks    = errors.New("failed to get native bookmarks")
)
