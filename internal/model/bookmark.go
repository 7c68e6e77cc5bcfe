// Package model defines the types shared by the bookmark reconciliation
// engine: the synced bookmark tree, native bookmark nodes, id mappings, and
// the change records that flow from native events to the sync pass.
package model

import (
	"regexp"
	"slices"
)

// Container is the reserved title of one of the four top-level folders of the
// synced tree.
type Container string

const (
	ContainerMenu    Container = "Menu"
	ContainerMobile  Container = "Mobile"
	ContainerOther   Container = "Other"
	ContainerToolbar Container = "Toolbar"
)

// Containers lists every container in the order they are reconciled.
var Containers = []Container{ContainerMenu, ContainerMobile, ContainerOther, ContainerToolbar}

// UnsupportedContainers are emulated as ordinary folders inside native Other,
// in their canonical order.
var UnsupportedContainers = []Container{ContainerMenu, ContainerMobile}

// Separator conventions. The synced tree stores separators as a url-less node
// titled SeparatorTitle; native trees use a full-width rule, or a vertical bar
// on the toolbar, pointing at the platform's new tab page.
const (
	SeparatorTitle           = "-"
	HorizontalSeparatorTitle = "─────────────────────────────"
	VerticalSeparatorTitle   = "|"
)

var separatorPattern = regexp.MustCompile(`^[-─]+$`)

// IsContainerTitle reports whether title is one of the reserved container titles.
func IsContainerTitle(title string) bool {
	return slices.Contains(Containers, Container(title))
}

// IsUnsupportedContainerTitle reports whether title names a container that is
// emulated inside native Other.
func IsUnsupportedContainerTitle(title string) bool {
	return slices.Contains(UnsupportedContainers, Container(title))
}

// Bookmark is a node of the synced tree. A node with URL set is a leaf; a node
// without URL is either a folder or, when its title is a separator marker, a
// separator. ID is zero until assigned.
type Bookmark struct {
	ID          int64       `json:"id,omitempty"`
	Title       string      `json:"title,omitempty"`
	URL         string      `json:"url,omitempty"`
	Description string      `json:"description,omitempty"`
	Tags        []string    `json:"tags,omitempty"`
	Children    []*Bookmark `json:"children,omitempty"`
}

// IsSeparator reports whether b follows the synced separator convention.
func (b *Bookmark) IsSeparator() bool {
	return b.URL == "" && len(b.Children) == 0 && separatorPattern.MatchString(b.Title)
}

// IsFolder reports whether b can hold children.
func (b *Bookmark) IsFolder() bool {
	return b.URL == "" && !b.IsSeparator()
}

// IsContainer reports whether b carries a reserved container title.
func (b *Bookmark) IsContainer() bool {
	return IsContainerTitle(b.Title)
}

// NewSeparator returns an unassigned synced separator.
func NewSeparator() *Bookmark {
	return &Bookmark{Title: SeparatorTitle}
}

// IDMapping links a synced bookmark id to the id the native browser assigned
// to the same bookmark. NativeID is empty when no native node exists.
type IDMapping struct {
	SyncedID int64  `json:"syncedId"`
	NativeID string `json:"nativeId,omitempty"`
}

// PageMetadata describes the page currently open in the active tab. Tags is
// the raw keyword text as published by the page.
type PageMetadata struct {
	URL         string
	Title       string
	Description string
	Tags        string
}
