package model

import (
	"testing"
	"time"
)

const testNewTabURL = "chrome://newtab/"

func TestIsNativeSeparator(t *testing.T) {
	tests := []struct {
		name string
		node *NativeNode
		want bool
	}{
		{"horizontal rule new tab", &NativeNode{Title: HorizontalSeparatorTitle, URL: testNewTabURL}, true},
		{"dashes no url", &NativeNode{Title: "---"}, true},
		{"vertical bar", &NativeNode{Title: VerticalSeparatorTitle, URL: testNewTabURL}, true},
		{"dashes other url", &NativeNode{Title: "---", URL: "https://example.com"}, false},
		{"plain bookmark", &NativeNode{Title: "Example", URL: "https://example.com"}, false},
		{"folder with children", &NativeNode{Title: "---", Children: []*NativeNode{{Title: "x"}}}, false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNativeSeparator(tt.node, testNewTabURL); got != tt.want {
				t.Errorf("IsNativeSeparator = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBookmark_Kinds(t *testing.T) {
	sep := NewSeparator()
	if !sep.IsSeparator() || sep.IsFolder() {
		t.Errorf("separator: IsSeparator=%v IsFolder=%v", sep.IsSeparator(), sep.IsFolder())
	}
	folder := &Bookmark{Title: "Work", Children: []*Bookmark{}}
	if !folder.IsFolder() {
		t.Error("empty folder should be a folder")
	}
	leaf := &Bookmark{Title: "A", URL: "http://a"}
	if leaf.IsFolder() || leaf.IsSeparator() {
		t.Error("leaf should be neither folder nor separator")
	}
	if !(&Bookmark{Title: "Menu"}).IsContainer() {
		t.Error("Menu should be a container title")
	}
}

func TestNewBookmarkID(t *testing.T) {
	tree := []*Bookmark{
		{ID: 1, Title: "Other", Children: []*Bookmark{
			{ID: 7, Title: "A", URL: "http://a"},
			{ID: 3, Title: "F", Children: []*Bookmark{{ID: 12, Title: "B", URL: "http://b"}}},
		}},
	}
	if got := NewBookmarkID(tree); got != 13 {
		t.Errorf("NewBookmarkID = %d, want 13", got)
	}
	if got := NewBookmarkID(nil); got != 1 {
		t.Errorf("NewBookmarkID(empty) = %d, want 1", got)
	}
}

func TestEnsureContainer(t *testing.T) {
	var tree []*Bookmark
	other := EnsureContainer(ContainerOther, &tree)
	if other.ID != 1 || len(tree) != 1 {
		t.Fatalf("first container: id=%d len=%d", other.ID, len(tree))
	}
	again := EnsureContainer(ContainerOther, &tree)
	if again != other {
		t.Error("EnsureContainer created a duplicate container")
	}
	toolbar := EnsureContainer(ContainerToolbar, &tree)
	if toolbar.ID != 2 {
		t.Errorf("toolbar id = %d, want 2", toolbar.ID)
	}
}

func TestRemoveAndInsertBookmark(t *testing.T) {
	tree := []*Bookmark{
		{ID: 1, Title: "Other", Children: []*Bookmark{
			{ID: 2, Title: "A", URL: "http://a"},
			{ID: 3, Title: "B", URL: "http://b"},
			{ID: 4, Title: "C", URL: "http://c"},
		}},
	}
	removed := RemoveBookmark(&tree, 3)
	if removed == nil || removed.Title != "B" {
		t.Fatalf("RemoveBookmark = %+v, want B", removed)
	}
	other := tree[0]
	if len(other.Children) != 2 || other.Children[1].ID != 4 {
		t.Fatalf("children after remove = %+v", other.Children)
	}
	other.Children = InsertBookmark(other.Children, 0, removed)
	if other.Children[0].ID != 3 || len(other.Children) != 3 {
		t.Errorf("children after insert = %+v", other.Children)
	}
	other.Children = InsertBookmark(other.Children, 99, &Bookmark{ID: 5})
	if other.Children[3].ID != 5 {
		t.Errorf("out-of-range insert should append")
	}
	if RemoveBookmark(&tree, 42) != nil {
		t.Error("removing a missing id should return nil")
	}
}

func TestBookmarkFromNative(t *testing.T) {
	node := &NativeNode{ID: "10", Title: "Folder", DateAdded: time.Unix(1, 0), Children: []*NativeNode{
		{ID: "11", Title: "A", URL: "http://a"},
		{ID: "12", Title: HorizontalSeparatorTitle, URL: testNewTabURL},
		{ID: "13", Title: "Empty"},
	}}
	b := BookmarkFromNative(node, testNewTabURL)
	if !b.IsFolder() || len(b.Children) != 3 {
		t.Fatalf("converted folder = %+v", b)
	}
	if b.Children[0].URL != "http://a" {
		t.Errorf("leaf url = %q", b.Children[0].URL)
	}
	if !b.Children[1].IsSeparator() {
		t.Errorf("separator not converted: %+v", b.Children[1])
	}
	if !b.Children[2].IsFolder() {
		t.Errorf("empty folder not a folder: %+v", b.Children[2])
	}
}

func TestParseChangeType(t *testing.T) {
	for _, ct := range []ChangeType{ChangeAdd, ChangeRemove, ChangeMove, ChangeModify} {
		if got := ParseChangeType(ct.String()); got != ct {
			t.Errorf("ParseChangeType(%q) = %v, want %v", ct.String(), got, ct)
		}
	}
	if got := ParseChangeType("rename"); got != 0 {
		t.Errorf("unknown change type parsed as %v", got)
	}
}
