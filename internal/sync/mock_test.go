package sync

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/njoerd114/bookmarkrelay/internal/container"
	"github.com/njoerd114/bookmarkrelay/internal/idmap"
	"github.com/njoerd114/bookmarkrelay/internal/materialize"
	"github.com/njoerd114/bookmarkrelay/internal/model"
	"github.com/njoerd114/bookmarkrelay/internal/native"
	"github.com/njoerd114/bookmarkrelay/internal/state"
)

const newTab = "chrome://newtab/"

var testLogger = slog.New(slog.DiscardHandler)

type prefs bool

func (p prefs) SyncBookmarksToolbar() bool { return bool(p) }

// --- Mock Syncer ------------------------------------------------------------

type mockSyncer struct {
	mu     sync.Mutex
	passes [][]model.BookmarkChange
	err    error
}

func (m *mockSyncer) ExecuteSync(_ context.Context, changes []model.BookmarkChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.passes = append(m.passes, slices.Clone(changes))
	return m.err
}

func (m *mockSyncer) calls() [][]model.BookmarkChange {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.passes)
}

// --- Mock Metadata ----------------------------------------------------------

type mockMetadata struct {
	mu   sync.Mutex
	page *model.PageMetadata
	err  error
}

func (m *mockMetadata) PageMetadata(context.Context) (*model.PageMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if m.page == nil {
		return nil, nil
	}
	cp := *m.page
	return &cp, nil
}

// --- Mock Restorer ----------------------------------------------------------

type mockRestorer struct {
	mu    sync.Mutex
	count int
	err   error
}

func (m *mockRestorer) Restore(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.count++
	return m.err
}

func (m *mockRestorer) restores() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}

// --- Harness ----------------------------------------------------------------

// harness wires the real components over an in-memory native tree and
// in-memory stores.
type harness struct {
	tree     *native.Tree
	remote   *state.Memory
	local    *state.Memory
	mapper   *idmap.Mapper
	res      *container.Resolver
	mat      *materialize.Materializer
	norm     *Normalizer
	pusher   *Pusher
	restorer *Restorer
	proc     *Processor
}

func newHarness(t *testing.T, toolbar bool, meta MetadataSource) *harness {
	t.Helper()
	h := &harness{
		tree:   native.NewTree(),
		remote: state.NewMemory(),
		local:  state.NewMemory(),
	}
	h.mapper = idmap.New(h.local, testLogger)
	h.res = container.NewResolver(h.tree, testLogger)
	h.mat = materialize.New(h.tree, h.res, prefs(toolbar), newTab, testLogger)
	h.norm = NewNormalizer(h.tree, h.mapper, h.res, meta, newTab, testLogger)
	h.pusher = NewPusher(h.remote, h.tree, h.mapper, h.res, prefs(toolbar), newTab, testLogger)
	h.restorer = NewRestorer(h.remote, h.mapper, h.mat, testLogger)
	h.proc = NewProcessor(h.norm, h.pusher, h.res, h.restorer, 0, testLogger)
	h.tree.SetListener(func(ev model.NativeEvent) { h.proc.Enqueue(ev) })
	return h
}

// seed uploads the native tree, linking both sides.
func (h *harness) seed(t *testing.T) {
	t.Helper()
	release := h.proc.Suppressor().Hold()
	defer release()
	if _, err := h.restorer.Upload(context.Background()); err != nil {
		t.Fatalf("Upload: %v", err)
	}
}

func (h *harness) create(t *testing.T, parentID string, index int, title, url string) string {
	t.Helper()
	d := native.CreateDetails{ParentID: parentID, Title: title, URL: url}
	if index >= 0 {
		d.Index = native.IntPtr(index)
	}
	n, err := h.tree.Create(context.Background(), d)
	if err != nil {
		t.Fatalf("Create(%q): %v", title, err)
	}
	return n.ID
}

func (h *harness) drain(t *testing.T) CycleStats {
	t.Helper()
	stats, err := h.proc.Drain(context.Background())
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	return stats
}

func (h *harness) synced(t *testing.T) []*model.Bookmark {
	t.Helper()
	bookmarks, _, err := h.restorer.SyncedBookmarks(context.Background())
	if err != nil {
		t.Fatalf("SyncedBookmarks: %v", err)
	}
	return bookmarks
}

func (h *harness) nativeAsBookmarks(t *testing.T) []*model.Bookmark {
	t.Helper()
	bookmarks, err := h.mat.GetNativeBookmarksAsBookmarks(context.Background())
	if err != nil {
		t.Fatalf("GetNativeBookmarksAsBookmarks: %v", err)
	}
	return bookmarks
}

// assertMirrored checks that the synced tree has the native tree's shape.
func (h *harness) assertMirrored(t *testing.T) {
	t.Helper()
	got, want := shape(h.synced(t)), shape(h.nativeAsBookmarks(t))
	if got != want {
		t.Errorf("synced tree = %s\nwant (native) %s", got, want)
	}
}

// assertMapped checks that every synced bookmark below a container maps to a
// native node with the same kind and title.
func (h *harness) assertMapped(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	for _, c := range h.synced(t) {
		model.EachBookmark(c.Children, func(b *model.Bookmark) {
			m, err := h.mapper.GetBySyncedID(ctx, b.ID)
			if err != nil || m == nil {
				t.Errorf("synced %d (%q) has no mapping (err %v)", b.ID, b.Title, err)
				return
			}
			n, err := h.tree.Get(ctx, m.NativeID)
			if err != nil {
				t.Errorf("synced %d maps to missing native %s: %v", b.ID, m.NativeID, err)
				return
			}
			if b.IsSeparator() {
				if !model.IsNativeSeparator(n, newTab) {
					t.Errorf("synced separator %d maps to %q", b.ID, n.Title)
				}
				return
			}
			if n.Title != b.Title {
				t.Errorf("synced %d title = %q, native %s title = %q", b.ID, b.Title, n.ID, n.Title)
			}
		})
	}
}

// shape renders the non-empty containers of a synced tree without ids, in
// canonical container order.
func shape(bookmarks []*model.Bookmark) string {
	var render func(bs []*model.Bookmark) string
	render = func(bs []*model.Bookmark) string {
		parts := make([]string, 0, len(bs))
		for _, b := range bs {
			switch {
			case b.IsSeparator():
				parts = append(parts, "-")
			case b.IsFolder():
				parts = append(parts, b.Title+"["+render(b.Children)+"]")
			default:
				parts = append(parts, b.Title)
			}
		}
		return strings.Join(parts, ",")
	}

	var out []string
	for _, c := range model.Containers {
		b := model.GetContainer(c, bookmarks)
		if b == nil || len(b.Children) == 0 {
			continue
		}
		out = append(out, fmt.Sprintf("%s{%s}", c, render(b.Children)))
	}
	return strings.Join(out, " ")
}
