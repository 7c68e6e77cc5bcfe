package sync

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/njoerd114/bookmarkrelay/internal/model"
)

// BootstrapAction is what a first run will do.
type BootstrapAction int

const (
	// BootstrapUpload seeds the empty remote store from the native tree.
	BootstrapUpload BootstrapAction = iota + 1
	// BootstrapRestore replaces the native tree with the synced tree.
	BootstrapRestore
)

func (a BootstrapAction) String() string {
	switch a {
	case BootstrapUpload:
		return "upload"
	case BootstrapRestore:
		return "restore"
	default:
		return "none"
	}
}

// Bootstrap performs the first-run linkage between the native tree and the
// remote store. It runs only while no id mappings exist, prints a summary,
// and acts after confirmation.
type Bootstrap struct {
	mapper    IDMapper
	mat       Materializer
	restorer  *Restorer
	log       *slog.Logger
	reader    io.Reader // for confirmation prompt (os.Stdin in production)
	writer    io.Writer // for summary output (os.Stdout in production)
	assumeYes bool
}

// NewBootstrap creates a Bootstrap. reader and writer control the
// confirmation prompt I/O; with assumeYes the prompt is skipped.
func NewBootstrap(mapper IDMapper, mat Materializer, restorer *Restorer, logger *slog.Logger, reader io.Reader, writer io.Writer, assumeYes bool) *Bootstrap {
	return &Bootstrap{
		mapper:    mapper,
		mat:       mat,
		restorer:  restorer,
		log:       logger,
		reader:    reader,
		writer:    writer,
		assumeYes: assumeYes,
	}
}

// Run bootstraps if no id mappings exist. It returns the action taken, or
// zero when skipped or cancelled.
func (b *Bootstrap) Run(ctx context.Context) (BootstrapAction, error) {
	existing, err := b.mapper.All(ctx)
	if err != nil {
		return 0, fmt.Errorf("checking id mappings: %w", err)
	}
	if len(existing) > 0 {
		b.log.Debug("id mappings present, skipping bootstrap")
		return 0, nil
	}

	b.log.Info("no id mappings found, starting first-run bootstrap")

	synced, ok, err := b.restorer.SyncedBookmarks(ctx)
	if err != nil {
		return 0, err
	}
	action := BootstrapRestore
	if !ok {
		action = BootstrapUpload
	}

	local, err := b.mat.GetNativeBookmarksAsBookmarks(ctx)
	if err != nil {
		return 0, fmt.Errorf("reading native bookmarks: %w", err)
	}
	b.printSummary(action, local, synced)

	if !b.assumeYes && !b.confirm() {
		b.log.Info("bootstrap cancelled by user")
		return 0, nil
	}

	switch action {
	case BootstrapUpload:
		if _, err := b.restorer.Upload(ctx); err != nil {
			return 0, fmt.Errorf("executing bootstrap: %w", err)
		}
	case BootstrapRestore:
		if err := b.restorer.Restore(ctx); err != nil {
			return 0, fmt.Errorf("executing bootstrap: %w", err)
		}
	}

	b.log.Info("bootstrap complete", "action", action)
	return action, nil
}

// countBookmarks counts non-container nodes per container.
func countBookmarks(bookmarks []*model.Bookmark) map[model.Container]int {
	counts := make(map[model.Container]int)
	for _, c := range bookmarks {
		model.EachBookmark(c.Children, func(*model.Bookmark) { counts[model.Container(c.Title)]++ })
	}
	return counts
}

func (b *Bootstrap) printSummary(action BootstrapAction, local, synced []*model.Bookmark) {
	localCounts, syncedCounts := countBookmarks(local), countBookmarks(synced)

	_, _ = fmt.Fprintf(b.writer, "\n--- First-Run Bootstrap Summary ---\n\n")
	_, _ = fmt.Fprintf(b.writer, "%-10s %8s %8s\n", "Container", "Native", "Synced")
	for _, c := range model.Containers {
		_, _ = fmt.Fprintf(b.writer, "%-10s %8d %8d\n", c, localCounts[c], syncedCounts[c])
	}
	_, _ = fmt.Fprintln(b.writer)

	switch action {
	case BootstrapUpload:
		_, _ = fmt.Fprintf(b.writer, "The remote store is empty: native bookmarks will be uploaded.\n")
	case BootstrapRestore:
		_, _ = fmt.Fprintf(b.writer, "A synced tree exists: native bookmarks will be REPLACED by it.\n")
	}
}

// confirm reads a y/n response from the reader.
func (b *Bootstrap) confirm() bool {
	_, _ = fmt.Fprintf(b.writer, "Proceed? [y/N] ")
	scanner := bufio.NewScanner(b.reader)
	if scanner.Scan() {
		answer := strings.TrimSpace(strings.ToLower(scanner.Text()))
		return answer == "y" || answer == "yes"
	}
	return false
}
