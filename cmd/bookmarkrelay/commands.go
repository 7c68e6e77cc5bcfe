package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/njoerd114/bookmarkrelay/internal/config"
	"github.com/njoerd114/bookmarkrelay/internal/model"
	"github.com/njoerd114/bookmarkrelay/internal/setup"
	"github.com/njoerd114/bookmarkrelay/internal/state"
	syncp "github.com/njoerd114/bookmarkrelay/internal/sync"
)

var (
	opsPath    string
	yesConfirm bool
)

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Replace the synced tree with the native bookmarks",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			bookmarks, err := a.restorer.Upload(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Uploaded %d bookmark(s).\n", countNodes(bookmarks))
			return nil
		})
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Rebuild the native bookmarks from the synced tree",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			if err := a.restorer.Restore(ctx); err != nil {
				return err
			}
			if err := a.saveNative(); err != nil {
				return err
			}
			fmt.Println("Native bookmarks restored.")
			return nil
		})
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all native bookmarks and forget the id mappings",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			if err := a.restorer.Clear(ctx); err != nil {
				return err
			}
			if err := a.saveNative(); err != nil {
				return err
			}
			fmt.Println("Native bookmarks cleared.")
			return nil
		})
	},
}

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Apply native bookmark edits from a JSON-lines file and sync them",
	Long: `Replay applies native bookmark operations to the native profile, one JSON
object per line, and syncs the resulting changes into the synced tree.

Operations:
  {"op":"create","ref":"news","parent":"other","index":0,"title":"News"}
  {"op":"create","parent":"@news","title":"Go","url":"https://go.dev"}
  {"op":"move","id":"@news","parent":"toolbar","index":1}
  {"op":"update","id":"5","title":"Renamed"}
  {"op":"remove","id":"@news"}
  {"op":"visit","url":"https://go.dev"}

Ids are native ids, "@ref" names given by an earlier create, or "toolbar"
and "other". A visit makes the page active, so bookmarks added after it are
enriched with the page's title, description and keywords.

On first run the native and synced trees are linked first, by upload or
restore; pass --yes to skip the confirmation.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		f, err := os.Open(opsPath)
		if err != nil {
			return fmt.Errorf("opening ops file: %w", err)
		}
		defer f.Close()
		ops, err := readOps(f)
		if err != nil {
			return err
		}
		return withApp(func(ctx context.Context, a *app) error {
			return runReplay(ctx, a, ops)
		})
	},
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive first-run wizard",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runSetup()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show config and sync state",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runStatus()
	},
}

func init() {
	replayCmd.Flags().StringVar(&opsPath, "ops", "", "JSON-lines file of native operations")
	_ = replayCmd.MarkFlagRequired("ops")
	replayCmd.Flags().BoolVar(&yesConfirm, "yes", false, "Auto-confirm the first-run bootstrap (non-interactive)")

	rootCmd.AddCommand(setupCmd, uploadCmd, restoreCmd, clearCmd, replayCmd, statusCmd)
}

// withApp opens the app, runs fn with a signal-aware context and closes the
// app afterwards.
func withApp(fn func(ctx context.Context, a *app) error) error {
	logger := newLogger()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	a, err := openApp(ctx, logger)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(ctx, a)
}

func runReplay(ctx context.Context, a *app, ops []op) error {
	bootstrap := syncp.NewBootstrap(a.mapper, a.mat, a.restorer, a.log, os.Stdin, os.Stdout, yesConfirm)
	if _, err := bootstrap.Run(ctx); err != nil {
		return fmt.Errorf("first-run bootstrap: %w", err)
	}

	engine, proc := a.newEngine()
	a.tree.SetListener(engine.HandleEvent)
	defer a.tree.SetListener(nil)

	var total syncp.CycleStats
	var errs []error
	drain := func() {
		for proc.Len() > 0 && ctx.Err() == nil {
			stats, err := engine.Drain(ctx)
			total.Events += stats.Events
			total.Changes += stats.Changes
			total.Reordered += stats.Reordered
			total.Restored = total.Restored || stats.Restored
			if err != nil {
				a.log.Error("drain failed", "error", err)
				errs = append(errs, err)
			}
		}
	}

	r := newReplayer(a.tree, func(url string) {
		// Adds queued so far belong to the previous page.
		drain()
		a.fetcher.SetActiveURL(url)
	})
	for i, o := range ops {
		if err := r.apply(ctx, o); err != nil {
			errs = append(errs, fmt.Errorf("op %d (%s): %w", i+1, o.Op, err))
			break
		}
	}
	drain()

	if err := a.saveNative(); err != nil {
		errs = append(errs, err)
	}
	fmt.Printf("Replayed %d op(s): %d event(s), %d change(s) synced, %d container(s) reordered",
		len(ops), total.Events, total.Changes, total.Reordered)
	if total.Restored {
		fmt.Print(", native tree restored")
	}
	fmt.Println(".")
	return errors.Join(errs...)
}

// runSetup launches the interactive setup wizard.
func runSetup() error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("resolving home directory: %w", err)
	}
	wiz := setup.NewWizard(os.Stdin, os.Stdout, cfgPath, home, logger)
	_, err = wiz.Run(ctx)
	return err
}

// runStatus prints the current configuration and sync state.
func runStatus() error {
	fmt.Println("BookmarkRelay Status")
	fmt.Println("────────────────────")

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  Config:    %s (%v)\n", cfgPath, err)
		fmt.Println("\nRun 'bookmarkrelay setup' to get started.")
		return nil
	}
	fmt.Printf("  Config:    %s ✓\n", cfgPath)
	fmt.Printf("  Native:    %s\n", cfg.NativeBookmarks)
	fmt.Printf("  Toolbar:   synced=%v\n", cfg.SyncBookmarksToolbar())
	if cfg.Remote != nil {
		fmt.Printf("  Remote:    %s/%s\n", cfg.Remote.Endpoint, cfg.Remote.Bucket)
	} else {
		fmt.Printf("  Remote:    state DB\n")
	}

	dbPath := cfg.StateDB
	if dbPath == "" {
		dbPath, _ = state.DefaultDBPath()
	}
	info, err := os.Stat(dbPath)
	if err != nil {
		fmt.Printf("  State DB:  not found\n")
		return nil
	}
	fmt.Printf("  State DB:  %s (%s)\n", dbPath, humanSize(info.Size()))

	store, err := state.Open(dbPath)
	if err != nil {
		return fmt.Errorf("opening state DB at %q: %w", dbPath, err)
	}
	defer store.Close()

	ctx := context.Background()
	var mappings []model.IDMapping
	if _, err := state.GetJSON(ctx, store, state.KeyBookmarkIDMappings, &mappings); err != nil {
		return err
	}
	fmt.Printf("  Mappings:  %d\n", len(mappings))
	if cfg.Remote == nil {
		last, err := state.LastUpdated(ctx, store)
		if err != nil {
			return err
		}
		if last.IsZero() {
			fmt.Printf("  Synced:    never\n")
		} else {
			fmt.Printf("  Synced:    %s\n", last.Local().Format("2006-01-02 15:04:05"))
		}
	}
	return nil
}

func countNodes(bookmarks []*model.Bookmark) int {
	n := 0
	for _, c := range bookmarks {
		model.EachBookmark(c.Children, func(*model.Bookmark) { n++ })
	}
	return n
}

// humanSize returns a human-readable file size string.
func humanSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
