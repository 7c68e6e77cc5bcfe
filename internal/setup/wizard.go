package setup

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/njoerd114/bookmarkrelay/internal/config"
)

// Wizard guides the user through writing the config file.
type Wizard struct {
	prompt  *Prompter
	logger  *slog.Logger
	w       io.Writer
	cfgPath string
	home    string

	// ping checks a remote before it is saved. Replaced in tests.
	ping func(ctx context.Context, rc *config.RemoteConfig) (bool, error)
}

// NewWizard creates a Wizard that writes the config to cfgPath. home is used
// to look for exported bookmark files.
func NewWizard(r io.Reader, w io.Writer, cfgPath, home string, logger *slog.Logger) *Wizard {
	return &Wizard{
		prompt:  NewPrompter(r, w),
		logger:  logger,
		w:       w,
		cfgPath: cfgPath,
		home:    home,
		ping:    PingRemote,
	}
}

// Run executes the interactive setup. It returns the written config, or nil
// if the user kept an existing one.
func (wiz *Wizard) Run(ctx context.Context) (*config.Config, error) {
	fmt.Fprintf(wiz.w, "\nWelcome to BookmarkRelay Setup!\n\n")

	if _, statErr := os.Stat(wiz.cfgPath); statErr == nil {
		fmt.Fprintf(wiz.w, "  Existing config found at %s\n", wiz.cfgPath)
		if !wiz.prompt.Confirm("Overwrite existing configuration?", false) {
			fmt.Fprintf(wiz.w, "\n  Keeping existing config.\n")
			return nil, nil
		}
		fmt.Fprintf(wiz.w, "\n")
	}

	// Step 1: native profile.
	fmt.Fprintf(wiz.w, "Step 1/4: Native Bookmarks\n")
	native, err := wiz.chooseBookmarkFile()
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(wiz.w, "\n")

	// Step 2: sync options.
	fmt.Fprintf(wiz.w, "Step 2/4: Sync Options\n")
	toolbar := wiz.prompt.Confirm("Sync the bookmarks bar?", true)
	newTab := wiz.prompt.String("URL used for native separators", config.DefaultNewTabURL)
	delay := wiz.prompt.Duration("Delay before each sync pass (max 5s)", 100*time.Millisecond)
	fmt.Fprintf(wiz.w, "\n")

	// Step 3: remote.
	fmt.Fprintf(wiz.w, "Step 3/4: Remote Store\n")
	rc, err := wiz.chooseRemote(ctx)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(wiz.w, "\n")

	// Step 4: write config.
	fmt.Fprintf(wiz.w, "Step 4/4: Save Configuration\n")
	cfg := &config.Config{
		NativeBookmarks: native,
		ToolbarSync:     &toolbar,
		NewTabURL:       newTab,
		SyncDelay:       delay,
		Remote:          rc,
	}
	if err := cfg.Write(wiz.cfgPath); err != nil {
		return nil, err
	}
	wiz.logger.Debug("config written", "path", wiz.cfgPath)
	fmt.Fprintf(wiz.w, "  ✓ Config written to %s\n\n", wiz.cfgPath)
	fmt.Fprintf(wiz.w, "Next: run 'bookmarkrelay replay --ops <file>' to link and sync your bookmarks.\n\n")
	return cfg, nil
}

func (wiz *Wizard) chooseBookmarkFile() (string, error) {
	defaultPath := filepath.Join(wiz.home, ".local", "share", "bookmarkrelay", "bookmarks.html")

	found := DiscoverBookmarkFiles(wiz.home)
	if len(found) == 0 {
		fmt.Fprintf(wiz.w, "  No exported bookmark files found; a new one is created on first sync.\n")
		return ExpandHome(wiz.prompt.String("Bookmark HTML file", defaultPath), wiz.home), nil
	}

	options := append(append([]string{}, found...), "(another path)")
	idx, err := wiz.prompt.Select("Bookmark HTML file", options)
	if err != nil {
		return "", fmt.Errorf("selecting bookmark file: %w", err)
	}
	if idx < len(found) {
		return found[idx], nil
	}
	return ExpandHome(wiz.prompt.String("Bookmark HTML file", defaultPath), wiz.home), nil
}

func (wiz *Wizard) chooseRemote(ctx context.Context) (*config.RemoteConfig, error) {
	if !wiz.prompt.Confirm("Keep the synced tree in an S3-compatible bucket?", false) {
		fmt.Fprintf(wiz.w, "  Synced tree stays in the local state DB.\n")
		return nil, nil
	}

	rc := &config.RemoteConfig{
		Endpoint:  wiz.prompt.String("Endpoint", "localhost:9000"),
		Bucket:    wiz.prompt.String("Bucket", "bookmarkrelay"),
		AccessKey: wiz.prompt.String("Access key", ""),
		SecretKey: wiz.prompt.Secret("Secret key"),
		UseSSL:    wiz.prompt.Confirm("Use TLS?", true),
		Region:    wiz.prompt.Optional("Region"),
		Prefix:    wiz.prompt.Optional("Object prefix"),
		Timeout:   30 * time.Second,
	}

	fmt.Fprintf(wiz.w, "  Connecting to %s...", rc.Endpoint)
	exists, err := wiz.ping(ctx, rc)
	if err != nil {
		fmt.Fprintf(wiz.w, " ✗\n")
		wiz.logger.Warn("remote check failed", "endpoint", rc.Endpoint, "error", err)
		if !wiz.prompt.Confirm("Save the remote settings anyway?", false) {
			return nil, fmt.Errorf("cannot reach remote store: %w", err)
		}
		return rc, nil
	}
	fmt.Fprintf(wiz.w, " ✓\n")
	if !exists {
		fmt.Fprintf(wiz.w, "  Bucket %q is created on first run.\n", rc.Bucket)
	}
	return rc, nil
}
