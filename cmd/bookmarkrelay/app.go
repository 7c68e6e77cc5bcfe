package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/njoerd114/bookmarkrelay/internal/config"
	"github.com/njoerd114/bookmarkrelay/internal/container"
	"github.com/njoerd114/bookmarkrelay/internal/idmap"
	"github.com/njoerd114/bookmarkrelay/internal/materialize"
	"github.com/njoerd114/bookmarkrelay/internal/metadata"
	"github.com/njoerd114/bookmarkrelay/internal/native"
	"github.com/njoerd114/bookmarkrelay/internal/remote"
	"github.com/njoerd114/bookmarkrelay/internal/state"
	syncp "github.com/njoerd114/bookmarkrelay/internal/sync"
	"github.com/njoerd114/bookmarkrelay/internal/telemetry"
)

// app holds the components shared by the subcommands.
type app struct {
	cfg    *config.Config
	log    *slog.Logger
	dbPath string

	store    *state.Store
	remote   state.KV
	tree     *native.Tree
	fetcher  *metadata.Fetcher
	mapper   *idmap.Mapper
	res      *container.Resolver
	mat      *materialize.Materializer
	restorer *syncp.Restorer

	closers []func()
}

// openApp loads the config, opens the stores and loads the native profile.
func openApp(ctx context.Context, logger *slog.Logger) (*app, error) {
	// --- Config --------------------------------------------------------------

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("loading config from %q: %w", cfgPath, err)
	}
	logger.Debug("config loaded",
		"native_bookmarks", cfg.NativeBookmarks,
		"sync_bookmarks_toolbar", cfg.SyncBookmarksToolbar(),
		"sync_delay", cfg.SyncDelay,
	)
	a := &app{cfg: cfg, log: logger}

	// --- Telemetry (optional) ------------------------------------------------

	if cfg.Telemetry != nil {
		shutdownTel, err := telemetry.Setup(ctx, telemetry.Config{
			OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
			Insecure:       cfg.Telemetry.Insecure,
			ServiceName:    cfg.Telemetry.ServiceName,
			ServiceVersion: version,
			Headers:        cfg.Telemetry.Headers,
		})
		if err != nil {
			logger.Error("telemetry setup failed, continuing without telemetry", "error", err)
		} else {
			logger.Info("telemetry enabled", "endpoint", cfg.Telemetry.OTLPEndpoint)
			a.closers = append(a.closers, func() {
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdownTel(flushCtx); err != nil {
					logger.Error("telemetry shutdown error", "error", err)
				}
			})
		}
	}

	// --- State DB ------------------------------------------------------------

	a.dbPath = cfg.StateDB
	if a.dbPath == "" {
		if a.dbPath, err = state.DefaultDBPath(); err != nil {
			a.close()
			return nil, fmt.Errorf("resolving state DB path: %w", err)
		}
	}
	a.store, err = state.Open(a.dbPath)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("opening state DB at %q: %w", a.dbPath, err)
	}
	a.closers = append(a.closers, func() {
		if closeErr := a.store.Close(); closeErr != nil {
			logger.Error("closing state DB", "error", closeErr)
		}
	})
	logger.Debug("state DB opened", "path", a.dbPath)

	// --- Remote store --------------------------------------------------------

	a.remote = a.store
	if r := cfg.Remote; r != nil {
		client, err := remote.NewClient(remote.Config{
			Endpoint:  r.Endpoint,
			AccessKey: r.AccessKey,
			SecretKey: r.SecretKey,
			UseSSL:    r.UseSSL,
			Bucket:    r.Bucket,
			Region:    r.Region,
			Prefix:    r.Prefix,
			Timeout:   r.Timeout,
		})
		if err != nil {
			a.close()
			return nil, fmt.Errorf("initialising remote store client: %w", err)
		}
		rs := remote.NewStore(client, r.Bucket, r.Prefix, logger)
		if err := rs.EnsureBucket(ctx, r.Region); err != nil {
			a.close()
			return nil, fmt.Errorf("preparing bucket %q: %w", r.Bucket, err)
		}
		a.remote = rs
		logger.Debug("remote store ready", "endpoint", r.Endpoint, "bucket", r.Bucket)
	}

	// --- Native profile ------------------------------------------------------

	a.tree = native.NewTree()
	if err := a.loadNative(); err != nil {
		a.close()
		return nil, err
	}

	a.fetcher = metadata.NewFetcher(nil, logger)
	a.mapper = idmap.New(a.store, logger)
	a.res = container.NewResolver(a.tree, logger)
	a.mat = materialize.New(a.tree, a.res, cfg, cfg.NewTabURL, logger)
	a.restorer = syncp.NewRestorer(a.remote, a.mapper, a.mat, logger)
	return a, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *app) loadNative() error {
	f, err := os.Open(a.cfg.NativeBookmarks)
	if errors.Is(err, fs.ErrNotExist) {
		a.log.Info("native bookmark file not found, starting empty", "path", a.cfg.NativeBookmarks)
		return nil
	}
	if err != nil {
		return fmt.Errorf("opening native bookmarks: %w", err)
	}
	defer f.Close()
	if err := a.tree.LoadHTML(f); err != nil {
		return fmt.Errorf("loading native bookmarks from %q: %w", a.cfg.NativeBookmarks, err)
	}
	return nil
}

// saveNative writes the native profile back, replacing the file atomically.
func (a *app) saveNative() error {
	path := a.cfg.NativeBookmarks
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating native bookmarks directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".bookmarks-*.html")
	if err != nil {
		return fmt.Errorf("saving native bookmarks: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := a.tree.WriteHTML(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("saving native bookmarks: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("saving native bookmarks: %w", err)
	}
	a.log.Debug("native bookmarks saved", "path", path)
	return nil
}

// newEngine wires the event queue processor and its engine over the app's
// components. Native events reach it once the caller registers
// engine.HandleEvent with the tree.
func (a *app) newEngine() (*syncp.Engine, *syncp.Processor) {
	normalizer := syncp.NewNormalizer(a.tree, a.mapper, a.res, a.fetcher, a.cfg.NewTabURL, a.log)
	pusher := syncp.NewPusher(a.remote, a.tree, a.mapper, a.res, a.cfg, a.cfg.NewTabURL, a.log)
	proc := syncp.NewProcessor(normalizer, pusher, a.res, a.restorer, a.cfg.SyncDelay, a.log)
	return syncp.NewEngine(proc, a.log), proc
}
