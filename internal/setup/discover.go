package setup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/njoerd114/bookmarkrelay/internal/config"
	"github.com/njoerd114/bookmarkrelay/internal/remote"
)

// bookmarkGlobs are the places, relative to the home directory, where
// exported bookmark files usually end up.
var bookmarkGlobs = []string{
	"bookmarks*.html",
	"Downloads/bookmarks*.html",
	"Documents/bookmarks*.html",
	"Desktop/bookmarks*.html",
	".local/share/bookmarkrelay/*.html",
}

// DiscoverBookmarkFiles returns existing bookmark HTML files under home,
// most recently modified first.
func DiscoverBookmarkFiles(home string) []string {
	type found struct {
		path string
		mod  time.Time
	}
	var files []found
	seen := make(map[string]bool)
	for _, pattern := range bookmarkGlobs {
		matches, _ := filepath.Glob(filepath.Join(home, pattern))
		for _, m := range matches {
			info, err := os.Stat(m)
			if err != nil || info.IsDir() || seen[m] {
				continue
			}
			seen[m] = true
			files = append(files, found{m, info.ModTime()})
		}
	}
	slices.SortStableFunc(files, func(a, b found) int { return b.mod.Compare(a.mod) })

	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.path
	}
	return paths
}

// ExpandHome replaces a leading "~/" with home.
func ExpandHome(path, home string) string {
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		return filepath.Join(home, rest)
	}
	return path
}

// PingRemote checks that the bucket is reachable with the given credentials.
// It reports whether the bucket already exists.
func PingRemote(ctx context.Context, rc *config.RemoteConfig) (bool, error) {
	client, err := remote.NewClient(remote.Config{
		Endpoint:  rc.Endpoint,
		AccessKey: rc.AccessKey,
		SecretKey: rc.SecretKey,
		UseSSL:    rc.UseSSL,
		Bucket:    rc.Bucket,
		Region:    rc.Region,
		Prefix:    rc.Prefix,
		Timeout:   rc.Timeout,
	})
	if err != nil {
		return false, fmt.Errorf("creating client: %w", err)
	}
	exists, err := client.BucketExists(ctx, rc.Bucket)
	if err != nil {
		return false, fmt.Errorf("connecting to %s: %w", rc.Endpoint, err)
	}
	return exists, nil
}
