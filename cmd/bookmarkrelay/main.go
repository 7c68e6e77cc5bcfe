// BookmarkRelay keeps a browser's native bookmarks and a synced bookmark tree
// in step. The native profile is a Netscape bookmark HTML file; the synced
// tree lives in the local state DB or an S3-compatible bucket.
//
// Usage:
//
//	bookmarkrelay setup                              # interactive first-run wizard
//	bookmarkrelay upload [--config <path>]           # seed the synced tree from native bookmarks
//	bookmarkrelay restore [--config <path>]          # rebuild native bookmarks from the synced tree
//	bookmarkrelay replay --ops <file.jsonl> [--yes]  # apply native edits and sync them
//	bookmarkrelay clear                              # remove native bookmarks and id mappings
//	bookmarkrelay status                             # show config and sync state
//	bookmarkrelay version                            # print version
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/njoerd114/bookmarkrelay/internal/config"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

var (
	cfgPath string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "bookmarkrelay",
	Short: "Sync native browser bookmarks with a synced bookmark tree",
	Long: `BookmarkRelay mirrors edits made to native browser bookmarks into a
synced bookmark tree, and can rebuild native bookmarks from that tree.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Println("bookmarkrelay", version)
	},
}

func init() {
	defaultCfg, _ := config.DefaultPath()
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", defaultCfg, "path to config.yaml")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable debug logging")
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

// newLogger returns the stderr text logger, at debug level with --verbose.
func newLogger() *slog.Logger {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
	return logger
}
