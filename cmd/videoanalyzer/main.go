package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var configPath string

func main() {
	// Optional .env for local development; absence is not an error.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "videoanalyzer: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "videoanalyzer",
		Short: "Catalog and analyze a folder of video files",
		Long: `VideoAnalyzer catalogs a directory tree of video files into a queryable local
library: it probes each file with ffprobe, normalizes the metadata (codec, HDR
format, immersive audio), and persists everything into a local SQLite catalog.
It can also verify file integrity with a full decode pass and find duplicates.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")
	cmd.AddCommand(
		newServeCmd(),
		newScanCmd(),
		newDuplicatesCmd(),
		newVerifyCmd(),
	)
	return cmd
}
