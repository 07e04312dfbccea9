package main

import (
	"context"
	"fmt"

	"github.com/bytePatrol/Media-Folder-Visualizer/internal/logger"
	"github.com/bytePatrol/Media-Folder-Visualizer/internal/modules/videomodule"
	"github.com/bytePatrol/Media-Folder-Visualizer/internal/server"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			a.scanner.Start()

			// Offer crash recovery over the API; the client decides.
			if info, err := a.scanner.CheckRecovery(); err == nil && info != nil {
				fmt.Printf("Recoverable scan found: %s (%d files remaining, %.1f%% done)\n",
					info.FolderPath, info.RemainingFileCount, info.ProgressPercentage)
				fmt.Println("Accept via POST /api/scanner/recovery/accept or dismiss via /api/scanner/recovery/dismiss")
			}

			videos := videomodule.New(a.store, logger.Named("videos"))
			srv := server.New(a.cfg.Server, a.bus, a.metrics, logger.Named("server"),
				a.scanner, videos, a.dupes, a.integrity)

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Run() }()

			select {
			case err := <-errCh:
				return err
			case <-cmd.Context().Done():
				return srv.Shutdown(context.Background())
			}
		},
	}
}
