package main

import (
	"fmt"

	"github.com/bytePatrol/Media-Folder-Visualizer/internal/modules/integritymodule"
	"github.com/spf13/cobra"
)

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Run a full decode pass over the catalog to detect corruption",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			corrupted := 0
			results, err := a.integrity.CheckCatalog(func(done, total int, result integritymodule.Result) {
				marker := "ok"
				if result.IsCorrupted {
					marker = "CORRUPTED"
					corrupted++
				}
				fmt.Printf("[%d/%d] %s %s\n", done, total, marker, result.FilePath)
				for _, cerr := range result.Errors {
					fmt.Printf("    %s: %s\n", cerr.Type, cerr.Message)
				}
			})
			if err != nil {
				return err
			}

			fmt.Printf("Checked %d files, %d corrupted\n", len(results), corrupted)
			return nil
		},
	}
}
