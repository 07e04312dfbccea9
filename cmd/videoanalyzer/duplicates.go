package main

import (
	"fmt"

	"github.com/bytePatrol/Media-Folder-Visualizer/internal/modules/dupemodule"
	"github.com/bytePatrol/Media-Folder-Visualizer/internal/utils"
	"github.com/spf13/cobra"
)

func newDuplicatesCmd() *cobra.Command {
	var method string
	cmd := &cobra.Command{
		Use:   "duplicates",
		Short: "Find duplicate videos in the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			groups, err := a.dupes.DetectAll(dupemodule.Method(method))
			if err != nil {
				return err
			}

			if len(groups) == 0 {
				fmt.Println("No duplicates found.")
				return nil
			}

			var totalSavings uint64
			for i, group := range groups {
				fmt.Printf("Group %d (%s, confidence %.2f, %s reclaimable):\n",
					i+1, group.MatchType, group.Confidence, utils.FormatBytes(group.PotentialSavings()))
				for _, file := range group.Files {
					fmt.Printf("  %s (%s)\n", file.FilePath, utils.FormatBytes(file.FileSize))
				}
				totalSavings += group.PotentialSavings()
			}
			fmt.Printf("%d groups, %s reclaimable in total\n", len(groups), utils.FormatBytes(totalSavings))
			return nil
		},
	}
	cmd.Flags().StringVarP(&method, "method", "m", string(dupemodule.MethodFuzzy),
		"Detection method: fuzzy, partial_hash, or full_hash")
	return cmd
}
