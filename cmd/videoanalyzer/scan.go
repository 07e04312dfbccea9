package main

import (
	"fmt"

	"github.com/bytePatrol/Media-Folder-Visualizer/internal/events"
	"github.com/bytePatrol/Media-Folder-Visualizer/internal/modules/scannermodule/scanner"
	"github.com/spf13/cobra"
)

func newScanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan <folder>",
		Short: "Scan a folder of video files into the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			a.scanner.Start()
			engine := a.scanner.Engine()

			done := make(chan scanner.Completion, 1)
			a.bus.Subscribe(events.EventFilter{Types: []events.EventType{
				events.EventScanCompleted, events.EventScanCancelled, events.EventScanFailed,
			}}, func(event events.Event) {
				total, _ := event.Data["total"].(int)
				processed, _ := event.Data["processed"].(int)
				state, _ := event.Data["state"].(string)
				select {
				case done <- scanner.Completion{Total: total, Processed: processed, State: scanner.State(state)}:
				default:
				}
			})

			a.bus.Subscribe(events.EventFilter{Types: []events.EventType{events.EventScanProgress}},
				func(event events.Event) {
					total, _ := event.Data["total"].(int)
					processed, _ := event.Data["processed"].(int)
					if total > 0 {
						fmt.Printf("\r%d/%d (%.1f%%)", processed, total, float64(processed)/float64(total)*100)
					}
				})

			if err := engine.StartScan(args[0]); err != nil {
				return err
			}

			select {
			case completion := <-done:
				fmt.Printf("\nScan %s: %d/%d files\n", completion.State, completion.Processed, completion.Total)
				return nil
			case <-cmd.Context().Done():
				fmt.Println("\nCancelling scan...")
				if err := engine.Cancel(); err != nil {
					return err
				}
				completion := <-done
				fmt.Printf("Scan %s: %d/%d files\n", completion.State, completion.Processed, completion.Total)
				return nil
			}
		},
	}
}
