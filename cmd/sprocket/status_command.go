package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"sprocket/internal/queue"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and queue status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			apiClient, err := ctx.apiClient()
			if err != nil {
				return err
			}
			status, err := apiClient.Status(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			running := "stopped"
			if status.Running {
				running = "running"
			}
			fmt.Fprintf(out, "Daemon:  %s\n", running)
			fmt.Fprintf(out, "Workers: %d (%d busy)\n", status.Stats.Workers, status.Stats.RunningCount)
			fmt.Fprintf(out, "Queue:   %d waiting\n", status.Stats.QueueDepth)
			fmt.Fprintln(out)

			rows := make([][]string, 0, len(status.Stats.CountsByStatus))
			for _, st := range queue.AllStatuses() {
				rows = append(rows, []string{
					titleCaser.String(string(st)),
					strconv.Itoa(status.Stats.CountsByStatus[string(st)]),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Status", "Jobs"},
				rows,
				[]columnAlignment{alignLeft, alignRight},
			))
			return nil
		},
	}
}
