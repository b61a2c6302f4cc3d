package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"squish/internal/ipc"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				status, err := client.Status()
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, status)
				}

				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				state := "stopped"
				if status.Running {
					state = "running"
				}
				fmt.Fprintf(out, "Daemon:   %s (pid %d)\n", colorizeRunning(state, status.Running, colorize), status.PID)
				fmt.Fprintf(out, "Queue DB: %s\n", status.QueueDBPath)
				fmt.Fprintf(out, "Presets:  %v\n", status.Presets)

				if rows := buildStatsRows(status.QueueStats); len(rows) > 0 {
					fmt.Fprintln(out)
					fmt.Fprintln(out, renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
				} else {
					fmt.Fprintln(out, "Queue is empty")
				}

				if rows := buildHardwareRows(status.Hardware); len(rows) > 0 {
					fmt.Fprintln(out)
					fmt.Fprintln(out, renderTable([]string{"Backend", "Working", "Device", "Detail"}, rows, nil))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON output")
	return cmd
}
