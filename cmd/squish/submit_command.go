package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"squish/internal/ipc"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var priority int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "submit <media-id> <preset>",
		Short: "Queue a transcode job",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Submit(args[0], args[1], priority)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, resp.Job)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued job %s (%s, preset %s, priority %d)\n",
					shortID(resp.Job.ID), resp.Job.MediaTitle, resp.Job.Preset, resp.Job.Priority)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&priority, "priority", "p", 0, "Job priority (higher runs first)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON output")
	return cmd
}
