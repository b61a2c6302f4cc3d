package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"squish/internal/ipc"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and manage transcode jobs",
	}

	jobsCmd.AddCommand(newJobsListCommand(ctx))
	jobsCmd.AddCommand(newJobsShowCommand(ctx))
	jobsCmd.AddCommand(newJobsCancelCommand(ctx))
	jobsCmd.AddCommand(newJobsRetryCommand(ctx))
	jobsCmd.AddCommand(newJobsReorderCommand(ctx))
	jobsCmd.AddCommand(newJobsPauseCommand(ctx))
	jobsCmd.AddCommand(newJobsResumeCommand(ctx))
	jobsCmd.AddCommand(newJobsClearCommand(ctx))
	jobsCmd.AddCommand(newJobsRemoveCommand(ctx))
	jobsCmd.AddCommand(newJobsWatchCommand(ctx))

	return jobsCmd
}

var jobTableHeaders = []string{"ID", "Media", "Preset", "Status", "Progress", "Path", "Priority", "Queued"}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.List(listStatuses)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, resp.Jobs)
				}
				if len(resp.Jobs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No jobs")
					return nil
				}
				table := renderTable(jobTableHeaders, buildJobRows(resp.Jobs),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignLeft})
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&listStatuses, "status", "s", nil, "Filter by job status (repeatable)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON output")
	return cmd
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show one job in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Describe(args[0])
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, resp.Job)
				}
				job := resp.Job
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Job:      %s\n", job.ID)
				fmt.Fprintf(out, "Media:    %s (%s)\n", job.MediaTitle, job.MediaID)
				fmt.Fprintf(out, "Preset:   %s\n", job.Preset)
				fmt.Fprintf(out, "Status:   %s\n", formatStatusLabel(job.Status))
				fmt.Fprintf(out, "Progress: %s\n", formatProgress(job.Status, job.Progress))
				fmt.Fprintf(out, "Priority: %d\n", job.Priority)
				fmt.Fprintf(out, "Retries:  %d\n", job.RetryCount)
				if job.ChosenPath != "" {
					fmt.Fprintf(out, "Path:     %s\n", job.ChosenPath)
				}
				if job.OutputPath != "" {
					fmt.Fprintf(out, "Output:   %s\n", job.OutputPath)
				}
				if job.ErrorMessage != "" {
					fmt.Fprintf(out, "Error:    %s\n", job.ErrorMessage)
				}
				fmt.Fprintf(out, "Queued:   %s\n", formatDisplayTime(job.QueuedAt))
				if job.StartedAt != "" {
					fmt.Fprintf(out, "Started:  %s\n", formatDisplayTime(job.StartedAt))
				}
				if job.EndedAt != "" {
					fmt.Fprintf(out, "Ended:    %s\n", formatDisplayTime(job.EndedAt))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON output")
	return cmd
}

func newJobsCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a queued or running job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Cancel(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Job %s cancel requested (status %s)\n",
					shortID(resp.Job.ID), formatStatusLabel(resp.Job.Status))
				return nil
			})
		},
	}
}

func newJobsRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <job-id>",
		Short: "Requeue a failed job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Retry(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Job %s requeued (retry %d)\n",
					shortID(resp.Job.ID), resp.Job.RetryCount)
				return nil
			})
		},
	}
}

func newJobsReorderCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reorder <job-id> <priority>",
		Short: "Change a queued job's priority",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			priority, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid priority %q", args[1])
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Reorder(args[0], priority)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Job %s priority set to %d\n",
					shortID(resp.Job.ID), resp.Job.Priority)
				return nil
			})
		},
	}
}

func newJobsPauseCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "pause <job-id>",
		Short: "Suspend a running job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Pause(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Job %s paused\n", shortID(resp.Job.ID))
				return nil
			})
		},
	}
}

func newJobsResumeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resume <job-id>",
		Short: "Continue a paused job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Resume(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Job %s resumed\n", shortID(resp.Job.ID))
				return nil
			})
		},
	}
}

func newJobsClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove completed, failed, and cancelled jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ClearFinished()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d finished jobs\n", resp.Removed)
				return nil
			})
		},
	}
}

func newJobsWatchCommand(ctx *commandContext) *cobra.Command {
	var jobID string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow job status and progress events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				out := cmd.OutOrStdout()
				// Start at the current end of the journal so only new
				// activity is shown.
				resp, err := client.Events(0, 0)
				if err != nil {
					return err
				}
				cursor := resp.Cursor

				ticker := time.NewTicker(500 * time.Millisecond)
				defer ticker.Stop()
				for {
					select {
					case <-cmd.Context().Done():
						return nil
					case <-ticker.C:
					}

					resp, err := client.Events(cursor, 0)
					if err != nil {
						return err
					}
					cursor = resp.Cursor
					for _, event := range resp.Events {
						if jobID != "" && event.JobID != jobID {
							continue
						}
						fmt.Fprintf(out, "%s  %-9s %s %s\n",
							shortID(event.JobID),
							formatStatusLabel(event.Status),
							formatProgress(event.Status, event.Progress),
							event.ChosenPath)
					}
				}
			})
		},
	}

	cmd.Flags().StringVar(&jobID, "job", "", "Only show events for this job id")
	return cmd
}

func newJobsRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <job-id>",
		Short: "Delete a single job record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.RemoveJob(args[0])
				if err != nil {
					return err
				}
				if resp.Removed {
					fmt.Fprintf(cmd.OutOrStdout(), "Job %s removed\n", shortID(args[0]))
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Job %s not found\n", shortID(args[0]))
				}
				return nil
			})
		},
	}
}
