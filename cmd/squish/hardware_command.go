package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"squish/internal/ipc"
)

func newHardwareCommand(ctx *commandContext) *cobra.Command {
	var refresh bool
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "hardware",
		Short: "Show hardware acceleration capabilities",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				var report ipc.HardwareReport
				if refresh {
					resp, err := client.RefreshHardware()
					if err != nil {
						return err
					}
					report = resp.Report
				} else {
					resp, err := client.Hardware()
					if err != nil {
						return err
					}
					report = resp.Report
				}
				if jsonOut {
					return writeJSON(cmd, report)
				}
				out := cmd.OutOrStdout()
				if report.ProbedAt != "" {
					fmt.Fprintf(out, "Probed: %s\n", formatDisplayTime(report.ProbedAt))
				}
				rows := buildHardwareRows(report)
				if len(rows) == 0 {
					fmt.Fprintln(out, "No backends probed yet")
					return nil
				}
				fmt.Fprintln(out, renderTable([]string{"Backend", "Working", "Device", "Detail"}, rows, nil))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "Force a capability re-probe")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON output")
	return cmd
}
