package main

import (
	"fmt"
	"time"

	jitterbug "github.com/lthibault/jitterbug/v2"
	"github.com/spf13/cobra"

	"voxtrace/internal/ipc"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch tracked jobs until they all reach a terminal state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				stdout := cmd.OutOrStdout()

				render := func() (bool, error) {
					resp, err := client.List(nil)
					if err != nil {
						return false, err
					}
					if len(resp.Jobs) == 0 {
						fmt.Fprintln(stdout, "No tracked jobs")
						return true, nil
					}
					colorize := shouldColorize(stdout)
					rows := make([][]string, 0, len(resp.Jobs))
					settled := true
					for _, job := range resp.Jobs {
						if !isTerminalState(job.State) {
							settled = false
						}
						rows = append(rows, []string{
							job.ID,
							renderState(job.State, colorize),
							fmt.Sprintf("%d%%", job.Progress),
							job.UpdatedAt,
						})
					}
					fmt.Fprintln(stdout, renderTable(
						[]string{"Job", "State", "Progress", "Updated"},
						rows,
						[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
					))
					return settled, nil
				}

				settled, err := render()
				if err != nil || settled {
					return err
				}

				// Jitter keeps many watchers from hitting the socket in lockstep.
				ticker := jitterbug.New(interval, &jitterbug.Norm{Stdev: 250 * time.Millisecond})
				defer ticker.Stop()

				for {
					select {
					case <-cmd.Context().Done():
						return cmd.Context().Err()
					case <-ticker.C:
						settled, err := render()
						if err != nil {
							return err
						}
						if settled {
							fmt.Fprintln(stdout, "All jobs settled")
							return nil
						}
					}
				}
			})
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "Refresh interval")
	return cmd
}

func isTerminalState(state string) bool {
	switch state {
	case "completed", "failed", "cancelled":
		return true
	}
	return false
}
