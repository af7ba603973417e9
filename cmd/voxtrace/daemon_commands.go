package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"voxtrace/internal/daemonrun"
	"voxtrace/internal/ipc"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Daemon process management",
	}

	var logLevel string
	var development bool
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the voxtrace daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:    logLevel,
				Development: development,
			})
		},
	}
	runCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&development, "development", false, "Enable development logging")

	daemonCmd.AddCommand(runCmd)
	return daemonCmd
}

func newStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the voxtrace daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Shutdown()
				if err != nil {
					return err
				}
				if resp.Stopping {
					fmt.Fprintln(cmd.OutOrStdout(), "Daemon stopping")
				}
				return nil
			})
		},
	}
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and job status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				status, err := client.Status()
				if err != nil {
					return err
				}

				stdout := cmd.OutOrStdout()
				fmt.Fprintf(stdout, "Daemon running: %s (pid %d)\n", yesNo(status.Running), status.PID)
				fmt.Fprintf(stdout, "Started at:    %s\n", status.StartedAt)
				fmt.Fprintf(stdout, "Socket:        %s\n", status.SocketPath)
				if status.ArchivePath != "" {
					fmt.Fprintf(stdout, "History db:    %s\n", status.ArchivePath)
				}

				if len(status.JobStats) == 0 {
					fmt.Fprintln(stdout, "No tracked jobs")
					return nil
				}

				states := make([]string, 0, len(status.JobStats))
				for state := range status.JobStats {
					states = append(states, state)
				}
				sort.Strings(states)
				rows := make([][]string, 0, len(states))
				for _, state := range states {
					rows = append(rows, []string{state, fmt.Sprintf("%d", status.JobStats[state])})
				}
				fmt.Fprintln(stdout)
				fmt.Fprintln(stdout, renderTable([]string{"State", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))

				if len(status.Pollers) > 0 {
					pollerRows := make([][]string, 0, len(status.Pollers))
					for _, p := range status.Pollers {
						pollerRows = append(pollerRows, []string{
							p.JobID,
							p.Phase,
							fmt.Sprintf("%d", p.RetryCount),
							fmt.Sprintf("%dms", p.NextDelayMS),
						})
					}
					fmt.Fprintln(stdout, renderTable(
						[]string{"Job", "Phase", "Retries", "Next Delay"},
						pollerRows,
						[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight},
					))
				}
				return nil
			})
		},
	}
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
