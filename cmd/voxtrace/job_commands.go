package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"voxtrace/internal/config"
	"voxtrace/internal/ipc"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "submit <recording>",
		Short: "Upload a recording and start tracking its analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return fmt.Errorf("resolve recording path: %w", err)
			}
			absolute, err := filepath.Abs(path)
			if err != nil {
				return fmt.Errorf("resolve recording path: %w", err)
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Submit(absolute)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Submitted %s as job %s\n", filepath.Base(absolute), resp.Job.ID)
				return nil
			})
		},
	}
}

func newTrackCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "track <job-id>",
		Short: "Start tracking an already-submitted analysis job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Track(args[0])
				if err != nil {
					return err
				}
				if resp.Created {
					fmt.Fprintf(cmd.OutOrStdout(), "Tracking job %s\n", resp.Job.ID)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Job %s already tracked (%s)\n", resp.Job.ID, resp.Job.State)
				}
				return nil
			})
		},
	}
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var states []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tracked jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.List(states)
				if err != nil {
					return err
				}
				if len(resp.Jobs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No tracked jobs")
					return nil
				}
				colorize := shouldColorize(cmd.OutOrStdout())
				rows := make([][]string, 0, len(resp.Jobs))
				for _, job := range resp.Jobs {
					rows = append(rows, []string{
						job.ID,
						renderState(job.State, colorize),
						fmt.Sprintf("%d%%", job.Progress),
						job.UpdatedAt,
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Job", "State", "Progress", "Updated"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&states, "state", nil, "Filter by lifecycle state (repeatable)")
	return cmd
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show details for a tracked job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Describe(args[0])
				if err != nil {
					return err
				}
				printJob(cmd, resp.Job)
				return nil
			})
		},
	}
}

func printJob(cmd *cobra.Command, job ipc.JobView) {
	stdout := cmd.OutOrStdout()
	fmt.Fprintf(stdout, "Job:      %s\n", job.ID)
	fmt.Fprintf(stdout, "State:    %s\n", job.State)
	fmt.Fprintf(stdout, "Progress: %d%%\n", job.Progress)
	fmt.Fprintf(stdout, "Created:  %s\n", job.CreatedAt)
	fmt.Fprintf(stdout, "Updated:  %s\n", job.UpdatedAt)
	if job.ErrorMessage != "" {
		fmt.Fprintf(stdout, "Error:    %s\n", job.ErrorMessage)
	}
	if len(job.Results) > 0 {
		fmt.Fprintf(stdout, "Results:\n%s\n", string(job.Results))
	}
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a tracked job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Cancel(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Job %s cancelled\n", resp.Job.ID)
				return nil
			})
		},
	}
}

func newPauseCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "pause <job-id>",
		Short: "Pause polling for a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if err := client.Pause(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Polling paused for job %s\n", args[0])
				return nil
			})
		},
	}
}

func newResumeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resume <job-id>",
		Short: "Resume polling for a paused job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if err := client.Resume(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Polling resumed for job %s\n", args[0])
				return nil
			})
		},
	}
}

func newRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <job-id>",
		Short: "Re-run a failed analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Retry(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Job %s queued for retry\n", resp.Job.ID)
				return nil
			})
		},
	}
}

func newRemoveCommand(ctx *commandContext) *cobra.Command {
	var purge bool

	cmd := &cobra.Command{
		Use:   "remove <job-id>",
		Short: "Stop tracking a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if err := client.Remove(args[0], purge); err != nil {
					return err
				}
				if purge {
					fmt.Fprintf(cmd.OutOrStdout(), "Job %s removed locally and from the analysis service\n", args[0])
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Job %s removed\n", args[0])
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&purge, "purge", false, "Also delete the analysis from the remote service")
	return cmd
}
