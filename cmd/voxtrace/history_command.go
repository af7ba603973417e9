package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"voxtrace/internal/ipc"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List archived terminal jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.History(limit)
				if err != nil {
					return err
				}
				if len(resp.Entries) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "History is empty")
					return nil
				}
				colorize := shouldColorize(cmd.OutOrStdout())
				rows := make([][]string, 0, len(resp.Entries))
				for _, entry := range resp.Entries {
					detail := entry.ErrorMessage
					if detail == "" && len(entry.Results) > 0 {
						detail = "results available"
					}
					rows = append(rows, []string{
						entry.JobID,
						renderState(entry.State, colorize),
						fmt.Sprintf("%d%%", entry.Progress),
						entry.ArchivedAt,
						detail,
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Job", "State", "Progress", "Archived", "Detail"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of entries to show")
	return cmd
}
