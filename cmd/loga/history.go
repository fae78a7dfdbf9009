package main

import (
	"fmt"

	"github.com/4thel00z/loga/internal"
	"github.com/spf13/cobra"
)

func NewHistoryCmd(svc func() *internal.HistoryService) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show applied mutations",
		Long:  `Show the commit history of the evolution repository.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			oneline, _ := cmd.Flags().GetBool("oneline")
			asJSON, _ := cmd.Flags().GetBool("json")

			commits, err := svc().Log(cmd.Context(), limit, scopeHint(cmd))
			if err != nil {
				return fmt.Errorf("get history: %w", err)
			}

			if asJSON {
				return outputJSON(cmd, commits)
			}

			for _, c := range commits {
				if oneline {
					fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", c.Hash[:7], c.Message)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "commit %s\n", c.Hash)
					fmt.Fprintf(cmd.OutOrStdout(), "Author: %s\n", c.Author)
					fmt.Fprintf(cmd.OutOrStdout(), "Date:   %s\n\n", c.Timestamp.Format("Mon Jan 2 15:04:05 2006 -0700"))
					fmt.Fprintf(cmd.OutOrStdout(), "    %s\n\n", c.Message)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntP("limit", "n", 10, "Limit number of commits")
	cmd.Flags().Bool("oneline", false, "Show each commit on one line")
	return cmd
}
