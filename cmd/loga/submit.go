package main

import (
	"fmt"
	"strings"

	"github.com/4thel00z/loga/internal"
	"github.com/spf13/cobra"
)

func NewSubmitCmd(svc func() *internal.TaskService) *cobra.Command {
	return &cobra.Command{
		Use:   "submit <payload>",
		Short: "Submit a task",
		Long:  `Drop a task into the spool. A running scheduler picks it up on its next pass.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")

			task, path, err := svc().Submit(cmd.Context(), strings.Join(args, " "), scopeHint(cmd))
			if err != nil {
				return fmt.Errorf("submit task: %w", err)
			}

			if asJSON {
				return outputJSON(cmd, map[string]any{"task": task, "path": path})
			}
			fmt.Fprintln(cmd.OutOrStdout(), task.ID)
			return nil
		},
	}
}
