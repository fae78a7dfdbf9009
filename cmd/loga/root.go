package main

import (
	"encoding/json"

	"github.com/4thel00z/loga/internal"
	"github.com/spf13/cobra"
)

func NewRootCmd(version string, a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "loga",
		Short:         "Autonomous artifact scheduler with tiered memory",
		Long:          `Run a pool of content workers and a task coordinator backed by a cached, archivable memory store.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	addPersistentFlags(rootCmd)

	if a != nil {
		addSubcommands(rootCmd, a)
	}

	return rootCmd
}

func addPersistentFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String("config", "", "Path to loga.yaml (overrides scope discovery)")
	cmd.PersistentFlags().String("scope", "", "Target scope (global|project)")
	cmd.PersistentFlags().Bool("json", false, "Output in JSON format")
}

func addSubcommands(root *cobra.Command, a *app) {
	mem := func() *internal.MemoryService { return a.memorySvc }
	hist := func() *internal.HistoryService { return a.historySvc }
	tasks := func() *internal.TaskService { return a.taskSvc }

	root.AddCommand(
		NewInitCmd(a.resolver),
		NewRunCmd(a.resolver),
		NewSubmitCmd(tasks),
		NewGetCmd(mem),
		NewPutCmd(mem),
		NewArchiveCmd(mem),
		NewDelCmd(mem),
		NewListCmd(mem),
		NewStatsCmd(mem),
		NewCleanupCmd(mem),
		NewHistoryCmd(hist),
	)
}

// scopeHint prefers an explicit --config path over --scope.
func scopeHint(cmd *cobra.Command) string {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		return path
	}
	hint, _ := cmd.Flags().GetString("scope")
	return hint
}

func outputJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
