package main

import (
	"fmt"

	"github.com/4thel00z/loga/internal"
	"github.com/spf13/cobra"
)

func NewRunCmd(resolver *internal.ScopeResolver) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the scheduler",
		Long:  `Start the workers and the coordinator, watch the task spool and persist task results until interrupted.`,
		RunE:  makeRunRunner(resolver),
	}

	cmd.Flags().Int("workers", 0, "Override the configured worker count")
	cmd.Flags().Bool("manual", false, "Disable autonomous task intake")
	return cmd
}

func makeRunRunner(resolver *internal.ScopeResolver) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		workers, _ := cmd.Flags().GetInt("workers")
		manual, _ := cmd.Flags().GetBool("manual")

		scope := resolver.Resolve(scopeHint(cmd))
		cfg, err := scope.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if workers != 0 {
			cfg.Scheduler.Workers = workers
		}
		if manual {
			cfg.Scheduler.Autonomous = false
		}

		logger, err := internal.NewLogger(cfg.Logging)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		rt, err := internal.NewRuntime(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}

		return rt.Run(cmd.Context())
	}
}
