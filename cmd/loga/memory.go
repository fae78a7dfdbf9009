package main

import (
	"fmt"

	"github.com/4thel00z/loga/internal"
	"github.com/spf13/cobra"
)

func NewGetCmd(svc func() *internal.MemoryService) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Retrieve a stored artifact",
		Long:  `Retrieve an artifact from the core tier, falling back to the archive.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")

			a, err := svc().Get(cmd.Context(), args[0], scopeHint(cmd))
			if err != nil {
				return fmt.Errorf("get %s: %w", args[0], err)
			}

			if asJSON {
				return outputJSON(cmd, a)
			}
			fmt.Fprintln(cmd.OutOrStdout(), a.Payload)
			return nil
		},
	}
}

func NewPutCmd(svc func() *internal.MemoryService) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "put <key> <payload>",
		Short: "Store an artifact",
		Long:  `Store a thought artifact under key. Permanent artifacts are written to the core tier.`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			permanent, _ := cmd.Flags().GetBool("permanent")
			asJSON, _ := cmd.Flags().GetBool("json")

			a, err := svc().Put(cmd.Context(), args[0], args[1], permanent, scopeHint(cmd))
			if err != nil {
				return fmt.Errorf("put %s: %w", args[0], err)
			}

			if asJSON {
				return outputJSON(cmd, a)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().Bool("permanent", true, "Persist to the core tier")
	return cmd
}

func NewArchiveCmd(svc func() *internal.MemoryService) *cobra.Command {
	return &cobra.Command{
		Use:   "archive <key>",
		Short: "Move an artifact to the archive tier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := svc().Archive(cmd.Context(), args[0], scopeHint(cmd)); err != nil {
				return fmt.Errorf("archive %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Archived %s\n", args[0])
			return nil
		},
	}
}

func NewDelCmd(svc func() *internal.MemoryService) *cobra.Command {
	return &cobra.Command{
		Use:     "del <key>",
		Aliases: []string{"rm"},
		Short:   "Delete an artifact from the core tier",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := svc().Delete(cmd.Context(), args[0], scopeHint(cmd)); err != nil {
				return fmt.Errorf("delete %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}

func NewListCmd(svc func() *internal.MemoryService) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List stored keys",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			archived, _ := cmd.Flags().GetBool("archived")
			asJSON, _ := cmd.Flags().GetBool("json")

			keys, err := svc().List(cmd.Context(), archived, scopeHint(cmd))
			if err != nil {
				return fmt.Errorf("list: %w", err)
			}

			if asJSON {
				return outputJSON(cmd, keys)
			}
			for _, k := range keys {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
			return nil
		},
	}

	cmd.Flags().Bool("archived", false, "Include archived keys")
	return cmd
}

func NewStatsCmd(svc func() *internal.MemoryService) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show storage statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")

			stats, err := svc().Stats(cmd.Context(), scopeHint(cmd))
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}

			if asJSON {
				return outputJSON(cmd, stats)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "core items:    %d\n", stats.CoreItems)
			fmt.Fprintf(out, "archive items: %d\n", stats.ArchiveItems)
			fmt.Fprintf(out, "total size:    %d bytes\n", stats.TotalSize)
			return nil
		},
	}
}

func NewCleanupCmd(svc func() *internal.MemoryService) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Clear the cache and rewrite the index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := svc().Cleanup(cmd.Context(), scopeHint(cmd)); err != nil {
				return fmt.Errorf("cleanup: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Cleaned up")
			return nil
		},
	}
}
