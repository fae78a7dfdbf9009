package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/4thel00z/loga/internal"
	"github.com/spf13/cobra"
)

func NewInitCmd(resolver *internal.ScopeResolver) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new loga store",
		Long:  `Create a .loga directory with a default configuration, storage tiers and a task spool.`,
		RunE:  makeInitRunner(resolver),
	}

	cmd.Flags().Bool("global", false, "Initialize global scope (~/.loga)")
	cmd.Flags().String("index-backend", internal.IndexBackendJSON, "Index backend (json|sqlite)")
	cmd.Flags().String("evolution-repo", "", "Enable git evolution on this repository path")
	cmd.Flags().String("source-ref", internal.DefaultSourceRef, "File in the evolution repository that mutations target")
	cmd.Flags().Bool("allow-mutation", false, "Let the evolution engine commit mutations")
	return cmd
}

func makeInitRunner(resolver *internal.ScopeResolver) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		isGlobal, _ := cmd.Flags().GetBool("global")
		backend, _ := cmd.Flags().GetString("index-backend")
		evoRepo, _ := cmd.Flags().GetString("evolution-repo")
		sourceRef, _ := cmd.Flags().GetString("source-ref")
		allowMutation, _ := cmd.Flags().GetBool("allow-mutation")

		var scope internal.Scope
		if isGlobal {
			scope = resolver.Global()
		} else {
			cwd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("get working directory: %w", err)
			}
			scope = internal.Scope{Type: internal.ScopeProject, Root: filepath.Join(cwd, internal.DirName)}
		}

		if _, err := os.Stat(scope.ConfigPath()); err == nil {
			return fmt.Errorf("already initialized at %s", scope.Root)
		}

		cfg := internal.DefaultConfig()
		cfg.Memory.IndexBackend = backend
		if backend == internal.IndexBackendSQLite {
			cfg.Memory.IndexPath = "memory/core/.index.db"
		}
		if evoRepo != "" {
			cfg.Evolution.Backend = internal.EvolutionGit
			cfg.Evolution.RepoPath = evoRepo
			cfg.Evolution.AllowMutation = allowMutation
			cfg.Scheduler.SourceRef = sourceRef
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := internal.SaveConfig(scope.ConfigPath(), cfg); err != nil {
			return fmt.Errorf("save config: %w", err)
		}

		resolved, err := scope.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		for _, dir := range []string{resolved.Memory.CoreDir, resolved.Memory.ArchiveDir, resolved.Spool.Dir} {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("create %s: %w", dir, err)
			}
		}
		if evoRepo != "" {
			if err := internal.SeedEvolution(cmd.Context(), resolved.Evolution, resolved.Scheduler.SourceRef); err != nil {
				return fmt.Errorf("seed evolution repository: %w", err)
			}
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Initialized loga store at %s\n", scope.Root)
		return nil
	}
}
