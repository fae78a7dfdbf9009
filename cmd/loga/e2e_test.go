package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/4thel00z/loga/internal"
)

// setupE2E moves into a fresh project directory and initializes a store there.
func setupE2E(t *testing.T, initArgs ...string) (*app, string) {
	t.Helper()
	tmpDir := t.TempDir()

	origWd, _ := os.Getwd()
	t.Cleanup(func() { _ = os.Chdir(origWd) })
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("chdir: %v", err)
	}

	a := newApp()
	if _, err := execute(t, a, append([]string{"init"}, initArgs...)...); err != nil {
		t.Fatalf("init: %v", err)
	}
	return a, filepath.Join(tmpDir, internal.DirName)
}

func execute(t *testing.T, a *app, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd("test", a)
	root.SetArgs(args)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestE2EInitCreatesLayout(t *testing.T) {
	_, root := setupE2E(t)

	for _, p := range []string{
		filepath.Join(root, internal.ConfigName),
		filepath.Join(root, "memory", "core"),
		filepath.Join(root, "memory", "archive"),
		filepath.Join(root, "spool"),
	} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("expected %s to exist: %v", p, err)
		}
	}
}

func TestE2EInitTwiceFails(t *testing.T) {
	a, _ := setupE2E(t)

	if _, err := execute(t, a, "init"); err == nil {
		t.Fatal("expected second init to fail")
	}
}

func TestE2EMemoryWorkflow(t *testing.T) {
	a, _ := setupE2E(t)

	// 1. Store a few artifacts
	for _, tc := range []struct{ key, val string }{
		{"notes/first", "the first thought"},
		{"notes/second", "another thought"},
		{"plan", "keep going"},
	} {
		if _, err := execute(t, a, "put", tc.key, tc.val); err != nil {
			t.Fatalf("put %s: %v", tc.key, err)
		}
	}

	// 2. Read one back
	out, err := execute(t, a, "get", "notes/first")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if strings.TrimSpace(out) != "the first thought" {
		t.Errorf("expected payload, got %q", out)
	}

	// 3. Archive it and check it is still retrievable
	if _, err := execute(t, a, "archive", "notes/first"); err != nil {
		t.Fatalf("archive: %v", err)
	}
	out, err = execute(t, a, "get", "notes/first")
	if err != nil {
		t.Fatalf("get archived: %v", err)
	}
	if strings.TrimSpace(out) != "the first thought" {
		t.Errorf("expected archived payload, got %q", out)
	}

	// 4. Core listing no longer shows the archived key
	out, err = execute(t, a, "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if strings.Contains(out, "notes/first") {
		t.Errorf("archived key listed in core: %q", out)
	}
	out, err = execute(t, a, "list", "--archived")
	if err != nil {
		t.Fatalf("list --archived: %v", err)
	}
	if !strings.Contains(out, "notes/first") {
		t.Errorf("expected archived key in listing: %q", out)
	}

	// 5. Delete and confirm it is gone from core
	if _, err := execute(t, a, "del", "plan"); err != nil {
		t.Fatalf("del: %v", err)
	}
	if _, err := execute(t, a, "get", "plan"); err == nil {
		t.Error("expected get of deleted key to fail")
	}

	// 6. Stats as JSON
	out, err = execute(t, a, "stats", "--json")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	var stats internal.ManagerStats
	if err := json.Unmarshal([]byte(out), &stats); err != nil {
		t.Fatalf("decode stats: %v\n%s", err, out)
	}
	if stats.CoreItems != 1 || stats.ArchiveItems != 1 {
		t.Errorf("expected 1 core and 1 archive item, got %+v", stats)
	}

	if _, err := execute(t, a, "cleanup"); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
}

func TestE2EGetMissingFails(t *testing.T) {
	a, _ := setupE2E(t)

	if _, err := execute(t, a, "get", "nope"); err == nil {
		t.Fatal("expected error for missing key")
	}
}

func TestE2EPutRejectsBadKey(t *testing.T) {
	a, _ := setupE2E(t)

	if _, err := execute(t, a, "put", "../escape", "x"); err == nil {
		t.Fatal("expected invalid key error")
	}
}

func TestE2ESubmitWritesSpoolFile(t *testing.T) {
	a, root := setupE2E(t)

	out, err := execute(t, a, "submit", "summarize", "the", "day")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	id := strings.TrimSpace(out)
	if id == "" {
		t.Fatal("expected a task id")
	}

	data, err := os.ReadFile(filepath.Join(root, "spool", id+".yaml"))
	if err != nil {
		t.Fatalf("read spool file: %v", err)
	}
	if !strings.Contains(string(data), "summarize the day") {
		t.Errorf("unexpected spool file: %q", data)
	}
}

func TestE2EConfigFlag(t *testing.T) {
	a, root := setupE2E(t)

	// Run from elsewhere and point at the config explicitly.
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("chdir: %v", err)
	}

	cfg := filepath.Join(root, internal.ConfigName)
	if _, err := execute(t, a, "--config", cfg, "put", "k", "v"); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "memory", "core", "k.json")); err != nil {
		t.Errorf("expected artifact under config root: %v", err)
	}
}

func TestE2EHistoryWithoutEvolution(t *testing.T) {
	a, _ := setupE2E(t)

	if _, err := execute(t, a, "history"); err == nil {
		t.Fatal("expected history to fail without an evolution repository")
	}
}

func TestE2EHistoryWithEvolution(t *testing.T) {
	a, _ := setupE2E(t, "--evolution-repo", "source")

	out, err := execute(t, a, "history", "--json")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	var commits []internal.Commit
	if err := json.Unmarshal([]byte(out), &commits); err != nil {
		t.Fatalf("decode history: %v\n%s", err, out)
	}
	if len(commits) != 1 || commits[0].Message != "init: track "+internal.DefaultSourceRef {
		t.Errorf("expected the seed commit, got %+v", commits)
	}
}

func TestE2EInitEvolutionConfigIsRunnable(t *testing.T) {
	_, root := setupE2E(t, "--evolution-repo", "source", "--allow-mutation")

	cfg, err := internal.FromConfigPath(filepath.Join(root, internal.ConfigName)).Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("init wrote an invalid config: %v", err)
	}
	if cfg.Scheduler.SourceRef != internal.DefaultSourceRef {
		t.Errorf("source ref = %q, want %q", cfg.Scheduler.SourceRef, internal.DefaultSourceRef)
	}
	if _, err := os.Stat(filepath.Join(root, "source", internal.DefaultSourceRef)); err != nil {
		t.Errorf("expected seeded source file: %v", err)
	}
}

func TestE2ERunProcessesSpooledTask(t *testing.T) {
	a, root := setupE2E(t)

	cfgPath := filepath.Join(root, internal.ConfigName)
	cfg, err := internal.LoadConfig(cfgPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	cfg.Scheduler.Workers = 1
	cfg.Scheduler.CycleInterval = 10 * time.Millisecond
	cfg.Scheduler.WorkerInterval = 10 * time.Millisecond
	cfg.Generator.AcceptProbability = 1
	cfg.Spool.Debounce = 10 * time.Millisecond
	cfg.Spool.RescanInterval = 20 * time.Millisecond
	cfg.Logging.Outputs = []string{filepath.Join(root, "logs", "loga.log")}
	if err := internal.SaveConfig(cfgPath, cfg); err != nil {
		t.Fatalf("save config: %v", err)
	}

	if _, err := execute(t, a, "submit", "reflect on this"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	root2 := NewRootCmd("test", a)
	root2.SetArgs([]string{"run"})
	if err := root2.ExecuteContext(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(root, "spool"))
	if err != nil {
		t.Fatalf("read spool: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected spool to be drained, found %d files", len(entries))
	}

	if _, err := os.Stat(filepath.Join(root, "logs", "metrics.yaml")); err != nil {
		t.Errorf("expected metrics to be written on stop: %v", err)
	}
}
