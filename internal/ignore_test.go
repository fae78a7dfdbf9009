package internal

import (
	"os"
	"path/filepath"
	"testing"
)

func TestIgnoreMatcherEmpty(t *testing.T) {
	tmpDir := t.TempDir()

	m, err := NewIgnoreMatcher(tmpDir, nil)
	if err != nil {
		t.Fatalf("new matcher: %v", err)
	}

	if m.Match(filepath.Join(tmpDir, "task.yaml")) {
		t.Error("empty ignore should not match anything")
	}
}

func TestIgnoreMatcherConfiguredPatterns(t *testing.T) {
	tmpDir := t.TempDir()

	m, err := NewIgnoreMatcher(tmpDir, []string{"*.tmp", ".*", "# not a pattern"})
	if err != nil {
		t.Fatalf("new matcher: %v", err)
	}

	cases := map[string]bool{
		"task.yaml":       false,
		"task.yaml.tmp":   true,
		".task.yaml.swp":  true,
		"# not a pattern": false,
	}
	for name, want := range cases {
		if got := m.Match(filepath.Join(tmpDir, name)); got != want {
			t.Errorf("Match(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestIgnoreMatcherFile(t *testing.T) {
	tmpDir := t.TempDir()
	content := "# drafts stay local\ndraft-*\n"
	if err := os.WriteFile(filepath.Join(tmpDir, IgnoreFilename), []byte(content), 0644); err != nil {
		t.Fatalf("write ignore file: %v", err)
	}

	m, err := NewIgnoreMatcher(tmpDir, nil)
	if err != nil {
		t.Fatalf("new matcher: %v", err)
	}

	if !m.Match(filepath.Join(tmpDir, "draft-1.yaml")) {
		t.Error("expected 'draft-*' to match 'draft-1.yaml'")
	}
	if m.Match(filepath.Join(tmpDir, "final.yaml")) {
		t.Error("expected 'final.yaml' not to be ignored")
	}
}

func TestIgnoreMatcherDir(t *testing.T) {
	tmpDir := t.TempDir()

	m, err := NewIgnoreMatcher(tmpDir, []string{"processed/"})
	if err != nil {
		t.Fatalf("new matcher: %v", err)
	}

	if !m.MatchDir(filepath.Join(tmpDir, "processed")) {
		t.Error("expected directory pattern to match")
	}
	if m.Match(filepath.Join(tmpDir, "processed")) {
		t.Error("directory pattern should not match a file")
	}
}
