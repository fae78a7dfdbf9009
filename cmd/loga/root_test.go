package main

import (
	"testing"
)

func TestNewRootCmd(t *testing.T) {
	cmd := NewRootCmd("1.0.0", nil)

	if cmd == nil {
		t.Fatal("NewRootCmd returned nil")
	}

	if cmd.Use != "loga" {
		t.Errorf("expected Use='loga', got %q", cmd.Use)
	}

	if cmd.Version != "1.0.0" {
		t.Errorf("expected Version='1.0.0', got %q", cmd.Version)
	}
}

func TestRootCmdHasFlags(t *testing.T) {
	cmd := NewRootCmd("1.0.0", nil)

	for _, name := range []string{"config", "scope", "json"} {
		if cmd.PersistentFlags().Lookup(name) == nil {
			t.Errorf("expected persistent flag %q to exist", name)
		}
	}
}

func TestRootCmdSubcommands(t *testing.T) {
	cmd := NewRootCmd("dev", newApp())

	want := []string{"init", "run", "submit", "get", "put", "archive", "del", "list", "stats", "cleanup", "history"}
	for _, name := range want {
		found := false
		for _, sub := range cmd.Commands() {
			if sub.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("expected subcommand %q", name)
		}
	}
}

func TestPutDefaultsToPermanent(t *testing.T) {
	cmd := NewPutCmd(nil)

	f := cmd.Flags().Lookup("permanent")
	if f == nil {
		t.Fatal("expected --permanent flag")
	}
	if f.DefValue != "true" {
		t.Errorf("expected --permanent to default to true, got %q", f.DefValue)
	}
}

func TestHistoryLimitShorthand(t *testing.T) {
	cmd := NewHistoryCmd(nil)

	f := cmd.Flags().ShorthandLookup("n")
	if f == nil || f.Name != "limit" {
		t.Fatal("expected -n to be shorthand for --limit")
	}
}
