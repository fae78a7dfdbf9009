package v1

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/4thel00z/loga/internal"
)

func setupClientTest(t *testing.T, opts ...Option) (*Client, string) {
	t.Helper()
	root := t.TempDir()

	client, err := New(append([]Option{WithRoot(root)}, opts...)...)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client, root
}

func TestClientStoreAndRetrieve(t *testing.T) {
	client, _ := setupClientTest(t)
	defer client.Close()

	ctx := context.Background()

	stored, err := client.Store(ctx, "test/key", "hello world", true)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if stored.Kind != "thought" {
		t.Errorf("kind = %q, want thought", stored.Kind)
	}

	got, err := client.Retrieve(ctx, "test/key")
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if got.Payload != "hello world" {
		t.Errorf("payload = %q, want %q", got.Payload, "hello world")
	}
	if got.ID != stored.ID {
		t.Errorf("id = %q, want %q", got.ID, stored.ID)
	}
}

func TestClientPersistsAcrossReopen(t *testing.T) {
	client, root := setupClientTest(t)
	ctx := context.Background()

	if _, err := client.Store(ctx, "kept", "durable", true); err != nil {
		t.Fatalf("store: %v", err)
	}
	if _, err := client.Store(ctx, "transient", "gone", false); err != nil {
		t.Fatalf("store: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := New(WithRoot(root))
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	if _, err := reopened.Retrieve(ctx, "kept"); err != nil {
		t.Errorf("retrieve kept: %v", err)
	}
	if _, err := reopened.Retrieve(ctx, "transient"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for transient key, got %v", err)
	}
}

func TestClientDelete(t *testing.T) {
	client, _ := setupClientTest(t)
	defer client.Close()

	ctx := context.Background()

	if _, err := client.Store(ctx, "to-delete", "bye", true); err != nil {
		t.Fatalf("store: %v", err)
	}
	if err := client.Delete(ctx, "to-delete"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := client.Retrieve(ctx, "to-delete"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestClientArchiveAndList(t *testing.T) {
	client, _ := setupClientTest(t, WithIndexBackend(internal.IndexBackendSQLite))
	defer client.Close()

	ctx := context.Background()

	for _, k := range []string{"b", "a", "c"} {
		if _, err := client.Store(ctx, k, "v-"+k, true); err != nil {
			t.Fatalf("store %s: %v", k, err)
		}
	}
	if err := client.Archive(ctx, "b"); err != nil {
		t.Fatalf("archive: %v", err)
	}

	core, err := client.List(ctx, false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(core) != 2 || core[0] != "a" || core[1] != "c" {
		t.Errorf("core keys = %v, want [a c]", core)
	}

	all, err := client.List(ctx, true)
	if err != nil {
		t.Fatalf("list archived: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("all keys = %v, want 3 keys", all)
	}

	got, err := client.Retrieve(ctx, "b")
	if err != nil {
		t.Fatalf("retrieve archived: %v", err)
	}
	if got.Payload != "v-b" {
		t.Errorf("payload = %q, want v-b", got.Payload)
	}

	stats, err := client.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.CoreItems != 2 || stats.ArchiveItems != 1 {
		t.Errorf("stats = %+v, want 2 core and 1 archive", stats)
	}
}

func TestClientInvalidKey(t *testing.T) {
	client, _ := setupClientTest(t)
	defer client.Close()

	if _, err := client.Store(context.Background(), "", "x", true); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("expected ErrInvalidKey, got %v", err)
	}
}

func TestClientRejectsBadCacheSize(t *testing.T) {
	root := t.TempDir()
	cfg := internal.DefaultConfig()
	cfg.Memory.CacheSize = -1
	if err := internal.SaveConfig(filepath.Join(root, internal.ConfigName), cfg); err != nil {
		t.Fatalf("save config: %v", err)
	}

	if _, err := New(WithRoot(root)); err == nil {
		t.Fatal("expected error for invalid cache size")
	}
}

func TestClientCreatesStorageDirs(t *testing.T) {
	client, root := setupClientTest(t, WithCacheSize(2))
	defer client.Close()

	for _, dir := range []string{"memory/core", "memory/archive"} {
		if _, err := os.Stat(filepath.Join(root, dir)); err != nil {
			t.Errorf("expected %s: %v", dir, err)
		}
	}
}
