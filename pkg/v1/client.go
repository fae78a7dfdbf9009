package v1

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/4thel00z/loga/internal"
)

var (
	ErrNotFound   = internal.ErrNotFound
	ErrInvalidKey = internal.ErrInvalidKey
)

// Client provides programmatic access to a tiered artifact store.
type Client struct {
	mgr *internal.MemoryManager
}

// New opens the store of the resolved scope, or the one under WithRoot.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	var scope internal.Scope
	if cfg.root != "" {
		scope = internal.Scope{Type: internal.ScopeProject, Root: cfg.root}
	} else {
		scope = internal.NewScopeResolver().Resolve(cfg.scope)
	}

	conf, err := scope.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.cacheSize > 0 {
		conf.Memory.CacheSize = cfg.cacheSize
	}
	if cfg.indexBackend != "" {
		conf.Memory.IndexBackend = cfg.indexBackend
		if cfg.indexBackend == internal.IndexBackendSQLite && filepath.Ext(conf.Memory.IndexPath) == ".json" {
			conf.Memory.IndexPath = strings.TrimSuffix(conf.Memory.IndexPath, ".json") + ".db"
		}
	}

	mgr, err := internal.OpenMemoryManager(conf.Memory, internal.WithManagerLogger(cfg.logger))
	if err != nil {
		return nil, err
	}
	return &Client{mgr: mgr}, nil
}

// Store saves payload under key. Non-permanent artifacts only live in the
// cache and are lost on Close.
func (c *Client) Store(ctx context.Context, key, payload string, permanent bool) (Artifact, error) {
	if err := internal.ValidateKey(key); err != nil {
		return Artifact{}, err
	}
	a := internal.NewArtifact(internal.KindThought, payload)
	if err := c.mgr.Store(ctx, key, a, permanent); err != nil {
		return Artifact{}, fmt.Errorf("store: %w", err)
	}
	return fromInternal(a), nil
}

// Retrieve looks key up in the cache, the core tier and then the archive.
func (c *Client) Retrieve(ctx context.Context, key string) (Artifact, error) {
	a, err := c.mgr.Retrieve(ctx, key)
	if err != nil {
		return Artifact{}, err
	}
	return fromInternal(a), nil
}

func (c *Client) Archive(ctx context.Context, key string) error {
	if err := c.mgr.Archive(ctx, key); err != nil {
		return fmt.Errorf("archive: %w", err)
	}
	return nil
}

func (c *Client) Delete(ctx context.Context, key string) error {
	if err := c.mgr.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}

// List returns the stored keys, sorted.
func (c *Client) List(ctx context.Context, includeArchived bool) ([]string, error) {
	keys, err := c.mgr.ListKeys(ctx, includeArchived)
	if err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}
	return keys, nil
}

func (c *Client) Stats(ctx context.Context) (Stats, error) {
	s, err := c.mgr.Stats(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}
	return Stats{
		CoreItems:    s.CoreItems,
		ArchiveItems: s.ArchiveItems,
		CacheSize:    s.CacheSize,
		CacheHits:    s.CacheHits,
		CacheMisses:  s.CacheMisses,
		TotalSize:    s.TotalSize,
	}, nil
}

// Close releases any resources held by the client.
func (c *Client) Close() error {
	return c.mgr.Close()
}

func fromInternal(a internal.Artifact) Artifact {
	return Artifact{
		ID:        a.ID,
		Kind:      string(a.Kind),
		Payload:   a.Payload,
		TaskID:    a.TaskID,
		CreatedAt: a.CreatedAt,
	}
}
