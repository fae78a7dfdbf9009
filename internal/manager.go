package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ManagerStats aggregates index and cache counters.
type ManagerStats struct {
	CoreItems    int    `json:"core_items" yaml:"core_items"`
	ArchiveItems int    `json:"archive_items" yaml:"archive_items"`
	CacheSize    int    `json:"cache_size" yaml:"cache_size"`
	CacheHits    uint64 `json:"cache_hits" yaml:"cache_hits"`
	CacheMisses  uint64 `json:"cache_misses" yaml:"cache_misses"`
	TotalSize    int64  `json:"total_size" yaml:"total_size"`
}

type ManagerOption func(*MemoryManager)

func WithManagerLogger(logger *zap.Logger) ManagerOption {
	return func(m *MemoryManager) {
		m.logger = orNop(logger)
	}
}

func WithManagerClock(now func() time.Time) ManagerOption {
	return func(m *MemoryManager) {
		m.now = now
	}
}

// WithIndexStore replaces the index backend selected by the config.
func WithIndexStore(idx IndexStore) ManagerOption {
	return func(m *MemoryManager) {
		m.index = idx
	}
}

// MemoryManager is a two-tier persistent artifact store fronted by a
// MemoryCache. The index is the source of truth for persisted keys; mu covers
// every read-modify-write-then-persist sequence on it.
type MemoryManager struct {
	mu         sync.Mutex
	cache      *MemoryCache[Artifact]
	index      IndexStore
	coreDir    string
	archiveDir string
	indexPath  string
	intentPath string
	logger     *zap.Logger
	now        func() time.Time
}

func OpenMemoryManager(cfg MemoryConfig, opts ...ManagerOption) (*MemoryManager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cache, err := NewMemoryCache[Artifact](cfg.CacheSize)
	if err != nil {
		return nil, err
	}

	m := &MemoryManager{
		cache:      cache,
		coreDir:    cfg.CoreDir,
		archiveDir: cfg.ArchiveDir,
		indexPath:  filepath.Clean(cfg.IndexPath),
		intentPath: filepath.Join(cfg.ArchiveDir, ".archive-intent.json"),
		logger:     zap.NewNop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	for _, dir := range []string{cfg.CoreDir, cfg.ArchiveDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	if m.index == nil {
		idx, err := openIndex(cfg)
		if err != nil {
			return nil, err
		}
		m.index = idx
	}

	if err := m.Recover(context.Background()); err != nil {
		_ = m.index.Close()
		return nil, fmt.Errorf("recover archive intent: %w", err)
	}

	return m, nil
}

func openIndex(cfg MemoryConfig) (IndexStore, error) {
	switch cfg.IndexBackend {
	case IndexBackendSQLite:
		return OpenSQLiteIndex(cfg.IndexPath)
	default:
		return OpenJSONIndex(cfg.IndexPath)
	}
}

// Store writes artifact to the cache and, when permanent, to the core tier.
// The cache write is not rolled back if persisting fails.
func (m *MemoryManager) Store(ctx context.Context, key string, artifact Artifact, permanent bool) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	path := m.corePath(key)
	if path == m.indexPath || path == m.intentPath {
		return fmt.Errorf("key %q collides with the index file: %w", key, ErrInvalidKey)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.cache.Put(key, artifact)
	if !permanent {
		m.logger.Debug("stored in cache", zap.String("key", key))
		return nil
	}
	if err := m.index.Reload(); err != nil {
		return m.fail("reload index", key, err)
	}

	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return m.fail("serialize", key, err)
	}
	if err := writeFileAtomic(path, data, 0644); err != nil {
		return m.fail("write", key, err)
	}

	rec := IndexRecord{
		Key:       key,
		Tier:      TierCore,
		Path:      path,
		Timestamp: m.now().UTC(),
		Size:      int64(len(data)),
	}
	if err := m.index.Put(rec); err != nil {
		return m.fail("index", key, err)
	}
	if err := m.index.Persist(); err != nil {
		return m.fail("persist index", key, err)
	}

	m.logger.Info("stored", zap.String("key", key), zap.Bool("permanent", true), zap.Int64("size", rec.Size))
	return nil
}

// Retrieve consults the cache, then the core tier (warming the cache), then the
// archive tier (without warming the cache).
func (m *MemoryManager) Retrieve(ctx context.Context, key string) (Artifact, error) {
	if v, ok := m.cache.Get(key); ok {
		m.logger.Debug("cache hit", zap.String("key", key))
		return v, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.index.Reload(); err != nil {
		return Artifact{}, m.fail("reload index", key, err)
	}
	if rec, ok, err := m.index.Get(key, TierCore); err != nil {
		return Artifact{}, m.fail("lookup", key, err)
	} else if ok {
		a, err := readArtifact(rec.Path)
		if err != nil {
			return Artifact{}, m.fail("read", key, err)
		}
		m.cache.Put(key, a)
		return a, nil
	}

	if rec, ok, err := m.index.Get(key, TierArchive); err != nil {
		return Artifact{}, m.fail("lookup", key, err)
	} else if ok {
		a, err := readArtifact(rec.Path)
		if err != nil {
			return Artifact{}, m.fail("read archive", key, err)
		}
		return a, nil
	}

	m.logger.Debug("not found", zap.String("key", key))
	return Artifact{}, ErrNotFound
}

// Archive moves a core-tier key into the archive tier. The move is bracketed
// by an intent file so Recover can finish or undo an interrupted archive.
func (m *MemoryManager) Archive(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.index.Reload(); err != nil {
		return m.fail("reload index", key, err)
	}

	rec, ok, err := m.index.Get(key, TierCore)
	if err != nil {
		return m.fail("lookup", key, err)
	}
	if !ok {
		m.logger.Warn("nothing to archive", zap.String("key", key))
		return ErrNotFound
	}

	now := m.now().UTC()
	intent := archiveIntent{
		Key:        key,
		Source:     rec.Path,
		Dest:       m.archivePath(key, now),
		Record:     rec,
		ArchivedAt: now,
	}
	if err := m.writeIntent(intent); err != nil {
		return m.fail("write intent", key, err)
	}

	if err := moveFile(intent.Source, intent.Dest); err != nil {
		_ = os.Remove(m.intentPath)
		return m.fail("move", key, err)
	}

	if err := m.finishArchive(intent); err != nil {
		return m.fail("finish archive", key, err)
	}

	m.logger.Info("archived", zap.String("key", key), zap.String("path", intent.Dest))
	return nil
}

// finishArchive applies the index side of an intent whose file move is done.
// It is idempotent so Recover can replay it.
func (m *MemoryManager) finishArchive(intent archiveIntent) error {
	prev, hadPrev, err := m.index.Get(intent.Key, TierArchive)
	if err != nil {
		return err
	}

	size := intent.Record.Size
	if info, err := os.Stat(intent.Dest); err == nil {
		size = info.Size()
	}
	archivedAt := intent.ArchivedAt
	if err := m.index.Put(IndexRecord{
		Key:        intent.Key,
		Tier:       TierArchive,
		Path:       intent.Dest,
		Timestamp:  intent.Record.Timestamp,
		Size:       size,
		ArchivedAt: &archivedAt,
	}); err != nil {
		return err
	}
	if err := m.index.Delete(intent.Key, TierCore); err != nil {
		return err
	}
	m.cache.Remove(intent.Key)

	if err := m.index.Persist(); err != nil {
		return err
	}
	if err := os.Remove(m.intentPath); err != nil && !os.IsNotExist(err) {
		return err
	}

	if hadPrev && prev.Path != intent.Dest {
		if err := os.Remove(prev.Path); err != nil && !os.IsNotExist(err) {
			m.logger.Warn("remove superseded archive file", zap.String("key", intent.Key), zap.Error(err))
		}
	}
	return nil
}

// Delete evicts key from the cache and removes its core-tier file and record.
// Archive-only keys report ErrNotFound.
func (m *MemoryManager) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cache.Remove(key)
	if err := m.index.Reload(); err != nil {
		return m.fail("reload index", key, err)
	}

	rec, ok, err := m.index.Get(key, TierCore)
	if err != nil {
		return m.fail("lookup", key, err)
	}
	if !ok {
		m.logger.Warn("nothing to delete", zap.String("key", key))
		return ErrNotFound
	}

	if err := os.Remove(rec.Path); err != nil && !os.IsNotExist(err) {
		return m.fail("remove", key, err)
	}
	if err := m.index.Delete(key, TierCore); err != nil {
		return m.fail("index", key, err)
	}
	if err := m.index.Persist(); err != nil {
		return m.fail("persist index", key, err)
	}

	m.logger.Info("deleted", zap.String("key", key))
	return nil
}

// ListKeys returns the sorted core-tier keys, optionally unioned with the
// archive-tier keys.
func (m *MemoryManager) ListKeys(ctx context.Context, includeArchived bool) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.index.Reload(); err != nil {
		return nil, fmt.Errorf("reload index: %w", err)
	}
	tiers := []Tier{TierCore}
	if includeArchived {
		tiers = append(tiers, TierArchive)
	}

	seen := make(map[string]struct{})
	keys := []string{}
	for _, tier := range tiers {
		recs, err := m.index.List(tier)
		if err != nil {
			return nil, fmt.Errorf("list %s keys: %w", tier, err)
		}
		for _, rec := range recs {
			if _, dup := seen[rec.Key]; dup {
				continue
			}
			seen[rec.Key] = struct{}{}
			keys = append(keys, rec.Key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *MemoryManager) Stats(ctx context.Context) (ManagerStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.index.Reload(); err != nil {
		return ManagerStats{}, fmt.Errorf("reload index: %w", err)
	}
	core, err := m.index.List(TierCore)
	if err != nil {
		return ManagerStats{}, fmt.Errorf("list core: %w", err)
	}
	archive, err := m.index.List(TierArchive)
	if err != nil {
		return ManagerStats{}, fmt.Errorf("list archive: %w", err)
	}

	cs := m.cache.Stats()
	stats := ManagerStats{
		CoreItems:    len(core),
		ArchiveItems: len(archive),
		CacheSize:    cs.Size,
		CacheHits:    cs.Hits,
		CacheMisses:  cs.Misses,
	}
	for _, rec := range core {
		stats.TotalSize += rec.Size
	}
	return stats, nil
}

func (m *MemoryManager) CacheStats() CacheStats {
	return m.cache.Stats()
}

// Cleanup clears the cache and re-persists the index.
func (m *MemoryManager) Cleanup(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cache.Clear()
	if err := m.index.Reload(); err != nil {
		return m.fail("reload index", "", err)
	}
	if err := m.index.Persist(); err != nil {
		return m.fail("persist index", "", err)
	}
	return nil
}

func (m *MemoryManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.index.Close()
}

func (m *MemoryManager) corePath(key string) string {
	return filepath.Join(m.coreDir, key+".json")
}

func (m *MemoryManager) archivePath(key string, at time.Time) string {
	return filepath.Join(m.archiveDir, fmt.Sprintf("%s_%s.json", key, at.Format("20060102_150405.000000000")))
}

func (m *MemoryManager) fail(op, key string, err error) error {
	serr := &StorageError{Op: op, Key: key, Err: err}
	m.logger.Error("memory operation failed", zap.String("op", op), zap.String("key", key), zap.Error(err))
	return serr
}

func readArtifact(path string) (Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Artifact{}, err
	}
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return Artifact{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return a, nil
}
