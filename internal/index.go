package internal

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"
)

type Tier string

const (
	TierCore    Tier = "core"
	TierArchive Tier = "archive"
)

// IndexRecord locates the serialized artifact persisted for a key in a tier.
type IndexRecord struct {
	Key        string     `json:"-"`
	Tier       Tier       `json:"tier"`
	Path       string     `json:"path"`
	Timestamp  time.Time  `json:"timestamp"`
	Size       int64      `json:"size"`
	ArchivedAt *time.Time `json:"archived_at,omitempty"`
}

// IndexStore is the authoritative mapping from key to storage location. A key
// has at most one record per tier.
type IndexStore interface {
	Get(key string, tier Tier) (IndexRecord, bool, error)
	Put(rec IndexRecord) error
	Delete(key string, tier Tier) error
	List(tier Tier) ([]IndexRecord, error)
	// Persist makes every prior mutation durable in one atomic step.
	Persist() error
	// Reload picks up changes persisted by another process since the last
	// load or persist.
	Reload() error
	Close() error
}

var _ IndexStore = (*JSONIndex)(nil)

type indexDocument struct {
	Core    map[string]IndexRecord `json:"core"`
	Archive map[string]IndexRecord `json:"archive"`
}

// JSONIndex keeps the index in memory and persists it as one JSON document.
// It is not safe for concurrent use; MemoryManager serializes access.
type JSONIndex struct {
	path    string
	doc     indexDocument
	modTime time.Time
	size    int64
}

func OpenJSONIndex(path string) (*JSONIndex, error) {
	idx := &JSONIndex{
		path: path,
		doc: indexDocument{
			Core:    make(map[string]IndexRecord),
			Archive: make(map[string]IndexRecord),
		},
	}
	if err := idx.load(); err != nil {
		return nil, err
	}
	return idx, nil
}

func (j *JSONIndex) load() error {
	data, err := os.ReadFile(j.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read index: %w", err)
	}

	var doc indexDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse index %s: %w", j.path, err)
	}
	if doc.Core == nil {
		doc.Core = make(map[string]IndexRecord)
	}
	if doc.Archive == nil {
		doc.Archive = make(map[string]IndexRecord)
	}
	for key, rec := range doc.Core {
		rec.Key, rec.Tier = key, TierCore
		doc.Core[key] = rec
	}
	for key, rec := range doc.Archive {
		rec.Key, rec.Tier = key, TierArchive
		doc.Archive[key] = rec
	}

	j.doc = doc
	j.remember()
	return nil
}

func (j *JSONIndex) remember() {
	if info, err := os.Stat(j.path); err == nil {
		j.modTime, j.size = info.ModTime(), info.Size()
	}
}

// Reload re-reads the document when the file changed since this index last
// read or wrote it.
func (j *JSONIndex) Reload() error {
	info, err := os.Stat(j.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat index: %w", err)
	}
	if info.ModTime().Equal(j.modTime) && info.Size() == j.size {
		return nil
	}
	return j.load()
}

func (j *JSONIndex) tier(t Tier) (map[string]IndexRecord, error) {
	switch t {
	case TierCore:
		return j.doc.Core, nil
	case TierArchive:
		return j.doc.Archive, nil
	default:
		return nil, fmt.Errorf("unknown tier %q", t)
	}
}

func (j *JSONIndex) Get(key string, tier Tier) (IndexRecord, bool, error) {
	m, err := j.tier(tier)
	if err != nil {
		return IndexRecord{}, false, err
	}
	rec, ok := m[key]
	return rec, ok, nil
}

func (j *JSONIndex) Put(rec IndexRecord) error {
	m, err := j.tier(rec.Tier)
	if err != nil {
		return err
	}
	m[rec.Key] = rec
	return nil
}

func (j *JSONIndex) Delete(key string, tier Tier) error {
	m, err := j.tier(tier)
	if err != nil {
		return err
	}
	delete(m, key)
	return nil
}

func (j *JSONIndex) List(tier Tier) ([]IndexRecord, error) {
	m, err := j.tier(tier)
	if err != nil {
		return nil, err
	}
	out := make([]IndexRecord, 0, len(m))
	for _, rec := range m {
		out = append(out, rec)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Key < out[b].Key })
	return out, nil
}

func (j *JSONIndex) Persist() error {
	data, err := json.MarshalIndent(j.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal index: %w", err)
	}
	if err := writeFileAtomic(j.path, data, 0o644); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	j.remember()
	return nil
}

func (j *JSONIndex) Close() error {
	return nil
}
