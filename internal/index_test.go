package internal

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type indexOpener func(t *testing.T, dir string) IndexStore

var indexBackends = map[string]indexOpener{
	"json": func(t *testing.T, dir string) IndexStore {
		idx, err := OpenJSONIndex(filepath.Join(dir, "index.json"))
		require.NoError(t, err)
		return idx
	},
	"sqlite": func(t *testing.T, dir string) IndexStore {
		idx, err := OpenSQLiteIndex(filepath.Join(dir, "index.db"))
		require.NoError(t, err)
		return idx
	},
}

func TestIndexStoreTiersAreIndependent(t *testing.T) {
	for name, open := range indexBackends {
		t.Run(name, func(t *testing.T) {
			idx := open(t, t.TempDir())
			defer idx.Close()

			ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
			require.NoError(t, idx.Put(IndexRecord{Key: "k", Tier: TierCore, Path: "/core/k.json", Timestamp: ts, Size: 10}))
			require.NoError(t, idx.Put(IndexRecord{Key: "k", Tier: TierArchive, Path: "/archive/k_1.json", Timestamp: ts, Size: 12, ArchivedAt: &ts}))

			core, ok, err := idx.Get("k", TierCore)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "/core/k.json", core.Path)
			assert.Equal(t, int64(10), core.Size)
			assert.True(t, ts.Equal(core.Timestamp))
			assert.Nil(t, core.ArchivedAt)

			arch, ok, err := idx.Get("k", TierArchive)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "/archive/k_1.json", arch.Path)
			require.NotNil(t, arch.ArchivedAt)

			require.NoError(t, idx.Delete("k", TierCore))
			_, ok, err = idx.Get("k", TierCore)
			require.NoError(t, err)
			assert.False(t, ok)

			_, ok, err = idx.Get("k", TierArchive)
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}

func TestIndexStorePutReplaces(t *testing.T) {
	for name, open := range indexBackends {
		t.Run(name, func(t *testing.T) {
			idx := open(t, t.TempDir())
			defer idx.Close()

			now := time.Now().UTC()
			require.NoError(t, idx.Put(IndexRecord{Key: "b", Tier: TierCore, Path: "p1", Timestamp: now, Size: 1}))
			require.NoError(t, idx.Put(IndexRecord{Key: "a", Tier: TierCore, Path: "p0", Timestamp: now, Size: 1}))
			require.NoError(t, idx.Put(IndexRecord{Key: "b", Tier: TierCore, Path: "p2", Timestamp: now, Size: 2}))

			recs, err := idx.List(TierCore)
			require.NoError(t, err)
			require.Len(t, recs, 2)
			assert.Equal(t, "a", recs[0].Key)
			assert.Equal(t, "b", recs[1].Key)
			assert.Equal(t, "p2", recs[1].Path)
			assert.Equal(t, TierCore, recs[1].Tier)
		})
	}
}

func TestIndexStorePersistSurvivesReopen(t *testing.T) {
	for name, open := range indexBackends {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			idx := open(t, dir)

			now := time.Now().UTC()
			require.NoError(t, idx.Put(IndexRecord{Key: "x", Tier: TierCore, Path: "px", Timestamp: now, Size: 3}))
			require.NoError(t, idx.Persist())
			require.NoError(t, idx.Close())

			reopened := open(t, dir)
			defer reopened.Close()

			rec, ok, err := reopened.Get("x", TierCore)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "x", rec.Key)
			assert.Equal(t, "px", rec.Path)
		})
	}
}

func TestOpenJSONIndexRejectsCorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := OpenJSONIndex(path)
	assert.Error(t, err)
}

func TestIndexStoreUnknownTier(t *testing.T) {
	idx, err := OpenJSONIndex(filepath.Join(t.TempDir(), "index.json"))
	require.NoError(t, err)

	_, _, err = idx.Get("k", Tier("cold"))
	assert.Error(t, err)
}

func TestJSONIndexReloadPicksUpExternalWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".index.json")
	first, err := OpenJSONIndex(path)
	require.NoError(t, err)
	second, err := OpenJSONIndex(path)
	require.NoError(t, err)

	require.NoError(t, first.Put(IndexRecord{Key: "k", Tier: TierCore, Path: "/tmp/k.json", Size: 3}))
	require.NoError(t, first.Persist())

	_, ok, err := second.Get("k", TierCore)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, second.Reload())
	rec, ok, err := second.Get("k", TierCore)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(3), rec.Size)

	require.NoError(t, second.Put(IndexRecord{Key: "pending", Tier: TierCore, Path: "/tmp/p.json"}))
	require.NoError(t, second.Reload())
	_, ok, err = second.Get("pending", TierCore)
	require.NoError(t, err)
	assert.True(t, ok, "reload without an external change keeps in-memory state")
}
