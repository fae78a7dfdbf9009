package internal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResolver(home, cwd string) *ScopeResolver {
	return &ScopeResolver{
		homeDir: home,
		workDir: func() (string, error) { return cwd, nil },
	}
}

func TestScopeResolverFindsProjectAbove(t *testing.T) {
	project := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(project, DirName), 0755))
	nested := filepath.Join(project, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0755))

	r := newTestResolver(t.TempDir(), nested)
	scope := r.Resolve("")

	assert.Equal(t, ScopeProject, scope.Type)
	assert.Equal(t, filepath.Join(project, DirName), scope.Root)
	assert.Equal(t, filepath.Join(project, DirName, ConfigName), scope.ConfigPath())
}

func TestScopeResolverFallsBackToGlobal(t *testing.T) {
	home := t.TempDir()
	r := newTestResolver(home, t.TempDir())

	scope := r.Resolve("")
	assert.Equal(t, ScopeGlobal, scope.Type)
	assert.Equal(t, filepath.Join(home, DirName), scope.Root)
}

func TestScopeResolverExplicitGlobal(t *testing.T) {
	project := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(project, DirName), 0755))

	home := t.TempDir()
	r := newTestResolver(home, project)

	assert.Equal(t, ScopeGlobal, r.Resolve("global").Type)
	assert.Equal(t, ScopeProject, r.Resolve("").Type)
}

func TestScopeLoadResolvesPaths(t *testing.T) {
	root := t.TempDir()
	scope := Scope{Type: ScopeProject, Root: root}

	cfg, err := scope.Load()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "memory", "core"), cfg.Memory.CoreDir)
	assert.Equal(t, filepath.Join(root, "memory", "core", ".index.json"), cfg.Memory.IndexPath)
}

func TestScopeResolverConfigPath(t *testing.T) {
	r := newTestResolver(t.TempDir(), t.TempDir())
	scope := r.Resolve("/srv/loga/loga.yaml")
	assert.Equal(t, "/srv/loga", scope.Root)
}

func TestFromConfigPath(t *testing.T) {
	scope := FromConfigPath("/etc/loga/loga.yaml")
	assert.Equal(t, "/etc/loga", scope.Root)
}
