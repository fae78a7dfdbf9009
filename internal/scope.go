package internal

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	DirName    = ".loga"
	ConfigName = "loga.yaml"
)

type ScopeType string

const (
	ScopeGlobal  ScopeType = "global"
	ScopeProject ScopeType = "project"
)

// Scope is a data root: every relative path in its config resolves against Root.
type Scope struct {
	Type ScopeType
	Root string
}

func (s Scope) ConfigPath() string {
	return filepath.Join(s.Root, ConfigName)
}

// Load reads the scope's config and resolves its relative paths.
func (s Scope) Load() (*Config, error) {
	cfg, err := LoadConfig(s.ConfigPath())
	if err != nil {
		return nil, err
	}
	cfg.Resolve(s.Root)
	return cfg, nil
}

type ScopeResolver struct {
	homeDir string
	workDir func() (string, error)
}

func NewScopeResolver() *ScopeResolver {
	home, _ := os.UserHomeDir()
	return &ScopeResolver{homeDir: home, workDir: os.Getwd}
}

func (r *ScopeResolver) Global() Scope {
	return Scope{Type: ScopeGlobal, Root: filepath.Join(r.homeDir, DirName)}
}

func (r *ScopeResolver) Project() (Scope, bool) {
	cwd, err := r.workDir()
	if err != nil {
		return Scope{}, false
	}
	return findProjectScope(cwd)
}

func findProjectScope(dir string) (Scope, bool) {
	for {
		root := filepath.Join(dir, DirName)
		info, err := os.Stat(root)
		if err == nil && info.IsDir() {
			return Scope{Type: ScopeProject, Root: root}, true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return Scope{}, false
		}
		dir = parent
	}
}

// Resolve picks the nearest project scope unless explicit is "global" or the
// path of a config file.
func (r *ScopeResolver) Resolve(explicit string) Scope {
	switch {
	case explicit == string(ScopeGlobal):
		return r.Global()
	case strings.HasSuffix(explicit, ".yaml"), strings.HasSuffix(explicit, ".yml"):
		return FromConfigPath(explicit)
	}
	if scope, ok := r.Project(); ok {
		return scope
	}
	return r.Global()
}

// FromConfigPath builds a scope rooted at the directory holding path.
func FromConfigPath(path string) Scope {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return Scope{Type: ScopeProject, Root: filepath.Dir(abs)}
}
