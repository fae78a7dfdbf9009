package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/filesystem"
	"github.com/sergi/go-diff/diffmatchpatch"
	"go.uber.org/zap"
)

const (
	DefaultBranch = "main"
	DefaultAuthor = "loga"
	DefaultEmail  = "loga@local"

	// DefaultSourceRef is the file init seeds in a new evolution repository.
	DefaultSourceRef = "agent.yaml"

	stampPrefix        = "# loga:evolved "
	defaultSeedContent = "name: loga\n"
)

type Commit struct {
	Hash      string    `json:"hash" yaml:"hash"`
	Message   string    `json:"message" yaml:"message"`
	Author    string    `json:"author" yaml:"author"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Parents   []string  `json:"parents,omitempty" yaml:"parents,omitempty"`
}

// Mutator derives new source content from an analysis. Returning the analyzed
// content unchanged means no mutation.
type Mutator interface {
	Mutate(ctx context.Context, a Analysis) (content, message string, err error)
}

type MutatorFunc func(ctx context.Context, a Analysis) (string, string, error)

func (f MutatorFunc) Mutate(ctx context.Context, a Analysis) (string, string, error) {
	return f(ctx, a)
}

// StampMutator replaces the trailing evolution stamp comment with a fresh one.
func StampMutator(now func() time.Time) Mutator {
	return MutatorFunc(func(ctx context.Context, a Analysis) (string, string, error) {
		lines := strings.Split(strings.TrimRight(a.Content, "\n"), "\n")
		kept := lines[:0]
		for _, l := range lines {
			if !strings.HasPrefix(l, stampPrefix) {
				kept = append(kept, l)
			}
		}
		stamp := now().UTC().Format(time.RFC3339)
		kept = append(kept, stampPrefix+stamp)
		content := strings.TrimLeft(strings.Join(kept, "\n"), "\n") + "\n"
		return content, fmt.Sprintf("evolve: stamp %s", a.Ref), nil
	})
}

type GitEvolutionOption func(*GitEvolution)

func WithMutator(m Mutator) GitEvolutionOption {
	return func(e *GitEvolution) {
		e.mutator = m
	}
}

func WithEvolutionLogger(logger *zap.Logger) GitEvolutionOption {
	return func(e *GitEvolution) {
		e.logger = orNop(logger)
	}
}

func WithEvolutionClock(now func() time.Time) GitEvolutionOption {
	return func(e *GitEvolution) {
		e.now = now
	}
}

var _ EvolutionEngine = (*GitEvolution)(nil)

// GitEvolution rewrites files inside a git worktree and commits every applied
// mutation, so each change can be inspected and reverted with git.
type GitEvolution struct {
	mu       sync.Mutex
	repo     *git.Repository
	worktree *git.Worktree
	fs       billy.Filesystem
	rootPath string

	allowMutation bool
	author        string
	email         string
	mutator       Mutator
	dmp           *diffmatchpatch.DiffMatchPatch
	logger        *zap.Logger
	now           func() time.Time
}

// InitEvolutionRepo creates an empty repository at path unless one exists.
func InitEvolutionRepo(path string) error {
	if err := os.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("create repository directory: %w", err)
	}

	storage := filesystem.NewStorage(osfs.New(filepath.Join(path, git.GitDirName)), cache.NewObjectLRUDefault())
	_, err := git.InitWithOptions(storage, osfs.New(path), git.InitOptions{
		DefaultBranch: plumbing.NewBranchReferenceName(DefaultBranch),
	})
	if err != nil && !errors.Is(err, git.ErrRepositoryAlreadyExists) {
		return fmt.Errorf("init repository: %w", err)
	}
	return nil
}

func OpenGitEvolution(cfg EvolutionConfig, opts ...GitEvolutionOption) (*GitEvolution, error) {
	if cfg.RepoPath == "" {
		return nil, &ConfigError{Field: "evolution.repo_path", Reason: "required for git backend"}
	}
	if err := InitEvolutionRepo(cfg.RepoPath); err != nil {
		return nil, err
	}

	wt := osfs.New(cfg.RepoPath)
	storage := filesystem.NewStorage(osfs.New(filepath.Join(cfg.RepoPath, git.GitDirName)), cache.NewObjectLRUDefault())

	repo, err := git.Open(storage, wt)
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("get worktree: %w", err)
	}

	e := &GitEvolution{
		repo:          repo,
		worktree:      worktree,
		fs:            wt,
		rootPath:      cfg.RepoPath,
		allowMutation: cfg.AllowMutation,
		author:        cfg.Author,
		email:         cfg.Email,
		dmp:           diffmatchpatch.New(),
		logger:        zap.NewNop(),
		now:           time.Now,
	}
	if e.author == "" {
		e.author = DefaultAuthor
	}
	if e.email == "" {
		e.email = DefaultEmail
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.mutator == nil {
		e.mutator = StampMutator(e.now)
	}

	return e, nil
}

func (e *GitEvolution) Analyze(ctx context.Context, ref string) (Analysis, error) {
	if !filepath.IsLocal(ref) {
		return Analysis{}, fmt.Errorf("source ref %q escapes the repository", ref)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	content, err := util.ReadFile(e.fs, ref)
	if err != nil {
		return Analysis{}, fmt.Errorf("read %s: %w", ref, err)
	}
	head, err := e.head()
	if err != nil {
		return Analysis{}, err
	}

	return Analysis{Ref: ref, Head: head, Content: string(content)}, nil
}

// Propose returns nil unless mutation is allowed and the mutator changes the
// content.
func (e *GitEvolution) Propose(ctx context.Context, a Analysis) (*Mutation, error) {
	if !e.allowMutation {
		e.logger.Debug("mutation not allowed", zap.String("ref", a.Ref))
		return nil, nil
	}

	content, message, err := e.mutator.Mutate(ctx, a)
	if err != nil {
		return nil, fmt.Errorf("mutate %s: %w", a.Ref, err)
	}
	if content == a.Content {
		return nil, nil
	}

	patches := e.dmp.PatchMake(a.Content, content)
	return &Mutation{
		Ref:         a.Ref,
		BaseHead:    a.Head,
		BaseContent: a.Content,
		Content:     content,
		Patch:       e.dmp.PatchToText(patches),
		Message:     message,
	}, nil
}

// Apply patches ref and commits the result. It fails with ErrStaleMutation if
// ref or HEAD moved since the mutation was proposed.
func (e *GitEvolution) Apply(ctx context.Context, ref string, m Mutation) (bool, error) {
	if !e.allowMutation {
		return false, nil
	}
	if ref != m.Ref {
		return false, fmt.Errorf("mutation targets %q, not %q", m.Ref, ref)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	current, err := util.ReadFile(e.fs, ref)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", ref, err)
	}
	head, err := e.head()
	if err != nil {
		return false, err
	}
	if head != m.BaseHead || (m.BaseContent != "" && string(current) != m.BaseContent) {
		return false, ErrStaleMutation
	}

	patches, err := e.dmp.PatchFromText(m.Patch)
	if err != nil {
		return false, fmt.Errorf("parse patch: %w", err)
	}
	next, applied := e.dmp.PatchApply(patches, string(current))
	for _, ok := range applied {
		if !ok {
			return false, ErrStaleMutation
		}
	}
	if m.Content != "" && next != m.Content {
		return false, ErrStaleMutation
	}

	if err := util.WriteFile(e.fs, ref, []byte(next), 0644); err != nil {
		return false, fmt.Errorf("write %s: %w", ref, err)
	}
	if _, err := e.worktree.Add(filepath.ToSlash(ref)); err != nil {
		return false, fmt.Errorf("stage %s: %w", ref, err)
	}

	hash, err := e.worktree.Commit(m.Message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  e.author,
			Email: e.email,
			When:  e.now(),
		},
	})
	if err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}

	e.logger.Info("mutation committed", zap.String("ref", ref), zap.String("hash", hash.String()))
	return true, nil
}

// History returns up to limit commits, newest first. A limit of zero returns
// all of them.
func (e *GitEvolution) History(ctx context.Context, limit int) ([]Commit, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.repo.Head(); errors.Is(err, plumbing.ErrReferenceNotFound) {
		return nil, nil
	}

	iter, err := e.repo.Log(&git.LogOptions{})
	if err != nil {
		return nil, fmt.Errorf("get log: %w", err)
	}
	defer iter.Close()

	var commits []Commit
	err = iter.ForEach(func(c *object.Commit) error {
		if limit > 0 && len(commits) >= limit {
			return io.EOF
		}
		commits = append(commits, toCommit(c))
		return nil
	})
	if err != nil && err != io.EOF {
		return nil, err
	}

	return commits, nil
}

// Track commits the current content of ref, creating a baseline for later
// mutations.
func (e *GitEvolution) Track(ctx context.Context, ref, message string) error {
	if !filepath.IsLocal(ref) {
		return fmt.Errorf("source ref %q escapes the repository", ref)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.worktree.Add(filepath.ToSlash(ref)); err != nil {
		return fmt.Errorf("stage %s: %w", ref, err)
	}
	_, err := e.worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  e.author,
			Email: e.email,
			When:  e.now(),
		},
	})
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// SeedSource writes ref with content if it does not exist and commits it, so
// analysis has a tracked file to start from. An already committed ref is left
// alone.
func (e *GitEvolution) SeedSource(ctx context.Context, ref, content string) error {
	if !filepath.IsLocal(ref) {
		return fmt.Errorf("source ref %q escapes the repository", ref)
	}

	e.mu.Lock()
	_, err := e.fs.Stat(ref)
	if os.IsNotExist(err) {
		err = util.WriteFile(e.fs, ref, []byte(content), 0644)
	}
	e.mu.Unlock()
	if err != nil {
		return fmt.Errorf("seed %s: %w", ref, err)
	}

	err = e.Track(ctx, ref, "init: track "+ref)
	if errors.Is(err, git.ErrEmptyCommit) {
		return nil
	}
	return err
}

// SeedEvolution prepares the repository of cfg for a scheduler whose source
// ref is ref.
func SeedEvolution(ctx context.Context, cfg EvolutionConfig, ref string) error {
	e, err := OpenGitEvolution(cfg)
	if err != nil {
		return err
	}
	return e.SeedSource(ctx, ref, defaultSeedContent)
}

func (e *GitEvolution) head() (string, error) {
	ref, err := e.repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get HEAD: %w", err)
	}
	return ref.Hash().String(), nil
}

func toCommit(c *object.Commit) Commit {
	var parents []string
	for _, p := range c.ParentHashes {
		parents = append(parents, p.String())
	}

	return Commit{
		Hash:      c.Hash.String(),
		Message:   strings.TrimSpace(c.Message),
		Author:    c.Author.Name,
		Timestamp: c.Author.When,
		Parents:   parents,
	}
}
