package internal

import (
	"context"
	"fmt"
)

// MemoryService handles memory operations against the manager of a resolved
// scope. Each call opens the manager and closes it when done.
type MemoryService struct {
	resolver   *ScopeResolver
	managerFor func(Scope) (*MemoryManager, error)
}

func NewMemoryService(
	resolver *ScopeResolver,
	managerFor func(Scope) (*MemoryManager, error),
) *MemoryService {
	return &MemoryService{
		resolver:   resolver,
		managerFor: managerFor,
	}
}

func (s *MemoryService) with(scopeHint string, fn func(*MemoryManager) error) error {
	scope := s.resolver.Resolve(scopeHint)
	m, err := s.managerFor(scope)
	if err != nil {
		return fmt.Errorf("open memory: %w", err)
	}
	defer m.Close()

	return fn(m)
}

func (s *MemoryService) Put(ctx context.Context, key, payload string, permanent bool, scopeHint string) (Artifact, error) {
	if err := ValidateKey(key); err != nil {
		return Artifact{}, err
	}

	a := NewArtifact(KindThought, payload)
	err := s.with(scopeHint, func(m *MemoryManager) error {
		return m.Store(ctx, key, a, permanent)
	})
	return a, err
}

func (s *MemoryService) Get(ctx context.Context, key, scopeHint string) (Artifact, error) {
	var a Artifact
	err := s.with(scopeHint, func(m *MemoryManager) error {
		var err error
		a, err = m.Retrieve(ctx, key)
		return err
	})
	return a, err
}

func (s *MemoryService) Archive(ctx context.Context, key, scopeHint string) error {
	return s.with(scopeHint, func(m *MemoryManager) error {
		return m.Archive(ctx, key)
	})
}

func (s *MemoryService) Delete(ctx context.Context, key, scopeHint string) error {
	return s.with(scopeHint, func(m *MemoryManager) error {
		return m.Delete(ctx, key)
	})
}

func (s *MemoryService) List(ctx context.Context, includeArchived bool, scopeHint string) ([]string, error) {
	var keys []string
	err := s.with(scopeHint, func(m *MemoryManager) error {
		var err error
		keys, err = m.ListKeys(ctx, includeArchived)
		return err
	})
	return keys, err
}

func (s *MemoryService) Stats(ctx context.Context, scopeHint string) (ManagerStats, error) {
	var stats ManagerStats
	err := s.with(scopeHint, func(m *MemoryManager) error {
		var err error
		stats, err = m.Stats(ctx)
		return err
	})
	return stats, err
}

func (s *MemoryService) Cleanup(ctx context.Context, scopeHint string) error {
	return s.with(scopeHint, func(m *MemoryManager) error {
		return m.Cleanup(ctx)
	})
}

// HistoryService reads the commit log of the evolution repository.
type HistoryService struct {
	resolver     *ScopeResolver
	evolutionFor func(Scope) (*GitEvolution, error)
}

func NewHistoryService(
	resolver *ScopeResolver,
	evolutionFor func(Scope) (*GitEvolution, error),
) *HistoryService {
	return &HistoryService{
		resolver:     resolver,
		evolutionFor: evolutionFor,
	}
}

func (s *HistoryService) Log(ctx context.Context, limit int, scopeHint string) ([]Commit, error) {
	scope := s.resolver.Resolve(scopeHint)
	evo, err := s.evolutionFor(scope)
	if err != nil {
		return nil, fmt.Errorf("open evolution repository: %w", err)
	}

	return evo.History(ctx, limit)
}

// TaskService drops tasks into the spool of a resolved scope, where a running
// scheduler picks them up.
type TaskService struct {
	resolver  *ScopeResolver
	configFor func(Scope) (*Config, error)
}

func NewTaskService(
	resolver *ScopeResolver,
	configFor func(Scope) (*Config, error),
) *TaskService {
	return &TaskService{
		resolver:  resolver,
		configFor: configFor,
	}
}

func (s *TaskService) Submit(ctx context.Context, payload, scopeHint string) (Task, string, error) {
	scope := s.resolver.Resolve(scopeHint)
	cfg, err := s.configFor(scope)
	if err != nil {
		return Task{}, "", fmt.Errorf("load config: %w", err)
	}

	task := NewTask(payload)
	path, err := WriteSpoolTask(cfg.Spool.Dir, task.ID, payload)
	if err != nil {
		return Task{}, "", err
	}
	return task, path, nil
}

// ManagerForScope opens the memory manager configured for scope.
func ManagerForScope(scope Scope) (*MemoryManager, error) {
	cfg, err := scope.Load()
	if err != nil {
		return nil, err
	}
	return OpenMemoryManager(cfg.Memory)
}

// EvolutionForScope opens the evolution repository configured for scope.
func EvolutionForScope(scope Scope) (*GitEvolution, error) {
	cfg, err := scope.Load()
	if err != nil {
		return nil, err
	}
	if cfg.Evolution.Backend != EvolutionGit {
		return nil, fmt.Errorf("evolution backend is %q, not %q", cfg.Evolution.Backend, EvolutionGit)
	}
	return OpenGitEvolution(cfg.Evolution)
}

func ConfigForScope(scope Scope) (*Config, error) {
	return scope.Load()
}
