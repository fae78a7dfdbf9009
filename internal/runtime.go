package internal

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const maxLoggedPayload = 120

// Runtime wires a scheduler to its generator, memory manager, optional
// evolution engine and task spool.
type Runtime struct {
	Scheduler *Scheduler
	Manager   *MemoryManager
	Spool     *TaskSpool
	Evolution *GitEvolution

	logger *zap.Logger
}

func NewRuntime(ctx context.Context, cfg *Config, logger *zap.Logger) (*Runtime, error) {
	logger = orNop(logger)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	gen, err := NewGenerator(ctx, cfg.Generator, logger.Named("generator"))
	if err != nil {
		return nil, err
	}

	mgr, err := OpenMemoryManager(cfg.Memory, WithManagerLogger(logger.Named("memory")))
	if err != nil {
		return nil, err
	}

	rt := &Runtime{Manager: mgr, logger: logger}
	opts := []SchedulerOption{
		WithLogger(logger.Named("scheduler")),
		WithMemory(mgr),
	}
	if cfg.Evolution.Backend == EvolutionGit {
		evo, err := OpenGitEvolution(cfg.Evolution, WithEvolutionLogger(logger.Named("evolution")))
		if err != nil {
			_ = mgr.Close()
			return nil, err
		}
		rt.Evolution = evo
		opts = append(opts, WithEvolution(evo))
	}
	rt.Scheduler = NewScheduler(cfg.Scheduler, gen, opts...)

	spool, err := NewTaskSpool(cfg.Spool, rt.Scheduler, logger.Named("spool"))
	if err != nil {
		_ = mgr.Close()
		return nil, err
	}
	rt.Spool = spool

	return rt, nil
}

// Run blocks until ctx is done or a component fails, then shuts everything
// down and closes the memory manager.
func (r *Runtime) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return r.Scheduler.Run(gctx)
	})
	g.Go(func() error {
		if err := r.Spool.Run(gctx); err != nil {
			return fmt.Errorf("spool: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		r.consume(gctx)
		return nil
	})

	err := g.Wait()
	return errors.Join(err, r.Manager.Close())
}

func (r *Runtime) consume(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case a := <-r.Scheduler.Results():
			payload := truncatePayload(a.Payload, maxLoggedPayload)
			r.logger.Info("artifact",
				zap.String("kind", string(a.Kind)),
				zap.String("id", a.ID),
				zap.String("payload", payload))
		}
	}
}

// truncatePayload shortens s to at most n bytes without splitting a rune.
func truncatePayload(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
