package internal

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type SchedulerState int32

const (
	StateStopped SchedulerState = iota
	StateRunning
	StateStopping
)

func (s SchedulerState) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// ArtifactStore persists task results. *MemoryManager satisfies it.
type ArtifactStore interface {
	Store(ctx context.Context, key string, artifact Artifact, permanent bool) error
}

type SchedulerOption func(*Scheduler)

func WithEvolution(engine EvolutionEngine) SchedulerOption {
	return func(s *Scheduler) {
		s.evo = engine
	}
}

func WithMemory(store ArtifactStore) SchedulerOption {
	return func(s *Scheduler) {
		s.store = store
	}
}

func WithAcceptPolicy(p AcceptPolicy) SchedulerOption {
	return func(s *Scheduler) {
		s.accept = p
	}
}

func WithMutationPolicy(p MutationPolicy) SchedulerOption {
	return func(s *Scheduler) {
		s.mutation = p
	}
}

func WithLogger(logger *zap.Logger) SchedulerOption {
	return func(s *Scheduler) {
		s.logger = orNop(logger)
	}
}

// WithRand sets the source of dream rolls. It is called from every worker
// concurrently.
func WithRand(rnd func() float64) SchedulerOption {
	return func(s *Scheduler) {
		s.rnd = rnd
	}
}

func WithClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) {
		s.now = now
	}
}

type schedulerRun struct {
	cancel      context.CancelFunc
	workersDone chan struct{}
	coordDone   chan struct{}
	stopped     chan struct{}
}

// Scheduler runs a pool of producing workers and one coordinator that takes
// in submitted tasks.
//
// Results are delivered on a bounded channel; when it is full the oldest
// artifact is dropped so workers never block. Submit rejects new tasks with
// ErrQueueFull when the task queue is full.
type Scheduler struct {
	cfg      SchedulerConfig
	gen      Generator
	evo      EvolutionEngine
	store    ArtifactStore
	accept   AcceptPolicy
	mutation MutationPolicy
	logger   *zap.Logger
	rnd      func() float64
	now      func() time.Time

	state   atomic.Int32
	metrics Metrics
	results chan Artifact
	tasks   chan Task

	mu  sync.Mutex
	run *schedulerRun
}

func NewScheduler(cfg SchedulerConfig, gen Generator, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		cfg:      cfg,
		gen:      gen,
		accept:   generatorAcceptPolicy{gen: gen},
		mutation: capacityMutationPolicy,
		logger:   zap.NewNop(),
		rnd:      rand.Float64,
		now:      time.Now,
		results:  make(chan Artifact, max(cfg.ResultBuffer, 1)),
		tasks:    make(chan Task, max(cfg.TaskBuffer, 1)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Scheduler) State() SchedulerState {
	return SchedulerState(s.state.Load())
}

func (s *Scheduler) Results() <-chan Artifact {
	return s.results
}

func (s *Scheduler) Metrics() MetricsSnapshot {
	return s.metrics.Snapshot(s.now())
}

// Submit enqueues task for the coordinator without blocking.
func (s *Scheduler) Submit(task Task) error {
	select {
	case s.tasks <- task:
		s.logger.Debug("task submitted", zap.String("task", task.ID))
		return nil
	default:
		return ErrQueueFull
	}
}

// Run validates the configuration, starts the workers and runs the
// coordinator on the calling goroutine until Stop is called or ctx is done.
// An invalid configuration is reported as a *ConfigError before anything is
// started. When ctx ends the run, Run returns the shutdown error that Stop
// would have returned.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.cfg.Validate(); err != nil {
		return err
	}
	if s.gen == nil {
		return &ConfigError{Field: "generator", Reason: "required"}
	}

	runCtx, cancel := context.WithCancel(ctx)
	r := &schedulerRun{
		cancel:      cancel,
		workersDone: make(chan struct{}),
		coordDone:   make(chan struct{}),
		stopped:     make(chan struct{}),
	}

	s.mu.Lock()
	if s.State() != StateStopped {
		s.mu.Unlock()
		cancel()
		return ErrAlreadyRunning
	}
	s.run = r
	s.metrics.reset(s.now())
	s.state.Store(int32(StateRunning))
	s.mu.Unlock()

	g, gctx := errgroup.WithContext(runCtx)
	for i := 0; i < s.cfg.Workers; i++ {
		g.Go(func() error {
			s.worker(gctx, i)
			return nil
		})
	}
	go func() {
		_ = g.Wait()
		close(r.workersDone)
	}()

	s.logger.Info("scheduler started",
		zap.Int("workers", s.cfg.Workers),
		zap.Duration("cycle_interval", s.cfg.CycleInterval),
		zap.Bool("autonomous", s.cfg.Autonomous))

	s.coordinate(runCtx)
	close(r.coordDone)

	err := s.stopRun(r)
	<-r.stopped
	return err
}

// Stop cancels the run and waits up to the join timeout for the workers and
// the coordinator. The scheduler is Stopped when Stop returns, even if the
// returned error reports ErrJoinTimeout or a metrics write failure.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	r := s.run
	s.mu.Unlock()
	if r == nil {
		return nil
	}
	return s.stopRun(r)
}

// stopRun shuts down r only while it is the current run. A coordinator that
// outlived a timed-out Stop must not stop a later run.
func (s *Scheduler) stopRun(r *schedulerRun) error {
	s.mu.Lock()
	if s.run != r {
		s.mu.Unlock()
		return nil
	}
	if !s.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
		s.mu.Unlock()
		<-r.stopped
		return nil
	}
	s.mu.Unlock()

	s.logger.Info("scheduler stopping")
	r.cancel()

	var errs []error
	timer := time.NewTimer(s.cfg.JoinTimeout)
	defer timer.Stop()
	for _, done := range []chan struct{}{r.workersDone, r.coordDone} {
		select {
		case <-done:
		case <-timer.C:
			s.logger.Warn("join timed out, continuing shutdown",
				zap.Duration("timeout", s.cfg.JoinTimeout), zap.Error(ErrJoinTimeout))
			errs = append(errs, ErrJoinTimeout)
		}
		if len(errs) > 0 {
			break
		}
	}

	snap := s.metrics.Snapshot(s.now())
	if s.cfg.MetricsPath != "" {
		if err := AppendMetrics(s.cfg.MetricsPath, snap); err != nil {
			s.logger.Error("persist metrics", zap.Error(err))
			errs = append(errs, err)
		}
	}

	s.mu.Lock()
	s.state.Store(int32(StateStopped))
	close(r.stopped)
	s.mu.Unlock()

	s.logger.Info("scheduler stopped",
		zap.Uint64("processed", snap.Processed),
		zap.Uint64("mutation_attempts", snap.MutationAttempts),
		zap.Uint64("discoveries", snap.Discoveries),
		zap.Uint64("artifacts_dropped", snap.ArtifactsDropped))

	return errors.Join(errs...)
}

func (s *Scheduler) worker(ctx context.Context, id int) {
	logger := s.logger.With(zap.Int("worker", id))
	for ctx.Err() == nil {
		s.produce(ctx, logger)

		if s.cfg.WorkerInterval <= 0 {
			continue
		}
		t := time.NewTimer(s.cfg.WorkerInterval)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

// produce runs one worker iteration. Failures and panics end the iteration,
// never the worker.
func (s *Scheduler) produce(ctx context.Context, logger *zap.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("worker iteration panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()

	a, err := s.gen.Produce(ctx)
	if err != nil {
		if ctx.Err() == nil {
			logger.Warn("produce failed", zap.Error(err))
		}
	} else {
		s.publish(a)
	}

	if s.rnd() >= s.cfg.DreamProbability {
		return
	}
	dreams, err := s.gen.Dream(ctx)
	if err != nil {
		if ctx.Err() == nil {
			logger.Warn("dream failed", zap.Error(err))
		}
		return
	}
	for _, d := range dreams {
		s.publish(d)
	}
}

// publish delivers a without blocking, evicting the oldest queued artifact
// when the results channel is full.
func (s *Scheduler) publish(a Artifact) {
	for {
		select {
		case s.results <- a:
			return
		default:
		}
		select {
		case <-s.results:
			s.metrics.artifactsDropped.Add(1)
		default:
		}
	}
}

func (s *Scheduler) coordinate(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.CycleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cycle(ctx)
		}
	}
}

// cycle runs one coordinator step: reflect, maybe mutate, then take in at
// most one task.
func (s *Scheduler) cycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("coordinator cycle panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()

	delta, err := s.gen.Reflect(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn("reflect failed", zap.Error(err))
		}
		return
	}

	s.metrics.processed.Add(1)
	if delta.Discovery {
		s.metrics.discoveries.Add(1)
		s.logger.Info("discovery", zap.String("summary", delta.Summary))
	}
	if delta.Artifact != nil {
		s.publish(*delta.Artifact)
	}

	if s.evo != nil && s.mutation.ShouldAttemptMutation(delta) {
		s.evolve(ctx)
	}

	if s.cfg.Autonomous {
		s.intake(ctx)
	}
}

func (s *Scheduler) evolve(ctx context.Context) {
	ref := s.cfg.SourceRef
	analysis, err := s.evo.Analyze(ctx, ref)
	if err != nil {
		s.logger.Warn("analyze failed", zap.String("ref", ref), zap.Error(err))
		return
	}

	m, err := s.evo.Propose(ctx, analysis)
	if err != nil {
		s.logger.Warn("propose failed", zap.String("ref", ref), zap.Error(err))
		return
	}
	if m == nil {
		return
	}

	s.metrics.mutationAttempts.Add(1)
	ok, err := s.evo.Apply(ctx, ref, *m)
	switch {
	case err != nil:
		s.logger.Warn("mutation failed", zap.String("ref", ref), zap.Error(err))
	case !ok:
		s.logger.Info("mutation not applied", zap.String("ref", ref))
	default:
		s.logger.Info("mutation applied", zap.String("ref", ref), zap.String("message", m.Message))
	}
}

func (s *Scheduler) intake(ctx context.Context) {
	var task Task
	select {
	case task = <-s.tasks:
	default:
		return
	}

	logger := s.logger.With(zap.String("task", task.ID))
	ok, err := s.accept.Accept(ctx, task)
	if err != nil {
		s.metrics.tasksRejected.Add(1)
		logger.Warn("task rejected, policy failed", zap.Error(err))
		return
	}
	if !ok {
		s.metrics.tasksRejected.Add(1)
		logger.Info("task rejected")
		return
	}
	s.metrics.tasksAccepted.Add(1)

	a, err := s.gen.Produce(ctx)
	if err != nil {
		logger.Warn("task processing failed", zap.Error(err))
		return
	}
	result := NewTaskResult(task, a.Payload)
	s.publish(result)
	logger.Info("task processed", zap.String("artifact", result.ID))

	if s.store == nil || !s.cfg.PersistResults {
		return
	}
	if err := s.store.Store(ctx, result.ID, result, true); err != nil {
		logger.Warn("persist task result", zap.Error(err))
	}
}
