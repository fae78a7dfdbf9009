package internal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// TaskSubmitter accepts tasks without blocking. *Scheduler satisfies it.
type TaskSubmitter interface {
	Submit(task Task) error
}

type spoolFile struct {
	Payload string `yaml:"payload"`
}

// TaskSpool turns YAML files dropped into a directory into submitted tasks.
// A file is removed once its task is accepted; when the queue is full it
// stays for the next pass.
type TaskSpool struct {
	dir      string
	debounce time.Duration
	rescan   time.Duration
	ignore   *IgnoreMatcher
	sink     TaskSubmitter
	logger   *zap.Logger
	now      func() time.Time
}

func NewTaskSpool(cfg SpoolConfig, sink TaskSubmitter, logger *zap.Logger) (*TaskSpool, error) {
	if cfg.Dir == "" {
		return nil, &ConfigError{Field: "spool.dir", Reason: "required"}
	}
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create spool directory: %w", err)
	}

	ignore, err := NewIgnoreMatcher(cfg.Dir, cfg.Ignore)
	if err != nil {
		return nil, fmt.Errorf("load ignore patterns: %w", err)
	}

	return &TaskSpool{
		dir:      cfg.Dir,
		debounce: cfg.Debounce,
		rescan:   cfg.RescanInterval,
		ignore:   ignore,
		sink:     sink,
		logger:   orNop(logger),
		now:      time.Now,
	}, nil
}

// WriteSpoolTask drops payload into dir as a task file named after id.
func WriteSpoolTask(dir, id, payload string) (string, error) {
	if err := ValidateKey(id); err != nil || strings.Contains(id, "/") {
		return "", fmt.Errorf("task id %q: %w", id, ErrInvalidKey)
	}
	data, err := yaml.Marshal(spoolFile{Payload: payload})
	if err != nil {
		return "", fmt.Errorf("marshal task: %w", err)
	}
	path := filepath.Join(dir, id+".yaml")
	if err := writeFileAtomic(path, data, 0644); err != nil {
		return "", fmt.Errorf("write task: %w", err)
	}
	return path, nil
}

// Run drains the spool whenever it changes and on every rescan tick until ctx
// is done.
func (s *TaskSpool) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(s.dir); err != nil {
		return fmt.Errorf("watch %s: %w", s.dir, err)
	}

	s.logger.Info("watching spool", zap.String("dir", s.dir))
	s.drainLogged(ctx)

	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()
	pending := false

	var rescan <-chan time.Time
	if s.rescan > 0 {
		ticker := time.NewTicker(s.rescan)
		defer ticker.Stop()
		rescan = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if s.shouldIgnoreEvent(event) {
				continue
			}
			if !pending {
				timer.Reset(s.debounce)
				pending = true
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("watch error", zap.Error(err))
		case <-timer.C:
			pending = false
			s.drainLogged(ctx)
		case <-rescan:
			s.drainLogged(ctx)
		}
	}
}

func (s *TaskSpool) shouldIgnoreEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return true
	}
	return !isTaskFile(event.Name) || s.ignore.Match(event.Name)
}

func (s *TaskSpool) drainLogged(ctx context.Context) {
	n, err := s.Drain(ctx)
	switch {
	case errors.Is(err, ErrQueueFull):
		s.logger.Info("task queue full, deferring spool", zap.Int("submitted", n))
	case err != nil:
		s.logger.Warn("drain spool", zap.Error(err))
	case n > 0:
		s.logger.Info("drained spool", zap.Int("submitted", n))
	}
}

// Drain submits every pending task file in name order and reports how many
// were accepted. It stops at the first ErrQueueFull.
func (s *TaskSpool) Drain(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("read spool: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	submitted := 0
	for _, entry := range entries {
		if ctx.Err() != nil {
			return submitted, ctx.Err()
		}

		path := filepath.Join(s.dir, entry.Name())
		if entry.IsDir() || !isTaskFile(path) || s.ignore.Match(path) {
			continue
		}

		task, err := s.readTask(path)
		if err != nil {
			s.logger.Warn("invalid task file", zap.String("path", path), zap.Error(err))
			if err := os.Rename(path, path+".invalid"); err != nil {
				s.logger.Warn("quarantine task file", zap.String("path", path), zap.Error(err))
			}
			continue
		}

		if err := s.sink.Submit(task); err != nil {
			return submitted, err
		}
		submitted++

		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("remove task file", zap.String("path", path), zap.Error(err))
		}
		s.logger.Debug("task spooled", zap.String("task", task.ID))
	}
	return submitted, nil
}

func (s *TaskSpool) readTask(path string) (Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Task{}, err
	}

	var f spoolFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Task{}, fmt.Errorf("parse task: %w", err)
	}
	if strings.TrimSpace(f.Payload) == "" {
		return Task{}, errors.New("empty payload")
	}

	name := filepath.Base(path)
	return Task{
		ID:          strings.TrimSuffix(name, filepath.Ext(name)),
		Payload:     f.Payload,
		SubmittedAt: s.now().UTC(),
	}, nil
}

func isTaskFile(path string) bool {
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
