package internal

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"
)

// Metrics holds the scheduler counters shared by the workers and the
// coordinator.
type Metrics struct {
	startTime        atomic.Int64
	processed        atomic.Uint64
	mutationAttempts atomic.Uint64
	discoveries      atomic.Uint64
	tasksAccepted    atomic.Uint64
	tasksRejected    atomic.Uint64
	artifactsDropped atomic.Uint64
}

type MetricsSnapshot struct {
	StartTime        time.Time     `json:"start_time" yaml:"start_time"`
	Uptime           time.Duration `json:"uptime" yaml:"uptime"`
	Processed        uint64        `json:"processed" yaml:"processed"`
	MutationAttempts uint64        `json:"mutation_attempts" yaml:"mutation_attempts"`
	Discoveries      uint64        `json:"discoveries" yaml:"discoveries"`
	TasksAccepted    uint64        `json:"tasks_accepted" yaml:"tasks_accepted"`
	TasksRejected    uint64        `json:"tasks_rejected" yaml:"tasks_rejected"`
	ArtifactsDropped uint64        `json:"artifacts_dropped" yaml:"artifacts_dropped"`
}

func (m *Metrics) reset(now time.Time) {
	m.startTime.Store(now.UnixNano())
	m.processed.Store(0)
	m.mutationAttempts.Store(0)
	m.discoveries.Store(0)
	m.tasksAccepted.Store(0)
	m.tasksRejected.Store(0)
	m.artifactsDropped.Store(0)
}

func (m *Metrics) Snapshot(now time.Time) MetricsSnapshot {
	s := MetricsSnapshot{
		Processed:        m.processed.Load(),
		MutationAttempts: m.mutationAttempts.Load(),
		Discoveries:      m.discoveries.Load(),
		TasksAccepted:    m.tasksAccepted.Load(),
		TasksRejected:    m.tasksRejected.Load(),
		ArtifactsDropped: m.artifactsDropped.Load(),
	}
	if start := m.startTime.Load(); start != 0 {
		s.StartTime = time.Unix(0, start).UTC()
		s.Uptime = now.Sub(s.StartTime)
	}
	return s
}

// AppendMetrics appends s to path as one YAML document.
func AppendMetrics(path string, s MetricsSnapshot) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal metrics: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open metrics file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append([]byte("---\n"), data...)); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return f.Sync()
}
