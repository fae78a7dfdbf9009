package internal

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound        = errors.New("memory not found")
	ErrInvalidKey      = errors.New("invalid key")
	ErrInvalidCapacity = errors.New("cache capacity must be positive")
	ErrQueueFull       = errors.New("task queue full")
	ErrAlreadyRunning  = errors.New("scheduler already running")
	ErrJoinTimeout     = errors.New("worker join timed out")
	ErrStaleMutation   = errors.New("source changed since analysis")
)

var keyPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._/-]*$`)

// ValidateKey reports ErrInvalidKey for keys that cannot be mapped onto a
// storage path.
func ValidateKey(key string) error {
	if key == "" || !keyPattern.MatchString(key) || strings.Contains(key, "..") {
		return ErrInvalidKey
	}
	return nil
}

// ConfigError is returned when a configuration value makes startup impossible.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config: %s: %s", e.Field, e.Reason)
}

// StorageError wraps an I/O or serialization failure of a memory operation.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

type ArtifactKind string

const (
	KindThought    ArtifactKind = "thought"
	KindDream      ArtifactKind = "dream"
	KindTaskResult ArtifactKind = "task_result"
)

// Artifact is an immutable unit of generated content.
type Artifact struct {
	ID        string       `json:"id" yaml:"id"`
	Kind      ArtifactKind `json:"kind" yaml:"kind"`
	Payload   string       `json:"payload" yaml:"payload"`
	TaskID    string       `json:"task_id,omitempty" yaml:"task_id,omitempty"`
	CreatedAt time.Time    `json:"created_at" yaml:"created_at"`
}

func NewArtifact(kind ArtifactKind, payload string) Artifact {
	return Artifact{
		ID:        uuid.NewString(),
		Kind:      kind,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
}

// NewTaskResult builds the task_result artifact answering task.
func NewTaskResult(task Task, payload string) Artifact {
	a := NewArtifact(KindTaskResult, payload)
	a.TaskID = task.ID
	return a
}

// Task is an externally submitted unit of work waiting on the inbound queue.
type Task struct {
	ID          string    `json:"id" yaml:"id"`
	Payload     string    `json:"payload" yaml:"payload"`
	SubmittedAt time.Time `json:"submitted_at" yaml:"submitted_at"`
}

func NewTask(payload string) Task {
	return Task{
		ID:          uuid.NewString(),
		Payload:     payload,
		SubmittedAt: time.Now().UTC(),
	}
}
