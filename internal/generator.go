package internal

import "context"

// Delta is the state change reported by one reflection step.
type Delta struct {
	// Artifact is the exploration artifact, if the reflection produced one.
	Artifact  *Artifact
	CanChange bool
	Discovery bool
	Summary   string
}

// Generator produces the content the scheduler distributes. Implementations
// must be safe for concurrent use by every worker and the coordinator.
type Generator interface {
	Produce(ctx context.Context) (Artifact, error)
	// Dream returns zero or more artifacts.
	Dream(ctx context.Context) ([]Artifact, error)
	Reflect(ctx context.Context) (Delta, error)
	Decide(ctx context.Context, task Task) (bool, error)
}

type Analysis struct {
	Ref     string `json:"ref" yaml:"ref"`
	Head    string `json:"head" yaml:"head"`
	Content string `json:"-" yaml:"-"`
}

type Mutation struct {
	Ref         string `json:"ref" yaml:"ref"`
	BaseHead    string `json:"base_head" yaml:"base_head"`
	BaseContent string `json:"-" yaml:"-"`
	Content     string `json:"-" yaml:"-"`
	Patch       string `json:"patch" yaml:"patch"`
	Message     string `json:"message" yaml:"message"`
}

// EvolutionEngine inspects a source reference and optionally rewrites it.
type EvolutionEngine interface {
	Analyze(ctx context.Context, ref string) (Analysis, error)
	// Propose returns nil when no mutation is warranted.
	Propose(ctx context.Context, a Analysis) (*Mutation, error)
	Apply(ctx context.Context, ref string, m Mutation) (bool, error)
}
