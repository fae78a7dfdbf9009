package internal

import "context"

type Provider interface {
	Complete(ctx context.Context, prompt string) (string, error)
	GenerateObject(ctx context.Context, prompt string, target any) error
}

// Structured output types for the LLM generator

type Reflection struct {
	Insight   string `json:"insight"`
	CanChange bool   `json:"can_change"`
	Discovery bool   `json:"discovery"`
}

type Verdict struct {
	Accept bool   `json:"accept"`
	Reason string `json:"reason"`
}
