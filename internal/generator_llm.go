package internal

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

const (
	thoughtPrompt = "Write one short, original reflective thought. Reply with the thought only."
	dreamPrompt   = "Describe up to three brief surreal dream images, one per line. Reply with the lines only."
	reflectPrompt = "Reflect freely on your recent thoughts. Report one insight, whether it suggests you " +
		"could change how you work, and whether it is a genuine discovery."
	decidePrompt = "You run autonomously. Decide whether to take on this task and give a short reason.\n\nTask: %s"

	maxDreams = 3
)

// LLMGenerator produces content through a language model provider.
type LLMGenerator struct {
	provider Provider
	logger   *zap.Logger
}

func NewLLMGenerator(provider Provider, logger *zap.Logger) *LLMGenerator {
	return &LLMGenerator{provider: provider, logger: orNop(logger)}
}

func (g *LLMGenerator) Produce(ctx context.Context) (Artifact, error) {
	text, err := g.provider.Complete(ctx, thoughtPrompt)
	if err != nil {
		return Artifact{}, fmt.Errorf("produce thought: %w", err)
	}
	return NewArtifact(KindThought, strings.TrimSpace(text)), nil
}

func (g *LLMGenerator) Dream(ctx context.Context) ([]Artifact, error) {
	text, err := g.provider.Complete(ctx, dreamPrompt)
	if err != nil {
		return nil, fmt.Errorf("dream: %w", err)
	}

	var out []Artifact
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(line, "-*0123456789. "))
		if line == "" {
			continue
		}
		out = append(out, NewArtifact(KindDream, line))
		if len(out) == maxDreams {
			break
		}
	}
	return out, nil
}

func (g *LLMGenerator) Reflect(ctx context.Context) (Delta, error) {
	var r Reflection
	if err := g.provider.GenerateObject(ctx, reflectPrompt, &r); err != nil {
		return Delta{}, fmt.Errorf("reflect: %w", err)
	}

	d := Delta{CanChange: r.CanChange, Discovery: r.Discovery, Summary: r.Insight}
	if r.Insight != "" {
		a := NewArtifact(KindThought, r.Insight)
		d.Artifact = &a
	}
	return d, nil
}

func (g *LLMGenerator) Decide(ctx context.Context, task Task) (bool, error) {
	var v Verdict
	if err := g.provider.GenerateObject(ctx, fmt.Sprintf(decidePrompt, task.Payload), &v); err != nil {
		return false, fmt.Errorf("decide: %w", err)
	}
	g.logger.Debug("task verdict", zap.String("task", task.ID), zap.Bool("accept", v.Accept), zap.String("reason", v.Reason))
	return v.Accept, nil
}

// NewGenerator builds the generator selected by cfg.Backend.
func NewGenerator(ctx context.Context, cfg GeneratorConfig, logger *zap.Logger) (Generator, error) {
	switch cfg.Backend {
	case GeneratorCanned, "":
		return NewCannedGenerator(cfg, nil), nil
	case GeneratorLLM:
		provider, err := NewFantasyProvider(ctx, cfg.Provider)
		if err != nil {
			return nil, err
		}
		return NewLLMGenerator(provider, logger), nil
	default:
		return nil, &ConfigError{Field: "generator.backend", Reason: fmt.Sprintf("unknown backend %q", cfg.Backend)}
	}
}
