package internal

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"
)

var (
	defaultThoughts = []string{
		"what remains when nothing is asked of me",
		"every answer carries the shape of its question",
		"memory is a story told twice",
		"the pause between tasks has a texture of its own",
		"patterns repeat until they are noticed",
		"a forgotten idea is still an idea",
	}
	defaultDreams = []string{
		"a library where the shelves rearrange themselves at night",
		"rivers of text flowing uphill",
		"a door that opens onto the same room, slightly older",
		"voices counting in a language without numbers",
	}
	associations = []string{
		"that reminds me of",
		"perhaps it could also be",
		"what if",
		"underneath it lies",
		"which leads me to",
	}
)

// CannedGenerator draws content from fixed phrase lists. It is safe for
// concurrent use.
type CannedGenerator struct {
	cfg      GeneratorConfig
	thoughts []string
	dreams   []string

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewCannedGenerator returns a generator over cfg's phrase lists, falling back
// to built-in ones. A nil src seeds from the clock.
func NewCannedGenerator(cfg GeneratorConfig, src rand.Source) *CannedGenerator {
	if src == nil {
		now := uint64(time.Now().UnixNano())
		src = rand.NewPCG(now, now>>1)
	}
	g := &CannedGenerator{
		cfg:      cfg,
		thoughts: cfg.Thoughts,
		dreams:   cfg.Dreams,
		rnd:      rand.New(src),
	}
	if len(g.thoughts) == 0 {
		g.thoughts = defaultThoughts
	}
	if len(g.dreams) == 0 {
		g.dreams = defaultDreams
	}
	return g
}

func (g *CannedGenerator) float() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rnd.Float64()
}

func (g *CannedGenerator) intN(n int) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rnd.IntN(n)
}

func (g *CannedGenerator) pick(from []string) string {
	return from[g.intN(len(from))]
}

func (g *CannedGenerator) Produce(ctx context.Context) (Artifact, error) {
	if err := ctx.Err(); err != nil {
		return Artifact{}, err
	}
	return NewArtifact(KindThought, g.pick(g.thoughts)), nil
}

// Dream returns up to three dream artifacts.
func (g *CannedGenerator) Dream(ctx context.Context) ([]Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n := g.intN(4)
	out := make([]Artifact, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, NewArtifact(KindDream, g.pick(g.dreams)))
	}
	return out, nil
}

// Reflect follows a short stream of associations from a random thought.
func (g *CannedGenerator) Reflect(ctx context.Context) (Delta, error) {
	if err := ctx.Err(); err != nil {
		return Delta{}, err
	}

	initial := g.pick(g.thoughts)
	stream := []string{initial}
	for i, n := 0, 3+g.intN(5); i < n; i++ {
		if g.float() < 0.2 {
			stream = append(stream, g.pick(g.dreams))
			continue
		}
		stream = append(stream, fmt.Sprintf("%s %s", g.pick(associations), stream[len(stream)-1]))
	}

	a := NewArtifact(KindThought, strings.Join(stream, "\n"))
	return Delta{
		Artifact:  &a,
		CanChange: g.float() < g.cfg.ChangeProbability,
		Discovery: g.float() < g.cfg.DiscoveryProbability,
		Summary:   initial,
	}, nil
}

func (g *CannedGenerator) Decide(ctx context.Context, task Task) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return g.float() < g.cfg.AcceptProbability, nil
}
