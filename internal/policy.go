package internal

import "context"

// AcceptPolicy decides whether the coordinator processes a submitted task.
type AcceptPolicy interface {
	Accept(ctx context.Context, task Task) (bool, error)
}

type AcceptFunc func(ctx context.Context, task Task) (bool, error)

func (f AcceptFunc) Accept(ctx context.Context, task Task) (bool, error) {
	return f(ctx, task)
}

// MutationPolicy decides whether a reflection delta warrants consulting the
// evolution engine.
type MutationPolicy interface {
	ShouldAttemptMutation(d Delta) bool
}

type MutationFunc func(d Delta) bool

func (f MutationFunc) ShouldAttemptMutation(d Delta) bool {
	return f(d)
}

type generatorAcceptPolicy struct {
	gen Generator
}

func (p generatorAcceptPolicy) Accept(ctx context.Context, task Task) (bool, error) {
	return p.gen.Decide(ctx, task)
}

var capacityMutationPolicy = MutationFunc(func(d Delta) bool {
	return d.CanChange
})
