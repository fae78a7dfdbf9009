package internal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratorAcceptPolicyDelegates(t *testing.T) {
	gen := &stubGenerator{decide: func(ctx context.Context, task Task) (bool, error) {
		return task.Payload == "yes", nil
	}}
	p := generatorAcceptPolicy{gen: gen}

	ok, err := p.Accept(context.Background(), Task{Payload: "yes"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = p.Accept(context.Background(), Task{Payload: "no"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCapacityMutationPolicy(t *testing.T) {
	assert.True(t, capacityMutationPolicy.ShouldAttemptMutation(Delta{CanChange: true}))
	assert.False(t, capacityMutationPolicy.ShouldAttemptMutation(Delta{Discovery: true}))
}

func TestPolicyFuncAdapters(t *testing.T) {
	var accept AcceptPolicy = AcceptFunc(func(ctx context.Context, task Task) (bool, error) {
		return true, nil
	})
	ok, err := accept.Accept(context.Background(), Task{})
	require.NoError(t, err)
	assert.True(t, ok)

	var mutate MutationPolicy = MutationFunc(func(d Delta) bool { return false })
	assert.False(t, mutate.ShouldAttemptMutation(Delta{CanChange: true}))
}
