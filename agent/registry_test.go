package agent

import (
	"context"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hupe1980/diligence/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_SelectSmallestSuperset(t *testing.T) {
	r := NewDefaultRegistry()

	tests := []struct {
		required core.CapabilitySet
		want     string
	}{
		{core.NewCapabilitySet(core.CapabilityRegistryLookup), RegistryAgent},
		{core.NewCapabilitySet(core.CapabilityWebSearch), FinderAgent},
		{core.NewCapabilitySet(core.CapabilityWebSearch, core.CapabilityRegistryLookup), ProfileAgent},
		{core.NewCapabilitySet(core.CapabilityProfessionalNetwork), PeopleAgent},
	}
	for _, tt := range tests {
		t.Run(tt.required.String(), func(t *testing.T) {
			m, err := r.Select(tt.required)
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.Type.Name)
			assert.False(t, m.Ambiguous)
		})
	}
}

func TestRegistry_CapabilityGap(t *testing.T) {
	_, err := NewDefaultRegistry().Select(core.NewCapabilitySet(core.CapabilityExtensionReserved))
	require.Error(t, err)

	var ce *core.CapabilityError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, core.ErrorKindCapabilityGap, ce.Kind)
	assert.Equal(t, core.CapabilityExtensionReserved, ce.Capability)
}

func TestRegistry_AmbiguityResolvedByPriority(t *testing.T) {
	r, err := NewRegistry(
		Type{Name: "web_b", Priority: 2, Capabilities: core.NewCapabilitySet(core.CapabilityWebSearch, core.CapabilityRegistryLookup)},
		Type{Name: "web_a", Priority: 1, Capabilities: core.NewCapabilitySet(core.CapabilityWebSearch, core.CapabilityProfessionalNetwork)},
	)
	require.NoError(t, err)

	m, err := r.Select(core.NewCapabilitySet(core.CapabilityWebSearch))
	require.NoError(t, err)
	assert.Equal(t, "web_a", m.Type.Name)
	assert.True(t, m.Ambiguous)
	assert.Equal(t, []string{"web_a", "web_b"}, m.Tied)
}

func TestRegistry_RejectsInvalidTypes(t *testing.T) {
	_, err := NewRegistry(Type{Name: "x", Capabilities: core.NewCapabilitySet(core.CapabilityWebSearch)}, Type{Name: "x", Capabilities: core.NewCapabilitySet(core.CapabilityWebSearch)})
	assert.Error(t, err)

	_, err = NewRegistry(Type{Name: "empty"})
	assert.Error(t, err)
}

func TestDefaultTypes_InstructionsRender(t *testing.T) {
	for _, typ := range DefaultTypes() {
		text, err := typ.Instruction.Resolve(InstructionData{Subject: "Acme Ltd", FocusArea: "Leadership", MaxSteps: 12})
		require.NoError(t, err, typ.Name)
		assert.Contains(t, text, "Acme Ltd")
		assert.Contains(t, text, "at most 12 steps")
	}
}

func TestRetryPolicy_NewBackOff(t *testing.T) {
	next := func(b backoff.BackOff, n int) []time.Duration {
		var out []time.Duration
		for i := 0; i < n; i++ {
			out = append(out, b.NextBackOff())
		}
		return out
	}

	p := DefaultRetryPolicy()
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second, backoff.Stop}, next(p.NewBackOff(context.Background()), 3))

	p.MaxAttempts = 6
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second, 10 * time.Second, 10 * time.Second, backoff.Stop},
		next(p.NewBackOff(context.Background()), 6))

	assert.Equal(t, []time.Duration{backoff.Stop}, next(RetryPolicy{}.NewBackOff(context.Background()), 1))
	assert.Equal(t, 1, RetryPolicy{}.Attempts())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, backoff.Stop, DefaultRetryPolicy().NewBackOff(ctx).NextBackOff())
}
