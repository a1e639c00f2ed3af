package agent

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockProvider struct {
	text string
	err  error
}

func (m mockProvider) Instruction(InstructionData) (string, error) { return m.text, m.err }

func TestInstruction_Static(t *testing.T) {
	inst := NewInstructionFromText("static instruction")
	assert.True(t, inst.IsStatic())

	got, err := inst.Resolve(InstructionData{})
	require.NoError(t, err)
	assert.Equal(t, "static instruction", got)
}

func TestInstruction_Template(t *testing.T) {
	inst := NewInstructionFromTemplate(`Research {{.Subject}} in {{default "any jurisdiction" .Jurisdiction}} using {{join ", " .Capabilities}}.`)
	assert.False(t, inst.IsStatic())

	got, err := inst.Resolve(InstructionData{Subject: "Acme Ltd", Capabilities: []string{"registry-lookup", "web-search"}})
	require.NoError(t, err)
	assert.Equal(t, "Research Acme Ltd in any jurisdiction using registry-lookup, web-search.", got)
}

func TestInstruction_Provider(t *testing.T) {
	got, err := NewInstructionFromProvider(mockProvider{text: "dynamic"}).Resolve(InstructionData{})
	require.NoError(t, err)
	assert.Equal(t, "dynamic", got)

	_, err = NewInstructionFromProvider(mockProvider{err: errors.New("provider error")}).Resolve(InstructionData{})
	assert.EqualError(t, err, "provider error")
}

func TestInstruction_Func(t *testing.T) {
	inst := NewInstructionFromFunc(func(d InstructionData) (string, error) { return "focus: " + d.FocusArea, nil })
	got, err := inst.Resolve(InstructionData{FocusArea: "Leadership"})
	require.NoError(t, err)
	assert.Equal(t, "focus: Leadership", got)
}
