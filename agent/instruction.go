package agent

import (
	"github.com/hupe1980/diligence/internal/util"
)

// InstructionData is the template context available to worker instructions.
type InstructionData struct {
	Subject      string
	Jurisdiction string
	FocusArea    string
	WorkerType   string
	Capabilities []string
	MaxSteps     int
}

// Provider supplies dynamic instruction text at runtime.
type Provider interface {
	Instruction(data InstructionData) (string, error)
}

// Func is a functional adapter to allow ordinary functions to be used as Providers.
type Func func(data InstructionData) (string, error)

// Instruction implements Provider.
func (f Func) Instruction(data InstructionData) (string, error) { return f(data) }

// Instruction is either static text, a text/template or a dynamic provider.
type Instruction struct {
	text     string
	template bool
	provider Provider
}

// NewInstructionFromText creates an Instruction from a static string.
func NewInstructionFromText(text string) Instruction { return Instruction{text: text} }

// NewInstructionFromTemplate creates an Instruction rendered against
// InstructionData, e.g. "Research {{.Subject}} ({{.FocusArea}})".
func NewInstructionFromTemplate(tmpl string) Instruction {
	return Instruction{text: tmpl, template: true}
}

// NewInstructionFromProvider creates an Instruction from a dynamic provider.
func NewInstructionFromProvider(p Provider) Instruction { return Instruction{provider: p} }

// NewInstructionFromFunc creates an Instruction from a function.
func NewInstructionFromFunc(f func(InstructionData) (string, error)) Instruction {
	return Instruction{provider: Func(f)}
}

// IsStatic returns true if the instruction is backed by a static string.
func (i Instruction) IsStatic() bool { return i.provider == nil && !i.template }

// Resolve returns the instruction text.
func (i Instruction) Resolve(data InstructionData) (string, error) {
	switch {
	case i.provider != nil:
		return i.provider.Instruction(data)
	case i.template:
		return util.RenderTemplate(i.text, data)
	}
	return i.text, nil
}
