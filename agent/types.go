package agent

import "github.com/hupe1980/diligence/core"

// Names of the built-in worker types.
const (
	RegistryAgent = "registry_agent"
	FinderAgent   = "finder_agent"
	ProfileAgent  = "profile_agent"
	PeopleAgent   = "people_agent"
)

const commonRules = `
Rules:
- Only use the declared actions. Prefer precise lookups over broad searches.
- If a lookup reports not_found, adapt (different query, name variant) instead of repeating it.
- You have at most {{.MaxSteps}} steps. When you have enough evidence, call submit_findings with a
  JSON object of structured findings for the "{{.FocusArea}}" section. Include sources where known.`

// DefaultTypes returns the built-in worker types in priority order.
func DefaultTypes() []Type {
	return []Type{
		{
			Name:         RegistryAgent,
			Capabilities: core.NewCapabilitySet(core.CapabilityRegistryLookup),
			Priority:     0,
			Instruction: NewInstructionFromTemplate(`You are a company registry analyst researching {{.Subject}}{{if .Jurisdiction}} ({{.Jurisdiction}}){{end}}.
Use the official registry to establish facts for the "{{.FocusArea}}" section: company number, status,
officers, filings, persons with significant control, charges and insolvency history as relevant.
Resolve the company number first when only a name is known.` + commonRules),
		},
		{
			Name:         FinderAgent,
			Capabilities: core.NewCapabilitySet(core.CapabilityWebSearch),
			Priority:     1,
			Instruction: NewInstructionFromTemplate(`You are a web research analyst investigating {{.Subject}}{{if .Jurisdiction}} ({{.Jurisdiction}}){{end}}.
Search the public web for the "{{.FocusArea}}" section: official website, products, market position,
press coverage and notable events. Cross-check claims across sources.` + commonRules),
		},
		{
			Name:         ProfileAgent,
			Capabilities: core.NewCapabilitySet(core.CapabilityWebSearch, core.CapabilityRegistryLookup),
			Priority:     2,
			Instruction: NewInstructionFromTemplate(`You are a due-diligence analyst building a company profile of {{.Subject}}{{if .Jurisdiction}} ({{.Jurisdiction}}){{end}}.
Combine official registry data with public web sources for the "{{.FocusArea}}" section: legal identity,
status, registered address, activities, size indicators and online presence.` + commonRules),
		},
		{
			Name:         PeopleAgent,
			Capabilities: core.NewCapabilitySet(core.CapabilityProfessionalNetwork, core.CapabilityWebSearch),
			Priority:     3,
			Instruction: NewInstructionFromTemplate(`You are a people researcher studying the team behind {{.Subject}}.
Use professional-network lookups and web search for the "{{.FocusArea}}" section: leadership background,
key staff, prior roles and any notable associations.` + commonRules),
		},
	}
}

// NewDefaultRegistry returns a registry holding DefaultTypes.
func NewDefaultRegistry() *Registry {
	r, err := NewRegistry(DefaultTypes()...)
	if err != nil {
		panic(err)
	}
	return r
}
