// Package core provides the foundational domain types and contracts used by
// the diligence orchestration layer. It defines the core abstractions for:
//
//   - Research requests and the agent tasks decomposed from them
//   - Capability ports (registry lookup, web search, professional network)
//     and the closed action schema a reasoner selects from
//   - Agent results, reports and their status semantics
//   - Conversation contexts holding a report for follow-up questions
//   - Failure classification shared by every capability boundary
//
// The package intentionally keeps implementation concerns (HTTP clients,
// model vendors, scheduling) out of scope, exposing small interfaces to enable
// custom backends and test doubles.
package core
