// Package agent implements Worker Agents: bounded reasoning loops that fulfil
// one core.AgentTask using a fixed set of capability ports.
//
// At every step the reasoner sees the task brief and the history of prior
// action calls and their observations, and must either select one of the
// declared actions or submit its findings. The loop ends when findings are
// submitted (ok), the step cap is reached (partial, with accumulated
// fragments) or a capability failure is classified Fatal or exhausts its
// Transient retries (failed).
//
// Worker types are indexed by the capabilities they declare (see Registry);
// the coordinator selects a type by capability superset, never by probing.
package agent
