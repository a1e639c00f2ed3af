// Package session houses implementations of core.ContextStore, the
// per-session holder of the latest report and its follow-up turns.
//
// Callers depend on the core.ContextStore interface only; the wiring layer
// decides which implementation to instantiate. Contexts live for the
// lifetime of the process.
package session
