// Package capability contains shared middleware for capability ports.
//
// Limit wraps any core.Port with an admission limit (maximum in-flight calls
// shared by every worker using the port) and optional request pacing. The
// HTTP helpers classify transport and status failures into core.ErrorKind
// values once, at the port boundary.
//
// Concrete ports live in sub-packages: registry (company registry), websearch
// (web search) and profnet (professional-network lookup).
package capability
