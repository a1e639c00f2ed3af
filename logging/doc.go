// Package logging provides a minimal logging interface and adapters.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the coordinator, workers and capability ports use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - StructuredLogger backed by slog with component/session/run attributes
//   - ForComponent and ForRun to tag any Logger
//   - domain helpers for capability calls, reasoner calls and research runs
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	d := diligence.New(reasoner, ports, func(o *diligence.Options) { o.Logger = logger })
//
// Messages use dotted event names ("worker.step.start") with key/value pairs.
package logging
