// Package tracing carries the OpenTelemetry instrumentation of research runs:
// one span per run, a child span per agent task and per capability call.
//
// Instrumented components take an optional trace.TracerProvider and fall
// back to the global provider, which is a no-op until the application
// installs one (see NewProvider).
package tracing

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName identifies the tracer of this module.
const InstrumentationName = "github.com/hupe1980/diligence"

// Span names.
const (
	SpanResearchRun    = "research.run"
	SpanResearchTask   = "research.task"
	SpanCapabilityCall = "capability.call"
	SpanNarrative      = "research.narrative"
)

// Attribute keys.
const (
	Subject      = attribute.Key("diligence.subject")
	SessionID    = attribute.Key("diligence.session_id")
	RunID        = attribute.Key("diligence.run_id")
	FocusArea    = attribute.Key("diligence.focus_area")
	WorkerType   = attribute.Key("diligence.worker_type")
	Status       = attribute.Key("diligence.status")
	ErrorKind    = attribute.Key("diligence.error_kind")
	Capability   = attribute.Key("diligence.capability")
	Action       = attribute.Key("diligence.action")
	Attempts     = attribute.Key("diligence.attempts")
	SectionCount = attribute.Key("diligence.sections")
)

// Tracer returns the module tracer of tp, or of the global provider when tp
// is nil.
func Tracer(tp trace.TracerProvider) trace.Tracer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return tp.Tracer(InstrumentationName)
}

// Fail records err on span and marks the span as failed.
func Fail(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
