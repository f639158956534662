// Package trace provides an explicitly-constructed span recorder.
//
// The recorder wraps an OpenTelemetry tracer but does not rely on the
// global provider or ambient "current span" state: parents are passed as
// handles through function signatures, and the recorder instance itself is
// passed to whatever needs to open spans. Completed spans are handed to the
// provider's exporter (the trace sink) asynchronously by the SDK's batch
// processor; the recorder never blocks on export.
package trace

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Recorder opens and tracks spans. Safe for concurrent use.
type Recorder struct {
	tracer oteltrace.Tracer

	opened atomic.Int64
	closed atomic.Int64
}

// NewRecorder creates a Recorder scoped to the given instrumentation name.
// The provider comes from telemetry.Init in production and from a test
// provider (e.g. sdktrace with an in-memory exporter) in tests.
func NewRecorder(tp oteltrace.TracerProvider, scope string) *Recorder {
	return &Recorder{tracer: tp.Tracer(scope)}
}

// Span is a live handle to one traced unit of work. A handle is owned by
// the flow that opened it and is not shared across request flows except by
// explicit parent passing.
type Span struct {
	rec  *Recorder
	span oteltrace.Span
	ctx  context.Context
	name string

	mu      sync.Mutex
	ended   bool
	errored bool
}

// Start begins a span. If parent is non-nil the new span nests under it and
// inherits its context (including cancellation); otherwise ctx is the base,
// so a remote trace context extracted from incoming headers is honored.
func (r *Recorder) Start(ctx context.Context, name string, parent *Span) *Span {
	if parent != nil {
		ctx = parent.ctx
	}
	sctx, s := r.tracer.Start(ctx, name)
	r.opened.Add(1)
	return &Span{rec: r, span: s, ctx: sctx, name: name}
}

// Opened returns the total number of spans started.
func (r *Recorder) Opened() int64 { return r.opened.Load() }

// Closed returns the total number of spans ended.
func (r *Recorder) Closed() int64 { return r.closed.Load() }

// InFlight returns the number of spans started but not yet ended.
// At process quiescence this must be zero.
func (r *Recorder) InFlight() int64 { return r.opened.Load() - r.closed.Load() }

// Context returns the span's context, for propagation into downstream
// calls and for starting children.
func (s *Span) Context() context.Context { return s.ctx }

// Name returns the operation label the span was started with.
func (s *Span) Name() string { return s.name }

// TraceID returns the hex trace ID, or "" when recording is disabled.
func (s *Span) TraceID() string {
	sc := s.span.SpanContext()
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}

// SetAttribute records a key/value attribute. Setting an attribute on a
// closed span is a silent no-op; closing is terminal.
func (s *Span) SetAttribute(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.span.SetAttributes(attr(key, value))
}

// RecordError marks the span's status as error with the error's message
// and records the error event. It does not close the span.
func (s *Span) RecordError(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
	s.errored = true
}

// SetStatusError marks the span's status as error with a message, without
// recording an error event. Used for policy rejections like rate limiting.
func (s *Span) SetStatusError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.span.SetStatus(codes.Error, msg)
	s.errored = true
}

// End finalizes the span exactly once; a second End is a no-op. An unset
// status is finalized to ok. After End the span is read-only and owned by
// the trace sink.
func (s *Span) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.ended = true
	if !s.errored {
		s.span.SetStatus(codes.Ok, "")
	}
	s.span.End()
	s.rec.closed.Add(1)
}

// Ended reports whether the span has been closed.
func (s *Span) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

// attr converts a scalar value to an OTEL attribute. Unsupported types are
// stringified rather than dropped.
func attr(key string, value any) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case bool:
		return attribute.Bool(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	case float32:
		return attribute.Float64(key, float64(v))
	default:
		return attribute.String(key, fmt.Sprint(v))
	}
}
