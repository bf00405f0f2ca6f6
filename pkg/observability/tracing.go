package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// TracerName is the name of the tracer for import operations.
	TracerName = "krisp-import"
)

// Span attribute keys
const (
	AttrSource       = "source"
	AttrFolder       = "folder"
	AttrStage        = "stage"
	AttrTitle        = "meeting.title"
	AttrParticipants = "meeting.participants"
	AttrWords        = "meeting.words"
	AttrMeetingType  = "meeting.type"
	AttrStreamed     = "transcript.streamed"
	AttrTruncated    = "transcript.truncated"
	AttrBytes        = "transcript.bytes"
	AttrEncoding     = "transcript.encoding"
	AttrNotePath     = "note.path"
	AttrErrorCode    = "error_code"
	AttrRetryable    = "retryable"
)

// Span names
const (
	SpanImportSource = "import.source"
	SpanImportMeet   = "import.meeting"
	SpanParse        = "import.parse"
)

// Tracer provides tracing for import operations.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a tracer from the global provider.
func NewTracer() *Tracer {
	return NewTracerWithProvider(otel.GetTracerProvider())
}

// NewTracerWithProvider creates a tracer from an explicit provider.
func NewTracerWithProvider(tp trace.TracerProvider) *Tracer {
	return &Tracer{tracer: tp.Tracer(TracerName)}
}

// StartSourceSpan starts a root span for one archive or folder.
func (t *Tracer) StartSourceSpan(ctx context.Context, source string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanImportSource,
		trace.WithAttributes(attribute.String(AttrSource, source)),
	)
}

// StartMeetingSpan starts a span for one meeting folder.
func (t *Tracer) StartMeetingSpan(ctx context.Context, folder string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanImportMeet,
		trace.WithAttributes(attribute.String(AttrFolder, folder)),
	)
}

// StartStageSpan starts a span for an import stage.
func (t *Tracer) StartStageSpan(ctx context.Context, stage string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, fmt.Sprintf("import.stage.%s", stage),
		trace.WithAttributes(attribute.String(AttrStage, stage)),
	)
}

// SpanHelper provides convenient methods for working with the current span.
type SpanHelper struct {
	span trace.Span
}

// NewSpanHelper creates a new span helper for the given span.
func NewSpanHelper(span trace.Span) *SpanHelper {
	return &SpanHelper{span: span}
}

// SetMeeting sets meeting attributes.
func (h *SpanHelper) SetMeeting(title, meetingType string, participants, words int) {
	h.span.SetAttributes(
		attribute.String(AttrTitle, title),
		attribute.String(AttrMeetingType, meetingType),
		attribute.Int(AttrParticipants, participants),
		attribute.Int(AttrWords, words),
	)
}

// SetTranscript sets transcript reading attributes.
func (h *SpanHelper) SetTranscript(bytes int64, encoding string, streamed, truncated bool) {
	h.span.SetAttributes(
		attribute.Int64(AttrBytes, bytes),
		attribute.String(AttrEncoding, encoding),
		attribute.Bool(AttrStreamed, streamed),
		attribute.Bool(AttrTruncated, truncated),
	)
}

// SetNotePath records where the note was written.
func (h *SpanHelper) SetNotePath(path string) {
	h.span.SetAttributes(attribute.String(AttrNotePath, path))
}

// SetError records an error on the span.
func (h *SpanHelper) SetError(err error, code string, retryable bool) {
	h.span.SetStatus(codes.Error, err.Error())
	h.span.SetAttributes(
		attribute.String(AttrErrorCode, code),
		attribute.Bool(AttrRetryable, retryable),
	)
	h.span.RecordError(err)
}

// SetSuccess marks the span as successful.
func (h *SpanHelper) SetSuccess() {
	h.span.SetStatus(codes.Ok, "")
}

// AddEvent adds an event to the span.
func (h *SpanHelper) AddEvent(name string, attrs ...attribute.KeyValue) {
	h.span.AddEvent(name, trace.WithAttributes(attrs...))
}

// GetTraceID returns the trace ID from the context.
func GetTraceID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().HasTraceID() {
		return span.SpanContext().TraceID().String()
	}
	return ""
}
