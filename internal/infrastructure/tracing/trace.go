package tracing

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/selectorkit/internal/shared/id"
)

// Header names used for trace propagation.
const (
	HeaderTraceID = "X-Trace-ID"
	HeaderSpanID  = "X-Span-ID"
)

// TraceID represents a unique trace identifier
type TraceID string

// SpanID represents a unique span identifier
type SpanID string

// Span represents a single operation in a trace
type Span struct {
	TraceID    TraceID
	SpanID     SpanID
	ParentID   SpanID
	Name       string
	Service    string
	StartTime  time.Time
	Duration   time.Duration
	Tags       map[string]string
	Error      error
	StatusCode int
}

// Tracer creates spans and logs them when they finish.
type Tracer struct {
	service string
	logger  *zap.Logger
	ids     *id.Generator
	// slow spans are logged at info, the rest at debug
	slow time.Duration
}

// New creates a new tracer instance
func New(service string, logger *zap.Logger) *Tracer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracer{
		service: service,
		logger:  logger,
		ids:     id.NewGenerator(),
		slow:    250 * time.Millisecond,
	}
}

// WithSlowThreshold sets the duration above which spans log at info.
func (t *Tracer) WithSlowThreshold(d time.Duration) *Tracer {
	t.slow = d
	return t
}

// StartSpan creates a new span, continuing the trace carried by ctx.
func (t *Tracer) StartSpan(ctx context.Context, name string) (*Span, context.Context) {
	traceID := GetTraceID(ctx)
	if traceID == "" {
		traceID = TraceID(t.ids.GenerateWithPrefix(id.TracePrefix))
	}

	span := &Span{
		TraceID:   traceID,
		SpanID:    SpanID(t.ids.GenerateWithPrefix(id.SpanPrefix)),
		ParentID:  GetSpanID(ctx),
		Name:      name,
		Service:   t.service,
		StartTime: time.Now(),
		Tags:      make(map[string]string),
	}

	ctx = context.WithValue(ctx, traceIDKey, traceID)
	ctx = context.WithValue(ctx, spanIDKey, span.SpanID)
	return span, ctx
}

// SetTag adds a tag to the span
func (s *Span) SetTag(key, value string) {
	s.Tags[key] = value
}

// SetError records an error in the span
func (s *Span) SetError(err error) {
	s.Error = err
}

// SetStatus sets the HTTP status code
func (s *Span) SetStatus(code int) {
	s.StatusCode = code
}

// Finish stamps the duration and logs the span.
func (t *Tracer) Finish(span *Span) {
	span.Duration = time.Since(span.StartTime)

	fields := []zap.Field{
		zap.String("trace_id", string(span.TraceID)),
		zap.String("span_id", string(span.SpanID)),
		zap.String("operation", span.Name),
		zap.Duration("duration", span.Duration),
		zap.String("service", span.Service),
	}
	if span.ParentID != "" {
		fields = append(fields, zap.String("parent_id", string(span.ParentID)))
	}
	if span.StatusCode != 0 {
		fields = append(fields, zap.Int("status", span.StatusCode))
	}
	for k, v := range span.Tags {
		fields = append(fields, zap.String(k, v))
	}

	switch {
	case span.Error != nil:
		t.logger.Error("span completed with error", append(fields, zap.Error(span.Error))...)
	case span.Duration >= t.slow:
		t.logger.Info("slow span completed", fields...)
	default:
		t.logger.Debug("span completed", fields...)
	}
}

// Context keys for trace propagation
type contextKey string

const (
	traceIDKey contextKey = "trace_id"
	spanIDKey  contextKey = "span_id"
)

// WithTrace returns ctx carrying an incoming trace and parent span.
func WithTrace(ctx context.Context, traceID TraceID, parent SpanID) context.Context {
	if traceID != "" {
		ctx = context.WithValue(ctx, traceIDKey, traceID)
	}
	if parent != "" {
		ctx = context.WithValue(ctx, spanIDKey, parent)
	}
	return ctx
}

// GetTraceID retrieves the trace ID from context
func GetTraceID(ctx context.Context) TraceID {
	if traceID, ok := ctx.Value(traceIDKey).(TraceID); ok {
		return traceID
	}
	return ""
}

// GetSpanID retrieves the span ID from context
func GetSpanID(ctx context.Context) SpanID {
	if spanID, ok := ctx.Value(spanIDKey).(SpanID); ok {
		return spanID
	}
	return ""
}

// FormatTrace returns a formatted trace string for logging
func FormatTrace(traceID TraceID, spanID SpanID) string {
	return fmt.Sprintf("[trace:%s span:%s]", traceID, spanID)
}
