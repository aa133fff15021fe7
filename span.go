package llmtrace

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otelTrace "go.opentelemetry.io/otel/trace"
	"google.golang.org/api/googleapi"

	"github.com/m-mizutani/llmtrace/semconv"
)

// Span owns one traced call for its duration. All mutation funnels through
// it so termination and status normalization happen in exactly one place.
type Span struct {
	span otelTrace.Span
	name string
	kind semconv.SpanKind

	mu        sync.Mutex
	ended     bool
	statusSet bool
}

type spanCtxKey struct{}

func withSpan(ctx context.Context, span *Span) context.Context {
	return context.WithValue(ctx, spanCtxKey{}, span)
}

// SpanFromContext retrieves the span owning the current call. Returns nil
// if the call is not traced.
func SpanFromContext(ctx context.Context) *Span {
	s, _ := ctx.Value(spanCtxKey{}).(*Span)
	return s
}

// Name returns the operation name the span was started with.
func (s *Span) Name() string {
	return s.name
}

// Kind returns the span kind, after inference if the caller passed none.
func (s *Span) Kind() semconv.SpanKind {
	return s.kind
}

// SetAttributes attaches attributes to the span. Callers are expected to
// have run values through the masking policy already; the mappers do.
func (s *Span) SetAttributes(attrs ...attribute.KeyValue) {
	if s == nil || len(attrs) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.span.SetAttributes(attrs...)
}

// Fail forces ERROR status for a call that completed without a Go error,
// e.g. a vendor result flagged unsuccessful. The traced call's own return
// values are unaffected.
func (s *Span) Fail(message string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.statusSet = true
	s.span.SetStatus(codes.Error, message)
	s.span.SetAttributes(attribute.String(semconv.ErrorMessage, message))
}

// SetOK marks the span successful explicitly. End would do the same for a
// nil error; this exists for mappers that want to settle status early.
func (s *Span) SetOK() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.statusSet = true
	s.span.SetStatus(codes.Ok, "")
}

// End terminates the span exactly once. A non-nil err records one exception
// event, error.type/error.message attributes, and ERROR status; a nil err
// settles any unset status to OK. Later calls are no-ops, so a streaming
// completion racing a synchronous close is harmless.
func (s *Span) End(err error) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.ended = true

	switch {
	case err != nil:
		s.span.RecordError(err)
		s.span.SetAttributes(
			attribute.String(semconv.ErrorType, errorTypeName(err)),
			attribute.String(semconv.ErrorMessage, err.Error()),
		)
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) {
			s.span.SetAttributes(attribute.Int(semconv.HTTPStatusCode, apiErr.Code))
		}
		s.span.SetStatus(codes.Error, err.Error())
	case !s.statusSet:
		s.span.SetStatus(codes.Ok, "")
	}

	s.span.End()
}

// errorTypeName returns the discriminator recorded under error.type: the
// dynamic Go type of the error with any pointer marker stripped.
func errorTypeName(err error) string {
	return strings.TrimPrefix(fmt.Sprintf("%T", err), "*")
}
