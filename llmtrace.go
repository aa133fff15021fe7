// Package llmtrace turns LLM SDK calls into standardized trace spans. It
// owns the canonical attribute vocabulary, the redaction policy, per-vendor
// attribute mappers, streaming reconstruction, and span lifecycle; span
// storage and export belong to whatever OpenTelemetry TracerProvider the
// host application installs.
//
// Basic usage with the global TracerProvider:
//
//	tracer, err := llmtrace.New()
//	err = tracer.WithSpan(ctx, "chat.completions.create", semconv.SpanKindLLM,
//	    func(ctx context.Context) error {
//	        resp, err := client.CreateChatCompletion(ctx, req)
//	        if err == nil {
//	            llmtrace.SpanFromContext(ctx).SetAttributes(
//	                llmtrace.MapOpenAIResponse(tracer.Config(), resp)...)
//	        }
//	        return err
//	    },
//	    llmtrace.MapOpenAIRequest(tracer.Config(), req)...)
package llmtrace

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/m-mizutani/goerr/v2"
	otelAPI "go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelTrace "go.opentelemetry.io/otel/trace"

	"github.com/m-mizutani/llmtrace/semconv"
)

const tracerName = "github.com/m-mizutani/llmtrace"

// Tracer creates and finalizes spans for instrumented calls. It is safe
// for concurrent use; the only state it carries is read-only after New.
type Tracer struct {
	tracerProvider otelTrace.TracerProvider
	tracer         otelTrace.Tracer
	cfg            *Config
	logger         *slog.Logger
}

// Option is a functional option for configuring a Tracer.
type Option func(*Tracer)

// WithTracerProvider sets an explicit TracerProvider.
// If not set, the global TracerProvider is used.
func WithTracerProvider(tp otelTrace.TracerProvider) Option {
	return func(t *Tracer) {
		t.tracerProvider = tp
	}
}

// WithConfig sets the redaction policy. Default: NewConfig() with no
// categories hidden.
func WithConfig(cfg *Config) Option {
	return func(t *Tracer) {
		t.cfg = cfg
	}
}

// WithLogger sets the logger for span start/end debug records and mapper
// diagnostics. Default is a discard logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracer) {
		t.logger = logger
	}
}

// New creates a Tracer. Configuration problems surface here, never during
// a traced call.
func New(options ...Option) (*Tracer, error) {
	t := &Tracer{
		logger: defaultLogger,
	}
	for _, opt := range options {
		opt(t)
	}

	if t.cfg == nil {
		cfg, err := NewConfig()
		if err != nil {
			return nil, goerr.Wrap(err, "failed to build default config")
		}
		t.cfg = cfg
	}
	if t.tracerProvider == nil {
		t.tracerProvider = otelAPI.GetTracerProvider()
	}
	t.tracer = t.tracerProvider.Tracer(tracerName)

	return t, nil
}

// Config returns the tracer's redaction policy for use with the mappers.
func (t *Tracer) Config() *Config {
	return t.cfg
}

// Start opens a span and returns the derived context carrying it. The span
// starts with the ambient context attributes (session, user, metadata,
// tags, prompt template) plus any request attributes the caller mapped.
// The caller owns termination via Span.End.
func (t *Tracer) Start(ctx context.Context, name string, kind semconv.SpanKind, attrs ...attribute.KeyValue) (context.Context, *Span) {
	if kind == "" {
		kind = semconv.InferSpanKind(name)
	}

	ctx = ctxWithLogger(ctx, t.logger)
	spanCtx, otelSpan := t.tracer.Start(ctx, name,
		otelTrace.WithSpanKind(otelSpanKind(kind)),
	)

	span := &Span{
		span: otelSpan,
		name: name,
		kind: kind,
	}
	span.SetAttributes(attribute.String(semconv.SpanKindKey, string(kind)))
	span.SetAttributes(ContextAttributes(ctx)...)
	span.SetAttributes(attrs...)

	t.logger.Debug("span started", "name", name, "kind", string(kind))

	return withSpan(spanCtx, span), span
}

// WithSpan runs fn inside a new span and guarantees termination on every
// exit path: normal return, error return, and panic. The error (or panic)
// reaches the caller unchanged; the span records it first.
func (t *Tracer) WithSpan(ctx context.Context, name string, kind semconv.SpanKind, fn func(ctx context.Context) error, attrs ...attribute.KeyValue) error {
	ctx, span := t.Start(ctx, name, kind, attrs...)

	defer func() {
		if r := recover(); r != nil {
			span.End(fmt.Errorf("panic in traced call: %v", r))
			t.logger.Debug("span ended by panic", "name", name)
			panic(r)
		}
	}()

	err := fn(ctx)
	span.End(err)
	t.logger.Debug("span ended", "name", name, "error", err != nil)
	return err
}

// TraceStream opens a span for a streaming call and splits the event
// sequence: the returned channel is the caller's copy, while a background
// aggregation consumes an independent copy, flushes the reconstructed
// message onto the span, and ends it when the source is exhausted.
// Aggregation never delays the caller, and finalization does not depend on
// the caller reading their copy at all; an abandoned caller channel still
// lets the span close.
//
// The returned Span lets the adapter fail the call early (e.g. the vendor
// stream constructor errored); ending it twice is harmless.
func (t *Tracer) TraceStream(ctx context.Context, name string, kind semconv.SpanKind, events <-chan StreamEvent, attrs ...attribute.KeyValue) (<-chan StreamEvent, *Span) {
	_, span := t.Start(ctx, name, kind, attrs...)

	caller, background := TeeStream(events)

	go func() {
		msg := AggregateStream(background)
		span.SetAttributes(MapReconstructedMessage(t.cfg, msg)...)
		span.End(nil)
		t.logger.Debug("streaming span ended", "name", name)
	}()

	return caller, span
}

// otelSpanKind chooses the OTel span kind: calls that leave the process for
// a vendor API are clients, everything else is internal.
func otelSpanKind(kind semconv.SpanKind) otelTrace.SpanKind {
	switch kind {
	case semconv.SpanKindLLM, semconv.SpanKindEmbedding, semconv.SpanKindVectorDB, semconv.SpanKindRetriever, semconv.SpanKindReranker:
		return otelTrace.SpanKindClient
	default:
		return otelTrace.SpanKindInternal
	}
}

// defaultInstance holds the process-wide default Tracer for code that has
// no injection seam. Libraries should take a *Tracer; this exists for the
// outermost application boundary only.
var defaultInstance atomic.Pointer[Tracer]

// SetDefault installs the process-wide default Tracer.
func SetDefault(t *Tracer) {
	defaultInstance.Store(t)
}

// Default returns the process-wide default Tracer, creating one against
// the global TracerProvider on first use.
func Default() *Tracer {
	if t := defaultInstance.Load(); t != nil {
		return t
	}
	t, err := New()
	if err != nil {
		// New without options cannot fail; keep the API total anyway.
		t = &Tracer{cfg: &Config{base64ImageMaxLength: DefaultBase64ImageMaxLength}, logger: defaultLogger, tracerProvider: otelAPI.GetTracerProvider()}
		t.tracer = t.tracerProvider.Tracer(tracerName)
	}
	defaultInstance.CompareAndSwap(nil, t)
	return defaultInstance.Load()
}
