package llmtrace_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/llmtrace"
	"github.com/m-mizutani/llmtrace/internal"
	"github.com/m-mizutani/llmtrace/semconv"
	"go.opentelemetry.io/otel/codes"
	sdkTrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupTracer(t *testing.T, opts ...llmtrace.Option) (*llmtrace.Tracer, *tracetest.InMemoryExporter) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdkTrace.NewTracerProvider(
		sdkTrace.WithSyncer(exporter),
	)
	tracer, err := llmtrace.New(append([]llmtrace.Option{
		llmtrace.WithTracerProvider(tp),
		llmtrace.WithLogger(internal.TestLogger()),
	}, opts...)...)
	gt.NoError(t, err)
	return tracer, exporter
}

func spanAttrs(stub tracetest.SpanStub) map[string]string {
	return attrsToMap(stub.Attributes)
}

// waitForSpans polls the exporter until n spans arrive or the deadline
// passes, for paths that finalize in a background goroutine.
func waitForSpans(t *testing.T, exporter *tracetest.InMemoryExporter, n int) tracetest.SpanStubs {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if spans := exporter.GetSpans(); len(spans) >= n {
			return spans
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d spans, got %d", n, len(exporter.GetSpans()))
	return nil
}

func TestWithSpanSuccessDefaultsToOK(t *testing.T) {
	tracer, exporter := setupTracer(t)

	err := tracer.WithSpan(context.Background(), "chat.completions.create", semconv.SpanKindLLM,
		func(ctx context.Context) error { return nil })
	gt.NoError(t, err)

	spans := exporter.GetSpans()
	gt.Equal(t, len(spans), 1)
	gt.Equal(t, spans[0].Name, "chat.completions.create")
	gt.Equal(t, spans[0].Status.Code, codes.Ok)
	gt.Equal(t, spanAttrs(spans[0])["fi.span.kind"], "LLM")
}

func TestWithSpanErrorPropagatesUnchanged(t *testing.T) {
	tracer, exporter := setupTracer(t)

	callErr := errors.New("vendor exploded")
	err := tracer.WithSpan(context.Background(), "chat.completions.create", semconv.SpanKindLLM,
		func(ctx context.Context) error { return callErr })

	// The original error value reaches the caller, not a wrapped copy.
	gt.True(t, errors.Is(err, callErr))
	gt.Equal(t, err.Error(), "vendor exploded")

	spans := exporter.GetSpans()
	gt.Equal(t, len(spans), 1)
	gt.Equal(t, spans[0].Status.Code, codes.Error)
	gt.Equal(t, len(spans[0].Events), 1) // exactly one recorded exception

	m := spanAttrs(spans[0])
	gt.Equal(t, m["error.type"], "errors.errorString")
	gt.Equal(t, m["error.message"], "vendor exploded")
}

func TestWithSpanPanicClosesSpanAndRepanics(t *testing.T) {
	tracer, exporter := setupTracer(t)

	func() {
		defer func() {
			r := recover()
			gt.Equal(t, r, any("boom"))
		}()
		_ = tracer.WithSpan(context.Background(), "chat.completions.create", semconv.SpanKindLLM,
			func(ctx context.Context) error { panic("boom") })
	}()

	spans := exporter.GetSpans()
	gt.Equal(t, len(spans), 1)
	gt.Equal(t, spans[0].Status.Code, codes.Error)
}

func TestSpanEndIsIdempotent(t *testing.T) {
	tracer, exporter := setupTracer(t)

	_, span := tracer.Start(context.Background(), "chat.completions.create", semconv.SpanKindLLM)
	span.End(nil)
	span.End(errors.New("late failure"))
	span.End(nil)

	spans := exporter.GetSpans()
	gt.Equal(t, len(spans), 1)
	// The first End settled the span; the late error changed nothing.
	gt.Equal(t, spans[0].Status.Code, codes.Ok)
}

func TestSpanFailOverridesDefaultOK(t *testing.T) {
	tracer, exporter := setupTracer(t)

	err := tracer.WithSpan(context.Background(), "chat.completions.create", semconv.SpanKindLLM,
		func(ctx context.Context) error {
			// Vendor returned a non-success result without a Go error.
			llmtrace.SpanFromContext(ctx).Fail("upstream filtered the response")
			return nil
		})
	gt.NoError(t, err)

	spans := exporter.GetSpans()
	gt.Equal(t, len(spans), 1)
	gt.Equal(t, spans[0].Status.Code, codes.Error)
	gt.Equal(t, spans[0].Status.Description, "upstream filtered the response")
}

func TestSpanCarriesContextFrames(t *testing.T) {
	tracer, exporter := setupTracer(t)

	ctx := llmtrace.WithUser(llmtrace.WithSession(context.Background(), "s1"), "u1")
	err := tracer.WithSpan(ctx, "chat.completions.create", semconv.SpanKindLLM,
		func(ctx context.Context) error { return nil })
	gt.NoError(t, err)

	// A second span after the frames are out of scope carries neither.
	err = tracer.WithSpan(context.Background(), "chat.completions.create", semconv.SpanKindLLM,
		func(ctx context.Context) error { return nil })
	gt.NoError(t, err)

	spans := exporter.GetSpans()
	gt.Equal(t, len(spans), 2)

	first := spanAttrs(spans[0])
	gt.Equal(t, first["session.id"], "s1")
	gt.Equal(t, first["user.id"], "u1")

	second := spanAttrs(spans[1])
	_, hasSession := second["session.id"]
	_, hasUser := second["user.id"]
	gt.False(t, hasSession)
	gt.False(t, hasUser)
}

func TestStartInfersKindFromOperationName(t *testing.T) {
	tracer, exporter := setupTracer(t)

	_, span := tracer.Start(context.Background(), "embeddings.create", "")
	gt.Equal(t, span.Name(), "embeddings.create")
	gt.Equal(t, span.Kind(), semconv.SpanKindEmbedding)
	span.End(nil)

	spans := exporter.GetSpans()
	gt.Equal(t, len(spans), 1)
	gt.Equal(t, spanAttrs(spans[0])["fi.span.kind"], "EMBEDDING")
}

func TestNestedSpansShareTrace(t *testing.T) {
	tracer, exporter := setupTracer(t)

	err := tracer.WithSpan(context.Background(), "agent.run", semconv.SpanKindAgent,
		func(ctx context.Context) error {
			return tracer.WithSpan(ctx, "chat.completions.create", semconv.SpanKindLLM,
				func(ctx context.Context) error { return nil })
		})
	gt.NoError(t, err)

	spans := exporter.GetSpans()
	gt.Equal(t, len(spans), 2)
	gt.Equal(t, spans[0].SpanContext.TraceID(), spans[1].SpanContext.TraceID())
	gt.Equal(t, spans[0].Parent.SpanID(), spans[1].SpanContext.SpanID())
}

func TestTraceStreamFinalizesWithoutCaller(t *testing.T) {
	tracer, exporter := setupTracer(t)

	src := make(chan llmtrace.StreamEvent)
	caller, _ := tracer.TraceStream(context.Background(), "messages.stream", semconv.SpanKindLLM, src)

	// Caller consumes its copy concurrently; the span finalizes when the
	// aggregator's copy is exhausted.
	go func() {
		for range caller {
		}
	}()

	for _, ev := range textAndToolEvents() {
		src <- ev
	}
	close(src)

	spans := waitForSpans(t, exporter, 1)
	gt.Equal(t, spans[0].Status.Code, codes.Ok)

	m := spanAttrs(spans[0])
	gt.Equal(t, m["output.value"], "Hi")
	gt.Equal(t, m["llm.output_messages.0.message.role"], "assistant")
	gt.Equal(t, m["llm.output_messages.0.message.tool_calls.0.tool_call.function.name"], "lookup")
	gt.Equal(t, m["gen_ai.usage.input_tokens"], "10")
	gt.Equal(t, m["gen_ai.usage.output_tokens"], "5")
}

func TestTraceStreamFinalizesWithAbandonedCaller(t *testing.T) {
	tracer, exporter := setupTracer(t)

	src := make(chan llmtrace.StreamEvent)
	caller, _ := tracer.TraceStream(context.Background(), "messages.stream", semconv.SpanKindLLM, src)
	_ = caller // the caller walks away without ever receiving

	for _, ev := range textAndToolEvents() {
		src <- ev
	}
	close(src)

	spans := waitForSpans(t, exporter, 1)
	gt.Equal(t, spans[0].Status.Code, codes.Ok)

	m := spanAttrs(spans[0])
	gt.Equal(t, m["output.value"], "Hi")
	gt.Equal(t, m["gen_ai.usage.total_tokens"], "15")
}

func TestTraceStreamEarlyFailureBeatsAggregation(t *testing.T) {
	tracer, exporter := setupTracer(t)

	src := make(chan llmtrace.StreamEvent)
	caller, span := tracer.TraceStream(context.Background(), "messages.stream", semconv.SpanKindLLM, src)

	// The vendor call failed after the span opened; the adapter closes the
	// span with the error and the aggregator's later End is a no-op.
	span.End(errors.New("stream setup failed"))
	close(src)
	for range caller {
	}

	spans := waitForSpans(t, exporter, 1)
	gt.Equal(t, len(spans), 1)
	gt.Equal(t, spans[0].Status.Code, codes.Error)
}

func TestDefaultTracerHolder(t *testing.T) {
	tracer, _ := setupTracer(t)

	llmtrace.SetDefault(tracer)
	gt.Equal(t, llmtrace.Default(), tracer)
}
