package llmtrace

import (
	"context"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/m-mizutani/llmtrace/semconv"
)

type ctxLoggerKey struct{}

var defaultLogger = slog.New(slog.DiscardHandler)

func ctxWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxLoggerKey{}, logger)
}

// LoggerFromContext returns the logger installed by the Tracer for the
// current call, or a discard logger.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(ctxLoggerKey{}).(*slog.Logger); ok {
		return logger
	}
	return defaultLogger
}

// Context attribute frames.
//
// Each group kind (session, user, metadata, tags, prompt template) has its
// own context key holding a frame with a pointer to the frame it shadows.
// Deriving a context pushes a frame; leaving the scope that derived it
// restores the prior value, including on panic, because the parent context
// is untouched. Frames of different kinds never interact, so overlapping
// scopes of different kinds restore independently.

type sessionCtxKey struct{}
type userCtxKey struct{}
type metadataCtxKey struct{}
type tagsCtxKey struct{}
type promptTemplateCtxKey struct{}

type metadataFrame struct {
	values map[string]any
	prev   *metadataFrame
}

// PromptTemplate describes the template a prompt was rendered from.
type PromptTemplate struct {
	Template  string
	Version   string
	Variables map[string]any
}

// WithSession marks the context with a session identifier. An empty id
// mints a UUIDv7 so correlated spans still share one session.
func WithSession(ctx context.Context, id string) context.Context {
	if id == "" {
		id = uuid.Must(uuid.NewV7()).String()
	}
	return context.WithValue(ctx, sessionCtxKey{}, id)
}

// SessionFromContext returns the active session id, if any.
func SessionFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionCtxKey{}).(string)
	return id, ok
}

// WithUser marks the context with a user identifier.
func WithUser(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userCtxKey{}, id)
}

// UserFromContext returns the active user id, if any.
func UserFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userCtxKey{}).(string)
	return id, ok
}

// WithMetadata pushes a metadata frame. Frames merge outer to inner when
// flattened, inner values winning per key; the outer frame is restored
// unchanged when the derived context goes out of scope.
func WithMetadata(ctx context.Context, values map[string]any) context.Context {
	prev, _ := ctx.Value(metadataCtxKey{}).(*metadataFrame)
	copied := make(map[string]any, len(values))
	for k, v := range values {
		copied[k] = v
	}
	return context.WithValue(ctx, metadataCtxKey{}, &metadataFrame{values: copied, prev: prev})
}

// MetadataFromContext returns the merged metadata visible to the current
// call, innermost frame winning on key collision.
func MetadataFromContext(ctx context.Context) map[string]any {
	frame, _ := ctx.Value(metadataCtxKey{}).(*metadataFrame)
	if frame == nil {
		return nil
	}

	// Collect frames outer-first so inner writes land last.
	var chain []*metadataFrame
	for f := frame; f != nil; f = f.prev {
		chain = append(chain, f)
	}
	merged := make(map[string]any)
	for i := len(chain) - 1; i >= 0; i-- {
		for k, v := range chain[i].values {
			merged[k] = v
		}
	}
	return merged
}

// WithTags replaces the active tag set for the derived scope.
func WithTags(ctx context.Context, tags []string) context.Context {
	copied := append([]string(nil), tags...)
	sort.Strings(copied)
	return context.WithValue(ctx, tagsCtxKey{}, copied)
}

// TagsFromContext returns the active tag set, if any.
func TagsFromContext(ctx context.Context) []string {
	tags, _ := ctx.Value(tagsCtxKey{}).([]string)
	return tags
}

// WithPromptTemplate records the prompt template for the derived scope.
func WithPromptTemplate(ctx context.Context, tmpl PromptTemplate) context.Context {
	return context.WithValue(ctx, promptTemplateCtxKey{}, tmpl)
}

// PromptTemplateFromContext returns the active prompt template, if any.
func PromptTemplateFromContext(ctx context.Context) (PromptTemplate, bool) {
	tmpl, ok := ctx.Value(promptTemplateCtxKey{}).(PromptTemplate)
	return tmpl, ok
}

// Scoped variants run fn with the frame pushed and restore by construction
// when fn returns or panics, since the caller keeps the parent context.

// ScopedSession runs fn with a session frame active.
func ScopedSession(ctx context.Context, id string, fn func(ctx context.Context) error) error {
	return fn(WithSession(ctx, id))
}

// ScopedUser runs fn with a user frame active.
func ScopedUser(ctx context.Context, id string, fn func(ctx context.Context) error) error {
	return fn(WithUser(ctx, id))
}

// ScopedMetadata runs fn with a metadata frame active.
func ScopedMetadata(ctx context.Context, values map[string]any, fn func(ctx context.Context) error) error {
	return fn(WithMetadata(ctx, values))
}

// ScopedTags runs fn with a tag frame active.
func ScopedTags(ctx context.Context, tags []string, fn func(ctx context.Context) error) error {
	return fn(WithTags(ctx, tags))
}

// ScopedPromptTemplate runs fn with a prompt template frame active.
func ScopedPromptTemplate(ctx context.Context, tmpl PromptTemplate, fn func(ctx context.Context) error) error {
	return fn(WithPromptTemplate(ctx, tmpl))
}

// ContextAttributes flattens all live frames into span attributes. Each
// group kind writes a disjoint key prefix, so kinds never collide.
func ContextAttributes(ctx context.Context) []attribute.KeyValue {
	var attrs []attribute.KeyValue

	if id, ok := SessionFromContext(ctx); ok {
		attrs = append(attrs, attribute.String(semconv.SessionID, id))
	}
	if id, ok := UserFromContext(ctx); ok {
		attrs = append(attrs, attribute.String(semconv.UserID, id))
	}
	if meta := MetadataFromContext(ctx); len(meta) > 0 {
		attrs = append(attrs, attribute.String(semconv.Metadata, safeJSON(meta)))
	}
	if tags := TagsFromContext(ctx); len(tags) > 0 {
		attrs = append(attrs, attribute.StringSlice(semconv.TagTags, tags))
	}
	if tmpl, ok := PromptTemplateFromContext(ctx); ok {
		if tmpl.Template != "" {
			attrs = append(attrs, attribute.String(semconv.LLMPromptTemplate, tmpl.Template))
		}
		if tmpl.Version != "" {
			attrs = append(attrs, attribute.String(semconv.LLMPromptTemplateVersion, tmpl.Version))
		}
		if len(tmpl.Variables) > 0 {
			attrs = append(attrs, attribute.String(semconv.LLMPromptTemplateVariables, safeJSON(tmpl.Variables)))
		}
	}

	return attrs
}
