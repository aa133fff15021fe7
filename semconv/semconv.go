// Package semconv defines the canonical attribute vocabulary for LLM trace
// spans. Keys follow the OpenTelemetry GenAI conventions where one exists
// (gen_ai.*) and a stable dot-delimited namespace elsewhere. Consumers of
// exported traces depend on these exact strings; treat them as frozen.
package semconv

import "strings"

// Span identity and I/O.
const (
	SpanKindKey    = "fi.span.kind"
	InputValue     = "input.value"
	InputMimeType  = "input.mime_type"
	OutputValue    = "output.value"
	OutputMimeType = "output.mime_type"
)

// LLM call attributes.
//
// LLMSystem and LLMProvider are independent keys: LLMProvider names the
// hosting vendor ("openai", "anthropic", "google") while LLMSystem names the
// model family. Mappers set both and neither overwrites the other.
const (
	LLMSystem                  = "llm.system"
	LLMProvider                = "llm.provider"
	LLMModelName               = "llm.model_name"
	LLMInvocationParameters    = "llm.invocation_parameters"
	LLMInputMessages           = "llm.input_messages"
	LLMOutputMessages          = "llm.output_messages"
	LLMTools                   = "llm.tools"
	LLMStopReason              = "llm.stop_reason"
	LLMPromptTemplate          = "llm.prompt_template.template"
	LLMPromptTemplateVersion   = "llm.prompt_template.version"
	LLMPromptTemplateVariables = "llm.prompt_template.variables"
)

// Message sub-keys used in flattened llm.input_messages.N.* attributes.
const (
	MessageRole             = "message.role"
	MessageContent          = "message.content"
	MessageToolCalls        = "message.tool_calls"
	ToolCallID              = "tool_call.id"
	ToolCallFunctionName    = "tool_call.function.name"
	ToolCallFunctionArgs    = "tool_call.function.arguments"
	MessageContentsImageURL = "message_content.image.image.url"
)

// Token usage.
const (
	UsageInputTokens  = "gen_ai.usage.input_tokens"
	UsageOutputTokens = "gen_ai.usage.output_tokens"
	UsageTotalTokens  = "gen_ai.usage.total_tokens"
)

// Embedding attributes.
const (
	EmbeddingModelName = "embedding.model_name"
	EmbeddingTextKey   = "embedding.text"
	EmbeddingVectorKey = "embedding.vector"
	Embeddings         = "embedding.embeddings"
)

// Tool span attributes.
const (
	ToolName        = "tool.name"
	ToolDescription = "tool.description"
	ToolParameters  = "tool.parameters"
	ToolJSONSchema  = "tool.json_schema"
)

// Cross-cutting context attributes.
const (
	SessionID = "session.id"
	UserID    = "user.id"
	Metadata  = "metadata"
	TagTags   = "tag.tags"
)

// Error attributes recorded during status normalization.
const (
	ErrorType      = "error.type"
	ErrorMessage   = "error.message"
	HTTPStatusCode = "http.status_code"
)

// MIME type values for input.mime_type / output.mime_type.
const (
	MimeTypeText = "text/plain"
	MimeTypeJSON = "application/json"
)

// SpanKind classifies what a span represents. It is recorded under
// SpanKindKey and is orthogonal to the OTel client/internal span kind.
type SpanKind string

const (
	SpanKindLLM          SpanKind = "LLM"
	SpanKindChain        SpanKind = "CHAIN"
	SpanKindAgent        SpanKind = "AGENT"
	SpanKindTool         SpanKind = "TOOL"
	SpanKindEmbedding    SpanKind = "EMBEDDING"
	SpanKindRetriever    SpanKind = "RETRIEVER"
	SpanKindReranker     SpanKind = "RERANKER"
	SpanKindGuardrail    SpanKind = "GUARDRAIL"
	SpanKindEvaluator    SpanKind = "EVALUATOR"
	SpanKindConversation SpanKind = "CONVERSATION"
	SpanKindVectorDB     SpanKind = "VECTOR_DB"
	SpanKindUnknown      SpanKind = "UNKNOWN"
)

// Vendor names recorded under LLMProvider.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGoogle    = "google"
)

// operationKinds maps the leading segment of a structured operation name
// (e.g. "chat.completions.create" -> "chat") to a span kind.
var operationKinds = map[string]SpanKind{
	"chat":         SpanKindLLM,
	"completion":   SpanKindLLM,
	"completions":  SpanKindLLM,
	"generate":     SpanKindLLM,
	"messages":     SpanKindLLM,
	"embedding":    SpanKindEmbedding,
	"embeddings":   SpanKindEmbedding,
	"tool":         SpanKindTool,
	"tools":        SpanKindTool,
	"agent":        SpanKindAgent,
	"chain":        SpanKindChain,
	"retriever":    SpanKindRetriever,
	"retrieval":    SpanKindRetriever,
	"rerank":       SpanKindReranker,
	"guardrail":    SpanKindGuardrail,
	"evaluator":    SpanKindEvaluator,
	"conversation": SpanKindConversation,
	"vector_db":    SpanKindVectorDB,
	"query":        SpanKindVectorDB,
}

// InferSpanKind derives a span kind from a dot-delimited operation name by
// its first segment. Unknown prefixes map to SpanKindUnknown, never an error.
func InferSpanKind(operation string) SpanKind {
	prefix, _, _ := strings.Cut(operation, ".")
	if kind, ok := operationKinds[strings.ToLower(prefix)]; ok {
		return kind
	}
	return SpanKindUnknown
}
