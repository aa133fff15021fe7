package llmtrace_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/llmtrace"
	"github.com/sashabaranov/go-openai"
)

func newTestConfig(t *testing.T, opts ...llmtrace.ConfigOption) *llmtrace.Config {
	t.Helper()
	cfg, err := llmtrace.NewConfig(opts...)
	gt.NoError(t, err)
	return cfg
}

func chatRequest() openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model:       openai.GPT4o,
		Temperature: 0.2,
		MaxTokens:   256,
		Messages: []openai.ChatCompletionMessage{
			{Role: "system", Content: "You are terse."},
			{Role: "user", Content: "What is the capital of France?"},
		},
		Tools: []openai.Tool{
			{
				Type: openai.ToolTypeFunction,
				Function: &openai.FunctionDefinition{
					Name:        "lookup",
					Description: "Look something up",
					Parameters: map[string]any{
						"type": "object",
						"properties": map[string]any{
							"q": map[string]any{"type": "string"},
						},
					},
				},
			},
		},
	}
}

func TestMapOpenAIRequest(t *testing.T) {
	cfg := newTestConfig(t)

	m := attrsToMap(llmtrace.MapOpenAIRequest(cfg, chatRequest()))

	gt.Equal(t, m["llm.provider"], "openai")
	gt.Equal(t, m["llm.system"], "openai")
	gt.Equal(t, m["llm.model_name"], openai.GPT4o)
	gt.Equal(t, m["llm.input_messages.0.message.role"], "system")
	gt.Equal(t, m["llm.input_messages.0.message.content"], "You are terse.")
	gt.Equal(t, m["llm.input_messages.1.message.role"], "user")
	gt.Equal(t, m["llm.input_messages.1.message.content"], "What is the capital of France?")
	gt.Equal(t, m["llm.tools.0.tool.name"], "lookup")
	gt.NotEqual(t, m["llm.tools.0.tool.json_schema"], "")
	gt.S(t, m["llm.invocation_parameters"]).Contains(`"max_tokens":256`)
	gt.Equal(t, m["input.mime_type"], "application/json")
	gt.NotEqual(t, m["input.value"], "")
}

func TestMapOpenAIRequestRedaction(t *testing.T) {
	cfg := newTestConfig(t, llmtrace.WithHideInputs(), llmtrace.WithHideInvocationParameters())

	m := attrsToMap(llmtrace.MapOpenAIRequest(cfg, chatRequest()))

	gt.Equal(t, m["input.value"], llmtrace.RedactedValue)
	gt.Equal(t, m["llm.input_messages.0.message.content"], llmtrace.RedactedValue)
	gt.Equal(t, m["llm.invocation_parameters"], llmtrace.RedactedValue)
	// Roles and model stay visible; only content categories are hidden.
	gt.Equal(t, m["llm.input_messages.0.message.role"], "system")
	gt.Equal(t, m["llm.model_name"], openai.GPT4o)
}

func TestMapOpenAIRequestSkipsInvalidToolSchema(t *testing.T) {
	cfg := newTestConfig(t)

	req := chatRequest()
	req.Tools[0].Function.Parameters = map[string]any{"type": 42}

	m := attrsToMap(llmtrace.MapOpenAIRequest(cfg, req))
	gt.Equal(t, m["llm.tools.0.tool.name"], "lookup")
	_, hasSchema := m["llm.tools.0.tool.json_schema"]
	gt.False(t, hasSchema)
}

func TestMapOpenAIResponse(t *testing.T) {
	cfg := newTestConfig(t)

	resp := openai.ChatCompletionResponse{
		Model: openai.GPT4o,
		Choices: []openai.ChatCompletionChoice{
			{
				Message: openai.ChatCompletionMessage{
					Role:    "assistant",
					Content: "Paris.",
				},
				FinishReason: openai.FinishReasonStop,
			},
		},
		Usage: openai.Usage{PromptTokens: 20, CompletionTokens: 3, TotalTokens: 23},
	}

	m := attrsToMap(llmtrace.MapOpenAIResponse(cfg, resp))

	gt.Equal(t, m["output.value"], "Paris.")
	gt.Equal(t, m["output.mime_type"], "text/plain")
	gt.Equal(t, m["llm.output_messages.0.message.role"], "assistant")
	gt.Equal(t, m["llm.output_messages.0.message.content"], "Paris.")
	gt.Equal(t, m["gen_ai.usage.input_tokens"], "20")
	gt.Equal(t, m["gen_ai.usage.output_tokens"], "3")
	gt.Equal(t, m["gen_ai.usage.total_tokens"], "23")
}

func TestMapOpenAIResponseToolCallFallback(t *testing.T) {
	cfg := newTestConfig(t)

	resp := openai.ChatCompletionResponse{
		Model: openai.GPT4o,
		Choices: []openai.ChatCompletionChoice{
			{
				Message: openai.ChatCompletionMessage{
					Role: "assistant",
					ToolCalls: []openai.ToolCall{
						{
							ID:   "call_1",
							Type: openai.ToolTypeFunction,
							Function: openai.FunctionCall{
								Name:      "lookup",
								Arguments: `{"q":"x"}`,
							},
						},
					},
				},
			},
		},
	}

	m := attrsToMap(llmtrace.MapOpenAIResponse(cfg, resp))

	gt.Equal(t, m["llm.output_messages.0.message.tool_calls.0.tool_call.id"], "call_1")
	gt.Equal(t, m["llm.output_messages.0.message.tool_calls.0.tool_call.function.name"], "lookup")
	gt.Equal(t, m["llm.output_messages.0.message.tool_calls.0.tool_call.function.arguments"], `{"q":"x"}`)
	// No text, so output.value falls back to JSON.
	gt.Equal(t, m["output.mime_type"], "application/json")
	gt.S(t, m["output.value"]).Contains("lookup")
}

func TestMapOpenAIResponseUsageVisibleUnderFullRedaction(t *testing.T) {
	cfg := newTestConfig(t, llmtrace.WithHideOutputs())

	resp := openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Role: "assistant", Content: "secret"}},
		},
		Usage: openai.Usage{PromptTokens: 5, CompletionTokens: 7, TotalTokens: 12},
	}

	m := attrsToMap(llmtrace.MapOpenAIResponse(cfg, resp))
	gt.Equal(t, m["output.value"], llmtrace.RedactedValue)
	gt.Equal(t, m["llm.output_messages.0.message.content"], llmtrace.RedactedValue)
	gt.Equal(t, m["gen_ai.usage.output_tokens"], "7")
}

func TestMapOpenAIEmbedding(t *testing.T) {
	cfg := newTestConfig(t, llmtrace.WithHideEmbeddingVectors())

	reqAttrs := attrsToMap(llmtrace.MapOpenAIEmbeddingRequest(cfg, openai.EmbeddingRequest{
		Model: openai.SmallEmbedding3,
		Input: []string{"alpha", "beta"},
	}))
	gt.Equal(t, reqAttrs["embedding.model_name"], string(openai.SmallEmbedding3))
	gt.Equal(t, reqAttrs["embedding.embeddings.0.embedding.text"], "alpha")
	gt.Equal(t, reqAttrs["embedding.embeddings.1.embedding.text"], "beta")

	respAttrs := attrsToMap(llmtrace.MapOpenAIEmbeddingResponse(cfg, openai.EmbeddingResponse{
		Data: []openai.Embedding{
			{Embedding: []float32{0.1, 0.2}},
		},
		Usage: openai.Usage{PromptTokens: 4, TotalTokens: 4},
	}))
	gt.Equal(t, respAttrs["embedding.embeddings.0.embedding.vector"], llmtrace.RedactedValue)
	gt.Equal(t, respAttrs["gen_ai.usage.input_tokens"], "4")
}
