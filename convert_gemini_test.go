package llmtrace_test

import (
	"testing"

	"cloud.google.com/go/vertexai/genai"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/llmtrace"
)

func TestMapGeminiRequest(t *testing.T) {
	cfg := newTestConfig(t)

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []genai.Part{genai.Text("Hello, Gemini!")},
		},
		{
			Role: "model",
			Parts: []genai.Part{
				genai.FunctionCall{
					Name: "get_weather",
					Args: map[string]any{"location": "Tokyo"},
				},
			},
		},
	}

	m := attrsToMap(llmtrace.MapGeminiRequest(cfg, "gemini-1.5-pro", contents))

	gt.Equal(t, m["llm.provider"], "google")
	gt.Equal(t, m["llm.system"], "gemini")
	gt.Equal(t, m["llm.model_name"], "gemini-1.5-pro")
	gt.Equal(t, m["llm.input_messages.0.message.role"], "user")
	gt.Equal(t, m["llm.input_messages.0.message.content"], "Hello, Gemini!")
	gt.Equal(t, m["llm.input_messages.1.message.role"], "model")
	gt.Equal(t, m["llm.input_messages.1.message.tool_calls.0.tool_call.function.name"], "get_weather")
	gt.S(t, m["llm.input_messages.1.message.tool_calls.0.tool_call.function.arguments"]).Contains(`"location":"Tokyo"`)
}

func TestMapGeminiRequestRedaction(t *testing.T) {
	cfg := newTestConfig(t, llmtrace.WithHideInputMessages())

	contents := []*genai.Content{
		{Role: "user", Parts: []genai.Part{genai.Text("secret prompt")}},
	}

	m := attrsToMap(llmtrace.MapGeminiRequest(cfg, "gemini-1.5-pro", contents))
	gt.Equal(t, m["llm.input_messages.0.message.content"], llmtrace.RedactedValue)
}

func TestMapGeminiResponse(t *testing.T) {
	cfg := newTestConfig(t)

	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{
				Content: &genai.Content{
					Role:  "model",
					Parts: []genai.Part{genai.Text("It is sunny.")},
				},
			},
		},
		UsageMetadata: &genai.UsageMetadata{
			PromptTokenCount:     12,
			CandidatesTokenCount: 4,
			TotalTokenCount:      16,
		},
	}

	m := attrsToMap(llmtrace.MapGeminiResponse(cfg, resp))

	gt.Equal(t, m["output.value"], "It is sunny.")
	gt.Equal(t, m["output.mime_type"], "text/plain")
	gt.Equal(t, m["llm.output_messages.0.message.role"], "model")
	gt.Equal(t, m["gen_ai.usage.input_tokens"], "12")
	gt.Equal(t, m["gen_ai.usage.output_tokens"], "4")
	gt.Equal(t, m["gen_ai.usage.total_tokens"], "16")
}

func TestMapGeminiResponseToolCallFallback(t *testing.T) {
	cfg := newTestConfig(t)

	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{
				Content: &genai.Content{
					Role: "model",
					Parts: []genai.Part{
						genai.FunctionCall{Name: "get_weather", Args: map[string]any{"location": "Tokyo"}},
					},
				},
			},
		},
	}

	m := attrsToMap(llmtrace.MapGeminiResponse(cfg, resp))

	// No text output, so the candidates JSON stands in for output.value.
	gt.Equal(t, m["output.mime_type"], "application/json")
	gt.S(t, m["output.value"]).Contains("get_weather")
	gt.Equal(t, m["llm.output_messages.0.message.tool_calls.0.tool_call.function.name"], "get_weather")
}

func TestMapGeminiResponseNil(t *testing.T) {
	cfg := newTestConfig(t)
	gt.Equal(t, len(llmtrace.MapGeminiResponse(cfg, nil)), 0)
}
