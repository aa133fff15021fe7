package llmtrace

import (
	"cloud.google.com/go/vertexai/genai"
	"go.opentelemetry.io/otel/attribute"

	"github.com/m-mizutani/llmtrace/semconv"
)

// MapGeminiRequest converts vertex gemini request contents into canonical
// span attributes. The model name travels separately because the genai SDK
// binds it to the model handle rather than the request.
func MapGeminiRequest(cfg *Config, model string, contents []*genai.Content) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(semconv.LLMProvider, semconv.ProviderGoogle),
		attribute.String(semconv.LLMSystem, "gemini"),
		attribute.String(semconv.LLMModelName, model),
	}

	attrs = appendString(attrs, semconv.InputValue, cfg.MaskLazy(semconv.InputValue, func() any {
		return safeJSON(contents)
	}))
	attrs = appendString(attrs, semconv.InputMimeType, cfg.Mask(semconv.InputMimeType, semconv.MimeTypeJSON))

	for i, content := range contents {
		if content == nil {
			continue
		}
		attrs = append(attrs, mapGeminiContent(cfg, semconv.LLMInputMessages, i, content)...)
	}

	return attrs
}

// mapGeminiContent flattens one genai content entry. Only text and function
// call parts are interpreted; other part types are skipped.
func mapGeminiContent(cfg *Config, prefix string, index int, content *genai.Content) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(messageKey(prefix, index, semconv.MessageRole), content.Role),
	}

	var text string
	callIndex := 0
	for _, part := range content.Parts {
		switch p := part.(type) {
		case genai.Text:
			text += string(p)
		case genai.FunctionCall:
			attrs = append(attrs,
				attribute.String(toolCallKey(prefix, index, callIndex, semconv.ToolCallFunctionName), p.Name),
			)
			argKey := toolCallKey(prefix, index, callIndex, semconv.ToolCallFunctionArgs)
			args := p.Args
			attrs = appendString(attrs, argKey, cfg.MaskLazy(argKey, func() any {
				return safeJSON(args)
			}))
			callIndex++
		}
	}

	if text != "" {
		key := messageKey(prefix, index, semconv.MessageContent)
		attrs = appendString(attrs, key, cfg.Mask(key, text))
	}

	return attrs
}

// MapGeminiResponse converts a vertex gemini response into canonical span
// attributes, including usage metadata when the API reported it.
func MapGeminiResponse(cfg *Config, resp *genai.GenerateContentResponse) []attribute.KeyValue {
	if resp == nil {
		return nil
	}

	var attrs []attribute.KeyValue
	var text string
	toolCalls := 0

	for i, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		attrs = append(attrs, mapGeminiContent(cfg, semconv.LLMOutputMessages, i, candidate.Content)...)

		for _, part := range candidate.Content.Parts {
			switch p := part.(type) {
			case genai.Text:
				text += string(p)
			case genai.FunctionCall:
				toolCalls++
			}
		}
	}

	if text != "" {
		attrs = appendString(attrs, semconv.OutputValue, cfg.Mask(semconv.OutputValue, text))
		attrs = appendString(attrs, semconv.OutputMimeType, cfg.Mask(semconv.OutputMimeType, semconv.MimeTypeText))
	} else if toolCalls > 0 {
		attrs = appendString(attrs, semconv.OutputValue, cfg.MaskLazy(semconv.OutputValue, func() any {
			return safeJSON(resp.Candidates)
		}))
		attrs = appendString(attrs, semconv.OutputMimeType, cfg.Mask(semconv.OutputMimeType, semconv.MimeTypeJSON))
	}

	if resp.UsageMetadata != nil {
		attrs = append(attrs,
			attribute.Int(semconv.UsageInputTokens, int(resp.UsageMetadata.PromptTokenCount)),
			attribute.Int(semconv.UsageOutputTokens, int(resp.UsageMetadata.CandidatesTokenCount)),
			attribute.Int(semconv.UsageTotalTokens, int(resp.UsageMetadata.TotalTokenCount)),
		)
	}

	return attrs
}
