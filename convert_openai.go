package llmtrace

import (
	"fmt"

	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel/attribute"

	"github.com/m-mizutani/llmtrace/semconv"
)

// MapOpenAIRequest converts an OpenAI chat completion request into canonical
// span attributes. It never fails: fields that can not be interpreted are
// omitted, and all free text passes through the masking policy.
func MapOpenAIRequest(cfg *Config, req openai.ChatCompletionRequest) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(semconv.LLMProvider, semconv.ProviderOpenAI),
		attribute.String(semconv.LLMSystem, semconv.ProviderOpenAI),
		attribute.String(semconv.LLMModelName, req.Model),
	}

	attrs = appendString(attrs, semconv.LLMInvocationParameters, cfg.MaskLazy(semconv.LLMInvocationParameters, func() any {
		return safeJSON(map[string]any{
			"model":       req.Model,
			"temperature": req.Temperature,
			"top_p":       req.TopP,
			"max_tokens":  req.MaxTokens,
			"n":           req.N,
			"stream":      req.Stream,
		})
	}))

	attrs = appendString(attrs, semconv.InputValue, cfg.MaskLazy(semconv.InputValue, func() any {
		return safeJSON(req)
	}))
	attrs = appendString(attrs, semconv.InputMimeType, cfg.Mask(semconv.InputMimeType, semconv.MimeTypeJSON))

	for i, msg := range req.Messages {
		attrs = append(attrs, mapOpenAIMessage(cfg, semconv.LLMInputMessages, i, msg)...)
	}

	attrs = append(attrs, mapOpenAIToolDefinitions(cfg, req.Tools)...)

	return attrs
}

// mapOpenAIMessage flattens one chat message under prefix.N.message.*.
func mapOpenAIMessage(cfg *Config, prefix string, index int, msg openai.ChatCompletionMessage) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(messageKey(prefix, index, semconv.MessageRole), msg.Role),
	}

	if msg.Content != "" {
		key := messageKey(prefix, index, semconv.MessageContent)
		attrs = appendString(attrs, key, cfg.Mask(key, msg.Content))
	}

	// Multi-part content: text parts attach as message.content, image
	// parts go through the image policy.
	for _, part := range msg.MultiContent {
		switch part.Type {
		case openai.ChatMessagePartTypeText:
			key := messageKey(prefix, index, semconv.MessageContent)
			attrs = appendString(attrs, key, cfg.Mask(key, part.Text))
		case openai.ChatMessagePartTypeImageURL:
			if part.ImageURL != nil {
				key := fmt.Sprintf("%s.%d.message.contents.0.%s", prefix, index, semconv.MessageContentsImageURL)
				attrs = appendString(attrs, key, cfg.MaskImageURL(key, part.ImageURL.URL))
			}
		}
	}

	for j, call := range msg.ToolCalls {
		attrs = append(attrs,
			attribute.String(toolCallKey(prefix, index, j, semconv.ToolCallID), call.ID),
			attribute.String(toolCallKey(prefix, index, j, semconv.ToolCallFunctionName), call.Function.Name),
		)
		argKey := toolCallKey(prefix, index, j, semconv.ToolCallFunctionArgs)
		attrs = appendString(attrs, argKey, cfg.Mask(argKey, call.Function.Arguments))
	}

	return attrs
}

// MapOpenAIResponse converts an OpenAI chat completion response into
// canonical span attributes, including token usage.
func MapOpenAIResponse(cfg *Config, resp openai.ChatCompletionResponse) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(semconv.LLMModelName, resp.Model),
	}

	for i, choice := range resp.Choices {
		attrs = append(attrs, mapOpenAIMessage(cfg, semconv.LLMOutputMessages, i, choice.Message)...)
	}

	if len(resp.Choices) > 0 {
		msg := resp.Choices[0].Message
		value := msg.Content
		mime := semconv.MimeTypeText
		if value == "" && len(msg.ToolCalls) > 0 {
			value = safeJSON(msg.ToolCalls)
			mime = semconv.MimeTypeJSON
		}
		if value != "" {
			attrs = appendString(attrs, semconv.OutputValue, cfg.Mask(semconv.OutputValue, value))
			attrs = appendString(attrs, semconv.OutputMimeType, cfg.Mask(semconv.OutputMimeType, mime))
		}
	}

	attrs = append(attrs,
		attribute.Int(semconv.UsageInputTokens, resp.Usage.PromptTokens),
		attribute.Int(semconv.UsageOutputTokens, resp.Usage.CompletionTokens),
		attribute.Int(semconv.UsageTotalTokens, resp.Usage.TotalTokens),
	)

	return attrs
}

// MapOpenAIEmbeddingRequest converts an embedding request. The source texts
// fall under the inputs category; vectors are handled on the response side.
func MapOpenAIEmbeddingRequest(cfg *Config, req openai.EmbeddingRequest) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(semconv.LLMProvider, semconv.ProviderOpenAI),
		attribute.String(semconv.EmbeddingModelName, string(req.Model)),
	}

	for i, text := range embeddingInputs(req.Input) {
		key := embeddingKey(i, semconv.EmbeddingTextKey)
		attrs = appendString(attrs, key, cfg.Mask(key, text))
	}

	return attrs
}

// embeddingInputs normalizes the untyped embedding input field. Shapes it
// does not recognize yield nothing rather than an error.
func embeddingInputs(input any) []string {
	switch v := input.(type) {
	case string:
		return []string{v}
	case []string:
		return v
	case []any:
		texts := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				texts = append(texts, s)
			}
		}
		return texts
	default:
		return nil
	}
}

// MapOpenAIEmbeddingResponse converts an embedding response. Vectors are
// governed by the embedding-vector redaction switch and serialized lazily
// so hiding them skips the work entirely.
func MapOpenAIEmbeddingResponse(cfg *Config, resp openai.EmbeddingResponse) []attribute.KeyValue {
	var attrs []attribute.KeyValue

	for i, emb := range resp.Data {
		key := embeddingKey(i, semconv.EmbeddingVectorKey)
		vector := emb.Embedding
		attrs = appendString(attrs, key, cfg.MaskLazy(key, func() any {
			return safeJSON(vector)
		}))
	}

	attrs = append(attrs,
		attribute.Int(semconv.UsageInputTokens, resp.Usage.PromptTokens),
		attribute.Int(semconv.UsageTotalTokens, resp.Usage.TotalTokens),
	)

	return attrs
}

func messageKey(prefix string, index int, field string) string {
	return fmt.Sprintf("%s.%d.%s", prefix, index, field)
}

func toolCallKey(prefix string, msgIndex, callIndex int, field string) string {
	return fmt.Sprintf("%s.%d.%s.%d.%s", prefix, msgIndex, semconv.MessageToolCalls, callIndex, field)
}

func embeddingKey(index int, field string) string {
	return fmt.Sprintf("%s.%d.%s", semconv.Embeddings, index, field)
}

// appendString attaches a masked value when it is a non-empty string. The
// mask helpers return nil for absent values; those are omitted.
func appendString(attrs []attribute.KeyValue, key string, value any) []attribute.KeyValue {
	s, ok := value.(string)
	if !ok || s == "" {
		return attrs
	}
	return append(attrs, attribute.String(key, s))
}
