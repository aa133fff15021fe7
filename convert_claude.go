package llmtrace

import (
	"github.com/anthropics/anthropic-sdk-go"
	"go.opentelemetry.io/otel/attribute"

	"github.com/m-mizutani/llmtrace/semconv"
)

// MapClaudeRequest converts an anthropic message request into canonical
// span attributes. Unrecognized content blocks are skipped, never fatal.
func MapClaudeRequest(cfg *Config, params anthropic.MessageNewParams) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(semconv.LLMProvider, semconv.ProviderAnthropic),
		attribute.String(semconv.LLMSystem, semconv.ProviderAnthropic),
		attribute.String(semconv.LLMModelName, string(params.Model)),
	}

	attrs = appendString(attrs, semconv.LLMInvocationParameters, cfg.MaskLazy(semconv.LLMInvocationParameters, func() any {
		return safeJSON(map[string]any{
			"model":       params.Model,
			"max_tokens":  params.MaxTokens,
			"temperature": params.Temperature,
			"top_p":       params.TopP,
		})
	}))

	attrs = appendString(attrs, semconv.InputValue, cfg.MaskLazy(semconv.InputValue, func() any {
		return safeJSON(params.Messages)
	}))
	attrs = appendString(attrs, semconv.InputMimeType, cfg.Mask(semconv.InputMimeType, semconv.MimeTypeJSON))

	for i, msg := range params.Messages {
		attrs = append(attrs, mapClaudeMessageParam(cfg, i, msg)...)
	}

	return attrs
}

// mapClaudeMessageParam flattens one request message. Text blocks join into
// message.content; tool_use blocks become tool_call records.
func mapClaudeMessageParam(cfg *Config, index int, msg anthropic.MessageParam) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(messageKey(semconv.LLMInputMessages, index, semconv.MessageRole), string(msg.Role)),
	}

	callIndex := 0
	for _, block := range msg.Content {
		if tb := block.OfRequestTextBlock; tb != nil && tb.Text != "" {
			key := messageKey(semconv.LLMInputMessages, index, semconv.MessageContent)
			attrs = appendString(attrs, key, cfg.Mask(key, tb.Text))
		}
		if tu := block.OfRequestToolUseBlock; tu != nil {
			attrs = append(attrs,
				attribute.String(toolCallKey(semconv.LLMInputMessages, index, callIndex, semconv.ToolCallID), tu.ID),
				attribute.String(toolCallKey(semconv.LLMInputMessages, index, callIndex, semconv.ToolCallFunctionName), tu.Name),
			)
			argKey := toolCallKey(semconv.LLMInputMessages, index, callIndex, semconv.ToolCallFunctionArgs)
			attrs = appendString(attrs, argKey, cfg.MaskLazy(argKey, func() any {
				return safeJSON(tu.Input)
			}))
			callIndex++
		}
	}

	return attrs
}

// MapClaudeResponse converts an anthropic message response into canonical
// span attributes, including token usage and stop reason.
func MapClaudeResponse(cfg *Config, msg *anthropic.Message) []attribute.KeyValue {
	if msg == nil {
		return nil
	}

	attrs := []attribute.KeyValue{
		attribute.String(semconv.LLMModelName, string(msg.Model)),
		attribute.String(messageKey(semconv.LLMOutputMessages, 0, semconv.MessageRole), string(msg.Role)),
	}

	var text string
	callIndex := 0
	for _, content := range msg.Content {
		textBlock := content.AsResponseTextBlock()
		if textBlock.Type == "text" {
			text += textBlock.Text
		}

		toolUseBlock := content.AsResponseToolUseBlock()
		if toolUseBlock.Type == "tool_use" {
			attrs = append(attrs,
				attribute.String(toolCallKey(semconv.LLMOutputMessages, 0, callIndex, semconv.ToolCallID), toolUseBlock.ID),
				attribute.String(toolCallKey(semconv.LLMOutputMessages, 0, callIndex, semconv.ToolCallFunctionName), toolUseBlock.Name),
			)
			argKey := toolCallKey(semconv.LLMOutputMessages, 0, callIndex, semconv.ToolCallFunctionArgs)
			attrs = appendString(attrs, argKey, cfg.Mask(argKey, string(toolUseBlock.Input)))
			callIndex++
		}
	}

	if text != "" {
		contentKey := messageKey(semconv.LLMOutputMessages, 0, semconv.MessageContent)
		attrs = appendString(attrs, contentKey, cfg.Mask(contentKey, text))
		attrs = appendString(attrs, semconv.OutputValue, cfg.Mask(semconv.OutputValue, text))
		attrs = appendString(attrs, semconv.OutputMimeType, cfg.Mask(semconv.OutputMimeType, semconv.MimeTypeText))
	} else if callIndex > 0 {
		attrs = appendString(attrs, semconv.OutputValue, cfg.MaskLazy(semconv.OutputValue, func() any {
			return safeJSON(msg.Content)
		}))
		attrs = appendString(attrs, semconv.OutputMimeType, cfg.Mask(semconv.OutputMimeType, semconv.MimeTypeJSON))
	}

	if msg.StopReason != "" {
		attrs = append(attrs, attribute.String(semconv.LLMStopReason, string(msg.StopReason)))
	}

	attrs = append(attrs,
		attribute.Int(semconv.UsageInputTokens, int(msg.Usage.InputTokens)),
		attribute.Int(semconv.UsageOutputTokens, int(msg.Usage.OutputTokens)),
		attribute.Int(semconv.UsageTotalTokens, int(msg.Usage.InputTokens+msg.Usage.OutputTokens)),
	)

	return attrs
}
