package llmtrace

import (
	"go.opentelemetry.io/otel/attribute"

	"github.com/m-mizutani/llmtrace/semconv"
)

// MapReconstructedMessage converts an aggregated streaming result into the
// same canonical attributes the non-streaming response path produces.
func MapReconstructedMessage(cfg *Config, msg *ReconstructedMessage) []attribute.KeyValue {
	if msg == nil {
		return nil
	}

	attrs := []attribute.KeyValue{
		attribute.String(messageKey(semconv.LLMOutputMessages, 0, semconv.MessageRole), msg.Role),
	}

	if msg.Model != "" {
		attrs = append(attrs, attribute.String(semconv.LLMModelName, msg.Model))
	}

	if msg.Content != "" {
		key := messageKey(semconv.LLMOutputMessages, 0, semconv.MessageContent)
		attrs = appendString(attrs, key, cfg.Mask(key, msg.Content))
	}

	for j, call := range msg.ToolCalls {
		attrs = append(attrs,
			attribute.String(toolCallKey(semconv.LLMOutputMessages, 0, j, semconv.ToolCallID), call.ID),
			attribute.String(toolCallKey(semconv.LLMOutputMessages, 0, j, semconv.ToolCallFunctionName), call.Name),
		)
		argKey := toolCallKey(semconv.LLMOutputMessages, 0, j, semconv.ToolCallFunctionArgs)
		args := call.Arguments
		attrs = appendString(attrs, argKey, cfg.MaskLazy(argKey, func() any {
			return safeJSON(args)
		}))
	}

	if value := msg.OutputValue(); value != "" {
		mime := semconv.MimeTypeText
		if msg.Content == "" {
			mime = semconv.MimeTypeJSON
		}
		attrs = appendString(attrs, semconv.OutputValue, cfg.Mask(semconv.OutputValue, value))
		attrs = appendString(attrs, semconv.OutputMimeType, cfg.Mask(semconv.OutputMimeType, mime))
	}

	if msg.StopReason != "" {
		attrs = append(attrs, attribute.String(semconv.LLMStopReason, msg.StopReason))
	}

	attrs = append(attrs,
		attribute.Int(semconv.UsageInputTokens, msg.Usage.InputTokens),
		attribute.Int(semconv.UsageOutputTokens, msg.Usage.OutputTokens),
		attribute.Int(semconv.UsageTotalTokens, msg.Usage.TotalTokens),
	)

	return attrs
}
