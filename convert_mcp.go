package llmtrace

import (
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"go.opentelemetry.io/otel/attribute"

	"github.com/m-mizutani/llmtrace/semconv"
)

// MapMCPToolCall converts an MCP tool-call request into TOOL span
// attributes. Arguments fall under the inputs category.
func MapMCPToolCall(cfg *Config, req mcp.CallToolRequest) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(semconv.ToolName, req.Params.Name),
	}

	if len(req.Params.Arguments) > 0 {
		args := req.Params.Arguments
		attrs = appendString(attrs, semconv.InputValue, cfg.MaskLazy(semconv.InputValue, func() any {
			return safeJSON(args)
		}))
		attrs = appendString(attrs, semconv.InputMimeType, cfg.Mask(semconv.InputMimeType, semconv.MimeTypeJSON))
	}

	return attrs
}

// MapMCPToolResult converts an MCP tool-call result. Text content items
// join into output.value; non-text content is skipped. The result's IsError
// flag is the caller's signal to fail the span, it is not an error here.
func MapMCPToolResult(cfg *Config, result *mcp.CallToolResult) []attribute.KeyValue {
	if result == nil {
		return nil
	}

	// Results decoded by the mcp-go client carry *mcp.TextContent; hand
	// built results often hold the value form. Accept both.
	var texts []string
	for _, content := range result.Content {
		var text string
		switch tc := content.(type) {
		case mcp.TextContent:
			text = tc.Text
		case *mcp.TextContent:
			text = tc.Text
		}
		if text != "" {
			texts = append(texts, text)
		}
	}

	var attrs []attribute.KeyValue
	if len(texts) > 0 {
		attrs = appendString(attrs, semconv.OutputValue, cfg.Mask(semconv.OutputValue, strings.Join(texts, "\n")))
		attrs = appendString(attrs, semconv.OutputMimeType, cfg.Mask(semconv.OutputMimeType, semconv.MimeTypeText))
	}

	return attrs
}
