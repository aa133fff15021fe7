package llmtrace

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel/attribute"

	"github.com/m-mizutani/llmtrace/semconv"
)

// mapOpenAIToolDefinitions flattens tool definitions under llm.tools.N.*.
// A definition whose parameter schema does not compile is attached without
// the schema attribute; it never fails the mapping.
func mapOpenAIToolDefinitions(cfg *Config, tools []openai.Tool) []attribute.KeyValue {
	var attrs []attribute.KeyValue

	for i, tool := range tools {
		if tool.Function == nil {
			continue
		}
		attrs = append(attrs, attribute.String(toolDefKey(i, semconv.ToolName), tool.Function.Name))
		if tool.Function.Description != "" {
			attrs = append(attrs, attribute.String(toolDefKey(i, semconv.ToolDescription), tool.Function.Description))
		}

		raw := safeJSON(tool.Function.Parameters)
		if raw == "" || !validToolSchema(raw) {
			continue
		}
		key := toolDefKey(i, semconv.ToolJSONSchema)
		attrs = appendString(attrs, key, cfg.Mask(key, raw))
	}

	return attrs
}

// validToolSchema reports whether raw compiles as a JSON Schema document.
func validToolSchema(raw string) bool {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(raw))
	if err != nil {
		return false
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("tool.json", doc); err != nil {
		return false
	}
	if _, err := compiler.Compile("tool.json"); err != nil {
		return false
	}
	return true
}

func toolDefKey(index int, field string) string {
	return fmt.Sprintf("%s.%d.%s", semconv.LLMTools, index, field)
}
