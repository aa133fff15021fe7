package llmtrace

import (
	"encoding/json"
	"fmt"
)

// safeJSON serializes v for attribute attachment. It never fails: values
// that json.Marshal rejects (cycles, channels, NaN) degrade to a fmt
// representation so a bad payload can not break the traced call.
func safeJSON(v any) string {
	if v == nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%+v", v)
	}
	return string(b)
}

// parseToolArguments parses an accumulated tool-call argument string.
// Malformed or partial JSON yields an empty object rather than an error;
// a truncated stream must not abort attribute extraction.
func parseToolArguments(raw string) map[string]any {
	if raw == "" {
		return map[string]any{}
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil || args == nil {
		return map[string]any{}
	}
	return args
}
