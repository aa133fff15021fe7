package llmtrace

import "strings"

// attributeCategory is the redaction category a canonical key belongs to.
// The routing is static and total: every key lands in exactly one category,
// with unclassified keys always visible.
type attributeCategory int

const (
	categoryVisible attributeCategory = iota
	categoryInputs
	categoryOutputs
	categoryInputMessages
	categoryOutputMessages
	categoryInputImages
	categoryEmbeddingVectors
	categoryInvocationParameters
)

// categoryOf routes a canonical attribute key to its redaction category.
// Image content inside input messages is classified before the message
// itself so the narrower switch wins.
func categoryOf(key string) attributeCategory {
	switch {
	case strings.HasPrefix(key, "llm.input_messages."):
		if strings.HasSuffix(key, "message_content.image.image.url") {
			return categoryInputImages
		}
		return categoryInputMessages
	case strings.HasPrefix(key, "llm.output_messages."):
		return categoryOutputMessages
	case key == "input.value" || key == "input.mime_type":
		return categoryInputs
	case key == "output.value" || key == "output.mime_type":
		return categoryOutputs
	case strings.HasPrefix(key, "embedding.embeddings.") && strings.HasSuffix(key, "embedding.vector"):
		return categoryEmbeddingVectors
	case strings.HasPrefix(key, "embedding.embeddings.") && strings.HasSuffix(key, "embedding.text"):
		return categoryInputs
	case key == "llm.invocation_parameters":
		return categoryInvocationParameters
	default:
		return categoryVisible
	}
}

// hidden reports whether the category is redacted under this policy. The
// message categories are also covered by the broader input/output switches.
func (c *Config) hidden(cat attributeCategory) bool {
	switch cat {
	case categoryInputs:
		return c.hideInputs
	case categoryOutputs:
		return c.hideOutputs
	case categoryInputMessages:
		return c.hideInputMessages || c.hideInputs
	case categoryOutputMessages:
		return c.hideOutputMessages || c.hideOutputs
	case categoryInputImages:
		return c.hideInputImages || c.hideInputMessages || c.hideInputs
	case categoryEmbeddingVectors:
		return c.hideEmbeddingVectors
	case categoryInvocationParameters:
		return c.hideInvocationParameters
	default:
		return false
	}
}

// Mask returns value unchanged unless the category of key is hidden, in
// which case it returns RedactedValue. A nil value stays nil regardless of
// policy.
func (c *Config) Mask(key string, value any) any {
	if value == nil {
		return nil
	}
	if c.hidden(categoryOf(key)) {
		return RedactedValue
	}
	return value
}

// MaskLazy is Mask for values that are expensive to produce. When the key
// is hidden the factory is never invoked, so serialization cost is skipped
// entirely. A nil result from the factory stays nil.
func (c *Config) MaskLazy(key string, factory func() any) any {
	if c.hidden(categoryOf(key)) {
		return RedactedValue
	}
	if factory == nil {
		return nil
	}
	return factory()
}

// MaskString is Mask narrowed to string values, for call sites that attach
// string attributes directly. Empty strings pass through unchanged.
func (c *Config) MaskString(key, value string) string {
	if value == "" {
		return ""
	}
	if c.hidden(categoryOf(key)) {
		return RedactedValue
	}
	return value
}

// MaskImageURL applies the input-image policy to one image URL. Inlined
// base64 data URLs longer than the configured limit are redacted even when
// the category itself is visible.
func (c *Config) MaskImageURL(key, url string) string {
	if c.hidden(categoryInputImages) || c.hidden(categoryOf(key)) {
		return RedactedValue
	}
	if strings.HasPrefix(url, "data:") && len(url) > c.base64ImageMaxLength {
		return RedactedValue
	}
	return url
}
