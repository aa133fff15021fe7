package llmtrace

import (
	"os"
	"strconv"

	"github.com/m-mizutani/goerr/v2"
)

// RedactedValue replaces any attribute whose category is hidden by the
// active Config. The exact string is part of the exported trace contract.
const RedactedValue = "__REDACTED__"

// DefaultBase64ImageMaxLength is the largest inlined base64 image URL that
// is attached verbatim; longer payloads are replaced with RedactedValue.
const DefaultBase64ImageMaxLength = 32_000

// Config is the immutable redaction policy consulted by the attribute
// mappers. Construct it once per Tracer via NewConfig; there is no way to
// mutate an existing instance, build a new one instead.
type Config struct {
	hideInputs               bool
	hideOutputs              bool
	hideInputMessages        bool
	hideOutputMessages       bool
	hideInputImages          bool
	hideEmbeddingVectors     bool
	hideInvocationParameters bool
	base64ImageMaxLength     int
}

// ConfigOption configures a Config under construction.
type ConfigOption func(*Config)

// WithHideInputs hides input.value and, transitively, all input messages.
func WithHideInputs() ConfigOption {
	return func(c *Config) { c.hideInputs = true }
}

// WithHideOutputs hides output.value and, transitively, all output messages.
func WithHideOutputs() ConfigOption {
	return func(c *Config) { c.hideOutputs = true }
}

// WithHideInputMessages hides the flattened llm.input_messages attributes.
func WithHideInputMessages() ConfigOption {
	return func(c *Config) { c.hideInputMessages = true }
}

// WithHideOutputMessages hides the flattened llm.output_messages attributes.
func WithHideOutputMessages() ConfigOption {
	return func(c *Config) { c.hideOutputMessages = true }
}

// WithHideInputImages hides image content carried inside input messages.
func WithHideInputImages() ConfigOption {
	return func(c *Config) { c.hideInputImages = true }
}

// WithHideEmbeddingVectors hides raw embedding vectors. Embedding source
// text is governed by the inputs category, not this switch.
func WithHideEmbeddingVectors() ConfigOption {
	return func(c *Config) { c.hideEmbeddingVectors = true }
}

// WithHideInvocationParameters hides llm.invocation_parameters.
func WithHideInvocationParameters() ConfigOption {
	return func(c *Config) { c.hideInvocationParameters = true }
}

// WithBase64ImageMaxLength caps the length of inlined base64 image URLs.
func WithBase64ImageMaxLength(n int) ConfigOption {
	return func(c *Config) { c.base64ImageMaxLength = n }
}

// NewConfig builds an immutable Config. Invalid policy values fail here,
// never at call time.
func NewConfig(options ...ConfigOption) (*Config, error) {
	cfg := &Config{
		base64ImageMaxLength: DefaultBase64ImageMaxLength,
	}
	for _, opt := range options {
		opt(cfg)
	}

	if cfg.base64ImageMaxLength < 0 {
		return nil, goerr.Wrap(ErrInvalidConfig, "base64 image max length must not be negative", goerr.V("length", cfg.base64ImageMaxLength))
	}

	return cfg, nil
}

// Environment variable names read by NewConfigFromEnv.
const (
	envHideInputs               = "LLMTRACE_HIDE_INPUTS"
	envHideOutputs              = "LLMTRACE_HIDE_OUTPUTS"
	envHideInputMessages        = "LLMTRACE_HIDE_INPUT_MESSAGES"
	envHideOutputMessages       = "LLMTRACE_HIDE_OUTPUT_MESSAGES"
	envHideInputImages          = "LLMTRACE_HIDE_INPUT_IMAGES"
	envHideEmbeddingVectors     = "LLMTRACE_HIDE_EMBEDDING_VECTORS"
	envHideInvocationParameters = "LLMTRACE_HIDE_INVOCATION_PARAMETERS"
	envBase64ImageMaxLength     = "LLMTRACE_BASE64_IMAGE_MAX_LENGTH"
)

// NewConfigFromEnv builds a Config from LLMTRACE_* environment switches.
// Extra options are applied on top of the environment values.
func NewConfigFromEnv(options ...ConfigOption) (*Config, error) {
	var opts []ConfigOption

	flags := map[string]ConfigOption{
		envHideInputs:               WithHideInputs(),
		envHideOutputs:              WithHideOutputs(),
		envHideInputMessages:        WithHideInputMessages(),
		envHideOutputMessages:       WithHideOutputMessages(),
		envHideInputImages:          WithHideInputImages(),
		envHideEmbeddingVectors:     WithHideEmbeddingVectors(),
		envHideInvocationParameters: WithHideInvocationParameters(),
	}
	for name, opt := range flags {
		if v, ok := os.LookupEnv(name); ok {
			enabled, err := strconv.ParseBool(v)
			if err != nil {
				return nil, goerr.Wrap(ErrInvalidConfig, "invalid boolean environment variable", goerr.V("name", name), goerr.V("value", v))
			}
			if enabled {
				opts = append(opts, opt)
			}
		}
	}

	if v, ok := os.LookupEnv(envBase64ImageMaxLength); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, goerr.Wrap(ErrInvalidConfig, "invalid integer environment variable", goerr.V("name", envBase64ImageMaxLength), goerr.V("value", v))
		}
		opts = append(opts, WithBase64ImageMaxLength(n))
	}

	return NewConfig(append(opts, options...)...)
}
