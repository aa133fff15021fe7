package llmtrace

import "errors"

var (
	// ErrInvalidConfig is returned by NewConfig when a policy value is
	// out of range. Config errors surface at construction time only;
	// nothing in the call path returns them.
	ErrInvalidConfig = errors.New("invalid trace config")
)
