package rules

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownOperator is returned for operators outside the supported set.
	ErrUnknownOperator = errors.New("unknown operator")
	// ErrInvalidPattern is an evaluation error for patterns that do not compile.
	ErrInvalidPattern = errors.New("invalid pattern")
	// ErrUnknownCategory is returned when running a category the active ruleset lacks.
	ErrUnknownCategory = errors.New("unknown category")
	// ErrMissingVersion rejects documents without a version key.
	ErrMissingVersion = errors.New("missing version")
)

// ConfigError reports a rule document that cannot be loaded. It is fatal at
// construction and leaves the active ruleset untouched on reload.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("rule config: %v", e.Err)
	}
	return fmt.Sprintf("rule config: %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func configErr(path string, format string, args ...any) *ConfigError {
	return &ConfigError{Path: path, Err: fmt.Errorf(format, args...)}
}

// IsConfigError reports whether err is a rule configuration error.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
