package driver

import "fmt"

// ConfigurationError is a missing or invalid setting detected before any
// file is touched.
type ConfigurationError struct {
	Code    string
	Message string
	Cause   error
}

func (e *ConfigurationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return fmt.Sprintf("configuration error (%s): %s", e.Code, e.Message)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

func (e *ConfigurationError) Unwrap() error { return e.Cause }

func configErrorf(code, format string, args ...any) error {
	return &ConfigurationError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// OutputWriteFailure means the output directory could not be prepared.
type OutputWriteFailure struct {
	Path    string
	Message string
	Cause   error
}

func (e *OutputWriteFailure) Error() string {
	if e == nil {
		return ""
	}
	if e.Cause != nil {
		return fmt.Sprintf("output failure %s: %s: %v", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("output failure %s: %s", e.Path, e.Message)
}

func (e *OutputWriteFailure) Unwrap() error { return e.Cause }
