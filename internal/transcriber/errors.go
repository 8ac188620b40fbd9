package transcriber

import (
	"fmt"
	"time"
)

// ConfigurationError reports missing or invalid credentials, binaries or
// model paths. It is raised before any work starts and is never retried.
type ConfigurationError struct {
	Backend string
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: configuration error: %s", e.Backend, e.Message)
}

// ConversionError reports a failed audio normalization.
type ConversionError struct {
	Output string // captured converter output
	Err    error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("audio conversion failed: %v", e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// RecognitionError reports a failed or unparsable recognition run.
type RecognitionError struct {
	Backend string
	Message string
	Output  string // captured tool output or raw API response
	Err     error
}

func (e *RecognitionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: recognition failed: %s", e.Backend, e.Message)
	}
	return fmt.Sprintf("%s: recognition failed: %s: %v", e.Backend, e.Message, e.Err)
}

func (e *RecognitionError) Unwrap() error { return e.Err }

// TimeoutError reports a remote job that did not finish within its poll budget.
type TimeoutError struct {
	Backend string
	Polls   int
	Elapsed time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: no result after %d polls (%s)", e.Backend, e.Polls, e.Elapsed.Round(time.Second))
}
