package llm

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"
)

// summaryLimit caps each per-model message in logs and aggregated errors.
const summaryLimit = 300

// ErrEmptyContent is returned for a reply without any text, which free-tier
// models send when the output was filtered or refused.
var ErrEmptyContent = errors.New("model returned empty content")

// ConfigurationError reports a gateway that cannot send anything at all.
// It is not retried against other models.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return "llm configuration error: " + e.Message
}

// StatusError is a non-2xx reply from the chat endpoint.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("chat endpoint returned HTTP %d: %s", e.Code, truncate(e.Body, summaryLimit))
}

// ChoiceError is an error object embedded in an otherwise successful reply.
type ChoiceError struct {
	Message string
}

func (e *ChoiceError) Error() string {
	return "model returned inner error: " + e.Message
}

// AllModelsExhaustedError is returned when every model in the list failed.
type AllModelsExhaustedError struct {
	Attempts []Attempt
}

func (e *AllModelsExhaustedError) Error() string {
	parts := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		parts[i] = fmt.Sprintf("%s: %s", a.Model, truncate(a.Err.Error(), summaryLimit))
	}
	return fmt.Sprintf("all %d models failed: %s", len(e.Attempts), strings.Join(parts, "; "))
}

// Unwrap returns the last model's error.
func (e *AllModelsExhaustedError) Unwrap() error {
	if len(e.Attempts) == 0 {
		return nil
	}
	return e.Attempts[len(e.Attempts)-1].Err
}

// recoverableKeywords mark provider messages about quota, rate limits,
// unknown models, timeouts and refusals.
var recoverableKeywords = []string{
	"insufficient",
	"quota",
	"rate",
	"limit",
	"exceeded",
	"payment",
	"billing",
	"credits",
	"too many requests",
	"no endpoints found",
	"not found",
	"timeout",
	"timed out",
	"empty content",
	"inner error",
	"filtered",
	"refused",
}

// IsRecoverable reports whether err is the kind of failure another model is
// likely to avoid: billing, permission, missing model, rate limit, server
// errors, empty or refused replies.
func IsRecoverable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrEmptyContent) {
		return true
	}
	var choiceErr *ChoiceError
	if errors.As(err, &choiceErr) {
		return true
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.Code {
		case http.StatusPaymentRequired, http.StatusForbidden, http.StatusNotFound,
			http.StatusRequestTimeout, http.StatusTooManyRequests:
			return true
		}
		if statusErr.Code >= 500 {
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	for _, k := range recoverableKeywords {
		if strings.Contains(msg, k) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
