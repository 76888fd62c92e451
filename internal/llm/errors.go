package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// FailureKind says why a call produced no usable completion.
type FailureKind int

const (
	// Unreachable covers network errors, 5xx answers and a missing backend.
	Unreachable FailureKind = iota + 1
	// Throttled is a 429 from the backend.
	Throttled
	// Malformed is a reply that is not JSON, breaks the schema or makes no
	// sense as a question.
	Malformed
	// Truncated is a reply cut off at MaxTokens.
	Truncated
)

func (k FailureKind) String() string {
	switch k {
	case Unreachable:
		return "unreachable"
	case Throttled:
		return "throttled"
	case Malformed:
		return "malformed"
	case Truncated:
		return "truncated"
	default:
		return "other"
	}
}

// CallError is what every adapter returns for a failed call.
type CallError struct {
	Kind FailureKind
	// RetryAfter is the backend's hint, set only for Throttled.
	RetryAfter time.Duration
	// Body is the offending reply for Malformed and Truncated.
	Body json.RawMessage
	Err  error
}

func (e *CallError) Error() string {
	if e.Err == nil {
		return "llm call " + e.Kind.String()
	}
	return fmt.Sprintf("llm call %s: %v", e.Kind, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

// FailureOf returns the kind of the first CallError in err's chain, or 0.
func FailureOf(err error) FailureKind {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return 0
}

func unreachable(err error) *CallError {
	return &CallError{Kind: Unreachable, Err: err}
}

func malformed(body []byte, err error) *CallError {
	return &CallError{Kind: Malformed, Body: body, Err: err}
}

func truncated(body []byte) *CallError {
	return &CallError{Kind: Truncated, Body: body}
}

// byStatus classifies a failed HTTP exchange with any backend.
func byStatus(status int, err error) *CallError {
	if status == http.StatusTooManyRequests {
		return &CallError{Kind: Throttled, Err: err}
	}
	return unreachable(err)
}
