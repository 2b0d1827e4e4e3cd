package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Error kinds reported by Kind.
const (
	KindRateLimit   = "rate_limit"
	KindInvalid     = "invalid_response"
	KindUnavailable = "unavailable"
	KindMaxTokens   = "max_tokens"
	KindDeadline    = "deadline"
	KindCanceled    = "canceled"
	KindOther       = "error"
)

// ErrRateLimit indicates the provider returned a rate limit error (429).
type ErrRateLimit struct {
	RetryAfter time.Duration
	Err        error
}

func (e *ErrRateLimit) Error() string {
	return fmt.Sprintf("rate limited (retry after %s): %v", e.RetryAfter, e.Err)
}

func (e *ErrRateLimit) Unwrap() error { return e.Err }

// ErrInvalidResponse means the content did not parse or did not match the
// requested schema.
type ErrInvalidResponse struct {
	Content json.RawMessage
	Err     error
}

func (e *ErrInvalidResponse) Error() string {
	return fmt.Sprintf("invalid LLM response: %v", e.Err)
}

func (e *ErrInvalidResponse) Unwrap() error { return e.Err }

// ErrProviderUnavailable indicates the provider is down or unreachable.
type ErrProviderUnavailable struct {
	Err error
}

func (e *ErrProviderUnavailable) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("LLM provider unavailable: %v", e.Err)
	}
	return "LLM provider unavailable"
}

func (e *ErrProviderUnavailable) Unwrap() error { return e.Err }

// ErrMaxTokensExceeded means the reply was cut off at MaxTokens.
type ErrMaxTokensExceeded struct {
	Content json.RawMessage
}

func (e *ErrMaxTokensExceeded) Error() string {
	return "LLM response truncated: max tokens exceeded"
}

// Kind classifies err for logs, request events and remote error types. It
// returns "" for nil.
func Kind(err error) string {
	var (
		rl      *ErrRateLimit
		invalid *ErrInvalidResponse
		down    *ErrProviderUnavailable
		tooLong *ErrMaxTokensExceeded
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return KindDeadline
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.As(err, &tooLong):
		return KindMaxTokens
	case errors.As(err, &invalid):
		return KindInvalid
	case errors.As(err, &rl):
		return KindRateLimit
	case errors.As(err, &down):
		return KindUnavailable
	default:
		return KindOther
	}
}

// Permanent reports whether sending the same request again cannot help.
func Permanent(err error) bool {
	switch Kind(err) {
	case KindInvalid, KindMaxTokens:
		return true
	}
	return false
}
