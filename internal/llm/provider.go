// Package llm talks to the Gemini generateContent API and owns the retry and
// backoff policy for the rate-limited remote model.
package llm

import (
	"errors"
	"fmt"
	"time"
)

// Common errors returned by the client.
var (
	ErrNoAPIKey     = errors.New("llm: API key not configured")
	ErrRateLimit    = errors.New("llm: rate limit exceeded")
	ErrProviderDown = errors.New("llm: provider unavailable")
	ErrEmptyContent = errors.New("llm: response has no generated text")
)

// APIError is a non-success response from the remote API, decoded into a
// structured value so it can be classified without substring search.
type APIError struct {
	StatusCode int           // HTTP status
	Status     string        // Google RPC status, e.g. "RESOURCE_EXHAUSTED"
	Message    string        // error.message
	Body       string        // raw body, truncated
	RetryDelay time.Duration // from google.rpc.RetryInfo, zero if absent
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Body
	}
	if e.Status != "" {
		return fmt.Sprintf("gemini: HTTP %d %s: %s", e.StatusCode, e.Status, msg)
	}
	return fmt.Sprintf("gemini: HTTP %d: %s", e.StatusCode, msg)
}

// Unwrap maps well-known statuses onto the package sentinels.
func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode == 429 || e.Status == "RESOURCE_EXHAUSTED":
		return ErrRateLimit
	case e.StatusCode == 401 || e.StatusCode == 403:
		return ErrNoAPIKey
	case e.StatusCode >= 500:
		return ErrProviderDown
	}
	return nil
}

// AnalysisError reports a model call that failed after all retries.
type AnalysisError struct {
	EntityID string
	Kind     ErrorKind
	Attempts int
	Err      error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("llm: analyze %s: %s after %d attempt(s): %v", e.EntityID, e.Kind, e.Attempts, e.Err)
}

func (e *AnalysisError) Unwrap() error { return e.Err }
