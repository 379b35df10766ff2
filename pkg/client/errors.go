package client

import (
	"errors"
	"fmt"
)

// Common errors returned by the client and its callers.
var (
	// ErrNoResults is returned when the API reports an empty result set
	// where at least one result was expected.
	ErrNoResults = errors.New("no results in specified parameters")

	// ErrContextCancelled is returned when the context is cancelled while
	// waiting out a cooldown or backoff.
	ErrContextCancelled = errors.New("context cancelled")
)

// Kind classifies a Formsite API outcome.
type Kind string

const (
	// KindRateLimit represents HTTP 429 (too many requests or server busy).
	KindRateLimit Kind = "rate_limit"

	// KindAuth represents HTTP 401 (missing or invalid authentication).
	KindAuth Kind = "auth"

	// KindForbidden represents HTTP 403.
	KindForbidden Kind = "forbidden"

	// KindNotFound represents HTTP 404 (unknown form, path or object).
	KindNotFound Kind = "not_found"

	// KindInvalidParam represents HTTP 422 (invalid request parameter).
	KindInvalidParam Kind = "invalid_param"

	// KindServer represents 5xx Formsite internal errors.
	KindServer Kind = "server"

	// KindClient represents any other 4xx response.
	KindClient Kind = "client"

	// KindNetwork represents connection-level failures (no HTTP response).
	KindNetwork Kind = "network"
)

// APIError represents a Formsite API error with classification context.
type APIError struct {
	StatusCode int
	Kind       Kind
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("formsite %s error (status %d): %s: %v",
			e.Kind, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("formsite %s error (status %d): %s",
		e.Kind, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// ClassifyStatus maps an HTTP status code to its error kind.
func ClassifyStatus(statusCode int) Kind {
	switch {
	case statusCode == 429:
		return KindRateLimit
	case statusCode == 401:
		return KindAuth
	case statusCode == 403:
		return KindForbidden
	case statusCode == 404:
		return KindNotFound
	case statusCode == 422:
		return KindInvalidParam
	case statusCode >= 500:
		return KindServer
	default:
		return KindClient
	}
}

// Retryable reports whether the fetch controller may retry the same page
// after this error. Rate limits wait out a cooldown, connection failures
// back off briefly; everything else is fatal to the fetch session.
func Retryable(kind Kind) bool {
	switch kind {
	case KindRateLimit, KindNetwork:
		return true
	default:
		return false
	}
}
