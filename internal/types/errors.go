// Package types provides shared types, interfaces, and errors for the application.
package types

import "errors"

// Sentinel errors for consistent error handling across the application.
// These errors can be checked with errors.Is() for type-safe error handling.
var (
	// Browser pool errors
	ErrPoolTimeout = errors.New("timeout waiting for browser from pool")
	ErrPoolClosed  = errors.New("browser pool is closed")
	ErrBrowserDead = errors.New("browser process is dead")

	// Request errors
	ErrInvalidRequest     = errors.New("invalid request")
	ErrInvalidURL         = errors.New("invalid URL")
	ErrInvalidCommand     = errors.New("invalid command")
	ErrURLRequired        = errors.New("url is required")
	ErrMissingCredentials = errors.New("authentication credentials are missing")

	// Extraction errors
	ErrNavigationFailed = errors.New("navigation to target page failed")
	ErrContentNotFound  = errors.New("content not found on target page")

	// Assist errors
	ErrAssistDisabled = errors.New("assist is not configured")

	// Context errors
	ErrContextCanceled = errors.New("operation canceled")
)

// Error kinds reported to API clients. Each maps to one of the sentinel
// errors above via Classify.
const (
	KindPoolTimeout        = "pool_timeout"
	KindBrowserDead        = "browser_dead"
	KindInvalidURL         = "invalid_url"
	KindMissingCredentials = "missing_credentials"
	KindNavigationFailed   = "navigation_failed"
	KindContentNotFound    = "content_not_found"
	KindInvalidRequest     = "invalid_request"
	KindAssistDisabled     = "assist_disabled"
	KindInternal           = "internal_error"
)

// Classify maps an error to its machine-readable kind.
// Unrecognized errors fall through to KindInternal so that no
// implementation detail leaks to clients.
func Classify(err error) string {
	switch {
	case errors.Is(err, ErrPoolTimeout), errors.Is(err, ErrPoolClosed):
		return KindPoolTimeout
	case errors.Is(err, ErrBrowserDead):
		return KindBrowserDead
	case errors.Is(err, ErrInvalidURL), errors.Is(err, ErrURLRequired):
		return KindInvalidURL
	case errors.Is(err, ErrMissingCredentials):
		return KindMissingCredentials
	case errors.Is(err, ErrNavigationFailed):
		return KindNavigationFailed
	case errors.Is(err, ErrContentNotFound):
		return KindContentNotFound
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, ErrInvalidCommand):
		return KindInvalidRequest
	case errors.Is(err, ErrAssistDisabled):
		return KindAssistDisabled
	default:
		return KindInternal
	}
}

// ExtractError provides detailed information about extraction failures.
// It implements the error interface and supports error unwrapping.
type ExtractError struct {
	Kind    string // Machine-readable kind, one of the Kind* constants
	URL     string // The target URL where the error occurred
	Message string // Human-readable error message
	Err     error  // Underlying error (for unwrapping)
}

// Error implements the error interface.
func (e *ExtractError) Error() string {
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ExtractError) Unwrap() error {
	return e.Err
}

// NewInvalidURLError creates an error for URLs outside the allowed hosts.
func NewInvalidURLError(url string, reason string) *ExtractError {
	return &ExtractError{
		Kind:    KindInvalidURL,
		URL:     url,
		Message: "Target URL rejected: " + reason,
		Err:     ErrInvalidURL,
	}
}

// NewMissingCredentialsError creates an error for absent auth material.
func NewMissingCredentialsError(url string) *ExtractError {
	return &ExtractError{
		Kind:    KindMissingCredentials,
		URL:     url,
		Message: "Session token is required to view this content",
		Err:     ErrMissingCredentials,
	}
}

// NewNavigationError creates an error for failed page navigation.
func NewNavigationError(url string, err error) *ExtractError {
	return &ExtractError{
		Kind:    KindNavigationFailed,
		URL:     url,
		Message: "Could not load the target page. The host may be unreachable or the session token rejected.",
		Err:     errors.Join(ErrNavigationFailed, err),
	}
}

// NewContentNotFoundError creates an error when the post never rendered.
func NewContentNotFoundError(url string) *ExtractError {
	return &ExtractError{
		Kind:    KindContentNotFound,
		URL:     url,
		Message: "Post content did not appear within the allowed time. It may be deleted, protected, or behind a login wall.",
		Err:     ErrContentNotFound,
	}
}

// PoolError provides detailed information about browser pool failures.
type PoolError struct {
	Operation string // The operation that failed
	Message   string // Human-readable error message
	Err       error  // Underlying error
}

// Error implements the error interface.
func (e *PoolError) Error() string {
	return e.Message
}

// Unwrap returns the underlying error.
func (e *PoolError) Unwrap() error {
	return e.Err
}

// NewPoolAcquireError creates an error for pool acquire failures.
func NewPoolAcquireError(reason string, err error) *PoolError {
	return &PoolError{
		Operation: "acquire",
		Message:   "Failed to acquire browser from pool: " + reason,
		Err:       err,
	}
}
