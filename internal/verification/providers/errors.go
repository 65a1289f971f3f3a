package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorCategory defines the normalized failure taxonomy
type ErrorCategory string

const (
	// ErrorTimeout indicates the provider took too long to respond
	ErrorTimeout ErrorCategory = "timeout"

	// ErrorBadData indicates the provider rejected or could not read the input
	ErrorBadData ErrorCategory = "bad_data"

	// ErrorNoFace indicates a biometric provider found no face in an image
	ErrorNoFace ErrorCategory = "no_face"

	// ErrorAuthentication indicates credential or permission issues
	ErrorAuthentication ErrorCategory = "authentication"

	// ErrorProviderOutage indicates the provider is unavailable
	ErrorProviderOutage ErrorCategory = "provider_outage"

	// ErrorContractMismatch indicates the provider response did not match the expected shape
	ErrorContractMismatch ErrorCategory = "contract_mismatch"

	// ErrorRateLimited indicates too many requests
	ErrorRateLimited ErrorCategory = "rate_limited"

	// ErrorInternal indicates an unexpected internal error
	ErrorInternal ErrorCategory = "internal"
)

// ProviderError wraps provider failures with normalized categorization
type ProviderError struct {
	Category   ErrorCategory
	ProviderID string
	Message    string
	Underlying error
	Retryable  bool
}

func (e *ProviderError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("provider %s [%s]: %s: %v", e.ProviderID, e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("provider %s [%s]: %s", e.ProviderID, e.Category, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Underlying
}

// NewProviderError creates a new normalized provider error. Retryable marks
// errors a caller may resubmit for; nothing in the pipeline retries on its own.
func NewProviderError(category ErrorCategory, providerID, message string, underlying error) *ProviderError {
	retryable := category == ErrorTimeout ||
		category == ErrorProviderOutage ||
		category == ErrorRateLimited

	return &ProviderError{
		Category:   category,
		ProviderID: providerID,
		Message:    message,
		Underlying: underlying,
		Retryable:  retryable,
	}
}

func IsRetryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error. Context expiry is
// reported as a timeout even when the provider did not wrap it.
func GetCategory(err error) ErrorCategory {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Category
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTimeout
	}
	return ErrorInternal
}

// TransportError classifies a failure that happened before any response was
// received.
func TransportError(providerID string, err error) *ProviderError {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return NewProviderError(ErrorTimeout, providerID, "request timed out", err)
	case errors.Is(err, context.Canceled):
		return NewProviderError(ErrorTimeout, providerID, "request cancelled", err)
	default:
		return NewProviderError(ErrorProviderOutage, providerID, "request failed", err)
	}
}

// StatusError classifies a non-2xx HTTP response.
func StatusError(providerID string, status int, body string) *ProviderError {
	msg := fmt.Sprintf("unexpected status %d", status)
	if body != "" {
		if len(body) > 200 {
			body = body[:200]
		}
		msg += ": " + body
	}
	switch {
	case status == 401 || status == 403:
		return NewProviderError(ErrorAuthentication, providerID, msg, nil)
	case status == 429:
		return NewProviderError(ErrorRateLimited, providerID, msg, nil)
	case status >= 500:
		return NewProviderError(ErrorProviderOutage, providerID, msg, nil)
	default:
		return NewProviderError(ErrorBadData, providerID, msg, nil)
	}
}

var (
	ErrComparatorNotFound = errors.New("comparator not found")
	ErrNoComparators      = errors.New("no biometric comparators configured")
	ErrNoFaceDetected     = errors.New("no face detected")
)
