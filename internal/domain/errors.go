package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeAlreadyExists    = "ALREADY_EXISTS"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeForbidden        = "FORBIDDEN"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeInvalidOperation = "INVALID_OPERATION"
	ErrCodeUnavailable      = "UNAVAILABLE"
)

// Validation errors
var (
	ErrInvalidMatchStatus        = NewDomainError(ErrCodeValidation, "invalid match status")
	ErrInvalidConversationID     = NewDomainError(ErrCodeValidation, "invalid conversation id format (expected cnv_<alphanumeric>)")
	ErrMissingOrderNumber        = NewDomainError(ErrCodeValidation, "order number is required")
	ErrInvalidDiscoveryJobStatus = NewDomainError(ErrCodeValidation, "invalid discovery job status")
)

// Not found errors
var (
	ErrThreadLinkNotFound   = NewDomainError(ErrCodeNotFound, "thread link not found")
	ErrDiscoveryJobNotFound = NewDomainError(ErrCodeNotFound, "discovery job not found")
	ErrOperatorNotFound     = NewDomainError(ErrCodeNotFound, "operator not found")
	ErrAPIKeyNotFound       = NewDomainError(ErrCodeNotFound, "api key not found")
)

// Already exists errors
var (
	ErrOperatorAlreadyExists = NewDomainError(ErrCodeAlreadyExists, "operator already exists")
	ErrAPIKeyAlreadyExists   = NewDomainError(ErrCodeAlreadyExists, "api key already exists")
)

// Authorization errors
var (
	ErrInvalidAPIKey = NewDomainError(ErrCodeUnauthorized, "invalid api key")
	ErrAPIKeyRevoked = NewDomainError(ErrCodeUnauthorized, "api key has been revoked")
)

// Invalid operation errors
var (
	ErrThreadNotReviewable = NewDomainError(ErrCodeInvalidOperation, "thread link is not awaiting review")
	ErrThreadNotMatched    = NewDomainError(ErrCodeInvalidOperation, "thread link has no candidate conversation to approve")
)
