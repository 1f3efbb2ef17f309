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
	ErrCodePrecondition     = "PRECONDITION_FAILED"
	ErrCodeBudgetExhausted  = "BUDGET_EXHAUSTED"
	ErrCodeProvider         = "PROVIDER_ERROR"
	ErrCodeConflict         = "CONFLICT"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeInvalidOperation = "INVALID_OPERATION"
)

// Validation errors
var (
	ErrMissingRequiredField = NewDomainError(ErrCodeValidation, "missing required field")
	ErrInvalidLanguage      = NewDomainError(ErrCodeValidation, "invalid language code")
	ErrInvalidSegmentOrder  = NewDomainError(ErrCodeValidation, "segment order must not be negative")
)

// Not found errors
var (
	ErrSourceNotFound         = NewDomainError(ErrCodeNotFound, "source not found")
	ErrSegmentNotFound        = NewDomainError(ErrCodeNotFound, "segment not found")
	ErrStorageSegmentNotFound = NewDomainError(ErrCodeNotFound, "storage segment not found")
)

// Precondition errors: fatal to the call, never retried internally.
var (
	ErrNotInitialized = NewDomainError(ErrCodePrecondition,
		"multi-source translation not initialized, call initialize first")
	ErrNoReferenceTexts = NewDomainError(ErrCodePrecondition,
		"no reference texts available, ensure sources are initialized")
)

// ErrBudgetExhausted indicates that not even a single paragraph fits the
// model's token budget together with the prompt and reference excerpts.
var ErrBudgetExhausted = NewDomainError(ErrCodeBudgetExhausted,
	"token budget exhausted, prompt or reference texts too large for model")

// Provider errors
var (
	ErrEmptyTranslation   = NewDomainError(ErrCodeProvider, "provider returned an empty translation")
	ErrUnparsableResponse = NewDomainError(ErrCodeProvider, "provider response could not be parsed")
)

// ErrSegmentVersionConflict signals a duplicate (id, timestamp) version row.
// Writers retry with a refreshed clock.
var ErrSegmentVersionConflict = NewDomainError(ErrCodeConflict,
	"segment version already exists at this timestamp")
