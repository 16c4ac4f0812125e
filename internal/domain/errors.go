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
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeConfiguration     = "CONFIG_ERROR"
	ErrCodeConversion        = "CONVERSION_ERROR"
	ErrCodeDimensionMismatch = "DIMENSION_MISMATCH"
	ErrCodeStoreUnavailable  = "STORE_UNAVAILABLE"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeAlreadyExists     = "ALREADY_EXISTS"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeInternalError     = "INTERNAL_ERROR"
)

// Configuration errors: fatal, surfaced immediately, never retried.
var (
	ErrInvalidChunkSize = NewDomainError(ErrCodeConfiguration, "chunk max size must be positive")
	ErrInvalidOverlap   = NewDomainError(ErrCodeConfiguration, "chunk overlap must be smaller than max size")
	ErrMissingDatabase  = NewDomainError(ErrCodeConfiguration, "database URL is required")
	ErrMissingAPIKey    = NewDomainError(ErrCodeConfiguration, "embedding provider API key is required")
)

// Validation errors
var (
	ErrChunkVectorMismatch = NewDomainError(ErrCodeValidation, "chunk and vector counts differ")
	ErrUnsupportedFileType = NewDomainError(ErrCodeValidation, "only PDF files are accepted")
	ErrEmptyQuery          = NewDomainError(ErrCodeValidation, "query must not be empty")
	ErrInvalidTopK         = NewDomainError(ErrCodeValidation, "top_k must be at least 1")
)

// Store and index errors
var (
	ErrIndexDefinitionConflict = NewDomainError(ErrCodeAlreadyExists, "an index with this name exists with an incompatible definition")
	ErrDocumentNotFound        = NewDomainError(ErrCodeNotFound, "document not found")
)

// ConversionFailed wraps an upstream converter failure with the offending
// document identified.
func ConversionFailed(source string, err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeConversion, fmt.Sprintf("failed to convert %s", source), err)
}

// DimensionMismatch reports an embedding whose dimension does not match the
// index's declared dimension. Fatal for the whole batch.
func DimensionMismatch(want, got int) *DomainError {
	return NewDomainError(ErrCodeDimensionMismatch, fmt.Sprintf("embedding dimension %d does not match index dimension %d", got, want))
}

// StoreUnavailable wraps a transient store connectivity failure. Callers may
// retry a bounded number of times before surfacing it.
func StoreUnavailable(op string, err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeStoreUnavailable, fmt.Sprintf("store operation %s failed", op), err)
}
