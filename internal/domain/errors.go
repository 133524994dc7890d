package domain

import (
	"errors"
	"fmt"
)

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
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeRateLimited      = "RATE_LIMITED"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeInvalidOperation = "INVALID_OPERATION"
	ErrCodeEmbedding        = "EMBEDDING_ERROR"
	ErrCodeGeneration       = "GENERATION_ERROR"
)

// NewValidationError reports malformed caller input.
func NewValidationError(message string) *DomainError {
	return NewDomainError(ErrCodeValidation, message)
}

// NewEmbeddingError reports an unreachable, failing or malformed embedding provider.
func NewEmbeddingError(message string, err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeEmbedding, message, err)
}

// NewGenerationError reports a failing generation provider.
func NewGenerationError(message string, err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeGeneration, message, err)
}

// HasCode reports whether err wraps a DomainError with the given code.
func HasCode(err error, code string) bool {
	var de *DomainError
	if !errors.As(err, &de) {
		return false
	}
	return de.Code == code
}

// IsEmbeddingError reports whether err is an embedding failure.
func IsEmbeddingError(err error) bool { return HasCode(err, ErrCodeEmbedding) }

// IsGenerationError reports whether err is a generation failure.
func IsGenerationError(err error) bool { return HasCode(err, ErrCodeGeneration) }

// IsValidationError reports whether err is a validation failure.
func IsValidationError(err error) bool { return HasCode(err, ErrCodeValidation) }

// Not found errors
var (
	ErrFileNotFound     = NewDomainError(ErrCodeNotFound, "file not found")
	ErrDocumentNotFound = NewDomainError(ErrCodeNotFound, "document not found")
	ErrIndexJobNotFound = NewDomainError(ErrCodeNotFound, "index job not found")
)

// Operation errors
var (
	ErrRateLimited       = NewDomainError(ErrCodeRateLimited, "rate limit exceeded")
	ErrInvalidUTF8       = NewDomainError(ErrCodeValidation, "document is not valid UTF-8")
	ErrStorageOperation  = NewDomainError(ErrCodeInternalError, "storage operation failed")
	ErrStorageNotEnabled = NewDomainError(ErrCodeInvalidOperation, "object storage not configured")
)
