// Package api holds the JSON envelope shared by handlers and middleware.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/cloo-solutions/ragline/internal/domain"
	"github.com/cloo-solutions/ragline/internal/telemetry"
)

// StatusClientClosedRequest is reported when the caller went away mid-request.
const StatusClientClosedRequest = 499

type SuccessResponse struct {
	Data interface{} `json:"data"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

var statusByCode = map[string]int{
	domain.ErrCodeValidation:       http.StatusBadRequest,
	domain.ErrCodeNotFound:         http.StatusNotFound,
	domain.ErrCodeUnauthorized:     http.StatusUnauthorized,
	domain.ErrCodeRateLimited:      http.StatusTooManyRequests,
	domain.ErrCodeInvalidOperation: http.StatusConflict,
	domain.ErrCodeEmbedding:        http.StatusBadGateway,
	domain.ErrCodeGeneration:       http.StatusBadGateway,
	domain.ErrCodeInternalError:    http.StatusInternalServerError,
}

// JSON writes data with the given status. A nil data writes no body.
func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// Success wraps data in the {"data": ...} envelope.
func Success(w http.ResponseWriter, status int, data interface{}) {
	JSON(w, status, SuccessResponse{Data: data})
}

// Error writes {"error", "code"} with the code implied by status.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorResponse{Error: message, Code: codeForStatus(status)})
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge:
		return domain.ErrCodeValidation
	case http.StatusUnauthorized:
		return domain.ErrCodeUnauthorized
	case http.StatusNotFound:
		return domain.ErrCodeNotFound
	case http.StatusConflict:
		return domain.ErrCodeInvalidOperation
	case http.StatusTooManyRequests:
		return domain.ErrCodeRateLimited
	}
	if status >= http.StatusInternalServerError {
		return domain.ErrCodeInternalError
	}
	return ""
}

// DomainErrorToHTTP maps err to a response status. Context errors win over
// the domain code so that a cancelled embedding call reports 499, not 502.
func DomainErrorToHTTP(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, context.Canceled):
		return StatusClientClosedRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}

	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		if status, ok := statusByCode[domainErr.Code]; ok {
			return status
		}
	}
	return http.StatusInternalServerError
}

// HandleError writes err as an error envelope. 500s hide their message; 500s
// and 502s are reported to Sentry.
func HandleError(w http.ResponseWriter, r *http.Request, err error) {
	status := DomainErrorToHTTP(err)

	code := codeForStatus(status)
	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		code = domainErr.Code
	}

	message := err.Error()
	switch status {
	case http.StatusInternalServerError:
		telemetry.CaptureError(r.Context(), err)
		message = http.StatusText(status)
		code = domain.ErrCodeInternalError
	case http.StatusBadGateway:
		telemetry.CaptureError(r.Context(), err)
	}

	JSON(w, status, ErrorResponse{Error: message, Code: code})
}

// DecodeJSON reads one JSON value from the request body into v. Malformed
// bodies become validation errors; bodies cut off by MaxBytesReader become
// ErrRequestTooLarge.
func DecodeJSON(r *http.Request, v interface{}) error {
	if r.Body == nil || r.Body == http.NoBody {
		return domain.NewValidationError("request body is required")
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return ErrRequestTooLarge
		case errors.Is(err, io.EOF):
			return domain.NewValidationError("request body is required")
		default:
			return domain.NewValidationError(fmt.Sprintf("invalid request body: %v", err))
		}
	}
	return nil
}

// ErrRequestTooLarge is returned by DecodeJSON for bodies over the server limit.
var ErrRequestTooLarge = domain.NewValidationError("request body too large")

// WriteDecodeError answers a DecodeJSON failure with 400, or 413 for oversized bodies.
func WriteDecodeError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	if errors.Is(err, ErrRequestTooLarge) {
		status = http.StatusRequestEntityTooLarge
	}
	message := err.Error()
	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		message = domainErr.Message
	}
	Error(w, status, message)
}
