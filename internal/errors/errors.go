package errors

import (
	"fmt"
	"net/http"

	"github.com/cockroachdb/errors"
)

// Common error types that can be used across the application
var (
	ErrNotFound          = new(ErrCodeNotFound, "resource not found")
	ErrAlreadyExists     = new(ErrCodeAlreadyExists, "resource already exists")
	ErrValidation        = new(ErrCodeValidation, "validation error")
	ErrInvalidOperation  = new(ErrCodeInvalidOperation, "invalid operation")
	ErrPermissionDenied  = new(ErrCodePermissionDenied, "permission denied")
	ErrUnauthorized      = new(ErrCodeUnauthorized, "unauthorized")
	ErrHTTPClient        = new(ErrCodeHTTPClient, "http client error")
	ErrDatabase          = new(ErrCodeDatabase, "database error")
	ErrSystem            = new(ErrCodeSystemError, "system error")
	ErrRateLimited       = new(ErrCodeRateLimited, "too many requests")
	ErrNotAvailable      = new(ErrCodeNotAvailable, "number not available")
	ErrHoldLimitExceeded = new(ErrCodeHoldLimitExceeded, "hold limit exceeded")
	ErrConflict          = new(ErrCodeConflict, "state conflict")
	ErrInsufficientFunds = new(ErrCodeInsufficientFunds, "insufficient funds")
	ErrNotOwner          = new(ErrCodeNotOwner, "not owner")
	// ErrInvalidAmount is also matched by errors.Is(err, ErrValidation)
	ErrInvalidAmount = &InternalError{Code: ErrCodeInvalidAmount, Message: "invalid amount", Err: ErrValidation}

	// maps errors to http status codes, ordered so that the more specific
	// sentinel wins when an error carries several marks
	statusCodes = []struct {
		err    error
		status int
	}{
		{ErrNotAvailable, http.StatusConflict},
		{ErrHoldLimitExceeded, http.StatusTooManyRequests},
		{ErrConflict, http.StatusConflict},
		{ErrInsufficientFunds, http.StatusPaymentRequired},
		{ErrNotOwner, http.StatusForbidden},
		{ErrInvalidAmount, http.StatusBadRequest},
		{ErrRateLimited, http.StatusTooManyRequests},
		{ErrNotFound, http.StatusNotFound},
		{ErrAlreadyExists, http.StatusConflict},
		{ErrValidation, http.StatusBadRequest},
		{ErrInvalidOperation, http.StatusBadRequest},
		{ErrPermissionDenied, http.StatusForbidden},
		{ErrUnauthorized, http.StatusUnauthorized},
		{ErrHTTPClient, http.StatusInternalServerError},
		{ErrDatabase, http.StatusInternalServerError},
		{ErrSystem, http.StatusInternalServerError},
	}
)

const (
	ErrCodeHTTPClient        = "http_client_error"
	ErrCodeSystemError       = "system_error"
	ErrCodeNotFound          = "not_found"
	ErrCodeAlreadyExists     = "already_exists"
	ErrCodeValidation        = "validation_error"
	ErrCodeInvalidOperation  = "invalid_operation"
	ErrCodePermissionDenied  = "permission_denied"
	ErrCodeUnauthorized      = "unauthorized"
	ErrCodeDatabase          = "database_error"
	ErrCodeRateLimited       = "rate_limited"
	ErrCodeNotAvailable      = "not_available"
	ErrCodeHoldLimitExceeded = "hold_limit_exceeded"
	ErrCodeConflict          = "conflict"
	ErrCodeInsufficientFunds = "insufficient_funds"
	ErrCodeNotOwner          = "not_owner"
	ErrCodeInvalidAmount     = "invalid_amount"
)

// InternalError represents a domain error
type InternalError struct {
	Code    string // Machine-readable error code
	Message string // Human-readable error message
	Err     error  // Underlying error
}

func (e *InternalError) Error() string {
	if e.Err == nil {
		return e.DisplayError()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Err.Error())
}

func (e *InternalError) DisplayError() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *InternalError) Unwrap() error {
	return e.Err
}

// Is implements error matching for wrapped errors
func (e *InternalError) Is(target error) bool {
	if target == nil {
		return false
	}

	t, ok := target.(*InternalError)
	if !ok {
		return errors.Is(e.Err, target)
	}

	return e.Code == t.Code
}

func new(code string, message string) *InternalError {
	return &InternalError{
		Code:    code,
		Message: message,
	}
}

func As(err error, target any) bool {
	return errors.As(err, target)
}

func Is(err, reference error) bool {
	return errors.Is(err, reference)
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if an error is a validation error. ErrInvalidAmount counts as one.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrInvalidAmount)
}

func IsNotAvailable(err error) bool {
	return errors.Is(err, ErrNotAvailable)
}

func IsHoldLimitExceeded(err error) bool {
	return errors.Is(err, ErrHoldLimitExceeded)
}

func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

func IsInsufficientFunds(err error) bool {
	return errors.Is(err, ErrInsufficientFunds)
}

func IsNotOwner(err error) bool {
	return errors.Is(err, ErrNotOwner)
}

func IsInvalidAmount(err error) bool {
	return errors.Is(err, ErrInvalidAmount)
}

// Code returns the machine readable code of the first sentinel the error is marked with
func Code(err error) string {
	for _, sc := range statusCodes {
		if errors.Is(err, sc.err) {
			if ie, ok := sc.err.(*InternalError); ok {
				return ie.Code
			}
		}
	}
	return ErrCodeSystemError
}

func HTTPStatusFromErr(err error) int {
	for _, sc := range statusCodes {
		if errors.Is(err, sc.err) {
			return sc.status
		}
	}
	return http.StatusInternalServerError
}
