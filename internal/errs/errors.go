// Package errs defines the closed error taxonomy for the payment core and
// the classifier that maps gateway error codes onto it.
package errs

import (
	"fmt"
	"net/http"
	"strings"
)

const (
	CodeValidation          = "VALIDATION_ERROR"
	CodeNotFound            = "NOT_FOUND"
	CodeAlreadyRefunded     = "ALREADY_REFUNDED"
	CodeInvalidStatus       = "INVALID_STATUS"
	CodeInvalidRefundAmount = "INVALID_REFUND_AMOUNT"
	CodeRefundWindowExpired = "REFUND_WINDOW_EXPIRED"
	CodeInvalidSignature    = "INVALID_SIGNATURE"
	CodeRequestInProgress   = "REQUEST_IN_PROGRESS"
	CodeInternal            = "INTERNAL_ERROR"
	CodeUnknown             = "UNKNOWN_ERROR"
)

// Error is the tagged error kind carried by every failure the service
// surfaces. Domain failures travel inside results; infrastructure failures
// travel as wrapped Go errors.
type Error struct {
	Code       string
	Message    string
	HTTPStatus int
	Retryable  bool
	Fields     []string
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	if len(e.Fields) > 0 {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, strings.Join(e.Fields, ", "))
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func Validation(fields ...string) *Error {
	return &Error{
		Code:       CodeValidation,
		Message:    "request validation failed",
		HTTPStatus: http.StatusBadRequest,
		Fields:     fields,
	}
}

func NotFound(what string) *Error {
	return &Error{
		Code:       CodeNotFound,
		Message:    what + " not found",
		HTTPStatus: http.StatusNotFound,
	}
}

func AlreadyRefunded() *Error {
	return &Error{
		Code:       CodeAlreadyRefunded,
		Message:    "payment has already been refunded",
		HTTPStatus: http.StatusBadRequest,
	}
}

func InvalidStatus(status string) *Error {
	return &Error{
		Code:       CodeInvalidStatus,
		Message:    fmt.Sprintf("payment status %s does not allow this operation", status),
		HTTPStatus: http.StatusBadRequest,
	}
}

func InvalidRefundAmount() *Error {
	return &Error{
		Code:       CodeInvalidRefundAmount,
		Message:    "refund amount must be positive and no greater than the original amount",
		HTTPStatus: http.StatusBadRequest,
	}
}

func RefundWindowExpired() *Error {
	return &Error{
		Code:       CodeRefundWindowExpired,
		Message:    "payment is outside the refund window",
		HTTPStatus: http.StatusBadRequest,
	}
}

func InvalidSignature() *Error {
	return &Error{
		Code:       CodeInvalidSignature,
		Message:    "webhook signature verification failed",
		HTTPStatus: http.StatusUnauthorized,
	}
}

func RequestInProgress() *Error {
	return &Error{
		Code:       CodeRequestInProgress,
		Message:    "an identical request is already being processed",
		HTTPStatus: http.StatusConflict,
		Retryable:  true,
	}
}

func Internal(cause error) *Error {
	return &Error{
		Code:       CodeInternal,
		Message:    "internal error",
		HTTPStatus: http.StatusInternalServerError,
		Cause:      cause,
	}
}
