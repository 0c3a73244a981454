package errs

import (
	"errors"
	"net/http"
	"sort"
)

// gatewayErrors is the fixed classification table for gateway error codes.
// Codes absent from the table classify as UNKNOWN_ERROR, HTTP 500,
// non-retryable.
var gatewayErrors = map[string]Error{
	"card_declined": {
		Code:       "CARD_DECLINED",
		Message:    "The card was declined.",
		HTTPStatus: http.StatusPaymentRequired,
	},
	"expired_card": {
		Code:       "EXPIRED_CARD",
		Message:    "The card has expired.",
		HTTPStatus: http.StatusPaymentRequired,
	},
	"incorrect_cvc": {
		Code:       "INCORRECT_CVC",
		Message:    "The card security code is incorrect.",
		HTTPStatus: http.StatusPaymentRequired,
	},
	"insufficient_funds": {
		Code:       "INSUFFICIENT_FUNDS",
		Message:    "The card has insufficient funds.",
		HTTPStatus: http.StatusPaymentRequired,
	},
	"authentication_required": {
		Code:       "AUTHENTICATION_REQUIRED",
		Message:    "The payment requires additional authentication.",
		HTTPStatus: http.StatusPaymentRequired,
	},
	"invalid_request": {
		Code:       "INVALID_GATEWAY_REQUEST",
		Message:    "The payment request was rejected by the gateway.",
		HTTPStatus: http.StatusBadRequest,
	},
	"processing_error": {
		Code:       "PROCESSING_ERROR",
		Message:    "The gateway could not process the payment. Please try again.",
		HTTPStatus: http.StatusBadGateway,
		Retryable:  true,
	},
	"rate_limit": {
		Code:       "RATE_LIMITED",
		Message:    "Too many requests to the gateway. Please try again shortly.",
		HTTPStatus: http.StatusTooManyRequests,
		Retryable:  true,
	},
	"gateway_timeout": {
		Code:       "GATEWAY_TIMEOUT",
		Message:    "The gateway timed out. Please try again.",
		HTTPStatus: http.StatusGatewayTimeout,
		Retryable:  true,
	},
	"api_connection_error": {
		Code:       "GATEWAY_UNAVAILABLE",
		Message:    "The gateway is temporarily unavailable. Please try again.",
		HTTPStatus: http.StatusBadGateway,
		Retryable:  true,
	},
}

// Classify maps a gateway error code to its domain error. The returned value
// is a copy; callers may attach a cause.
func Classify(gatewayCode string) *Error {
	if e, ok := gatewayErrors[gatewayCode]; ok {
		return &e
	}
	return &Error{
		Code:       CodeUnknown,
		Message:    "The payment could not be processed.",
		HTTPStatus: http.StatusInternalServerError,
	}
}

func IsRetryable(gatewayCode string) bool {
	return Classify(gatewayCode).Retryable
}

func StatusCode(gatewayCode string) int {
	return Classify(gatewayCode).HTTPStatus
}

func Message(gatewayCode string) string {
	return Classify(gatewayCode).Message
}

// RetryableCodes returns the gateway codes worth retrying, sorted for
// stable output.
func RetryableCodes() []string {
	codes := make([]string, 0, len(gatewayErrors))
	for code, e := range gatewayErrors {
		if e.Retryable {
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)
	return codes
}

// RetryableError reports whether err carries a retryable classification.
// Unclassified errors are not retried.
func RetryableError(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}
