package errs_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/edupay/payment-core/internal/errs"
)

func TestClassify_KnownCodes(t *testing.T) {
	tests := []struct {
		gatewayCode string
		wantCode    string
		wantStatus  int
		wantRetry   bool
	}{
		{"card_declined", "CARD_DECLINED", http.StatusPaymentRequired, false},
		{"expired_card", "EXPIRED_CARD", http.StatusPaymentRequired, false},
		{"insufficient_funds", "INSUFFICIENT_FUNDS", http.StatusPaymentRequired, false},
		{"processing_error", "PROCESSING_ERROR", http.StatusBadGateway, true},
		{"rate_limit", "RATE_LIMITED", http.StatusTooManyRequests, true},
		{"gateway_timeout", "GATEWAY_TIMEOUT", http.StatusGatewayTimeout, true},
		{"api_connection_error", "GATEWAY_UNAVAILABLE", http.StatusBadGateway, true},
	}

	for _, tt := range tests {
		t.Run(tt.gatewayCode, func(t *testing.T) {
			e := errs.Classify(tt.gatewayCode)
			require.Equal(t, tt.wantCode, e.Code)
			require.Equal(t, tt.wantStatus, e.HTTPStatus)
			require.Equal(t, tt.wantRetry, e.Retryable)
			require.NotEmpty(t, e.Message)
		})
	}
}

func TestClassify_UnknownCodeDefaults(t *testing.T) {
	e := errs.Classify("something_new_from_the_gateway")
	require.Equal(t, errs.CodeUnknown, e.Code)
	require.Equal(t, http.StatusInternalServerError, e.HTTPStatus)
	require.False(t, e.Retryable)
}

func TestClassify_ReturnsCopy(t *testing.T) {
	first := errs.Classify("card_declined")
	first.Message = "mutated"

	second := errs.Classify("card_declined")
	require.Equal(t, "The card was declined.", second.Message)
}

func TestIsRetryable(t *testing.T) {
	require.True(t, errs.IsRetryable("processing_error"))
	require.False(t, errs.IsRetryable("card_declined"))
	require.False(t, errs.IsRetryable("no_such_code"))
}

func TestRetryableCodes(t *testing.T) {
	codes := errs.RetryableCodes()
	require.Contains(t, codes, "processing_error")
	require.Contains(t, codes, "rate_limit")
	require.Contains(t, codes, "gateway_timeout")
	require.NotContains(t, codes, "card_declined")
	require.IsNonDecreasing(t, codes)
}

func TestRetryableError(t *testing.T) {
	require.True(t, errs.RetryableError(errs.Classify("rate_limit")))
	require.False(t, errs.RetryableError(errs.Classify("expired_card")))
	require.False(t, errs.RetryableError(errs.Internal(nil)))
	require.False(t, errs.RetryableError(nil))
}
