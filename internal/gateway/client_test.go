package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edupay/payment-core/internal/errs"
	"github.com/edupay/payment-core/internal/interfaces"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "sk_test_123", zap.NewNop())
}

func TestCreatePaymentIntent_SendsIdempotencyKey(t *testing.T) {
	var gotKey, gotAuth string
	var gotBody createIntentBody

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/payment_intents", r.URL.Path)
		gotKey = r.Header.Get("Idempotency-Key")
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		json.NewEncoder(w).Encode(map[string]any{
			"id":            "pi_123",
			"client_secret": "pi_123_secret",
			"status":        "requires_confirmation",
			"amount":        9999,
			"currency":      "usd",
		})
	})

	intent, err := client.CreatePaymentIntent(context.Background(), interfaces.CreateIntentRequest{
		Amount:          9999,
		Currency:        "usd",
		PaymentMethodID: "pm_1",
		IdempotencyKey:  "key-abc",
	})
	require.NoError(t, err)
	require.Equal(t, "pi_123", intent.ID)
	require.Equal(t, "pi_123_secret", intent.ClientSecret)
	require.Equal(t, "key-abc", gotKey)
	require.Equal(t, "Bearer sk_test_123", gotAuth)
	require.EqualValues(t, 9999, gotBody.Amount)
	require.Equal(t, "pm_1", gotBody.PaymentMethod)
}

func TestCreatePaymentIntent_ClassifiesGatewayError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{
				"code":    "card_declined",
				"message": "Your card was declined.",
			},
		})
	})

	_, err := client.CreatePaymentIntent(context.Background(), interfaces.CreateIntentRequest{
		Amount: 100, Currency: "usd", PaymentMethodID: "pm_1",
	})
	require.Error(t, err)
	var e *errs.Error
	require.ErrorAs(t, err, &e)
	require.Equal(t, "CARD_DECLINED", e.Code)
	require.False(t, e.Retryable)
	require.ErrorContains(t, err, "Your card was declined.")
}

func TestCreatePaymentIntent_UndecodableErrorIsUnknown(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream exploded"))
	})

	_, err := client.CreatePaymentIntent(context.Background(), interfaces.CreateIntentRequest{
		Amount: 100, Currency: "usd", PaymentMethodID: "pm_1",
	})
	require.Error(t, err)
	var e *errs.Error
	require.ErrorAs(t, err, &e)
	require.Equal(t, errs.CodeUnknown, e.Code)
}

func TestCreatePaymentIntent_ConnectionErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close() // connection refused from here on
	client := NewClient(srv.URL, "sk_test_123", zap.NewNop())

	_, err := client.CreatePaymentIntent(context.Background(), interfaces.CreateIntentRequest{
		Amount: 100, Currency: "usd", PaymentMethodID: "pm_1",
	})
	require.Error(t, err)
	var e *errs.Error
	require.ErrorAs(t, err, &e)
	require.Equal(t, "GATEWAY_UNAVAILABLE", e.Code)
	require.True(t, e.Retryable)
}

func TestCreateRefund(t *testing.T) {
	var gotBody createRefundBody
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/refunds", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]any{
			"id": "re_1", "amount": 2500, "status": "succeeded",
		})
	})

	refund, err := client.CreateRefund(context.Background(), "pi_123", 2500)
	require.NoError(t, err)
	require.Equal(t, "re_1", refund.ID)
	require.EqualValues(t, 2500, refund.Amount)
	require.Equal(t, "pi_123", gotBody.PaymentIntent)
	require.EqualValues(t, 2500, gotBody.Amount)
}

func TestRetrievePaymentIntent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/payment_intents/pi_9", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{"id": "pi_9", "status": "succeeded"})
	})

	intent, err := client.RetrievePaymentIntent(context.Background(), "pi_9")
	require.NoError(t, err)
	require.Equal(t, "pi_9", intent.ID)
	require.Equal(t, "succeeded", intent.Status)
}
