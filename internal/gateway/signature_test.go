package gateway

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/edupay/payment-core/internal/errs"
)

const testSecret = "whsec_test"

func TestVerifySignature_Valid(t *testing.T) {
	body := []byte(`{"id":"evt_1","type":"payment_intent.succeeded"}`)
	now := time.Now()
	header := SignPayload(body, testSecret, now)

	require.NoError(t, verifySignature(body, header, testSecret, now))
}

func TestVerifySignature_TamperedBody(t *testing.T) {
	now := time.Now()
	header := SignPayload([]byte(`{"amount":100}`), testSecret, now)

	err := verifySignature([]byte(`{"amount":999}`), header, testSecret, now)
	requireInvalidSignature(t, err)
}

func TestVerifySignature_WrongSecret(t *testing.T) {
	body := []byte(`{}`)
	now := time.Now()
	header := SignPayload(body, "whsec_other", now)

	requireInvalidSignature(t, verifySignature(body, header, testSecret, now))
}

func TestVerifySignature_MalformedHeader(t *testing.T) {
	body := []byte(`{}`)
	now := time.Now()

	for _, header := range []string{"", "garbage", "t=123", "v1=deadbeef", "t=abc,v1=deadbeef"} {
		requireInvalidSignature(t, verifySignature(body, header, testSecret, now))
	}
}

func TestVerifySignature_StaleTimestamp(t *testing.T) {
	body := []byte(`{}`)
	signed := time.Now().Add(-10 * time.Minute)
	header := SignPayload(body, testSecret, signed)

	requireInvalidSignature(t, verifySignature(body, header, testSecret, time.Now()))
}

func TestVerifySignature_WithinTolerance(t *testing.T) {
	body := []byte(`{}`)
	signed := time.Now().Add(-2 * time.Minute)
	header := SignPayload(body, testSecret, signed)

	require.NoError(t, verifySignature(body, header, testSecret, time.Now()))
}

func requireInvalidSignature(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	var e *errs.Error
	require.ErrorAs(t, err, &e)
	require.Equal(t, errs.CodeInvalidSignature, e.Code)
}
