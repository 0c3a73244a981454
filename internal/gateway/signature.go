package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/edupay/payment-core/internal/errs"
)

// signatureTolerance bounds how stale a signed timestamp may be before the
// event is rejected, limiting replay of captured deliveries.
const signatureTolerance = 5 * time.Minute

// VerifyWebhookSignature authenticates a raw webhook body against its
// signature header. The header carries "t=<unix>,v1=<hex>" where v1 is
// HMAC-SHA256(secret, "<unix>.<body>"). Every failure is fail-closed.
func (c *Client) VerifyWebhookSignature(body []byte, signature, secret string) error {
	return verifySignature(body, signature, secret, time.Now())
}

func verifySignature(body []byte, signature, secret string, now time.Time) error {
	var timestamp, provided string
	for _, part := range strings.Split(signature, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			timestamp = v
		case "v1":
			provided = v
		}
	}
	if timestamp == "" || provided == "" {
		return errs.InvalidSignature()
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return errs.InvalidSignature()
	}
	age := now.Sub(time.Unix(ts, 0))
	if age > signatureTolerance || age < -signatureTolerance {
		return errs.InvalidSignature()
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(provided)) {
		return errs.InvalidSignature()
	}
	return nil
}

// SignPayload produces a signature header for body, used by tests and local
// tooling to exercise the webhook endpoint.
func SignPayload(body []byte, secret string, at time.Time) string {
	ts := strconv.FormatInt(at.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(body)
	return "t=" + ts + ",v1=" + hex.EncodeToString(mac.Sum(nil))
}
