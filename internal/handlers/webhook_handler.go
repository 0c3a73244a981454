package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/edupay/payment-core/internal/errs"
	"github.com/edupay/payment-core/internal/service"
)

// SignatureHeader carries the gateway's HMAC signature for webhook bodies.
const SignatureHeader = "Gateway-Signature"

const maxWebhookBody = 64 << 10

type WebhookHandler struct {
	webhooks *service.WebhookService
	logger   *zap.Logger
}

func NewWebhookHandler(webhooks *service.WebhookService, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{webhooks: webhooks, logger: logger}
}

// HandleGatewayEvent verifies and applies one webhook delivery. 2xx tells
// the gateway the delivery is settled (applied or deliberately ignored);
// 5xx asks it to redeliver.
func (h *WebhookHandler) HandleGatewayEvent(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	event, err := h.webhooks.VerifyAndParse(body, c.GetHeader(SignatureHeader))
	if err != nil {
		var e *errs.Error
		if errors.As(err, &e) {
			c.JSON(e.HTTPStatus, gin.H{"error": gin.H{"code": e.Code, "message": e.Message}})
			return
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "verification failed"})
		return
	}

	if err := h.webhooks.ProcessEvent(c.Request.Context(), event); err != nil {
		h.logger.Error("webhook processing failed",
			zap.String("event_id", event.ID),
			zap.String("type", event.Type),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "processing failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
