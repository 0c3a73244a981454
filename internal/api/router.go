package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/edupay/payment-core/internal/handlers"
	"github.com/edupay/payment-core/internal/telemetry"
)

func NewRouter(paymentHandler *handlers.PaymentHandler, webhookHandler *handlers.WebhookHandler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(telemetry.TracingMiddleware())

	// Prometheus metrics
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "payment-core"})
	})

	// Payment routes
	r.POST("/payments/process", paymentHandler.ProcessPayment)
	r.GET("/payments/:id", paymentHandler.GetPayment)
	r.POST("/payments/:id/refund", paymentHandler.ProcessRefund)
	r.GET("/payments/history/:userId", paymentHandler.GetPaymentHistory)

	// Gateway webhook
	r.POST("/webhooks/gateway", webhookHandler.HandleGatewayEvent)

	return r
}
