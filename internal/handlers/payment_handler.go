package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/edupay/payment-core/internal/errs"
	"github.com/edupay/payment-core/internal/models"
	"github.com/edupay/payment-core/internal/service"
)

type PaymentHandler struct {
	payments *service.PaymentService
	refunds  *service.RefundService
	logger   *zap.Logger
}

func NewPaymentHandler(payments *service.PaymentService, refunds *service.RefundService, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		payments: payments,
		refunds:  refunds,
		logger:   logger,
	}
}

func (h *PaymentHandler) ProcessPayment(c *gin.Context) {
	var req models.PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{
			"code":    errs.CodeValidation,
			"message": "invalid request body",
		}})
		return
	}

	result, err := h.payments.ProcessPayment(c.Request.Context(), &req)
	if err != nil {
		h.fail(c, "process payment", err)
		return
	}

	c.JSON(resultStatus(result.Success, result.Error, http.StatusOK), result)
}

func (h *PaymentHandler) GetPayment(c *gin.Context) {
	payment, err := h.payments.GetPayment(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "get payment", err)
		return
	}
	if payment == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{
			"code":    errs.CodeNotFound,
			"message": "payment not found",
		}})
		return
	}
	c.JSON(http.StatusOK, payment)
}

func (h *PaymentHandler) GetPaymentHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	payments, err := h.payments.GetPaymentHistory(c.Request.Context(), c.Param("userId"), limit, offset)
	if err != nil {
		h.fail(c, "get payment history", err)
		return
	}
	if payments == nil {
		payments = []*models.Payment{}
	}
	c.JSON(http.StatusOK, gin.H{"payments": payments})
}

func (h *PaymentHandler) ProcessRefund(c *gin.Context) {
	var req models.RefundRequest
	// An empty body is a full refund with no reason.
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{
			"code":    errs.CodeValidation,
			"message": "invalid request body",
		}})
		return
	}
	req.PaymentID = c.Param("id")

	result, err := h.refunds.ProcessRefund(c.Request.Context(), &req)
	if err != nil {
		h.fail(c, "process refund", err)
		return
	}

	c.JSON(resultStatus(result.Success, result.Error, http.StatusOK), result)
}

func (h *PaymentHandler) fail(c *gin.Context, op string, err error) {
	h.logger.Error("request failed", zap.String("operation", op), zap.Error(err))

	var e *errs.Error
	if errors.As(err, &e) {
		c.JSON(e.HTTPStatus, gin.H{"error": gin.H{
			"code":    e.Code,
			"message": e.Message,
		}})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{
		"code":    errs.CodeInternal,
		"message": "internal error",
	}})
}

// resultStatus maps a structured domain result onto an HTTP status; domain
// failures carry their status in the error detail.
func resultStatus(success bool, detail *models.ErrorDetail, ok int) int {
	if success {
		return ok
	}
	if detail != nil && detail.HTTPStatus != 0 {
		return detail.HTTPStatus
	}
	return http.StatusBadRequest
}
