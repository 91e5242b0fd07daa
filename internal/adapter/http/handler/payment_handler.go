package handler

import (
	"bharatpay-gateway/internal/adapter/http/dto"
	"bharatpay-gateway/internal/adapter/http/middleware"
	"bharatpay-gateway/internal/core/ports"
	"bharatpay-gateway/pkg/apperror"
	"bharatpay-gateway/pkg/response"

	"github.com/gin-gonic/gin"
)

// PaymentHandler serves the merchant payment API.
type PaymentHandler struct {
	paymentSvc ports.PaymentService
}

func NewPaymentHandler(paymentSvc ports.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentSvc: paymentSvc}
}

// GenerateQR handles POST /api/v1/qr/generate. The creation response is the
// only place the merchant verification key appears.
func (h *PaymentHandler) GenerateQR(c *gin.Context) {
	var req dto.GenerateQRRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation("upi_id and a positive amount are required"))
		return
	}
	dto.SanitizeStruct(&req)

	txn, err := h.paymentSvc.CreateTransaction(c.Request.Context(), ports.CreateTransactionRequest{
		UPIID:      req.UPIID,
		Amount:     req.Amount,
		Message:    req.Message,
		OrderID:    req.OrderID,
		APIKeyID:   middleware.APIKeyIDFromContext(c),
		WebhookURL: req.WebhookURL,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	resp := dto.FromTransaction(txn)
	resp.MerchantKey = txn.MerchantKey
	response.Created(c, resp)
}

// VerifyPayment handles POST /api/v1/payment/verify. Repeated calls on a
// pending order eventually settle it; terminal orders are returned as-is.
func (h *PaymentHandler) VerifyPayment(c *gin.Context) {
	var req dto.VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation("order_id, merchant_id and merchant_key are required"))
		return
	}
	dto.SanitizeStruct(&req)

	txn, err := h.paymentSvc.Verify(c.Request.Context(), req.OrderID, req.MerchantID, req.MerchantKey)
	if err != nil {
		response.Error(c, err)
		return
	}

	resp := dto.FromTransaction(txn)
	resp.QRCode = "" // verification responses skip the image payload
	response.OK(c, resp)
}
