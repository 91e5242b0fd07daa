package handler

import (
	"bharatpay-gateway/internal/adapter/http/dto"
	"bharatpay-gateway/internal/adapter/http/middleware"
	"bharatpay-gateway/internal/core/ports"
	"bharatpay-gateway/pkg/apperror"
	"bharatpay-gateway/pkg/response"

	"github.com/gin-gonic/gin"
)

// LinkHandler serves payment link creation and the public pay flow.
type LinkHandler struct {
	linkSvc ports.LinkService
}

func NewLinkHandler(linkSvc ports.LinkService) *LinkHandler {
	return &LinkHandler{linkSvc: linkSvc}
}

// Create handles POST /api/v1/payment-link/create.
func (h *LinkHandler) Create(c *gin.Context) {
	var req dto.CreateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation("upi_id and a positive amount are required"))
		return
	}
	dto.SanitizeStruct(&req)

	link, err := h.linkSvc.Create(c.Request.Context(), ports.CreateLinkRequest{
		UPIID:          req.UPIID,
		Amount:         req.Amount,
		Description:    req.Description,
		APIKeyID:       middleware.APIKeyIDFromContext(c),
		MaxUses:        req.MaxUses,
		ExpiresInHours: req.ExpiresInHours,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.FromPaymentLink(link))
}

// Get handles GET /api/public/links/:link_id. Exposes the link template
// without consuming a use.
func (h *LinkHandler) Get(c *gin.Context) {
	link, err := h.linkSvc.Get(c.Request.Context(), c.Param("link_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.FromPaymentLink(link))
}

// Redeem handles POST /api/public/pay/:link_id. Each successful call mints
// a fresh pending transaction and consumes one use.
func (h *LinkHandler) Redeem(c *gin.Context) {
	txn, err := h.linkSvc.Redeem(c.Request.Context(), c.Param("link_id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	resp := dto.FromTransaction(txn)
	resp.MerchantKey = txn.MerchantKey
	response.Created(c, resp)
}
