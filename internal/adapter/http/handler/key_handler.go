package handler

import (
	"bharatpay-gateway/internal/adapter/http/dto"
	"bharatpay-gateway/internal/core/ports"
	"bharatpay-gateway/pkg/apperror"
	"bharatpay-gateway/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// KeyHandler serves admin API-key management.
type KeyHandler struct {
	keySvc ports.KeyService
}

func NewKeyHandler(keySvc ports.KeyService) *KeyHandler {
	return &KeyHandler{keySvc: keySvc}
}

// Create handles POST /api/admin/api-keys. The plaintext secret appears in
// this response and nowhere else.
func (h *KeyHandler) Create(c *gin.Context) {
	var req dto.CreateKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation("owner_name and a positive expiry_days are required"))
		return
	}
	dto.SanitizeStruct(&req)

	secret, key, err := h.keySvc.Issue(c.Request.Context(), req.OwnerName, req.ExpiryDays)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.CreateKeyResponse{
		APIKey: secret,
		Key:    dto.FromAPIKey(key),
	})
}

// List handles GET /api/admin/api-keys.
func (h *KeyHandler) List(c *gin.Context) {
	keys, err := h.keySvc.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.APIKeyResponse, 0, len(keys))
	for i := range keys {
		items = append(items, dto.FromAPIKey(&keys[i]))
	}
	response.OK(c, items)
}

// Toggle handles POST /api/admin/api-keys/:id/toggle.
func (h *KeyHandler) Toggle(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid key id"))
		return
	}

	key, err := h.keySvc.Toggle(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.FromAPIKey(key))
}

// Revoke handles DELETE /api/admin/api-keys/:id. Transactions created with
// the key survive; only the credential is removed.
func (h *KeyHandler) Revoke(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid key id"))
		return
	}

	if err := h.keySvc.Revoke(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"revoked": true})
}
