package handler

import (
	"strconv"

	"bharatpay-gateway/internal/adapter/http/dto"
	"bharatpay-gateway/internal/core/domain"
	"bharatpay-gateway/internal/core/ports"
	"bharatpay-gateway/pkg/apperror"
	"bharatpay-gateway/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// DashboardHandler serves the admin reporting endpoints.
type DashboardHandler struct {
	reportingSvc ports.ReportingService
	auditSvc     ports.AuditService
}

func NewDashboardHandler(reportingSvc ports.ReportingService, auditSvc ports.AuditService) *DashboardHandler {
	return &DashboardHandler{reportingSvc: reportingSvc, auditSvc: auditSvc}
}

// GetStats handles GET /api/admin/stats.
func (h *DashboardHandler) GetStats(c *gin.Context) {
	stats, err := h.reportingSvc.GetStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.FromStats(stats))
}

// ListTransactions handles GET /api/admin/transactions with optional
// status, api_key_id, page and page_size query filters.
func (h *DashboardHandler) ListTransactions(c *gin.Context) {
	params := ports.TransactionListParams{
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "page_size", 20),
	}

	if raw := c.Query("status"); raw != "" {
		status := domain.TransactionStatus(raw)
		switch status {
		case domain.TransactionStatusPending, domain.TransactionStatusSuccess, domain.TransactionStatusFailed:
			params.Status = &status
		default:
			response.Error(c, apperror.Validation("status must be PENDING, SUCCESS or FAILED"))
			return
		}
	}
	if raw := c.Query("api_key_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.Error(c, apperror.Validation("invalid api_key_id"))
			return
		}
		params.APIKeyID = &id
	}

	txns, total, err := h.reportingSvc.ListTransactions(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.TransactionResponse, 0, len(txns))
	for i := range txns {
		items = append(items, dto.FromTransaction(&txns[i]))
	}
	pageSize := params.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	response.OK(c, dto.TransactionListResponse{
		Items:      items,
		Total:      total,
		Page:       params.Page,
		PageSize:   pageSize,
		TotalPages: int((total + int64(pageSize) - 1) / int64(pageSize)),
	})
}

// ListAuditLogs handles GET /api/admin/audit-logs.
func (h *DashboardHandler) ListAuditLogs(c *gin.Context) {
	page := queryInt(c, "page", 1)
	pageSize := queryInt(c, "page_size", 50)

	entries, total, err := h.auditSvc.List(c.Request.Context(), page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.AuditLogResponse, 0, len(entries))
	for i := range entries {
		items = append(items, dto.FromAuditLog(&entries[i]))
	}
	response.OK(c, dto.AuditLogListResponse{
		Items:    items,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}

func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
