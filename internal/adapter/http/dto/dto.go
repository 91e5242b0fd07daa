package dto

import (
	"time"

	"bharatpay-gateway/internal/core/domain"
	"bharatpay-gateway/internal/core/ports"

	"github.com/shopspring/decimal"
)

// --- Admin console ---

// AdminLoginRequest is the request body for console login.
type AdminLoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AdminLoginResponse is the response body for successful login.
type AdminLoginResponse struct {
	Token  string `json:"token"`
	Expiry int64  `json:"expiry"` // Unix timestamp
}

// CreateKeyRequest is the request body for issuing an API key.
type CreateKeyRequest struct {
	OwnerName  string `json:"owner_name" binding:"required,min=1,max=100"`
	ExpiryDays int    `json:"expiry_days" binding:"required,gt=0"`
}

// CreateKeyResponse carries the plaintext secret, shown exactly once.
type CreateKeyResponse struct {
	APIKey string         `json:"api_key"`
	Key    APIKeyResponse `json:"key"`
}

// APIKeyResponse is the redacted key record for the console.
type APIKeyResponse struct {
	ID            string  `json:"id"`
	KeyPrefix     string  `json:"key_prefix"`
	OwnerName     string  `json:"owner_name"`
	CreatedAt     string  `json:"created_at"`
	ExpiresAt     string  `json:"expires_at"`
	IsActive      bool    `json:"is_active"`
	TotalRequests int64   `json:"total_requests"`
	LastUsedAt    *string `json:"last_used_at,omitempty"`
}

// --- Payments ---

// GenerateQRRequest is the request body for opening a payment.
type GenerateQRRequest struct {
	UPIID      string          `json:"upi_id" binding:"required,max=100"`
	Amount     decimal.Decimal `json:"amount" binding:"required"`
	Message    string          `json:"message" binding:"max=200"`
	OrderID    string          `json:"order_id" binding:"omitempty,safe_id,max=64"`
	WebhookURL *string         `json:"webhook_url" binding:"omitempty,safe_url,max=500"`
}

// VerifyPaymentRequest is the request body for a settlement check.
type VerifyPaymentRequest struct {
	OrderID     string `json:"order_id" binding:"required,safe_id,max=64"`
	MerchantID  string `json:"merchant_id" binding:"required,max=64"`
	MerchantKey string `json:"merchant_key" binding:"required,max=64"`
}

// TransactionResponse is the wire form of a transaction. MerchantKey is
// populated only in the creation response.
type TransactionResponse struct {
	OrderID     string  `json:"order_id"`
	Amount      string  `json:"amount"`
	UPIID       string  `json:"upi_id"`
	Message     string  `json:"message"`
	MerchantID  string  `json:"merchant_id"`
	MerchantKey string  `json:"merchant_key,omitempty"`
	QRData      string  `json:"qr_data,omitempty"`
	QRCode      string  `json:"qr_code,omitempty"` // base64 PNG
	Status      string  `json:"status"`
	CreatedAt   string  `json:"created_at"`
	PaidAt      *string `json:"paid_at,omitempty"`
	GatewayRef  *string `json:"bharatpay_reference,omitempty"`
	BankRef     *string `json:"bank_reference,omitempty"`
}

// --- Payment links ---

// CreateLinkRequest is the request body for creating a payment link.
type CreateLinkRequest struct {
	UPIID          string          `json:"upi_id" binding:"required,max=100"`
	Amount         decimal.Decimal `json:"amount" binding:"required"`
	Description    string          `json:"description" binding:"max=200"`
	MaxUses        *int            `json:"max_uses" binding:"omitempty,gt=0"`
	ExpiresInHours *int            `json:"expires_in_hours" binding:"omitempty,gt=0"`
}

// PaymentLinkResponse is the wire form of a payment link.
type PaymentLinkResponse struct {
	LinkID      string  `json:"link_id"`
	PayURL      string  `json:"pay_url"`
	Amount      string  `json:"amount"`
	UPIID       string  `json:"upi_id"`
	Description string  `json:"description"`
	IsActive    bool    `json:"is_active"`
	MaxUses     *int    `json:"max_uses,omitempty"`
	CurrentUses int     `json:"current_uses"`
	ExpiresAt   *string `json:"expires_at,omitempty"`
	CreatedAt   string  `json:"created_at"`
}

// --- Reporting ---

// StatsResponse is the admin dashboard aggregate.
type StatsResponse struct {
	TotalTransactions  int64  `json:"total_transactions"`
	SuccessfulPayments int64  `json:"successful_payments"`
	PendingPayments    int64  `json:"pending_payments"`
	FailedPayments     int64  `json:"failed_payments"`
	TotalAPIKeys       int64  `json:"total_api_keys"`
	ActiveAPIKeys      int64  `json:"active_api_keys"`
	TotalAmount        string `json:"total_amount"`
}

// TransactionListResponse wraps a paginated transaction list.
type TransactionListResponse struct {
	Items      []TransactionResponse `json:"items"`
	Total      int64                 `json:"total"`
	Page       int                   `json:"page"`
	PageSize   int                   `json:"page_size"`
	TotalPages int                   `json:"total_pages"`
}

// AuditLogResponse is the wire form of one audit trail entry.
type AuditLogResponse struct {
	ID         string `json:"id"`
	Action     string `json:"action"`
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id,omitempty"`
	Details    string `json:"details,omitempty"`
	IPAddress  string `json:"ip_address,omitempty"`
	UserAgent  string `json:"user_agent,omitempty"`
	CreatedAt  string `json:"created_at"`
}

// AuditLogListResponse wraps a paginated audit trail page.
type AuditLogListResponse struct {
	Items    []AuditLogResponse `json:"items"`
	Total    int64              `json:"total"`
	Page     int                `json:"page"`
	PageSize int                `json:"page_size"`
}

// --- Converters ---

// FromAPIKey converts a domain key to its redacted wire form.
func FromAPIKey(k *domain.APIKey) APIKeyResponse {
	resp := APIKeyResponse{
		ID:            k.ID.String(),
		KeyPrefix:     k.KeyPrefix,
		OwnerName:     k.OwnerName,
		CreatedAt:     k.CreatedAt.Format(time.RFC3339),
		ExpiresAt:     k.ExpiresAt.Format(time.RFC3339),
		IsActive:      k.IsActive,
		TotalRequests: k.TotalRequests,
	}
	if k.LastUsedAt != nil {
		s := k.LastUsedAt.Format(time.RFC3339)
		resp.LastUsedAt = &s
	}
	return resp
}

// FromTransaction converts a domain transaction to its wire form. The
// merchant key is omitted; creation responses add it explicitly.
func FromTransaction(t *domain.Transaction) TransactionResponse {
	resp := TransactionResponse{
		OrderID:    t.OrderID,
		Amount:     t.Amount.String(),
		UPIID:      t.UPIID,
		Message:    t.Message,
		MerchantID: t.MerchantID,
		QRData:     t.QRData,
		QRCode:     t.QRCodeBase64,
		Status:     string(t.Status),
		CreatedAt:  t.CreatedAt.Format(time.RFC3339),
		GatewayRef: t.GatewayRef,
		BankRef:    t.BankRef,
	}
	if t.PaidAt != nil {
		s := t.PaidAt.Format(time.RFC3339)
		resp.PaidAt = &s
	}
	return resp
}

// FromPaymentLink converts a domain payment link to its wire form.
func FromPaymentLink(l *domain.PaymentLink) PaymentLinkResponse {
	resp := PaymentLinkResponse{
		LinkID:      l.LinkID,
		PayURL:      "/api/public/pay/" + l.LinkID,
		Amount:      l.Amount.String(),
		UPIID:       l.UPIID,
		Description: l.Description,
		IsActive:    l.IsActive,
		MaxUses:     l.MaxUses,
		CurrentUses: l.CurrentUses,
		CreatedAt:   l.CreatedAt.Format(time.RFC3339),
	}
	if l.ExpiresAt != nil {
		s := l.ExpiresAt.Format(time.RFC3339)
		resp.ExpiresAt = &s
	}
	return resp
}

// FromAuditLog converts a domain audit entry to its wire form.
func FromAuditLog(e *domain.AuditLog) AuditLogResponse {
	return AuditLogResponse{
		ID:         e.ID.String(),
		Action:     string(e.Action),
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		Details:    e.Details,
		IPAddress:  e.IPAddress,
		UserAgent:  e.UserAgent,
		CreatedAt:  e.CreatedAt.Format(time.RFC3339),
	}
}

// FromStats converts gateway aggregates to their wire form.
func FromStats(s *ports.GatewayStats) StatsResponse {
	return StatsResponse{
		TotalTransactions:  s.TotalTransactions,
		SuccessfulPayments: s.SuccessfulPayments,
		PendingPayments:    s.PendingPayments,
		FailedPayments:     s.FailedPayments,
		TotalAPIKeys:       s.TotalAPIKeys,
		ActiveAPIKeys:      s.ActiveAPIKeys,
		TotalAmount:        s.TotalAmount.String(),
	}
}
