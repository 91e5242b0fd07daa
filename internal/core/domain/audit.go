package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionAdminLoginSuccess  AuditAction = "ADMIN_LOGIN_SUCCESS"
	AuditActionAdminLoginFailed   AuditAction = "ADMIN_LOGIN_FAILED"
	AuditActionAPIKeyCreated      AuditAction = "API_KEY_CREATED"
	AuditActionAPIKeyToggled      AuditAction = "API_KEY_TOGGLED"
	AuditActionAPIKeyRevoked      AuditAction = "API_KEY_REVOKED"
	AuditActionAPIKeyInvalid      AuditAction = "API_KEY_INVALID"
	AuditActionDemoModeAccess     AuditAction = "DEMO_MODE_ACCESS"
	AuditActionTransactionCreated AuditAction = "TRANSACTION_CREATED"
	AuditActionPaymentVerified    AuditAction = "PAYMENT_VERIFIED"
	AuditActionLinkCreated        AuditAction = "PAYMENT_LINK_CREATED"
	AuditActionLinkRedeemed       AuditAction = "PAYMENT_LINK_REDEEMED"
)

// Audited entity types.
const (
	EntityAPIKey      = "API_KEY"
	EntityTransaction = "TRANSACTION"
	EntityPaymentLink = "PAYMENT_LINK"
	EntityAdmin       = "ADMIN"
)

// AuditLog is an append-only record of a security-relevant action.
// Recording one must never abort the operation that triggered it.
type AuditLog struct {
	ID         uuid.UUID   `json:"id"`
	Action     AuditAction `json:"action"`
	EntityType string      `json:"entity_type"`
	EntityID   string      `json:"entity_id,omitempty"`
	Details    string      `json:"details,omitempty"`
	IPAddress  string      `json:"ip_address,omitempty"`
	UserAgent  string      `json:"user_agent,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
}
