package ports

//go:generate mockgen -source=services.go -destination=mocks/services_mock.go -package=mocks

import (
	"context"
	"time"

	"bharatpay-gateway/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// QRRenderer turns a payment payload string into PNG image bytes.
// Rendering failure aborts the enclosing create operation.
type QRRenderer interface {
	Render(payload string) ([]byte, error)
}

// SettlementOutcome is the result of one settlement check.
type SettlementOutcome int

const (
	SettlementPending SettlementOutcome = iota
	SettlementSuccess
	SettlementFailed
)

// SettlementDecider decides the outcome of a pending transaction. The
// simulator draws at random; a real settlement integration can replace it
// without touching the ledger's transition logic.
type SettlementDecider interface {
	Decide() SettlementOutcome
}

// HashService handles admin password hashing (Argon2id).
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) (bool, error)
}

// TokenService handles admin-console JWT operations.
type TokenService interface {
	Generate(adminID uuid.UUID, username string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	AdminID  uuid.UUID
	Username string
}

// --- Service Ports (Business Logic) ---

// KeyService is the credential store: issues, validates, and revokes API keys.
type KeyService interface {
	// Issue returns the plaintext secret exactly once plus the persisted record.
	Issue(ctx context.Context, ownerName string, expiryDays int) (string, *domain.APIKey, error)
	// Validate authorizes a presented secret. A nil key with nil error means
	// demo-mode traffic (no associated credential).
	Validate(ctx context.Context, presented string) (*domain.APIKey, error)
	Toggle(ctx context.Context, id uuid.UUID) (*domain.APIKey, error)
	Revoke(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context) ([]domain.APIKey, error)
}

// CreateTransactionRequest holds validated input for order creation.
type CreateTransactionRequest struct {
	UPIID      string
	Amount     decimal.Decimal
	Message    string
	OrderID    string // optional; generated when empty
	APIKeyID   *uuid.UUID
	WebhookURL *string
}

// PaymentService is the order/transaction ledger.
type PaymentService interface {
	CreateTransaction(ctx context.Context, req CreateTransactionRequest) (*domain.Transaction, error)
	Verify(ctx context.Context, orderID, merchantID, merchantKey string) (*domain.Transaction, error)
}

// CreateLinkRequest holds validated input for payment link creation.
type CreateLinkRequest struct {
	UPIID          string
	Amount         decimal.Decimal
	Description    string
	APIKeyID       *uuid.UUID
	MaxUses        *int
	ExpiresInHours *int
}

// LinkService manages reusable payment links.
type LinkService interface {
	Create(ctx context.Context, req CreateLinkRequest) (*domain.PaymentLink, error)
	// Redeem mints a new transaction from the link template and consumes one use.
	Redeem(ctx context.Context, linkID string) (*domain.Transaction, error)
	Get(ctx context.Context, linkID string) (*domain.PaymentLink, error)
}

// AuditService records security-relevant events, best-effort.
type AuditService interface {
	// Record never fails the caller; persistence errors are logged and swallowed.
	Record(ctx context.Context, entry *domain.AuditLog)
	List(ctx context.Context, page, pageSize int) ([]domain.AuditLog, int64, error)
}

// AuthService authenticates console admins.
type AuthService interface {
	Login(ctx context.Context, username, password string) (string, time.Time, error) // token, expiry, error
	// EnsureSeedAdmin creates the configured admin account if it does not exist.
	EnsureSeedAdmin(ctx context.Context, username, password string) error
}

// ReportingService serves the admin dashboard.
type ReportingService interface {
	GetStats(ctx context.Context) (*GatewayStats, error)
	ListTransactions(ctx context.Context, params TransactionListParams) ([]domain.Transaction, int64, error)
}

// WebhookNotifier delivers payment status callbacks, best-effort.
type WebhookNotifier interface {
	Notify(ctx context.Context, txn *domain.Transaction)
}
