package ports

//go:generate mockgen -source=repositories.go -destination=mocks/repositories_mock.go -package=mocks

import (
	"context"

	"bharatpay-gateway/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// APIKeyRepository defines persistence operations for tenant credentials.
// Lookups return (nil, nil) when no record matches.
type APIKeyRepository interface {
	Create(ctx context.Context, key *domain.APIKey) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.APIKey, error)
	GetByHash(ctx context.Context, keyHash string) (*domain.APIKey, error)
	List(ctx context.Context) ([]domain.APIKey, error)
	// Touch increments the usage counter and stamps last-used in one statement.
	Touch(ctx context.Context, id uuid.UUID) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// TransactionRepository defines persistence operations for the order ledger.
// Methods accepting pgx.Tx run inside a database transaction; the ForUpdate
// variant takes a row lock to serialize status transitions per order.
type TransactionRepository interface {
	Create(ctx context.Context, txn *domain.Transaction) error
	CreateInTx(ctx context.Context, tx pgx.Tx, txn *domain.Transaction) error
	GetByOrderID(ctx context.Context, orderID string) (*domain.Transaction, error)
	GetByOrderIDForUpdate(ctx context.Context, tx pgx.Tx, orderID string) (*domain.Transaction, error)
	// UpdateSettlement persists a PENDING -> terminal transition.
	UpdateSettlement(ctx context.Context, tx pgx.Tx, txn *domain.Transaction) error
	MarkWebhookSent(ctx context.Context, orderID string) error
	// DetachAPIKey nulls the owning credential on all transactions of a revoked key.
	DetachAPIKey(ctx context.Context, keyID uuid.UUID) (int64, error)
	List(ctx context.Context, params TransactionListParams) ([]domain.Transaction, int64, error)
	GetStats(ctx context.Context) (*GatewayStats, error)
}

// TransactionListParams holds filter + pagination for listing transactions.
type TransactionListParams struct {
	Status   *domain.TransactionStatus
	APIKeyID *uuid.UUID
	Page     int
	PageSize int
}

// GatewayStats holds aggregated counters for the admin dashboard.
type GatewayStats struct {
	TotalTransactions  int64
	SuccessfulPayments int64
	PendingPayments    int64
	FailedPayments     int64
	TotalAPIKeys       int64
	ActiveAPIKeys      int64
	TotalAmount        decimal.Decimal // sum of SUCCESS amounts
}

// PaymentLinkRepository defines persistence operations for payment links.
type PaymentLinkRepository interface {
	Create(ctx context.Context, link *domain.PaymentLink) error
	GetByLinkID(ctx context.Context, linkID string) (*domain.PaymentLink, error)
	GetByLinkIDForUpdate(ctx context.Context, tx pgx.Tx, linkID string) (*domain.PaymentLink, error)
	// IncrementUses bumps current_uses inside the redemption transaction.
	IncrementUses(ctx context.Context, tx pgx.Tx, linkID string) error
	SetActive(ctx context.Context, linkID string, active bool) error
	List(ctx context.Context) ([]domain.PaymentLink, error)
}

// AuditRepository defines persistence for the append-only audit trail.
type AuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
	List(ctx context.Context, page, pageSize int) ([]domain.AuditLog, int64, error)
}

// AdminRepository defines persistence for console operator accounts.
type AdminRepository interface {
	Create(ctx context.Context, admin *domain.Admin) error
	GetByUsername(ctx context.Context, username string) (*domain.Admin, error)
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
