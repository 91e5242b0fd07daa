package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bharatpay-gateway/internal/core/domain"
	"bharatpay-gateway/internal/core/ports"
	"bharatpay-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// TransactionRepo implements ports.TransactionRepository.
type TransactionRepo struct {
	pool Pool
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(pool Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

const txnColumns = `id, order_id, api_key_id, amount, upi_id, message, merchant_id, merchant_key,
		qr_data, qr_code_base64, status, created_at, paid_at,
		webhook_url, webhook_sent, webhook_sent_at, gateway_ref, bank_ref`

const insertTxnQuery = `INSERT INTO transactions (id, order_id, api_key_id, amount, upi_id, message, merchant_id, merchant_key,
		qr_data, qr_code_base64, status, created_at, paid_at,
		webhook_url, webhook_sent, webhook_sent_at, gateway_ref, bank_ref)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

// Create inserts a new transaction. An order_id uniqueness violation surfaces
// as a duplicate-order error.
func (r *TransactionRepo) Create(ctx context.Context, t *domain.Transaction) error {
	_, err := r.pool.Exec(ctx, insertTxnQuery, txnArgs(t)...)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.ErrDuplicateOrder()
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// CreateInTx inserts a new transaction inside an open database transaction.
func (r *TransactionRepo) CreateInTx(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	_, err := tx.Exec(ctx, insertTxnQuery, txnArgs(t)...)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.ErrDuplicateOrder()
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// GetByOrderID fetches a transaction by its order identifier.
func (r *TransactionRepo) GetByOrderID(ctx context.Context, orderID string) (*domain.Transaction, error) {
	query := `SELECT ` + txnColumns + ` FROM transactions WHERE order_id = $1`
	return scanTransaction(r.pool.QueryRow(ctx, query, orderID))
}

// GetByOrderIDForUpdate fetches a transaction under a row lock, serializing
// concurrent settlement attempts on the same order.
func (r *TransactionRepo) GetByOrderIDForUpdate(ctx context.Context, tx pgx.Tx, orderID string) (*domain.Transaction, error) {
	query := `SELECT ` + txnColumns + ` FROM transactions WHERE order_id = $1 FOR UPDATE`
	return scanTransaction(tx.QueryRow(ctx, query, orderID))
}

// UpdateSettlement persists a PENDING -> terminal transition.
func (r *TransactionRepo) UpdateSettlement(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	query := `UPDATE transactions SET status = $1, paid_at = $2, gateway_ref = $3, bank_ref = $4 WHERE order_id = $5`

	tag, err := tx.Exec(ctx, query, t.Status, t.PaidAt, t.GatewayRef, t.BankRef, t.OrderID)
	if err != nil {
		return fmt.Errorf("update settlement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transaction not found: %s", t.OrderID)
	}
	return nil
}

// MarkWebhookSent stamps webhook_sent after a delivered callback.
func (r *TransactionRepo) MarkWebhookSent(ctx context.Context, orderID string) error {
	query := `UPDATE transactions SET webhook_sent = TRUE, webhook_sent_at = $1 WHERE order_id = $2`

	tag, err := r.pool.Exec(ctx, query, time.Now().UTC(), orderID)
	if err != nil {
		return fmt.Errorf("mark webhook sent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transaction not found: %s", orderID)
	}
	return nil
}

// DetachAPIKey nulls the owning credential on all transactions of a revoked
// key and returns how many rows were touched.
func (r *TransactionRepo) DetachAPIKey(ctx context.Context, keyID uuid.UUID) (int64, error) {
	query := `UPDATE transactions SET api_key_id = NULL WHERE api_key_id = $1`

	tag, err := r.pool.Exec(ctx, query, keyID)
	if err != nil {
		return 0, fmt.Errorf("detach api key: %w", err)
	}
	return tag.RowsAffected(), nil
}

// List fetches transactions with filtering and pagination, newest first.
func (r *TransactionRepo) List(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	if params.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *params.Status)
		argIdx++
	}
	if params.APIKeyID != nil {
		conditions = append(conditions, fmt.Sprintf("api_key_id = $%d", argIdx))
		args = append(args, *params.APIKeyID)
		argIdx++
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM transactions %s", where)
	var total int64
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	offset := (params.Page - 1) * params.PageSize
	dataQuery := fmt.Sprintf(`SELECT %s FROM transactions %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		txnColumns, where, argIdx, argIdx+1)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		t := domain.Transaction{}
		if err := scanTransactionInto(rows, &t); err != nil {
			return nil, 0, fmt.Errorf("scan transaction row: %w", err)
		}
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate transaction rows: %w", err)
	}
	return txns, total, nil
}

// GetStats retrieves gateway-wide aggregates for the admin dashboard.
func (r *TransactionRepo) GetStats(ctx context.Context) (*ports.GatewayStats, error) {
	query := `SELECT
		COUNT(*) AS total,
		COUNT(*) FILTER (WHERE status = 'SUCCESS') AS successful,
		COUNT(*) FILTER (WHERE status = 'PENDING') AS pending,
		COUNT(*) FILTER (WHERE status = 'FAILED') AS failed,
		COALESCE(SUM(amount) FILTER (WHERE status = 'SUCCESS'), 0) AS total_amount,
		(SELECT COUNT(*) FROM api_keys) AS total_keys,
		(SELECT COUNT(*) FROM api_keys WHERE is_active) AS active_keys
		FROM transactions`

	stats := &ports.GatewayStats{}
	err := r.pool.QueryRow(ctx, query).Scan(
		&stats.TotalTransactions, &stats.SuccessfulPayments, &stats.PendingPayments,
		&stats.FailedPayments, &stats.TotalAmount, &stats.TotalAPIKeys, &stats.ActiveAPIKeys,
	)
	if err != nil {
		return nil, fmt.Errorf("get gateway stats: %w", err)
	}
	return stats, nil
}

// txnArgs flattens a transaction into insert arguments in column order.
func txnArgs(t *domain.Transaction) []any {
	return []any{
		t.ID, t.OrderID, t.APIKeyID, t.Amount, t.UPIID, t.Message,
		t.MerchantID, t.MerchantKey, t.QRData, t.QRCodeBase64, t.Status,
		t.CreatedAt, t.PaidAt, t.WebhookURL, t.WebhookSent, t.WebhookSentAt,
		t.GatewayRef, t.BankRef,
	}
}

// scanTransaction is a helper to scan a single row into a Transaction.
func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	t := &domain.Transaction{}
	if err := scanTransactionInto(row, t); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	return t, nil
}

func scanTransactionInto(row pgx.Row, t *domain.Transaction) error {
	return row.Scan(
		&t.ID, &t.OrderID, &t.APIKeyID, &t.Amount, &t.UPIID, &t.Message,
		&t.MerchantID, &t.MerchantKey, &t.QRData, &t.QRCodeBase64, &t.Status,
		&t.CreatedAt, &t.PaidAt, &t.WebhookURL, &t.WebhookSent, &t.WebhookSentAt,
		&t.GatewayRef, &t.BankRef,
	)
}

// isUniqueViolation reports whether err is a PostgreSQL unique_violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
