package postgres

import (
	"context"
	"errors"
	"fmt"

	"bharatpay-gateway/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// PaymentLinkRepo implements ports.PaymentLinkRepository.
type PaymentLinkRepo struct {
	pool Pool
}

// NewPaymentLinkRepo creates a new PaymentLinkRepo.
func NewPaymentLinkRepo(pool Pool) *PaymentLinkRepo {
	return &PaymentLinkRepo{pool: pool}
}

const linkColumns = `id, link_id, api_key_id, amount, upi_id, description, is_active, max_uses, current_uses, expires_at, created_at`

// Create inserts a new payment link.
func (r *PaymentLinkRepo) Create(ctx context.Context, l *domain.PaymentLink) error {
	query := `INSERT INTO payment_links (id, link_id, api_key_id, amount, upi_id, description, is_active, max_uses, current_uses, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.pool.Exec(ctx, query,
		l.ID, l.LinkID, l.APIKeyID, l.Amount, l.UPIID, l.Description,
		l.IsActive, l.MaxUses, l.CurrentUses, l.ExpiresAt, l.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payment link: %w", err)
	}
	return nil
}

// GetByLinkID fetches a payment link by its public identifier.
func (r *PaymentLinkRepo) GetByLinkID(ctx context.Context, linkID string) (*domain.PaymentLink, error) {
	query := `SELECT ` + linkColumns + ` FROM payment_links WHERE link_id = $1`
	return r.scanLink(r.pool.QueryRow(ctx, query, linkID))
}

// GetByLinkIDForUpdate fetches a payment link under a row lock, serializing
// concurrent redemptions.
func (r *PaymentLinkRepo) GetByLinkIDForUpdate(ctx context.Context, tx pgx.Tx, linkID string) (*domain.PaymentLink, error) {
	query := `SELECT ` + linkColumns + ` FROM payment_links WHERE link_id = $1 FOR UPDATE`
	return r.scanLink(tx.QueryRow(ctx, query, linkID))
}

// IncrementUses bumps current_uses inside the redemption transaction.
func (r *PaymentLinkRepo) IncrementUses(ctx context.Context, tx pgx.Tx, linkID string) error {
	query := `UPDATE payment_links SET current_uses = current_uses + 1 WHERE link_id = $1`

	tag, err := tx.Exec(ctx, query, linkID)
	if err != nil {
		return fmt.Errorf("increment link uses: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("payment link not found: %s", linkID)
	}
	return nil
}

// SetActive soft-enables or soft-disables the link.
func (r *PaymentLinkRepo) SetActive(ctx context.Context, linkID string, active bool) error {
	query := `UPDATE payment_links SET is_active = $1 WHERE link_id = $2`

	tag, err := r.pool.Exec(ctx, query, active, linkID)
	if err != nil {
		return fmt.Errorf("set link active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("payment link not found: %s", linkID)
	}
	return nil
}

// List fetches all payment links, newest first.
func (r *PaymentLinkRepo) List(ctx context.Context) ([]domain.PaymentLink, error) {
	query := `SELECT ` + linkColumns + ` FROM payment_links ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list payment links: %w", err)
	}
	defer rows.Close()

	var links []domain.PaymentLink
	for rows.Next() {
		l := domain.PaymentLink{}
		err := rows.Scan(
			&l.ID, &l.LinkID, &l.APIKeyID, &l.Amount, &l.UPIID, &l.Description,
			&l.IsActive, &l.MaxUses, &l.CurrentUses, &l.ExpiresAt, &l.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan payment link row: %w", err)
		}
		links = append(links, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payment link rows: %w", err)
	}
	return links, nil
}

func (r *PaymentLinkRepo) scanLink(row pgx.Row) (*domain.PaymentLink, error) {
	l := &domain.PaymentLink{}
	err := row.Scan(
		&l.ID, &l.LinkID, &l.APIKeyID, &l.Amount, &l.UPIID, &l.Description,
		&l.IsActive, &l.MaxUses, &l.CurrentUses, &l.ExpiresAt, &l.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan payment link: %w", err)
	}
	return l, nil
}
