package postgres

import (
	"context"
	"errors"
	"fmt"

	"bharatpay-gateway/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// APIKeyRepo implements ports.APIKeyRepository.
type APIKeyRepo struct {
	pool Pool
}

// NewAPIKeyRepo creates a new APIKeyRepo.
func NewAPIKeyRepo(pool Pool) *APIKeyRepo {
	return &APIKeyRepo{pool: pool}
}

const apiKeyColumns = `id, key_hash, key_prefix, owner_name, created_at, expires_at, is_active, total_requests, last_used_at`

// Create inserts a new API key.
func (r *APIKeyRepo) Create(ctx context.Context, k *domain.APIKey) error {
	query := `INSERT INTO api_keys (id, key_hash, key_prefix, owner_name, created_at, expires_at, is_active, total_requests, last_used_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.pool.Exec(ctx, query,
		k.ID, k.KeyHash, k.KeyPrefix, k.OwnerName,
		k.CreatedAt, k.ExpiresAt, k.IsActive, k.TotalRequests, k.LastUsedAt,
	)
	if err != nil {
		return fmt.Errorf("insert api key: %w", err)
	}
	return nil
}

// GetByID fetches an API key by UUID.
func (r *APIKeyRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.APIKey, error) {
	query := `SELECT ` + apiKeyColumns + ` FROM api_keys WHERE id = $1`
	return r.scanAPIKey(r.pool.QueryRow(ctx, query, id))
}

// GetByHash fetches an API key by the SHA-256 hash of its secret.
func (r *APIKeyRepo) GetByHash(ctx context.Context, keyHash string) (*domain.APIKey, error) {
	query := `SELECT ` + apiKeyColumns + ` FROM api_keys WHERE key_hash = $1`
	return r.scanAPIKey(r.pool.QueryRow(ctx, query, keyHash))
}

// List fetches all API keys, newest first.
func (r *APIKeyRepo) List(ctx context.Context) ([]domain.APIKey, error) {
	query := `SELECT ` + apiKeyColumns + ` FROM api_keys ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	var keys []domain.APIKey
	for rows.Next() {
		k := domain.APIKey{}
		err := rows.Scan(
			&k.ID, &k.KeyHash, &k.KeyPrefix, &k.OwnerName,
			&k.CreatedAt, &k.ExpiresAt, &k.IsActive, &k.TotalRequests, &k.LastUsedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan api key row: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate api key rows: %w", err)
	}
	return keys, nil
}

// Touch increments the usage counter and stamps last-used in one statement.
func (r *APIKeyRepo) Touch(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE api_keys SET total_requests = total_requests + 1, last_used_at = NOW() WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("touch api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("api key not found: %s", id)
	}
	return nil
}

// SetActive updates the active flag.
func (r *APIKeyRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	query := `UPDATE api_keys SET is_active = $1 WHERE id = $2`

	tag, err := r.pool.Exec(ctx, query, active, id)
	if err != nil {
		return fmt.Errorf("set api key active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("api key not found: %s", id)
	}
	return nil
}

// Delete removes the API key row.
func (r *APIKeyRepo) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM api_keys WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("api key not found: %s", id)
	}
	return nil
}

// scanAPIKey is a helper to scan a single row into an APIKey.
func (r *APIKeyRepo) scanAPIKey(row pgx.Row) (*domain.APIKey, error) {
	k := &domain.APIKey{}
	err := row.Scan(
		&k.ID, &k.KeyHash, &k.KeyPrefix, &k.OwnerName,
		&k.CreatedAt, &k.ExpiresAt, &k.IsActive, &k.TotalRequests, &k.LastUsedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan api key: %w", err)
	}
	return k, nil
}
