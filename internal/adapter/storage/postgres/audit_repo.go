package postgres

import (
	"context"
	"fmt"

	"bharatpay-gateway/internal/core/domain"
	"bharatpay-gateway/internal/core/ports"
)

type auditRepo struct {
	pool Pool
}

// NewAuditRepository creates a PostgreSQL-backed AuditRepository.
func NewAuditRepository(pool Pool) ports.AuditRepository {
	return &auditRepo{pool: pool}
}

func (r *auditRepo) Create(ctx context.Context, entry *domain.AuditLog) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO audit_logs (id, action, entity_type, entity_id, details, ip_address, user_agent, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.ID, string(entry.Action), entry.EntityType, entry.EntityID,
		entry.Details, entry.IPAddress, entry.UserAgent, entry.CreatedAt,
	)
	return err
}

func (r *auditRepo) List(ctx context.Context, page, pageSize int) ([]domain.AuditLog, int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM audit_logs`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audit logs: %w", err)
	}

	offset := (page - 1) * pageSize
	rows, err := r.pool.Query(ctx,
		`SELECT id, action, entity_type, entity_id, details, ip_address, user_agent, created_at
		 FROM audit_logs ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		pageSize, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	var entries []domain.AuditLog
	for rows.Next() {
		e := domain.AuditLog{}
		var action string
		err := rows.Scan(&e.ID, &action, &e.EntityType, &e.EntityID, &e.Details, &e.IPAddress, &e.UserAgent, &e.CreatedAt)
		if err != nil {
			return nil, 0, fmt.Errorf("scan audit log row: %w", err)
		}
		e.Action = domain.AuditAction(action)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate audit log rows: %w", err)
	}
	return entries, total, nil
}
