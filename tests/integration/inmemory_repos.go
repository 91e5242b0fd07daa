package integration

import (
	"context"
	"fmt"
	"sync"

	"bharatpay-gateway/internal/core/domain"
	"bharatpay-gateway/internal/core/ports"
	"bharatpay-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// --- In-Memory API Key Repo ---

type inMemoryAPIKeyRepo struct {
	mu   sync.RWMutex
	keys map[uuid.UUID]*domain.APIKey
}

func newInMemoryAPIKeyRepo() *inMemoryAPIKeyRepo {
	return &inMemoryAPIKeyRepo{keys: make(map[uuid.UUID]*domain.APIKey)}
}

func (r *inMemoryAPIKeyRepo) Create(ctx context.Context, key *domain.APIKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.keys {
		if existing.KeyHash == key.KeyHash {
			return fmt.Errorf("key hash already exists")
		}
	}
	cp := *key
	r.keys[key.ID] = &cp
	return nil
}

func (r *inMemoryAPIKeyRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.APIKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	k, ok := r.keys[id]
	if !ok {
		return nil, nil
	}
	cp := *k
	return &cp, nil
}

func (r *inMemoryAPIKeyRepo) GetByHash(ctx context.Context, keyHash string) (*domain.APIKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, k := range r.keys {
		if k.KeyHash == keyHash {
			cp := *k
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemoryAPIKeyRepo) List(ctx context.Context) ([]domain.APIKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]domain.APIKey, 0, len(r.keys))
	for _, k := range r.keys {
		result = append(result, *k)
	}
	return result, nil
}

func (r *inMemoryAPIKeyRepo) Touch(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k, ok := r.keys[id]
	if !ok {
		return fmt.Errorf("key not found")
	}
	k.TotalRequests++
	return nil
}

func (r *inMemoryAPIKeyRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k, ok := r.keys[id]
	if !ok {
		return fmt.Errorf("key not found")
	}
	k.IsActive = active
	return nil
}

func (r *inMemoryAPIKeyRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.keys[id]; !ok {
		return fmt.Errorf("key not found")
	}
	delete(r.keys, id)
	return nil
}

// --- In-Memory Transaction Repo ---

type inMemoryTransactionRepo struct {
	mu           sync.RWMutex
	transactions map[string]*domain.Transaction // by order ID
	keyRepo      *inMemoryAPIKeyRepo            // for GetStats key counters
}

func newInMemoryTransactionRepo(keyRepo *inMemoryAPIKeyRepo) *inMemoryTransactionRepo {
	return &inMemoryTransactionRepo{
		transactions: make(map[string]*domain.Transaction),
		keyRepo:      keyRepo,
	}
}

func (r *inMemoryTransactionRepo) Create(ctx context.Context, txn *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.transactions[txn.OrderID]; exists {
		return apperror.ErrDuplicateOrder()
	}
	cp := *txn
	r.transactions[txn.OrderID] = &cp
	return nil
}

func (r *inMemoryTransactionRepo) CreateInTx(ctx context.Context, tx pgx.Tx, txn *domain.Transaction) error {
	return r.Create(ctx, txn)
}

func (r *inMemoryTransactionRepo) GetByOrderID(ctx context.Context, orderID string) (*domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.transactions[orderID]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (r *inMemoryTransactionRepo) GetByOrderIDForUpdate(ctx context.Context, tx pgx.Tx, orderID string) (*domain.Transaction, error) {
	return r.GetByOrderID(ctx, orderID)
}

func (r *inMemoryTransactionRepo) UpdateSettlement(ctx context.Context, tx pgx.Tx, txn *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.transactions[txn.OrderID]
	if !ok {
		return fmt.Errorf("transaction not found")
	}
	stored.Status = txn.Status
	stored.PaidAt = txn.PaidAt
	stored.GatewayRef = txn.GatewayRef
	stored.BankRef = txn.BankRef
	return nil
}

func (r *inMemoryTransactionRepo) MarkWebhookSent(ctx context.Context, orderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.transactions[orderID]
	if !ok {
		return fmt.Errorf("transaction not found")
	}
	t.WebhookSent = true
	return nil
}

func (r *inMemoryTransactionRepo) DetachAPIKey(ctx context.Context, keyID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var detached int64
	for _, t := range r.transactions {
		if t.APIKeyID != nil && *t.APIKeyID == keyID {
			t.APIKeyID = nil
			detached++
		}
	}
	return detached, nil
}

func (r *inMemoryTransactionRepo) List(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.Transaction
	for _, t := range r.transactions {
		if params.Status != nil && t.Status != *params.Status {
			continue
		}
		if params.APIKeyID != nil && (t.APIKeyID == nil || *t.APIKeyID != *params.APIKeyID) {
			continue
		}
		result = append(result, *t)
	}
	total := int64(len(result))

	start := (params.Page - 1) * params.PageSize
	if start >= len(result) {
		return []domain.Transaction{}, total, nil
	}
	end := start + params.PageSize
	if end > len(result) {
		end = len(result)
	}
	return result[start:end], total, nil
}

func (r *inMemoryTransactionRepo) GetStats(ctx context.Context) (*ports.GatewayStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stats := &ports.GatewayStats{TotalAmount: decimal.Zero}
	for _, t := range r.transactions {
		stats.TotalTransactions++
		switch t.Status {
		case domain.TransactionStatusSuccess:
			stats.SuccessfulPayments++
			stats.TotalAmount = stats.TotalAmount.Add(t.Amount)
		case domain.TransactionStatusPending:
			stats.PendingPayments++
		case domain.TransactionStatusFailed:
			stats.FailedPayments++
		}
	}
	if r.keyRepo != nil {
		keys, _ := r.keyRepo.List(ctx)
		stats.TotalAPIKeys = int64(len(keys))
		for _, k := range keys {
			if k.IsActive {
				stats.ActiveAPIKeys++
			}
		}
	}
	return stats, nil
}

// --- In-Memory Payment Link Repo ---

type inMemoryPaymentLinkRepo struct {
	mu    sync.RWMutex
	links map[string]*domain.PaymentLink // by link ID
}

func newInMemoryPaymentLinkRepo() *inMemoryPaymentLinkRepo {
	return &inMemoryPaymentLinkRepo{links: make(map[string]*domain.PaymentLink)}
}

func (r *inMemoryPaymentLinkRepo) Create(ctx context.Context, link *domain.PaymentLink) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *link
	r.links[link.LinkID] = &cp
	return nil
}

func (r *inMemoryPaymentLinkRepo) GetByLinkID(ctx context.Context, linkID string) (*domain.PaymentLink, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.links[linkID]
	if !ok {
		return nil, nil
	}
	cp := *l
	return &cp, nil
}

func (r *inMemoryPaymentLinkRepo) GetByLinkIDForUpdate(ctx context.Context, tx pgx.Tx, linkID string) (*domain.PaymentLink, error) {
	return r.GetByLinkID(ctx, linkID)
}

func (r *inMemoryPaymentLinkRepo) IncrementUses(ctx context.Context, tx pgx.Tx, linkID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.links[linkID]
	if !ok {
		return fmt.Errorf("link not found")
	}
	l.CurrentUses++
	return nil
}

func (r *inMemoryPaymentLinkRepo) SetActive(ctx context.Context, linkID string, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.links[linkID]
	if !ok {
		return fmt.Errorf("link not found")
	}
	l.IsActive = active
	return nil
}

func (r *inMemoryPaymentLinkRepo) List(ctx context.Context) ([]domain.PaymentLink, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]domain.PaymentLink, 0, len(r.links))
	for _, l := range r.links {
		result = append(result, *l)
	}
	return result, nil
}

// --- In-Memory Audit Repo ---

type inMemoryAuditRepo struct {
	mu      sync.RWMutex
	entries []domain.AuditLog
}

func newInMemoryAuditRepo() *inMemoryAuditRepo {
	return &inMemoryAuditRepo{}
}

func (r *inMemoryAuditRepo) Create(ctx context.Context, entry *domain.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *inMemoryAuditRepo) List(ctx context.Context, page, pageSize int) ([]domain.AuditLog, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	total := int64(len(r.entries))
	start := (page - 1) * pageSize
	if start >= len(r.entries) {
		return []domain.AuditLog{}, total, nil
	}
	end := start + pageSize
	if end > len(r.entries) {
		end = len(r.entries)
	}
	return append([]domain.AuditLog(nil), r.entries[start:end]...), total, nil
}

// --- In-Memory Admin Repo ---

type inMemoryAdminRepo struct {
	mu     sync.RWMutex
	admins map[string]*domain.Admin // by username
}

func newInMemoryAdminRepo() *inMemoryAdminRepo {
	return &inMemoryAdminRepo{admins: make(map[string]*domain.Admin)}
}

func (r *inMemoryAdminRepo) Create(ctx context.Context, admin *domain.Admin) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.admins[admin.Username]; exists {
		return fmt.Errorf("username already exists")
	}
	cp := *admin
	r.admins[admin.Username] = &cp
	return nil
}

func (r *inMemoryAdminRepo) GetByUsername(ctx context.Context, username string) (*domain.Admin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.admins[username]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

// --- In-Memory Transactor ---

// inMemoryTransactor emulates row-lock serialization with one global mutex:
// Begin blocks until the previous transaction commits or rolls back. Coarse,
// but it gives the same exactly-once guarantees the FOR UPDATE paths rely on.
type inMemoryTransactor struct {
	mu sync.Mutex
}

func newInMemoryTransactor() *inMemoryTransactor {
	return &inMemoryTransactor{}
}

func (t *inMemoryTransactor) Begin(ctx context.Context) (pgx.Tx, error) {
	t.mu.Lock()
	return &serialTx{release: &t.mu}, nil
}

// serialTx is a pgx.Tx that holds the transactor lock until finished.
type serialTx struct {
	release *sync.Mutex
	done    sync.Once
}

func (t *serialTx) finish() {
	t.done.Do(func() { t.release.Unlock() })
}

func (t *serialTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *serialTx) Commit(ctx context.Context) error          { t.finish(); return nil }
func (t *serialTx) Rollback(ctx context.Context) error        { t.finish(); return nil }
func (t *serialTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *serialTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *serialTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *serialTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *serialTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *serialTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *serialTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}
func (t *serialTx) Conn() *pgx.Conn { return nil }
