package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"bharatpay-gateway/internal/core/domain"
	"bharatpay-gateway/internal/core/ports"
	"bharatpay-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// orderIDRetries bounds regeneration attempts when a generated order id
// collides with an existing row. 128 random bits make this all but
// unreachable; the bound keeps a broken RNG from looping forever.
const orderIDRetries = 3

// PaymentServiceImpl implements ports.PaymentService.
type PaymentServiceImpl struct {
	txRepo     ports.TransactionRepository
	transactor ports.DBTransactor
	renderer   ports.QRRenderer
	decider    ports.SettlementDecider
	notifier   ports.WebhookNotifier
	payeeName  string
	log        zerolog.Logger
}

// NewPaymentService creates a new PaymentServiceImpl.
func NewPaymentService(
	txRepo ports.TransactionRepository,
	transactor ports.DBTransactor,
	renderer ports.QRRenderer,
	decider ports.SettlementDecider,
	notifier ports.WebhookNotifier,
	payeeName string,
	log zerolog.Logger,
) *PaymentServiceImpl {
	return &PaymentServiceImpl{
		txRepo:     txRepo,
		transactor: transactor,
		renderer:   renderer,
		decider:    decider,
		notifier:   notifier,
		payeeName:  payeeName,
		log:        log,
	}
}

// CreateTransaction opens a new PENDING order: builds the UPI deep link,
// renders its QR code, and persists the transaction with a fresh merchant
// credential pair.
func (s *PaymentServiceImpl) CreateTransaction(ctx context.Context, req ports.CreateTransactionRequest) (*domain.Transaction, error) {
	if !req.Amount.IsPositive() {
		return nil, apperror.ErrInvalidAmount()
	}
	upiID := strings.TrimSpace(req.UPIID)
	if upiID == "" {
		return nil, apperror.Validation("upi_id is required")
	}

	message := strings.TrimSpace(req.Message)
	if message == "" {
		message = domain.DefaultPaymentMessage
	}

	merchantID, merchantKey, err := domain.GenerateMerchantPair()
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate merchant pair: %w", err))
	}

	callerSupplied := req.OrderID != ""

	attempts := 1
	if !callerSupplied {
		attempts = orderIDRetries
	}

	var (
		txn       *domain.Transaction
		insertErr error
	)
	for i := 0; i < attempts; i++ {
		orderID := req.OrderID
		if !callerSupplied {
			orderID, err = domain.GenerateOrderID()
			if err != nil {
				return nil, apperror.InternalError(fmt.Errorf("generate order id: %w", err))
			}
		}

		payload := domain.BuildUPIPayload(upiID, s.payeeName, req.Amount, message, orderID)
		png, renderErr := s.renderer.Render(payload)
		if renderErr != nil {
			return nil, apperror.ErrQRRenderFailure(fmt.Errorf("render qr: %w", renderErr))
		}

		txn = &domain.Transaction{
			ID:           uuid.New(),
			OrderID:      orderID,
			APIKeyID:     req.APIKeyID,
			Amount:       req.Amount,
			UPIID:        upiID,
			Message:      message,
			MerchantID:   merchantID,
			MerchantKey:  merchantKey,
			QRData:       payload,
			QRCodeBase64: base64.StdEncoding.EncodeToString(png),
			Status:       domain.TransactionStatusPending,
			CreatedAt:    time.Now().UTC(),
			WebhookURL:   req.WebhookURL,
		}

		insertErr = s.txRepo.Create(ctx, txn)
		if insertErr == nil {
			break
		}
		if !isDuplicateOrder(insertErr) {
			return nil, apperror.InternalError(fmt.Errorf("create transaction: %w", insertErr))
		}
		if callerSupplied {
			return nil, apperror.ErrDuplicateOrder()
		}
		s.log.Warn().Str("order_id", orderID).Msg("generated order id collided, regenerating")
	}
	if insertErr != nil {
		return nil, apperror.InternalError(fmt.Errorf("order id generation exhausted %d attempts: %w", attempts, insertErr))
	}

	s.log.Info().
		Str("order_id", txn.OrderID).
		Str("amount", txn.Amount.String()).
		Str("upi_id", txn.UPIID).
		Msg("transaction created")

	return txn, nil
}

// Verify runs one settlement check for the order. The first check that draws
// a terminal outcome wins; every later call returns the settled record
// unchanged. Concurrent checks serialize on a row lock, so exactly one
// transition is ever committed.
func (s *PaymentServiceImpl) Verify(ctx context.Context, orderID, merchantID, merchantKey string) (*domain.Transaction, error) {
	txn, err := s.txRepo.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lookup transaction: %w", err))
	}
	if txn == nil {
		return nil, apperror.ErrNotFound("transaction")
	}
	if !txn.MatchesMerchantPair(merchantID, merchantKey) {
		return nil, apperror.ErrMerchantCredentials()
	}

	// Settled orders short-circuit without another draw.
	if txn.IsTerminal() {
		return txn, nil
	}

	outcome := s.decider.Decide()
	if outcome == ports.SettlementPending {
		return txn, nil
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	locked, err := s.txRepo.GetByOrderIDForUpdate(ctx, dbTx, orderID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock transaction: %w", err))
	}
	if locked == nil {
		return nil, apperror.ErrNotFound("transaction")
	}

	// Another check settled the order while we were deciding; its committed
	// state stands.
	if locked.IsTerminal() {
		return locked, nil
	}

	now := time.Now().UTC()
	switch outcome {
	case ports.SettlementSuccess:
		gatewayRef, bankRef, err := domain.GenerateSettlementRefs(now)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("generate settlement refs: %w", err))
		}
		locked.Status = domain.TransactionStatusSuccess
		locked.PaidAt = &now
		locked.GatewayRef = &gatewayRef
		locked.BankRef = &bankRef
	case ports.SettlementFailed:
		locked.Status = domain.TransactionStatusFailed
	}

	if err := s.txRepo.UpdateSettlement(ctx, dbTx, locked); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update settlement: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("order_id", locked.OrderID).
		Str("status", string(locked.Status)).
		Msg("transaction settled")

	// Post-commit: status callback, best-effort.
	if locked.WebhookURL != nil && *locked.WebhookURL != "" {
		s.notifier.Notify(ctx, locked)
	}

	return locked, nil
}

// isDuplicateOrder reports whether the persistence error is an order-id
// uniqueness violation.
func isDuplicateOrder(err error) bool {
	var appErr *apperror.AppError
	return errors.As(err, &appErr) && appErr.Code == "PAY_003"
}
