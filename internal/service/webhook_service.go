package service

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"bharatpay-gateway/internal/core/domain"
	"bharatpay-gateway/internal/core/ports"

	"github.com/rs/zerolog"
)

// webhookRetryIntervals defines the backoff between delivery attempts.
var webhookRetryIntervals = []time.Duration{
	15 * time.Second,
	60 * time.Second,
	5 * time.Minute,
}

// WebhookPayload is the JSON body POSTed to the merchant's webhook URL when a
// transaction reaches a terminal status.
type WebhookPayload struct {
	Event     string `json:"event"`
	OrderID   string `json:"order_id"`
	Status    string `json:"status"`
	Amount    string `json:"amount"`
	UPIID     string `json:"upi_id"`
	PaidAt    *int64 `json:"paid_at,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// EventPaymentUpdate is the only event type currently emitted.
const EventPaymentUpdate = "PAYMENT_UPDATE"

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// webhookNotifier implements ports.WebhookNotifier.
type webhookNotifier struct {
	txRepo     ports.TransactionRepository
	httpClient HTTPClient
	timeout    time.Duration
	log        zerolog.Logger
}

// NewWebhookNotifier creates a new webhook notifier.
func NewWebhookNotifier(txRepo ports.TransactionRepository, httpClient HTTPClient, timeout time.Duration, log zerolog.Logger) ports.WebhookNotifier {
	return &webhookNotifier{
		txRepo:     txRepo,
		httpClient: httpClient,
		timeout:    timeout,
		log:        log,
	}
}

// Notify delivers the status callback asynchronously. Delivery is best-effort:
// the settlement that triggered it has already committed and stands either way.
func (s *webhookNotifier) Notify(ctx context.Context, txn *domain.Transaction) {
	if txn.WebhookURL == nil || *txn.WebhookURL == "" || txn.WebhookSent {
		return
	}

	payload := WebhookPayload{
		Event:     EventPaymentUpdate,
		OrderID:   txn.OrderID,
		Status:    string(txn.Status),
		Amount:    txn.Amount.String(),
		UPIID:     txn.UPIID,
		Timestamp: time.Now().Unix(),
	}
	if txn.PaidAt != nil {
		paidAt := txn.PaidAt.Unix()
		payload.PaidAt = &paidAt
	}

	go s.deliverWithRetries(*txn.WebhookURL, payload)
}

// deliverWithRetries attempts delivery with backoff and stamps webhook_sent on
// the first 2xx response.
func (s *webhookNotifier) deliverWithRetries(url string, payload WebhookPayload) {
	body, err := json.Marshal(payload)
	if err != nil {
		s.log.Error().Err(err).Str("order_id", payload.OrderID).Msg("webhook: failed to marshal payload")
		return
	}

	for attempt := 0; attempt <= len(webhookRetryIntervals); attempt++ {
		if attempt > 0 {
			time.Sleep(webhookRetryIntervals[attempt-1])
		}

		if s.deliverOnce(url, body, payload.OrderID, attempt+1) {
			if err := s.txRepo.MarkWebhookSent(context.Background(), payload.OrderID); err != nil {
				s.log.Warn().Err(err).Str("order_id", payload.OrderID).Msg("webhook: failed to stamp webhook_sent")
			}
			return
		}
	}

	s.log.Error().Str("order_id", payload.OrderID).Str("url", url).Msg("webhook: all retry attempts exhausted")
}

func (s *webhookNotifier) deliverOnce(url string, body []byte, orderID string, attempt int) bool {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		s.log.Error().Err(err).Str("order_id", orderID).Int("attempt", attempt).Msg("webhook: failed to create request")
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.log.Warn().Err(err).Str("order_id", orderID).Int("attempt", attempt).Msg("webhook: delivery failed")
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		s.log.Info().Str("order_id", orderID).Int("attempt", attempt).Int("status", resp.StatusCode).Msg("webhook: delivered")
		return true
	}

	s.log.Warn().Str("order_id", orderID).Int("attempt", attempt).Int("status", resp.StatusCode).Msg("webhook: non-2xx response")
	return false
}
