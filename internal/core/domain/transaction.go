package domain

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionStatus represents the lifecycle state of a payment attempt.
// PENDING may move to SUCCESS or FAILED; both are terminal.
type TransactionStatus string

const (
	TransactionStatusPending TransactionStatus = "PENDING"
	TransactionStatusSuccess TransactionStatus = "SUCCESS"
	TransactionStatusFailed  TransactionStatus = "FAILED"
)

// DefaultPaymentMessage is used when the caller supplies no note.
const DefaultPaymentMessage = "BharatPay Payment"

// Transaction represents one payment attempt tracked from QR issuance to
// settlement. The merchant id/key pair is generated per transaction and acts
// as a second authorization factor at verification time.
type Transaction struct {
	ID            uuid.UUID         `json:"id"`
	OrderID       string            `json:"order_id"` // globally unique
	APIKeyID      *uuid.UUID        `json:"api_key_id,omitempty"`
	Amount        decimal.Decimal   `json:"amount"`
	UPIID         string            `json:"upi_id"`
	Message       string            `json:"message"`
	MerchantID    string            `json:"merchant_id"`
	MerchantKey   string            `json:"-"` // returned once at creation
	QRData        string            `json:"qr_data"`
	QRCodeBase64  string            `json:"qr_code,omitempty"`
	Status        TransactionStatus `json:"status"`
	CreatedAt     time.Time         `json:"created_at"`
	PaidAt        *time.Time        `json:"paid_at,omitempty"` // SUCCESS only
	WebhookURL    *string           `json:"webhook_url,omitempty"`
	WebhookSent   bool              `json:"webhook_sent"`
	WebhookSentAt *time.Time        `json:"webhook_sent_at,omitempty"`
	GatewayRef    *string           `json:"bharatpay_reference,omitempty"` // SUCCESS only
	BankRef       *string           `json:"bank_reference,omitempty"`      // SUCCESS only
}

// IsTerminal returns true once the transaction has settled either way.
func (t *Transaction) IsTerminal() bool {
	return t.Status == TransactionStatusSuccess || t.Status == TransactionStatusFailed
}

// MatchesMerchantPair compares the presented merchant credentials in constant time.
func (t *Transaction) MatchesMerchantPair(merchantID, merchantKey string) bool {
	idOK := subtle.ConstantTimeCompare([]byte(t.MerchantID), []byte(merchantID)) == 1
	keyOK := subtle.ConstantTimeCompare([]byte(t.MerchantKey), []byte(merchantKey)) == 1
	return idOK && keyOK
}

// GenerateOrderID returns a fresh globally unique order identifier (128 random bits).
func GenerateOrderID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "BHARAT_ORD_" + hex.EncodeToString(buf), nil
}

const merchantIDAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateMerchantPair returns a per-transaction merchant id and key.
func GenerateMerchantPair() (merchantID string, merchantKey string, err error) {
	idSuffix := make([]byte, 16)
	for i := range idSuffix {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(merchantIDAlphabet))))
		if err != nil {
			return "", "", err
		}
		idSuffix[i] = merchantIDAlphabet[n.Int64()]
	}

	keySuffix := make([]byte, 12)
	for i := range keySuffix {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", "", err
		}
		keySuffix[i] = byte('0' + n.Int64())
	}

	return "BHARAT_" + string(idSuffix), "BHARAT_KEY_" + string(keySuffix), nil
}

// BuildUPIPayload encodes the canonical upi://pay deep link carried by the QR
// code. UPI apps expect the pa/pn/tr fields verbatim; only the free-text note
// is escaped.
func BuildUPIPayload(upiID, payeeName string, amount decimal.Decimal, message, orderID string) string {
	return fmt.Sprintf("upi://pay?pa=%s&pn=%s&am=%s&tn=%s&tr=%s",
		upiID, payeeName, amount.String(), url.QueryEscape(message), orderID)
}

// GenerateSettlementRefs returns the gateway and bank reference codes stamped
// on a successful settlement.
func GenerateSettlementRefs(now time.Time) (gatewayRef string, bankRef string, err error) {
	g, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", "", err
	}
	b, err := rand.Int(rand.Reader, big.NewInt(900000000))
	if err != nil {
		return "", "", err
	}
	gatewayRef = fmt.Sprintf("BHARAT%d%06d", now.Unix(), g.Int64()+100000)
	bankRef = fmt.Sprintf("BANK%09d", b.Int64()+100000000)
	return gatewayRef, bankRef, nil
}
