package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Input validation (VAL) ----

// Validation returns a VAL_001 error for missing or malformed input.
func Validation(message string) *AppError {
	return New("VAL_001", message, http.StatusBadRequest)
}

// ErrInvalidAmount rejects zero or negative payment amounts.
func ErrInvalidAmount() *AppError {
	return New("VAL_001", "Amount must be greater than zero", http.StatusBadRequest)
}

// ---- API key & admin authentication (AUTH) ----

func ErrAPIKeyRequired() *AppError {
	return New("AUTH_001", "API key required. Provide X-API-Key header or api_key parameter", http.StatusUnauthorized)
}

func ErrInvalidAPIKey() *AppError {
	return New("AUTH_001", "Invalid API key", http.StatusUnauthorized)
}

func ErrAPIKeyInactive() *AppError {
	return New("AUTH_002", "API key is inactive", http.StatusUnauthorized)
}

func ErrAPIKeyExpired() *AppError {
	return New("AUTH_003", "API key has expired", http.StatusUnauthorized)
}

func ErrInvalidCredentials() *AppError {
	return New("AUTH_004", "Invalid credentials", http.StatusUnauthorized)
}

func ErrInvalidToken() *AppError {
	return New("AUTH_005", "Invalid or expired token", http.StatusUnauthorized)
}

// ---- Payment business logic (PAY) ----

func ErrNotFound(entity string) *AppError {
	return New("PAY_001", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// ErrMerchantCredentials rejects a merchant id/key pair that does not match the order.
func ErrMerchantCredentials() *AppError {
	return New("PAY_002", "Invalid merchant credentials", http.StatusUnauthorized)
}

func ErrDuplicateOrder() *AppError {
	return New("PAY_003", "Order ID already exists", http.StatusConflict)
}

// ErrLinkInvalid rejects redemption of an expired, exhausted, or disabled payment link.
func ErrLinkInvalid() *AppError {
	return New("PAY_004", "Payment link expired or invalid", http.StatusGone)
}

// ---- Rate limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & infrastructure (SYS) ----

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// ErrQRRenderFailure wraps a QR renderer failure; the enclosing create is aborted.
func ErrQRRenderFailure(err error) *AppError {
	return Wrap("SYS_002", "QR code generation failed", http.StatusInternalServerError, err)
}
