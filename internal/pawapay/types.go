package pawapay

import (
	"github.com/ashendes/momo-checkout/internal/models"
)

// MaxCustomerMessageLength is the provider's limit on the payer-facing message
const MaxCustomerMessageLength = 22

// AmountDetails carries the amount as a decimal string in the given currency
type AmountDetails struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

// PaymentPageRequest is the body of POST /v2/paymentpage
type PaymentPageRequest struct {
	DepositID            string              `json:"depositId"`
	ReturnURL            string              `json:"returnUrl"`
	CustomerMessage      string              `json:"customerMessage,omitempty"`
	AmountDetails        AmountDetails       `json:"amountDetails"`
	PhoneNumber          string              `json:"phoneNumber,omitempty"`
	Language             string              `json:"language,omitempty"`
	Country              string              `json:"country"`
	Reason               string              `json:"reason,omitempty"`
	StatementDescription string              `json:"statementDescription,omitempty"`
	Metadata             []map[string]string `json:"metadata,omitempty"`
}

// PaymentPageResponse is the provider's answer to a payment page request
type PaymentPageResponse struct {
	DepositID     string                `json:"depositId"`
	RedirectURL   string                `json:"redirectUrl"`
	Status        string                `json:"status,omitempty"`
	FailureReason *models.FailureReason `json:"failureReason,omitempty"`
}

// SessionOptions tunes CreatePaymentSession
type SessionOptions struct {
	// Retries overrides the client's retry budget when non-nil
	Retries *int
	// ValidateLimits runs the amount check before any network call
	ValidateLimits bool
	// SessionID is a caller correlation id stored in the session metadata
	SessionID string
}

// StatusOptions tunes GetDepositStatus
type StatusOptions struct {
	Retries *int
}

// SessionResult is a created hosted payment session
type SessionResult struct {
	DepositID   string
	RedirectURL string
	Session     *models.PaymentSession
}

// Retries is a helper for building SessionOptions and StatusOptions
func Retries(n int) *int {
	return &n
}

// TruncateCustomerMessage clips a message to the provider's length limit
func TruncateCustomerMessage(message string) string {
	runes := []rune(message)
	if len(runes) <= MaxCustomerMessageLength {
		return message
	}
	return string(runes[:MaxCustomerMessageLength])
}
