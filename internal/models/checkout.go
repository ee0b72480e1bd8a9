package models

// CreatePaymentRequest represents the browser request to open a hosted payment page
type CreatePaymentRequest struct {
	DepositID   string  `json:"depositId"`
	Reason      string  `json:"reason" binding:"required"`
	Country     string  `json:"country" binding:"required,len=3"`
	Currency    string  `json:"currency"`
	Amount      float64 `json:"amount" binding:"required,gt=0"`
	PhoneNumber string  `json:"phoneNumber" binding:"required"`
	Description string  `json:"description"`
	OrderID     string  `json:"orderId"`
}

// CreatePaymentResponse represents the response after the provider accepted a session
type CreatePaymentResponse struct {
	Success     bool   `json:"success"`
	DepositID   string `json:"depositId"`
	RedirectURL string `json:"redirectUrl"`
	SessionID   string `json:"sessionId,omitempty"`
	ExpiresAt   string `json:"expiresAt,omitempty"`
	Message     string `json:"message,omitempty"`
}

// ErrorResponse is the failure envelope returned to the browser
type ErrorResponse struct {
	Success   bool           `json:"success"`
	Error     string         `json:"error"`
	Code      string         `json:"code,omitempty"`
	Retryable bool           `json:"retryable"`
	Limits    *PaymentLimits `json:"limits,omitempty"`
}

// DepositResponse wraps a deposit status for the browser poller
type DepositResponse struct {
	Success       bool           `json:"success"`
	Deposit       *DepositStatus `json:"deposit"`
	SessionStatus SessionStatus  `json:"sessionStatus,omitempty"`
}

// DepositSummary is the flattened deposit shape used by the legacy status poll route
type DepositSummary struct {
	DepositID       string         `json:"depositId"`
	Status          ProviderStatus `json:"status"`
	Amount          *string        `json:"amount"`
	Currency        string         `json:"currency"`
	RequestedAmount *string        `json:"requestedAmount"`
	FailureReason   *FailureReason `json:"failureReason"`
}

// CountriesResponse lists supported markets
type CountriesResponse struct {
	Success   bool      `json:"success"`
	Countries []Country `json:"countries"`
}

// WebhookAck acknowledges a provider callback
type WebhookAck struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	DepositID string `json:"depositId,omitempty"`
}
