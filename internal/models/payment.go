package models

import "time"

// SessionValidity is how long a payment session stays open locally.
// The provider remains the final authority on expiry.
const SessionValidity = 30 * time.Minute

// SessionStatus is the local lifecycle of a payment session
type SessionStatus string

// SessionStatus constants
const (
	SessionStatusCreated    SessionStatus = "CREATED"
	SessionStatusRedirected SessionStatus = "REDIRECTED"
	SessionStatusCompleted  SessionStatus = "COMPLETED"
	SessionStatusFailed     SessionStatus = "FAILED"
	SessionStatusExpired    SessionStatus = "EXPIRED"
)

// Terminal reports whether no further transition is expected
func (s SessionStatus) Terminal() bool {
	switch s {
	case SessionStatusCompleted, SessionStatusFailed, SessionStatusExpired:
		return true
	}
	return false
}

// PaymentSession represents one attempt to collect money from a customer.
// It lives only for the duration of the request that created it.
type PaymentSession struct {
	DepositID   string            `json:"depositId"`
	Status      SessionStatus     `json:"status"`
	CreatedAt   time.Time         `json:"createdAt"`
	ExpiresAt   time.Time         `json:"expiresAt"`
	RedirectURL string            `json:"redirectUrl,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// NewPaymentSession creates a session in the CREATED state
func NewPaymentSession(depositID string, now time.Time, metadata map[string]string) *PaymentSession {
	if metadata == nil {
		metadata = map[string]string{}
	}
	return &PaymentSession{
		DepositID: depositID,
		Status:    SessionStatusCreated,
		CreatedAt: now,
		ExpiresAt: now.Add(SessionValidity),
		Metadata:  metadata,
	}
}

// MarkRedirected records the hosted page URL once the provider accepted the session
func (s *PaymentSession) MarkRedirected(redirectURL string) {
	s.Status = SessionStatusRedirected
	s.RedirectURL = redirectURL
}

// Expired reports whether the validity window passed before the session settled
func (s *PaymentSession) Expired(now time.Time) bool {
	switch s.Status {
	case SessionStatusExpired:
		return true
	case SessionStatusCompleted, SessionStatusFailed:
		return false
	}
	return !now.Before(s.ExpiresAt)
}

// Apply moves the session to the local status implied by a provider status.
// A non-terminal provider status on an expired session yields EXPIRED.
func (s *PaymentSession) Apply(status ProviderStatus, now time.Time) error {
	next, err := SessionStatusFor(status)
	if err != nil {
		return err
	}
	if !next.Terminal() && s.Expired(now) {
		next = SessionStatusExpired
	}
	s.Status = next
	return nil
}
