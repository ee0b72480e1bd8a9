package models

import (
	"errors"
	"fmt"
)

// ProviderStatus is the provider's deposit status vocabulary
type ProviderStatus string

// ProviderStatus constants
const (
	ProviderStatusEnqueued  ProviderStatus = "ENQUEUED"
	ProviderStatusPending   ProviderStatus = "PENDING"
	ProviderStatusSubmitted ProviderStatus = "SUBMITTED"
	ProviderStatusCompleted ProviderStatus = "COMPLETED"
	ProviderStatusFailed    ProviderStatus = "FAILED"
	ProviderStatusRejected  ProviderStatus = "REJECTED"
)

var (
	// ErrUnknownProviderStatus is returned for a provider status with no local mapping
	ErrUnknownProviderStatus = errors.New("unknown provider deposit status")

	// ErrFailureReasonMismatch flags a deposit whose failure reason disagrees with its status
	ErrFailureReasonMismatch = errors.New("failure reason must be present exactly when the deposit failed or was rejected")
)

// ParseProviderStatus converts raw text into a known provider status
func ParseProviderStatus(raw string) (ProviderStatus, error) {
	status := ProviderStatus(raw)
	if _, err := SessionStatusFor(status); err != nil {
		return "", err
	}
	return status, nil
}

// SessionStatusFor maps a provider deposit status onto the local session lifecycle
func SessionStatusFor(status ProviderStatus) (SessionStatus, error) {
	switch status {
	case ProviderStatusEnqueued, ProviderStatusPending, ProviderStatusSubmitted:
		return SessionStatusRedirected, nil
	case ProviderStatusCompleted:
		return SessionStatusCompleted, nil
	case ProviderStatusFailed, ProviderStatusRejected:
		return SessionStatusFailed, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownProviderStatus, string(status))
	}
}

// Failed reports whether the status carries a failure reason
func (s ProviderStatus) Failed() bool {
	return s == ProviderStatusFailed || s == ProviderStatusRejected
}

// FailureReason explains why the provider failed or rejected a deposit
type FailureReason struct {
	FailureCode    string `json:"failureCode"`
	FailureMessage string `json:"failureMessage"`
}

// PayerAddress holds the payer's account identifier (an MSISDN)
type PayerAddress struct {
	Value string `json:"value"`
}

// Payer identifies who paid
type Payer struct {
	Type    string       `json:"type,omitempty"`
	Address PayerAddress `json:"address"`
}

// DepositStatus is the provider's record of a deposit, fetched by polling or received by webhook
type DepositStatus struct {
	DepositID            string         `json:"depositId"`
	Status               ProviderStatus `json:"status"`
	RequestedAmount      string         `json:"requestedAmount,omitempty"`
	DepositedAmount      string         `json:"depositedAmount,omitempty"`
	Currency             string         `json:"currency,omitempty"`
	Country              string         `json:"country,omitempty"`
	Correspondent        string         `json:"correspondent,omitempty"`
	Payer                *Payer         `json:"payer,omitempty"`
	Created              string         `json:"created,omitempty"`
	Completed            string         `json:"completed,omitempty"`
	StatementDescription string         `json:"statementDescription,omitempty"`
	FailureReason        *FailureReason `json:"failureReason,omitempty"`
}

// PendingDeposit is the synthetic record used while the provider has not indexed a deposit yet
func PendingDeposit(depositID string) *DepositStatus {
	return &DepositStatus{
		DepositID: depositID,
		Status:    ProviderStatusPending,
	}
}

// Validate checks the status is known and the failure reason invariant holds
func (d *DepositStatus) Validate() error {
	if _, err := SessionStatusFor(d.Status); err != nil {
		return err
	}
	if d.Status.Failed() != (d.FailureReason != nil) {
		return fmt.Errorf("%w: status %s", ErrFailureReasonMismatch, d.Status)
	}
	return nil
}

// PhoneNumber returns the payer MSISDN, if any
func (d *DepositStatus) PhoneNumber() string {
	if d.Payer == nil {
		return ""
	}
	return d.Payer.Address.Value
}

// Amount returns the most specific amount known for the deposit
func (d *DepositStatus) Amount() string {
	if d.DepositedAmount != "" {
		return d.DepositedAmount
	}
	return d.RequestedAmount
}
