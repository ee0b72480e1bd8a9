package webhook

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ashendes/momo-checkout/internal/metrics"
	"github.com/ashendes/momo-checkout/internal/models"
	log "github.com/sirupsen/logrus"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw callback body
const SignatureHeader = "x-pawapay-signature"

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrMissingSignature = errors.New("missing webhook signature")
	ErrMalformedPayload = errors.New("malformed webhook payload")
	ErrMissingFields    = errors.New("missing required fields in webhook payload")
	ErrUnknownStatus    = errors.New("unknown deposit status in webhook payload")
)

// Result is a verified and normalized provider callback
type Result struct {
	DepositID     string
	Status        models.ProviderStatus
	SessionStatus models.SessionStatus
	Deposit       *models.DepositStatus
}

// Processor verifies and decodes provider callbacks. It holds no state between calls.
type Processor struct {
	Secret string
	// RequireSignature rejects unsigned callbacks when a secret is configured
	RequireSignature bool
}

// NewProcessor creates a processor for the shared secret
func NewProcessor(secret string, requireSignature bool) *Processor {
	return &Processor{Secret: secret, RequireSignature: requireSignature}
}

// Sign returns the hex HMAC-SHA256 of payload under secret
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks signature against the HMAC-SHA256 of the raw payload.
// The comparison is constant time. Any malformed input yields false.
func VerifySignature(payload []byte, signature, secret string) bool {
	if secret == "" || signature == "" {
		return false
	}
	provided, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hmac.Equal(provided, mac.Sum(nil))
}

// Process verifies payload and extracts the deposit it reports
func (p *Processor) Process(payload []byte, signature string) (*Result, error) {
	result, err := p.process(payload, signature)
	if err != nil {
		metrics.WebhooksTotal.WithLabelValues(outcome(err)).Inc()
		log.WithError(err).Warn("Rejected provider webhook")
		return nil, err
	}

	metrics.WebhooksTotal.WithLabelValues("accepted").Inc()
	metrics.DepositStatusTotal.WithLabelValues("webhook", string(result.Status)).Inc()
	log.WithFields(log.Fields{
		"deposit_id":     result.DepositID,
		"status":         result.Status,
		"session_status": result.SessionStatus,
	}).Info("Provider webhook accepted")
	return result, nil
}

func (p *Processor) process(payload []byte, signature string) (*Result, error) {
	if p.Secret != "" {
		switch {
		case signature != "":
			if !VerifySignature(payload, signature, p.Secret) {
				return nil, ErrInvalidSignature
			}
		case p.RequireSignature:
			return nil, ErrMissingSignature
		}
	}

	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, ErrMalformedPayload
	}

	var deposit models.DepositStatus
	if err := json.Unmarshal(trimmed, &deposit); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if deposit.DepositID == "" || deposit.Status == "" {
		return nil, ErrMissingFields
	}

	sessionStatus, err := models.SessionStatusFor(deposit.Status)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStatus, string(deposit.Status))
	}

	return &Result{
		DepositID:     deposit.DepositID,
		Status:        deposit.Status,
		SessionStatus: sessionStatus,
		Deposit:       &deposit,
	}, nil
}

func outcome(err error) string {
	switch {
	case errors.Is(err, ErrInvalidSignature), errors.Is(err, ErrMissingSignature):
		return "invalid_signature"
	case errors.Is(err, ErrMissingFields):
		return "missing_fields"
	case errors.Is(err, ErrUnknownStatus):
		return "unknown_status"
	default:
		return "malformed"
	}
}
