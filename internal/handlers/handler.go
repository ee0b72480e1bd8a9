package handlers

import (
	"context"
	"net/http"

	"github.com/ashendes/momo-checkout/internal/models"
	"github.com/ashendes/momo-checkout/internal/pawapay"
	"github.com/ashendes/momo-checkout/internal/patterns"
	"github.com/ashendes/momo-checkout/internal/validation"
	"github.com/ashendes/momo-checkout/internal/webhook"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// SessionHeader lets the browser correlate retries of the same checkout
const SessionHeader = "x-session-id"

// PaymentGateway is the provider surface the handlers depend on
type PaymentGateway interface {
	CreatePaymentSession(ctx context.Context, req pawapay.PaymentPageRequest, opts pawapay.SessionOptions) (*pawapay.SessionResult, error)
	GetDepositStatus(ctx context.Context, depositID string, opts pawapay.StatusOptions) (*models.DepositStatus, error)
}

// WebhookSink reacts to a verified deposit callback
type WebhookSink interface {
	HandleDeposit(ctx context.Context, result *webhook.Result) error
}

// LoggingSink records callbacks and does nothing else
type LoggingSink struct{}

// HandleDeposit logs the deposit outcome
func (LoggingSink) HandleDeposit(_ context.Context, result *webhook.Result) error {
	log.WithFields(log.Fields{
		"deposit_id":     result.DepositID,
		"status":         result.Status,
		"session_status": result.SessionStatus,
		"amount":         result.Deposit.Amount(),
		"currency":       result.Deposit.Currency,
	}).Info("Deposit status received")
	return nil
}

// Dependencies wires a Handler
type Dependencies struct {
	Gateway  PaymentGateway
	Catalog  *validation.Catalog
	Webhooks *webhook.Processor
	Sink     WebhookSink
	// Breaker is reported by the provider status route when set
	Breaker      *patterns.CircuitBreakerWrapper
	MerchantName string
	NewDepositID func() string
}

// Handler serves the checkout API. It keeps no state between requests.
type Handler struct {
	gateway      PaymentGateway
	catalog      *validation.Catalog
	webhooks     *webhook.Processor
	sink         WebhookSink
	breaker      *patterns.CircuitBreakerWrapper
	merchantName string
	newDepositID func() string
}

// New creates a Handler, filling unset dependencies with defaults
func New(deps Dependencies) *Handler {
	h := &Handler{
		gateway:      deps.Gateway,
		catalog:      deps.Catalog,
		webhooks:     deps.Webhooks,
		sink:         deps.Sink,
		breaker:      deps.Breaker,
		merchantName: deps.MerchantName,
		newDepositID: deps.NewDepositID,
	}
	if h.catalog == nil {
		h.catalog = validation.DefaultCatalog()
	}
	if h.webhooks == nil {
		h.webhooks = webhook.NewProcessor("", false)
	}
	if h.sink == nil {
		h.sink = LoggingSink{}
	}
	if h.newDepositID == nil {
		h.newDepositID = pawapay.NewDepositID
	}
	return h
}

// Health reports liveness
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// ProviderStatus returns the state of the circuit breaker guarding provider calls
func (h *Handler) ProviderStatus(c *gin.Context) {
	if h.breaker == nil {
		c.JSON(http.StatusOK, gin.H{"provider_circuit": gin.H{"name": "pawapay", "state": "unknown", "value": -1}})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"provider_circuit": gin.H{
			"name":  h.breaker.Name(),
			"state": h.breaker.GetState(),
			"value": h.breaker.GetStateValue(),
		},
	})
}

// ListCountries returns the supported markets
func (h *Handler) ListCountries(c *gin.Context) {
	c.JSON(http.StatusOK, models.CountriesResponse{
		Success:   true,
		Countries: h.catalog.Countries,
	})
}

func newSessionID() string {
	return uuid.New().String()
}
