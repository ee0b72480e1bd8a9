package sandbox

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ashendes/momo-checkout/internal/metrics"
	"github.com/ashendes/momo-checkout/internal/models"
	"github.com/ashendes/momo-checkout/internal/pawapay"
	"github.com/ashendes/momo-checkout/internal/patterns"
	"github.com/ashendes/momo-checkout/internal/webhook"
	"github.com/gin-gonic/gin"
	"github.com/go-resty/resty/v2"
	log "github.com/sirupsen/logrus"
)

const (
	serviceName = "provider-sandbox"

	// DefaultFailureRate is the share of requests failed while chaos mode is on
	DefaultFailureRate = 0.4
)

// Config tunes the sandbox provider
type Config struct {
	// APIToken, when set, must be presented as a bearer token
	APIToken string
	// PublicURL is where the hosted payment pages are served
	PublicURL string
	// WebhookURL receives signed deposit callbacks. Empty disables callbacks.
	WebhookURL    string
	WebhookSecret string
	FailureRate   float64
	// WrapInArray returns deposit lookups as a one-element array like the live API sometimes does
	WrapInArray bool
}

type paymentPage struct {
	request   pawapay.PaymentPageRequest
	createdAt time.Time
}

// Provider emulates the provider's payment page and deposit APIs in memory
type Provider struct {
	cfg      Config
	webhooks *resty.Client

	mutex    sync.RWMutex
	pages    map[string]*paymentPage
	deposits map[string]*models.DepositStatus

	chaosMutex    sync.RWMutex
	chaosEnabled  bool
	chaosSlowMode bool

	now   func() time.Time
	sleep patterns.SleepFunc
}

// New creates a sandbox provider
func New(cfg Config) *Provider {
	if cfg.FailureRate <= 0 || cfg.FailureRate > 1 {
		cfg.FailureRate = DefaultFailureRate
	}
	cfg.PublicURL = strings.TrimRight(cfg.PublicURL, "/")

	return &Provider{
		cfg: cfg,
		webhooks: resty.New().
			SetTimeout(10 * time.Second).
			SetHeader("Content-Type", "application/json").
			SetRetryCount(0),
		pages:    make(map[string]*paymentPage),
		deposits: make(map[string]*models.DepositStatus),
		now:      time.Now,
		sleep:    patterns.SleepContext,
	}
}

// Register mounts the provider API, the hosted pages and the chaos switches
func (p *Provider) Register(router gin.IRouter) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	router.GET("/sandbox/status", p.getStatus)

	v2 := router.Group("/v2", p.authenticate)
	v2.POST("/paymentpage", p.createPaymentPage)
	v2.GET("/deposits/:depositId", p.getDeposit)

	router.GET("/sandbox/pay/:depositId", p.payPage)

	// Chaos engineering endpoints
	router.POST("/chaos/enable", p.enableChaos)
	router.POST("/chaos/disable", p.disableChaos)
	router.POST("/chaos/slow", p.enableSlowMode)
	router.POST("/chaos/slow/disable", p.disableSlowMode)
}

func (p *Provider) authenticate(c *gin.Context) {
	if p.cfg.APIToken == "" {
		return
	}
	if c.GetHeader("Authorization") != "Bearer "+p.cfg.APIToken {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"errorMessage": "Invalid or missing API token"})
	}
}

func (p *Provider) getStatus(c *gin.Context) {
	p.mutex.RLock()
	pages, deposits := len(p.pages), len(p.deposits)
	p.mutex.RUnlock()

	c.JSON(http.StatusOK, gin.H{
		"service":         serviceName,
		"status":          "healthy",
		"chaos_enabled":   p.getChaosEnabled(),
		"chaos_slow_mode": p.getSlowMode(),
		"payment_pages":   pages,
		"deposits":        deposits,
		"timestamp":       p.now().Format(time.RFC3339),
	})
}

func (p *Provider) createPaymentPage(c *gin.Context) {
	var req pawapay.PaymentPageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, rejection("", "INVALID_PAYLOAD", "Invalid request: "+err.Error()))
		return
	}

	if err := p.simulateChaos(c.Request.Context()); err != nil {
		log.WithField("deposit_id", req.DepositID).Warn("Chaos: Simulated provider failure")
		c.JSON(http.StatusServiceUnavailable, rejection(req.DepositID, "PROVIDER_TEMPORARILY_UNAVAILABLE", err.Error()))
		return
	}

	if req.DepositID == "" || req.Country == "" || req.AmountDetails.Amount == "" || req.AmountDetails.Currency == "" {
		c.JSON(http.StatusBadRequest, rejection(req.DepositID, "INVALID_PAYLOAD", "depositId, country and amountDetails are required"))
		return
	}

	p.mutex.Lock()
	_, exists := p.pages[req.DepositID]
	if !exists {
		p.pages[req.DepositID] = &paymentPage{request: req, createdAt: p.now()}
	}
	p.mutex.Unlock()

	if exists {
		c.JSON(http.StatusOK, rejection(req.DepositID, "DUPLICATE_DEPOSIT_ID", "A deposit with this id already exists"))
		return
	}

	log.WithFields(log.Fields{
		"deposit_id": req.DepositID,
		"amount":     req.AmountDetails.Amount,
		"currency":   req.AmountDetails.Currency,
	}).Info("Payment page created")

	c.JSON(http.StatusOK, pawapay.PaymentPageResponse{
		DepositID:   req.DepositID,
		RedirectURL: p.cfg.PublicURL + "/sandbox/pay/" + req.DepositID,
		Status:      "ACCEPTED",
	})
}

func (p *Provider) getDeposit(c *gin.Context) {
	if err := p.simulateChaos(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"errorMessage": err.Error()})
		return
	}

	depositID := c.Param("depositId")
	p.mutex.RLock()
	deposit, ok := p.deposits[depositID]
	var snapshot models.DepositStatus
	if ok {
		snapshot = *deposit
	}
	p.mutex.RUnlock()

	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"errorMessage": "Deposit not found"})
		return
	}
	if p.cfg.WrapInArray {
		c.JSON(http.StatusOK, []models.DepositStatus{snapshot})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "FOUND", "data": snapshot})
}

// payPage plays the customer on the hosted page. The outcome query selects COMPLETED (default) or FAILED.
func (p *Provider) payPage(c *gin.Context) {
	outcome := models.ProviderStatus(strings.ToUpper(c.DefaultQuery("outcome", string(models.ProviderStatusCompleted))))

	deposit, returnURL, err := p.Complete(c.Request.Context(), c.Param("depositId"), outcome)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errorMessage": err.Error()})
		return
	}
	if returnURL == "" {
		c.JSON(http.StatusOK, deposit)
		return
	}
	c.Redirect(http.StatusFound, returnURL)
}

// Complete settles the deposit behind a payment page and notifies the webhook URL.
// It returns the deposit and the page's return URL.
func (p *Provider) Complete(ctx context.Context, depositID string, outcome models.ProviderStatus) (*models.DepositStatus, string, error) {
	if outcome != models.ProviderStatusCompleted && outcome != models.ProviderStatusFailed {
		return nil, "", fmt.Errorf("outcome must be COMPLETED or FAILED, got %q", outcome)
	}

	p.mutex.Lock()
	page, ok := p.pages[depositID]
	if !ok {
		p.mutex.Unlock()
		return nil, "", fmt.Errorf("no payment page for deposit %s", depositID)
	}
	if existing, settled := p.deposits[depositID]; settled {
		snapshot := *existing
		p.mutex.Unlock()
		return &snapshot, page.request.ReturnURL, nil
	}

	now := p.now().UTC()
	deposit := &models.DepositStatus{
		DepositID:            depositID,
		Status:               outcome,
		RequestedAmount:      page.request.AmountDetails.Amount,
		Currency:             page.request.AmountDetails.Currency,
		Country:              page.request.Country,
		Correspondent:        correspondentFor(page.request.Country),
		Payer:                &models.Payer{Type: "MSISDN", Address: models.PayerAddress{Value: page.request.PhoneNumber}},
		Created:              page.createdAt.UTC().Format(time.RFC3339),
		StatementDescription: page.request.StatementDescription,
	}
	if outcome == models.ProviderStatusCompleted {
		deposit.DepositedAmount = page.request.AmountDetails.Amount
		deposit.Completed = now.Format(time.RFC3339)
	} else {
		deposit.FailureReason = &models.FailureReason{
			FailureCode:    "PAYMENT_NOT_APPROVED",
			FailureMessage: "The customer did not approve the payment",
		}
	}
	p.deposits[depositID] = deposit
	snapshot := *deposit
	p.mutex.Unlock()

	log.WithFields(log.Fields{
		"deposit_id": depositID,
		"status":     outcome,
	}).Info("Deposit settled")

	p.notify(ctx, &snapshot)
	return &snapshot, page.request.ReturnURL, nil
}

// notify posts the signed callback. Delivery failures are logged only.
func (p *Provider) notify(ctx context.Context, deposit *models.DepositStatus) {
	if p.cfg.WebhookURL == "" {
		return
	}

	payload, err := json.Marshal(deposit)
	if err != nil {
		log.WithError(err).Error("Failed to encode webhook")
		return
	}

	req := p.webhooks.R().SetContext(ctx).SetBody(payload)
	if p.cfg.WebhookSecret != "" {
		req.SetHeader(webhook.SignatureHeader, webhook.Sign(payload, p.cfg.WebhookSecret))
	}

	resp, err := req.Post(p.cfg.WebhookURL)
	if err != nil {
		log.WithField("deposit_id", deposit.DepositID).WithError(err).Warn("Webhook delivery failed")
		return
	}
	if !resp.IsSuccess() {
		log.WithFields(log.Fields{
			"deposit_id": deposit.DepositID,
			"status":     resp.StatusCode(),
		}).Warn("Webhook rejected by receiver")
	}
}

func (p *Provider) enableChaos(c *gin.Context) {
	p.setChaosEnabled(true)
	metrics.ChaosFailureRate.WithLabelValues(serviceName).Set(p.cfg.FailureRate)

	log.Info("Chaos mode ENABLED for sandbox provider")
	c.JSON(http.StatusOK, gin.H{
		"message": "Chaos mode enabled",
		"info":    fmt.Sprintf("%.0f%% of requests will fail randomly", p.cfg.FailureRate*100),
	})
}

func (p *Provider) disableChaos(c *gin.Context) {
	p.setChaosEnabled(false)
	p.setSlowMode(false)
	metrics.ChaosFailureRate.WithLabelValues(serviceName).Set(0)
	metrics.ChaosSlowMode.WithLabelValues(serviceName).Set(0)

	log.Info("Chaos mode DISABLED for sandbox provider")
	c.JSON(http.StatusOK, gin.H{
		"message": "Chaos mode disabled",
	})
}

func (p *Provider) enableSlowMode(c *gin.Context) {
	p.setSlowMode(true)
	metrics.ChaosSlowMode.WithLabelValues(serviceName).Set(1)

	log.Info("Slow mode ENABLED for sandbox provider")
	c.JSON(http.StatusOK, gin.H{
		"message": "Slow mode enabled",
		"info":    "Requests will have 5-10 second delays",
	})
}

func (p *Provider) disableSlowMode(c *gin.Context) {
	p.setSlowMode(false)
	metrics.ChaosSlowMode.WithLabelValues(serviceName).Set(0)

	log.Info("Slow mode DISABLED for sandbox provider")
	c.JSON(http.StatusOK, gin.H{
		"message": "Slow mode disabled",
	})
}

// Helper methods
func (p *Provider) setChaosEnabled(enabled bool) {
	p.chaosMutex.Lock()
	defer p.chaosMutex.Unlock()
	p.chaosEnabled = enabled
}

func (p *Provider) getChaosEnabled() bool {
	p.chaosMutex.RLock()
	defer p.chaosMutex.RUnlock()
	return p.chaosEnabled
}

func (p *Provider) setSlowMode(enabled bool) {
	p.chaosMutex.Lock()
	defer p.chaosMutex.Unlock()
	p.chaosSlowMode = enabled
}

func (p *Provider) getSlowMode() bool {
	p.chaosMutex.RLock()
	defer p.chaosMutex.RUnlock()
	return p.chaosSlowMode
}

func (p *Provider) simulateChaos(ctx context.Context) error {
	if p.getSlowMode() {
		delay := time.Duration(5000+rand.Intn(5000)) * time.Millisecond
		log.WithField("delay_ms", delay.Milliseconds()).Debug("Chaos: Simulating slow response")
		if err := p.sleep(ctx, delay); err != nil {
			return err
		}
	}

	if p.getChaosEnabled() && rand.Float64() < p.cfg.FailureRate {
		return fmt.Errorf("sandbox provider temporarily unavailable")
	}
	return nil
}

func rejection(depositID, code, message string) pawapay.PaymentPageResponse {
	return pawapay.PaymentPageResponse{
		DepositID: depositID,
		Status:    "REJECTED",
		FailureReason: &models.FailureReason{
			FailureCode:    code,
			FailureMessage: message,
		},
	}
}

var correspondents = map[string]string{
	"COD": "VODACOM_MPESA_COD",
	"UGA": "MTN_MOMO_UGA",
	"GHA": "MTN_MOMO_GHA",
	"ZMB": "MTN_MOMO_ZMB",
	"KEN": "MPESA_KEN",
	"TZA": "VODACOM_TZA",
	"RWA": "MTN_MOMO_RWA",
}

func correspondentFor(country string) string {
	if c, ok := correspondents[country]; ok {
		return c
	}
	return "SANDBOX_" + country
}
