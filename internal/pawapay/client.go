package pawapay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ashendes/momo-checkout/internal/metrics"
	"github.com/ashendes/momo-checkout/internal/models"
	"github.com/ashendes/momo-checkout/internal/patterns"
	"github.com/ashendes/momo-checkout/internal/validation"
	"github.com/go-resty/resty/v2"
	log "github.com/sirupsen/logrus"
)

const (
	// DefaultBaseURL is the provider sandbox
	DefaultBaseURL = "https://api.sandbox.pawapay.io"
	// DefaultLanguage is the payment page language when none is configured
	DefaultLanguage = "EN"
	// DefaultMaxConcurrency bounds in-flight provider calls
	DefaultMaxConcurrency = 20

	paymentPagePath   = "/v2/paymentpage"
	depositStatusPath = "/v2/deposits/{depositId}"
	returnPath        = "/payment/return"

	serviceName   = "checkout-service"
	rejectedState = "REJECTED"
)

// Config is the immutable provider configuration
type Config struct {
	BaseURL  string
	APIToken string
	// Timeout bounds a single attempt. Zero means patterns.ProviderTimeout.
	Timeout time.Duration
	// ReturnURL is the public base URL the payment page sends the customer back to
	ReturnURL string
	Language  string
}

// Client talks to the provider REST API
type Client struct {
	cfg      Config
	http     *resty.Client
	retry    *patterns.RetryPolicy
	breaker  *patterns.CircuitBreakerWrapper
	bulkhead *patterns.Bulkhead
	catalog  *validation.Catalog
	now      func() time.Time
}

// Option customizes a Client
type Option func(*Client)

// WithRetryPolicy replaces the default retry policy
func WithRetryPolicy(policy *patterns.RetryPolicy) Option {
	return func(c *Client) { c.retry = policy }
}

// WithSleep replaces how the retry policy waits between attempts
func WithSleep(sleep patterns.SleepFunc) Option {
	return func(c *Client) { c.retry = c.retry.WithSleep(sleep) }
}

// WithBreakerSettings replaces the circuit breaker thresholds
func WithBreakerSettings(settings patterns.BreakerSettings) Option {
	return func(c *Client) {
		if settings.IsSuccessful == nil {
			settings.IsSuccessful = countsAsSuccess
		}
		c.breaker = patterns.NewCircuitBreaker("pawapay", serviceName, settings)
	}
}

// WithMaxConcurrency sizes the bulkhead guarding outbound calls
func WithMaxConcurrency(n int) Option {
	return func(c *Client) { c.bulkhead = patterns.NewBulkhead(n, "pawapay", serviceName) }
}

// WithCatalog sets the limits used when SessionOptions.ValidateLimits is set
func WithCatalog(catalog *validation.Catalog) Option {
	return func(c *Client) { c.catalog = catalog }
}

// WithClock overrides the session clock
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// NewClient builds a provider client from cfg
func NewClient(cfg Config, opts ...Option) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = patterns.ProviderTimeout
	}
	if cfg.Language == "" {
		cfg.Language = DefaultLanguage
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.ReturnURL = strings.TrimRight(cfg.ReturnURL, "/")

	settings := patterns.DefaultBreakerSettings()
	settings.IsSuccessful = countsAsSuccess

	c := &Client{
		cfg: cfg,
		http: resty.New().
			SetBaseURL(cfg.BaseURL).
			SetAuthToken(cfg.APIToken).
			SetHeader("Content-Type", "application/json").
			SetHeader("Accept", "application/json").
			SetTimeout(cfg.Timeout).
			SetRetryCount(0), // retries are owned by the retry policy
		retry:    patterns.NewRetryPolicy("pawapay", serviceName, patterns.DefaultMaxRetries, patterns.DefaultBaseDelay, IsRetryable),
		breaker:  patterns.NewCircuitBreaker("pawapay", serviceName, settings),
		bulkhead: patterns.NewBulkhead(DefaultMaxConcurrency, "pawapay", serviceName),
		catalog:  validation.DefaultCatalog(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// countsAsSuccess keeps client errors (4xx, validation) from tripping the breaker
func countsAsSuccess(err error) bool {
	return err == nil || !IsRetryable(err)
}

// Breaker exposes the circuit breaker guarding provider calls
func (c *Client) Breaker() *patterns.CircuitBreakerWrapper {
	return c.breaker
}

// ReturnURLFor builds the page the provider sends the customer back to
func (c *Client) ReturnURLFor(depositID string) string {
	return c.cfg.ReturnURL + returnPath + "?depositId=" + url.QueryEscape(depositID)
}

// CreatePaymentSession opens a hosted payment page for req
func (c *Client) CreatePaymentSession(ctx context.Context, req PaymentPageRequest, opts SessionOptions) (*SessionResult, error) {
	if opts.ValidateLimits {
		if perr := c.validateAmount(req); perr != nil {
			metrics.PaymentSessionsTotal.WithLabelValues("rejected").Inc()
			return nil, perr
		}
	}

	if req.ReturnURL == "" {
		req.ReturnURL = c.ReturnURLFor(req.DepositID)
	}
	if req.Language == "" {
		req.Language = c.cfg.Language
	}
	req.CustomerMessage = TruncateCustomerMessage(req.CustomerMessage)

	session := models.NewPaymentSession(req.DepositID, c.now(), map[string]string{
		"sessionId": opts.SessionID,
		"country":   req.Country,
		"currency":  req.AmountDetails.Currency,
		"amount":    req.AmountDetails.Amount,
	})

	logger := log.WithFields(log.Fields{
		"deposit_id": req.DepositID,
		"country":    req.Country,
		"currency":   req.AmountDetails.Currency,
		"amount":     req.AmountDetails.Amount,
	})
	logger.Info("Creating payment page")

	resp, err := c.execute(ctx, "create_payment_page", opts.Retries, nil, func(r *resty.Request) (*resty.Response, error) {
		return r.SetBody(req).Post(paymentPagePath)
	})
	if err != nil {
		metrics.PaymentSessionsTotal.WithLabelValues("failed").Inc()
		logger.WithError(err).Error("Payment page creation failed")
		return nil, err
	}

	var page PaymentPageResponse
	if err := json.Unmarshal(resp.Body(), &page); err != nil {
		metrics.PaymentSessionsTotal.WithLabelValues("failed").Inc()
		return nil, invalidResponse(err)
	}
	if page.Status == rejectedState {
		metrics.PaymentSessionsTotal.WithLabelValues("rejected").Inc()
		return nil, rejectedError(page.FailureReason)
	}
	if page.RedirectURL == "" {
		metrics.PaymentSessionsTotal.WithLabelValues("failed").Inc()
		return nil, invalidResponse(errors.New("missing redirectUrl"))
	}
	if page.DepositID == "" {
		page.DepositID = req.DepositID
	}

	session.MarkRedirected(page.RedirectURL)
	metrics.PaymentSessionsTotal.WithLabelValues("redirected").Inc()
	logger.WithField("redirect_url", page.RedirectURL).Info("Payment page created")

	return &SessionResult{
		DepositID:   page.DepositID,
		RedirectURL: page.RedirectURL,
		Session:     session,
	}, nil
}

// GetDepositStatus fetches the provider's record of depositID. A deposit the
// provider has not indexed yet is reported as PENDING.
func (c *Client) GetDepositStatus(ctx context.Context, depositID string, opts StatusOptions) (*models.DepositStatus, error) {
	if strings.TrimSpace(depositID) == "" {
		return nil, &Error{
			Code:       "INVALID_DEPOSIT_ID",
			Message:    "Deposit ID is required",
			StatusCode: http.StatusBadRequest,
		}
	}

	notFound := func(status int) bool { return status == http.StatusNotFound }
	resp, err := c.execute(ctx, "get_deposit_status", opts.Retries, notFound, func(r *resty.Request) (*resty.Response, error) {
		return r.SetPathParam("depositId", depositID).Get(depositStatusPath)
	})
	if err != nil {
		log.WithField("deposit_id", depositID).WithError(err).Warn("Deposit status lookup failed")
		return nil, err
	}

	var deposit *models.DepositStatus
	if resp.StatusCode() == http.StatusNotFound {
		deposit = models.PendingDeposit(depositID)
	} else if deposit, err = DecodeDeposit(depositID, resp.Body()); err != nil {
		return nil, err
	}

	metrics.DepositStatusTotal.WithLabelValues("poll", string(deposit.Status)).Inc()
	return deposit, nil
}

func (c *Client) validateAmount(req PaymentPageRequest) *Error {
	amount, err := strconv.ParseFloat(req.AmountDetails.Amount, 64)
	if err != nil {
		return &Error{
			Code:       CodeAmountValidationFailed,
			Message:    "Invalid amount",
			StatusCode: http.StatusBadRequest,
			cause:      err,
		}
	}
	result := c.catalog.ValidateAmount(amount, req.Country, req.AmountDetails.Currency)
	if result.Valid {
		return nil
	}
	return &Error{
		Code:       CodeAmountValidationFailed,
		Message:    result.Error,
		StatusCode: http.StatusBadRequest,
	}
}

// execute runs one logical provider call through breaker, retry and bulkhead.
// The breaker records one outcome per call, after retries. Statuses matched by
// accept are handed back to the caller instead of failing.
func (c *Client) execute(ctx context.Context, operation string, retries *int, accept func(int) bool, send func(*resty.Request) (*resty.Response, error)) (*resty.Response, error) {
	policy := c.retry
	if retries != nil {
		policy = policy.WithMaxRetries(*retries)
	}

	var resp *resty.Response
	err := c.breaker.Execute(func() error {
		return policy.Execute(ctx, func(ctx context.Context) error {
			r, err := c.attempt(ctx, accept, send)
			if err != nil {
				return err
			}
			resp = r
			return nil
		})
	})
	if err != nil {
		err = classifyTransportError(err)
	}

	code := "OK"
	if perr, ok := AsError(err); ok {
		code = perr.Code
	}
	metrics.ProviderRequestsTotal.WithLabelValues(operation, code).Inc()
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) attempt(ctx context.Context, accept func(int) bool, send func(*resty.Request) (*resty.Response, error)) (*resty.Response, error) {
	var resp *resty.Response
	err := c.bulkhead.Execute(ctx, func() error {
		attemptCtx, cancel := patterns.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()

		r, err := send(c.http.R().SetContext(attemptCtx))
		if err != nil {
			return classifyTransportError(err)
		}
		if r.IsSuccess() || (accept != nil && accept(r.StatusCode())) {
			resp = r
			return nil
		}
		return classifyResponse(r.StatusCode(), r.Body())
	})
	if err != nil {
		return nil, classifyTransportError(err)
	}
	return resp, nil
}

func rejectedError(reason *models.FailureReason) *Error {
	perr := &Error{
		Code:       "PAYMENT_REJECTED",
		Message:    "Payment was rejected",
		StatusCode: http.StatusBadRequest,
	}
	if reason != nil {
		if reason.FailureCode != "" {
			perr.Code = reason.FailureCode
		}
		if reason.FailureMessage != "" {
			perr.Message = reason.FailureMessage
		}
		perr.Retryable = retryableFailureCodes[perr.Code]
	}
	return perr
}

// String renders the client for logs without the credential
func (c *Client) String() string {
	return fmt.Sprintf("pawapay.Client{baseURL: %s}", c.cfg.BaseURL)
}
