package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/ashendes/momo-checkout/internal/metrics"
	"github.com/ashendes/momo-checkout/internal/models"
	"github.com/ashendes/momo-checkout/internal/pawapay"
	"github.com/ashendes/momo-checkout/internal/validation"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const legacyDefaultCurrency = "CDF"

// CreatePayment validates the checkout form and opens a hosted payment page
func (h *Handler) CreatePayment(c *gin.Context) {
	var req models.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: "Invalid request: " + err.Error(),
			Code:  "INVALID_REQUEST",
		})
		return
	}

	country := strings.ToUpper(strings.TrimSpace(req.Country))
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = h.catalog.DefaultCurrency(country)
	}
	if currency == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: "Payment not supported for " + country,
			Code:  "UNSUPPORTED_COUNTRY",
		})
		return
	}

	phone := h.catalog.ValidatePhoneNumber(req.PhoneNumber, country)
	if !phone.Valid {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: phone.Error,
			Code:  "INVALID_PHONE_NUMBER",
		})
		return
	}

	amount := h.catalog.ValidateAmount(req.Amount, country, currency)
	if !amount.Valid {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:  amount.Error,
			Code:   pawapay.CodeAmountValidationFailed,
			Limits: amount.Limits,
		})
		return
	}

	depositID := strings.TrimSpace(req.DepositID)
	if depositID == "" {
		depositID = h.newDepositID()
	}
	sessionID := c.GetHeader(SessionHeader)
	if sessionID == "" {
		sessionID = newSessionID()
	}

	metrics.PaymentAmount.WithLabelValues(currency).Observe(req.Amount)

	result, err := h.gateway.CreatePaymentSession(c.Request.Context(), h.pageRequest(depositID, country, currency, phone.Formatted, req), pawapay.SessionOptions{
		ValidateLimits: true,
		SessionID:      sessionID,
	})
	if err != nil {
		respondProviderError(c, err)
		return
	}

	log.WithFields(log.Fields{
		"deposit_id": result.DepositID,
		"session_id": sessionID,
		"country":    country,
	}).Info("Payment session created")

	response := models.CreatePaymentResponse{
		Success:     true,
		DepositID:   result.DepositID,
		RedirectURL: result.RedirectURL,
		SessionID:   sessionID,
		Message:     "Payment page created successfully",
	}
	if result.Session != nil {
		response.ExpiresAt = result.Session.ExpiresAt.UTC().Format(time.RFC3339)
	}
	c.JSON(http.StatusOK, response)
}

func (h *Handler) pageRequest(depositID, country, currency, phone string, req models.CreatePaymentRequest) pawapay.PaymentPageRequest {
	message := req.Description
	if message == "" {
		message = req.Reason
	}

	metadata := []map[string]string{}
	if req.OrderID != "" {
		metadata = append(metadata, map[string]string{"orderId": req.OrderID})
	}
	if h.merchantName != "" {
		metadata = append(metadata, map[string]string{"source": h.merchantName})
	}

	return pawapay.PaymentPageRequest{
		DepositID:            depositID,
		CustomerMessage:      pawapay.TruncateCustomerMessage(message),
		AmountDetails:        pawapay.AmountDetails{Amount: validation.FormatAmount(req.Amount, currency), Currency: currency},
		PhoneNumber:          phone,
		Country:              country,
		Reason:               req.Reason,
		StatementDescription: statementDescription(h.merchantName, depositID),
		Metadata:             metadata,
	}
}

func statementDescription(merchant, depositID string) string {
	short := depositID
	if len(short) > 8 {
		short = short[:8]
	}
	if merchant == "" {
		return short
	}
	return merchant + " " + short
}

// GetPayment returns the provider's record of a deposit
func (h *Handler) GetPayment(c *gin.Context) {
	depositID := strings.TrimSpace(c.Query("depositId"))
	if depositID == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Deposit ID is required"})
		return
	}

	deposit, err := h.gateway.GetDepositStatus(c.Request.Context(), depositID, pawapay.StatusOptions{})
	if err != nil {
		respondProviderError(c, err)
		return
	}

	response := models.DepositResponse{Success: true, Deposit: deposit}
	if sessionStatus, err := models.SessionStatusFor(deposit.Status); err == nil {
		response.SessionStatus = sessionStatus
	}
	c.JSON(http.StatusOK, response)
}

// CheckPaymentStatus serves the flattened status shape polled by the return page
func (h *Handler) CheckPaymentStatus(c *gin.Context) {
	depositID := strings.TrimSpace(c.Query("depositId"))
	if depositID == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Missing depositId parameter"})
		return
	}

	deposit, err := h.gateway.GetDepositStatus(c.Request.Context(), depositID, pawapay.StatusOptions{})
	if err != nil {
		respondProviderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"deposit": summarize(deposit),
	})
}

func summarize(deposit *models.DepositStatus) models.DepositSummary {
	summary := models.DepositSummary{
		DepositID:     deposit.DepositID,
		Status:        deposit.Status,
		Currency:      deposit.Currency,
		FailureReason: deposit.FailureReason,
	}
	if summary.Currency == "" {
		summary.Currency = legacyDefaultCurrency
	}
	if requested := firstNonEmpty(deposit.RequestedAmount, deposit.DepositedAmount); requested != "" {
		summary.Amount = &requested
		summary.RequestedAmount = &requested
	}
	return summary
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// respondProviderError renders a gateway failure as the JSON error envelope
func respondProviderError(c *gin.Context, err error) {
	perr, ok := pawapay.AsError(err)
	if !ok {
		log.WithError(err).Error("Unexpected provider failure")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error: "An unexpected error occurred",
			Code:  pawapay.CodeUnknownError,
		})
		return
	}

	c.JSON(providerHTTPStatus(perr), models.ErrorResponse{
		Error:     perr.Message,
		Code:      perr.Code,
		Retryable: perr.Retryable,
	})
}

func providerHTTPStatus(perr *pawapay.Error) int {
	if perr.StatusCode >= http.StatusBadRequest {
		return perr.StatusCode
	}
	switch perr.Code {
	case pawapay.CodeTimeout, pawapay.CodeNetworkError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
