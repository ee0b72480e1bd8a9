package handlers

import (
	"errors"
	"net/http"

	"github.com/ashendes/momo-checkout/internal/models"
	"github.com/ashendes/momo-checkout/internal/webhook"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// maxWebhookBody caps the callback body read into memory
const maxWebhookBody = 1 << 20

// ReceiveWebhook verifies a provider callback over its raw bytes and hands it to the sink
func (h *Handler) ReceiveWebhook(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody)
	payload, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Unable to read webhook body"})
		return
	}

	result, err := h.webhooks.Process(payload, c.GetHeader(webhook.SignatureHeader))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: webhookErrorMessage(err)})
		return
	}

	if err := h.sink.HandleDeposit(c.Request.Context(), result); err != nil {
		log.WithField("deposit_id", result.DepositID).WithError(err).Error("Webhook sink failed")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:     "Webhook processing failed",
			Retryable: true,
		})
		return
	}

	c.JSON(http.StatusOK, models.WebhookAck{
		Success:   true,
		Message:   "Webhook processed successfully",
		DepositID: result.DepositID,
	})
}

// WebhookLiveness answers probes of the callback URL
func (h *Handler) WebhookLiveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "PawaPay webhook endpoint is active"})
}

func webhookErrorMessage(err error) string {
	switch {
	case errors.Is(err, webhook.ErrInvalidSignature):
		return "Invalid webhook signature"
	case errors.Is(err, webhook.ErrMissingSignature):
		return "Missing webhook signature"
	case errors.Is(err, webhook.ErrMissingFields):
		return "Missing required fields in webhook payload"
	case errors.Is(err, webhook.ErrUnknownStatus):
		return "Unknown deposit status in webhook payload"
	default:
		return "Malformed webhook payload"
	}
}
