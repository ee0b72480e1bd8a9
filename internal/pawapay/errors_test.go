package pawapay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/ashendes/momo-checkout/internal/patterns"
	"github.com/stretchr/testify/assert"
)

func TestClassifyResponse(t *testing.T) {
	tests := []struct {
		status    int
		body      string
		code      string
		message   string
		retryable bool
	}{
		{400, `{}`, "HTTP_400", "Invalid payment request - please check your details", false},
		{401, ``, "HTTP_401", "Authentication failed - please contact support", false},
		{403, ``, "HTTP_403", "Payment not authorized - please contact support", false},
		{404, ``, "HTTP_404", "Payment service not found - please try again", false},
		{429, ``, "HTTP_429", "Too many requests - please wait and try again", false},
		{500, ``, "HTTP_500", "Payment service temporarily unavailable - please try again", true},
		{503, `not json`, "HTTP_503", "Payment service is currently down - please try again later", true},
		{504, ``, "HTTP_504", "Payment service is currently down - please try again later", true},
		{418, ``, "HTTP_418", "Payment failed with error 418 - please try again", false},
		{500, `{"failureReason":{"failureCode":"PROVIDER_TEMPORARILY_UNAVAILABLE","failureMessage":"MNO down"}}`, "PROVIDER_TEMPORARILY_UNAVAILABLE", "MNO down", true},
		{400, `{"failureReason":{"failureCode":"SYSTEM_TEMPORARILY_UNAVAILABLE"}}`, "SYSTEM_TEMPORARILY_UNAVAILABLE", "Payment processing failed", true},
		{500, `{"failureReason":{"failureCode":"PAYER_NOT_FOUND","failureMessage":"Unknown payer"}}`, "PAYER_NOT_FOUND", "Unknown payer", false},
		{400, `{"failureReason":{}}`, CodeProviderError, "Payment processing failed", false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d %s", tt.status, tt.code), func(t *testing.T) {
			perr := classifyResponse(tt.status, []byte(tt.body))
			assert.Equal(t, tt.code, perr.Code)
			assert.Equal(t, tt.message, perr.Message)
			assert.Equal(t, tt.retryable, perr.Retryable)
			assert.Equal(t, tt.status, perr.StatusCode)
		})
	}
}

func TestClassifyTransportError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		code      string
		retryable bool
	}{
		{"deadline", fmt.Errorf("get: %w", context.DeadlineExceeded), CodeTimeout, true},
		{"dns", &net.DNSError{Err: "no such host", Name: "api.invalid"}, CodeNetworkError, true},
		{"refused", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, CodeNetworkError, true},
		{"breaker open", patterns.ErrCircuitOpen, CodeServiceUnavailable, true},
		{"bulkhead full", fmt.Errorf("bulkhead pawapay: %w", patterns.ErrBulkheadFull), CodeServiceBusy, true},
		{"cancelled", context.Canceled, CodeUnknownError, false},
		{"other", errors.New("boom"), CodeUnknownError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			perr := classifyTransportError(tt.err)
			assert.Equal(t, tt.code, perr.Code)
			assert.Equal(t, tt.retryable, perr.Retryable)
			assert.ErrorIs(t, perr, tt.err)
		})
	}
}

func TestClassifyTransportError_KeepsClassifiedErrors(t *testing.T) {
	original := &Error{Code: "HTTP_503", Retryable: true, StatusCode: 503}
	assert.Same(t, original, classifyTransportError(fmt.Errorf("wrapped: %w", original)))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(&Error{Retryable: true}))
	assert.True(t, IsRetryable(fmt.Errorf("outer: %w", &Error{Retryable: true})))
	assert.False(t, IsRetryable(&Error{}))
	assert.False(t, IsRetryable(errors.New("plain")))
	assert.False(t, IsRetryable(nil))
}

func TestErrorString(t *testing.T) {
	assert.Equal(t, "pawapay HTTP_503 (HTTP 503): down", (&Error{Code: "HTTP_503", Message: "down", StatusCode: 503}).Error())
	assert.Equal(t, "pawapay TIMEOUT: slow", (&Error{Code: "TIMEOUT", Message: "slow"}).Error())
}
