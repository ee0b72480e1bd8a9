package pawapay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"

	"github.com/ashendes/momo-checkout/internal/patterns"
)

// Error codes produced locally (provider failure codes are passed through)
const (
	CodeAmountValidationFailed = "AMOUNT_VALIDATION_FAILED"
	CodeTimeout                = "TIMEOUT"
	CodeNetworkError           = "NETWORK_ERROR"
	CodeUnknownError           = "UNKNOWN_ERROR"
	CodeServiceUnavailable     = "SERVICE_UNAVAILABLE"
	CodeServiceBusy            = "SERVICE_BUSY"
	CodeInvalidResponse        = "INVALID_PROVIDER_RESPONSE"
	CodeUnknownDepositStatus   = "UNKNOWN_DEPOSIT_STATUS"
	CodeProviderError          = "PAWAPAY_ERROR"
)

// provider failure codes that denote transient unavailability or rate limiting
var retryableFailureCodes = map[string]bool{
	"PROVIDER_TEMPORARILY_UNAVAILABLE": true,
	"SYSTEM_TEMPORARILY_UNAVAILABLE":   true,
	"RATE_LIMIT_EXCEEDED":              true,
}

// Error is a classified failure talking to the provider
type Error struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Retryable  bool   `json:"retryable"`
	StatusCode int    `json:"statusCode,omitempty"`

	cause error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("pawapay %s (HTTP %d): %s", e.Code, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("pawapay %s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// IsRetryable reports whether err is a classified provider error worth retrying
func IsRetryable(err error) bool {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Retryable
	}
	return false
}

// AsError extracts the classified provider error from err
func AsError(err error) (*Error, bool) {
	var perr *Error
	if errors.As(err, &perr) {
		return perr, true
	}
	return nil, false
}

type failureBody struct {
	FailureReason *struct {
		FailureCode    string `json:"failureCode"`
		FailureMessage string `json:"failureMessage"`
	} `json:"failureReason"`
}

// classifyResponse turns a non-2xx provider response into an Error
func classifyResponse(status int, body []byte) *Error {
	if perr := classifyFailureReason(status, body); perr != nil {
		return perr
	}
	return &Error{
		Code:       fmt.Sprintf("HTTP_%d", status),
		Message:    httpErrorMessage(status),
		Retryable:  status >= http.StatusInternalServerError,
		StatusCode: status,
	}
}

func classifyFailureReason(status int, body []byte) *Error {
	var failure failureBody
	if len(body) == 0 || json.Unmarshal(body, &failure) != nil || failure.FailureReason == nil {
		return nil
	}

	code := failure.FailureReason.FailureCode
	if code == "" {
		code = CodeProviderError
	}
	message := failure.FailureReason.FailureMessage
	if message == "" {
		message = "Payment processing failed"
	}
	return &Error{
		Code:       code,
		Message:    message,
		Retryable:  retryableFailureCodes[code],
		StatusCode: status,
	}
}

// classifyTransportError maps errors raised before any HTTP response arrived
func classifyTransportError(err error) *Error {
	if perr, ok := AsError(err); ok {
		return perr
	}

	switch {
	case errors.Is(err, patterns.ErrCircuitOpen):
		return &Error{
			Code:       CodeServiceUnavailable,
			Message:    "Payment service is currently down - please try again later",
			Retryable:  true,
			StatusCode: http.StatusServiceUnavailable,
			cause:      err,
		}
	case errors.Is(err, patterns.ErrBulkheadFull):
		return &Error{
			Code:       CodeServiceBusy,
			Message:    "Payment service is busy - please try again",
			Retryable:  true,
			StatusCode: http.StatusServiceUnavailable,
			cause:      err,
		}
	case isTimeout(err):
		return &Error{
			Code:      CodeTimeout,
			Message:   "Request timeout - please try again",
			Retryable: true,
			cause:     err,
		}
	case isNetworkFailure(err):
		return &Error{
			Code:      CodeNetworkError,
			Message:   "Network connection failed - please check your internet connection",
			Retryable: true,
			cause:     err,
		}
	default:
		return &Error{
			Code:      CodeUnknownError,
			Message:   unknownMessage(err),
			Retryable: false,
			cause:     err,
		}
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isNetworkFailure(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

func unknownMessage(err error) string {
	if err == nil || err.Error() == "" {
		return "An unexpected error occurred"
	}
	return err.Error()
}

func httpErrorMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "Invalid payment request - please check your details"
	case http.StatusUnauthorized:
		return "Authentication failed - please contact support"
	case http.StatusForbidden:
		return "Payment not authorized - please contact support"
	case http.StatusNotFound:
		return "Payment service not found - please try again"
	case http.StatusTooManyRequests:
		return "Too many requests - please wait and try again"
	case http.StatusInternalServerError:
		return "Payment service temporarily unavailable - please try again"
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return "Payment service is currently down - please try again later"
	default:
		return fmt.Sprintf("Payment failed with error %d - please try again", status)
	}
}
