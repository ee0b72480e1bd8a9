package pawapay

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ashendes/momo-checkout/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
	return ctx.Err()
}

func (r *recordingSleeper) waits() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}

type fakeProvider struct {
	server   *httptest.Server
	calls    atomic.Int32
	mu       sync.Mutex
	requests []*http.Request
	bodies   [][]byte
}

func newFakeProvider(t *testing.T, handler func(w http.ResponseWriter, r *http.Request, call int)) *fakeProvider {
	t.Helper()
	fp := &fakeProvider{}
	fp.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call := int(fp.calls.Add(1))
		body, _ := io.ReadAll(r.Body)
		fp.mu.Lock()
		fp.requests = append(fp.requests, r)
		fp.bodies = append(fp.bodies, body)
		fp.mu.Unlock()
		handler(w, r, call)
	}))
	t.Cleanup(fp.server.Close)
	return fp
}

func (fp *fakeProvider) client(sleeper *recordingSleeper, opts ...Option) *Client {
	cfg := Config{
		BaseURL:   fp.server.URL,
		APIToken:  "test-token",
		Timeout:   2 * time.Second,
		ReturnURL: "https://shop.example.com",
	}
	opts = append([]Option{WithSleep(sleeper.sleep)}, opts...)
	return NewClient(cfg, opts...)
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func samplePageRequest() PaymentPageRequest {
	return PaymentPageRequest{
		DepositID:       "3f1c2b8e-7d4a-4c1e-9a55-0d2f6f1b7c10",
		CustomerMessage: "Order 1234 for the corner shop",
		AmountDetails:   AmountDetails{Amount: "1500.00", Currency: "KES"},
		PhoneNumber:     "254712345678",
		Country:         "KEN",
		Reason:          "Order 1234",
	}
}

func TestCreatePaymentSession_RetriesServerErrors(t *testing.T) {
	fp := newFakeProvider(t, func(w http.ResponseWriter, r *http.Request, call int) {
		if call < 3 {
			writeJSON(w, http.StatusServiceUnavailable, `{}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"depositId":"3f1c2b8e-7d4a-4c1e-9a55-0d2f6f1b7c10","redirectUrl":"https://pay.example.com/s/abc"}`)
	})
	sleeper := &recordingSleeper{}
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	client := fp.client(sleeper, WithClock(func() time.Time { return now }))

	result, err := client.CreatePaymentSession(context.Background(), samplePageRequest(), SessionOptions{
		ValidateLimits: true,
		SessionID:      "session-1",
	})
	require.NoError(t, err)

	assert.Equal(t, int32(3), fp.calls.Load())
	waits := sleeper.waits()
	require.Len(t, waits, 2)
	assert.GreaterOrEqual(t, waits[0], 1000*time.Millisecond)
	assert.GreaterOrEqual(t, waits[1], 2000*time.Millisecond)

	assert.Equal(t, "https://pay.example.com/s/abc", result.RedirectURL)
	assert.Equal(t, "3f1c2b8e-7d4a-4c1e-9a55-0d2f6f1b7c10", result.DepositID)
	require.NotNil(t, result.Session)
	assert.Equal(t, models.SessionStatusRedirected, result.Session.Status)
	assert.Equal(t, now.Add(models.SessionValidity), result.Session.ExpiresAt)
	assert.Equal(t, "session-1", result.Session.Metadata["sessionId"])
	assert.Equal(t, "KES", result.Session.Metadata["currency"])

	req := fp.requests[2]
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/v2/paymentpage", req.URL.Path)
	assert.Equal(t, "Bearer test-token", req.Header.Get("Authorization"))

	var sent PaymentPageRequest
	require.NoError(t, json.Unmarshal(fp.bodies[2], &sent))
	assert.Equal(t, "https://shop.example.com/payment/return?depositId=3f1c2b8e-7d4a-4c1e-9a55-0d2f6f1b7c10", sent.ReturnURL)
	assert.Equal(t, DefaultLanguage, sent.Language)
	assert.Equal(t, "Order 1234 for the cor", sent.CustomerMessage)
	assert.Len(t, sent.CustomerMessage, MaxCustomerMessageLength)
}

func TestCreatePaymentSession_AmountValidationSkipsNetwork(t *testing.T) {
	fp := newFakeProvider(t, func(w http.ResponseWriter, r *http.Request, call int) {
		writeJSON(w, http.StatusOK, `{}`)
	})
	client := fp.client(&recordingSleeper{})

	req := samplePageRequest()
	req.AmountDetails.Amount = "50"
	_, err := client.CreatePaymentSession(context.Background(), req, SessionOptions{ValidateLimits: true})

	perr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, CodeAmountValidationFailed, perr.Code)
	assert.Contains(t, perr.Message, "Minimum amount is 100 KES")
	assert.False(t, perr.Retryable)
	assert.Equal(t, int32(0), fp.calls.Load())
}

func TestCreatePaymentSession_NonFiniteAmountsSkipNetwork(t *testing.T) {
	fp := newFakeProvider(t, func(w http.ResponseWriter, r *http.Request, call int) {
		writeJSON(w, http.StatusOK, `{}`)
	})
	client := fp.client(&recordingSleeper{})

	for _, amount := range []string{"NaN", "Inf", "-Inf", "abc"} {
		req := samplePageRequest()
		req.AmountDetails.Amount = amount
		_, err := client.CreatePaymentSession(context.Background(), req, SessionOptions{ValidateLimits: true})

		perr, ok := AsError(err)
		require.True(t, ok, amount)
		assert.Equal(t, CodeAmountValidationFailed, perr.Code, amount)
		assert.Equal(t, "Invalid amount", perr.Message, amount)
	}
	assert.Equal(t, int32(0), fp.calls.Load())
}

func TestCreatePaymentSession_ClientErrorIsNotRetried(t *testing.T) {
	fp := newFakeProvider(t, func(w http.ResponseWriter, r *http.Request, call int) {
		writeJSON(w, http.StatusBadRequest, `{"failureReason":{"failureCode":"INVALID_PHONE_NUMBER","failureMessage":"Phone number is not valid"}}`)
	})
	sleeper := &recordingSleeper{}
	client := fp.client(sleeper)

	_, err := client.CreatePaymentSession(context.Background(), samplePageRequest(), SessionOptions{})

	perr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, "INVALID_PHONE_NUMBER", perr.Code)
	assert.Equal(t, "Phone number is not valid", perr.Message)
	assert.Equal(t, http.StatusBadRequest, perr.StatusCode)
	assert.False(t, perr.Retryable)
	assert.Equal(t, int32(1), fp.calls.Load())
	assert.Empty(t, sleeper.waits())
}

func TestCreatePaymentSession_RetryableProviderCode(t *testing.T) {
	fp := newFakeProvider(t, func(w http.ResponseWriter, r *http.Request, call int) {
		writeJSON(w, http.StatusTooManyRequests, `{"failureReason":{"failureCode":"RATE_LIMIT_EXCEEDED","failureMessage":"Slow down"}}`)
	})
	sleeper := &recordingSleeper{}
	client := fp.client(sleeper)

	_, err := client.CreatePaymentSession(context.Background(), samplePageRequest(), SessionOptions{Retries: Retries(1)})

	perr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", perr.Code)
	assert.True(t, perr.Retryable)
	assert.Equal(t, int32(2), fp.calls.Load())
	assert.Equal(t, []time.Duration{time.Second}, sleeper.waits())
}

func TestCreatePaymentSession_ExhaustedRetriesSurfaceLastError(t *testing.T) {
	fp := newFakeProvider(t, func(w http.ResponseWriter, r *http.Request, call int) {
		writeJSON(w, http.StatusBadGateway, `{}`)
	})
	sleeper := &recordingSleeper{}
	client := fp.client(sleeper)

	_, err := client.CreatePaymentSession(context.Background(), samplePageRequest(), SessionOptions{})

	perr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, "HTTP_502", perr.Code)
	assert.Equal(t, "Payment service is currently down - please try again later", perr.Message)
	assert.Equal(t, http.StatusBadGateway, perr.StatusCode)
	assert.Equal(t, int32(4), fp.calls.Load())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, sleeper.waits())
	assert.Equal(t, "closed", client.Breaker().GetState(), "one request counts once against the breaker")
}

func TestCreatePaymentSession_SucceedsOnLastRetry(t *testing.T) {
	fp := newFakeProvider(t, func(w http.ResponseWriter, r *http.Request, call int) {
		if call <= 3 {
			writeJSON(w, http.StatusServiceUnavailable, `{}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"depositId":"3f1c2b8e-7d4a-4c1e-9a55-0d2f6f1b7c10","redirectUrl":"https://pay.example.com/s/last"}`)
	})
	sleeper := &recordingSleeper{}
	client := fp.client(sleeper)

	result, err := client.CreatePaymentSession(context.Background(), samplePageRequest(), SessionOptions{})
	require.NoError(t, err)

	assert.Equal(t, "https://pay.example.com/s/last", result.RedirectURL)
	assert.Equal(t, int32(4), fp.calls.Load())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, sleeper.waits())
	assert.Equal(t, "closed", client.Breaker().GetState())
}

func TestCreatePaymentSession_RejectedBody(t *testing.T) {
	fp := newFakeProvider(t, func(w http.ResponseWriter, r *http.Request, call int) {
		writeJSON(w, http.StatusOK, `{"depositId":"d-1","status":"REJECTED","failureReason":{"failureCode":"AMOUNT_OUT_OF_BOUNDS","failureMessage":"Amount too large"}}`)
	})
	client := fp.client(&recordingSleeper{})

	_, err := client.CreatePaymentSession(context.Background(), samplePageRequest(), SessionOptions{})

	perr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, "AMOUNT_OUT_OF_BOUNDS", perr.Code)
	assert.Equal(t, "Amount too large", perr.Message)
	assert.False(t, perr.Retryable)
}

func TestCreatePaymentSession_BreakerOpens(t *testing.T) {
	fp := newFakeProvider(t, func(w http.ResponseWriter, r *http.Request, call int) {
		writeJSON(w, http.StatusServiceUnavailable, `{}`)
	})
	client := fp.client(&recordingSleeper{})

	for i := 0; i < 3; i++ {
		_, err := client.CreatePaymentSession(context.Background(), samplePageRequest(), SessionOptions{Retries: Retries(0)})
		perr, ok := AsError(err)
		require.True(t, ok)
		assert.Equal(t, "HTTP_503", perr.Code)
	}
	assert.Equal(t, "open", client.Breaker().GetState())

	_, err := client.CreatePaymentSession(context.Background(), samplePageRequest(), SessionOptions{Retries: Retries(0)})
	perr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, CodeServiceUnavailable, perr.Code)
	assert.True(t, perr.Retryable)
	assert.Equal(t, http.StatusServiceUnavailable, perr.StatusCode)
	assert.Equal(t, int32(3), fp.calls.Load())
}

func TestCreatePaymentSession_ClientErrorsKeepBreakerClosed(t *testing.T) {
	fp := newFakeProvider(t, func(w http.ResponseWriter, r *http.Request, call int) {
		writeJSON(w, http.StatusUnauthorized, `{}`)
	})
	client := fp.client(&recordingSleeper{})

	for i := 0; i < 5; i++ {
		_, err := client.CreatePaymentSession(context.Background(), samplePageRequest(), SessionOptions{})
		perr, ok := AsError(err)
		require.True(t, ok)
		assert.Equal(t, "Authentication failed - please contact support", perr.Message)
	}
	assert.Equal(t, "closed", client.Breaker().GetState())
	assert.Equal(t, int32(5), fp.calls.Load())
}

func TestGetDepositStatus_NotFoundIsPending(t *testing.T) {
	fp := newFakeProvider(t, func(w http.ResponseWriter, r *http.Request, call int) {
		writeJSON(w, http.StatusNotFound, `{"errorMessage":"not found"}`)
	})
	sleeper := &recordingSleeper{}
	client := fp.client(sleeper)

	deposit, err := client.GetDepositStatus(context.Background(), "dep-404", StatusOptions{})
	require.NoError(t, err)

	assert.Equal(t, "dep-404", deposit.DepositID)
	assert.Equal(t, models.ProviderStatusPending, deposit.Status)
	assert.Equal(t, int32(1), fp.calls.Load())
	assert.Empty(t, sleeper.waits())
	assert.Equal(t, "/v2/deposits/dep-404", fp.requests[0].URL.Path)
}

func TestGetDepositStatus_BodyShapes(t *testing.T) {
	completed := models.DepositStatus{
		DepositID:       "dep-1",
		Status:          models.ProviderStatusCompleted,
		RequestedAmount: "1500.00",
		DepositedAmount: "1500.00",
		Currency:        "KES",
		Country:         "KEN",
		Correspondent:   "MPESA_KEN",
		Payer:           &models.Payer{Type: "MSISDN", Address: models.PayerAddress{Value: "254712345678"}},
	}
	bare, err := json.Marshal(completed)
	require.NoError(t, err)

	tests := []struct {
		name string
		body string
	}{
		{"bare object", string(bare)},
		{"single element array", "[" + string(bare) + "]"},
		{"found envelope", `{"status":"FOUND","data":` + string(bare) + `}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fp := newFakeProvider(t, func(w http.ResponseWriter, r *http.Request, call int) {
				writeJSON(w, http.StatusOK, tt.body)
			})
			client := fp.client(&recordingSleeper{})

			deposit, err := client.GetDepositStatus(context.Background(), "dep-1", StatusOptions{})
			require.NoError(t, err)

			assert.Equal(t, completed.DepositID, deposit.DepositID)
			assert.Equal(t, completed.Status, deposit.Status)
			assert.Equal(t, completed.Amount(), deposit.Amount())
			assert.Equal(t, completed.Currency, deposit.Currency)
			assert.Equal(t, "254712345678", deposit.PhoneNumber())
		})
	}
}

func TestGetDepositStatus_EmptyBodiesArePending(t *testing.T) {
	for _, body := range []string{"", "[]", `{"status":"NOT_FOUND"}`, "null"} {
		fp := newFakeProvider(t, func(w http.ResponseWriter, r *http.Request, call int) {
			writeJSON(w, http.StatusOK, body)
		})
		client := fp.client(&recordingSleeper{})

		deposit, err := client.GetDepositStatus(context.Background(), "dep-2", StatusOptions{})
		require.NoError(t, err, "body %q", body)
		assert.Equal(t, models.ProviderStatusPending, deposit.Status, "body %q", body)
		assert.Equal(t, "dep-2", deposit.DepositID)
	}
}

func TestGetDepositStatus_UnknownStatus(t *testing.T) {
	fp := newFakeProvider(t, func(w http.ResponseWriter, r *http.Request, call int) {
		writeJSON(w, http.StatusOK, `{"depositId":"dep-3","status":"IN_RECONCILIATION"}`)
	})
	client := fp.client(&recordingSleeper{})

	_, err := client.GetDepositStatus(context.Background(), "dep-3", StatusOptions{})

	perr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, CodeUnknownDepositStatus, perr.Code)
	assert.ErrorIs(t, err, models.ErrUnknownProviderStatus)
}

func TestGetDepositStatus_RequiresID(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://127.0.0.1:1"})

	_, err := client.GetDepositStatus(context.Background(), " ", StatusOptions{})

	perr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, perr.StatusCode)
}

func TestGetDepositStatus_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	baseURL := server.URL
	server.Close()

	sleeper := &recordingSleeper{}
	client := NewClient(Config{BaseURL: baseURL, Timeout: time.Second}, WithSleep(sleeper.sleep))

	_, err := client.GetDepositStatus(context.Background(), "dep-4", StatusOptions{Retries: Retries(1)})

	perr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, CodeNetworkError, perr.Code)
	assert.True(t, perr.Retryable)
	assert.Equal(t, []time.Duration{time.Second}, sleeper.waits())
}

func TestGetDepositStatus_Timeout(t *testing.T) {
	fp := newFakeProvider(t, func(w http.ResponseWriter, r *http.Request, call int) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	})
	client := NewClient(Config{BaseURL: fp.server.URL, Timeout: 50 * time.Millisecond}, WithSleep((&recordingSleeper{}).sleep))

	_, err := client.GetDepositStatus(context.Background(), "dep-5", StatusOptions{Retries: Retries(0)})

	perr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, CodeTimeout, perr.Code)
	assert.True(t, perr.Retryable)
}

func TestGenerateDepositID_Unique(t *testing.T) {
	seen := make(map[string]struct{}, 100000)
	for i := 0; i < 100000; i++ {
		id := GenerateDepositID("shop")
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
	}

	assert.Regexp(t, `^shop_[0-9A-HJKMNP-TV-Z]{26}$`, GenerateDepositID("shop"))
	assert.Len(t, GenerateDepositID(""), 26)
	assert.Regexp(t, `^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`, NewDepositID())
}

func TestTruncateCustomerMessage(t *testing.T) {
	assert.Equal(t, "short", TruncateCustomerMessage("short"))
	assert.Equal(t, "Paiement commande éYot", TruncateCustomerMessage("Paiement commande éYote 42"))
}
