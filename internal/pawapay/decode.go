package pawapay

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/ashendes/momo-checkout/internal/models"
	log "github.com/sirupsen/logrus"
)

// envelope statuses returned by the v2 status endpoints
const (
	envelopeFound    = "FOUND"
	envelopeNotFound = "NOT_FOUND"
)

type depositEnvelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
}

// DecodeDeposit normalizes a deposit status body. It accepts a bare object, a
// one-element array or a {status, data} envelope. Bodies that carry no deposit
// yet decode to a synthetic PENDING record for depositID.
func DecodeDeposit(depositID string, body []byte) (*models.DepositStatus, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return models.PendingDeposit(depositID), nil
	}

	switch body[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, invalidResponse(err)
		}
		if len(items) == 0 {
			return models.PendingDeposit(depositID), nil
		}
		return DecodeDeposit(depositID, items[0])

	case '{':
		var env depositEnvelope
		if err := json.Unmarshal(body, &env); err != nil {
			return nil, invalidResponse(err)
		}
		if env.Status == envelopeNotFound {
			return models.PendingDeposit(depositID), nil
		}
		if env.Status == envelopeFound || hasData(env.Data) {
			return DecodeDeposit(depositID, env.Data)
		}
		return decodeBare(depositID, body)

	default:
		return nil, invalidResponse(fmt.Errorf("unexpected body %q", truncate(body, 32)))
	}
}

func decodeBare(depositID string, body []byte) (*models.DepositStatus, error) {
	var deposit models.DepositStatus
	if err := json.Unmarshal(body, &deposit); err != nil {
		return nil, invalidResponse(err)
	}
	if deposit.DepositID == "" {
		deposit.DepositID = depositID
	}

	if err := deposit.Validate(); err != nil {
		if errors.Is(err, models.ErrUnknownProviderStatus) {
			return nil, &Error{
				Code:       CodeUnknownDepositStatus,
				Message:    fmt.Sprintf("Unrecognized deposit status %q", deposit.Status),
				StatusCode: http.StatusBadGateway,
				cause:      err,
			}
		}
		log.WithFields(log.Fields{
			"deposit_id": deposit.DepositID,
			"status":     deposit.Status,
		}).Warn("Deposit failure reason does not match its status")
	}
	return &deposit, nil
}

func hasData(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

func invalidResponse(err error) *Error {
	return &Error{
		Code:       CodeInvalidResponse,
		Message:    "Payment service returned an unreadable response",
		StatusCode: http.StatusBadGateway,
		cause:      err,
	}
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
