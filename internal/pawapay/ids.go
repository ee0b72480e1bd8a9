package pawapay

import (
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// GenerateDepositID returns prefix_<ULID>. The ULID is time-ordered with 80 random bits.
func GenerateDepositID(prefix string) string {
	id := ulid.MustNew(ulid.Timestamp(time.Now()), ulid.DefaultEntropy()).String()
	if prefix == "" {
		return id
	}
	return prefix + "_" + id
}

// NewDepositID returns a random UUIDv4, the id format the v2 deposit APIs accept
func NewDepositID() string {
	return uuid.New().String()
}
