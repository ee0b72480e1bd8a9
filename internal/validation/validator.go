package validation

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ashendes/momo-checkout/internal/models"
)

const (
	minPhoneDigits = 10
	maxPhoneDigits = 15

	// subscriber digits that follow the calling code
	subscriberDigits = 9
)

// AmountResult is the outcome of an amount check
type AmountResult struct {
	Valid  bool
	Error  string
	Limits *models.PaymentLimits
}

// PhoneResult is the outcome of a phone number check
type PhoneResult struct {
	Valid     bool
	Formatted string
	Error     string
}

var defaultCatalog = DefaultCatalog()

// ValidateAmount checks amount against the built-in catalog
func ValidateAmount(amount float64, country, currency string) AmountResult {
	return defaultCatalog.ValidateAmount(amount, country, currency)
}

// ValidatePhoneNumber checks a phone number against the built-in catalog
func ValidatePhoneNumber(raw, country string) PhoneResult {
	return defaultCatalog.ValidatePhoneNumber(raw, country)
}

// ValidateAmount accepts finite amounts within [MinAmount, MaxAmount] for a
// configured pair. Whole-unit currencies must not carry a fractional part.
func (c *Catalog) ValidateAmount(amount float64, country, currency string) AmountResult {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return AmountResult{Error: "Invalid amount"}
	}
	limits, ok := c.LimitsFor(country, currency)
	if !ok {
		return AmountResult{Error: fmt.Sprintf("Payment not supported for %s (%s)", country, currency)}
	}
	if wholeUnitCurrencies[currency] && amount != math.Trunc(amount) {
		return AmountResult{
			Error:  fmt.Sprintf("Amount must be a whole number of %s", currency),
			Limits: &limits,
		}
	}
	if amount < limits.MinAmount {
		return AmountResult{
			Error:  fmt.Sprintf("Minimum amount is %s %s", formatLimit(limits.MinAmount), currency),
			Limits: &limits,
		}
	}
	if amount > limits.MaxAmount {
		return AmountResult{
			Error:  fmt.Sprintf("Maximum amount is %s %s", formatLimit(limits.MaxAmount), currency),
			Limits: &limits,
		}
	}
	return AmountResult{Valid: true, Limits: &limits}
}

// ValidatePhoneNumber strips everything but digits, then checks length and the
// country pattern when one is configured. Formatted holds the canonical MSISDN.
func (c *Catalog) ValidatePhoneNumber(raw, country string) PhoneResult {
	cleaned := StripNonDigits(raw)
	if len(cleaned) < minPhoneDigits || len(cleaned) > maxPhoneDigits {
		return PhoneResult{Error: fmt.Sprintf("Phone number must be %d-%d digits", minPhoneDigits, maxPhoneDigits)}
	}

	if pattern, ok := c.phonePattern(country); ok {
		if !strings.HasPrefix(cleaned, pattern.CallingCode) || len(cleaned) != len(pattern.CallingCode)+subscriberDigits {
			return PhoneResult{Error: "Phone number must match format: " + pattern.Format()}
		}
	}
	return PhoneResult{Valid: true, Formatted: cleaned}
}

// StripNonDigits drops every character that is not an ASCII digit
func StripNonDigits(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// zero-decimal currencies are shown without a fractional part
var wholeUnitCurrencies = map[string]bool{
	"UGX": true,
	"RWF": true,
}

// FormatAmount renders an amount for display and for the provider's string amount fields
func FormatAmount(amount float64, currency string) string {
	if wholeUnitCurrencies[currency] {
		return strconv.FormatFloat(amount, 'f', 0, 64)
	}
	return strconv.FormatFloat(amount, 'f', 2, 64)
}

func formatLimit(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
