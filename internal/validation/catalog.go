package validation

import (
	"fmt"
	"os"

	"github.com/ashendes/momo-checkout/internal/models"
	"gopkg.in/yaml.v3"
)

// Catalog holds the static per-market configuration used before any provider call
type Catalog struct {
	Countries     []models.Country       `yaml:"countries"`
	Limits        []models.PaymentLimits `yaml:"limits"`
	PhonePatterns []models.PhonePattern  `yaml:"phone_patterns"`
}

// DefaultCatalog returns the built-in market table
func DefaultCatalog() *Catalog {
	return &Catalog{
		Countries: []models.Country{
			{Code: "COD", Name: "DR Congo", Currency: "CDF", Flag: "🇨🇩"},
			{Code: "UGA", Name: "Uganda", Currency: "UGX", Flag: "🇺🇬"},
			{Code: "GHA", Name: "Ghana", Currency: "GHS", Flag: "🇬🇭"},
			{Code: "ZMB", Name: "Zambia", Currency: "ZMW", Flag: "🇿🇲"},
			{Code: "KEN", Name: "Kenya", Currency: "KES", Flag: "🇰🇪"},
			{Code: "TZA", Name: "Tanzania", Currency: "TZS", Flag: "🇹🇿"},
			{Code: "RWA", Name: "Rwanda", Currency: "RWF", Flag: "🇷🇼"},
		},
		Limits: []models.PaymentLimits{
			{Country: "COD", Currency: "CDF", MinAmount: 1000, MaxAmount: 5000000},
			{Country: "COD", Currency: "USD", MinAmount: 1, MaxAmount: 2500},
			{Country: "UGA", Currency: "UGX", MinAmount: 1000, MaxAmount: 5000000},
			{Country: "GHA", Currency: "GHS", MinAmount: 1, MaxAmount: 10000},
			{Country: "ZMB", Currency: "ZMW", MinAmount: 10, MaxAmount: 50000},
			{Country: "KEN", Currency: "KES", MinAmount: 100, MaxAmount: 100000},
			{Country: "TZA", Currency: "TZS", MinAmount: 1000, MaxAmount: 1000000},
			{Country: "RWA", Currency: "RWF", MinAmount: 100, MaxAmount: 500000},
		},
		PhonePatterns: []models.PhonePattern{
			{Country: "COD", CallingCode: "243"},
			{Country: "UGA", CallingCode: "256"},
			{Country: "GHA", CallingCode: "233"},
			{Country: "ZMB", CallingCode: "260"},
			{Country: "KEN", CallingCode: "254"},
			{Country: "TZA", CallingCode: "255"},
			{Country: "RWA", CallingCode: "250"},
		},
	}
}

// LoadCatalog reads a YAML catalog from path. Sections missing from the file
// keep their built-in values.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read payment catalog: %w", err)
	}

	var override Catalog
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("failed to parse payment catalog: %w", err)
	}

	catalog := DefaultCatalog()
	if len(override.Countries) > 0 {
		catalog.Countries = override.Countries
	}
	if len(override.Limits) > 0 {
		catalog.Limits = override.Limits
	}
	if len(override.PhonePatterns) > 0 {
		catalog.PhonePatterns = override.PhonePatterns
	}

	for _, l := range catalog.Limits {
		if l.MinAmount > l.MaxAmount {
			return nil, fmt.Errorf("invalid limits for %s/%s: min %v exceeds max %v", l.Country, l.Currency, l.MinAmount, l.MaxAmount)
		}
	}
	return catalog, nil
}

// LimitsFor returns the limits for a country and currency pair
func (c *Catalog) LimitsFor(country, currency string) (models.PaymentLimits, bool) {
	for _, l := range c.Limits {
		if l.Country == country && l.Currency == currency {
			return l, true
		}
	}
	return models.PaymentLimits{}, false
}

// Country looks up a market by ISO alpha-3 code
func (c *Catalog) Country(code string) (models.Country, bool) {
	for _, country := range c.Countries {
		if country.Code == code {
			return country, true
		}
	}
	return models.Country{}, false
}

// IsCountrySupported reports whether the market is listed
func (c *Catalog) IsCountrySupported(code string) bool {
	_, ok := c.Country(code)
	return ok
}

// DefaultCurrency returns the market's primary currency
func (c *Catalog) DefaultCurrency(country string) string {
	if found, ok := c.Country(country); ok {
		return found.Currency
	}
	return ""
}

func (c *Catalog) phonePattern(country string) (models.PhonePattern, bool) {
	for _, p := range c.PhonePatterns {
		if p.Country == country {
			return p, true
		}
	}
	return models.PhonePattern{}, false
}
