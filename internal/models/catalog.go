package models

// Country represents a market the checkout can collect in
type Country struct {
	Code     string `json:"code" yaml:"code"`
	Name     string `json:"name" yaml:"name"`
	Currency string `json:"currency" yaml:"currency"`
	Flag     string `json:"flag" yaml:"flag"`
}

// PaymentLimits bounds the amount accepted for a country and currency pair
type PaymentLimits struct {
	Country   string  `json:"country" yaml:"country"`
	Currency  string  `json:"currency" yaml:"currency"`
	MinAmount float64 `json:"minAmount" yaml:"min_amount"`
	MaxAmount float64 `json:"maxAmount" yaml:"max_amount"`
}

// PhonePattern is the canonical MSISDN shape for a country
type PhonePattern struct {
	Country     string `json:"country" yaml:"country"`
	CallingCode string `json:"callingCode" yaml:"calling_code"`
}

// Format renders the pattern the way it is shown to customers, e.g. 256XXXXXXXXX
func (p PhonePattern) Format() string {
	return p.CallingCode + "XXXXXXXXX"
}
