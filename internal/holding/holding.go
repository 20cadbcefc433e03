// Package holding defines fund portfolio line items and their valuation
// against a live quote.
package holding

import (
	"mftracker/internal/quote"
)

// Fund is an entry of the configured fund list: the key names the fund's
// holdings file and Name is used when the file carries no fund name.
type Fund struct {
	Key  string `json:"key" toml:"key"`
	Name string `json:"name" toml:"name"`
}

// Holding is one line of a fund's portfolio table.
type Holding struct {
	FundKey     string `json:"fund_key"`
	FundName    string `json:"fund_name"`
	StockName   string `json:"stock_name"`
	QuoteURL    string `json:"quote_url"`
	QuantityRaw string `json:"quantity_raw"`

	// Row is the original table record, kept so output files round-trip
	// columns the tracker does not interpret.
	Row []string `json:"-"`
}

// Fetchable reports whether the holding has a quote page to fetch.
func (h Holding) Fetchable() bool { return h.QuoteURL != "" }

// EnrichedHolding is a holding joined with its quote and derived values.
// Nil fields are undefined: a missing SharePercentChange is distinct from a
// computed change of zero.
type EnrichedHolding struct {
	Holding

	Quote              *quote.Quote `json:"quote,omitempty"`
	Quantity           *float64     `json:"quantity"`
	PriorValue         *float64     `json:"prior_value"`
	CurrentValue       *float64     `json:"current_value"`
	SharePercentChange *float64     `json:"share_percent_change"`

	QuoteErr    error `json:"-"`
	QuantityErr error `json:"-"`
}

// Usable reports whether the holding contributes a defined change.
func (e EnrichedHolding) Usable() bool { return e.SharePercentChange != nil }
