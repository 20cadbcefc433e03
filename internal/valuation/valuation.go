package valuation

import (
	"fmt"
	"strconv"

	"mftracker/internal/holding"
)

// Result is one fund's enriched table and its summary.
type Result struct {
	FundKey       string                    `json:"fund_key"`
	FundName      string                    `json:"fund_name"`
	Holdings      []holding.EnrichedHolding `json:"holdings"`
	PercentChange float64                   `json:"fund_percent_change"`
	// Defined counts holdings with a defined share change.
	Defined int `json:"defined"`
}

// Aggregate reduces a fund's enriched holdings to its percentage change.
//
// The change is the sum of the defined share changes divided by the total
// number of holdings: holdings without a defined change count as 0 in the
// mean rather than being excluded from it.
func Aggregate(fundKey, fundName string, holdings []holding.EnrichedHolding) Result {
	r := Result{FundKey: fundKey, FundName: fundName, Holdings: holdings}
	if len(holdings) == 0 {
		return r
	}
	var sum float64
	for _, h := range holdings {
		if h.SharePercentChange == nil {
			continue
		}
		sum += *h.SharePercentChange
		r.Defined++
	}
	r.PercentChange = sum / float64(len(holdings))
	return r
}

// Usable reports whether at least one holding has a defined change.
func (r Result) Usable() bool { return r.Defined > 0 }

// Summary is the human-readable line printed per fund.
func Summary(r Result) string {
	name := r.FundName
	if name == "" {
		name = r.FundKey
	}
	return fmt.Sprintf("Fund: %s, percent change = %s", name, strconv.FormatFloat(r.PercentChange, 'f', 4, 64))
}
