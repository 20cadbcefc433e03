package holding

import (
	"math"

	"mftracker/internal/quantity"
	"mftracker/internal/quote"
)

// Enrich joins q onto h. A nil q means the quote could not be fetched.
//
//	prior   = quantity * (price - change)
//	current = quantity * price
//	change% = (current - prior) * 100 / prior
//
// Values are left undefined when the quote is missing or the quantity does
// not parse; the change is also undefined for a zero quantity, a zero prior
// value or a result that is not finite.
func Enrich(h Holding, q *quote.Quote) EnrichedHolding {
	e := EnrichedHolding{Holding: h}

	qty, err := quantity.Parse(h.QuantityRaw)
	if err != nil {
		e.QuantityErr = err
	} else {
		e.Quantity = &qty
	}

	if q == nil {
		return e
	}
	qc := *q
	e.Quote = &qc

	if e.Quantity == nil {
		return e
	}

	prior := qty * (qc.Price - qc.Change)
	current := qty * qc.Price
	e.PriorValue = &prior
	e.CurrentValue = &current

	if qty == 0 || prior == 0 {
		return e
	}
	pct := (current - prior) * 100 / prior
	if math.IsNaN(pct) || math.IsInf(pct, 0) {
		return e
	}
	e.SharePercentChange = &pct
	return e
}

// EnrichFailed records a failed quote fetch for h.
func EnrichFailed(h Holding, err error) EnrichedHolding {
	e := Enrich(h, nil)
	e.QuoteErr = err
	return e
}
