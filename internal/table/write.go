package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"mftracker/internal/holding"
)

var outputColumns = []string{ColPrice, ColChange, ColChangePercent, ColSharePercentChange}

// Write emits t's columns followed by the quote columns, one row per
// enriched holding. Columns already present in t are overwritten in place.
// Undefined values are written as empty cells. Cells of a ragged row beyond
// t's header are kept after the quote columns.
func Write(w io.Writer, t Table, rows []holding.EnrichedHolding) error {
	header := append([]string(nil), t.Header...)
	at := make(map[string]int, len(outputColumns))
	for i, col := range header {
		at[slug(col)] = i
	}
	for _, col := range outputColumns {
		if _, ok := at[slug(col)]; !ok {
			at[slug(col)] = len(header)
			header = append(header, col)
		}
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, e := range rows {
		record := make([]string, len(header))
		if e.Row != nil {
			n := copy(record, e.Row[:min(len(e.Row), len(t.Header))])
			if n < len(e.Row) {
				record = append(record, e.Row[n:]...)
			}
		} else {
			t.fill(record, e.Holding)
		}
		if e.Quote != nil {
			record[at[slug(ColPrice)]] = formatFloat(e.Quote.Price)
			record[at[slug(ColChange)]] = formatFloat(e.Quote.Change)
			record[at[slug(ColChangePercent)]] = e.Quote.ChangePercent
		} else {
			record[at[slug(ColPrice)]] = ""
			record[at[slug(ColChange)]] = ""
			record[at[slug(ColChangePercent)]] = ""
		}
		record[at[slug(ColSharePercentChange)]] = ""
		if e.SharePercentChange != nil {
			record[at[slug(ColSharePercentChange)]] = formatFloat(*e.SharePercentChange)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile writes the enriched table to dir/t.Name.
func WriteFile(dir string, t Table, rows []holding.EnrichedHolding) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}
	path := filepath.Join(dir, t.Name)
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := Write(f, t, rows); err != nil {
		f.Close()
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, f.Close()
}

// fill places h's fields in their columns for holdings without an original row.
func (t Table) fill(record []string, h holding.Holding) {
	values := map[string]string{
		"fund_key":     h.FundKey,
		"fund_name":    h.FundName,
		"stock_name":   h.StockName,
		"quote_url":    h.QuoteURL,
		"quantity_raw": h.QuantityRaw,
	}
	for field, idx := range t.cols {
		if idx < len(record) {
			record[idx] = values[field]
		}
	}
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
