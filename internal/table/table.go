// Package table reads per-fund holdings files and writes their enriched
// counterparts.
package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"mftracker/internal/charset"
	"mftracker/internal/holding"
)

// Ext is the extension of holdings files.
const Ext = ".csv"

// Output columns appended to every enriched table.
const (
	ColPrice              = "price"
	ColChange             = "change"
	ColChangePercent      = "change_percent"
	ColSharePercentChange = "share_percent_change"
)

// ErrMissingColumn is returned when a required column is absent.
var ErrMissingColumn = errors.New("missing required column")

// aliases map a canonical field to the header slugs accepted for it. The
// short slugs are what the portfolio scraper writes.
var aliases = map[string][]string{
	"fund_key":     {"fund-key", "id"},
	"fund_name":    {"fund-name"},
	"quote_url":    {"quote-url", "url"},
	"quantity_raw": {"quantity-raw", "quantity"},
	"stock_name":   {"stock-name", "stock-invested-in", "stock"},
}

var required = []string{"quote_url", "quantity_raw"}

// Table is one fund's holdings file.
type Table struct {
	// Name is the file name, used as the output file name.
	Name     string
	Header   []string
	Holdings []holding.Holding

	cols map[string]int
}

// Key returns the fund key of the table: the first non-empty fund_key cell,
// or the file name without extension.
func (t Table) Key() string {
	for _, h := range t.Holdings {
		if h.FundKey != "" {
			return h.FundKey
		}
	}
	return strings.TrimSuffix(t.Name, filepath.Ext(t.Name))
}

// FundName returns the first non-empty fund_name cell.
func (t Table) FundName() string {
	for _, h := range t.Holdings {
		if h.FundName != "" {
			return h.FundName
		}
	}
	return ""
}

func slug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "\ufeff")
	return strings.Join(strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == '_' || r == '-'
	}), "-")
}

// Read parses decoded CSV text into a Table.
func Read(r io.Reader) (Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return Table{}, fmt.Errorf("failed to read CSV header: %w", err)
	}

	bySlug := make(map[string]int, len(header))
	for i, col := range header {
		if _, dup := bySlug[slug(col)]; !dup {
			bySlug[slug(col)] = i
		}
	}
	cols := make(map[string]int, len(aliases))
	for field, names := range aliases {
		for _, name := range names {
			if idx, ok := bySlug[name]; ok {
				cols[field] = idx
				break
			}
		}
	}
	for _, field := range required {
		if _, ok := cols[field]; !ok {
			return Table{}, fmt.Errorf("%w: %s", ErrMissingColumn, field)
		}
	}

	cell := func(record []string, field string) string {
		idx, ok := cols[field]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	t := Table{Header: header, cols: cols}
	rowNum := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		rowNum++
		if err != nil {
			return Table{}, fmt.Errorf("row %d: failed to read CSV record: %w", rowNum, err)
		}
		if len(record) == 1 && strings.TrimSpace(record[0]) == "" {
			continue
		}
		t.Holdings = append(t.Holdings, holding.Holding{
			FundKey:     cell(record, "fund_key"),
			FundName:    cell(record, "fund_name"),
			StockName:   cell(record, "stock_name"),
			QuoteURL:    cell(record, "quote_url"),
			QuantityRaw: cell(record, "quantity_raw"),
			Row:         record,
		})
	}
	return t, nil
}

// ReadFile decodes path with the first encoding that decodes it strictly and
// parses it. Errors wrapping charset.ErrEncoding mean the file is unreadable
// as text.
func ReadFile(path string, encodings []string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return Table{}, err
	}
	defer f.Close()

	text, err := charset.DecodeReader(f, "", encodings)
	if err != nil {
		return Table{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	t, err := Read(strings.NewReader(text))
	if err != nil {
		return Table{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	t.Name = filepath.Base(path)
	return t, nil
}

// Discover lists the holdings files in dir, sorted by name.
func Discover(dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading holdings directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ext) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}
