// Package quantity converts holding quantities as printed in fund portfolio
// tables ("12.5L", "2Cr", "750k", "-") into plain share counts.
package quantity

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrNormalization is wrapped by every Parse failure.
var ErrNormalization = errors.New("unrecognized quantity")

// Placeholder is what portfolio tables print when a quantity is not available.
const Placeholder = "-"

type suffix struct {
	unit  string
	scale decimal.Decimal
}

// plain matches a decimal number without exponent once separators are gone.
var plain = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)$`)

// suffixes are matched in this order; "Cr" must be tried before "L" and "k".
var suffixes = []suffix{
	{unit: "Cr", scale: decimal.New(1, 7)},
	{unit: "L", scale: decimal.New(1, 5)},
	{unit: "k", scale: decimal.New(1, 3)},
}

// Parse returns the share count for raw. Empty strings and the placeholder
// are zero. Anything that is not a decimal number with an optional
// recognized magnitude suffix is an error.
func Parse(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" || s == Placeholder {
		return 0, nil
	}

	scale := decimal.NewFromInt(1)
	for _, sfx := range suffixes {
		if strings.HasSuffix(s, sfx.unit) {
			s = strings.TrimSpace(strings.TrimSuffix(s, sfx.unit))
			scale = sfx.scale
			break
		}
	}

	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, fmt.Errorf("%w: %q", ErrNormalization, raw)
	}
	if !plain.MatchString(s) {
		return 0, fmt.Errorf("%w: %q", ErrNormalization, raw)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrNormalization, raw)
	}
	v, _ := d.Mul(scale).Float64()
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, fmt.Errorf("%w: %q out of range", ErrNormalization, raw)
	}
	return v, nil
}

// Normalize is the total form of Parse: unparseable input yields 0.
func Normalize(raw string) float64 {
	v, err := Parse(raw)
	if err != nil {
		return 0
	}
	return v
}

// Format renders v in the canonical form accepted back by Parse.
func Format(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
