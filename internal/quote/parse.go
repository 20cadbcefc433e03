package quote

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/net/html"
)

// Equity pages carry the NSE quote in two divs; fund and ETF pages use an
// older template with styled paragraphs.
const (
	changeID = "nsechange"
	priceID  = "nsecp"
)

var (
	legacyChangeClasses = []string{"gr_20", "FL", "MT5", "ML5"}
	legacyPriceClasses  = []string{"gr_28", "FL"}
)

// ParsePage extracts a quote from a decoded quote page.
func ParsePage(doc string) (Quote, error) {
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return Quote{}, fmt.Errorf("%w: %v", ErrParse, err)
	}

	var changeText, priceText string
	if n := find(root, byID("div", changeID)); n != nil {
		changeText = text(n)
		p := find(root, byID("div", priceID))
		if p == nil {
			return Quote{}, fmt.Errorf("%w: #%s without #%s", ErrParse, changeID, priceID)
		}
		priceText = attr(p, "rel")
		if strings.TrimSpace(priceText) == "" {
			priceText = text(p)
		}
	} else if n := find(root, byClasses("p", legacyChangeClasses)); n != nil {
		changeText = text(n)
		p := find(root, byClasses("p", legacyPriceClasses))
		if p == nil {
			return Quote{}, fmt.Errorf("%w: change paragraph without price paragraph", ErrParse)
		}
		priceText = text(p)
	} else {
		return Quote{}, fmt.Errorf("%w: no known layout", ErrParse)
	}

	change, pct, err := SplitChange(changeText)
	if err != nil {
		return Quote{}, err
	}
	price, err := ParseNumber(priceText)
	if err != nil {
		return Quote{}, fmt.Errorf("%w: price: %v", ErrParse, err)
	}
	changeVal, err := ParseNumber(change)
	if err != nil {
		return Quote{}, fmt.Errorf("%w: change: %v", ErrParse, err)
	}
	return Quote{Price: price, Change: changeVal, ChangePercent: pct}, nil
}

// SplitChange splits "12.35 (1.02%)" into its magnitude and its percentage
// with the surrounding parentheses removed.
func SplitChange(s string) (magnitude, percent string, err error) {
	fields := strings.Fields(s)
	if len(fields) < 2 {
		return "", "", fmt.Errorf("%w: change %q has no percentage", ErrParse, s)
	}
	return fields[0], strings.TrimSuffix(strings.TrimPrefix(fields[1], "("), ")"), nil
}

// ParseNumber parses a price as printed on quote pages, e.g. "1,234.50" or "+3.2".
func ParseNumber(s string) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	s = strings.TrimPrefix(s, "+")
	if s == "" {
		return 0, fmt.Errorf("empty number")
	}
	if !plainNumber.MatchString(s) {
		return 0, fmt.Errorf("not a plain decimal: %q", s)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	v, _ := d.Float64()
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, fmt.Errorf("number out of range: %q", s)
	}
	return v, nil
}

// plainNumber is a decimal without exponent, separators already removed.
var plainNumber = regexp.MustCompile(`^-?(\d+\.?\d*|\.\d+)$`)

type matcher func(*html.Node) bool

func byID(tag, id string) matcher {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == tag && attr(n, "id") == id
	}
}

func byClasses(tag string, classes []string) matcher {
	return func(n *html.Node) bool {
		if n.Type != html.ElementNode || n.Data != tag {
			return false
		}
		have := strings.Fields(attr(n, "class"))
		for _, want := range classes {
			found := false
			for _, c := range have {
				if c == want {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return true
	}
}

// find returns the first node in document order matching m.
func find(n *html.Node, m matcher) *html.Node {
	if m(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := find(c, m); found != nil {
			return found
		}
	}
	return nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func text(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}
