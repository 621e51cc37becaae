// Package numeric parses the number formats found in broker exports.
package numeric

import (
	"strings"

	"github.com/shopspring/decimal"
)

// currency markers stripped before parsing, longest first
var currencyMarkers = []string{"INR", "Rs.", "Rs", "₹", "$", "€", "£"}

// ParseDecimal parses a cell such as "1,23,456.50", " ₹ 2,500 " or "(12.5)".
// Grouping commas are dropped wherever they appear. It reports false for
// empty or non-numeric input.
func ParseDecimal(cell string) (decimal.Decimal, bool) {
	s := strings.TrimSpace(cell)
	if s == "" {
		return decimal.Zero, false
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	for _, marker := range currencyMarkers {
		s = strings.ReplaceAll(s, marker, "")
	}

	s = strings.Map(func(r rune) rune {
		switch r {
		case ',', ' ', '\u00a0', '\t':
			return -1
		}
		return r
	}, s)

	if s == "" || s == "-" || s == "+" || s == "." {
		return decimal.Zero, false
	}
	if strings.ContainsAny(s, "eE") {
		// scientific notation is not a format brokers emit; treat as text
		return decimal.Zero, false
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	if negative {
		d = d.Neg()
	}
	return d, true
}

// LooksNumeric reports whether the cell parses as a number
func LooksNumeric(cell string) bool {
	_, ok := ParseDecimal(cell)
	return ok
}
