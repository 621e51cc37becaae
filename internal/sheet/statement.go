package sheet

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/portfolio-importer/internal/numeric"
	"github.com/portfolio-importer/internal/types"
)

// StatementKind is the kind of account statement recognised in free text
type StatementKind string

const (
	StatementNone       StatementKind = ""
	StatementDemat      StatementKind = "demat"
	StatementMutualFund StatementKind = "mutual_fund"
)

var (
	dematKeywords = []string{"demat", "cdsl", "nsdl", "isin", "depository", "securities", "shares"}
	fundKeywords  = []string{"mutual fund", "scheme", "nav", "folio", "units", "redemption", "amc", "fund house"}

	// ISIN, security name, then the holding quantity
	dematLine = regexp.MustCompile(`\b(IN[A-Z0-9]{9}[0-9])\s+([A-Za-z][A-Za-z0-9&.\- ]*?)\s+([\d,]+(?:\.\d+)?)\b`)
	// scheme name followed by units and NAV
	fundLine = regexp.MustCompile(`(?i)^(.*?\b(?:fund|scheme|elss|etf)\b.*?)\s+([\d,]+\.\d+)\s+([\d,]+\.\d+)`)
	// bare "SYMBOL quantity price" rows
	symbolLine = regexp.MustCompile(`\b([A-Z]{2,}[A-Z0-9\-]*)\s+([\d,]+)\s+([\d,]+\.?\d*)\b`)
)

const maxStatementQuantity = 1_000_000

// ClassifyStatement scores free text against demat and mutual fund statement keywords
func ClassifyStatement(text string) StatementKind {
	lower := strings.ToLower(text)
	count := func(words []string) int {
		n := 0
		for _, w := range words {
			if strings.Contains(lower, w) {
				n++
			}
		}
		return n
	}

	switch {
	case count(dematKeywords) >= 3:
		return StatementDemat
	case count(fundKeywords) >= 3:
		return StatementMutualFund
	}
	return StatementNone
}

// RecoverStatement rebuilds a tabular sheet from a PDF statement that has no
// recognizable header row. The synthesized header uses column names the
// generic layouts understand. It reports false when nothing was recovered.
func RecoverStatement(s RawSheet) (RawSheet, bool) {
	lines := strings.Split(s.Text(), "\n")

	var (
		header []string
		rows   [][]string
	)
	switch ClassifyStatement(s.Text()) {
	case StatementDemat:
		header = []string{"ISIN", "Security Name", "Quantity"}
		for _, line := range lines {
			if m := dematLine.FindStringSubmatch(line); m != nil && quantityInRange(m[3]) {
				rows = append(rows, []string{m[1], cleanSecurityName(m[2]), m[3]})
			}
		}
	case StatementMutualFund:
		header = []string{"Scheme Name", "Units", "NAV"}
		for _, line := range lines {
			if m := fundLine.FindStringSubmatch(line); m != nil && quantityInRange(m[2]) {
				rows = append(rows, []string{strings.TrimSpace(m[1]), m[2], m[3]})
			}
		}
	default:
		header = []string{"Symbol", "Quantity", "Average Price"}
		for _, line := range lines {
			for _, m := range symbolLine.FindAllStringSubmatch(line, -1) {
				if quantityInRange(m[2]) {
					rows = append(rows, []string{m[1], m[2], m[3]})
				}
			}
		}
	}

	if len(rows) == 0 {
		return RawSheet{}, false
	}
	return RawSheet{
		Name:   s.Name + " (statement)",
		Source: types.FilePDF,
		Rows:   append([][]string{header}, rows...),
	}, true
}

func quantityInRange(cell string) bool {
	q, ok := numeric.ParseDecimal(cell)
	return ok && q.IsPositive() && q.LessThan(decimal.NewFromInt(maxStatementQuantity))
}

func cleanSecurityName(name string) string {
	name = strings.ToUpper(strings.TrimSpace(name))
	for _, suffix := range []string{" LIMITED", " LTD.", " LTD"} {
		name = strings.TrimSuffix(name, suffix)
	}
	return strings.TrimSpace(name)
}
