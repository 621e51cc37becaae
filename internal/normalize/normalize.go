// Package normalize converts raw sheet rows into canonical records.
package normalize

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/portfolio-importer/internal/layout"
	"github.com/portfolio-importer/internal/models"
	"github.com/portfolio-importer/internal/numeric"
	"github.com/portfolio-importer/internal/refdata"
	"github.com/portfolio-importer/internal/types"
)

var (
	// ErrMissingSymbol marks a row without a usable symbol; it cannot form a holding key
	ErrMissingSymbol = errors.New("row has no symbol")
	// ErrNonPositiveQuantity marks a row whose quantity parsed to zero or less
	ErrNonPositiveQuantity = errors.New("row quantity is not positive")
)

var (
	// "RELIANCE NSE" as written by the legacy console
	instrumentExchange = regexp.MustCompile(`(?i)^(.+?)\s+(NSE|BSE)$`)
	// "RELIANCE.NS", "TCS.BSE"
	exchangeSuffix = regexp.MustCompile(`(?i)\.(NS|BO|NSE|BSE)$`)
	isinPattern    = regexp.MustCompile(`^[A-Z]{2}[A-Z0-9]{9}[0-9]$`)
)

// summary rows some exports append below the data
var totalRows = map[string]bool{"TOTAL": true, "GRAND TOTAL": true, "TOTAL VALUE": true}

// RowNormalizer normalizes the data rows of one sheet
type RowNormalizer struct {
	tables *refdata.Tables
	sheet  string
	fund   bool
}

// NewRowNormalizer creates a normalizer for rows of one detected sheet
func NewRowNormalizer(tables *refdata.Tables, sheetName string, detected layout.DetectedLayout) *RowNormalizer {
	return &RowNormalizer{
		tables: tables,
		sheet:  sheetName,
		fund:   detected.FundSheet,
	}
}

// Normalize converts one data row. rowIndex is the 0-based index of the row
// in its sheet. Missing or unparseable quantity defaults to 1 and missing or
// unparseable average price defaults to 0, each with a defaulted_value
// warning. Rows without a symbol return ErrMissingSymbol.
func (n *RowNormalizer) Normalize(row []string, cols layout.ColumnMap, rowIndex int) (models.CanonicalRecord, []models.Warning, error) {
	rowNumber := rowIndex + 1
	rawSymbol := cellAt(row, cols, layout.FieldSymbol)
	if rawSymbol == "" || totalRows[strings.ToUpper(rawSymbol)] {
		return models.CanonicalRecord{}, nil, ErrMissingSymbol
	}

	symbol, exchange := n.symbolAndExchange(rawSymbol, cellAt(row, cols, layout.FieldExchange))
	if symbol == "" {
		return models.CanonicalRecord{}, nil, ErrMissingSymbol
	}

	rec := models.CanonicalRecord{
		Symbol:    symbol,
		Exchange:  exchange,
		AssetType: types.AssetUnknown,
		ISIN:      normalizeISIN(cellAt(row, cols, layout.FieldISIN)),
		Sheet:     n.sheet,
		RowNumber: rowNumber,
	}

	var warnings []models.Warning
	warn := func(field, message string) {
		warnings = append(warnings, models.Warning{
			Kind:      types.WarningDefaultedValue,
			Symbol:    symbol,
			Sheet:     n.sheet,
			RowNumber: rowNumber,
			Field:     field,
			Message:   message,
		})
	}

	qty, qtyOK := parseField(row, cols, layout.FieldQuantity)
	switch {
	case !qtyOK:
		rec.Quantity = decimal.NewFromInt(1)
		warn(string(layout.FieldQuantity), describeDefault(cols, layout.FieldQuantity, "1"))
	case !qty.IsPositive():
		return models.CanonicalRecord{}, nil, ErrNonPositiveQuantity
	default:
		rec.Quantity = qty
	}

	avg, avgOK := parseField(row, cols, layout.FieldAveragePrice)
	if !avgOK && qtyOK {
		// fund statements often carry the total invested amount instead of a unit cost
		if invested, ok := parseField(row, cols, layout.FieldInvestedValue); ok && !invested.IsNegative() {
			avg, avgOK = invested.Div(qty), true
		}
	}
	switch {
	case !avgOK:
		rec.AveragePrice = decimal.Zero
		warn(string(layout.FieldAveragePrice), describeDefault(cols, layout.FieldAveragePrice, "0"))
	case avg.IsNegative():
		rec.AveragePrice = decimal.Zero
		warn(string(layout.FieldAveragePrice), fmt.Sprintf("average price %s is negative; defaulted to 0", avg))
	default:
		rec.AveragePrice = avg
	}

	if cur, ok := parseField(row, cols, layout.FieldCurrentPrice); ok && !cur.IsNegative() {
		rec.CurrentPrice = &cur
	}

	return rec, warnings, nil
}

// symbolAndExchange splits exchange markers off the raw symbol and applies
// the alias table. Fund sheets use the cleaned scheme name and the MF exchange.
func (n *RowNormalizer) symbolAndExchange(raw, exchangeCell string) (string, string) {
	if n.fund {
		return CleanSchemeName(raw), types.ExchangeMutualFund
	}

	symbol := strings.ToUpper(strings.TrimSpace(raw))
	exchange := ""
	if m := instrumentExchange.FindStringSubmatch(symbol); m != nil {
		symbol, exchange = strings.TrimSpace(m[1]), m[2]
	}
	if m := exchangeSuffix.FindStringSubmatch(symbol); m != nil {
		symbol, exchange = strings.TrimSuffix(symbol, m[0]), m[1]
	}
	if exchangeCell != "" {
		exchange = exchangeCell
	}

	return n.tables.CanonicalSymbol(symbol), NormalizeExchange(exchange)
}

// NormalizeExchange maps broker exchange markers to the codes used by price lookups.
// An empty marker defaults to NSE.
func NormalizeExchange(raw string) string {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "", "NSE", "NS", ".NS", "N":
		return types.ExchangeNSE
	case "BSE", "BO", ".BO", "B":
		return types.ExchangeBSE
	case "MF", "AMFI":
		return types.ExchangeMutualFund
	default:
		return strings.ToUpper(strings.TrimSpace(raw))
	}
}

var (
	schemeDates    = regexp.MustCompile(`\b\d{1,2}[-/.]\d{1,2}[-/.]\d{2,4}\b|\b\d{1,2}[- ](?i:(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*)[- ]\d{2,4}\b`)
	schemeDecimals = regexp.MustCompile(`\b\d+\.\d+\b`)
	schemeNumbers  = regexp.MustCompile(`\b\d{2,}\b`)
)

const maxSchemeNameLength = 50

// CleanSchemeName strips dates, NAV figures and numeric codes from a fund
// scheme name and bounds its length so it can serve as a symbol
func CleanSchemeName(raw string) string {
	s := schemeDates.ReplaceAllString(raw, " ")
	s = schemeDecimals.ReplaceAllString(s, " ")
	s = schemeNumbers.ReplaceAllString(s, " ")
	s = strings.ToUpper(strings.Join(strings.Fields(s), " "))
	s = strings.Trim(s, " -")
	if r := []rune(s); len(r) > maxSchemeNameLength {
		s = strings.TrimSpace(string(r[:maxSchemeNameLength]))
	}
	return s
}

func normalizeISIN(raw string) string {
	isin := strings.ToUpper(strings.TrimSpace(raw))
	if !isinPattern.MatchString(isin) {
		return ""
	}
	return isin
}

func cellAt(row []string, cols layout.ColumnMap, f layout.Field) string {
	c, ok := cols[f]
	if !ok || c < 0 || c >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[c])
}

func parseField(row []string, cols layout.ColumnMap, f layout.Field) (decimal.Decimal, bool) {
	return numeric.ParseDecimal(cellAt(row, cols, f))
}

func describeDefault(cols layout.ColumnMap, f layout.Field, def string) string {
	if !cols.Has(f) {
		return fmt.Sprintf("no %s column; defaulted to %s", f, def)
	}
	return fmt.Sprintf("%s is empty or not a number; defaulted to %s", f, def)
}
