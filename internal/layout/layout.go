// Package layout recognises broker export layouts and maps their columns to
// canonical fields.
//
// Each known layout is a declarative table: the header tokens that identify
// it and, per canonical field, the header names that carry that field. The
// generic layouts share one fuzzy synonym dictionary instead of fixed names.
package layout

import (
	"strings"
	"unicode"

	"github.com/portfolio-importer/internal/types"
)

// Field is a canonical field name
type Field string

const (
	FieldSymbol        Field = "symbol"
	FieldISIN          Field = "isin"
	FieldExchange      Field = "exchange"
	FieldQuantity      Field = "quantity"
	FieldAveragePrice  Field = "average_price"
	FieldCurrentPrice  Field = "current_price"
	FieldInvestedValue Field = "invested_value"
	FieldTradeDate     Field = "trade_date"
	FieldTradeType     Field = "trade_type"
	FieldPrice         Field = "price"
	FieldOrderID       Field = "order_id"
)

// ColumnMap maps canonical fields to column indices. Fields that were not
// found are absent.
type ColumnMap map[Field]int

// Has reports whether the field was mapped
func (m ColumnMap) Has(f Field) bool {
	_, ok := m[f]
	return ok
}

// Confidence grades how a layout was recognised
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"   // every identifying token present
	ConfidenceMedium Confidence = "medium" // enough identifying tokens present
	ConfidenceLow    Confidence = "low"    // generic fallback on a tabular-looking row
)

// DetectedLayout is the outcome of layout detection for one sheet
type DetectedLayout struct {
	Kind           types.LayoutKind `json:"kind"`
	HeaderRowIndex int              `json:"header_row_index"` // 0-based
	Confidence     Confidence       `json:"confidence"`
	Notes          []string         `json:"notes,omitempty"`
	// FundSheet is set for holdings sheets whose header, name or symbols mark
	// them as fund data
	FundSheet bool `json:"fund_sheet"`
}

// column lists the header names that carry a field, in priority order
type column struct {
	field    Field
	synonyms []string
}

// definition describes a known layout
type definition struct {
	kind   types.LayoutKind
	upload types.UploadKind
	// identifying tokens; each entry lists interchangeable spellings
	required [][]string
	columns  []column
}

var definitions = []definition{
	{
		kind:   types.LayoutBrokerConsoleNew,
		upload: types.UploadHoldings,
		required: [][]string{
			{"symbol"},
			{"quantity available"},
			{"average price"},
			{"previous closing price"},
			{"unrealized p&l", "unrealised p&l"},
		},
		columns: []column{
			{FieldSymbol, []string{"symbol"}},
			{FieldISIN, []string{"isin"}},
			{FieldQuantity, []string{"quantity available", "qty", "quantity"}},
			{FieldAveragePrice, []string{"average price", "avg price"}},
			{FieldCurrentPrice, []string{"previous closing price", "ltp"}},
		},
	},
	{
		kind:   types.LayoutBrokerConsoleOld,
		upload: types.UploadHoldings,
		required: [][]string{
			{"symbol", "instrument"},
			{"qty", "quantity"},
			{"avg cost"},
			{"ltp"},
			{"p&l"},
		},
		columns: []column{
			{FieldSymbol, []string{"symbol", "instrument"}},
			{FieldISIN, []string{"isin"}},
			{FieldQuantity, []string{"qty", "quantity"}},
			{FieldAveragePrice, []string{"avg cost", "average cost"}},
			{FieldCurrentPrice, []string{"ltp"}},
		},
	},
	{
		kind:   types.LayoutTradebook,
		upload: types.UploadTransactions,
		required: [][]string{
			{"symbol", "tradingsymbol"},
			{"trade date"},
			{"trade type"},
			{"quantity", "qty"},
			{"price"},
		},
		columns: []column{
			{FieldSymbol, []string{"symbol", "tradingsymbol"}},
			{FieldISIN, []string{"isin"}},
			{FieldExchange, []string{"exchange"}},
			{FieldTradeDate, []string{"trade date"}},
			{FieldTradeType, []string{"trade type"}},
			{FieldQuantity, []string{"quantity", "qty"}},
			{FieldPrice, []string{"price"}},
			{FieldOrderID, []string{"order id"}},
		},
	},
}

// genericColumns is the fuzzy synonym dictionary shared by the generic layouts.
// A synonym matches a header when its words appear in the header in order.
var genericColumns = []column{
	{FieldSymbol, []string{"symbol", "stock name", "scheme name", "fund name", "instrument", "scrip", "ticker",
		"security name", "company name", "stock", "scheme", "security", "equity", "company", "name"}},
	{FieldISIN, []string{"isin"}},
	{FieldExchange, []string{"exchange", "exch"}},
	{FieldQuantity, []string{"quantity", "qty", "shares", "units", "balance units", "holdings", "holding"}},
	{FieldAveragePrice, []string{"avg price", "average price", "avg cost", "average cost", "cost price", "buy price",
		"buy avg", "purchase price", "owned price", "acquisition price", "avg nav", "purchase nav"}},
	{FieldCurrentPrice, []string{"current price", "market price", "ltp", "last price", "cmp", "close price",
		"closing price", "current nav", "nav"}},
	{FieldInvestedValue, []string{"invested value", "invested amount", "investment value", "amount invested",
		"cost value", "total cost", "invested"}},
	// a bare "price" column is a unit cost, once the current price synonyms
	// have claimed theirs
	{FieldAveragePrice, []string{"price"}},
}

// fundWords mark a header column as fund data
var fundWords = []string{"nav", "units", "scheme", "folio"}

// normalizeToken folds a header cell for exact token comparison:
// lower case, underscores as spaces, dots and colons dropped, whitespace collapsed
func normalizeToken(s string) string {
	s = strings.ToLower(s)
	s = strings.Map(func(r rune) rune {
		switch {
		case r == '_':
			return ' '
		case r == '.' || r == ':' || r == '*':
			return -1
		case unicode.IsSpace(r):
			return ' '
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// headerWords folds a header cell into lower case words with punctuation removed
func headerWords(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// matchesSynonym reports whether the synonym's words occur in order within the header words
func matchesSynonym(header []string, synonym string) bool {
	want := strings.Fields(synonym)
	if len(want) == 0 {
		return false
	}
	i := 0
	for _, w := range header {
		if w == want[i] {
			i++
			if i == len(want) {
				return true
			}
		}
	}
	return false
}

func isFundHeader(header []string) bool {
	for _, w := range header {
		for _, f := range fundWords {
			if w == f {
				return true
			}
		}
	}
	return false
}
