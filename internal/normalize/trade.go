package normalize

import (
	"fmt"
	"strings"
	"time"

	"github.com/portfolio-importer/internal/layout"
	"github.com/portfolio-importer/internal/models"
	"github.com/portfolio-importer/internal/types"
)

// date formats seen in broker tradebooks
var tradeDateLayouts = []string{
	"2006-01-02",
	"02-01-2006",
	"02/01/2006",
	"2006/01/02",
	"02-Jan-2006",
	"2 Jan 2006",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// NormalizeTrade converts one tradebook row. Rows that cannot form a complete
// trade are skipped and reported with a missing_field warning.
func (n *RowNormalizer) NormalizeTrade(row []string, cols layout.ColumnMap, rowIndex int) (models.TradeRecord, *models.Warning) {
	rowNumber := rowIndex + 1
	rawSymbol := cellAt(row, cols, layout.FieldSymbol)
	symbol, exchange := n.symbolAndExchange(rawSymbol, cellAt(row, cols, layout.FieldExchange))

	skip := func(field, reason string) (models.TradeRecord, *models.Warning) {
		return models.TradeRecord{}, &models.Warning{
			Kind:      types.WarningMissingField,
			Symbol:    symbol,
			Sheet:     n.sheet,
			RowNumber: rowNumber,
			Field:     field,
			Message:   fmt.Sprintf("trade skipped: %s", reason),
		}
	}

	if symbol == "" {
		return skip(string(layout.FieldSymbol), "no symbol")
	}

	tradeType, ok := parseTradeType(cellAt(row, cols, layout.FieldTradeType))
	if !ok {
		return skip(string(layout.FieldTradeType), "trade type is not buy or sell")
	}

	qty, ok := parseField(row, cols, layout.FieldQuantity)
	if !ok || !qty.IsPositive() {
		return skip(string(layout.FieldQuantity), "quantity is missing or not positive")
	}

	price, ok := parseField(row, cols, layout.FieldPrice)
	if !ok || price.IsNegative() {
		return skip(string(layout.FieldPrice), "price is missing or negative")
	}

	date, ok := parseTradeDate(cellAt(row, cols, layout.FieldTradeDate))
	if !ok {
		return skip(string(layout.FieldTradeDate), "trade date is missing or unreadable")
	}

	return models.TradeRecord{
		Symbol:    symbol,
		Exchange:  exchange,
		TradeType: tradeType,
		Quantity:  qty,
		Price:     price,
		TradeDate: date,
		OrderID:   cellAt(row, cols, layout.FieldOrderID),
		Sheet:     n.sheet,
		RowNumber: rowNumber,
	}, nil
}

func parseTradeType(raw string) (types.TradeType, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "buy", "b", "purchase":
		return types.TradeBuy, true
	case "sell", "s", "sale":
		return types.TradeSell, true
	}
	return "", false
}

func parseTradeDate(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	for _, l := range tradeDateLayouts {
		if t, err := time.Parse(l, raw); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}
