package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/portfolio-importer/internal/types"
)

// CanonicalRecord is one prospective holding after normalization.
// The classifier sets AssetType; nothing changes it afterwards.
type CanonicalRecord struct {
	Symbol       string
	Exchange     string
	Quantity     decimal.Decimal
	AveragePrice decimal.Decimal
	CurrentPrice *decimal.Decimal
	AssetType    types.AssetType
	ISIN         string
	Sheet        string
	RowNumber    int // 1-based position in the source sheet
}

// Key returns the holding key this record reconciles against
func (r CanonicalRecord) Key(platformAccountID string) HoldingKey {
	return HoldingKey{PlatformAccountID: platformAccountID, Symbol: r.Symbol, Exchange: r.Exchange}
}

// TradeRecord is one normalized tradebook row
type TradeRecord struct {
	Symbol    string
	Exchange  string
	TradeType types.TradeType
	Quantity  decimal.Decimal
	Price     decimal.Decimal
	TradeDate time.Time
	OrderID   string
	Sheet     string
	RowNumber int
}

// MergeAudit carries the before and after values of a duplicate merge
type MergeAudit struct {
	OldQuantity     decimal.Decimal `json:"old_quantity"`
	NewQuantity     decimal.Decimal `json:"new_quantity"`
	OldAveragePrice decimal.Decimal `json:"old_average_price"`
	NewAveragePrice decimal.Decimal `json:"new_average_price"`
}

// Warning is a row-level import notice returned to the caller and embedded in history
type Warning struct {
	Kind      types.WarningKind `json:"kind"`
	Symbol    string            `json:"symbol,omitempty"`
	Sheet     string            `json:"sheet,omitempty"`
	RowNumber int               `json:"row_number"`
	Field     string            `json:"field,omitempty"`
	Message   string            `json:"message"`
	*MergeAudit
}
