package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/portfolio-importer/internal/types"
)

// HoldingKey is the identity of a holding within a platform account
type HoldingKey struct {
	PlatformAccountID string
	Symbol            string
	Exchange          string
}

// Holding is a persisted position owned by a platform account.
// Imports set CurrentPrice only when creating a holding; merges leave it to the price refresh job.
type Holding struct {
	ID                string           `json:"id" db:"id"`
	PlatformAccountID string           `json:"platform_account_id" db:"platform_account_id"`
	Symbol            string           `json:"symbol" db:"symbol"`
	Exchange          string           `json:"exchange" db:"exchange"`
	AssetType         types.AssetType  `json:"asset_type" db:"asset_type"`
	Quantity          decimal.Decimal  `json:"quantity" db:"quantity"`
	AveragePrice      decimal.Decimal  `json:"average_price" db:"average_price"`
	CurrentPrice      *decimal.Decimal `json:"current_price,omitempty" db:"current_price"`
	ISIN              *string          `json:"isin,omitempty" db:"isin"`
	CreatedAt         time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at" db:"updated_at"`
}

// Key returns the holding's identity key
func (h *Holding) Key() HoldingKey {
	return HoldingKey{PlatformAccountID: h.PlatformAccountID, Symbol: h.Symbol, Exchange: h.Exchange}
}
