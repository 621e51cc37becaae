package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/portfolio-importer/internal/types"
)

// Transaction is one executed trade imported from a broker tradebook
type Transaction struct {
	ID                string          `json:"id" db:"id"`
	PlatformAccountID string          `json:"platform_account_id" db:"platform_account_id"`
	ImportID          string          `json:"import_id" db:"import_id"`
	Symbol            string          `json:"symbol" db:"symbol"`
	Exchange          string          `json:"exchange" db:"exchange"`
	TradeType         types.TradeType `json:"trade_type" db:"trade_type"`
	Quantity          decimal.Decimal `json:"quantity" db:"quantity"`
	Price             decimal.Decimal `json:"price" db:"price"`
	TradeDate         time.Time       `json:"trade_date" db:"trade_date"`
	OrderID           *string         `json:"order_id,omitempty" db:"order_id"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
}
