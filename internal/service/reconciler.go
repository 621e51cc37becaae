package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/portfolio-importer/internal/models"
	"github.com/portfolio-importer/internal/storage"
	"github.com/portfolio-importer/internal/types"
)

// HoldingDelta describes what one reconcile call did to a holding
type HoldingDelta struct {
	Created  bool
	Holding  *models.Holding // state after the write
	Previous *models.Holding // state before a merge; nil when created
}

// Reconciler merges canonical records into persisted holdings
type Reconciler struct {
	now func() time.Time
}

// NewReconciler creates a reconciler
func NewReconciler() *Reconciler {
	return &Reconciler{now: func() time.Time { return time.Now().UTC() }}
}

// MergeLots combines two lots into one, weighting the average price by
// quantity. A combined quantity of zero keeps the first lot's average price.
func MergeLots(qty1, avg1, qty2, avg2 decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	total := qty1.Add(qty2)
	if total.IsZero() {
		return total, avg1
	}
	return total, qty1.Mul(avg1).Add(qty2.Mul(avg2)).Div(total)
}

// Reconcile applies the record to the holding with the same identity key
// inside tx. A new key creates a holding. An existing key merges additively
// and returns a duplicate_merge warning with the before and after values.
// Errors come only from tx.
func (r *Reconciler) Reconcile(ctx context.Context, tx storage.HoldingTx, rec models.CanonicalRecord, platformAccountID string) (HoldingDelta, *models.Warning, error) {
	existing, err := tx.GetHoldingForUpdate(ctx, rec.Key(platformAccountID))
	if err != nil {
		return HoldingDelta{}, nil, err
	}
	now := r.now()

	if existing == nil {
		holding := &models.Holding{
			ID:                uuid.New().String(),
			PlatformAccountID: platformAccountID,
			Symbol:            rec.Symbol,
			Exchange:          rec.Exchange,
			AssetType:         rec.AssetType,
			Quantity:          rec.Quantity,
			AveragePrice:      rec.AveragePrice,
			CurrentPrice:      rec.CurrentPrice,
			ISIN:              optionalString(rec.ISIN),
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if err := tx.InsertHolding(ctx, holding); err != nil {
			return HoldingDelta{}, nil, err
		}
		return HoldingDelta{Created: true, Holding: holding}, nil, nil
	}

	before := *existing
	merged := *existing
	merged.Quantity, merged.AveragePrice = MergeLots(existing.Quantity, existing.AveragePrice, rec.Quantity, rec.AveragePrice)
	if merged.ISIN == nil {
		merged.ISIN = optionalString(rec.ISIN)
	}
	merged.UpdatedAt = now

	if err := tx.UpdateHolding(ctx, &merged); err != nil {
		return HoldingDelta{}, nil, err
	}

	warning := &models.Warning{
		Kind:      types.WarningDuplicateMerge,
		Symbol:    rec.Symbol,
		Sheet:     rec.Sheet,
		RowNumber: rec.RowNumber,
		Message: fmt.Sprintf("merged into existing %s holding: quantity %s -> %s, average price %s -> %s",
			rec.Symbol, before.Quantity, merged.Quantity,
			before.AveragePrice.StringFixed(2), merged.AveragePrice.StringFixed(2)),
		MergeAudit: &models.MergeAudit{
			OldQuantity:     before.Quantity,
			NewQuantity:     merged.Quantity,
			OldAveragePrice: before.AveragePrice,
			NewAveragePrice: merged.AveragePrice,
		},
	}
	return HoldingDelta{Holding: &merged, Previous: &before}, warning, nil
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
