package service

import (
	"context"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portfolio-importer/internal/classify"
	"github.com/portfolio-importer/internal/layout"
	"github.com/portfolio-importer/internal/models"
	"github.com/portfolio-importer/internal/normalize"
	"github.com/portfolio-importer/internal/refdata"
	"github.com/portfolio-importer/internal/storage"
	"github.com/portfolio-importer/internal/types"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func record(symbol, qty, avg string, row int) models.CanonicalRecord {
	return models.CanonicalRecord{
		Symbol:       symbol,
		Exchange:     types.ExchangeNSE,
		Quantity:     dec(qty),
		AveragePrice: dec(avg),
		AssetType:    types.AssetStock,
		Sheet:        "holdings",
		RowNumber:    row,
	}
}

// reconcileOnce runs one record through the reconciler in its own transaction
func reconcileOnce(t *testing.T, repo *mockHoldingRepo, rec models.CanonicalRecord) (HoldingDelta, *models.Warning) {
	t.Helper()
	r := NewReconciler()
	var (
		delta   HoldingDelta
		warning *models.Warning
	)
	err := repo.WithAccountLock(context.Background(), "acct-1", func(session storage.AccountSession) error {
		return session.RunInTx(context.Background(), func(tx storage.HoldingTx) error {
			var err error
			delta, warning, err = r.Reconcile(context.Background(), tx, rec, "acct-1")
			return err
		})
	})
	require.NoError(t, err)
	return delta, warning
}

func TestMergeLots(t *testing.T) {
	qty, avg := MergeLots(dec("10"), dec("100"), dec("10"), dec("200"))
	assert.True(t, qty.Equal(dec("20")))
	assert.True(t, avg.Equal(dec("150")))

	// zero total keeps the first lot's average instead of dividing by zero
	qty, avg = MergeLots(dec("5"), dec("42"), dec("-5"), dec("10"))
	assert.True(t, qty.IsZero())
	assert.True(t, avg.Equal(dec("42")))
}

func TestMergeLotsProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	// Property: merged quantity is the sum of both lots
	properties.Property("quantities add", prop.ForAll(
		func(q1, q2, c1, c2 int64) bool {
			qty, _ := MergeLots(decimal.NewFromInt(q1), decimal.New(c1, -2), decimal.NewFromInt(q2), decimal.New(c2, -2))
			return qty.Equal(decimal.NewFromInt(q1 + q2))
		},
		gen.Int64Range(1, 1_000_000),
		gen.Int64Range(1, 1_000_000),
		gen.Int64Range(0, 10_000_000),
		gen.Int64Range(0, 10_000_000),
	))

	// Property: the weighted average lies between the two lot prices
	properties.Property("average is bounded by the lot prices", prop.ForAll(
		func(q1, q2, c1, c2 int64) bool {
			a1, a2 := decimal.New(c1, -2), decimal.New(c2, -2)
			_, avg := MergeLots(decimal.NewFromInt(q1), a1, decimal.NewFromInt(q2), a2)
			lo, hi := decimal.Min(a1, a2), decimal.Max(a1, a2)
			// division rounds at the last digit
			tolerance := decimal.New(1, -10)
			return avg.GreaterThanOrEqual(lo.Sub(tolerance)) && avg.LessThanOrEqual(hi.Add(tolerance))
		},
		gen.Int64Range(1, 1_000_000),
		gen.Int64Range(1, 1_000_000),
		gen.Int64Range(0, 10_000_000),
		gen.Int64Range(0, 10_000_000),
	))

	// Property: merging a lot at the same price keeps that price
	properties.Property("equal prices are stable", prop.ForAll(
		func(q1, q2, cents int64) bool {
			a := decimal.New(cents, -2)
			_, avg := MergeLots(decimal.NewFromInt(q1), a, decimal.NewFromInt(q2), a)
			return avg.Round(8).Equal(a)
		},
		gen.Int64Range(1, 1_000_000),
		gen.Int64Range(1, 1_000_000),
		gen.Int64Range(0, 10_000_000),
	))

	properties.TestingRun(t)
}

func TestReconciler_CreateThenMerge(t *testing.T) {
	repo := newMockHoldingRepo()

	delta, warning := reconcileOnce(t, repo, record("TCS", "10", "100", 2))
	assert.True(t, delta.Created)
	assert.Nil(t, warning)
	assert.Nil(t, delta.Previous)

	delta, warning = reconcileOnce(t, repo, record("TCS", "10", "200", 3))
	assert.False(t, delta.Created)
	require.NotNil(t, warning)
	assert.Equal(t, types.WarningDuplicateMerge, warning.Kind)
	assert.Equal(t, 3, warning.RowNumber)
	require.NotNil(t, warning.MergeAudit)
	assert.True(t, warning.OldQuantity.Equal(dec("10")))
	assert.True(t, warning.NewQuantity.Equal(dec("20")))
	assert.True(t, warning.OldAveragePrice.Equal(dec("100")))
	assert.True(t, warning.NewAveragePrice.Equal(dec("150")))
	assert.Contains(t, warning.Message, "100.00 -> 150.00")

	h := repo.get("acct-1", "TCS", types.ExchangeNSE)
	require.NotNil(t, h)
	assert.True(t, h.Quantity.Equal(dec("20")))
	assert.True(t, h.AveragePrice.Equal(dec("150")))

	reconcileOnce(t, repo, record("TCS", "10", "200", 4))
	h = repo.get("acct-1", "TCS", types.ExchangeNSE)
	assert.True(t, h.Quantity.Equal(dec("30")))
	assert.Equal(t, "166.67", h.AveragePrice.StringFixed(2))
}

func TestReconciler_MergeKeepsIdentityAndPrice(t *testing.T) {
	repo := newMockHoldingRepo()
	price := dec("2600")
	first := record("RELIANCE", "10", "2500.50", 2)
	first.CurrentPrice = &price
	created, _ := reconcileOnce(t, repo, first)

	second := record("RELIANCE", "5", "2400", 2)
	later := dec("2700")
	second.CurrentPrice = &later
	second.ISIN = "INE002A01018"
	second.AssetType = types.AssetETF
	merged, _ := reconcileOnce(t, repo, second)

	assert.Equal(t, created.Holding.ID, merged.Holding.ID)
	assert.Equal(t, created.Holding.CreatedAt, merged.Holding.CreatedAt)
	assert.Equal(t, types.AssetStock, merged.Holding.AssetType)
	require.NotNil(t, merged.Holding.CurrentPrice)
	assert.True(t, merged.Holding.CurrentPrice.Equal(price))
	require.NotNil(t, merged.Holding.ISIN)
	assert.Equal(t, "INE002A01018", *merged.Holding.ISIN)
}

func TestReconciler_ExchangeIsPartOfIdentity(t *testing.T) {
	repo := newMockHoldingRepo()
	reconcileOnce(t, repo, record("ITC", "5", "400", 2))

	bse := record("ITC", "5", "410", 3)
	bse.Exchange = types.ExchangeBSE
	delta, warning := reconcileOnce(t, repo, bse)
	assert.True(t, delta.Created)
	assert.Nil(t, warning)

	holdings, err := repo.ListByAccount(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Len(t, holdings, 2)
}

func TestReconciler_RoundTripProperty(t *testing.T) {
	tables := refdata.Default()
	detected := layout.DetectedLayout{Kind: types.LayoutBrokerConsoleNew}
	cols := layout.ColumnMap{layout.FieldSymbol: 0, layout.FieldQuantity: 1, layout.FieldAveragePrice: 2}
	classifier := classify.NewClassifier(tables)
	properties := gopter.NewProperties(nil)

	// Property: a complete row imported into an empty account yields exactly
	// one holding carrying the row's values and no warnings
	properties.Property("complete row round trips", prop.ForAll(
		func(symbol string, qty int64, cents int64) bool {
			n := normalize.NewRowNormalizer(tables, "holdings", detected)
			row := []string{symbol, decimal.NewFromInt(qty).String(), decimal.New(cents, -2).String()}
			rec, warnings, err := n.Normalize(row, cols, 1)
			if err != nil || len(warnings) > 0 {
				return false
			}
			rec, warning := classifier.Apply(rec, classify.SheetHint{})
			if warning != nil {
				return false
			}

			repo := newMockHoldingRepo()
			delta, merge := reconcileOnce(t, repo, rec)
			holdings, _ := repo.ListByAccount(context.Background(), "acct-1")
			return delta.Created && merge == nil && len(holdings) == 1 &&
				holdings[0].Symbol == rec.Symbol &&
				holdings[0].Quantity.Equal(decimal.NewFromInt(qty)) &&
				holdings[0].AveragePrice.Equal(decimal.New(cents, -2))
		},
		gen.RegexMatch(`[B-D][A-Z]{4,8}`),
		gen.Int64Range(1, 100_000),
		gen.Int64Range(0, 100_000_000),
	))

	properties.TestingRun(t)
}
