package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portfolio-importer/internal/models"
	"github.com/portfolio-importer/internal/refdata"
	"github.com/portfolio-importer/internal/types"
)

func TestClassifyRuleChain(t *testing.T) {
	c := NewClassifier(refdata.Default())

	tests := []struct {
		name string
		rec  models.CanonicalRecord
		hint SheetHint
		want types.AssetType
	}{
		{"sgb by symbol", models.CanonicalRecord{Symbol: "SGBMAR29"}, SheetHint{}, types.AssetSGB},
		{"sgb by isin", models.CanonicalRecord{Symbol: "GOLDBOND", ISIN: "IN0020230077"}, SheetHint{}, types.AssetSGB},
		{"sgb beats fund sheet", models.CanonicalRecord{Symbol: "SGBAUG28"}, SheetHint{FundSheet: true}, types.AssetSGB},
		{"reit by listed symbol", models.CanonicalRecord{Symbol: "EMBASSY"}, SheetHint{}, types.AssetREIT},
		{"reit by suffix", models.CanonicalRecord{Symbol: "NXST-RR"}, SheetHint{}, types.AssetREIT},
		{"fund sheet beats etf table", models.CanonicalRecord{Symbol: "NIFTYBEES"}, SheetHint{FundSheet: true}, types.AssetMutualFund},
		{"fund sheet any symbol", models.CanonicalRecord{Symbol: "AXIS BLUECHIP FUND"}, SheetHint{FundSheet: true}, types.AssetMutualFund},
		{"etf table", models.CanonicalRecord{Symbol: "GOLDBEES"}, SheetHint{}, types.AssetETF},
		{"etf by isin issuer", models.CanonicalRecord{Symbol: "NEWETFX", ISIN: "INF204KB15I9"}, SheetHint{}, types.AssetETF},
		{"default stock", models.CanonicalRecord{Symbol: "RELIANCE", ISIN: "INE002A01018"}, SheetHint{}, types.AssetStock},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.rec, tt.hint))
		})
	}
}

func TestREITPrecedesETF(t *testing.T) {
	tables, err := refdata.Parse([]byte(`
etf:
  symbols: [PROPBEES-RR]
reit:
  symbol_suffixes: ["-RR"]
`))
	require.NoError(t, err)
	c := NewClassifier(tables)

	rec := models.CanonicalRecord{Symbol: "PROPBEES-RR"}
	require.True(t, tables.IsETF(rec.Symbol, ""))
	assert.Equal(t, types.AssetREIT, c.Classify(rec, SheetHint{}))
}

func TestApplyUnclassifiedWarning(t *testing.T) {
	c := NewClassifier(refdata.Default())

	rec, warning := c.Apply(models.CanonicalRecord{Symbol: "ODDFUND", ISIN: "INF179K01XZ1", RowNumber: 7, AssetType: types.AssetUnknown}, SheetHint{})
	assert.Equal(t, types.AssetStock, rec.AssetType)
	require.NotNil(t, warning)
	assert.Equal(t, types.WarningUnclassifiedAsset, warning.Kind)
	assert.Equal(t, 7, warning.RowNumber)

	rec, warning = c.Apply(models.CanonicalRecord{Symbol: "TCS", ISIN: "INE467B01029"}, SheetHint{})
	assert.Equal(t, types.AssetStock, rec.AssetType)
	assert.Nil(t, warning)

	rec, warning = c.Apply(models.CanonicalRecord{Symbol: "ODDFUND", ISIN: "INF179K01XZ1"}, SheetHint{FundSheet: true})
	assert.Equal(t, types.AssetMutualFund, rec.AssetType)
	assert.Nil(t, warning)
}
