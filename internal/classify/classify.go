// Package classify assigns asset types to canonical records.
package classify

import (
	"fmt"

	"github.com/portfolio-importer/internal/models"
	"github.com/portfolio-importer/internal/refdata"
	"github.com/portfolio-importer/internal/types"
)

// SheetHint carries sheet level facts that override per-symbol heuristics
type SheetHint struct {
	// FundSheet is set when the sheet is known to hold fund data
	FundSheet bool
}

type rule struct {
	name      string
	assetType types.AssetType
	match     func(t *refdata.Tables, rec models.CanonicalRecord, hint SheetHint) bool
}

// rules are evaluated in order; the first match wins. Sovereign gold bonds and
// REITs have narrow lexical patterns and run before the broader ETF table, and
// a fund sheet is never reclassified by symbol shape.
var rules = []rule{
	{"sgb", types.AssetSGB, func(t *refdata.Tables, rec models.CanonicalRecord, _ SheetHint) bool {
		return t.IsSGB(rec.Symbol, rec.ISIN)
	}},
	{"reit", types.AssetREIT, func(t *refdata.Tables, rec models.CanonicalRecord, _ SheetHint) bool {
		return t.IsREIT(rec.Symbol)
	}},
	{"fund sheet", types.AssetMutualFund, func(_ *refdata.Tables, _ models.CanonicalRecord, hint SheetHint) bool {
		return hint.FundSheet
	}},
	{"etf", types.AssetETF, func(t *refdata.Tables, rec models.CanonicalRecord, _ SheetHint) bool {
		return t.IsETF(rec.Symbol, rec.ISIN)
	}},
}

// Classifier applies the rule chain against a set of reference tables
type Classifier struct {
	tables *refdata.Tables
}

// NewClassifier creates a classifier
func NewClassifier(tables *refdata.Tables) *Classifier {
	return &Classifier{tables: tables}
}

// Classify returns the asset type for the record. Records matching no rule are stocks.
func (c *Classifier) Classify(rec models.CanonicalRecord, hint SheetHint) types.AssetType {
	assetType, _ := c.classify(rec, hint)
	return assetType
}

func (c *Classifier) classify(rec models.CanonicalRecord, hint SheetHint) (types.AssetType, bool) {
	for _, r := range rules {
		if r.match(c.tables, rec, hint) {
			return r.assetType, true
		}
	}
	return types.AssetStock, false
}

// Apply sets the record's asset type. When the record fell through to the
// stock default while carrying a fund ISIN, an unclassified_asset warning is
// returned so the user can correct it.
func (c *Classifier) Apply(rec models.CanonicalRecord, hint SheetHint) (models.CanonicalRecord, *models.Warning) {
	assetType, matched := c.classify(rec, hint)
	rec.AssetType = assetType
	if matched || !c.tables.IsFundISIN(rec.ISIN) {
		return rec, nil
	}
	return rec, &models.Warning{
		Kind:      types.WarningUnclassifiedAsset,
		Symbol:    rec.Symbol,
		Sheet:     rec.Sheet,
		RowNumber: rec.RowNumber,
		Message:   fmt.Sprintf("ISIN %s looks like a fund but no rule matched; imported as %s", rec.ISIN, assetType),
	}
}
