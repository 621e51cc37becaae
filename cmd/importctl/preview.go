package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"

	"github.com/portfolio-importer/internal/models"
	"github.com/portfolio-importer/internal/service"
	"github.com/portfolio-importer/internal/types"
)

type previewCmd struct {
	pipelineFlags
	warningsOnly bool
}

func (*previewCmd) Name() string { return "preview" }
func (*previewCmd) Synopsis() string {
	return "print the classified records a file would import"
}
func (*previewCmd) Usage() string {
	return `importctl preview [-kind holdings|transactions] [-warnings] <file>

  Runs extraction, detection, mapping, normalization and classification and
  prints the canonical records with their warnings as JSON. Reconciliation
  is not run, so duplicate rows appear as separate records.
`
}

func (c *previewCmd) SetFlags(f *flag.FlagSet) {
	c.pipelineFlags.register(f)
	f.BoolVar(&c.warningsOnly, "warnings", false, "Print only the warnings.")
}

type previewRecord struct {
	Symbol       string           `json:"symbol"`
	Exchange     string           `json:"exchange"`
	AssetType    types.AssetType  `json:"asset_type"`
	Quantity     decimal.Decimal  `json:"quantity"`
	AveragePrice decimal.Decimal  `json:"average_price"`
	CurrentPrice *decimal.Decimal `json:"current_price,omitempty"`
	ISIN         string           `json:"isin,omitempty"`
	Row          int              `json:"row"`
}

type previewTrade struct {
	Symbol    string          `json:"symbol"`
	Exchange  string          `json:"exchange"`
	TradeType types.TradeType `json:"trade_type"`
	Quantity  decimal.Decimal `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	TradeDate string          `json:"trade_date"`
	OrderID   string          `json:"order_id,omitempty"`
	Row       int             `json:"row"`
}

type sheetPreview struct {
	Sheet    string           `json:"sheet"`
	Layout   types.LayoutKind `json:"layout,omitempty"`
	Records  []previewRecord  `json:"records,omitempty"`
	Trades   []previewTrade   `json:"trades,omitempty"`
	Warnings []models.Warning `json:"warnings"`
	Skipped  int              `json:"skipped"`
	Note     string           `json:"note,omitempty"`
}

func previewSheet(sp *service.SheetPlan, warningsOnly bool) sheetPreview {
	out := sheetPreview{
		Sheet:    sp.Name,
		Layout:   sp.Layout.Kind,
		Warnings: []models.Warning{},
		Skipped:  sp.Skipped,
		Note:     sp.Note,
	}
	for _, pr := range sp.Records {
		out.Warnings = append(out.Warnings, pr.Warnings...)
		if warningsOnly {
			continue
		}
		rec := pr.Record
		out.Records = append(out.Records, previewRecord{
			Symbol:       rec.Symbol,
			Exchange:     rec.Exchange,
			AssetType:    rec.AssetType,
			Quantity:     rec.Quantity,
			AveragePrice: rec.AveragePrice,
			CurrentPrice: rec.CurrentPrice,
			ISIN:         rec.ISIN,
			Row:          rec.RowNumber,
		})
	}
	out.Warnings = append(out.Warnings, sp.TradeWarnings...)
	if warningsOnly {
		return out
	}
	for _, tr := range sp.Trades {
		out.Trades = append(out.Trades, previewTrade{
			Symbol:    tr.Symbol,
			Exchange:  tr.Exchange,
			TradeType: tr.TradeType,
			Quantity:  tr.Quantity,
			Price:     tr.Price,
			TradeDate: tr.TradeDate.Format(time.DateOnly),
			OrderID:   tr.OrderID,
			Row:       tr.RowNumber,
		})
	}
	return out
}

func (c *previewCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "preview takes exactly one file")
		return subcommands.ExitUsageError
	}

	plan, err := c.plan(f.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	sheets := make([]sheetPreview, 0, len(plan.Sheets))
	for _, sp := range plan.Sheets {
		sheets = append(sheets, previewSheet(sp, c.warningsOnly))
	}
	if err := writeJSON(os.Stdout, map[string]interface{}{
		"file_kind":   plan.FileKind,
		"upload_kind": plan.UploadKind,
		"sheets":      sheets,
	}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
