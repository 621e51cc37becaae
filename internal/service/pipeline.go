package service

import (
	"github.com/portfolio-importer/internal/classify"
	apperrors "github.com/portfolio-importer/internal/errors"
	"github.com/portfolio-importer/internal/layout"
	"github.com/portfolio-importer/internal/models"
	"github.com/portfolio-importer/internal/normalize"
	"github.com/portfolio-importer/internal/refdata"
	"github.com/portfolio-importer/internal/sheet"
	"github.com/portfolio-importer/internal/types"
)

// Pipeline runs extraction, layout detection, column mapping, normalization
// and classification. It never touches storage, so a whole file is planned
// before any holding changes.
type Pipeline struct {
	tables     *refdata.Tables
	detector   *layout.Detector
	classifier *classify.Classifier
}

// NewPipeline creates a pipeline over the given reference tables
func NewPipeline(tables *refdata.Tables, scanRows int, matchRatio float64) *Pipeline {
	return &Pipeline{
		tables:     tables,
		detector:   layout.NewDetector(scanRows, matchRatio),
		classifier: classify.NewClassifier(tables),
	}
}

// PlannedRecord is a classified record with the warnings produced while building it
type PlannedRecord struct {
	Record   models.CanonicalRecord
	Warnings []models.Warning
}

// SheetPlan is the detection outcome for one sheet
type SheetPlan struct {
	Name       string
	Recognized bool
	Note       string // why an unrecognized sheet was skipped
	Layout     layout.DetectedLayout
	Columns    layout.ColumnMap

	Records       []PlannedRecord      // holdings uploads
	Trades        []models.TradeRecord // transactions uploads
	TradeWarnings []models.Warning

	RowsSeen        int
	Skipped         int
	FirstSkippedRow int // 1-based, 0 when nothing was skipped
}

func (sp *SheetPlan) skip(rowIndex int) {
	sp.Skipped++
	if sp.FirstSkippedRow == 0 {
		sp.FirstSkippedRow = rowIndex + 1
	}
}

// Plan is the detection outcome for a whole file
type Plan struct {
	FileKind   types.FileKind
	UploadKind types.UploadKind
	Sheets     []*SheetPlan
}

// Recognized returns the sheets that will be imported, in file order
func (p *Plan) Recognized() []*SheetPlan {
	var out []*SheetPlan
	for _, sp := range p.Sheets {
		if sp.Recognized {
			out = append(out, sp)
		}
	}
	return out
}

// Plan extracts and plans every sheet of the file. Sheets without a
// recognizable layout are kept as skipped entries; the file is rejected with
// an unrecognized layout error only when no sheet is recognized.
func (p *Pipeline) Plan(fileName string, kind types.FileKind, upload types.UploadKind, data []byte) (*Plan, error) {
	sheets, err := sheet.Extract(kind, fileName, data)
	if err != nil {
		return nil, err
	}

	plan := &Plan{FileKind: kind, UploadKind: upload}
	var firstErr error
	for _, s := range sheets {
		sp, err := p.planSheet(s, kind, upload)
		if err != nil {
			if !apperrors.IsCode(err, apperrors.CodeUnrecognizedLayout) {
				return nil, err
			}
			if firstErr == nil {
				firstErr = err
			}
			plan.Sheets = append(plan.Sheets, &SheetPlan{Name: s.Name, Note: apperrors.Categorize(err).Message})
			continue
		}
		plan.Sheets = append(plan.Sheets, sp)
	}

	if len(plan.Recognized()) == 0 {
		return nil, firstErr
	}
	return plan, nil
}

func (p *Pipeline) planSheet(s sheet.RawSheet, kind types.FileKind, upload types.UploadKind) (*SheetPlan, error) {
	detected, err := p.detector.Detect(s, upload)
	if err != nil && kind == types.FilePDF && upload == types.UploadHoldings {
		if recovered, ok := sheet.RecoverStatement(s); ok {
			s = recovered
			if detected, err = p.detector.Detect(s, upload); err == nil {
				detected.Confidence = layout.ConfidenceLow
				detected.Notes = append(detected.Notes, "rows recovered from statement text")
			}
		}
	}
	if err != nil {
		return nil, err
	}

	sp := &SheetPlan{
		Name:       s.Name,
		Recognized: true,
		Layout:     detected,
		Columns:    layout.MapColumns(detected, s.Rows[detected.HeaderRowIndex]),
	}
	normalizer := normalize.NewRowNormalizer(p.tables, s.Name, detected)
	hint := classify.SheetHint{FundSheet: detected.FundSheet}

	for r := detected.HeaderRowIndex + 1; r < len(s.Rows); r++ {
		row := s.Rows[r]
		if sheet.IsBlankRow(row) {
			continue
		}
		sp.RowsSeen++

		if upload == types.UploadTransactions {
			trade, warning := normalizer.NormalizeTrade(row, sp.Columns, r)
			if warning != nil {
				sp.skip(r)
				sp.TradeWarnings = append(sp.TradeWarnings, *warning)
				continue
			}
			sp.Trades = append(sp.Trades, trade)
			continue
		}

		rec, warnings, err := normalizer.Normalize(row, sp.Columns, r)
		if err != nil {
			// no identity key or nothing to hold; counted and summarized per sheet
			sp.skip(r)
			continue
		}
		rec, warning := p.classifier.Apply(rec, hint)
		if warning != nil {
			warnings = append(warnings, *warning)
		}
		sp.Records = append(sp.Records, PlannedRecord{Record: rec, Warnings: warnings})
	}

	return sp, nil
}
