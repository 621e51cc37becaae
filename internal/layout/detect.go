package layout

import (
	"fmt"
	"regexp"
	"strings"

	apperrors "github.com/portfolio-importer/internal/errors"
	"github.com/portfolio-importer/internal/numeric"
	"github.com/portfolio-importer/internal/sheet"
	"github.com/portfolio-importer/internal/types"
)

const (
	DefaultScanRows   = 20
	DefaultMatchRatio = 0.6

	// data rows sampled when judging whether a generic header row looks tabular
	tabularSample = 5
)

var (
	fundSheetName = regexp.MustCompile(`(?i)\b(mutual|funds?|mf)\b`)
	// scheme names as brokers print them, e.g. "AXIS BLUECHIP FUND - DIRECT PLAN"
	fundSymbol = regexp.MustCompile(`(?i)\b(fund|scheme|elss|direct plan|regular plan)\b`)
)

// Detector locates the header row of a sheet and identifies its layout
type Detector struct {
	scanRows int
	ratio    float64
}

// NewDetector creates a detector scanning the first scanRows rows and
// accepting a known layout when ratio of its tokens are present
func NewDetector(scanRows int, ratio float64) *Detector {
	if scanRows <= 0 {
		scanRows = DefaultScanRows
	}
	if ratio <= 0 || ratio > 1 {
		ratio = DefaultMatchRatio
	}
	return &Detector{scanRows: scanRows, ratio: ratio}
}

// Detect classifies the sheet. Known layouts are tried row by row from the
// top; the first row clearing the threshold is the header. Holdings uploads
// fall back to a generic layout when a row looks tabular. Otherwise the
// sheet fails with an unrecognized layout error.
func (d *Detector) Detect(s sheet.RawSheet, upload types.UploadKind) (DetectedLayout, error) {
	limit := d.scanRows
	if limit > len(s.Rows) {
		limit = len(s.Rows)
	}

	for i := 0; i < limit; i++ {
		row := s.Rows[i]
		if sheet.IsBlankRow(row) {
			continue
		}
		def, matched, ok := d.bestKnown(row, upload)
		if !ok {
			continue
		}

		confidence := ConfidenceMedium
		if matched == len(def.required) {
			confidence = ConfidenceHigh
		}
		detected := DetectedLayout{
			Kind:           def.kind,
			HeaderRowIndex: i,
			Confidence:     confidence,
			Notes:          []string{fmt.Sprintf("matched %d of %d header tokens", matched, len(def.required))},
		}
		if upload == types.UploadHoldings {
			applyFundHints(&detected, s)
		}
		return detected, nil
	}

	if upload == types.UploadHoldings {
		for i := 0; i < limit; i++ {
			if !looksTabular(s.Rows, i) {
				continue
			}
			detected := DetectedLayout{
				Kind:           types.LayoutGenericHoldings,
				HeaderRowIndex: i,
				Confidence:     ConfidenceLow,
				Notes:          []string{"no known layout matched; using generic column matching"},
			}
			applyFundHints(&detected, s)
			if detected.FundSheet {
				detected.Kind = types.LayoutGenericMutualFund
			}
			return detected, nil
		}
	}

	return DetectedLayout{}, apperrors.NewUnrecognizedLayoutError(s.Name, limit)
}

// bestKnown scores the row against every known layout for the upload kind.
// The highest score wins; ties go to the layout declared first.
func (d *Detector) bestKnown(row []string, upload types.UploadKind) (definition, int, bool) {
	tokens := make(map[string]struct{}, len(row))
	for _, cell := range row {
		if t := normalizeToken(cell); t != "" {
			tokens[t] = struct{}{}
		}
	}

	var (
		best      definition
		bestCount int
		bestScore float64
		found     bool
	)
	for _, def := range definitions {
		if def.upload != upload {
			continue
		}
		count := 0
		for _, alternatives := range def.required {
			for _, alt := range alternatives {
				if _, ok := tokens[alt]; ok {
					count++
					break
				}
			}
		}
		score := float64(count) / float64(len(def.required))
		if score >= d.ratio && score > bestScore {
			best, bestCount, bestScore, found = def, count, score, true
		}
	}
	return best, bestCount, found
}

// looksTabular reports whether row i can serve as a generic header: two or
// more text labels including a symbol column, followed by rows of a
// consistent width with at least one mostly numeric column
func looksTabular(rows [][]string, i int) bool {
	header := rows[i]
	width := rowWidth(header)
	labels := 0
	for _, cell := range header {
		cell = strings.TrimSpace(cell)
		if cell == "" {
			continue
		}
		if numeric.LooksNumeric(cell) {
			return false
		}
		labels++
	}
	if labels < 2 || !MapColumns(DetectedLayout{Kind: types.LayoutGenericHoldings}, header).Has(FieldSymbol) {
		return false
	}

	var sample [][]string
	for r := i + 1; r < len(rows) && len(sample) < tabularSample; r++ {
		if sheet.IsBlankRow(rows[r]) {
			continue
		}
		w := rowWidth(rows[r])
		if w < 2 || w > width+1 {
			return false
		}
		sample = append(sample, rows[r])
	}
	if len(sample) == 0 {
		return false
	}

	for c := 0; c < width; c++ {
		numericRows := 0
		for _, row := range sample {
			if c < len(row) && numeric.LooksNumeric(row[c]) {
				numericRows++
			}
		}
		if numericRows*2 >= len(sample) {
			return true
		}
	}
	return false
}

// rowWidth is the index of the last non-empty cell plus one
func rowWidth(row []string) int {
	for c := len(row) - 1; c >= 0; c-- {
		if strings.TrimSpace(row[c]) != "" {
			return c + 1
		}
	}
	return 0
}

// applyFundHints marks a holdings sheet as fund data when its header has a
// fund column, its name mentions funds, or most sampled symbols read like
// scheme names. The first hint that fires is recorded in the notes.
func applyFundHints(detected *DetectedLayout, s sheet.RawSheet) {
	header := s.Rows[detected.HeaderRowIndex]
	switch {
	case rowHasFundColumn(header):
		detected.FundSheet = true
	case fundSheetName.MatchString(s.Name):
		detected.FundSheet = true
		detected.Notes = append(detected.Notes, fmt.Sprintf("sheet name %q suggests fund holdings", s.Name))
	case symbolsLookLikeSchemes(s, detected.HeaderRowIndex, MapColumns(*detected, header)):
		detected.FundSheet = true
		detected.Notes = append(detected.Notes, "symbols read like fund scheme names")
	}
}

// symbolsLookLikeSchemes samples the first data rows and reports whether at
// least half of the symbols carry fund wording
func symbolsLookLikeSchemes(s sheet.RawSheet, headerRow int, cols ColumnMap) bool {
	c, ok := cols[FieldSymbol]
	if !ok {
		return false
	}
	seen, matches := 0, 0
	for r := headerRow + 1; r < len(s.Rows) && seen < tabularSample; r++ {
		symbol := strings.TrimSpace(s.Cell(r, c))
		if symbol == "" {
			continue
		}
		seen++
		if fundSymbol.MatchString(symbol) {
			matches++
		}
	}
	return seen > 0 && matches*2 >= seen
}

func rowHasFundColumn(row []string) bool {
	for _, cell := range row {
		if isFundHeader(headerWords(cell)) {
			return true
		}
	}
	return false
}
