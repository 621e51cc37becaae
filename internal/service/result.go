package service

import (
	"fmt"
	"sort"
	"time"

	apperrors "github.com/portfolio-importer/internal/errors"
	"github.com/portfolio-importer/internal/models"
	"github.com/portfolio-importer/internal/types"
)

// SheetStatus is the outcome of one sheet
type SheetStatus string

const (
	SheetProcessed SheetStatus = "processed"
	SheetSkipped   SheetStatus = "skipped" // no recognizable layout
	SheetAborted   SheetStatus = "aborted" // a persistence error stopped the sheet
)

// SheetSummary holds per-sheet counts
type SheetSummary struct {
	Sheet        string           `json:"sheet"`
	Layout       types.LayoutKind `json:"layout,omitempty"`
	Status       SheetStatus      `json:"status"`
	Imported     int              `json:"imported"`
	Updated      int              `json:"updated"`
	Skipped      int              `json:"skipped"`
	RowsSeen     int              `json:"rows_seen"`
	Transactions int              `json:"transactions,omitempty"`
	Note         string           `json:"note,omitempty"`
	FailedRow    int              `json:"failed_row,omitempty"`
}

// ImportResult is returned for every import that got past file-level validation
type ImportResult struct {
	ImportID          string              `json:"import_id"`
	Status            types.ImportStatus  `json:"status"`
	FileKind          types.FileKind      `json:"file_kind"`
	UploadKind        types.UploadKind    `json:"upload_kind"`
	ImportedCount     int                 `json:"imported_count"`
	UpdatedCount      int                 `json:"updated_count"`
	SkippedCount      int                 `json:"skipped_count"`
	RowsSeen          int                 `json:"rows_seen"`
	TransactionsCount int                 `json:"transactions_count,omitempty"`
	Warnings          []models.Warning    `json:"warnings"`
	SheetSummaries    []SheetSummary      `json:"sheet_summaries,omitempty"`
	ReplayOf          string              `json:"replay_of,omitempty"`
	Error             *types.ServiceError `json:"error,omitempty"`
}

// ResultBuilder accumulates per-sheet outcomes into one ImportResult.
// Sheets are reported in the order they are begun; within a sheet the
// warnings are ordered by row.
type ResultBuilder struct {
	result   *ImportResult
	current  *SheetSummary
	plan     *SheetPlan
	warnings []models.Warning
}

// NewResultBuilder starts a result for one import
func NewResultBuilder(importID string, kind types.FileKind, upload types.UploadKind) *ResultBuilder {
	return &ResultBuilder{
		result: &ImportResult{
			ImportID:   importID,
			Status:     types.ImportSuccess,
			FileKind:   kind,
			UploadKind: upload,
			Warnings:   []models.Warning{},
		},
	}
}

// SkipSheet reports a sheet that had no recognizable layout
func (b *ResultBuilder) SkipSheet(sp *SheetPlan) {
	b.result.SheetSummaries = append(b.result.SheetSummaries, SheetSummary{
		Sheet:  sp.Name,
		Status: SheetSkipped,
		Note:   sp.Note,
	})
}

// BeginSheet starts collecting a recognized sheet
func (b *ResultBuilder) BeginSheet(sp *SheetPlan) {
	b.plan = sp
	b.current = &SheetSummary{
		Sheet:    sp.Name,
		Layout:   sp.Layout.Kind,
		Status:   SheetProcessed,
		Skipped:  sp.Skipped,
		RowsSeen: sp.RowsSeen,
	}
	b.warnings = nil
}

// AddHolding records one persisted record with its planning warnings and
// the reconciler's merge warning, if any
func (b *ResultBuilder) AddHolding(pr PlannedRecord, delta HoldingDelta, merge *models.Warning) {
	if delta.Created {
		b.current.Imported++
	} else {
		b.current.Updated++
	}
	b.warnings = append(b.warnings, pr.Warnings...)
	if merge != nil {
		b.warnings = append(b.warnings, *merge)
	}
}

// AddTrades records the sheet's persisted tradebook rows
func (b *ResultBuilder) AddTrades(n int) {
	b.current.Transactions += n
}

// AbortSheet marks the current sheet as stopped at failedRow.
// The first abort of the import becomes the result's error.
func (b *ResultBuilder) AbortSheet(failedRow int, err error) {
	b.current.Status = SheetAborted
	b.current.FailedRow = failedRow
	b.result.Status = types.ImportPartial
	if b.result.Error == nil {
		b.result.Error = apperrors.Categorize(err).ToServiceError()
	}
}

// EndSheet closes the current sheet: it adds the skip summary and the
// tradebook skip warnings, orders the sheet's warnings by row and folds the
// counts into the file totals
func (b *ResultBuilder) EndSheet() {
	sp, summary := b.plan, b.current
	if sp == nil || summary == nil {
		return
	}

	b.warnings = append(b.warnings, sp.TradeWarnings...)
	if sp.Skipped > 0 && b.result.UploadKind == types.UploadHoldings {
		b.warnings = append(b.warnings, models.Warning{
			Kind:      types.WarningMissingField,
			Sheet:     sp.Name,
			RowNumber: sp.FirstSkippedRow,
			Field:     "symbol",
			Message:   fmt.Sprintf("%d row(s) skipped: no symbol or no positive quantity", sp.Skipped),
		})
	}
	sort.SliceStable(b.warnings, func(i, j int) bool {
		return b.warnings[i].RowNumber < b.warnings[j].RowNumber
	})

	b.result.Warnings = append(b.result.Warnings, b.warnings...)
	b.result.ImportedCount += summary.Imported
	b.result.UpdatedCount += summary.Updated
	b.result.SkippedCount += summary.Skipped
	b.result.RowsSeen += summary.RowsSeen
	b.result.TransactionsCount += summary.Transactions
	b.result.SheetSummaries = append(b.result.SheetSummaries, *summary)

	b.plan, b.current, b.warnings = nil, nil, nil
}

// SetReplayOf marks the import as a replay of an earlier one
func (b *ResultBuilder) SetReplayOf(importID string) {
	b.result.ReplayOf = importID
}

// Build returns the assembled result
func (b *ResultBuilder) Build() *ImportResult {
	return b.result
}

// HistoryRecord builds the single history row for the file, summing all sheets
func (b *ResultBuilder) HistoryRecord(platformAccountID, fileName, fileSHA256 string, createdAt time.Time) *models.ImportHistoryRecord {
	r := b.result
	rec := &models.ImportHistoryRecord{
		ID:                r.ImportID,
		PlatformAccountID: platformAccountID,
		FileName:          fileName,
		FileKind:          r.FileKind,
		UploadKind:        r.UploadKind,
		FileSHA256:        fileSHA256,
		Status:            r.Status,
		RowsSeen:          r.RowsSeen,
		HoldingsCreated:   r.ImportedCount,
		HoldingsUpdated:   r.UpdatedCount,
		WarningsEmitted:   len(r.Warnings),
		Warnings:          r.Warnings,
		CreatedAt:         createdAt,
	}
	if r.Error != nil {
		msg := r.Error.Message
		rec.ErrorMessage = &msg
	}
	return rec
}

// FailedHistoryRecord builds the zero-count history row for a file rejected before persistence
func FailedHistoryRecord(importID, platformAccountID, fileName, fileSHA256 string, kind types.FileKind, upload types.UploadKind, cause error, createdAt time.Time) *models.ImportHistoryRecord {
	msg := apperrors.Categorize(cause).Message
	return &models.ImportHistoryRecord{
		ID:                importID,
		PlatformAccountID: platformAccountID,
		FileName:          fileName,
		FileKind:          kind,
		UploadKind:        upload,
		FileSHA256:        fileSHA256,
		Status:            types.ImportFailed,
		ErrorMessage:      &msg,
		CreatedAt:         createdAt,
	}
}
