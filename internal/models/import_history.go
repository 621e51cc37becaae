package models

import (
	"time"

	"github.com/portfolio-importer/internal/types"
)

// ImportHistoryRecord is the append-only audit entry written once per imported file
type ImportHistoryRecord struct {
	ID                string             `json:"id" db:"id"`
	PlatformAccountID string             `json:"platform_account_id" db:"platform_account_id"`
	FileName          string             `json:"file_name" db:"file_name"`
	FileKind          types.FileKind     `json:"file_kind" db:"file_kind"`
	UploadKind        types.UploadKind   `json:"upload_kind" db:"upload_kind"`
	FileSHA256        string             `json:"file_sha256" db:"file_sha256"`
	Status            types.ImportStatus `json:"status" db:"status"`
	RowsSeen          int                `json:"rows_seen" db:"rows_seen"`
	HoldingsCreated   int                `json:"holdings_created" db:"holdings_created"`
	HoldingsUpdated   int                `json:"holdings_updated" db:"holdings_updated"`
	WarningsEmitted   int                `json:"warnings_emitted" db:"warnings_emitted"`
	Warnings          []Warning          `json:"warnings,omitempty" db:"warnings"`
	ErrorMessage      *string            `json:"error_message,omitempty" db:"error_message"`
	CreatedAt         time.Time          `json:"created_at" db:"created_at"`
}
