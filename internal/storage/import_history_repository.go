package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/portfolio-importer/internal/models"
	"github.com/portfolio-importer/internal/types"
)

// ImportHistoryRepository handles the append-only import audit log
type ImportHistoryRepository struct {
	db *PostgresDB
}

// NewImportHistoryRepository creates a new import history repository
func NewImportHistoryRepository(db *PostgresDB) *ImportHistoryRepository {
	return &ImportHistoryRepository{db: db}
}

// Create appends one history record
func (r *ImportHistoryRepository) Create(ctx context.Context, rec *models.ImportHistoryRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}

	warnings := rec.Warnings
	if warnings == nil {
		warnings = []models.Warning{}
	}
	warningsJSON, err := json.Marshal(warnings)
	if err != nil {
		return fmt.Errorf("failed to marshal warnings: %w", err)
	}

	query := `
		INSERT INTO import_history (
			id, platform_account_id, file_name, file_kind, upload_kind, file_sha256, status,
			rows_seen, holdings_created, holdings_updated, warnings_emitted, warnings,
			error_message, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err = r.db.Pool().Exec(ctx, query,
		rec.ID,
		rec.PlatformAccountID,
		rec.FileName,
		string(rec.FileKind),
		string(rec.UploadKind),
		rec.FileSHA256,
		string(rec.Status),
		rec.RowsSeen,
		rec.HoldingsCreated,
		rec.HoldingsUpdated,
		rec.WarningsEmitted,
		warningsJSON,
		rec.ErrorMessage,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create import history: %w", err)
	}

	return nil
}

// ListByAccount returns up to limit records for the account, newest first
func (r *ImportHistoryRepository) ListByAccount(ctx context.Context, platformAccountID string, limit int) ([]*models.ImportHistoryRecord, error) {
	query := `
		SELECT id, platform_account_id, file_name, file_kind, upload_kind, file_sha256, status,
			rows_seen, holdings_created, holdings_updated, warnings_emitted, warnings,
			error_message, created_at
		FROM import_history
		WHERE platform_account_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2
	`

	rows, err := r.db.Pool().Query(ctx, query, platformAccountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query import history: %w", err)
	}
	defer rows.Close()

	var records []*models.ImportHistoryRecord
	for rows.Next() {
		var (
			rec                          models.ImportHistoryRecord
			fileKind, uploadKind, status string
			warningsJSON                 []byte
		)
		if err := rows.Scan(
			&rec.ID,
			&rec.PlatformAccountID,
			&rec.FileName,
			&fileKind,
			&uploadKind,
			&rec.FileSHA256,
			&status,
			&rec.RowsSeen,
			&rec.HoldingsCreated,
			&rec.HoldingsUpdated,
			&rec.WarningsEmitted,
			&warningsJSON,
			&rec.ErrorMessage,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan import history row: %w", err)
		}

		rec.FileKind = types.FileKind(fileKind)
		rec.UploadKind = types.UploadKind(uploadKind)
		rec.Status = types.ImportStatus(status)
		if len(warningsJSON) > 0 {
			if err := json.Unmarshal(warningsJSON, &rec.Warnings); err != nil {
				return nil, fmt.Errorf("failed to unmarshal warnings: %w", err)
			}
		}
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating import history: %w", err)
	}

	return records, nil
}
