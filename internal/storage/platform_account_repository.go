package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	apperrors "github.com/portfolio-importer/internal/errors"
	"github.com/portfolio-importer/internal/models"
)

// PlatformAccountRepository handles platform account persistence
type PlatformAccountRepository struct {
	db *PostgresDB
}

// NewPlatformAccountRepository creates a new platform account repository
func NewPlatformAccountRepository(db *PostgresDB) *PlatformAccountRepository {
	return &PlatformAccountRepository{db: db}
}

// Create creates a new platform account
func (r *PlatformAccountRepository) Create(ctx context.Context, account *models.PlatformAccount) error {
	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO platform_accounts (id, user_id, platform, client_id, nickname, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.Pool().Exec(ctx, query,
		account.ID,
		account.UserID,
		account.Platform,
		account.ClientID,
		account.Nickname,
		account.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create platform account: %w", err)
	}

	return nil
}

// GetByID retrieves a platform account by ID
func (r *PlatformAccountRepository) GetByID(ctx context.Context, id string) (*models.PlatformAccount, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperrors.NewNotFoundError("platform account", id)
	}

	query := `
		SELECT id, user_id, platform, client_id, nickname, created_at
		FROM platform_accounts
		WHERE id = $1
	`

	var account models.PlatformAccount
	err := r.db.Pool().QueryRow(ctx, query, id).Scan(
		&account.ID,
		&account.UserID,
		&account.Platform,
		&account.ClientID,
		&account.Nickname,
		&account.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("platform account", id)
		}
		return nil, fmt.Errorf("failed to get platform account: %w", err)
	}

	return &account, nil
}

// ListByUser returns a user's platform accounts
func (r *PlatformAccountRepository) ListByUser(ctx context.Context, userID string) ([]*models.PlatformAccount, error) {
	query := `
		SELECT id, user_id, platform, client_id, nickname, created_at
		FROM platform_accounts
		WHERE user_id = $1
		ORDER BY created_at
	`

	rows, err := r.db.Pool().Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query platform accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*models.PlatformAccount
	for rows.Next() {
		var account models.PlatformAccount
		if err := rows.Scan(
			&account.ID,
			&account.UserID,
			&account.Platform,
			&account.ClientID,
			&account.Nickname,
			&account.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan platform account row: %w", err)
		}
		accounts = append(accounts, &account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating platform accounts: %w", err)
	}

	return accounts, nil
}
