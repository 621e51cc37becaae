package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/portfolio-importer/internal/models"
	"github.com/portfolio-importer/internal/types"
)

// HoldingTx exposes the holding operations available inside one row transaction
type HoldingTx interface {
	// GetHoldingForUpdate returns the holding with the key locked for the rest
	// of the transaction, or nil when none exists
	GetHoldingForUpdate(ctx context.Context, key models.HoldingKey) (*models.Holding, error)
	InsertHolding(ctx context.Context, holding *models.Holding) error
	UpdateHolding(ctx context.Context, holding *models.Holding) error
}

// AccountSession runs transactions while a platform account lock is held
type AccountSession interface {
	RunInTx(ctx context.Context, fn func(tx HoldingTx) error) error
}

// HoldingRepository handles holding persistence
type HoldingRepository struct {
	db *PostgresDB
}

// NewHoldingRepository creates a new holding repository
func NewHoldingRepository(db *PostgresDB) *HoldingRepository {
	return &HoldingRepository{db: db}
}

const holdingColumns = `id, platform_account_id, symbol, exchange, asset_type,
	quantity::text, average_price::text, current_price::text, isin, created_at, updated_at`

// WithAccountLock pins one pooled connection, takes the session advisory lock
// for the platform account and runs fn. Imports for the same account queue on
// the lock; imports for other accounts proceed in parallel.
func (r *HoldingRepository) WithAccountLock(ctx context.Context, platformAccountID string, fn func(session AccountSession) error) error {
	conn, err := r.db.Pool().Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock(hashtextextended($1::text, 0))`, platformAccountID); err != nil {
		return fmt.Errorf("failed to lock platform account %s: %w", platformAccountID, err)
	}
	defer func() {
		// A cancelled request context must still release the lock
		unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := conn.Exec(unlockCtx, `SELECT pg_advisory_unlock(hashtextextended($1::text, 0))`, platformAccountID); err != nil {
			// Closing the session drops every lock it holds
			_ = conn.Conn().Close(unlockCtx)
		}
	}()

	return fn(&accountSession{conn: conn})
}

type accountSession struct {
	conn *pgxpool.Conn
}

func (s *accountSession) RunInTx(ctx context.Context, fn func(tx HoldingTx) error) error {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx) // nolint:errcheck // no-op after commit
	}()

	if err := fn(&holdingTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type holdingTx struct {
	tx pgx.Tx
}

func (t *holdingTx) GetHoldingForUpdate(ctx context.Context, key models.HoldingKey) (*models.Holding, error) {
	query := `
		SELECT ` + holdingColumns + `
		FROM holdings
		WHERE platform_account_id = $1 AND symbol = $2 AND exchange = $3
		FOR UPDATE
	`

	holding, err := scanHolding(t.tx.QueryRow(ctx, query, key.PlatformAccountID, key.Symbol, key.Exchange))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get holding %s/%s: %w", key.Symbol, key.Exchange, err)
	}
	return holding, nil
}

func (t *holdingTx) InsertHolding(ctx context.Context, h *models.Holding) error {
	query := `
		INSERT INTO holdings (
			id, platform_account_id, symbol, exchange, asset_type,
			quantity, average_price, current_price, isin, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6::numeric, $7::numeric, $8::numeric, $9, $10, $11)
	`

	_, err := t.tx.Exec(ctx, query,
		h.ID,
		h.PlatformAccountID,
		h.Symbol,
		h.Exchange,
		string(h.AssetType),
		h.Quantity.String(),
		h.AveragePrice.String(),
		decimalOrNil(h.CurrentPrice),
		h.ISIN,
		h.CreatedAt,
		h.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert holding %s: %w", h.Symbol, err)
	}
	return nil
}

func (t *holdingTx) UpdateHolding(ctx context.Context, h *models.Holding) error {
	query := `
		UPDATE holdings
		SET quantity = $2::numeric, average_price = $3::numeric, isin = $4, updated_at = $5
		WHERE id = $1
	`

	tag, err := t.tx.Exec(ctx, query, h.ID, h.Quantity.String(), h.AveragePrice.String(), h.ISIN, h.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update holding %s: %w", h.Symbol, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("holding %s disappeared during update", h.ID)
	}
	return nil
}

// ListByAccount returns the account's holdings ordered by symbol
func (r *HoldingRepository) ListByAccount(ctx context.Context, platformAccountID string) ([]*models.Holding, error) {
	query := `
		SELECT ` + holdingColumns + `
		FROM holdings
		WHERE platform_account_id = $1
		ORDER BY symbol, exchange
	`

	rows, err := r.db.Pool().Query(ctx, query, platformAccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query holdings: %w", err)
	}
	defer rows.Close()

	var holdings []*models.Holding
	for rows.Next() {
		holding, err := scanHolding(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan holding row: %w", err)
		}
		holdings = append(holdings, holding)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating holdings: %w", err)
	}

	return holdings, nil
}

func scanHolding(row pgx.Row) (*models.Holding, error) {
	var (
		h                 models.Holding
		assetType         string
		quantity, average string
		currentPrice      *string
	)
	if err := row.Scan(
		&h.ID,
		&h.PlatformAccountID,
		&h.Symbol,
		&h.Exchange,
		&assetType,
		&quantity,
		&average,
		&currentPrice,
		&h.ISIN,
		&h.CreatedAt,
		&h.UpdatedAt,
	); err != nil {
		return nil, err
	}

	var err error
	h.AssetType = types.AssetType(assetType)
	if h.Quantity, err = decimal.NewFromString(quantity); err != nil {
		return nil, fmt.Errorf("invalid quantity %q: %w", quantity, err)
	}
	if h.AveragePrice, err = decimal.NewFromString(average); err != nil {
		return nil, fmt.Errorf("invalid average price %q: %w", average, err)
	}
	if currentPrice != nil {
		cp, err := decimal.NewFromString(*currentPrice)
		if err != nil {
			return nil, fmt.Errorf("invalid current price %q: %w", *currentPrice, err)
		}
		h.CurrentPrice = &cp
	}
	return &h, nil
}

func decimalOrNil(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}
