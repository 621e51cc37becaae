package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/portfolio-importer/internal/models"
	"github.com/portfolio-importer/internal/types"
)

// TransactionRepository handles tradebook transaction persistence
type TransactionRepository struct {
	db *PostgresDB
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *PostgresDB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// BatchInsert writes all transactions in one database transaction. Either every row is stored or none is.
func (r *TransactionRepository) BatchInsert(ctx context.Context, transactions []*models.Transaction) error {
	if len(transactions) == 0 {
		return nil
	}

	query := `
		INSERT INTO transactions (
			id, platform_account_id, import_id, symbol, exchange, trade_type,
			quantity, price, trade_date, order_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8::numeric, $9, $10, $11)
	`

	batch := &pgx.Batch{}
	for _, t := range transactions {
		batch.Queue(query,
			t.ID,
			t.PlatformAccountID,
			t.ImportID,
			t.Symbol,
			t.Exchange,
			string(t.TradeType),
			t.Quantity.String(),
			t.Price.String(),
			t.TradeDate,
			t.OrderID,
			t.CreatedAt,
		)
	}

	return pgx.BeginFunc(ctx, r.db.Pool(), func(tx pgx.Tx) error {
		results := tx.SendBatch(ctx, batch)
		for i := range transactions {
			if _, err := results.Exec(); err != nil {
				_ = results.Close()
				return fmt.Errorf("failed to insert transaction %d (%s): %w", i, transactions[i].Symbol, err)
			}
		}
		if err := results.Close(); err != nil {
			return fmt.Errorf("failed to send batch: %w", err)
		}
		return nil
	})
}

// TransactionFilters narrows a transaction listing
type TransactionFilters struct {
	Symbol    string
	TradeType *types.TradeType
	DateFrom  *time.Time
	DateTo    *time.Time
	Limit     int
	Offset    int
}

// ListByAccount returns the account's transactions, newest trade first
func (r *TransactionRepository) ListByAccount(ctx context.Context, platformAccountID string, filters *TransactionFilters) ([]*models.Transaction, error) {
	query := `
		SELECT id, platform_account_id, import_id, symbol, exchange, trade_type,
			quantity::text, price::text, trade_date, order_id, created_at
		FROM transactions
		WHERE platform_account_id = $1
	`
	args := []any{platformAccountID}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	// Apply filters
	if filters != nil {
		if filters.Symbol != "" {
			query += " AND symbol = " + arg(strings.ToUpper(filters.Symbol))
		}
		if filters.TradeType != nil {
			query += " AND trade_type = " + arg(string(*filters.TradeType))
		}
		if filters.DateFrom != nil {
			query += " AND trade_date >= " + arg(*filters.DateFrom)
		}
		if filters.DateTo != nil {
			query += " AND trade_date <= " + arg(*filters.DateTo)
		}
	}

	query += " ORDER BY trade_date DESC, created_at DESC"

	if filters != nil && filters.Limit > 0 {
		query += " LIMIT " + arg(filters.Limit)
		if filters.Offset > 0 {
			query += " OFFSET " + arg(filters.Offset)
		}
	}

	rows, err := r.db.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []*models.Transaction
	for rows.Next() {
		var (
			t               models.Transaction
			tradeType       string
			quantity, price string
		)
		if err := rows.Scan(
			&t.ID,
			&t.PlatformAccountID,
			&t.ImportID,
			&t.Symbol,
			&t.Exchange,
			&tradeType,
			&quantity,
			&price,
			&t.TradeDate,
			&t.OrderID,
			&t.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transaction row: %w", err)
		}

		t.TradeType = types.TradeType(tradeType)
		if t.Quantity, err = decimal.NewFromString(quantity); err != nil {
			return nil, fmt.Errorf("invalid quantity %q: %w", quantity, err)
		}
		if t.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("invalid price %q: %w", price, err)
		}
		transactions = append(transactions, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return transactions, nil
}
