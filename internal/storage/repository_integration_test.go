package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/portfolio-importer/internal/errors"
	"github.com/portfolio-importer/internal/models"
	"github.com/portfolio-importer/internal/types"
)

// createTestAccount registers a fresh platform account; its rows cascade away on cleanup
func createTestAccount(t *testing.T, db *PostgresDB) *models.PlatformAccount {
	t.Helper()
	repo := NewPlatformAccountRepository(db)
	account := &models.PlatformAccount{
		UserID:   "user-" + uuid.New().String()[:8],
		Platform: "zerodha",
		ClientID: "YG7227",
	}
	require.NoError(t, repo.Create(testContext(t), account))
	t.Cleanup(func() {
		_, _ = db.Pool().Exec(context.Background(), `DELETE FROM platform_accounts WHERE id = $1`, account.ID)
	})
	return account
}

func TestPlatformAccountRepository_Integration(t *testing.T) {
	db := testPostgres(t)
	repo := NewPlatformAccountRepository(db)
	ctx := testContext(t)
	account := createTestAccount(t, db)

	got, err := repo.GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, account.UserID, got.UserID)
	assert.Equal(t, "YG7227", got.ClientID)

	_, err = repo.GetByID(ctx, uuid.New().String())
	assert.True(t, apperrors.IsCode(err, "NOT_FOUND"))
	_, err = repo.GetByID(ctx, "not-a-uuid")
	assert.True(t, apperrors.IsCode(err, "NOT_FOUND"))

	accounts, err := repo.ListByUser(ctx, account.UserID)
	require.NoError(t, err)
	assert.Len(t, accounts, 1)
}

func upsert(t *testing.T, repo *HoldingRepository, accountID, symbol string, qty, avg int64) {
	t.Helper()
	require.NoError(t, upsertHolding(testContext(t), repo, accountID, symbol, qty, avg))
}

// upsertHolding adds a lot the way an import does: lock, read for update, then insert or merge
func upsertHolding(ctx context.Context, repo *HoldingRepository, accountID, symbol string, qty, avg int64) error {
	return repo.WithAccountLock(ctx, accountID, func(session AccountSession) error {
		return session.RunInTx(ctx, func(tx HoldingTx) error {
			key := models.HoldingKey{PlatformAccountID: accountID, Symbol: symbol, Exchange: types.ExchangeNSE}
			existing, err := tx.GetHoldingForUpdate(ctx, key)
			if err != nil {
				return err
			}
			now := time.Now().UTC()
			if existing == nil {
				return tx.InsertHolding(ctx, &models.Holding{
					ID:                uuid.New().String(),
					PlatformAccountID: accountID,
					Symbol:            symbol,
					Exchange:          types.ExchangeNSE,
					AssetType:         types.AssetStock,
					Quantity:          decimal.NewFromInt(qty),
					AveragePrice:      decimal.NewFromInt(avg),
					CreatedAt:         now,
					UpdatedAt:         now,
				})
			}
			total := existing.Quantity.Add(decimal.NewFromInt(qty))
			existing.AveragePrice = existing.Quantity.Mul(existing.AveragePrice).
				Add(decimal.NewFromInt(qty * avg)).Div(total)
			existing.Quantity = total
			existing.UpdatedAt = now
			return tx.UpdateHolding(ctx, existing)
		})
	})
}

func TestHoldingRepository_Integration(t *testing.T) {
	db := testPostgres(t)
	repo := NewHoldingRepository(db)
	account := createTestAccount(t, db)

	upsert(t, repo, account.ID, "TCS", 10, 100)
	upsert(t, repo, account.ID, "TCS", 10, 200)
	upsert(t, repo, account.ID, "INFY", 1, 1500)

	holdings, err := repo.ListByAccount(testContext(t), account.ID)
	require.NoError(t, err)
	require.Len(t, holdings, 2)
	assert.Equal(t, "INFY", holdings[0].Symbol)
	assert.Equal(t, "TCS", holdings[1].Symbol)
	assert.True(t, holdings[1].Quantity.Equal(decimal.NewFromInt(20)))
	assert.True(t, holdings[1].AveragePrice.Equal(decimal.NewFromInt(150)))
	assert.Nil(t, holdings[1].CurrentPrice)
}

func TestHoldingRepository_RollbackOnError(t *testing.T) {
	db := testPostgres(t)
	repo := NewHoldingRepository(db)
	account := createTestAccount(t, db)
	ctx := testContext(t)

	err := repo.WithAccountLock(ctx, account.ID, func(session AccountSession) error {
		return session.RunInTx(ctx, func(tx HoldingTx) error {
			now := time.Now().UTC()
			if err := tx.InsertHolding(ctx, &models.Holding{
				ID: uuid.New().String(), PlatformAccountID: account.ID, Symbol: "SBIN", Exchange: types.ExchangeNSE,
				AssetType: types.AssetStock, Quantity: decimal.NewFromInt(1), AveragePrice: decimal.Zero,
				CreatedAt: now, UpdatedAt: now,
			}); err != nil {
				return err
			}
			return assert.AnError
		})
	})
	assert.ErrorIs(t, err, assert.AnError)

	holdings, err := repo.ListByAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Empty(t, holdings)
}

func TestHoldingRepository_ConcurrentImportsSerialize(t *testing.T) {
	db := testPostgres(t)
	repo := NewHoldingRepository(db)
	account := createTestAccount(t, db)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, upsertHolding(testContext(t), repo, account.ID, "RELIANCE", 10, 2500))
		}()
	}
	wg.Wait()

	holdings, err := repo.ListByAccount(testContext(t), account.ID)
	require.NoError(t, err)
	require.Len(t, holdings, 1)
	assert.True(t, holdings[0].Quantity.Equal(decimal.NewFromInt(80)))
	assert.True(t, holdings[0].AveragePrice.Equal(decimal.NewFromInt(2500)))
}

func TestImportHistoryRepository_Integration(t *testing.T) {
	db := testPostgres(t)
	repo := NewImportHistoryRepository(db)
	account := createTestAccount(t, db)
	ctx := testContext(t)

	base := time.Now().UTC().Truncate(time.Second)
	for i, status := range []types.ImportStatus{types.ImportSuccess, types.ImportPartial, types.ImportFailed} {
		rec := &models.ImportHistoryRecord{
			PlatformAccountID: account.ID,
			FileName:          "holdings.csv",
			FileKind:          types.FileCSV,
			UploadKind:        types.UploadHoldings,
			FileSHA256:        "abc",
			Status:            status,
			CreatedAt:         base.Add(time.Duration(i) * time.Minute),
		}
		if status == types.ImportSuccess {
			rec.Warnings = []models.Warning{{Kind: types.WarningDefaultedValue, RowNumber: 2, Field: "quantity", Message: "defaulted"}}
			rec.WarningsEmitted = 1
		}
		require.NoError(t, repo.Create(ctx, rec))
	}

	records, err := repo.ListByAccount(ctx, account.ID, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, types.ImportFailed, records[0].Status)
	assert.Equal(t, types.ImportPartial, records[1].Status)
	assert.NotNil(t, records[0].Warnings)

	all, err := repo.ListByAccount(ctx, account.ID, 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Len(t, all[2].Warnings, 1)
	assert.Equal(t, "quantity", all[2].Warnings[0].Field)
}

func TestTransactionRepository_Integration(t *testing.T) {
	db := testPostgres(t)
	repo := NewTransactionRepository(db)
	account := createTestAccount(t, db)
	ctx := testContext(t)

	importID := uuid.New().String()
	day := func(d int) time.Time { return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC) }
	batch := []*models.Transaction{
		{ID: uuid.New().String(), PlatformAccountID: account.ID, ImportID: importID, Symbol: "INFY", Exchange: "NS",
			TradeType: types.TradeBuy, Quantity: decimal.NewFromInt(5), Price: decimal.RequireFromString("1500.25"), TradeDate: day(2), CreatedAt: time.Now().UTC()},
		{ID: uuid.New().String(), PlatformAccountID: account.ID, ImportID: importID, Symbol: "INFY", Exchange: "NS",
			TradeType: types.TradeSell, Quantity: decimal.NewFromInt(2), Price: decimal.NewFromInt(1600), TradeDate: day(5), CreatedAt: time.Now().UTC()},
		{ID: uuid.New().String(), PlatformAccountID: account.ID, ImportID: importID, Symbol: "TCS", Exchange: "NS",
			TradeType: types.TradeBuy, Quantity: decimal.NewFromInt(1), Price: decimal.NewFromInt(3500), TradeDate: day(3), CreatedAt: time.Now().UTC()},
	}
	require.NoError(t, repo.BatchInsert(ctx, batch))
	require.NoError(t, repo.BatchInsert(ctx, nil))

	all, err := repo.ListByAccount(ctx, account.ID, nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, day(5), all[0].TradeDate.UTC())

	buy := types.TradeBuy
	from := day(3)
	filtered, err := repo.ListByAccount(ctx, account.ID, &TransactionFilters{Symbol: "INFY", TradeType: &buy})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.True(t, filtered[0].Price.Equal(decimal.RequireFromString("1500.25")))

	recent, err := repo.ListByAccount(ctx, account.ID, &TransactionFilters{DateFrom: &from, Limit: 1})
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "INFY", recent[0].Symbol)
}
