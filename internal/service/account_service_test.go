package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/portfolio-importer/internal/errors"
	"github.com/portfolio-importer/internal/models"
	"github.com/portfolio-importer/internal/storage"
	"github.com/portfolio-importer/internal/types"
)

func newAccountFixture() (*AccountService, *importFixture) {
	f := newImportFixture(ImportOptions{})
	return NewAccountService(f.accounts, f.holdings, f.history, f.transactions), f
}

func TestAccountService_CreateAccount(t *testing.T) {
	svc, f := newAccountFixture()
	ctx := context.Background()

	account, err := svc.CreateAccount(ctx, &CreateAccountInput{UserID: "user-9", Platform: " zerodha ", ClientID: " ab1234 "})
	require.NoError(t, err)
	assert.Equal(t, "zerodha", account.Platform)
	assert.Equal(t, "AB1234", account.ClientID)
	assert.Contains(t, f.accounts.accounts, account.ID)

	_, err = svc.CreateAccount(ctx, &CreateAccountInput{UserID: "user-9", ClientID: "AB1234"})
	assert.True(t, apperrors.IsCode(err, "INVALID_PARAMETER"))

	_, err = svc.CreateAccount(ctx, &CreateAccountInput{Platform: "zerodha", ClientID: "AB1234"})
	assert.True(t, apperrors.IsCode(err, "UNAUTHORIZED"))

	accounts, err := svc.ListAccounts(ctx, "user-9")
	require.NoError(t, err)
	assert.Len(t, accounts, 1)

	none, err := svc.ListAccounts(ctx, "user-404")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestAccountService_ListHoldingsChecksOwnership(t *testing.T) {
	svc, f := newAccountFixture()
	ctx := context.Background()

	_, err := f.service.Import(ctx, holdingsRequest("holdings.csv", currentCSV))
	require.NoError(t, err)

	holdings, err := svc.ListHoldings(ctx, "user-1", "acct-1")
	require.NoError(t, err)
	require.Len(t, holdings, 1)
	assert.Equal(t, "RELIANCE", holdings[0].Symbol)

	_, err = svc.ListHoldings(ctx, "user-2", "acct-1")
	assert.True(t, apperrors.IsCode(err, "FORBIDDEN"))

	_, err = svc.ListHoldings(ctx, "user-1", "acct-404")
	assert.True(t, apperrors.IsCode(err, "NOT_FOUND"))

	_, err = svc.ListHoldings(ctx, "user-1", "")
	assert.True(t, apperrors.IsCode(err, "INVALID_PARAMETER"))
}

func TestAccountService_ListImportsLimit(t *testing.T) {
	svc, f := newAccountFixture()
	ctx := context.Background()
	for i := 0; i < 120; i++ {
		f.history.records = append(f.history.records, &models.ImportHistoryRecord{
			ID:                fmt.Sprintf("imp-%d", i),
			PlatformAccountID: "acct-1",
			Status:            types.ImportSuccess,
		})
	}

	tests := []struct {
		limit     int
		wantLimit int
	}{
		{0, DefaultHistoryLimit},
		{-3, DefaultHistoryLimit},
		{25, 25},
		{500, MaxHistoryLimit},
	}
	for _, tt := range tests {
		records, err := svc.ListImports(ctx, "user-1", "acct-1", tt.limit)
		require.NoError(t, err)
		assert.Equal(t, tt.wantLimit, f.history.lastLimit)
		assert.Len(t, records, tt.wantLimit)
	}

	records, err := svc.ListImports(ctx, "user-1", "acct-1", 1)
	require.NoError(t, err)
	assert.Equal(t, "imp-119", records[0].ID)
}

func TestAccountService_ListTransactions(t *testing.T) {
	svc, f := newAccountFixture()
	ctx := context.Background()
	req := holdingsRequest("tradebook.csv", tradebookCSV)
	req.UploadKind = types.UploadTransactions
	_, err := f.service.Import(ctx, req)
	require.NoError(t, err)

	buy := types.TradeBuy
	transactions, err := svc.ListTransactions(ctx, "user-1", "acct-1", &storage.TransactionFilters{TradeType: &buy})
	require.NoError(t, err)
	require.Len(t, transactions, 1)
	assert.Equal(t, "INFY", transactions[0].Symbol)

	sell := types.TradeSell
	transactions, err = svc.ListTransactions(ctx, "user-1", "acct-1", &storage.TransactionFilters{TradeType: &sell})
	require.NoError(t, err)
	assert.Empty(t, transactions)

	_, err = svc.ListTransactions(ctx, "user-2", "acct-1", nil)
	assert.True(t, apperrors.IsCode(err, "FORBIDDEN"))
}
