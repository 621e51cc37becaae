package service

import (
	"context"
	"strings"

	apperrors "github.com/portfolio-importer/internal/errors"
	"github.com/portfolio-importer/internal/models"
	"github.com/portfolio-importer/internal/storage"
)

const (
	DefaultHistoryLimit = 10
	MaxHistoryLimit     = 100
)

// AccountService serves the read side of a platform account: holdings,
// import history and transactions. Every call checks ownership first.
type AccountService struct {
	accounts     PlatformAccountRepository
	holdings     HoldingRepository
	history      ImportHistoryRepository
	transactions TransactionRepository
}

// NewAccountService creates a new account service
func NewAccountService(
	accounts PlatformAccountRepository,
	holdings HoldingRepository,
	history ImportHistoryRepository,
	transactions TransactionRepository,
) *AccountService {
	return &AccountService{
		accounts:     accounts,
		holdings:     holdings,
		history:      history,
		transactions: transactions,
	}
}

// CreateAccountInput represents input for registering a platform account
type CreateAccountInput struct {
	UserID   string  `json:"-"`
	Platform string  `json:"platform"`
	ClientID string  `json:"client_id"`
	Nickname *string `json:"nickname,omitempty"`
}

// CreateAccount registers a platform account for the caller
func (s *AccountService) CreateAccount(ctx context.Context, input *CreateAccountInput) (*models.PlatformAccount, error) {
	if input.UserID == "" {
		return nil, apperrors.NewUnauthorizedError("caller identity is required")
	}
	platform := strings.TrimSpace(input.Platform)
	if platform == "" {
		return nil, apperrors.NewInvalidParameterError("platform", "is required")
	}
	clientID := strings.ToUpper(strings.TrimSpace(input.ClientID))
	if clientID == "" {
		return nil, apperrors.NewInvalidParameterError("client_id", "is required")
	}

	account := &models.PlatformAccount{
		UserID:   input.UserID,
		Platform: platform,
		ClientID: clientID,
		Nickname: input.Nickname,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, apperrors.NewDatabaseError("create platform account", err)
	}
	return account, nil
}

// ListAccounts returns the caller's platform accounts
func (s *AccountService) ListAccounts(ctx context.Context, userID string) ([]*models.PlatformAccount, error) {
	if userID == "" {
		return nil, apperrors.NewUnauthorizedError("caller identity is required")
	}
	accounts, err := s.accounts.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list platform accounts", err)
	}
	if accounts == nil {
		accounts = []*models.PlatformAccount{}
	}
	return accounts, nil
}

// ownedAccount loads the account and checks it belongs to userID
func ownedAccount(ctx context.Context, accounts PlatformAccountRepository, userID, platformAccountID string) (*models.PlatformAccount, error) {
	if platformAccountID == "" {
		return nil, apperrors.NewInvalidParameterError("platform_account_id", "is required")
	}
	account, err := accounts.GetByID(ctx, platformAccountID)
	if err != nil {
		if apperrors.IsCode(err, "NOT_FOUND") {
			return nil, err
		}
		return nil, apperrors.NewDatabaseError("get platform account", err)
	}
	if userID == "" || account.UserID != userID {
		return nil, apperrors.NewForbiddenError("platform account does not belong to the caller")
	}
	return account, nil
}

// ListHoldings returns the account's holdings
func (s *AccountService) ListHoldings(ctx context.Context, userID, platformAccountID string) ([]*models.Holding, error) {
	if _, err := ownedAccount(ctx, s.accounts, userID, platformAccountID); err != nil {
		return nil, err
	}
	holdings, err := s.holdings.ListByAccount(ctx, platformAccountID)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list holdings", err)
	}
	if holdings == nil {
		holdings = []*models.Holding{}
	}
	return holdings, nil
}

// ListImports returns the account's import history, newest first. A
// non-positive limit selects the default; limits above the maximum are capped.
func (s *AccountService) ListImports(ctx context.Context, userID, platformAccountID string, limit int) ([]*models.ImportHistoryRecord, error) {
	if _, err := ownedAccount(ctx, s.accounts, userID, platformAccountID); err != nil {
		return nil, err
	}
	switch {
	case limit <= 0:
		limit = DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		limit = MaxHistoryLimit
	}

	records, err := s.history.ListByAccount(ctx, platformAccountID, limit)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list import history", err)
	}
	if records == nil {
		records = []*models.ImportHistoryRecord{}
	}
	return records, nil
}

// ListTransactions returns the account's imported trades
func (s *AccountService) ListTransactions(ctx context.Context, userID, platformAccountID string, filters *storage.TransactionFilters) ([]*models.Transaction, error) {
	if _, err := ownedAccount(ctx, s.accounts, userID, platformAccountID); err != nil {
		return nil, err
	}
	transactions, err := s.transactions.ListByAccount(ctx, platformAccountID, filters)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list transactions", err)
	}
	if transactions == nil {
		transactions = []*models.Transaction{}
	}
	return transactions, nil
}
