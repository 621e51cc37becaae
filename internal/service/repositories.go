package service

import (
	"context"

	"github.com/portfolio-importer/internal/models"
	"github.com/portfolio-importer/internal/storage"
)

// Repository interfaces for dependency injection

// PlatformAccountRepository interface for platform account lookups
type PlatformAccountRepository interface {
	Create(ctx context.Context, account *models.PlatformAccount) error
	GetByID(ctx context.Context, id string) (*models.PlatformAccount, error)
	ListByUser(ctx context.Context, userID string) ([]*models.PlatformAccount, error)
}

// HoldingRepository interface for holding persistence.
// WithAccountLock serializes every import for one platform account.
type HoldingRepository interface {
	WithAccountLock(ctx context.Context, platformAccountID string, fn func(session storage.AccountSession) error) error
	ListByAccount(ctx context.Context, platformAccountID string) ([]*models.Holding, error)
}

// ImportHistoryRepository interface for the import audit log
type ImportHistoryRepository interface {
	Create(ctx context.Context, rec *models.ImportHistoryRecord) error
	ListByAccount(ctx context.Context, platformAccountID string, limit int) ([]*models.ImportHistoryRecord, error)
}

// TransactionRepository interface for tradebook persistence
type TransactionRepository interface {
	BatchInsert(ctx context.Context, transactions []*models.Transaction) error
	ListByAccount(ctx context.Context, platformAccountID string, filters *storage.TransactionFilters) ([]*models.Transaction, error)
}

// ReplayRegistry interface for import fingerprints
type ReplayRegistry interface {
	Lookup(ctx context.Context, platformAccountID, fileSHA256 string) (string, bool, error)
	Remember(ctx context.Context, platformAccountID, fileSHA256, importID string) error
}
