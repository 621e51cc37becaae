package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	apperrors "github.com/portfolio-importer/internal/errors"
	"github.com/portfolio-importer/internal/models"
	"github.com/portfolio-importer/internal/storage"
)

// Mock platform account repository for testing
type mockAccountRepo struct {
	accounts map[string]*models.PlatformAccount
	getErr   error
}

func newMockAccountRepo(accounts ...*models.PlatformAccount) *mockAccountRepo {
	m := &mockAccountRepo{accounts: make(map[string]*models.PlatformAccount)}
	for _, a := range accounts {
		m.accounts[a.ID] = a
	}
	return m
}

func (m *mockAccountRepo) Create(ctx context.Context, account *models.PlatformAccount) error {
	if account.ID == "" {
		account.ID = fmt.Sprintf("acct-%d", len(m.accounts)+1)
	}
	m.accounts[account.ID] = account
	return nil
}

func (m *mockAccountRepo) GetByID(ctx context.Context, id string) (*models.PlatformAccount, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	account, ok := m.accounts[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("platform account", id)
	}
	return account, nil
}

func (m *mockAccountRepo) ListByUser(ctx context.Context, userID string) ([]*models.PlatformAccount, error) {
	var out []*models.PlatformAccount
	for _, a := range m.accounts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

// Mock holding repository. Writes made inside RunInTx become visible only
// when the callback returns nil.
type mockHoldingRepo struct {
	mu       sync.Mutex
	holdings map[models.HoldingKey]*models.Holding
	failOn   map[string]bool // symbols whose write fails
	lockErr  error
	locks    int
	txs      int
}

func newMockHoldingRepo() *mockHoldingRepo {
	return &mockHoldingRepo{
		holdings: make(map[models.HoldingKey]*models.Holding),
		failOn:   make(map[string]bool),
	}
}

func (m *mockHoldingRepo) WithAccountLock(ctx context.Context, platformAccountID string, fn func(session storage.AccountSession) error) error {
	if m.lockErr != nil {
		return m.lockErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locks++
	return fn(&mockSession{repo: m})
}

func (m *mockHoldingRepo) ListByAccount(ctx context.Context, platformAccountID string) ([]*models.Holding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Holding
	for k, h := range m.holdings {
		if k.PlatformAccountID == platformAccountID {
			c := *h
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Symbol != out[j].Symbol {
			return out[i].Symbol < out[j].Symbol
		}
		return out[i].Exchange < out[j].Exchange
	})
	return out, nil
}

// get reads a committed holding without taking the lock; tests call it after Import returns
func (m *mockHoldingRepo) get(accountID, symbol, exchange string) *models.Holding {
	return m.holdings[models.HoldingKey{PlatformAccountID: accountID, Symbol: symbol, Exchange: exchange}]
}

type mockSession struct {
	repo *mockHoldingRepo
}

func (s *mockSession) RunInTx(ctx context.Context, fn func(tx storage.HoldingTx) error) error {
	s.repo.txs++
	tx := &mockTx{repo: s.repo, pending: make(map[models.HoldingKey]*models.Holding)}
	if err := fn(tx); err != nil {
		return err
	}
	for k, h := range tx.pending {
		s.repo.holdings[k] = h
	}
	return nil
}

type mockTx struct {
	repo    *mockHoldingRepo
	pending map[models.HoldingKey]*models.Holding
}

func (t *mockTx) GetHoldingForUpdate(ctx context.Context, key models.HoldingKey) (*models.Holding, error) {
	if h, ok := t.pending[key]; ok {
		c := *h
		return &c, nil
	}
	if h, ok := t.repo.holdings[key]; ok {
		c := *h
		return &c, nil
	}
	return nil, nil
}

func (t *mockTx) InsertHolding(ctx context.Context, h *models.Holding) error {
	return t.write(h)
}

func (t *mockTx) UpdateHolding(ctx context.Context, h *models.Holding) error {
	return t.write(h)
}

func (t *mockTx) write(h *models.Holding) error {
	if t.repo.failOn[h.Symbol] {
		return errors.New("connection reset by peer")
	}
	c := *h
	t.pending[h.Key()] = &c
	return nil
}

// Mock import history repository for testing
type mockHistoryRepo struct {
	records   []*models.ImportHistoryRecord
	createErr error
	lastLimit int
}

func (m *mockHistoryRepo) Create(ctx context.Context, rec *models.ImportHistoryRecord) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *mockHistoryRepo) ListByAccount(ctx context.Context, platformAccountID string, limit int) ([]*models.ImportHistoryRecord, error) {
	m.lastLimit = limit
	var out []*models.ImportHistoryRecord
	for i := len(m.records) - 1; i >= 0 && len(out) < limit; i-- {
		if m.records[i].PlatformAccountID == platformAccountID {
			out = append(out, m.records[i])
		}
	}
	return out, nil
}

func (m *mockHistoryRepo) last() *models.ImportHistoryRecord {
	if len(m.records) == 0 {
		return nil
	}
	return m.records[len(m.records)-1]
}

// Mock transaction repository for testing
type mockTransactionRepo struct {
	transactions []*models.Transaction
	insertErr    error
	batches      int
}

func (m *mockTransactionRepo) BatchInsert(ctx context.Context, transactions []*models.Transaction) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.batches++
	m.transactions = append(m.transactions, transactions...)
	return nil
}

func (m *mockTransactionRepo) ListByAccount(ctx context.Context, platformAccountID string, filters *storage.TransactionFilters) ([]*models.Transaction, error) {
	result := make([]*models.Transaction, 0)
	for _, tx := range m.transactions {
		if tx.PlatformAccountID != platformAccountID {
			continue
		}
		if filters != nil {
			if filters.Symbol != "" && tx.Symbol != filters.Symbol {
				continue
			}
			if filters.TradeType != nil && tx.TradeType != *filters.TradeType {
				continue
			}
		}
		result = append(result, tx)
	}
	return result, nil
}

// Mock replay registry keyed by account and fingerprint
type mockReplayRegistry struct {
	seen      map[string]string
	lookupErr error
}

func newMockReplayRegistry() *mockReplayRegistry {
	return &mockReplayRegistry{seen: make(map[string]string)}
}

func (m *mockReplayRegistry) Lookup(ctx context.Context, platformAccountID, fileSHA256 string) (string, bool, error) {
	if m.lookupErr != nil {
		return "", false, m.lookupErr
	}
	id, ok := m.seen[platformAccountID+":"+fileSHA256]
	return id, ok, nil
}

func (m *mockReplayRegistry) Remember(ctx context.Context, platformAccountID, fileSHA256, importID string) error {
	key := platformAccountID + ":" + fileSHA256
	if _, ok := m.seen[key]; !ok {
		m.seen[key] = importID
	}
	return nil
}
