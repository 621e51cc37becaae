package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/portfolio-importer/internal/errors"
	"github.com/portfolio-importer/internal/logging"
	"github.com/portfolio-importer/internal/models"
	"github.com/portfolio-importer/internal/sheet"
	"github.com/portfolio-importer/internal/storage"
	"github.com/portfolio-importer/internal/types"
)

// ImportOptions holds the import service switches
type ImportOptions struct {
	MaxUploadBytes int64
	// RejectReplays turns a byte-identical re-upload into a DUPLICATE_IMPORT
	// error instead of merging it again
	RejectReplays bool
}

// ImportService runs uploaded files through the pipeline and reconciles them into holdings
type ImportService struct {
	accounts     PlatformAccountRepository
	holdings     HoldingRepository
	history      ImportHistoryRepository
	transactions TransactionRepository
	replays      ReplayRegistry // optional
	pipeline     *Pipeline
	reconciler   *Reconciler
	monitor      *ImportMonitor
	opts         ImportOptions
	now          func() time.Time
}

// NewImportService creates a new import service. replays and monitor may be nil.
func NewImportService(
	accounts PlatformAccountRepository,
	holdings HoldingRepository,
	history ImportHistoryRepository,
	transactions TransactionRepository,
	replays ReplayRegistry,
	pipeline *Pipeline,
	monitor *ImportMonitor,
	opts ImportOptions,
) *ImportService {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}
	if monitor == nil {
		monitor = NewImportMonitor()
	}
	return &ImportService{
		accounts:     accounts,
		holdings:     holdings,
		history:      history,
		transactions: transactions,
		replays:      replays,
		pipeline:     pipeline,
		reconciler:   NewReconciler(),
		monitor:      monitor,
		opts:         opts,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// ImportRequest represents one uploaded file
type ImportRequest struct {
	UserID            string
	PlatformAccountID string
	FileName          string
	ContentType       string
	UploadKind        types.UploadKind
	Content           []byte
}

// importState carries what is known about an import while it runs
type importState struct {
	id      string
	req     *ImportRequest
	account *models.PlatformAccount
	kind    types.FileKind
	sha     string
	replay  string // earlier import of the same bytes, if any
	started time.Time
	log     *logging.Logger
}

// Import validates, plans and persists one file. File-level problems are
// returned as errors and leave holdings untouched; once persistence starts
// the call returns a result whose status is success or partial.
func (s *ImportService) Import(ctx context.Context, req *ImportRequest) (*ImportResult, error) {
	st := &importState{
		id:      uuid.New().String(),
		req:     req,
		started: time.Now(),
	}
	uploadKind, ok := types.ParseUploadKind(string(req.UploadKind))
	if !ok {
		return nil, apperrors.NewInvalidParameterError("upload_kind", "must be holdings or transactions")
	}
	req.UploadKind = uploadKind
	st.log = logging.FromContext(ctx).WithFields(map[string]interface{}{
		"import_id":           st.id,
		"platform_account_id": req.PlatformAccountID,
		"file_name":           req.FileName,
		"upload_kind":         req.UploadKind,
	})

	account, err := ownedAccount(ctx, s.accounts, req.UserID, req.PlatformAccountID)
	if err != nil {
		return nil, err
	}
	st.account = account

	plan, err := s.prepare(ctx, st)
	if err != nil {
		s.reject(ctx, st, err)
		return nil, err
	}

	st.log.WithField("file_kind", st.kind).Infof("import started: %d sheet(s) planned", len(plan.Sheets))

	builder := NewResultBuilder(st.id, st.kind, req.UploadKind)
	if st.replay != "" {
		builder.SetReplayOf(st.replay)
		st.log.WithField("replay_of", st.replay).Error("file was already imported for this account; merging again adds to existing quantities")
	}

	if req.UploadKind == types.UploadTransactions {
		s.persistTrades(ctx, st, plan, builder)
	} else if err := s.persistHoldings(ctx, st, plan, builder); err != nil {
		// the account lock could not be taken, so nothing was written
		dbErr := apperrors.NewDatabaseError("lock platform account", err)
		s.reject(ctx, st, dbErr)
		return nil, dbErr
	}

	result := builder.Build()
	if err := s.history.Create(ctx, builder.HistoryRecord(account.ID, req.FileName, st.sha, s.now())); err != nil {
		st.log.WithError(err).Error("failed to write import history")
	}
	if s.replays != nil {
		if err := s.replays.Remember(ctx, account.ID, st.sha, st.id); err != nil {
			st.log.WithError(err).Warn("failed to remember import fingerprint")
		}
	}

	duration := time.Since(st.started)
	s.monitor.RecordImport(result, duration)
	st.log.WithFields(map[string]interface{}{
		"file_kind":      st.kind,
		"status":         result.Status,
		"imported_count": result.ImportedCount,
		"updated_count":  result.UpdatedCount,
		"skipped_count":  result.SkippedCount,
		"warning_count":  len(result.Warnings),
		"duration_ms":    duration.Milliseconds(),
	}).Info("import completed")

	return result, nil
}

// prepare runs every file-level check and the detection stages, in order:
// size, format, account match, replay rejection, then layout detection
func (s *ImportService) prepare(ctx context.Context, st *importState) (*Plan, error) {
	req := st.req
	if len(req.Content) == 0 {
		return nil, apperrors.NewEmptyFileError(req.FileName)
	}
	if int64(len(req.Content)) > s.opts.MaxUploadBytes {
		return nil, apperrors.NewFileTooLargeError(int64(len(req.Content)), s.opts.MaxUploadBytes)
	}
	sum := sha256.Sum256(req.Content)
	st.sha = hex.EncodeToString(sum[:])

	kind, err := sheet.DetectKind(req.FileName, req.ContentType, req.Content)
	if err != nil {
		return nil, err
	}
	st.kind = kind

	if fileClientID, err := CheckAccountFileMatch(req.FileName, kind, st.account); err != nil {
		return nil, err
	} else if fileClientID != "" {
		st.log.WithField("file_client_id", fileClientID).Warn("statement name carries a different client id; importing anyway")
	}

	if s.replays != nil {
		if previous, found := s.lookupReplay(ctx, st); found {
			if s.opts.RejectReplays {
				return nil, apperrors.NewDuplicateImportError(previous)
			}
			st.replay = previous
		}
	}

	return s.pipeline.Plan(req.FileName, kind, req.UploadKind, req.Content)
}

// lookupReplay treats a registry failure as "not seen"; fingerprints are advisory
func (s *ImportService) lookupReplay(ctx context.Context, st *importState) (string, bool) {
	previous, found, err := s.replays.Lookup(ctx, st.account.ID, st.sha)
	if err != nil {
		st.log.WithError(err).Warn("import fingerprint lookup failed")
		return "", false
	}
	return previous, found
}

// reject records a file-level failure with zero counts
func (s *ImportService) reject(ctx context.Context, st *importState, cause error) {
	rec := FailedHistoryRecord(st.id, st.account.ID, st.req.FileName, st.sha, st.kind, st.req.UploadKind, cause, s.now())
	if err := s.history.Create(ctx, rec); err != nil {
		st.log.WithError(err).Error("failed to write import history")
	}
	s.monitor.RecordRejection(time.Since(st.started))
	st.log.WithError(cause).WithField("status", types.ImportFailed).Warn("import rejected")
}

// persistHoldings reconciles every planned record while holding the account
// lock. Each row commits on its own; a failed row aborts the rest of its
// sheet and processing moves on to the next sheet.
func (s *ImportService) persistHoldings(ctx context.Context, st *importState, plan *Plan, builder *ResultBuilder) error {
	return s.holdings.WithAccountLock(ctx, st.account.ID, func(session storage.AccountSession) error {
		for _, sp := range plan.Sheets {
			if !sp.Recognized {
				builder.SkipSheet(sp)
				continue
			}

			builder.BeginSheet(sp)
			for _, pr := range sp.Records {
				var (
					delta HoldingDelta
					merge *models.Warning
				)
				err := session.RunInTx(ctx, func(tx storage.HoldingTx) error {
					var err error
					delta, merge, err = s.reconciler.Reconcile(ctx, tx, pr.Record, st.account.ID)
					return err
				})
				if err != nil {
					row := pr.Record.RowNumber
					st.log.WithError(err).WithFields(map[string]interface{}{
						"sheet": sp.Name,
						"row":   row,
					}).Error("failed to persist holding; aborting sheet")
					builder.AbortSheet(row, apperrors.NewImportPersistenceError(sp.Name, row, err))
					break
				}
				builder.AddHolding(pr, delta, merge)
			}
			builder.EndSheet()
		}
		return nil
	})
}

// persistTrades appends each sheet's trades in one batch
func (s *ImportService) persistTrades(ctx context.Context, st *importState, plan *Plan, builder *ResultBuilder) {
	createdAt := s.now()
	for _, sp := range plan.Sheets {
		if !sp.Recognized {
			builder.SkipSheet(sp)
			continue
		}

		builder.BeginSheet(sp)
		batch := make([]*models.Transaction, 0, len(sp.Trades))
		for _, trade := range sp.Trades {
			batch = append(batch, &models.Transaction{
				ID:                uuid.New().String(),
				PlatformAccountID: st.account.ID,
				ImportID:          st.id,
				Symbol:            trade.Symbol,
				Exchange:          trade.Exchange,
				TradeType:         trade.TradeType,
				Quantity:          trade.Quantity,
				Price:             trade.Price,
				TradeDate:         trade.TradeDate,
				OrderID:           optionalString(trade.OrderID),
				CreatedAt:         createdAt,
			})
		}

		if err := s.transactions.BatchInsert(ctx, batch); err != nil {
			row := 0
			if len(sp.Trades) > 0 {
				row = sp.Trades[0].RowNumber
			}
			st.log.WithError(err).WithField("sheet", sp.Name).Error("failed to persist transactions; aborting sheet")
			builder.AbortSheet(row, apperrors.NewImportPersistenceError(sp.Name, row, err))
		} else {
			builder.AddTrades(len(batch))
		}
		builder.EndSheet()
	}
}

// Monitor returns the service's import monitor
func (s *ImportService) Monitor() *ImportMonitor {
	return s.monitor
}
