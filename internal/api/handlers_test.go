package api

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/portfolio-importer/internal/errors"
	"github.com/portfolio-importer/internal/logging"
	"github.com/portfolio-importer/internal/models"
	"github.com/portfolio-importer/internal/service"
	"github.com/portfolio-importer/internal/storage"
	"github.com/portfolio-importer/internal/types"
)

// TestUpload_ServiceErrors tests the mapping of import failures to responses
func TestUpload_ServiceErrors(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantCode    string
		wantMessage string
	}{
		{"unrecognized layout", apperrors.NewUnrecognizedLayoutError("Sheet1", 20), http.StatusUnprocessableEntity, apperrors.CodeUnrecognizedLayout, ""},
		{"unsupported type", apperrors.NewUnsupportedFileTypeError("a.docx", "unknown format"), http.StatusUnsupportedMediaType, apperrors.CodeUnsupportedFileType, ""},
		{"empty file", apperrors.NewEmptyFileError("a.csv"), http.StatusBadRequest, apperrors.CodeEmptyFile, ""},
		{"account mismatch", apperrors.NewAccountFileMismatchError("h-AB1234.csv", "AB1234", "YG7227"), http.StatusBadRequest, apperrors.CodeAccountFileMismatch, ""},
		{"duplicate", apperrors.NewDuplicateImportError("imp-1"), http.StatusConflict, apperrors.CodeDuplicateImport, ""},
		{"not found", apperrors.NewNotFoundError("platform account", "acct-9"), http.StatusNotFound, "NOT_FOUND", ""},
		{"forbidden", apperrors.NewForbiddenError("platform account belongs to another user"), http.StatusForbidden, "FORBIDDEN", ""},
		{"invalid upload kind", apperrors.NewInvalidParameterError("upload_kind", "must be holdings or transactions"), http.StatusBadRequest, "INVALID_PARAMETER", ""},
		{"database", apperrors.NewDatabaseError("lock platform account", errors.New("conn reset")), http.StatusInternalServerError, "DATABASE_ERROR", "An internal error occurred"},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			imports := &mockImportService{
				importFunc: func(ctx context.Context, req *service.ImportRequest) (*service.ImportResult, error) {
					return nil, tt.err
				},
			}
			server := createTestServer(nil, imports, nil, nil)

			w := httptest.NewRecorder()
			server.Handler().ServeHTTP(w, uploadRequest(t, "acct-1", "holdings.csv", []byte("x"), ""))

			assert.Equal(t, tt.wantStatus, w.Code)
			resp := decodeError(t, w)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			if tt.wantMessage != "" {
				assert.Equal(t, tt.wantMessage, resp.Error.Message)
				assert.Nil(t, resp.Error.Details)
			}
		})
	}
}

func TestCreateAccount(t *testing.T) {
	var got *service.CreateAccountInput
	accounts := &mockAccountService{
		createFunc: func(ctx context.Context, input *service.CreateAccountInput) (*models.PlatformAccount, error) {
			got = input
			return &models.PlatformAccount{ID: "acct-1", UserID: input.UserID, Platform: input.Platform, ClientID: input.ClientID}, nil
		},
	}
	server := createTestServer(nil, nil, accounts, nil)

	body := `{"platform":"zerodha","client_id":"YG7227","nickname":"main"}`
	req := httptest.NewRequest("POST", "/api/accounts", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "user-1")
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, got)
	assert.Equal(t, "user-1", got.UserID)
	require.NotNil(t, got.Nickname)
	assert.Equal(t, "main", *got.Nickname)

	var account models.PlatformAccount
	require.NoError(t, json.NewDecoder(w.Body).Decode(&account))
	assert.Equal(t, "acct-1", account.ID)
}

func TestCreateAccount_InvalidBodies(t *testing.T) {
	server := createTestServer(nil, nil, nil, nil)

	for _, body := range []string{"not json", `{"platform":"zerodha","tier":"gold"}`} {
		req := httptest.NewRequest("POST", "/api/accounts", strings.NewReader(body))
		req.Header.Set("X-User-ID", "user-1")
		w := httptest.NewRecorder()
		server.Handler().ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}

func TestCreateAccount_ValidationError(t *testing.T) {
	accounts := &mockAccountService{
		createFunc: func(ctx context.Context, input *service.CreateAccountInput) (*models.PlatformAccount, error) {
			return nil, apperrors.NewInvalidParameterError("client_id", "is required")
		},
	}
	server := createTestServer(nil, nil, accounts, nil)

	req := httptest.NewRequest("POST", "/api/accounts", strings.NewReader(`{"platform":"zerodha"}`))
	req.Header.Set("X-User-ID", "user-1")
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, "client_id", resp.Error.Details["parameter"])
}

func TestListAccounts(t *testing.T) {
	server := createTestServer(nil, nil, nil, nil)

	req := httptest.NewRequest("GET", "/api/accounts", nil)
	req.Header.Set("X-User-ID", "user-7")
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var response struct {
		Accounts []models.PlatformAccount `json:"accounts"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	require.Len(t, response.Accounts, 1)
	assert.Equal(t, "user-7", response.Accounts[0].UserID)
}

func TestReadRoutesRequireUser(t *testing.T) {
	server := createTestServer(nil, nil, nil, nil)

	for _, path := range []string{
		"/api/accounts",
		"/api/accounts/acct-1/holdings",
		"/api/accounts/acct-1/imports",
		"/api/accounts/acct-1/transactions",
	} {
		w := httptest.NewRecorder()
		server.Handler().ServeHTTP(w, httptest.NewRequest("GET", path, nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestListHoldings_Forbidden(t *testing.T) {
	accounts := &mockAccountService{
		holdingsFunc: func(ctx context.Context, userID, accountID string) ([]*models.Holding, error) {
			return nil, apperrors.NewForbiddenError("platform account belongs to another user")
		},
	}
	server := createTestServer(nil, nil, accounts, nil)

	req := httptest.NewRequest("GET", "/api/accounts/acct-1/holdings", nil)
	req.Header.Set("X-User-ID", "user-2")
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestListImports_InvalidLimit(t *testing.T) {
	server := createTestServer(nil, nil, nil, nil)

	req := httptest.NewRequest("GET", "/api/accounts/acct-1/imports?limit=ten", nil)
	req.Header.Set("X-User-ID", "user-1")
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListTransactions_Filters(t *testing.T) {
	var got *storage.TransactionFilters
	accounts := &mockAccountService{
		transactionsFunc: func(ctx context.Context, userID, accountID string, filters *storage.TransactionFilters) ([]*models.Transaction, error) {
			got = filters
			return []*models.Transaction{}, nil
		},
	}
	server := createTestServer(nil, nil, accounts, nil)

	req := httptest.NewRequest("GET",
		"/api/accounts/acct-1/transactions?symbol=infy&trade_type=BUY&from=2024-01-01&to=2024-03-31T00:00:00Z&limit=50&offset=10", nil)
	req.Header.Set("X-User-ID", "user-1")
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, got)
	assert.Equal(t, "infy", got.Symbol)
	require.NotNil(t, got.TradeType)
	assert.Equal(t, types.TradeBuy, *got.TradeType)
	require.NotNil(t, got.DateFrom)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), *got.DateFrom)
	require.NotNil(t, got.DateTo)
	assert.Equal(t, 50, got.Limit)
	assert.Equal(t, 10, got.Offset)
}

func TestListTransactions_DefaultLimit(t *testing.T) {
	var got *storage.TransactionFilters
	accounts := &mockAccountService{
		transactionsFunc: func(ctx context.Context, userID, accountID string, filters *storage.TransactionFilters) ([]*models.Transaction, error) {
			got = filters
			return []*models.Transaction{}, nil
		},
	}
	server := createTestServer(nil, nil, accounts, nil)

	req := httptest.NewRequest("GET", "/api/accounts/acct-1/transactions", nil)
	req.Header.Set("X-User-ID", "user-1")
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, defaultTransactionLimit, got.Limit)
	assert.Nil(t, got.TradeType)
	assert.Nil(t, got.DateFrom)
}

func TestListTransactions_InvalidQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"unknown trade type", "trade_type=short"},
		{"bad from date", "from=01/02/2024"},
		{"bad to date", "to=yesterday"},
		{"inverted range", "from=2024-03-01&to=2024-01-01"},
		{"zero limit", "limit=0"},
		{"limit too large", "limit=1001"},
		{"non-numeric limit", "limit=abc"},
		{"negative offset", "offset=-1"},
	}

	server := createTestServer(nil, nil, nil, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/accounts/acct-1/transactions?"+tt.query, nil)
			req.Header.Set("X-User-ID", "user-1")
			w := httptest.NewRecorder()
			server.Handler().ServeHTTP(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, ErrCodeInvalidInput, decodeError(t, w).Error.Code)
		})
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := RecoveryMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("unexpected nil holding")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, ErrCodeInternalError, decodeError(t, w).Error.Code)
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLogger(logging.LevelInfo, logging.FormatJSON)
	logger.SetOutput(&buf)

	var fromCtx map[string]interface{}
	handler := LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fromCtx = logging.FromContext(r.Context()).Fields()
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest("GET", "/api/accounts", nil)
	req.Header.Set("X-Request-ID", "req-1")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "req-1", fromCtx["request_id"])
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "http request", entry["message"])
	assert.Equal(t, float64(http.StatusTeapot), entry["status"])
	assert.Equal(t, "/api/accounts", entry["path"])
}

func TestCompressionMiddleware(t *testing.T) {
	server := createTestServer(nil, nil, nil, nil)

	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	require.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
	gz, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.Contains(t, string(body), "healthy")
}
