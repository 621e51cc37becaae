package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/portfolio-importer/internal/service"
	"github.com/portfolio-importer/internal/storage"
	"github.com/portfolio-importer/internal/types"
)

const (
	defaultTransactionLimit = 100
	maxTransactionLimit     = 1000
)

// handleCreateAccount handles POST /api/accounts
func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var input service.CreateAccountInput
	if err := parseJSONBody(r, &input); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	input.UserID = userID

	account, err := s.accountService.CreateAccount(r.Context(), &input)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, account)
}

// handleListAccounts handles GET /api/accounts
func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	accounts, err := s.accountService.ListAccounts(r.Context(), userID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"accounts": accounts,
	})
}

// handleListHoldings handles GET /api/accounts/{accountId}/holdings
func (s *Server) handleListHoldings(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	accountID := mux.Vars(r)["accountId"]

	holdings, err := s.accountService.ListHoldings(r.Context(), userID, accountID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"platform_account_id": accountID,
		"holdings":            holdings,
		"count":               len(holdings),
	})
}

// handleListTransactions handles GET /api/accounts/{accountId}/transactions
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	accountID := mux.Vars(r)["accountId"]

	filters, msg := parseTransactionFilters(r)
	if msg != "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, msg, nil)
		return
	}

	transactions, err := s.accountService.ListTransactions(r.Context(), userID, accountID, filters)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"platform_account_id": accountID,
		"transactions":        transactions,
		"limit":               filters.Limit,
		"offset":              filters.Offset,
	})
}

// parseTransactionFilters reads the query string; a non-empty message means bad input
func parseTransactionFilters(r *http.Request) (*storage.TransactionFilters, string) {
	query := r.URL.Query()
	filters := &storage.TransactionFilters{
		Symbol: strings.TrimSpace(query.Get("symbol")),
		Limit:  defaultTransactionLimit,
	}

	if v := query.Get("trade_type"); v != "" {
		tradeType := types.TradeType(strings.ToLower(v))
		if tradeType != types.TradeBuy && tradeType != types.TradeSell {
			return nil, "trade_type must be buy or sell"
		}
		filters.TradeType = &tradeType
	}

	for _, p := range []struct {
		name string
		dst  **time.Time
	}{
		{"from", &filters.DateFrom},
		{"to", &filters.DateTo},
	} {
		v := query.Get(p.name)
		if v == "" {
			continue
		}
		t, err := parseDate(v)
		if err != nil {
			return nil, "Invalid " + p.name + " date format (use YYYY-MM-DD or RFC3339)"
		}
		*p.dst = &t
	}
	if filters.DateFrom != nil && filters.DateTo != nil && filters.DateFrom.After(*filters.DateTo) {
		return nil, "from must not be after to"
	}

	if v := query.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 || limit > maxTransactionLimit {
			return nil, "limit must be between 1 and 1000"
		}
		filters.Limit = limit
	}
	if v := query.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			return nil, "offset must be a non-negative integer"
		}
		filters.Offset = offset
	}

	return filters, ""
}

func parseDate(v string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", v); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, v)
}
