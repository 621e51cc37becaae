package api

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gorilla/mux"

	apperrors "github.com/portfolio-importer/internal/errors"
	"github.com/portfolio-importer/internal/service"
	"github.com/portfolio-importer/internal/types"
)

// multipartOverhead is the allowance for boundaries and form fields on top of the file itself
const multipartOverhead = 1 << 20

// handleUpload handles POST /api/accounts/{accountId}/imports
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	accountID := mux.Vars(r)["accountId"]

	maxBytes := s.config.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)

	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || r.ContentLength > maxBytes+multipartOverhead {
			respondServiceError(w, r, apperrors.NewFileTooLargeError(r.ContentLength, maxBytes))
			return
		}
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Expected a multipart form upload", nil)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Form field 'file' is required", nil)
		return
	}
	defer file.Close()

	// one byte past the limit is enough for the service to report FILE_TOO_LARGE
	content, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Failed to read uploaded file", nil)
		return
	}

	req := &service.ImportRequest{
		UserID:            userID,
		PlatformAccountID: accountID,
		FileName:          filepath.Base(header.Filename),
		ContentType:       header.Header.Get("Content-Type"),
		UploadKind:        types.UploadKind(r.FormValue("upload_kind")),
		Content:           content,
	}

	result, err := s.importService.Import(r.Context(), req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	status := http.StatusCreated
	if result.Status == types.ImportPartial {
		status = http.StatusMultiStatus
	}
	respondJSON(w, status, result)
}

// handleListImports handles GET /api/accounts/{accountId}/imports
func (s *Server) handleListImports(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	accountID := mux.Vars(r)["accountId"]

	// the service clamps the limit; 0 selects its default
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "limit must be an integer", nil)
			return
		}
		limit = parsed
	}

	records, err := s.accountService.ListImports(r.Context(), userID, accountID, limit)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"platform_account_id": accountID,
		"imports":             records,
	})
}

// handleImportStats handles GET /api/stats/imports
func (s *Server) handleImportStats(w http.ResponseWriter, r *http.Request) {
	monitor := s.importService.Monitor()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"stats":  monitor.GetStats(),
		"health": monitor.CheckHealth(),
	})
}
