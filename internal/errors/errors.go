package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/portfolio-importer/internal/types"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	// CategoryUserInput represents user input errors (4xx)
	CategoryUserInput ErrorCategory = "user_input"
	// CategorySystem represents system errors (5xx)
	CategorySystem ErrorCategory = "system"
	// CategoryDatabase represents database errors
	CategoryDatabase ErrorCategory = "database"
	// CategoryCache represents cache errors
	CategoryCache ErrorCategory = "cache"
	// CategoryValidation represents validation errors
	CategoryValidation ErrorCategory = "validation"
	// CategoryAuthorization represents authorization errors
	CategoryAuthorization ErrorCategory = "authorization"
	// CategoryNotFound represents not found errors
	CategoryNotFound ErrorCategory = "not_found"
	// CategoryConflict represents conflict errors
	CategoryConflict ErrorCategory = "conflict"
	// CategoryRateLimit represents rate limit errors
	CategoryRateLimit ErrorCategory = "rate_limit"
	// CategoryFile represents file-level import rejections
	CategoryFile ErrorCategory = "file"
)

// Error codes for file-level import failures
const (
	CodeUnsupportedFileType = "UNSUPPORTED_FILE_TYPE"
	CodeFileTooLarge        = "FILE_TOO_LARGE"
	CodeEmptyFile           = "EMPTY_FILE"
	CodeUnrecognizedLayout  = "UNRECOGNIZED_LAYOUT"
	CodeAccountFileMismatch = "ACCOUNT_FILE_MISMATCH"
	CodeDuplicateImport     = "DUPLICATE_IMPORT"
	CodeImportPersistence   = "IMPORT_PERSISTENCE_ERROR"
)

// CategorizedError represents an error with category and HTTP status code
type CategorizedError struct {
	Category   ErrorCategory
	StatusCode int
	Code       string
	Message    string
	Details    map[string]interface{}
	Cause      error
}

// Error implements the error interface
func (e *CategorizedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *CategorizedError) Unwrap() error {
	return e.Cause
}

// ToServiceError converts to a ServiceError
func (e *CategorizedError) ToServiceError() *types.ServiceError {
	return &types.ServiceError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	}
}

// File-level import errors

// NewUnsupportedFileTypeError creates an unsupported file type error
func NewUnsupportedFileTypeError(fileName, reason string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryFile,
		StatusCode: http.StatusUnsupportedMediaType,
		Code:       CodeUnsupportedFileType,
		Message:    fmt.Sprintf("unsupported file type for %s: %s", fileName, reason),
		Details: map[string]interface{}{
			"file_name": fileName,
			"reason":    reason,
		},
	}
}

// NewFileTooLargeError creates a file too large error
func NewFileTooLargeError(size, limit int64) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryFile,
		StatusCode: http.StatusRequestEntityTooLarge,
		Code:       CodeFileTooLarge,
		Message:    fmt.Sprintf("file is %d bytes, limit is %d", size, limit),
		Details: map[string]interface{}{
			"size":  size,
			"limit": limit,
		},
	}
}

// NewEmptyFileError creates an empty file error
func NewEmptyFileError(fileName string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryFile,
		StatusCode: http.StatusBadRequest,
		Code:       CodeEmptyFile,
		Message:    fmt.Sprintf("file %s is empty", fileName),
		Details: map[string]interface{}{
			"file_name": fileName,
		},
	}
}

// NewUnrecognizedLayoutError creates an unrecognized layout error
func NewUnrecognizedLayoutError(sheet string, scannedRows int) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryFile,
		StatusCode: http.StatusUnprocessableEntity,
		Code:       CodeUnrecognizedLayout,
		Message:    fmt.Sprintf("no known layout found in the first %d rows of sheet %q", scannedRows, sheet),
		Details: map[string]interface{}{
			"sheet":        sheet,
			"scanned_rows": scannedRows,
		},
	}
}

// NewAccountFileMismatchError creates an error for files exported from a different account
func NewAccountFileMismatchError(fileName, fileClientID, accountClientID string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       CodeAccountFileMismatch,
		Message:    fmt.Sprintf("file %s belongs to client %s, not %s", fileName, fileClientID, accountClientID),
		Details: map[string]interface{}{
			"file_name":         fileName,
			"file_client_id":    fileClientID,
			"account_client_id": accountClientID,
		},
	}
}

// NewDuplicateImportError creates an error for a byte-identical re-upload
func NewDuplicateImportError(previousImportID string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryConflict,
		StatusCode: http.StatusConflict,
		Code:       CodeDuplicateImport,
		Message:    "this file was already imported for the account",
		Details: map[string]interface{}{
			"previous_import_id": previousImportID,
		},
	}
}

// NewImportPersistenceError creates an error for a failed holding write
func NewImportPersistenceError(sheet string, row int, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryDatabase,
		StatusCode: http.StatusInternalServerError,
		Code:       CodeImportPersistence,
		Message:    fmt.Sprintf("failed to persist row %d of sheet %q", row, sheet),
		Cause:      cause,
		Details: map[string]interface{}{
			"sheet": sheet,
			"row":   row,
		},
	}
}

// User Input Errors (4xx)

// NewInvalidParameterError creates an invalid parameter error
func NewInvalidParameterError(param string, reason string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       "INVALID_PARAMETER",
		Message:    fmt.Sprintf("invalid parameter '%s': %s", param, reason),
		Details: map[string]interface{}{
			"parameter": param,
			"reason":    reason,
		},
	}
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError(message string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryAuthorization,
		StatusCode: http.StatusUnauthorized,
		Code:       "UNAUTHORIZED",
		Message:    message,
	}
}

// NewForbiddenError creates a forbidden error
func NewForbiddenError(message string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryAuthorization,
		StatusCode: http.StatusForbidden,
		Code:       "FORBIDDEN",
		Message:    message,
	}
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string, id string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryNotFound,
		StatusCode: http.StatusNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found: %s", resource, id),
		Details: map[string]interface{}{
			"resource": resource,
			"id":       id,
		},
	}
}

// NewRateLimitError creates a rate limit error
func NewRateLimitError(retryAfter int) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryRateLimit,
		StatusCode: http.StatusTooManyRequests,
		Code:       "RATE_LIMIT_EXCEEDED",
		Message:    "rate limit exceeded",
		Details: map[string]interface{}{
			"retryAfter": retryAfter,
		},
	}
}

// System Errors (5xx)

// NewInternalError creates an internal server error
func NewInternalError(message string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategorySystem,
		StatusCode: http.StatusInternalServerError,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		Cause:      cause,
	}
}

// NewDatabaseError creates a database error
func NewDatabaseError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryDatabase,
		StatusCode: http.StatusInternalServerError,
		Code:       "DATABASE_ERROR",
		Message:    fmt.Sprintf("database error during %s", operation),
		Cause:      cause,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// NewCacheError creates a cache error
func NewCacheError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryCache,
		StatusCode: http.StatusInternalServerError,
		Code:       "CACHE_ERROR",
		Message:    fmt.Sprintf("cache error during %s", operation),
		Cause:      cause,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// Categorize categorizes an existing error
func Categorize(err error) *CategorizedError {
	if err == nil {
		return nil
	}

	// Already categorized somewhere in the chain
	var catErr *CategorizedError
	if stderrors.As(err, &catErr) {
		return catErr
	}

	var svcErr *types.ServiceError
	if stderrors.As(err, &svcErr) {
		return categorizeServiceError(svcErr)
	}

	// Default to internal error
	return NewInternalError("unexpected error", err)
}

// categorizeServiceError categorizes a ServiceError
func categorizeServiceError(err *types.ServiceError) *CategorizedError {
	catErr := &CategorizedError{
		Category:   CategorySystem,
		StatusCode: http.StatusInternalServerError,
		Code:       err.Code,
		Message:    err.Message,
		Details:    err.Details,
	}

	switch err.Code {
	case "NOT_FOUND", "ACCOUNT_NOT_FOUND":
		catErr.Category, catErr.StatusCode = CategoryNotFound, http.StatusNotFound
	case "FORBIDDEN":
		catErr.Category, catErr.StatusCode = CategoryAuthorization, http.StatusForbidden
	case "INVALID_PARAMETER", CodeAccountFileMismatch:
		catErr.Category, catErr.StatusCode = CategoryValidation, http.StatusBadRequest
	case CodeEmptyFile:
		catErr.Category, catErr.StatusCode = CategoryFile, http.StatusBadRequest
	case CodeUnsupportedFileType:
		catErr.Category, catErr.StatusCode = CategoryFile, http.StatusUnsupportedMediaType
	case CodeFileTooLarge:
		catErr.Category, catErr.StatusCode = CategoryFile, http.StatusRequestEntityTooLarge
	case CodeUnrecognizedLayout:
		catErr.Category, catErr.StatusCode = CategoryFile, http.StatusUnprocessableEntity
	case CodeDuplicateImport:
		catErr.Category, catErr.StatusCode = CategoryConflict, http.StatusConflict
	}
	return catErr
}

// IsCode reports whether err carries the given error code
func IsCode(err error, code string) bool {
	var catErr *CategorizedError
	if stderrors.As(err, &catErr) {
		return catErr.Code == code
	}
	return false
}

// IsFileLevel reports whether err rejects a whole file before any holding changes
func IsFileLevel(err error) bool {
	var catErr *CategorizedError
	if !stderrors.As(err, &catErr) {
		return false
	}
	switch catErr.Code {
	case CodeUnsupportedFileType, CodeFileTooLarge, CodeEmptyFile, CodeUnrecognizedLayout,
		CodeAccountFileMismatch, CodeDuplicateImport:
		return true
	}
	return false
}

// GetHTTPStatusCode returns the HTTP status code for an error
func GetHTTPStatusCode(err error) int {
	if catErr := Categorize(err); catErr != nil {
		return catErr.StatusCode
	}
	return http.StatusInternalServerError
}

// IsUserError determines if an error is a user error (4xx)
func IsUserError(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}

	return catErr.StatusCode >= 400 && catErr.StatusCode < 500
}

// IsSystemError determines if an error is a system error (5xx)
func IsSystemError(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}

	return catErr.StatusCode >= 500
}
