// Package sheet turns uploaded files into raw tabular sheets.
//
// Every container (CSV, XLSX, XLS, PDF) is reduced to the same RawSheet shape,
// rows of string cells, so that layout detection and normalization never need
// to know where a sheet came from.
package sheet

import (
	"bytes"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"unicode/utf8"

	apperrors "github.com/portfolio-importer/internal/errors"
	"github.com/portfolio-importer/internal/types"
)

// RawSheet is one table of string cells. Rows may be ragged.
type RawSheet struct {
	Name   string
	Source types.FileKind
	Rows   [][]string
}

// Cell returns the trimmed cell at row r, column c, or "" when out of range
func (s RawSheet) Cell(r, c int) string {
	if r < 0 || r >= len(s.Rows) || c < 0 || c >= len(s.Rows[r]) {
		return ""
	}
	return strings.TrimSpace(s.Rows[r][c])
}

// IsBlank reports whether the sheet has no non-empty cell
func (s RawSheet) IsBlank() bool {
	for _, row := range s.Rows {
		if !IsBlankRow(row) {
			return false
		}
	}
	return true
}

// IsBlankRow reports whether every cell of the row is empty after trimming
func IsBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

var (
	magicZip = []byte("PK\x03\x04")
	magicOLE = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
	magicPDF = []byte("%PDF-")
)

// DetectKind resolves the container format from the declared name and content
// type and confirms it against the file signature. A declared kind that the
// content contradicts is rejected.
func DetectKind(fileName, contentType string, data []byte) (types.FileKind, error) {
	sniffed, ok := sniffKind(data)
	if !ok {
		return "", apperrors.NewUnsupportedFileTypeError(fileName, "content is not a spreadsheet, CSV or PDF")
	}

	declared, known := declaredKind(fileName, contentType)
	if !known {
		return "", apperrors.NewUnsupportedFileTypeError(fileName, "file extension is not csv, xlsx, xls or pdf")
	}
	if declared != "" && declared != sniffed {
		return "", apperrors.NewUnsupportedFileTypeError(fileName,
			fmt.Sprintf("declared as %s but content is %s", declared, sniffed))
	}
	return sniffed, nil
}

func sniffKind(data []byte) (types.FileKind, bool) {
	switch {
	case bytes.HasPrefix(data, magicZip):
		return types.FileXLSX, true
	case bytes.HasPrefix(data, magicOLE):
		return types.FileXLS, true
	case bytes.HasPrefix(data, magicPDF):
		return types.FilePDF, true
	case looksLikeText(data):
		return types.FileCSV, true
	}
	return "", false
}

// looksLikeText accepts UTF-16 with a BOM, valid UTF-8, and single-byte text without NULs
func looksLikeText(data []byte) bool {
	if bytes.HasPrefix(data, []byte{0xFF, 0xFE}) || bytes.HasPrefix(data, []byte{0xFE, 0xFF}) {
		return true
	}
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	if bytes.IndexByte(head, 0) >= 0 {
		return false
	}
	if utf8.Valid(head) {
		return true
	}
	detected := http.DetectContentType(head)
	return strings.HasPrefix(detected, "text/")
}

// declaredKind maps the extension, or failing that the content type, to a kind.
// known is false when a declared type exists but is not one we import.
func declaredKind(fileName, contentType string) (kind types.FileKind, known bool) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv", ".txt":
		return types.FileCSV, true
	case ".xlsx":
		return types.FileXLSX, true
	case ".xls":
		return types.FileXLS, true
	case ".pdf":
		return types.FilePDF, true
	case "":
	default:
		return "", false
	}

	mediaType := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	switch mediaType {
	case "text/csv", "application/csv", "text/plain":
		return types.FileCSV, true
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return types.FileXLSX, true
	case "application/vnd.ms-excel":
		return types.FileXLS, true
	case "application/pdf":
		return types.FilePDF, true
	case "", "application/octet-stream":
		return "", true
	}
	return "", false
}

// Extract parses the file content into sheets according to its kind
func Extract(kind types.FileKind, fileName string, data []byte) ([]RawSheet, error) {
	var (
		sheets []RawSheet
		err    error
	)

	switch kind {
	case types.FileCSV:
		sheets, err = extractCSV(fileName, data)
	case types.FileXLSX:
		sheets, err = extractXLSX(data)
	case types.FileXLS:
		sheets, err = extractXLS(data)
	case types.FilePDF:
		sheets, err = extractPDF(data)
	default:
		return nil, apperrors.NewUnsupportedFileTypeError(fileName, fmt.Sprintf("no extractor for %q", kind))
	}
	if err != nil {
		return nil, apperrors.NewUnsupportedFileTypeError(fileName, err.Error())
	}

	nonBlank := sheets[:0]
	for _, s := range sheets {
		if !s.IsBlank() {
			nonBlank = append(nonBlank, s)
		}
	}
	if len(nonBlank) == 0 {
		return nil, apperrors.NewEmptyFileError(fileName)
	}
	return nonBlank, nil
}
