package service

import (
	"path/filepath"
	"strings"
	"unicode"

	apperrors "github.com/portfolio-importer/internal/errors"
	"github.com/portfolio-importer/internal/models"
	"github.com/portfolio-importer/internal/types"
)

// ClientIDFromFileName returns the six character broker client id embedded
// in an export name such as holdings-YG7227.xlsx or YG7227_holdings.csv.
// A candidate must mix letters and digits, so words like EQUITY never match.
func ClientIDFromFileName(fileName string) (string, bool) {
	base := strings.ToUpper(strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName)))
	tokens := strings.FieldsFunc(base, func(r rune) bool {
		return r == '-' || r == '_' || r == '.' || unicode.IsSpace(r)
	})
	for _, token := range tokens {
		if len(token) == 6 && isAlphanumeric(token) && hasLetterAndDigit(token) {
			return token, true
		}
	}
	return "", false
}

func isAlphanumeric(s string) bool {
	for _, r := range s {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

func hasLetterAndDigit(s string) bool {
	var letter, digit bool
	for _, r := range s {
		letter = letter || unicode.IsLetter(r)
		digit = digit || unicode.IsDigit(r)
	}
	return letter && digit
}

// CheckAccountFileMatch rejects spreadsheet and CSV exports whose name
// carries another account's client id. PDFs are statements that may cover
// several accounts, so a mismatch there is reported but not enforced.
func CheckAccountFileMatch(fileName string, kind types.FileKind, account *models.PlatformAccount) (mismatch string, err error) {
	fileClientID, ok := ClientIDFromFileName(fileName)
	if !ok || account.ClientID == "" || strings.EqualFold(fileClientID, account.ClientID) {
		return "", nil
	}
	if kind == types.FilePDF {
		return fileClientID, nil
	}
	return fileClientID, apperrors.NewAccountFileMismatchError(fileName, fileClientID, account.ClientID)
}
