package sheet

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/portfolio-importer/internal/types"
)

var csvDelimiters = []rune{',', ';', '\t'}

const sniffLines = 10

func extractCSV(fileName string, data []byte) ([]RawSheet, error) {
	text, err := decodeText(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode text: %w", err)
	}

	reader := csv.NewReader(bytes.NewReader(text))
	reader.Comma = sniffDelimiter(text)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	var rows [][]string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv: %w", err)
		}
		rows = append(rows, record)
	}

	name := strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName))
	if name == "" || name == "." {
		name = "csv"
	}
	return []RawSheet{{Name: name, Source: types.FileCSV, Rows: rows}}, nil
}

// decodeText returns UTF-8 text. A BOM selects UTF-8 or UTF-16; content that
// is not valid UTF-8 is read as Windows-1252, which is what spreadsheet tools
// on Windows write by default.
func decodeText(data []byte) ([]byte, error) {
	switch {
	case bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}),
		bytes.HasPrefix(data, []byte{0xFF, 0xFE}),
		bytes.HasPrefix(data, []byte{0xFE, 0xFF}):
		out, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), data)
		return out, err
	case utf8.Valid(data):
		return data, nil
	default:
		return charmap.Windows1252.NewDecoder().Bytes(data)
	}
}

// sniffDelimiter picks the delimiter that splits the first lines into the same
// number of fields (more than one) on every line, the header included. When
// several delimiters are consistent, or none is, the one producing more
// fields wins, and declaration order breaks remaining ties.
func sniffDelimiter(text []byte) rune {
	lines := make([]string, 0, sniffLines)
	for _, line := range strings.Split(string(text), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, strings.TrimRight(line, "\r"))
		if len(lines) == sniffLines {
			break
		}
	}
	sample := strings.Join(lines, "\n")

	best, bestConsistent, bestFields := ',', false, 0
	for _, d := range csvDelimiters {
		consistent, fields := scoreDelimiter(sample, d)
		switch {
		case consistent && !bestConsistent,
			consistent == bestConsistent && fields > bestFields:
			best, bestConsistent, bestFields = d, consistent, fields
		}
	}
	return best
}

// scoreDelimiter parses sample with d and reports whether every line has the
// same field count above one, along with the total field count.
func scoreDelimiter(sample string, d rune) (consistent bool, fields int) {
	reader := csv.NewReader(strings.NewReader(sample))
	reader.Comma = d
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	width := -1
	consistent = true
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return false, 0
		}
		fields += len(record)
		switch {
		case len(record) < 2:
			consistent = false
		case width == -1:
			width = len(record)
		case len(record) != width:
			consistent = false
		}
	}
	return consistent && width > 1, fields
}
