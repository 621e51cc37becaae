package sheet

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/portfolio-importer/internal/types"
)

// cellGap separates columns in extracted PDF text: a tab or two or more spaces
var cellGap = regexp.MustCompile(`\t+| {2,}`)

// extractPDF returns one sheet holding every text line of the document, split into cells
func extractPDF(data []byte) (sheets []RawSheet, err error) {
	defer func() {
		if r := recover(); r != nil {
			sheets, err = nil, fmt.Errorf("failed to read pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}

	var rows [][]string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to read text of page %d: %w", i, err)
		}
		rows = append(rows, splitLines(text)...)
	}

	return []RawSheet{{Name: "pdf", Source: types.FilePDF, Rows: rows}}, nil
}

func splitLines(text string) [][]string {
	var rows [][]string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		rows = append(rows, cellGap.Split(line, -1))
	}
	return rows
}

// Text rebuilds the plain text of a sheet, one line per row
func (s RawSheet) Text() string {
	var b strings.Builder
	for _, row := range s.Rows {
		b.WriteString(strings.Join(row, "  "))
		b.WriteByte('\n')
	}
	return b.String()
}
