package sheet

import (
	"bytes"
	"fmt"

	"github.com/extrame/xls"

	"github.com/portfolio-importer/internal/types"
)

func extractXLS(data []byte) (sheets []RawSheet, err error) {
	// the BIFF reader panics on some truncated files
	defer func() {
		if r := recover(); r != nil {
			sheets, err = nil, fmt.Errorf("failed to read legacy workbook: %v", r)
		}
	}()

	book, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("failed to open legacy workbook: %w", err)
	}

	for i := 0; i < book.NumSheets(); i++ {
		ws := book.GetSheet(i)
		if ws == nil {
			continue
		}

		rows := make([][]string, 0, int(ws.MaxRow)+1)
		for r := 0; r <= int(ws.MaxRow); r++ {
			row := ws.Row(r)
			if row == nil {
				rows = append(rows, nil)
				continue
			}
			cells := make([]string, 0, row.LastCol())
			for c := 0; c < row.LastCol(); c++ {
				cells = append(cells, row.Col(c))
			}
			rows = append(rows, cells)
		}

		name := ws.Name
		if name == "" {
			name = fmt.Sprintf("Sheet%d", i+1)
		}
		sheets = append(sheets, RawSheet{Name: name, Source: types.FileXLS, Rows: rows})
	}
	return sheets, nil
}
