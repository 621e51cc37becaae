package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/portfolio-importer/internal/layout"
	"github.com/portfolio-importer/internal/service"
	"github.com/portfolio-importer/internal/types"
)

type detectCmd struct {
	pipelineFlags
}

func (*detectCmd) Name() string     { return "detect" }
func (*detectCmd) Synopsis() string { return "show the layout detected for every sheet of a file" }
func (*detectCmd) Usage() string {
	return `importctl detect [-kind holdings|transactions] [-refdata <file>] <file>

  Prints the file kind and, per sheet, the detected layout, header row and
  column map as JSON. Nothing is written anywhere.
`
}

func (c *detectCmd) SetFlags(f *flag.FlagSet) {
	c.pipelineFlags.register(f)
}

type sheetDetection struct {
	Sheet       string            `json:"sheet"`
	Recognized  bool              `json:"recognized"`
	Layout      types.LayoutKind  `json:"layout,omitempty"`
	HeaderRow   int               `json:"header_row,omitempty"` // 1-based
	Confidence  layout.Confidence `json:"confidence,omitempty"`
	Columns     layout.ColumnMap  `json:"columns,omitempty"`
	Notes       []string          `json:"notes,omitempty"`
	RowsSeen    int               `json:"rows_seen"`
	SkippedRows int               `json:"skipped_rows"`
	SkipReason  string            `json:"skip_reason,omitempty"`
}

func detections(plan *service.Plan) []sheetDetection {
	out := make([]sheetDetection, 0, len(plan.Sheets))
	for _, sp := range plan.Sheets {
		d := sheetDetection{
			Sheet:       sp.Name,
			Recognized:  sp.Recognized,
			RowsSeen:    sp.RowsSeen,
			SkippedRows: sp.Skipped,
			SkipReason:  sp.Note,
		}
		if sp.Recognized {
			d.Layout = sp.Layout.Kind
			d.HeaderRow = sp.Layout.HeaderRowIndex + 1
			d.Confidence = sp.Layout.Confidence
			d.Columns = sp.Columns
			d.Notes = sp.Layout.Notes
		}
		out = append(out, d)
	}
	return out
}

func (c *detectCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "detect takes exactly one file")
		return subcommands.ExitUsageError
	}

	plan, err := c.plan(f.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	if err := writeJSON(os.Stdout, map[string]interface{}{
		"file_kind":   plan.FileKind,
		"upload_kind": plan.UploadKind,
		"sheets":      detections(plan),
	}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
