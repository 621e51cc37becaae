package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/portfolio-importer/internal/layout"
	"github.com/portfolio-importer/internal/refdata"
	"github.com/portfolio-importer/internal/service"
	"github.com/portfolio-importer/internal/sheet"
	"github.com/portfolio-importer/internal/types"
)

// pipelineFlags are shared by every subcommand that plans a file
type pipelineFlags struct {
	uploadKind  string
	contentType string
	refData     string
	scanRows    int
	matchRatio  float64
}

func (p *pipelineFlags) register(f *flag.FlagSet) {
	f.StringVar(&p.uploadKind, "kind", "holdings", "What the file contains (holdings, transactions).")
	f.StringVar(&p.contentType, "content-type", "", "Declared content type, as a browser would send it.")
	f.StringVar(&p.refData, "refdata", "", "YAML file overriding the embedded reference tables.")
	f.IntVar(&p.scanRows, "scan-rows", layout.DefaultScanRows, "Rows scanned for a header.")
	f.Float64Var(&p.matchRatio, "match-ratio", layout.DefaultMatchRatio, "Share of a layout's required headers that must match.")
}

// plan reads fileName and runs the pipeline stages up to classification
func (p *pipelineFlags) plan(fileName string) (*service.Plan, error) {
	uploadKind, ok := types.ParseUploadKind(p.uploadKind)
	if !ok {
		return nil, fmt.Errorf("unknown kind %q", p.uploadKind)
	}
	tables, err := refdata.LoadOrDefault(p.refData)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(fileName)
	if err != nil {
		return nil, err
	}
	if len(content) == 0 {
		return nil, fmt.Errorf("%s is empty", fileName)
	}

	base := filepath.Base(fileName)
	kind, err := sheet.DetectKind(base, p.contentType, content)
	if err != nil {
		return nil, err
	}
	pipeline := service.NewPipeline(tables, p.scanRows, p.matchRatio)
	return pipeline.Plan(base, kind, uploadKind, content)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
