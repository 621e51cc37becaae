// Package refdata holds the read-only reference tables shared by every import:
// the symbol alias table, the ETF table and the REIT and SGB patterns.
//
// Tables are built once (from the embedded defaults or an operator supplied
// YAML file) and never modified afterwards, so a single *Tables value can be
// used from any number of goroutines.
package refdata

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

type patternSet struct {
	Symbols          []string `yaml:"symbols"`
	SymbolSuffixes   []string `yaml:"symbol_suffixes"`
	SymbolSubstrings []string `yaml:"symbol_substrings"`
	SymbolPrefixes   []string `yaml:"symbol_prefixes"`
	ISINPrefixes     []string `yaml:"isin_prefixes"`
}

type document struct {
	Aliases          map[string]string `yaml:"aliases"`
	ETF              patternSet        `yaml:"etf"`
	REIT             patternSet        `yaml:"reit"`
	SGB              patternSet        `yaml:"sgb"`
	FundISINPrefixes []string          `yaml:"fund_isin_prefixes"`
}

type matcher struct {
	symbols    map[string]struct{}
	suffixes   []string
	substrings []string
	prefixes   []string
	isin       []string
}

func newMatcher(p patternSet) matcher {
	m := matcher{
		symbols:    make(map[string]struct{}, len(p.Symbols)),
		suffixes:   upperAll(p.SymbolSuffixes),
		substrings: upperAll(p.SymbolSubstrings),
		prefixes:   upperAll(p.SymbolPrefixes),
		isin:       upperAll(p.ISINPrefixes),
	}
	for _, s := range p.Symbols {
		m.symbols[strings.ToUpper(strings.TrimSpace(s))] = struct{}{}
	}
	return m
}

func (m matcher) listed(symbol string) bool {
	_, ok := m.symbols[symbol]
	return ok
}

func (m matcher) symbolPattern(symbol string) bool {
	for _, s := range m.suffixes {
		if strings.HasSuffix(symbol, s) {
			return true
		}
	}
	for _, s := range m.substrings {
		if strings.Contains(symbol, s) {
			return true
		}
	}
	for _, p := range m.prefixes {
		if strings.HasPrefix(symbol, p) {
			return true
		}
	}
	return false
}

func (m matcher) isinPrefix(isin string) bool {
	return hasAnyPrefix(isin, m.isin)
}

// Tables is an immutable set of reference tables
type Tables struct {
	aliases   map[string]string
	etf       matcher
	reit      matcher
	sgb       matcher
	fundISINs []string
}

// Parse builds Tables from a YAML document
func Parse(data []byte) (*Tables, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse reference data: %w", err)
	}

	t := &Tables{
		aliases:   make(map[string]string, len(doc.Aliases)),
		etf:       newMatcher(doc.ETF),
		reit:      newMatcher(doc.REIT),
		sgb:       newMatcher(doc.SGB),
		fundISINs: upperAll(doc.FundISINPrefixes),
	}
	for raw, canonical := range doc.Aliases {
		key := aliasKey(raw)
		if key == "" {
			return nil, fmt.Errorf("alias %q has an empty key", raw)
		}
		canonical = strings.ToUpper(strings.TrimSpace(canonical))
		if canonical == "" {
			return nil, fmt.Errorf("alias %q maps to an empty symbol", raw)
		}
		t.aliases[key] = canonical
	}
	return t, nil
}

// Load reads Tables from a YAML file
func Load(path string) (*Tables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read reference data %s: %w", path, err)
	}
	return Parse(data)
}

var (
	defaultOnce   sync.Once
	defaultTables *Tables
)

// Default returns the tables compiled into the binary
func Default() *Tables {
	defaultOnce.Do(func() {
		t, err := Parse(defaultYAML)
		if err != nil {
			panic(fmt.Sprintf("embedded reference data is invalid: %v", err))
		}
		defaultTables = t
	})
	return defaultTables
}

// LoadOrDefault returns the tables at path, or the embedded defaults when path is empty
func LoadOrDefault(path string) (*Tables, error) {
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

// CanonicalSymbol maps a raw symbol through the alias table.
// Symbols without an alias are returned upper-cased and trimmed.
func (t *Tables) CanonicalSymbol(raw string) string {
	symbol := strings.ToUpper(strings.TrimSpace(raw))
	if canonical, ok := t.aliases[aliasKey(symbol)]; ok {
		return canonical
	}
	return symbol
}

// HasAlias reports whether raw has an alias entry
func (t *Tables) HasAlias(raw string) bool {
	_, ok := t.aliases[aliasKey(raw)]
	return ok
}

// IsSGB reports whether the symbol or ISIN identifies a sovereign gold bond
func (t *Tables) IsSGB(symbol, isin string) bool {
	return t.sgb.isinPrefix(isin) || t.sgb.listed(symbol) || t.sgb.symbolPattern(symbol)
}

// IsREIT reports whether the symbol matches a REIT pattern
func (t *Tables) IsREIT(symbol string) bool {
	return t.reit.listed(symbol) || t.reit.symbolPattern(symbol)
}

// IsETF reports whether the symbol is in the ETF table or the ISIN has a known ETF issuer prefix
func (t *Tables) IsETF(symbol, isin string) bool {
	return t.etf.listed(symbol) || t.etf.symbolPattern(symbol) || t.etf.isinPrefix(isin)
}

// IsFundISIN reports whether the ISIN belongs to the fund ISIN range
func (t *Tables) IsFundISIN(isin string) bool {
	return hasAnyPrefix(isin, t.fundISINs)
}

// aliasKey folds a symbol to letters and digits only
func aliasKey(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToUpper(s) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func upperAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func hasAnyPrefix(s string, prefixes []string) bool {
	if s == "" {
		return false
	}
	s = strings.ToUpper(s)
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
