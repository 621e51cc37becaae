package layout

// MapColumns maps canonical fields to columns of the header row. Known layouts
// compare normalized header names exactly; generic layouts use the synonym
// dictionary. Each column serves at most one field, and for every field the
// earliest declared synonym that matches an unclaimed column wins. A field
// may be listed again later as a fallback, tried only if still unmapped.
func MapColumns(detected DetectedLayout, header []string) ColumnMap {
	columns, generic := columnsFor(detected)
	if columns == nil {
		return ColumnMap{}
	}

	matchers := make([]func(string) bool, len(header))
	for c, cell := range header {
		if generic {
			words := headerWords(cell)
			matchers[c] = func(synonym string) bool { return matchesSynonym(words, synonym) }
		} else {
			token := normalizeToken(cell)
			matchers[c] = func(synonym string) bool { return token != "" && token == synonym }
		}
	}

	mapped := make(ColumnMap, len(columns))
	claimed := make(map[int]bool, len(header))
	for _, col := range columns {
		if mapped.Has(col.field) {
			continue
		}
	synonyms:
		for _, synonym := range col.synonyms {
			for c := range header {
				if !claimed[c] && matchers[c](synonym) {
					mapped[col.field] = c
					claimed[c] = true
					break synonyms
				}
			}
		}
	}
	return mapped
}

func columnsFor(detected DetectedLayout) ([]column, bool) {
	if detected.Kind.IsGeneric() {
		return genericColumns, true
	}
	for _, def := range definitions {
		if def.kind == detected.Kind {
			return def.columns, false
		}
	}
	return nil, false
}
