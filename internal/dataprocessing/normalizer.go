package dataprocessing

import (
	"fmt"
	"strings"
	"unicode"

	apperrors "stockpipe/internal/errors"
	"stockpipe/pkg/contracts/domain"
)

// NormalizeName converts a raw header into snake_case: runs of anything but
// ASCII letters and digits become a single underscore, the result is
// lower-cased and stripped of leading and trailing underscores.
func NormalizeName(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	pendingSep := false
	for _, r := range strings.TrimSpace(s) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		pendingSep = true
	}
	return b.String()
}

// HeaderMapping is the result of normalizing a header row
type HeaderMapping struct {
	// Names holds the normalized names of the kept columns
	Names []string
	// Index maps each kept column to its position in the raw header
	Index []int
	// Dropped lists raw headers that normalized to the empty string
	Dropped []string
}

// NormalizeHeader normalizes every header cell. Two raw headers colliding on
// one normalized name is a SCHEMA error; the columns are never merged.
func NormalizeHeader(header []string) (*HeaderMapping, error) {
	m := &HeaderMapping{
		Names: make([]string, 0, len(header)),
		Index: make([]int, 0, len(header)),
	}
	seen := make(map[string]string, len(header))

	for i, raw := range header {
		name := NormalizeName(raw)
		if name == "" {
			m.Dropped = append(m.Dropped, raw)
			continue
		}
		if first, dup := seen[name]; dup {
			return nil, apperrors.NewSchemaError(name, first, raw)
		}
		seen[name] = raw
		m.Names = append(m.Names, name)
		m.Index = append(m.Index, i)
	}
	return m, nil
}

// NormalizedTable is a raw table with snake_case headers and trimmed cells
type NormalizedTable struct {
	Source   string
	Columns  []string
	Rows     [][]string
	Warnings []domain.Warning
}

// ColumnIndex returns the position of a normalized column, or -1
func (t *NormalizedTable) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Normalize applies header normalization and trims surrounding whitespace
// from every cell. Unaddressable columns are dropped with a warning.
func Normalize(raw *domain.RawTable) (*NormalizedTable, error) {
	mapping, err := NormalizeHeader(raw.Header)
	if err != nil {
		return nil, err
	}

	out := &NormalizedTable{
		Source:  raw.Source,
		Columns: mapping.Names,
		Rows:    make([][]string, len(raw.Rows)),
	}
	for _, h := range mapping.Dropped {
		out.Warnings = append(out.Warnings, domain.Warning{
			Type:    domain.WarnColumnDropped,
			Message: fmt.Sprintf("header %q has no letters or digits", h),
		})
	}

	for r, row := range raw.Rows {
		cells := make([]string, len(mapping.Index))
		for c, src := range mapping.Index {
			if src < len(row) {
				cells[c] = strings.TrimSpace(row[src])
			}
		}
		out.Rows[r] = cells
	}
	return out, nil
}
