package dataprocessing

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"stockpipe/pkg/contracts/domain"
)

// missingTokens is the fixed set of cell values treated as null. Matching
// is exact and case-sensitive on the trimmed cell.
var missingTokens = map[string]struct{}{
	"":     {},
	"NA":   {},
	"N/A":  {},
	"na":   {},
	"NaN":  {},
	"null": {},
	"None": {},
	"-":    {},
}

// IsMissing reports whether a trimmed cell is a missing token
func IsMissing(cell string) bool {
	_, ok := missingTokens[cell]
	return ok
}

// CleanReport summarizes what canonicalization did to the source
type CleanReport struct {
	RowsIn      int              `json:"rows_in"`
	Synthesized []string         `json:"synthesized,omitempty"`
	Extra       []string         `json:"extra_columns,omitempty"`
	Coercion    map[string]int   `json:"coercion_failures,omitempty"`
	Warnings    []domain.Warning `json:"-"`
}

// CoercionFailures returns the total number of cells nulled by coercion
func (r *CleanReport) CoercionFailures() int {
	n := 0
	for _, c := range r.Coercion {
		n += c
	}
	return n
}

// Canonicalize maps a normalized table onto CleanRecords: missing tokens
// become null, numbers and dates are coerced, text is re-cased, required
// columns absent from the source are synthesized as all-null, and any
// other column is left behind and reported.
func Canonicalize(t *NormalizedTable) (*domain.CleanTable, *CleanReport) {
	report := &CleanReport{RowsIn: len(t.Rows), Coercion: map[string]int{}}
	samples := map[string]string{}

	idx := make(map[string]int, len(domain.RequiredFields))
	present := make(map[string]bool, len(domain.RequiredFields))
	for _, f := range domain.RequiredFields {
		i := t.ColumnIndex(f)
		idx[f] = i
		if i >= 0 {
			present[f] = true
			continue
		}
		report.Synthesized = append(report.Synthesized, f)
		report.Warnings = append(report.Warnings, domain.Warning{
			Type:    domain.WarnSchemaIncomplete,
			Message: fmt.Sprintf("column %s absent from source, synthesized as null", f),
			Column:  f,
		})
	}
	for _, c := range t.Columns {
		if _, ok := idx[c]; !ok {
			report.Extra = append(report.Extra, c)
		}
	}
	if len(report.Extra) > 0 {
		report.Warnings = append(report.Warnings, domain.Warning{
			Type:    domain.WarnExtraColumn,
			Message: "columns not carried into the clean table: " + strings.Join(report.Extra, ", "),
			Count:   len(report.Extra),
		})
	}

	text := func(row []string, field string, upper bool) *string {
		v, ok := cellOf(row, idx[field])
		if !ok {
			return nil
		}
		if upper {
			v = strings.ToUpper(v)
		} else {
			v = strings.ToLower(v)
		}
		return &v
	}
	number := func(row []string, field string) *float64 {
		v, ok := cellOf(row, idx[field])
		if !ok {
			return nil
		}
		f, err := ParseNumber(v)
		if err != nil {
			report.Coercion[field]++
			if _, seen := samples[field]; !seen {
				samples[field] = v
			}
			return nil
		}
		return &f
	}

	records := make([]domain.CleanRecord, len(t.Rows))
	for r, row := range t.Rows {
		rec := domain.CleanRecord{
			Ticker:     text(row, domain.FieldTicker, true),
			OpenPrice:  number(row, domain.FieldOpenPrice),
			ClosePrice: number(row, domain.FieldClosePrice),
			Volume:     number(row, domain.FieldVolume),
			Sector:     text(row, domain.FieldSector, false),
			Exchange:   text(row, domain.FieldExchange, false),
			Notes:      text(row, domain.FieldNotes, false),
			Validated:  text(row, domain.FieldValidated, false),
			Country:    UnknownCountry,
		}
		if v, ok := cellOf(row, idx[domain.FieldTradeDate]); ok {
			d, err := ParseTradeDate(v)
			if err != nil {
				report.Coercion[domain.FieldTradeDate]++
				if _, seen := samples[domain.FieldTradeDate]; !seen {
					samples[domain.FieldTradeDate] = v
				}
			} else {
				rec.TradeDate = &d
			}
		}
		records[r] = rec
	}

	cols := make([]string, 0, len(report.Coercion))
	for c := range report.Coercion {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	for _, c := range cols {
		report.Warnings = append(report.Warnings, domain.Warning{
			Type:    domain.WarnCellCoercion,
			Message: fmt.Sprintf("%d cells in %s could not be parsed (first: %q)", report.Coercion[c], c, samples[c]),
			Column:  c,
			Count:   report.Coercion[c],
		})
	}

	return &domain.CleanTable{Records: records, Present: present}, report
}

// cellOf returns the cell at column i, and false for a null or absent cell
func cellOf(row []string, i int) (string, bool) {
	if i < 0 || i >= len(row) {
		return "", false
	}
	v := row[i]
	if IsMissing(v) {
		return "", false
	}
	return v, true
}

// ParseNumber parses a plain decimal cell. Non-finite results are rejected,
// and so are Go-only literal forms (hex floats, digit separators).
func ParseNumber(s string) (float64, error) {
	if strings.ContainsAny(s, "xXpP_") {
		return 0, fmt.Errorf("not a decimal number %q", s)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("non-finite number %q", s)
	}
	return f, nil
}

var (
	numericDate = regexp.MustCompile(`^(\d{1,2})([/.-])(\d{1,2})([/.-]\d{2,4}.*)$`)
	allDigits   = regexp.MustCompile(`^\d+$`)
)

// ParseTradeDate parses a date in any common layout, month-first for
// ambiguous numeric forms. A numeric form that is only valid day-first
// (13/01/2024) is retried that way. Times and zones are discarded. A bare
// number is only a date as YYYYMMDD, never an epoch timestamp.
func ParseTradeDate(s string) (domain.Date, error) {
	if allDigits.MatchString(s) && len(s) != 8 {
		return "", fmt.Errorf("bare number %q is not a date", s)
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		m := numericDate.FindStringSubmatch(s)
		if m == nil {
			return "", err
		}
		swapped := m[3] + m[2] + m[1] + m[4]
		var retryErr error
		t, retryErr = dateparse.ParseIn(swapped, time.UTC)
		if retryErr != nil {
			return "", err
		}
	}
	return domain.DateOf(t), nil
}
