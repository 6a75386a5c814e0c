package dataprocessing

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	apperrors "stockpipe/internal/errors"
	"stockpipe/pkg/contracts/domain"
)

// Source formats
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// SourceOptions controls how a raw source file is read
type SourceOptions struct {
	Format    string
	Delimiter rune
	Sheet     string
}

// DetectFormat returns the explicit format, or infers it from the extension
func DetectFormat(path, format string) (string, error) {
	if format != "" {
		format = strings.ToLower(format)
		if format != FormatCSV && format != FormatXLSX {
			return "", apperrors.NewAppValidationError(fmt.Sprintf("unsupported source format %q", format))
		}
		return format, nil
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	default:
		return FormatCSV, nil
	}
}

// ReadSource reads the raw table at path. Any failure to open or decode the
// file is a SOURCE_UNAVAILABLE error.
func ReadSource(ctx context.Context, path string, opts SourceOptions) (*domain.RawTable, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	format, err := DetectFormat(path, opts.Format)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatXLSX:
		return ReadXLSX(path, opts.Sheet)
	default:
		f, err := os.Open(path)
		if err != nil {
			return nil, apperrors.NewSourceUnavailableError(path, err)
		}
		defer f.Close()
		return ReadCSV(f, path, opts.Delimiter)
	}
}

// ReadCSV reads delimited text with a header row. Every cell stays a string.
func ReadCSV(r io.Reader, source string, delimiter rune) (*domain.RawTable, error) {
	reader := csv.NewReader(r)
	if delimiter != 0 {
		reader.Comma = delimiter
	}
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, apperrors.NewSourceUnavailableError(source, err)
	}
	return buildRawTable(source, records)
}

// ReadXLSX reads the named sheet, or the first sheet when sheet is empty
func ReadXLSX(path, sheet string) (*domain.RawTable, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, apperrors.NewSourceUnavailableError(path, err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, apperrors.NewSourceUnavailableError(path, errors.New("workbook has no sheets"))
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, apperrors.NewSourceUnavailableError(path, fmt.Errorf("sheet %q: %w", sheet, err))
	}
	return buildRawTable(path, rows)
}

// buildRawTable takes the first non-blank row as the header, then pads short
// rows and truncates long ones to the header width. Only zero-length records
// (excelize gap rows) are skipped; a row of empty cells is kept as a record.
func buildRawTable(source string, records [][]string) (*domain.RawTable, error) {
	start := 0
	for start < len(records) && isBlankRow(records[start]) {
		start++
	}
	if start == len(records) {
		return nil, apperrors.NewSourceUnavailableError(source, errors.New("no header row"))
	}

	header := append([]string(nil), records[start]...)
	header[0] = strings.TrimPrefix(header[0], "\uFEFF")
	width := len(header)

	rows := make([][]string, 0, len(records)-start-1)
	for _, rec := range records[start+1:] {
		if len(rec) == 0 {
			continue
		}
		row := make([]string, width)
		copy(row, rec)
		rows = append(rows, row)
	}

	return &domain.RawTable{Source: source, Header: header, Rows: rows}, nil
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
