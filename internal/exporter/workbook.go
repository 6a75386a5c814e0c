package exporter

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/xuri/excelize/v2"

	"stockpipe/internal/config"
	"stockpipe/pkg/contracts/domain"
)

// WorkbookSink mirrors all tables into one XLSX workbook, one sheet per
// table. The workbook is rebuilt on every run, so skipped views disappear.
type WorkbookSink struct {
	path   string
	logger *slog.Logger
}

// NewWorkbookSink creates an XLSX mirror writer
func NewWorkbookSink(paths *config.Paths, logger *slog.Logger) *WorkbookSink {
	return &WorkbookSink{path: paths.WorkbookFile, logger: logger}
}

// Name implements Sink
func (s *WorkbookSink) Name() string { return config.MirrorXLSX }

// Write implements Sink; the workbook is a single artifact
func (s *WorkbookSink) Write(ctx context.Context, tables []domain.Dataset) ([]Artifact, []error) {
	if err := ctx.Err(); err != nil {
		return nil, []error{err}
	}

	f, err := buildWorkbook(tables)
	if err != nil {
		return nil, []error{err}
	}
	defer f.Close()

	err = WriteAtomic(s.path, func(w io.Writer) error {
		_, err := f.WriteTo(w)
		return err
	})
	if err != nil {
		return nil, []error{fmt.Errorf("workbook: %w", err)}
	}

	rows := 0
	for _, ds := range tables {
		rows += ds.Len()
	}
	s.logger.DebugContext(ctx, "workbook mirror written", slog.String("file_path", s.path), slog.Int("sheets", len(tables)))
	return []Artifact{{Name: config.WorkbookFileName, Format: s.Name(), Path: s.path, Rows: rows}}, nil
}

// Remove implements Sink. Nothing to do since the workbook is rebuilt.
func (s *WorkbookSink) Remove(context.Context, []string) error { return nil }

func buildWorkbook(tables []domain.Dataset) (*excelize.File, error) {
	f := excelize.NewFile()
	defaultSheet := f.GetSheetName(0)

	for i, ds := range tables {
		sheet := ds.TableName()
		if i == 0 {
			if err := f.SetSheetName(defaultSheet, sheet); err != nil {
				f.Close()
				return nil, err
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			f.Close()
			return nil, err
		}

		header := make([]any, len(ds.Schema()))
		for j, c := range ds.Schema() {
			header[j] = c.Name
		}
		if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
			f.Close()
			return nil, err
		}

		for r := 0; r < ds.Len(); r++ {
			cells := ds.Cells(r)
			row := make([]any, len(cells))
			for j, v := range cells {
				row[j] = mirrorValue(v, false)
			}
			cell, err := excelize.CoordinatesToCellName(1, r+2)
			if err != nil {
				f.Close()
				return nil, err
			}
			if err := f.SetSheetRow(sheet, cell, &row); err != nil {
				f.Close()
				return nil, err
			}
		}
	}
	return f, nil
}
