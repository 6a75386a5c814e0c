package exporter

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"

	"stockpipe/internal/config"
	"stockpipe/pkg/contracts/domain"
)

// utf8BOM helps Excel recognize UTF-8
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVSink mirrors every table as <csv dir>/<name>.csv
type CSVSink struct {
	paths     *config.Paths
	bomPrefix bool
	logger    *slog.Logger
}

// NewCSVSink creates a CSV mirror writer
func NewCSVSink(paths *config.Paths, logger *slog.Logger) *CSVSink {
	return &CSVSink{paths: paths, bomPrefix: true, logger: logger}
}

// Name implements Sink
func (s *CSVSink) Name() string { return config.MirrorCSV }

// Write implements Sink; every table is an independent artifact
func (s *CSVSink) Write(ctx context.Context, tables []domain.Dataset) ([]Artifact, []error) {
	var (
		written []Artifact
		errs    []error
	)
	for _, ds := range tables {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		path := s.paths.CSVFile(ds.TableName())
		if err := s.WriteTable(path, ds); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ds.TableName(), err))
			continue
		}
		s.logger.DebugContext(ctx, "csv mirror written", slog.String("file_path", path), slog.Int("record_count", ds.Len()))
		written = append(written, Artifact{Name: ds.TableName(), Format: s.Name(), Path: path, Rows: ds.Len()})
	}
	return written, errs
}

// WriteTable atomically writes one table as CSV with a header row
func (s *CSVSink) WriteTable(path string, ds domain.Dataset) error {
	return WriteAtomic(path, func(w io.Writer) error {
		if s.bomPrefix {
			if _, err := w.Write(utf8BOM); err != nil {
				return fmt.Errorf("failed to write BOM: %w", err)
			}
		}

		cw := csv.NewWriter(w)
		header := make([]string, len(ds.Schema()))
		for i, c := range ds.Schema() {
			header[i] = c.Name
		}
		if err := cw.Write(header); err != nil {
			return fmt.Errorf("failed to write headers: %w", err)
		}

		record := make([]string, len(header))
		for i := 0; i < ds.Len(); i++ {
			for j, v := range ds.Cells(i) {
				record[j] = formatCell(v)
			}
			if err := cw.Write(record); err != nil {
				return fmt.Errorf("failed to write record %d: %w", i, err)
			}
		}
		cw.Flush()
		return cw.Error()
	})
}

// Remove implements Sink
func (s *CSVSink) Remove(_ context.Context, names []string) error {
	for _, name := range names {
		if _, err := removeIfExists(s.paths.CSVFile(name)); err != nil {
			return err
		}
	}
	return nil
}
