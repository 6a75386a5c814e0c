package exporter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/parquet-go/parquet-go"

	"stockpipe/internal/config"
	"stockpipe/pkg/contracts/domain"
)

// WriteParquet atomically writes a typed table to path. The column list,
// including the logical column types, is stored in the file footer.
func WriteParquet[T domain.Row](path string, t *domain.Table[T]) error {
	meta, err := json.Marshal(t.Columns)
	if err != nil {
		return fmt.Errorf("failed to encode column metadata: %w", err)
	}

	return WriteAtomic(path, func(w io.Writer) error {
		pw := parquet.NewGenericWriter[T](w, parquet.KeyValueMetadata(config.ParquetColumnsKey, string(meta)))
		if _, err := pw.Write(t.Rows); err != nil {
			return fmt.Errorf("failed to write rows: %w", err)
		}
		if err := pw.Close(); err != nil {
			return fmt.Errorf("failed to finalize parquet: %w", err)
		}
		return nil
	})
}

// ReadView reads a typed table back from a Parquet file
func ReadView[T domain.Row](path, name string) (*domain.Table[T], error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	pf, err := parquet.OpenFile(f, st.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet %s: %w", path, err)
	}

	columns, err := columnsOf(pf, name)
	if err != nil {
		return nil, err
	}

	r := parquet.NewGenericReader[T](pf)
	defer r.Close()

	rows := make([]T, r.NumRows())
	read := 0
	for read < len(rows) {
		n, err := r.Read(rows[read:])
		read += n
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read rows of %s: %w", path, err)
		}
	}
	return domain.NewTable(name, columns, rows[:read]), nil
}

// columnsOf prefers the footer metadata and falls back to the known schema
func columnsOf(pf *parquet.File, name string) ([]domain.Column, error) {
	if raw, ok := pf.Lookup(config.ParquetColumnsKey); ok {
		var cols []domain.Column
		if err := json.Unmarshal([]byte(raw), &cols); err != nil {
			return nil, fmt.Errorf("invalid column metadata in %s: %w", name, err)
		}
		return cols, nil
	}
	if cols, ok := domain.ColumnsFor(name); ok {
		return cols, nil
	}
	return nil, fmt.Errorf("no column metadata for %s", name)
}

// ReadDataset reads a named table in its typed form
func ReadDataset(path, name string) (domain.Dataset, error) {
	switch name {
	case domain.CleanedTableName:
		return ReadView[domain.CleanRecord](path, name)
	case domain.ViewDaily:
		return ReadView[domain.DailyRow](path, name)
	case domain.ViewWeekly:
		return ReadView[domain.WeeklyRow](path, name)
	case domain.ViewTicker:
		return ReadView[domain.TickerRow](path, name)
	case domain.ViewSector:
		return ReadView[domain.SectorRow](path, name)
	case domain.ViewExchange:
		return ReadView[domain.ExchangeRow](path, name)
	case domain.ViewNotes:
		return ReadView[domain.NotesRow](path, name)
	}
	return nil, fmt.Errorf("unknown table %q", name)
}

// writeDataset writes any of the known tables to Parquet
func writeDataset(path string, ds domain.Dataset) error {
	switch t := ds.(type) {
	case *domain.Table[domain.CleanRecord]:
		return WriteParquet(path, t)
	case *domain.Table[domain.DailyRow]:
		return WriteParquet(path, t)
	case *domain.Table[domain.WeeklyRow]:
		return WriteParquet(path, t)
	case *domain.Table[domain.TickerRow]:
		return WriteParquet(path, t)
	case *domain.Table[domain.SectorRow]:
		return WriteParquet(path, t)
	case *domain.Table[domain.ExchangeRow]:
		return WriteParquet(path, t)
	case *domain.Table[domain.NotesRow]:
		return WriteParquet(path, t)
	}
	return fmt.Errorf("unsupported table type %T", ds)
}
