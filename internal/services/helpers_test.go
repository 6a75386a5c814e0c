package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"stockpipe/internal/aggregation"
	"stockpipe/internal/config"
	"stockpipe/internal/exporter"
	"stockpipe/internal/shared/testutil"
	"stockpipe/pkg/contracts/domain"
)

func testPaths(t *testing.T) *config.Paths {
	t.Helper()
	dir := t.TempDir()
	return &config.Paths{
		OutputDir:    dir,
		ManifestFile: filepath.Join(dir, config.ManifestFileName),
		CSVDir:       filepath.Join(dir, config.CSVMirrorDir),
		SQLiteFile:   filepath.Join(dir, config.SQLiteFileName),
		WorkbookFile: filepath.Join(dir, config.WorkbookFileName),
	}
}

func record(ticker, date, sector, exchange string, notes *string, open, close float64) domain.CleanRecord {
	d := domain.Date(date)
	return domain.CleanRecord{
		Ticker:     domain.Ptr(ticker),
		TradeDate:  &d,
		OpenPrice:  domain.Ptr(open),
		ClosePrice: domain.Ptr(close),
		Volume:     domain.Ptr(100.0),
		Sector:     domain.Ptr(sector),
		Exchange:   domain.Ptr(exchange),
		Notes:      notes,
	}
}

// persistSample writes the clean table and all views for three tickers
func persistSample(t *testing.T, paths *config.Paths) {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)

	present := map[string]bool{}
	for _, f := range domain.RequiredFields {
		present[f] = true
	}
	clean := &domain.CleanTable{
		Records: []domain.CleanRecord{
			record("MSFT", "2024-01-03", "tech", "nasdaq", domain.Ptr("flat"), 300, 305),
			record("AAPL", "2024-01-02", "tech", "nasdaq", domain.Ptr("gap up"), 150, 151),
			record("XOM", "2024-01-02", "energy", "nyse", nil, 100, 99),
		},
		Present: present,
	}

	res, err := aggregation.NewEngine(aggregation.Options{WeekStart: time.Monday}, logger).Compute(context.Background(), clean)
	require.NoError(t, err)

	tables := append([]domain.Dataset{clean.Table()}, res.Views.Datasets()...)
	_, err = exporter.NewStore(paths, logger).Persist(context.Background(), tables, nil)
	require.NoError(t, err)
}
