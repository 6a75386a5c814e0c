package exporter

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"stockpipe/internal/config"
	"stockpipe/internal/shared/testutil"
	"stockpipe/pkg/contracts/domain"
)

func TestCSVSink_Write(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	paths := testPaths(t)
	sink := NewCSVSink(paths, logger)

	written, errs := sink.Write(context.Background(), sampleTables())
	require.Empty(t, errs)
	require.Len(t, written, len(sampleTables()))

	raw, err := os.ReadFile(paths.CSVFile(domain.ViewDaily))
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(raw, utf8BOM))

	records, err := csv.NewReader(bytes.NewReader(raw[len(utf8BOM):])).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"trade_date", "ticker", "avg_open_price", "avg_close_price", "total_volume",
		"gap_up_count", "gap_down_count", "missing_open", "missing_close"}, records[0])
	assert.Equal(t, []string{"2024-01-02", "AAPL", "150.5", "150.75", "3000", "1", "0", "0", "0"}, records[1])
	assert.Equal(t, "", records[2][0], "null renders empty")

	require.NoError(t, sink.Remove(context.Background(), []string{domain.ViewDaily}))
	assert.NoFileExists(t, paths.CSVFile(domain.ViewDaily))
}

func TestSQLiteSink_ReplacesTables(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	paths := testPaths(t)
	sink := NewSQLiteSink(paths, logger)
	ctx := context.Background()

	_, errs := sink.Write(ctx, sampleTables())
	require.Empty(t, errs)
	// a second run replaces rather than appends
	written, errs := sink.Write(ctx, sampleTables())
	require.Empty(t, errs)
	require.Len(t, written, 1)
	assert.Equal(t, config.SQLiteFileName, written[0].Name)

	db, err := sql.Open("sqlite", paths.SQLiteFile)
	require.NoError(t, err)
	defer db.Close()

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM "agg_daily"`).Scan(&n))
	assert.Equal(t, 2, n)

	var nulls int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM "agg_daily" WHERE trade_date IS NULL`).Scan(&nulls))
	assert.Equal(t, 1, nulls)

	var colType string
	require.NoError(t, db.QueryRow(`SELECT column_type FROM view_columns WHERE table_name = ? AND column_name = ?`,
		domain.ViewDaily, "trade_date").Scan(&colType))
	assert.Equal(t, string(domain.TypeDate), colType)

	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM view_columns WHERE table_name = ?`, domain.ViewNotes).Scan(&n))
	assert.Equal(t, len(domain.NotesColumns), n)

	require.NoError(t, sink.Remove(ctx, []string{domain.ViewNotes}))
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM view_columns WHERE table_name = ?`, domain.ViewNotes).Scan(&n))
	assert.Equal(t, 0, n)
}

func TestWorkbookSink_Write(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	paths := testPaths(t)

	written, errs := NewWorkbookSink(paths, logger).Write(context.Background(), sampleTables())
	require.Empty(t, errs)
	require.Len(t, written, 1)

	f, err := excelize.OpenFile(paths.WorkbookFile)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, append([]string{domain.CleanedTableName}, domain.ViewNames...), f.GetSheetList())

	rows, err := f.GetRows(domain.ViewTicker)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "ticker", rows[0][0])
	assert.Equal(t, "AAPL", rows[1][0])
}
