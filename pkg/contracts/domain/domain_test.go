package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-01-02")
	require.NoError(t, err)
	assert.Equal(t, Date("2024-01-02"), d)

	_, err = ParseDate("01/02/2024")
	assert.Error(t, err)
}

func TestDateWeekStart(t *testing.T) {
	tests := []struct {
		name  string
		date  Date
		first time.Weekday
		want  Date
	}{
		{"tuesday to monday", "2024-01-02", time.Monday, "2024-01-01"},
		{"monday stays", "2024-01-01", time.Monday, "2024-01-01"},
		{"sunday to previous monday", "2024-01-07", time.Monday, "2024-01-01"},
		{"sunday start", "2024-01-03", time.Sunday, "2023-12-31"},
		{"crosses year", "2025-01-01", time.Monday, "2024-12-30"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.date.WeekStart(tt.first))
		})
	}
}

func TestCleanRecordValues(t *testing.T) {
	r := CleanRecord{
		Ticker:    Ptr("AAPL"),
		OpenPrice: Ptr(1.5),
		Country:   "USA",
		GapUpFlag: true,
	}
	vals := r.Values()
	require.Len(t, vals, len(CleanColumns))
	assert.Equal(t, "AAPL", vals[0])
	assert.Nil(t, vals[1])
	assert.Equal(t, 1.5, vals[2])
	assert.Equal(t, true, vals[9])
	assert.Equal(t, "USA", vals[12])
	assert.Nil(t, vals[13])
}

func TestViewSchemasMatchValues(t *testing.T) {
	rows := map[string]Row{
		ViewDaily:    DailyRow{},
		ViewWeekly:   WeeklyRow{},
		ViewTicker:   TickerRow{},
		ViewSector:   SectorRow{},
		ViewExchange: ExchangeRow{},
		ViewNotes:    NotesRow{},
	}
	for _, name := range ViewNames {
		cols, ok := ColumnsFor(name)
		require.True(t, ok, name)
		assert.Len(t, rows[name].Values(), len(cols), name)
	}
	_, ok := ColumnsFor("nope")
	assert.False(t, ok)
}

func TestCleanTableMissing(t *testing.T) {
	ct := &CleanTable{Present: map[string]bool{FieldTicker: true, FieldNotes: true}}
	missing := ct.Missing()
	assert.NotContains(t, missing, FieldTicker)
	assert.Contains(t, missing, FieldExchange)
	assert.Len(t, missing, len(RequiredFields)-2)
}

func TestTableFilter(t *testing.T) {
	tbl := NewTable(ViewTicker, TickerColumns, []TickerRow{
		{Ticker: Ptr("AAPL")},
		{Ticker: Ptr("MSFT")},
		{},
	})
	out := tbl.Filter(func(r TickerRow) bool { return r.Ticker != nil && *r.Ticker == "MSFT" })
	require.Equal(t, 1, out.Len())
	assert.Equal(t, "MSFT", out.Cells(0)[0])
	assert.Equal(t, []string{"ticker", "avg_open", "avg_close", "avg_volume", "price_change_avg", "validated_count", "gap_up_count", "gap_down_count"}, out.Header())
}
