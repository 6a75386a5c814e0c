package exporter

import (
	"path/filepath"
	"testing"

	"stockpipe/internal/config"
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

func d(s string) *domain.Date {
	v := domain.Date(s)
	return &v
}

// sampleTables returns one table of every kind, each with at least one null cell
func sampleTables() []domain.Dataset {
	p := domain.Ptr[float64]
	s := domain.Ptr[string]

	return []domain.Dataset{
		domain.NewTable(domain.CleanedTableName, domain.CleanColumns, []domain.CleanRecord{
			{Ticker: s("AAPL"), TradeDate: d("2024-01-02"), OpenPrice: p(150), ClosePrice: p(151), Volume: p(1000),
				Sector: s("tech"), Exchange: s("nasdaq"), Notes: s("gap up"), Validated: s("y"),
				GapUpFlag: true, ValidatedFlag: true, Country: "USA", PriceChange: p(1)},
			{Ticker: s("XYZ"), Country: "Unknown"},
		}),
		domain.NewTable(domain.ViewDaily, domain.DailyColumns, []domain.DailyRow{
			{TradeDate: d("2024-01-02"), Ticker: s("AAPL"), AvgOpenPrice: p(150.5), AvgClosePrice: p(150.75),
				TotalVolume: 3000, GapUpCount: 1},
			{TradeDate: nil, Ticker: s("XYZ"), MissingOpen: 1, MissingClose: 1},
		}),
		domain.NewTable(domain.ViewWeekly, domain.WeeklyColumns, []domain.WeeklyRow{
			{WeekStart: d("2024-01-01"), Ticker: s("AAPL"), AvgClosePrice: p(151), AvgVolume: p(1000), AvgVolatility: p(1)},
			{WeekStart: d("2024-01-01"), Ticker: nil},
		}),
		domain.NewTable(domain.ViewTicker, domain.TickerColumns, []domain.TickerRow{
			{Ticker: s("AAPL"), AvgOpen: p(150), AvgClose: p(151), AvgVolume: p(1000), PriceChangeAvg: p(1),
				ValidatedCount: 1, GapUpCount: 1},
			{Ticker: nil, GapDownCount: 2},
		}),
		domain.NewTable(domain.ViewSector, domain.SectorColumns, []domain.SectorRow{
			{Sector: s("tech"), AvgOpen: p(150), AvgClose: p(151), TotalGapUp: 1},
			{Sector: nil},
		}),
		domain.NewTable(domain.ViewExchange, domain.ExchangeColumns, []domain.ExchangeRow{
			{Exchange: s("nyse"), AvgOpen: p(100), AvgClose: p(101), TotalVolume: 10},
			{Exchange: nil, AvgOpen: nil},
		}),
		domain.NewTable(domain.ViewNotes, domain.NotesColumns, []domain.NotesRow{
			{Notes: s("gap up"), Count: 2, AvgPriceChange: p(0.5), AvgVolume: p(200)},
			{Notes: nil, Count: 1},
		}),
	}
}
