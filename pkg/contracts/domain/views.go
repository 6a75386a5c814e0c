package domain

// Aggregate view names
const (
	ViewDaily    = "agg_daily"
	ViewWeekly   = "agg_weekly"
	ViewTicker   = "agg_ticker"
	ViewSector   = "agg_sector"
	ViewExchange = "agg_exchange"
	ViewNotes    = "agg_notes"
)

// ViewNames lists every aggregate view in a stable order
var ViewNames = []string{ViewDaily, ViewWeekly, ViewTicker, ViewSector, ViewExchange, ViewNotes}

// DailyRow is one (trade_date, ticker) group
type DailyRow struct {
	TradeDate     *Date    `json:"trade_date" parquet:"trade_date"`
	Ticker        *string  `json:"ticker" parquet:"ticker"`
	AvgOpenPrice  *float64 `json:"avg_open_price" parquet:"avg_open_price"`
	AvgClosePrice *float64 `json:"avg_close_price" parquet:"avg_close_price"`
	TotalVolume   float64  `json:"total_volume" parquet:"total_volume"`
	GapUpCount    int64    `json:"gap_up_count" parquet:"gap_up_count"`
	GapDownCount  int64    `json:"gap_down_count" parquet:"gap_down_count"`
	MissingOpen   int64    `json:"missing_open" parquet:"missing_open"`
	MissingClose  int64    `json:"missing_close" parquet:"missing_close"`
}

var DailyColumns = []Column{
	{"trade_date", TypeDate},
	{"ticker", TypeString},
	{"avg_open_price", TypeDecimal},
	{"avg_close_price", TypeDecimal},
	{"total_volume", TypeDecimal},
	{"gap_up_count", TypeInteger},
	{"gap_down_count", TypeInteger},
	{"missing_open", TypeInteger},
	{"missing_close", TypeInteger},
}

func (r DailyRow) Values() []any {
	return []any{cell(r.TradeDate), cell(r.Ticker), cell(r.AvgOpenPrice), cell(r.AvgClosePrice),
		r.TotalVolume, r.GapUpCount, r.GapDownCount, r.MissingOpen, r.MissingClose}
}

// WeeklyRow is one (week_start, ticker) group
type WeeklyRow struct {
	WeekStart     *Date    `json:"week_start" parquet:"week_start"`
	Ticker        *string  `json:"ticker" parquet:"ticker"`
	AvgClosePrice *float64 `json:"avg_close_price" parquet:"avg_close_price"`
	AvgVolume     *float64 `json:"avg_volume" parquet:"avg_volume"`
	AvgVolatility *float64 `json:"avg_volatility" parquet:"avg_volatility"`
}

var WeeklyColumns = []Column{
	{"week_start", TypeDate},
	{"ticker", TypeString},
	{"avg_close_price", TypeDecimal},
	{"avg_volume", TypeDecimal},
	{"avg_volatility", TypeDecimal},
}

func (r WeeklyRow) Values() []any {
	return []any{cell(r.WeekStart), cell(r.Ticker), cell(r.AvgClosePrice), cell(r.AvgVolume), cell(r.AvgVolatility)}
}

// TickerRow summarizes one ticker
type TickerRow struct {
	Ticker         *string  `json:"ticker" parquet:"ticker"`
	AvgOpen        *float64 `json:"avg_open" parquet:"avg_open"`
	AvgClose       *float64 `json:"avg_close" parquet:"avg_close"`
	AvgVolume      *float64 `json:"avg_volume" parquet:"avg_volume"`
	PriceChangeAvg *float64 `json:"price_change_avg" parquet:"price_change_avg"`
	ValidatedCount int64    `json:"validated_count" parquet:"validated_count"`
	GapUpCount     int64    `json:"gap_up_count" parquet:"gap_up_count"`
	GapDownCount   int64    `json:"gap_down_count" parquet:"gap_down_count"`
}

var TickerColumns = []Column{
	{"ticker", TypeString},
	{"avg_open", TypeDecimal},
	{"avg_close", TypeDecimal},
	{"avg_volume", TypeDecimal},
	{"price_change_avg", TypeDecimal},
	{"validated_count", TypeInteger},
	{"gap_up_count", TypeInteger},
	{"gap_down_count", TypeInteger},
}

func (r TickerRow) Values() []any {
	return []any{cell(r.Ticker), cell(r.AvgOpen), cell(r.AvgClose), cell(r.AvgVolume), cell(r.PriceChangeAvg),
		r.ValidatedCount, r.GapUpCount, r.GapDownCount}
}

// SectorRow summarizes one sector
type SectorRow struct {
	Sector       *string  `json:"sector" parquet:"sector"`
	AvgOpen      *float64 `json:"avg_open" parquet:"avg_open"`
	AvgClose     *float64 `json:"avg_close" parquet:"avg_close"`
	TotalGapUp   int64    `json:"total_gap_up" parquet:"total_gap_up"`
	TotalGapDown int64    `json:"total_gap_down" parquet:"total_gap_down"`
}

var SectorColumns = []Column{
	{"sector", TypeString},
	{"avg_open", TypeDecimal},
	{"avg_close", TypeDecimal},
	{"total_gap_up", TypeInteger},
	{"total_gap_down", TypeInteger},
}

func (r SectorRow) Values() []any {
	return []any{cell(r.Sector), cell(r.AvgOpen), cell(r.AvgClose), r.TotalGapUp, r.TotalGapDown}
}

// ExchangeRow summarizes one exchange
type ExchangeRow struct {
	Exchange    *string  `json:"exchange" parquet:"exchange"`
	AvgOpen     *float64 `json:"avg_open" parquet:"avg_open"`
	AvgClose    *float64 `json:"avg_close" parquet:"avg_close"`
	TotalVolume float64  `json:"total_volume" parquet:"total_volume"`
}

var ExchangeColumns = []Column{
	{"exchange", TypeString},
	{"avg_open", TypeDecimal},
	{"avg_close", TypeDecimal},
	{"total_volume", TypeDecimal},
}

func (r ExchangeRow) Values() []any {
	return []any{cell(r.Exchange), cell(r.AvgOpen), cell(r.AvgClose), r.TotalVolume}
}

// NotesRow summarizes one distinct notes value
type NotesRow struct {
	Notes          *string  `json:"notes" parquet:"notes"`
	Count          int64    `json:"count" parquet:"count"`
	AvgPriceChange *float64 `json:"avg_price_change" parquet:"avg_price_change"`
	AvgVolume      *float64 `json:"avg_volume" parquet:"avg_volume"`
}

var NotesColumns = []Column{
	{"notes", TypeString},
	{"count", TypeInteger},
	{"avg_price_change", TypeDecimal},
	{"avg_volume", TypeDecimal},
}

func (r NotesRow) Values() []any {
	return []any{cell(r.Notes), r.Count, cell(r.AvgPriceChange), cell(r.AvgVolume)}
}

// ColumnsFor returns the schema of a named table
func ColumnsFor(name string) ([]Column, bool) {
	switch name {
	case CleanedTableName:
		return CleanColumns, true
	case ViewDaily:
		return DailyColumns, true
	case ViewWeekly:
		return WeeklyColumns, true
	case ViewTicker:
		return TickerColumns, true
	case ViewSector:
		return SectorColumns, true
	case ViewExchange:
		return ExchangeColumns, true
	case ViewNotes:
		return NotesColumns, true
	}
	return nil, false
}
