package domain

// Canonical field names of the clean table
const (
	FieldTicker        = "ticker"
	FieldTradeDate     = "trade_date"
	FieldOpenPrice     = "open_price"
	FieldClosePrice    = "close_price"
	FieldVolume        = "volume"
	FieldSector        = "sector"
	FieldExchange      = "exchange"
	FieldNotes         = "notes"
	FieldValidated     = "validated"
	FieldGapUpFlag     = "gap_up_flag"
	FieldGapDownFlag   = "gap_down_flag"
	FieldValidatedFlag = "validated_flag"
	FieldCountry       = "country"
	FieldPriceChange   = "price_change"
)

// RequiredFields are the source columns needed for full function.
// Any of them missing from the source is synthesized as an all-null column.
var RequiredFields = []string{
	FieldTicker,
	FieldTradeDate,
	FieldOpenPrice,
	FieldClosePrice,
	FieldVolume,
	FieldSector,
	FieldNotes,
	FieldValidated,
	FieldExchange,
}

// CleanedTableName is the name under which the clean table is persisted
const CleanedTableName = "cleaned"

// CleanRecord is one row of the canonical table
type CleanRecord struct {
	Ticker        *string  `json:"ticker" parquet:"ticker"`
	TradeDate     *Date    `json:"trade_date" parquet:"trade_date"`
	OpenPrice     *float64 `json:"open_price" parquet:"open_price"`
	ClosePrice    *float64 `json:"close_price" parquet:"close_price"`
	Volume        *float64 `json:"volume" parquet:"volume"`
	Sector        *string  `json:"sector" parquet:"sector"`
	Exchange      *string  `json:"exchange" parquet:"exchange"`
	Notes         *string  `json:"notes" parquet:"notes"`
	Validated     *string  `json:"validated" parquet:"validated"`
	GapUpFlag     bool     `json:"gap_up_flag" parquet:"gap_up_flag"`
	GapDownFlag   bool     `json:"gap_down_flag" parquet:"gap_down_flag"`
	ValidatedFlag bool     `json:"validated_flag" parquet:"validated_flag"`
	Country       string   `json:"country" parquet:"country"`
	PriceChange   *float64 `json:"price_change" parquet:"price_change"`
}

// CleanColumns is the schema of the clean table
var CleanColumns = []Column{
	{FieldTicker, TypeString},
	{FieldTradeDate, TypeDate},
	{FieldOpenPrice, TypeDecimal},
	{FieldClosePrice, TypeDecimal},
	{FieldVolume, TypeDecimal},
	{FieldSector, TypeString},
	{FieldExchange, TypeString},
	{FieldNotes, TypeString},
	{FieldValidated, TypeString},
	{FieldGapUpFlag, TypeBoolean},
	{FieldGapDownFlag, TypeBoolean},
	{FieldValidatedFlag, TypeBoolean},
	{FieldCountry, TypeString},
	{FieldPriceChange, TypeDecimal},
}

// Values implements Row
func (r CleanRecord) Values() []any {
	return []any{
		cell(r.Ticker),
		cell(r.TradeDate),
		cell(r.OpenPrice),
		cell(r.ClosePrice),
		cell(r.Volume),
		cell(r.Sector),
		cell(r.Exchange),
		cell(r.Notes),
		cell(r.Validated),
		r.GapUpFlag,
		r.GapDownFlag,
		r.ValidatedFlag,
		r.Country,
		cell(r.PriceChange),
	}
}

// CleanTable is the canonical table plus the set of canonical columns that
// were actually present in the source, as opposed to synthesized.
type CleanTable struct {
	Records []CleanRecord
	Present map[string]bool
}

// Has reports whether the source carried the named canonical column
func (c *CleanTable) Has(field string) bool {
	return c != nil && c.Present[field]
}

// Missing returns the required fields that were synthesized
func (c *CleanTable) Missing() []string {
	var out []string
	for _, f := range RequiredFields {
		if !c.Has(f) {
			out = append(out, f)
		}
	}
	return out
}

// Table returns the clean records as a persistable table
func (c *CleanTable) Table() *Table[CleanRecord] {
	return NewTable(CleanedTableName, CleanColumns, c.Records)
}

// cell dereferences a nullable value, returning nil for the canonical null
func cell[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

// Ptr returns a pointer to v
func Ptr[T any](v T) *T {
	return &v
}
