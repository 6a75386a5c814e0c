package config

// Application constants
const (
	AppName = "stockpipe"

	// File names inside the output directory
	ManifestFileName = "manifest.json"
	ParquetExt       = ".parquet"
	SQLiteFileName   = "views.db"
	WorkbookFileName = "views.xlsx"
	CSVMirrorDir     = "csv"
	ViewColumnsTable = "view_columns"

	// Column-type metadata key stored in every Parquet footer
	ParquetColumnsKey = "stockpipe.columns"

	// Mirror names accepted by pipeline.mirrors
	MirrorCSV    = "csv"
	MirrorSQLite = "sqlite"
	MirrorXLSX   = "xlsx"

	// Ticker query parameter bounds
	MaxTickerLength   = 16
	MaxTickersPerView = 200
)
