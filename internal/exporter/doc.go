// Package exporter persists the clean table and the aggregate views.
//
// Parquet is the primary format: every table is an independently addressable
// <name>.parquet file written atomically, with its column list stored in the
// file footer so a reader recovers names, order and logical types.
//
// Mirrors are optional secondary outputs implementing Sink:
//
// CSVSink: one CSV file per table with a UTF-8 BOM for Excel.
//
// SQLiteSink: one table per view plus a view_columns schema table, all
// replaced in a single transaction.
//
// WorkbookSink: one XLSX workbook with a sheet per table.
//
// Example usage:
//
//	store := exporter.NewStoreFromConfig(cfg, paths, logger)
//	report, err := store.Persist(ctx, tables, skipped)
package exporter
