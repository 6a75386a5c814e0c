// Package dataprocessing turns a raw, string-typed market extract into the
// canonical clean table.
//
// # Data Flow
//
//	CSV/XLSX → ReadSource → RawTable → Normalize → Canonicalize → Derive → CleanTable
//
// Each stage is a pure function of its input table:
//
//   - Normalize snake_cases the header, rejects colliding headers and trims cells.
//   - Canonicalize nulls missing tokens, coerces numbers and dates, re-cases
//     text and synthesizes absent required columns.
//   - Derive computes the gap and validation flags, country and price change.
//
// Coercion failures never drop a row; they are counted in the CleanReport.
package dataprocessing
