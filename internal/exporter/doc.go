// Package exporter writes store sheets as CSV for read-only consumers such
// as dashboards.
//
// CSVWriter does the file handling (UTF-8 BOM for Excel, streaming).
// MatrixExporter turns one sheet into a wide table: one row per symbol,
// one column per date. SymbolExporter turns one symbol into a long table:
// one row per date, one column per sheet.
package exporter
