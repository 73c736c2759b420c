// Package matrix defines the date-indexed table that every sheet in the
// store holds: a header of date labels and one row per symbol.
//
// # Layout
//
// Row 1 of a sheet carries two fixed labels (display name, symbol key)
// followed by date labels from column C onward. Every following row is a
// symbol: name, key, then one cell per header label.
//
// # Cells
//
// A cell is a CellValue, a closed variant of Number, Text, Date and Absent.
// Absent marks "no observation" and is distinct from zero. Conversions are
// total and never panic:
//
//	v := matrix.ParseCell("1520.5")
//	if f, ok := v.AsNumber(); ok {
//	    ...
//	}
//
// # Date labels
//
// Two readings exist. CellValue.AsDateLabel accepts Date cells, trimmed
// 8-digit YYYYMMDD text and integral 8-digit numbers, and decides which
// columns take part in indicator computation. HeaderDate is tolerant
// (serials for numeric cells, digit extraction, dashed, dotted and
// slashed layouts) and is used by range rollback.
package matrix
