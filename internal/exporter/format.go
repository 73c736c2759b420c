package exporter

import (
	"strconv"

	"stockmatrix/internal/matrix"
)

// formatCell renders a cell for CSV. Absent cells are empty. With
// decimals >= 0 numbers get exactly that many decimal places, otherwise
// they are written as stored.
func formatCell(c matrix.CellValue, decimals int) string {
	if c.Kind() == matrix.KindNumber && decimals >= 0 {
		n, _ := c.AsNumber()
		return strconv.FormatFloat(n, 'f', decimals, 64)
	}
	return c.String()
}
