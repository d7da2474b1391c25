package timesheet

import (
	"math"
	"strconv"
	"strings"
)

// Matrix is the first sheet of an uploaded workbook as a raw grid of cell text.
// Rows may have different lengths; an empty string is an empty cell.
type Matrix [][]string

// At returns the trimmed text of a cell, or "" when the cell is outside the grid.
func (m Matrix) At(row, col int) string {
	if row < 0 || row >= len(m) || col < 0 || col >= len(m[row]) {
		return ""
	}
	return strings.TrimSpace(m[row][col])
}

// Width returns the length of the longest row.
func (m Matrix) Width() int {
	width := 0
	for _, row := range m {
		width = max(width, len(row))
	}
	return width
}

// parseDecimal parses spreadsheet numbers written with a decimal comma and
// thousands separators ("1 234,5"). NaN and infinities are rejected.
func parseDecimal(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	s = strings.NewReplacer(",", ".", " ", "", "\u00a0", "").Replace(s)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
