package timesheet

import (
	"errors"
	"slices"
	"strings"
)

// ErrHeaderNotFound is returned when no cell starts with the surname header.
var ErrHeaderNotFound = errors.New("surname header not found")

// Layout describes where the employee table sits inside a Matrix.
type Layout struct {
	HeaderRow   int
	NameCol     int
	HoursCol    int // -1 when no numeric column was found
	AbsenceCols []int
}

// HasHours reports whether an hours column was detected.
func (l Layout) HasHours() bool {
	return l.HoursCol >= 0
}

// Locate finds the header row, name column, hours column and absence-code
// columns of the timesheet table.
//
// The hours column is the rightmost numeric cell of the middle row. This is
// sensitive to which row lands in the middle and can pick the wrong column on
// sparse sheets.
func Locate(m Matrix, rules Rules) (Layout, error) {
	layout := Layout{HeaderRow: -1, NameCol: -1, HoursCol: -1}
	surname := strings.ToLower(rules.SurnameHeader)

scan:
	for r, row := range m {
		for c := range row {
			if strings.HasPrefix(strings.ToLower(m.At(r, c)), surname) {
				layout.HeaderRow, layout.NameCol = r, c
				break scan
			}
		}
	}
	if layout.HeaderRow < 0 {
		return Layout{}, ErrHeaderNotFound
	}

	layout.HoursCol = locateHours(m)

	code := strings.ToLower(rules.CodeHeader)
	width := m.Width()
	for r := layout.HeaderRow; r < min(layout.HeaderRow+3, len(m)); r++ {
		for c := layout.NameCol + 1; c < width; c++ {
			if strings.Contains(strings.ToLower(m.At(r, c)), code) && !slices.Contains(layout.AbsenceCols, c) {
				layout.AbsenceCols = append(layout.AbsenceCols, c)
			}
		}
	}

	return layout, nil
}

func locateHours(m Matrix) int {
	if len(m) == 0 {
		return -1
	}
	mid := len(m) / 2
	for c := m.Width() - 1; c >= 0; c-- {
		if _, ok := parseDecimal(m.At(mid, c)); ok {
			return c
		}
	}
	return -1
}
