package timesheet

import (
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
)

// blockRows is how many rows one employee entry may span in the export.
const blockRows = 4

// Record is one employee entry folded from its block of rows.
type Record struct {
	RawName      string
	Hours        float64
	AbsenceCodes []string
}

// Extract walks the rows below the header and emits one Record per employee
// block. A block is the named row plus up to three continuation rows; it ends
// early at a row that starts the next employee or carries a skip label.
// Personnel numbers and positions under the name stay inside the block. Rows without hours and
// without absence codes are dropped silently.
func Extract(m Matrix, layout Layout, rules Rules) []Record {
	var records []Record

	for i := layout.HeaderRow + 1; i < len(m); i++ {
		raw := m.At(i, layout.NameCol)
		if !isEmployeeName(raw, rules) {
			continue
		}
		name := cleanName(raw)
		if utf8.RuneCountInString(name) < 2 {
			continue
		}

		end := min(i+blockRows, len(m))
		for next := i + 1; next < end; next++ {
			if endsBlock(m.At(next, layout.NameCol), rules) {
				end = next
				break
			}
		}

		record := foldBlock(m, layout, rules, i, end)
		record.RawName = name
		if record.Hours <= 0 && len(record.AbsenceCodes) == 0 {
			log.Debug().
				Int("row", i+1).
				Str("name", name).
				Msg("Skipping row without hours or absence codes")
			continue
		}
		records = append(records, record)
	}

	log.Debug().
		Int("rows", len(m)).
		Int("records", len(records)).
		Msg("Extracted timesheet records")
	return records
}

func foldBlock(m Matrix, layout Layout, rules Rules, from, to int) Record {
	var record Record
	for r := from; r < to; r++ {
		if layout.HasHours() {
			if h, ok := parseDecimal(m.At(r, layout.HoursCol)); ok && h > record.Hours {
				record.Hours = h
			}
		}
		for _, c := range layout.AbsenceCols {
			code := m.At(r, c)
			if isAbsenceCode(code, rules) && !slices.Contains(record.AbsenceCodes, code) {
				record.AbsenceCodes = append(record.AbsenceCodes, code)
			}
		}
	}
	slices.Sort(record.AbsenceCodes)
	return record
}

func isEmployeeName(raw string, rules Rules) bool {
	if utf8.RuneCountInString(raw) < 2 || !strings.ContainsFunc(raw, unicode.IsLetter) {
		return false
	}
	return !hasSkipLabel(raw, rules)
}

func hasSkipLabel(raw string, rules Rules) bool {
	lower := strings.ToLower(raw)
	for _, label := range rules.SkipLabels {
		if strings.Contains(lower, strings.ToLower(label)) {
			return true
		}
	}
	return false
}

func endsBlock(raw string, rules Rules) bool {
	return isEmployeeName(raw, rules) || hasSkipLabel(raw, rules)
}

// cleanName keeps the first line of the cell and drops any "(...)" suffix,
// which 1C uses for personnel numbers and positions.
func cleanName(raw string) string {
	name, _, _ := strings.Cut(raw, "\n")
	name, _, _ = strings.Cut(name, "(")
	return strings.TrimSpace(name)
}

func isAbsenceCode(s string, rules Rules) bool {
	if s == "" || utf8.RuneCountInString(s) >= 5 {
		return false
	}
	if _, numeric := parseDecimal(s); numeric {
		return false
	}
	return !strings.EqualFold(s, rules.AttendanceMarker)
}
