package timesheet

import (
	"regexp"
	"strings"
	"time"
)

// periodScanRows is how many leading rows are searched for the report period.
const periodScanRows = 20

var periodDate = regexp.MustCompile(`\d{2}\.\d{2}\.\d{4}`)

// ExtractPeriod returns the earliest and latest dd.mm.yyyy dates found in the
// sheet heading. At least two dates are required.
func ExtractPeriod(m Matrix) (from, to time.Time, ok bool) {
	var dates []time.Time
	for r := 0; r < min(periodScanRows, len(m)); r++ {
		for _, match := range periodDate.FindAllString(strings.Join(m[r], " "), -1) {
			d, err := time.Parse("02.01.2006", match)
			if err != nil {
				continue
			}
			dates = append(dates, d)
		}
	}
	if len(dates) < 2 {
		return time.Time{}, time.Time{}, false
	}

	from, to = dates[0], dates[0]
	for _, d := range dates[1:] {
		if d.Before(from) {
			from = d
		}
		if d.After(to) {
			to = d
		}
	}
	return from, to, true
}
