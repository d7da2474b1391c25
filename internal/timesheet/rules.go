package timesheet

// Rules holds the literals the layout heuristics look for. The defaults match
// the Russian 1C T-13 timesheet export.
type Rules struct {
	SurnameHeader    string
	CodeHeader       string
	AttendanceMarker string
	SkipLabels       []string
}

// DefaultRules returns the rules for the standard 1C export.
func DefaultRules() Rules {
	return Rules{
		SurnameHeader:    "фамилия",
		CodeHeader:       "код",
		AttendanceMarker: "Я",
		SkipLabels:       []string{"итого", "подпись", "должность", "профессия"},
	}
}
