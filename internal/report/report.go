package report

import (
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"sverka/internal/providers"
	"sverka/internal/resolution"
)

// Status classifies one reconciliation row.
type Status string

const (
	StatusOK         Status = "OK"
	StatusVariance   Status = "VARIANCE"
	StatusUnresolved Status = "UNRESOLVED"
)

// Label is the text shown in the report file and chat summary.
func (s Status) Label() string {
	switch s {
	case StatusOK:
		return "✅ OK"
	case StatusVariance:
		return "⚠️ Расхождение"
	case StatusUnresolved:
		return "❓ Не найден в Jira"
	default:
		return string(s)
	}
}

const (
	// OtherTeam collects rows without an active team membership.
	OtherTeam = "Other"
	// NoValue fills Jira columns of unresolved rows.
	NoValue = "—"
	// DefaultThreshold is the largest absolute difference, in hours, still
	// reported as OK.
	DefaultThreshold = 4.0
)

// Row is one line of the reconciliation report.
type Row struct {
	Team         string
	Name1C       string
	NameJira     string
	JiraKey      string
	Hours1C      float64
	AbsenceCodes []string
	HoursTempo   float64
	Diff         float64
	Status       Status
}

// Resolved reports whether the row is linked to a Jira user.
func (r Row) Resolved() bool {
	return r.Status != StatusUnresolved
}

// Absences returns the absence codes as a comma-separated list.
func (r Row) Absences() string {
	return strings.Join(r.AbsenceCodes, ", ")
}

// HasNotableAbsence reports whether the row has any absence code other than
// the weekend marker "В".
func (r Row) HasNotableAbsence() bool {
	for _, code := range r.AbsenceCodes {
		if c := strings.ToUpper(strings.TrimSpace(code)); c != "" && c != "В" {
			return true
		}
	}
	return false
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Build turns resolved timesheet records and upstream data into sorted
// report rows. A row is a VARIANCE when |diff| exceeds threshold; unresolved
// rows are always UNRESOLVED with zero Tempo hours in the Other team.
func Build(matches []resolution.Match, data providers.Context, threshold float64) []Row {
	rows := make([]Row, 0, len(matches))
	for _, m := range matches {
		row := Row{
			Team:         OtherTeam,
			Name1C:       m.Record.RawName,
			NameJira:     NoValue,
			JiraKey:      NoValue,
			Hours1C:      m.Record.Hours,
			AbsenceCodes: slices.Clone(m.Record.AbsenceCodes),
			Status:       StatusUnresolved,
		}

		if m.User != nil {
			row.NameJira = m.User.DisplayName
			row.JiraKey = m.User.Key
			row.HoursTempo = round2(float64(data.SecondsFor(*m.User)) / 3600)
			if team, ok := data.TeamFor(m.User.Key); ok {
				row.Team = team
			}
		}

		row.Diff = round2(row.HoursTempo - row.Hours1C)
		if m.User != nil {
			row.Status = StatusOK
			if math.Abs(row.Diff) > threshold {
				row.Status = StatusVariance
			}
		}
		rows = append(rows, row)
	}

	Sort(rows)
	return rows
}

var streamNumber = regexp.MustCompile(`stream(\d+)`)

// unnumberedStream ranks stream teams without a number after numbered ones.
const unnumberedStream = 999

// TeamRank returns the sort tier and in-tier number of a team:
// arch-team, change-team, numbered stream teams, unnumbered stream teams,
// any other team, and finally Other.
func TeamRank(team string) (tier, num int) {
	name := strings.ToLower(team)
	switch {
	case name == strings.ToLower(OtherTeam):
		return 99, 0
	case strings.Contains(name, "arch-team"):
		return 1, 0
	case strings.Contains(name, "change-team"):
		return 2, 0
	case strings.Contains(name, "stream"):
		if m := streamNumber.FindStringSubmatch(name); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				return 3, n
			}
		}
		return 3, unnumberedStream
	default:
		return 4, 0
	}
}

// Sort orders rows by team rank, then team name, then 1C name.
func Sort(rows []Row) {
	slices.SortStableFunc(rows, func(a, b Row) int {
		at, an := TeamRank(a.Team)
		bt, bn := TeamRank(b.Team)
		if at != bt {
			return at - bt
		}
		if an != bn {
			return an - bn
		}
		if c := strings.Compare(a.Team, b.Team); c != 0 {
			return c
		}
		return strings.Compare(a.Name1C, b.Name1C)
	})
}

// Teams returns the distinct teams in row order.
func Teams(rows []Row) []string {
	var teams []string
	for _, r := range rows {
		if !slices.Contains(teams, r.Team) {
			teams = append(teams, r.Team)
		}
	}
	return teams
}

// TeamsWithIssues returns, in row order, the teams with at least one
// VARIANCE row. Their leads are notified.
func TeamsWithIssues(rows []Row) []string {
	var teams []string
	for _, r := range rows {
		if r.Status == StatusVariance && !slices.Contains(teams, r.Team) {
			teams = append(teams, r.Team)
		}
	}
	return teams
}
