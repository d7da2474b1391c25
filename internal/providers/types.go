package providers

import (
	"context"
	"time"
)

// Period is the inclusive reporting period taken from the timesheet.
type Period struct {
	From time.Time
	To   time.Time
}

// Team is a Tempo team.
type Team struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Member is one membership entry of a team as returned by Tempo. Dates are
// kept as raw strings; see ParseDate.
type Member struct {
	UserKey  string
	DateFrom string
	DateTo   string
}

// Membership is a team assignment with its validity interval.
type Membership struct {
	UserKey   string
	TeamName  string
	ValidFrom time.Time
	ValidTo   time.Time
}

// Active reports whether the membership overlaps the period.
func (m Membership) Active(p Period) bool {
	return !m.ValidFrom.After(p.To) && !m.ValidTo.Before(p.From)
}

// Worklog is a single time-tracking entry.
type Worklog struct {
	Worker           string `json:"worker"`
	TimeSpentSeconds int64  `json:"timeSpentSeconds"`
}

// TeamProvider lists teams and their members.
type TeamProvider interface {
	ListTeams(ctx context.Context) ([]Team, error)
	ListMembers(ctx context.Context, teamID int) ([]Member, error)
}

// WorklogProvider searches worklogs. Implementations accept at most
// MaxWorkersPerRequest workers per call.
type WorklogProvider interface {
	SearchWorklogs(ctx context.Context, period Period, workers []string) ([]Worklog, error)
}

// LeadsProvider maps team names to the chat handles of their leads.
type LeadsProvider interface {
	TeamLeads(ctx context.Context) (map[string]string, error)
}
