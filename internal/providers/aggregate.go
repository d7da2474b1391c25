package providers

import (
	"context"
	"fmt"
	"regexp"

	"sverka/internal/resolution"

	"github.com/rs/zerolog/log"
)

// MaxWorkersPerRequest is the Tempo limit on workers per worklog search.
const MaxWorkersPerRequest = 25

// DefaultTeamPattern selects the delivery teams whose memberships count.
var DefaultTeamPattern = regexp.MustCompile(`(?i)^(stream.*-team|change-team|arch-team)$`)

// Progress receives the number of finished worklog batches.
type Progress func(done, total int)

// Context is the upstream data joined with the timesheet for one run.
type Context struct {
	Teams    map[string]string // team name by user key
	Seconds  map[string]int64  // logged seconds by worker id
	Failures int               // upstream calls that contributed nothing
}

// TeamFor returns the team of a user key.
func (c Context) TeamFor(key string) (string, bool) {
	team, ok := c.Teams[key]
	return team, ok
}

// SecondsFor returns logged seconds for a user, looked up by key and then by
// login.
func (c Context) SecondsFor(u resolution.User) int64 {
	if s, ok := c.Seconds[u.Key]; ok && s != 0 {
		return s
	}
	return c.Seconds[u.Login]
}

// Batches splits items into consecutive chunks of at most size elements.
func Batches[T any](items []T, size int) [][]T {
	var batches [][]T
	for start := 0; start < len(items); start += size {
		batches = append(batches, items[start:min(start+size, len(items))])
	}
	return batches
}

// AggregateTeams returns the team of every user with a membership active in
// the period, for teams whose name matches pattern. When a user is active in
// several teams the last one processed wins. Failed calls are skipped.
func AggregateTeams(ctx context.Context, tp TeamProvider, period Period, pattern *regexp.Regexp) (map[string]string, int) {
	if pattern == nil {
		pattern = DefaultTeamPattern
	}
	userTeams := make(map[string]string)
	failures := 0

	teams := Try(tp.ListTeams(ctx))
	if !teams.OK() {
		failures++
	}
	for _, team := range teams.Contribution("list_teams") {
		if !pattern.MatchString(team.Name) {
			continue
		}

		members := Try(tp.ListMembers(ctx, team.ID))
		if !members.OK() {
			failures++
		}
		for _, m := range members.Contribution("list_members " + team.Name) {
			if m.UserKey == "" {
				continue
			}
			membership := Membership{
				UserKey:   m.UserKey,
				TeamName:  team.Name,
				ValidFrom: parseDateOr(m.DateFrom, OpenStart),
				ValidTo:   parseDateOr(m.DateTo, OpenEnd),
			}
			if membership.Active(period) {
				userTeams[m.UserKey] = team.Name
			}
		}
	}

	log.Debug().
		Int("assignments", len(userTeams)).
		Int("failures", failures).
		Msg("Aggregated team memberships")
	return userTeams, failures
}

// AggregateWorklogs sums logged seconds per worker, querying workers in
// batches of MaxWorkersPerRequest. Failed batches are skipped.
func AggregateWorklogs(ctx context.Context, wp WorklogProvider, period Period, workers []string, progress Progress) (map[string]int64, int) {
	seconds := make(map[string]int64)
	failures := 0

	batches := Batches(workers, MaxWorkersPerRequest)
	for i, batch := range batches {
		if progress != nil {
			progress(i+1, len(batches))
		}

		logs := Try(wp.SearchWorklogs(ctx, period, batch))
		if !logs.OK() {
			failures++
		}
		for _, wl := range logs.Contribution(fmt.Sprintf("search_worklogs batch %d/%d", i+1, len(batches))) {
			seconds[wl.Worker] += wl.TimeSpentSeconds
		}
	}

	log.Debug().
		Int("workers", len(workers)).
		Int("batches", len(batches)).
		Int("failures", failures).
		Msg("Aggregated worklogs")
	return seconds, failures
}

// Aggregate collects team assignments and worklog totals for the resolved
// user keys. It never fails; missing data shows up as zero hours or the
// "Other" team downstream.
func Aggregate(ctx context.Context, tp TeamProvider, wp WorklogProvider, period Period, keys []string, pattern *regexp.Regexp, progress Progress) Context {
	teams, teamFailures := AggregateTeams(ctx, tp, period, pattern)

	var seconds map[string]int64
	workFailures := 0
	if len(keys) > 0 {
		seconds, workFailures = AggregateWorklogs(ctx, wp, period, keys, progress)
	}

	return Context{
		Teams:    teams,
		Seconds:  seconds,
		Failures: teamFailures + workFailures,
	}
}
