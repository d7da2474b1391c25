package resolution

import (
	"sverka/internal/timesheet"

	"github.com/rs/zerolog/log"
)

// Match is an extracted timesheet record with its resolved identity, if any.
type Match struct {
	Record timesheet.Record
	User   *User
}

// Resolved reports whether the record was linked to a directory user.
func (m Match) Resolved() bool {
	return m.User != nil
}

// ResolveAll resolves every record against the directory, preserving order.
func (d *Directory) ResolveAll(records []timesheet.Record) []Match {
	matches := make([]Match, 0, len(records))
	unresolved := 0
	for _, r := range records {
		u := d.Resolve(r.RawName)
		if u == nil {
			unresolved++
			log.Debug().Str("name", r.RawName).Msg("Name not found in directory")
		}
		matches = append(matches, Match{Record: r, User: u})
	}

	log.Debug().
		Int("records", len(records)).
		Int("unresolved", unresolved).
		Msg("Resolved timesheet names")
	return matches
}

// Keys returns the distinct keys of resolved users in first-seen order.
func Keys(matches []Match) []string {
	seen := make(map[string]bool)
	var keys []string
	for _, m := range matches {
		if m.User == nil || seen[m.User.Key] {
			continue
		}
		seen[m.User.Key] = true
		keys = append(keys, m.User.Key)
	}
	return keys
}
