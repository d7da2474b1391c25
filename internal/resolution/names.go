package resolution

import (
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
)

// Tokens lower-cases a name, treats dots as separators and drops one-letter
// tokens such as initials.
func Tokens(name string) []string {
	fields := strings.Fields(strings.ReplaceAll(strings.ToLower(name), ".", " "))
	tokens := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) > 1 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// NamesMatch reports whether two names share at least one token. A shared
// surname alone is enough, and so is a shared given name.
func NamesMatch(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	set := make(map[string]struct{})
	for _, t := range Tokens(a) {
		set[t] = struct{}{}
	}
	for _, t := range Tokens(b) {
		if _, ok := set[t]; ok {
			return true
		}
	}
	return false
}

// Resolve returns the first directory user whose display name shares a token
// with rawName, or nil. There is no ranking between candidates; when several
// users match the choice is logged so ambiguous names can be reviewed.
func (d *Directory) Resolve(rawName string) *User {
	var found *User
	var others []string
	for i := range d.users {
		if !NamesMatch(d.users[i].DisplayName, rawName) {
			continue
		}
		if found == nil {
			u := d.users[i]
			found = &u
			continue
		}
		others = append(others, d.users[i].Key)
	}

	if len(others) > 0 {
		log.Warn().
			Str("name", rawName).
			Str("chosen", found.Key).
			Strs("other_candidates", others).
			Msg("Ambiguous name match, keeping first candidate")
	}
	return found
}
