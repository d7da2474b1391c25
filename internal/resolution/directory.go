package resolution

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

// User is a Jira directory identity.
type User struct {
	Login       string `json:"name"`
	Key         string `json:"key"`
	DisplayName string `json:"displayName"`
}

// DirectoryProvider searches the identity provider for users.
type DirectoryProvider interface {
	SearchUsers(ctx context.Context, query string) ([]User, error)
}

// DefaultQueries are the search strings tried in order until one returns users.
// Jira Server has no "list all" endpoint, so these are wildcards in practice.
var DefaultQueries = []string{".", "@", ""}

// Directory is a read-only snapshot of the identity provider, built once at
// startup and shared by all workers.
type Directory struct {
	users  []User
	byKey  map[string]int
	byName map[string]int
}

// NewDirectory indexes users by key, lower-cased display name (both name
// orders for two-part names) and lower-cased login. Users without a key fall
// back to their login as key; the first user wins on duplicates.
func NewDirectory(users []User) *Directory {
	d := &Directory{
		byKey:  make(map[string]int),
		byName: make(map[string]int),
	}

	for _, u := range users {
		if u.Key == "" {
			u.Key = u.Login
		}
		if u.Key == "" {
			continue
		}
		if _, dup := d.byKey[u.Key]; dup {
			continue
		}

		idx := len(d.users)
		d.users = append(d.users, u)
		d.byKey[u.Key] = idx

		if u.DisplayName != "" {
			d.index(strings.ToLower(u.DisplayName), idx)
			if parts := strings.Fields(u.DisplayName); len(parts) == 2 {
				d.index(strings.ToLower(parts[1]+" "+parts[0]), idx)
			}
		}
		if u.Login != "" {
			d.index(strings.ToLower(u.Login), idx)
		}
	}

	return d
}

func (d *Directory) index(name string, idx int) {
	if _, ok := d.byName[name]; !ok {
		d.byName[name] = idx
	}
}

// Len returns the number of unique users.
func (d *Directory) Len() int {
	return len(d.users)
}

// Users returns a copy of the users in directory order.
func (d *Directory) Users() []User {
	return append([]User(nil), d.users...)
}

// ByKey returns the user with the given key.
func (d *Directory) ByKey(key string) (User, bool) {
	idx, ok := d.byKey[key]
	if !ok {
		return User{}, false
	}
	return d.users[idx], true
}

// Lookup finds a user by exact display name (either name order) or login,
// case-insensitively.
func (d *Directory) Lookup(name string) (User, bool) {
	idx, ok := d.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return User{}, false
	}
	return d.users[idx], true
}

// LoadDirectory runs the query strategies in order and builds a Directory from
// the first non-empty result. It fails only when every query failed.
func LoadDirectory(ctx context.Context, provider DirectoryProvider, queries []string) (*Directory, error) {
	var errs []error
	for _, query := range queries {
		log.Info().Str("query", query).Msg("Searching directory users")
		users, err := provider.SearchUsers(ctx, query)
		if err != nil {
			log.Warn().Err(err).Str("query", query).Msg("Directory search failed")
			errs = append(errs, err)
			continue
		}
		if len(users) == 0 {
			continue
		}

		dir := NewDirectory(users)
		log.Info().
			Str("query", query).
			Int("users", dir.Len()).
			Msg("Directory cache built")
		return dir, nil
	}

	if len(errs) == len(queries) && len(errs) > 0 {
		return nil, fmt.Errorf("all directory queries failed: %w", errors.Join(errs...))
	}
	log.Warn().Msg("Directory search returned no users; every name will be unresolved")
	return NewDirectory(nil), nil
}
