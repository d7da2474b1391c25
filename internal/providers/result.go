package providers

import (
	"github.com/rs/zerolog/log"
)

// Result is the outcome of one upstream call.
type Result[T any] struct {
	Value T
	Err   error
}

// Try wraps a (value, error) pair, e.g. Try(client.ListTeams(ctx)).
func Try[T any](value T, err error) Result[T] {
	return Result[T]{Value: value, Err: err}
}

// OK reports whether the call succeeded.
func (r Result[T]) OK() bool {
	return r.Err == nil
}

// Contribution returns the value on success and the zero value on failure.
// Failures are logged as partial upstream failures and never propagate.
func (r Result[T]) Contribution(call string) T {
	if r.Err == nil {
		return r.Value
	}
	log.Warn().
		Err(r.Err).
		Str("call", call).
		Msg("Upstream call failed, continuing with partial data")
	var zero T
	return zero
}
