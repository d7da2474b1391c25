package config

import (
	"time"

	"sverka/internal/retry"
)

// ResilienceConfig bounds every upstream call of a reconciliation run and the
// chat reconnect loop.
type ResilienceConfig struct {
	Directory retry.Config
	Teams     retry.Config
	Worklogs  retry.Config
	Download  retry.Config
	Wiki      retry.Config
	Chat      retry.Config
	Reconnect retry.Config
}

// DefaultResilienceConfig makes a single attempt per data call; a failed call
// contributes nothing to the run instead of being retried.
var DefaultResilienceConfig = ResilienceConfig{
	Directory: retry.Config{Timeout: 30 * time.Second},
	Teams:     retry.Config{Timeout: 30 * time.Second},
	Worklogs:  retry.Config{Timeout: 90 * time.Second},
	Download:  retry.Config{Timeout: 60 * time.Second},
	Wiki:      retry.Config{Timeout: 30 * time.Second},
	Chat: retry.Config{
		MaxRetries: 2,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   5 * time.Second,
		Timeout:    15 * time.Second,
	},
	Reconnect: retry.Config{
		BaseDelay:     2 * time.Second,
		MaxDelay:      60 * time.Second,
		InfiniteRetry: true,
	},
}
