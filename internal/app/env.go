package app

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SetupEnvironment loads .env file and configures zerolog output and log level.
func SetupEnvironment() {
	// Load .env file if it exists
	err := godotenv.Load()

	production := os.Getenv("ENV") == "production"
	if production {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		log.Logger = log.Output(os.Stderr)
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	zerolog.SetGlobalLevel(logLevel(os.Getenv("LOGLEVEL"), production))

	// wait until now to report on the .env file so we have the chance to set up logging first
	if err == nil {
		log.Debug().Msg("Loaded environment variables from .env file.")
	} else {
		log.Debug().Msg("No .env file found or error loading .env file; proceeding with existing environment variables.")
	}
}

// logLevel maps LOGLEVEL to a zerolog level. Empty means warn in production
// and info elsewhere; unknown values fall back to info.
func logLevel(value string, production bool) zerolog.Level {
	value = strings.ToLower(strings.TrimSpace(value))
	switch value {
	case "":
		if production {
			return zerolog.WarnLevel
		}
		return zerolog.InfoLevel
	case "warning":
		return zerolog.WarnLevel
	}

	level, err := zerolog.ParseLevel(value)
	if err != nil || level == zerolog.NoLevel {
		log.Warn().Msgf("Unknown LOGLEVEL '%s', defaulting to info.", value)
		return zerolog.InfoLevel
	}
	return level
}

// Env reads configuration values; os.Getenv in production.
type Env func(key string) string

// GetEnvWithDefault fetches an environment variable with a default fallback.
func (e Env) GetEnvWithDefault(key, defaultValue string) string {
	if value := e(key); value != "" {
		return value
	}
	return defaultValue
}

// GetBool treats "true", "1" and "t" in any case as true.
func (e Env) GetBool(key string, defaultValue bool) bool {
	switch strings.ToLower(strings.TrimSpace(e(key))) {
	case "":
		return defaultValue
	case "true", "1", "t":
		return true
	default:
		return false
	}
}
