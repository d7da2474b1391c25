package config

import (
	"fmt"
	"os"
	"regexp"

	"sverka/internal/providers"
	"sverka/internal/report"
	"sverka/internal/timesheet"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v2"
)

// Rules are the tunable heuristics of a reconciliation run.
type Rules struct {
	Timesheet   timesheet.Rules
	Threshold   float64
	TeamPattern *regexp.Regexp
}

// rulesFile mirrors the YAML layout. Absent keys keep their defaults.
type rulesFile struct {
	SurnameHeader     string   `yaml:"surname_header"`
	CodeHeader        string   `yaml:"code_header"`
	AttendanceMarker  string   `yaml:"attendance_marker"`
	SkipLabels        []string `yaml:"skip_labels"`
	VarianceThreshold *float64 `yaml:"variance_threshold"`
	TeamPattern       string   `yaml:"team_pattern"`
}

func DefaultRules() Rules {
	return Rules{
		Timesheet:   timesheet.DefaultRules(),
		Threshold:   report.DefaultThreshold,
		TeamPattern: providers.DefaultTeamPattern,
	}
}

// LoadRules reads a YAML rules file. An empty path yields the defaults.
func LoadRules(path string) (Rules, error) {
	if path == "" {
		return DefaultRules(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("failed to read rules file: %w", err)
	}

	rules, err := ParseRules(data)
	if err != nil {
		return Rules{}, fmt.Errorf("invalid rules file %s: %w", path, err)
	}

	log.Info().
		Str("path", path).
		Float64("threshold", rules.Threshold).
		Str("team_pattern", rules.TeamPattern.String()).
		Msg("Loaded rules file")
	return rules, nil
}

func ParseRules(data []byte) (Rules, error) {
	var raw rulesFile
	if err := yaml.UnmarshalStrict(data, &raw); err != nil {
		return Rules{}, fmt.Errorf("failed to parse yaml: %w", err)
	}

	rules := DefaultRules()
	ts := &rules.Timesheet
	if raw.SurnameHeader != "" {
		ts.SurnameHeader = raw.SurnameHeader
	}
	if raw.CodeHeader != "" {
		ts.CodeHeader = raw.CodeHeader
	}
	if raw.AttendanceMarker != "" {
		ts.AttendanceMarker = raw.AttendanceMarker
	}
	if len(raw.SkipLabels) > 0 {
		ts.SkipLabels = raw.SkipLabels
	}

	if raw.VarianceThreshold != nil {
		if *raw.VarianceThreshold < 0 {
			return Rules{}, fmt.Errorf("variance_threshold must not be negative, got %v", *raw.VarianceThreshold)
		}
		rules.Threshold = *raw.VarianceThreshold
	}

	if raw.TeamPattern != "" {
		pattern, err := regexp.Compile(raw.TeamPattern)
		if err != nil {
			return Rules{}, fmt.Errorf("invalid team_pattern: %w", err)
		}
		rules.TeamPattern = pattern
	}

	return rules, nil
}
