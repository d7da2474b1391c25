package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"sverka/internal/report"
	"sverka/internal/timesheet"
)

func TestParseRulesOverrides(t *testing.T) {
	data := []byte(`
surname_header: "ф.и.о"
skip_labels: ["всего", "подпись"]
variance_threshold: 2.5
team_pattern: "(?i)^qa-.*$"
`)

	rules, err := ParseRules(data)
	if err != nil {
		t.Fatalf("ParseRules: %v", err)
	}

	defaults := timesheet.DefaultRules()
	if rules.Timesheet.SurnameHeader != "ф.и.о" {
		t.Errorf("SurnameHeader = %q", rules.Timesheet.SurnameHeader)
	}
	if rules.Timesheet.CodeHeader != defaults.CodeHeader {
		t.Errorf("CodeHeader should keep its default, got %q", rules.Timesheet.CodeHeader)
	}
	if !reflect.DeepEqual(rules.Timesheet.SkipLabels, []string{"всего", "подпись"}) {
		t.Errorf("SkipLabels = %v", rules.Timesheet.SkipLabels)
	}
	if rules.Threshold != 2.5 {
		t.Errorf("Threshold = %v", rules.Threshold)
	}
	if !rules.TeamPattern.MatchString("QA-Team") || rules.TeamPattern.MatchString("arch-team") {
		t.Errorf("unexpected team pattern %s", rules.TeamPattern)
	}
}

func TestParseRulesZeroThreshold(t *testing.T) {
	rules, err := ParseRules([]byte("variance_threshold: 0\n"))
	if err != nil {
		t.Fatalf("ParseRules: %v", err)
	}
	if rules.Threshold != 0 {
		t.Errorf("explicit zero threshold should be kept, got %v", rules.Threshold)
	}
}

func TestParseRulesErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"unknown key", "surname: x\n"},
		{"negative threshold", "variance_threshold: -1\n"},
		{"bad pattern", "team_pattern: \"([\"\n"},
		{"not yaml", "[unterminated\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseRules([]byte(tt.data)); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestLoadRules(t *testing.T) {
	rules, err := LoadRules("")
	if err != nil {
		t.Fatalf("LoadRules(\"\"): %v", err)
	}
	if rules.Threshold != report.DefaultThreshold {
		t.Errorf("default threshold = %v", rules.Threshold)
	}
	if !rules.TeamPattern.MatchString("stream7-team") {
		t.Error("default pattern should match stream teams")
	}

	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte("attendance_marker: \"Р\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	rules, err = LoadRules(path)
	if err != nil {
		t.Fatalf("LoadRules: %v", err)
	}
	if rules.Timesheet.AttendanceMarker != "Р" {
		t.Errorf("AttendanceMarker = %q", rules.Timesheet.AttendanceMarker)
	}

	if _, err := LoadRules(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for a missing file")
	}
}

func TestDefaultResilienceConfig(t *testing.T) {
	cfg := DefaultResilienceConfig
	for name, c := range map[string]int{
		"directory": cfg.Directory.MaxRetries,
		"teams":     cfg.Teams.MaxRetries,
		"worklogs":  cfg.Worklogs.MaxRetries,
		"download":  cfg.Download.MaxRetries,
		"wiki":      cfg.Wiki.MaxRetries,
	} {
		if c != 0 {
			t.Errorf("%s calls must not be retried, MaxRetries = %d", name, c)
		}
	}
	if cfg.Worklogs.Timeout <= cfg.Teams.Timeout {
		t.Error("worklog searches should get the longest timeout")
	}
	if !cfg.Reconnect.InfiniteRetry {
		t.Error("chat reconnect should retry until shut down")
	}
}
