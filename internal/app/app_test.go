package app

import (
	"strings"
	"testing"

	"sverka/internal/config"

	"github.com/rs/zerolog"
)

func envFrom(values map[string]string) Env {
	return func(key string) string { return values[key] }
}

func baseEnv() map[string]string {
	return map[string]string{
		"MM_URL":               "chat.example.com",
		"MM_TOKEN":             "mm-token",
		"MM_TARGET_CHANNEL_ID": "chan1",
		"JIRA_DOMAIN":          "jira.example.com",
		"JIRA_TOKEN":           "jira-token",
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(envFrom(baseEnv()), true)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.JiraAuthMethod != "Bearer" || cfg.MMScheme != "https" || cfg.MMPort != 443 {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if cfg.VerifySSL {
		t.Error("VERIFY_SSL should default to false")
	}
	if cfg.Confluence.Enabled {
		t.Error("Confluence should be disabled by default")
	}
	if cfg.GoogleCredentialsFile != "credentials.json" {
		t.Errorf("GoogleCredentialsFile = %q", cfg.GoogleCredentialsFile)
	}
	if got := cfg.MattermostBaseURL(); got != "https://chat.example.com" {
		t.Errorf("MattermostBaseURL() = %q", got)
	}
	if got := cfg.JiraBaseURL(); got != "https://jira.example.com" {
		t.Errorf("JiraBaseURL() = %q", got)
	}
}

func TestLoadConfigMissing(t *testing.T) {
	values := baseEnv()
	delete(values, "MM_TOKEN")
	delete(values, "JIRA_TOKEN")

	_, err := LoadConfig(envFrom(values), true)
	if err == nil {
		t.Fatal("expected an error")
	}
	for _, key := range []string{"MM_TOKEN", "JIRA_TOKEN"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error should name %s: %v", key, err)
		}
	}

	// One-shot runs do not need the chat settings.
	if _, err := LoadConfig(envFrom(map[string]string{"JIRA_DOMAIN": "j", "JIRA_TOKEN": "t"}), false); err != nil {
		t.Errorf("LoadConfig without chat settings: %v", err)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	values := baseEnv()
	values["MM_SCHEME"] = "http"
	values["MM_PORT"] = "8065"
	values["VERIFY_SSL"] = "T"
	values["JIRA_DOMAIN"] = "https://jira.example.com/"
	values["CONFLUENCE_ENABLED"] = "true"
	values["CONFLUENCE_URL"] = "https://wiki.example.com/"
	values["CONFLUENCE_TOKEN"] = "wiki-token"
	values["CONFLUENCE_PAGE_ID"] = "12345"
	values["CONFLUENCE_TYPE"] = "Cloud"
	values["CONFLUENCE_TABLE_COL_INDEX"] = "2"

	cfg, err := LoadConfig(envFrom(values), true)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if !cfg.VerifySSL {
		t.Error("VERIFY_SSL=T should enable verification")
	}
	if got := cfg.MattermostBaseURL(); got != "http://chat.example.com:8065" {
		t.Errorf("MattermostBaseURL() = %q", got)
	}
	if got := cfg.JiraBaseURL(); got != "https://jira.example.com" {
		t.Errorf("JiraBaseURL() = %q", got)
	}
	c := cfg.Confluence
	if !c.Enabled || !c.Cloud || c.Column != 2 || c.URL != "https://wiki.example.com" {
		t.Errorf("unexpected confluence config %+v", c)
	}
}

func TestLoadConfigInvalidPort(t *testing.T) {
	values := baseEnv()
	values["MM_PORT"] = "https"
	if _, err := LoadConfig(envFrom(values), true); err == nil {
		t.Error("expected an error for a non-numeric port")
	}
}

func TestLoadConfigIncompleteConfluence(t *testing.T) {
	values := baseEnv()
	values["CONFLUENCE_ENABLED"] = "true"
	values["CONFLUENCE_TABLE_COL_INDEX"] = "x"

	cfg, err := LoadConfig(envFrom(values), true)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Confluence.Enabled || cfg.Confluence.Column != 0 {
		t.Errorf("incomplete confluence settings should disable leads, got %+v", cfg.Confluence)
	}
}

func TestLogLevel(t *testing.T) {
	tests := []struct {
		value      string
		production bool
		want       zerolog.Level
	}{
		{"", false, zerolog.InfoLevel},
		{"", true, zerolog.WarnLevel},
		{"DEBUG", false, zerolog.DebugLevel},
		{"warning", false, zerolog.WarnLevel},
		{"disabled", true, zerolog.Disabled},
		{"verbose", false, zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := logLevel(tt.value, tt.production); got != tt.want {
			t.Errorf("logLevel(%q, %v) = %v, want %v", tt.value, tt.production, got, tt.want)
		}
	}
}

func TestInitializeClients(t *testing.T) {
	cfg, err := LoadConfig(envFrom(baseEnv()), true)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	clients := InitializeClients(cfg, config.DefaultRules())
	if clients.Jira == nil || clients.Mattermost == nil {
		t.Fatal("expected Jira and chat clients")
	}
	if clients.Confluence != nil {
		t.Error("Confluence client should not be created when disabled")
	}
	want := "https://jira.example.com/secure/Tempo.jspa#/my-work/timesheet?worker=JIRAUSER1&viewType=TIMESHEET"
	if got := clients.Jira.TimesheetURL("JIRAUSER1"); got != want {
		t.Errorf("TimesheetURL() = %q", got)
	}
}
