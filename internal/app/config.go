package app

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// ConfluenceConfig locates the team leads page. Disabled unless
// CONFLUENCE_ENABLED is true.
type ConfluenceConfig struct {
	Enabled bool
	URL     string
	Token   string
	User    string
	Cloud   bool
	PageID  string
	Column  int
}

// Config is the process configuration read from the environment.
type Config struct {
	MMURL       string
	MMToken     string
	MMScheme    string
	MMPort      int
	MMChannelID string

	JiraDomain     string
	JiraToken      string
	JiraAuthMethod string

	VerifySSL bool

	Confluence ConfluenceConfig

	RulesFile             string
	GoogleCredentialsFile string
}

// LoadConfig reads the configuration. The chat settings are only required
// when bot is true; Jira settings are always required.
func LoadConfig(env Env, bot bool) (Config, error) {
	var missing []string
	required := func(key string) string {
		value := env(key)
		if value == "" {
			missing = append(missing, key)
		}
		return value
	}

	cfg := Config{
		JiraDomain:            required("JIRA_DOMAIN"),
		JiraToken:             required("JIRA_TOKEN"),
		JiraAuthMethod:        env.GetEnvWithDefault("JIRA_AUTH_METHOD", "Bearer"),
		VerifySSL:             env.GetBool("VERIFY_SSL", false),
		MMScheme:              env.GetEnvWithDefault("MM_SCHEME", "https"),
		RulesFile:             env("RULES_FILE"),
		GoogleCredentialsFile: env.GetEnvWithDefault("GOOGLE_CREDENTIALS_FILE", "credentials.json"),
	}

	if bot {
		cfg.MMURL = required("MM_URL")
		cfg.MMToken = required("MM_TOKEN")
		cfg.MMChannelID = required("MM_TARGET_CHANNEL_ID")
	}

	port, err := strconv.Atoi(env.GetEnvWithDefault("MM_PORT", "443"))
	if err != nil || port <= 0 || port > 65535 {
		return Config{}, fmt.Errorf("invalid MM_PORT %q", env("MM_PORT"))
	}
	cfg.MMPort = port

	cfg.Confluence = loadConfluence(env)
	if cfg.Confluence.Enabled && (cfg.Confluence.URL == "" || cfg.Confluence.Token == "" || cfg.Confluence.PageID == "") {
		log.Warn().Msg("Confluence is enabled but CONFLUENCE_URL, CONFLUENCE_TOKEN or CONFLUENCE_PAGE_ID is missing; leads are disabled")
		cfg.Confluence.Enabled = false
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables are not set: %s", strings.Join(missing, ", "))
	}
	return cfg, nil
}

func loadConfluence(env Env) ConfluenceConfig {
	column, err := strconv.Atoi(env.GetEnvWithDefault("CONFLUENCE_TABLE_COL_INDEX", "0"))
	if err != nil || column < 0 {
		log.Warn().Str("value", env("CONFLUENCE_TABLE_COL_INDEX")).Msg("Invalid CONFLUENCE_TABLE_COL_INDEX, using 0")
		column = 0
	}

	return ConfluenceConfig{
		Enabled: env.GetBool("CONFLUENCE_ENABLED", false),
		URL:     strings.TrimRight(env("CONFLUENCE_URL"), "/"),
		Token:   env("CONFLUENCE_TOKEN"),
		User:    env("CONFLUENCE_USER"),
		Cloud:   strings.EqualFold(env.GetEnvWithDefault("CONFLUENCE_TYPE", "Server"), "cloud"),
		PageID:  env("CONFLUENCE_PAGE_ID"),
		Column:  column,
	}
}

// MattermostBaseURL joins scheme, host and port, leaving out the default
// port of the scheme.
func (c Config) MattermostBaseURL() string {
	host := c.MMURL
	if u, err := url.Parse(c.MMURL); err == nil && u.Host != "" {
		host = u.Host
	}
	host = strings.TrimRight(host, "/")

	if (c.MMScheme == "https" && c.MMPort == 443) || (c.MMScheme == "http" && c.MMPort == 80) || strings.Contains(host, ":") {
		return c.MMScheme + "://" + host
	}
	return fmt.Sprintf("%s://%s:%d", c.MMScheme, host, c.MMPort)
}

// JiraBaseURL accepts JIRA_DOMAIN with or without a scheme.
func (c Config) JiraBaseURL() string {
	domain := strings.TrimRight(c.JiraDomain, "/")
	if strings.HasPrefix(domain, "http://") || strings.HasPrefix(domain, "https://") {
		return domain
	}
	return "https://" + domain
}
