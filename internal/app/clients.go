package app

import (
	"context"

	"sverka/internal/config"
	"sverka/internal/confluence"
	"sverka/internal/jira"
	"sverka/internal/mattermost"
	"sverka/internal/sheets"

	"github.com/rs/zerolog/log"
)

// Clients are the upstream connections of the process. Confluence is nil
// when lead mentions are disabled.
type Clients struct {
	Jira       *jira.Client
	Mattermost *mattermost.Client
	Confluence *confluence.Client
}

// MattermostConfig is shared by the REST client and the event listener.
func (c Config) MattermostConfig() mattermost.Config {
	return mattermost.Config{
		BaseURL:    c.MattermostBaseURL(),
		Token:      c.MMToken,
		VerifySSL:  c.VerifySSL,
		Resilience: config.DefaultResilienceConfig,
	}
}

// InitializeClients creates the upstream clients. The chat client is only
// created when MM_URL is set.
func InitializeClients(cfg Config, rules config.Rules) Clients {
	log.Debug().Msg("Initializing clients")

	if !cfg.VerifySSL {
		log.Warn().Msg("TLS certificate verification is disabled (VERIFY_SSL=false)")
	}

	clients := Clients{
		Jira: jira.NewClient(jira.Config{
			BaseURL:    cfg.JiraBaseURL(),
			Token:      cfg.JiraToken,
			AuthMethod: cfg.JiraAuthMethod,
			VerifySSL:  cfg.VerifySSL,
			Resilience: config.DefaultResilienceConfig,
		}),
	}

	if cfg.MMURL != "" {
		clients.Mattermost = mattermost.NewClient(cfg.MattermostConfig())
	}

	if cfg.Confluence.Enabled {
		clients.Confluence = confluence.NewClient(confluence.Config{
			BaseURL:     cfg.Confluence.URL,
			Token:       cfg.Confluence.Token,
			User:        cfg.Confluence.User,
			Cloud:       cfg.Confluence.Cloud,
			PageID:      cfg.Confluence.PageID,
			Column:      cfg.Confluence.Column,
			VerifySSL:   cfg.VerifySSL,
			TeamPattern: rules.TeamPattern,
			Resilience:  config.DefaultResilienceConfig,
		})
		log.Info().Str("page_id", cfg.Confluence.PageID).Msg("Lead mentions enabled")
	} else {
		log.Debug().Msg("Lead mentions disabled")
	}

	log.Debug().Msg("Clients initialized successfully")
	return clients
}

// InitializeSheetsClient creates the Google Sheets client for one-shot runs.
func InitializeSheetsClient(ctx context.Context, cfg Config) (*sheets.Client, error) {
	return sheets.NewClient(ctx, cfg.GoogleCredentialsFile)
}
