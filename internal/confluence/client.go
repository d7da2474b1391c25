package confluence

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"sverka/internal/config"
	"sverka/internal/providers"
	"sverka/internal/retry"

	"github.com/rs/zerolog/log"
)

// Config selects the wiki page holding the team/lead table.
type Config struct {
	BaseURL     string
	Token       string
	User        string // Cloud only
	Cloud       bool
	PageID      string
	Column      int // zero-based column of the table holding leads and team names
	VerifySSL   bool
	TeamPattern *regexp.Regexp
	Resilience  config.ResilienceConfig
}

// Client reads team leads from a Confluence page. It implements
// providers.LeadsProvider.
type Client struct {
	cfg      Config
	client   *http.Client
	keyCache sync.Map // user key -> username
}

func NewClient(cfg Config) *Client {
	if cfg.TeamPattern == nil {
		cfg.TeamPattern = providers.DefaultTeamPattern
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !cfg.VerifySSL {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Transport: transport},
	}
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	u := strings.TrimRight(c.cfg.BaseURL, "/") + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.Cloud {
		req.SetBasicAuth(c.cfg.User, c.cfg.Token)
	} else {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 500))
		return fmt.Errorf("API request %s failed with status %d: %s", path, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

type pageContent struct {
	Body struct {
		Storage struct {
			Value string `json:"value"`
		} `json:"storage"`
	} `json:"body"`
}

// PageStorage returns the storage-format body of the configured page.
func (c *Client) PageStorage(ctx context.Context) (string, error) {
	return retry.WithRetry(ctx, c.cfg.Resilience.Wiki, func(ctx context.Context) (string, error) {
		var page pageContent
		path := "/rest/api/content/" + url.PathEscape(c.cfg.PageID)
		if err := c.get(ctx, path, url.Values{"expand": {"body.storage"}}, &page); err != nil {
			return "", err
		}
		return page.Body.Storage.Value, nil
	})
}

type wikiUser struct {
	Username string `json:"username"`
}

// ResolveUserKey maps an opaque user key to a username. Successful lookups
// are cached for the life of the client; failures are logged and yield "".
func (c *Client) ResolveUserKey(ctx context.Context, key string) string {
	if key == "" {
		return ""
	}
	if cached, ok := c.keyCache.Load(key); ok {
		return cached.(string)
	}

	user, err := retry.WithRetry(ctx, c.cfg.Resilience.Wiki, func(ctx context.Context) (wikiUser, error) {
		var u wikiUser
		err := c.get(ctx, "/rest/api/user", url.Values{"key": {key}}, &u)
		return u, err
	})
	if err != nil {
		log.Warn().Err(err).Str("user_key", key).Msg("Failed to resolve wiki user key")
		return ""
	}
	if user.Username == "" {
		log.Debug().Str("user_key", key).Msg("Wiki returned no username for key")
		return ""
	}

	c.keyCache.Store(key, user.Username)
	log.Debug().Str("user_key", key).Str("username", user.Username).Msg("Resolved wiki user key")
	return user.Username
}

// TeamLeads maps every team name found in the configured column to the chat
// handle of its lead.
func (c *Client) TeamLeads(ctx context.Context) (map[string]string, error) {
	log.Info().Str("page_id", c.cfg.PageID).Int("column", c.cfg.Column).Msg("Fetching team leads")

	storage, err := c.PageStorage(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch page %s: %w", c.cfg.PageID, err)
	}

	leads, err := ParseLeads(storage, c.cfg.Column, c.cfg.TeamPattern, func(key string) string {
		return c.ResolveUserKey(ctx, key)
	})
	if err != nil {
		return nil, err
	}

	log.Info().Int("teams", len(leads)).Msg("Loaded team leads")
	return leads, nil
}
