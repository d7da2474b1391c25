package jira

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"sverka/internal/config"
	"sverka/internal/providers"
	"sverka/internal/resolution"
	"sverka/internal/retry"

	"github.com/rs/zerolog/log"
)

const (
	AuthBearer = "Bearer"
	AuthCookie = "Cookie"

	userPageSize = 1000
)

// Config holds connection settings for a Jira Server instance with the
// Tempo plugins installed.
type Config struct {
	BaseURL    string // scheme and host, e.g. https://jira.example.com
	Token      string
	AuthMethod string // AuthBearer, anything else sends the token as a JSESSIONID cookie
	VerifySSL  bool
	Resilience config.ResilienceConfig
}

// Client talks to the Jira user API and the Tempo teams and timesheets APIs.
// It implements resolution.DirectoryProvider, providers.TeamProvider and
// providers.WorklogProvider.
type Client struct {
	baseURL    string
	token      string
	authMethod string
	client     *http.Client
	resilience config.ResilienceConfig
	pageSize   int

	apiCallCount int64
	apiCallMutex sync.Mutex
}

func NewClient(cfg Config) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !cfg.VerifySSL {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &Client{
		baseURL:    cfg.BaseURL,
		token:      cfg.Token,
		authMethod: cfg.AuthMethod,
		client:     &http.Client{Transport: transport},
		resilience: cfg.Resilience,
		pageSize:   userPageSize,
	}
}

// IncrementAPICall safely increments the API call counter
func (c *Client) IncrementAPICall() {
	c.apiCallMutex.Lock()
	c.apiCallCount++
	c.apiCallMutex.Unlock()
}

// GetAPICallCount returns the current API call count
func (c *Client) GetAPICallCount() int64 {
	c.apiCallMutex.Lock()
	defer c.apiCallMutex.Unlock()
	return c.apiCallCount
}

// TimesheetURL links to the Tempo timesheet of a worker.
func (c *Client) TimesheetURL(key string) string {
	return fmt.Sprintf("%s/secure/Tempo.jspa#/my-work/timesheet?worker=%s&viewType=TIMESHEET",
		c.baseURL, url.QueryEscape(key))
}

func (c *Client) setAuth(req *http.Request) {
	if c.authMethod == AuthBearer {
		req.Header.Set("Authorization", "Bearer "+c.token)
		return
	}
	req.AddCookie(&http.Cookie{Name: "JSESSIONID", Value: c.token})
}

// do sends one request and returns the raw body of a 200 response.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload any) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return c.doURL(ctx, method, u, payload)
}

func (c *Client) doURL(ctx context.Context, method, u string, payload any) ([]byte, error) {

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	c.setAuth(req)

	c.IncrementAPICall()

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	log.Debug().
		Str("method", method).
		Str("url", u).
		Int("status_code", resp.StatusCode).
		Int("body_length", len(data)).
		Msg("Received API response")

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API request %s %s failed with status %d: %s",
			method, u, resp.StatusCode, string(data[:min(500, len(data))]))
	}
	return data, nil
}

// SearchUsers pages through /rest/api/2/user/search for active users matching
// query.
func (c *Client) SearchUsers(ctx context.Context, query string) ([]resolution.User, error) {
	return retry.WithRetry(ctx, c.resilience.Directory, func(ctx context.Context) ([]resolution.User, error) {
		var users []resolution.User
		for startAt := 0; ; {
			params := url.Values{
				"username":        {query},
				"startAt":         {strconv.Itoa(startAt)},
				"maxResults":      {strconv.Itoa(c.pageSize)},
				"includeInactive": {"false"},
			}
			data, err := c.do(ctx, http.MethodGet, "/rest/api/2/user/search", params, nil)
			if err != nil {
				return nil, err
			}

			var chunk []resolution.User
			if err := json.Unmarshal(data, &chunk); err != nil {
				return nil, fmt.Errorf("failed to decode users: %w", err)
			}
			users = append(users, chunk...)

			log.Debug().
				Str("query", query).
				Int("start_at", startAt).
				Int("chunk", len(chunk)).
				Msg("Fetched user page")

			if len(chunk) < c.pageSize {
				return users, nil
			}
			startAt += len(chunk)
		}
	})
}

// ListTeams returns every Tempo team.
func (c *Client) ListTeams(ctx context.Context) ([]providers.Team, error) {
	return retry.WithRetry(ctx, c.resilience.Teams, func(ctx context.Context) ([]providers.Team, error) {
		data, err := c.do(ctx, http.MethodGet, "/rest/tempo-teams/2/team", nil, nil)
		if err != nil {
			return nil, err
		}

		var teams []providers.Team
		if err := json.Unmarshal(data, &teams); err != nil {
			return nil, fmt.Errorf("failed to decode teams: %w", err)
		}
		return teams, nil
	})
}

type memberEntry struct {
	Member struct {
		Key string `json:"key"`
	} `json:"member"`
	Membership struct {
		DateFromANSI string `json:"dateFromANSI"`
		DateFrom     string `json:"dateFrom"`
		DateToANSI   string `json:"dateToANSI"`
		DateTo       string `json:"dateTo"`
	} `json:"membership"`
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// ListMembers returns the memberships of a team. The ANSI date fields are
// preferred over the localized ones.
func (c *Client) ListMembers(ctx context.Context, teamID int) ([]providers.Member, error) {
	return retry.WithRetry(ctx, c.resilience.Teams, func(ctx context.Context) ([]providers.Member, error) {
		path := fmt.Sprintf("/rest/tempo-teams/2/team/%d/member", teamID)
		data, err := c.do(ctx, http.MethodGet, path, nil, nil)
		if err != nil {
			return nil, err
		}

		var entries []memberEntry
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("failed to decode members of team %d: %w", teamID, err)
		}

		members := make([]providers.Member, 0, len(entries))
		for _, e := range entries {
			members = append(members, providers.Member{
				UserKey:  e.Member.Key,
				DateFrom: firstNonEmpty(e.Membership.DateFromANSI, e.Membership.DateFrom),
				DateTo:   firstNonEmpty(e.Membership.DateToANSI, e.Membership.DateTo),
			})
		}
		return members, nil
	})
}

type worklogSearch struct {
	From   string   `json:"from"`
	To     string   `json:"to"`
	Worker []string `json:"worker"`
}

// SearchWorklogs returns worklogs of the given workers within the period.
// Tempo answers either with a bare list or with a page of results; pages are
// followed through metadata.next with the same search body.
func (c *Client) SearchWorklogs(ctx context.Context, period providers.Period, workers []string) ([]providers.Worklog, error) {
	if len(workers) > providers.MaxWorkersPerRequest {
		return nil, fmt.Errorf("too many workers in one search: %d > %d", len(workers), providers.MaxWorkersPerRequest)
	}

	payload := worklogSearch{
		From:   period.From.Format("2006-01-02"),
		To:     period.To.Format("2006-01-02"),
		Worker: workers,
	}

	return retry.WithRetry(ctx, c.resilience.Worklogs, func(ctx context.Context) ([]providers.Worklog, error) {
		var worklogs []providers.Worklog
		seen := make(map[string]bool)
		for next := c.baseURL + "/rest/tempo-timesheets/4/worklogs/search"; next != ""; {
			if seen[next] {
				return nil, fmt.Errorf("worklog pagination loops at %s", next)
			}
			seen[next] = true

			data, err := c.doURL(ctx, http.MethodPost, next, payload)
			if err != nil {
				return nil, err
			}
			page, link, err := decodeWorklogs(data)
			if err != nil {
				return nil, err
			}
			worklogs = append(worklogs, page...)

			next, err = c.resolveLink(link)
			if err != nil {
				return nil, err
			}
		}
		return worklogs, nil
	})
}

// resolveLink turns a pagination link into an absolute URL on the Jira host.
func (c *Client) resolveLink(link string) (string, error) {
	if link == "" {
		return "", nil
	}
	base, err := url.Parse(c.baseURL + "/")
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	ref, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("invalid pagination link %q: %w", link, err)
	}
	return base.ResolveReference(ref).String(), nil
}

// decodeWorklogs returns the worklogs of one response and the link to the
// next page, if any.
func decodeWorklogs(data []byte) ([]providers.Worklog, string, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []providers.Worklog
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, "", fmt.Errorf("failed to decode worklogs: %w", err)
		}
		return list, "", nil
	}

	var wrapped struct {
		Metadata struct {
			Next string `json:"next"`
		} `json:"metadata"`
		Results []providers.Worklog `json:"results"`
	}
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return nil, "", fmt.Errorf("failed to decode worklogs: %w", err)
	}
	return wrapped.Results, wrapped.Metadata.Next, nil
}
