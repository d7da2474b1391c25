package mattermost

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"

	"sverka/internal/config"
	"sverka/internal/retry"

	"github.com/rs/zerolog/log"
)

// Config holds the chat server connection settings.
type Config struct {
	BaseURL    string // scheme, host and optional port
	Token      string
	VerifySSL  bool
	Resilience config.ResilienceConfig
}

// Post is the subset of a Mattermost post the bot reads and writes.
type Post struct {
	ID        string         `json:"id,omitempty"`
	ChannelID string         `json:"channel_id"`
	RootID    string         `json:"root_id,omitempty"`
	UserID    string         `json:"user_id,omitempty"`
	Message   string         `json:"message"`
	FileIDs   []string       `json:"file_ids,omitempty"`
	Props     map[string]any `json:"props,omitempty"`
}

// FromBot reports whether the post was made by a bot account.
func (p Post) FromBot() bool {
	v, ok := p.Props["from_bot"]
	return ok && fmt.Sprint(v) == "true"
}

// User is the authenticated account.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type APIError struct {
	Type       string
	Op         string
	StatusCode int
	Attempt    int
	Underlying error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mattermost %s failed [%s] attempt %d: %v", e.Op, e.Type, e.Attempt, e.Underlying)
}

func (e *APIError) Unwrap() error {
	return e.Underlying
}

func (e *APIError) IsRetryable() bool {
	switch e.Type {
	case "network", "server", "rate_limit":
		return true
	case "auth", "client":
		return false
	default:
		return e.StatusCode >= 500
	}
}

func categorizeHTTPError(statusCode int) string {
	switch {
	case statusCode == 401 || statusCode == 403:
		return "auth"
	case statusCode == 429:
		return "rate_limit"
	case statusCode >= 400 && statusCode < 500:
		return "client"
	case statusCode >= 500:
		return "server"
	default:
		return "unknown"
	}
}

// Client is a minimal REST client for the Mattermost v4 API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	chat       retry.Config
	download   retry.Config

	mutex        sync.Mutex
	totalSent    int64
	totalFailed  int64
	totalRetries int64
}

func NewClient(cfg Config) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !cfg.VerifySSL {
		transport.TLSClientConfig = insecureTLS()
	}
	return &Client{
		httpClient: &http.Client{Transport: transport},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		chat:       cfg.Resilience.Chat,
		download:   cfg.Resilience.Download,
	}
}

func insecureTLS() *tls.Config {
	return &tls.Config{InsecureSkipVerify: true}
}

type request struct {
	op          string
	method      string
	path        string
	contentType string
	body        []byte
}

// send performs a request under policy and returns the response body.
// Auth and client errors end the retries early.
func (c *Client) send(ctx context.Context, req request, policy retry.Config) ([]byte, error) {
	attempt := 0
	body, err := retry.WithRetry(ctx, policy, func(ctx context.Context) ([]byte, error) {
		attempt++
		if attempt > 1 {
			c.record(&c.totalRetries)
		}

		body, err := c.sendOnce(ctx, req, attempt)
		if err == nil {
			return body, nil
		}

		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.IsRetryable() {
			return nil, retry.Permanent(err)
		}
		log.Warn().
			Err(err).
			Str("op", req.op).
			Int("attempt", attempt).
			Msg("Chat request failed")
		return nil, err
	})
	if err != nil {
		c.record(&c.totalFailed)
		return nil, err
	}

	c.record(&c.totalSent)
	return body, nil
}

func (c *Client) sendOnce(ctx context.Context, req request, attempt int) ([]byte, error) {
	var body io.Reader
	if req.body != nil {
		body = bytes.NewReader(req.body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.baseURL+req.path, body)
	if err != nil {
		return nil, &APIError{Type: "client", Op: req.op, Attempt: attempt, Underlying: err}
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.token)
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &APIError{Type: "network", Op: req.op, Attempt: attempt, Underlying: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{Type: "network", Op: req.op, Attempt: attempt, Underlying: err}
	}

	if resp.StatusCode >= 400 {
		return nil, &APIError{
			Type:       categorizeHTTPError(resp.StatusCode),
			Op:         req.op,
			StatusCode: resp.StatusCode,
			Attempt:    attempt,
			Underlying: fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(data[:min(300, len(data))])),
		}
	}
	return data, nil
}

func (c *Client) record(counter *int64) {
	c.mutex.Lock()
	*counter++
	c.mutex.Unlock()
}

// GetMetrics returns request counters.
func (c *Client) GetMetrics() (sent, failed, retries int64) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.totalSent, c.totalFailed, c.totalRetries
}

func (c *Client) sendJSON(ctx context.Context, op, method, path string, payload, out any) error {
	var data []byte
	if payload != nil {
		var err error
		if data, err = json.Marshal(payload); err != nil {
			return fmt.Errorf("failed to encode %s request: %w", op, err)
		}
	}

	body, err := c.send(ctx, request{op: op, method: method, path: path, contentType: "application/json", body: data}, c.chat)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", op, err)
	}
	return nil
}

// Me returns the account the token belongs to.
func (c *Client) Me(ctx context.Context) (User, error) {
	var u User
	err := c.sendJSON(ctx, "get_me", http.MethodGet, "/api/v4/users/me", nil, &u)
	return u, err
}

func (c *Client) CreatePost(ctx context.Context, post Post) (Post, error) {
	var created Post
	err := c.sendJSON(ctx, "create_post", http.MethodPost, "/api/v4/posts", post, &created)
	return created, err
}

func (c *Client) UpdatePost(ctx context.Context, postID, channelID, message string) error {
	payload := Post{ID: postID, ChannelID: channelID, Message: message}
	return c.sendJSON(ctx, "update_post", http.MethodPut, "/api/v4/posts/"+postID, payload, nil)
}

func (c *Client) DeletePost(ctx context.Context, postID string) error {
	return c.sendJSON(ctx, "delete_post", http.MethodDelete, "/api/v4/posts/"+postID, nil, nil)
}

// GetFile downloads an attachment. Downloads are not retried.
func (c *Client) GetFile(ctx context.Context, fileID string) ([]byte, error) {
	return c.send(ctx, request{op: "get_file", method: http.MethodGet, path: "/api/v4/files/" + fileID}, c.download)
}

// UploadFile attaches data to the channel and returns the new file id.
func (c *Client) UploadFile(ctx context.Context, channelID, filename string, data []byte) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("channel_id", channelID); err != nil {
		return "", fmt.Errorf("failed to build upload: %w", err)
	}
	part, err := w.CreateFormFile("files", filename)
	if err != nil {
		return "", fmt.Errorf("failed to build upload: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("failed to build upload: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to build upload: %w", err)
	}

	body, err := c.send(ctx, request{
		op:          "upload_file",
		method:      http.MethodPost,
		path:        "/api/v4/files",
		contentType: w.FormDataContentType(),
		body:        buf.Bytes(),
	}, c.chat)
	if err != nil {
		return "", err
	}

	var resp struct {
		FileInfos []struct {
			ID string `json:"id"`
		} `json:"file_infos"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to decode upload response: %w", err)
	}
	if len(resp.FileInfos) == 0 {
		return "", fmt.Errorf("upload of %s returned no file info", filename)
	}
	return resp.FileInfos[0].ID, nil
}
