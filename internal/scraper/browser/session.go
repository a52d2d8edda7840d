package browser

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/JakeFAU/business-discovery/internal/retry"
)

// Session is one remote browser owned by a single scrape.
type Session struct {
	// ID is empty for local browsers, which have no replay.
	ID         string
	ConnectURL string
	ReplayURL  string
}

// SessionService opens and releases remote browser sessions.
type SessionService interface {
	Create(ctx context.Context) (Session, error)
	Release(ctx context.Context, id string) error
}

// ClientConfig configures the hosted browser session API.
type ClientConfig struct {
	BaseURL       string
	APIKey        string
	ProjectID     string
	ReplayBaseURL string
	HTTPClient    *http.Client
	Retry         *retry.ExponentialPolicy
}

// Client talks to a Browserbase-compatible session API.
type Client struct {
	cfg  ClientConfig
	http *http.Client
}

// NewClient validates cfg and returns a Client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("browser api key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.browserbase.com"
	}
	if cfg.ReplayBaseURL == "" {
		cfg.ReplayBaseURL = "https://www.browserbase.com/sessions"
	}
	if cfg.Retry == nil {
		cfg.Retry = retry.NewExponentialPolicy()
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.ReplayBaseURL = strings.TrimRight(cfg.ReplayBaseURL, "/")
	return &Client{cfg: cfg, http: hc}, nil
}

type createSessionRequest struct {
	ProjectID string `json:"projectId,omitempty"`
}

type createSessionResponse struct {
	ID         string `json:"id"`
	ConnectURL string `json:"connectUrl"`
}

type releaseSessionRequest struct {
	ProjectID string `json:"projectId,omitempty"`
	Status    string `json:"status"`
}

// Create opens a new remote session.
func (c *Client) Create(ctx context.Context) (Session, error) {
	resp, err := retry.Do(ctx, c.cfg.Retry.ForCreate(), func(ctx context.Context) (createSessionResponse, error) {
		var out createSessionResponse
		err := c.do(ctx, http.MethodPost, "/v1/sessions", createSessionRequest{ProjectID: c.cfg.ProjectID}, &out)
		return out, err
	})
	if err != nil {
		return Session{}, fmt.Errorf("create browser session: %w", err)
	}
	if resp.ID == "" || resp.ConnectURL == "" {
		return Session{}, errors.New("create browser session: response missing id or connectUrl")
	}
	return Session{
		ID:         resp.ID,
		ConnectURL: resp.ConnectURL,
		ReplayURL:  c.cfg.ReplayBaseURL + "/" + url.PathEscape(resp.ID),
	}, nil
}

// LiveViewer is implemented by session services that expose an embeddable
// live debugger view.
type LiveViewer interface {
	LiveViewURL(ctx context.Context, id string) (string, error)
}

type debugResponse struct {
	DebuggerFullscreenURL string `json:"debuggerFullscreenUrl"`
	DebuggerURL           string `json:"debuggerUrl"`
}

// LiveViewURL returns the embeddable live view for a running session.
func (c *Client) LiveViewURL(ctx context.Context, id string) (string, error) {
	var out debugResponse
	if err := c.do(ctx, http.MethodGet, "/v1/sessions/"+url.PathEscape(id)+"/debug", nil, &out); err != nil {
		return "", fmt.Errorf("live view for session %s: %w", id, err)
	}
	if out.DebuggerFullscreenURL != "" {
		return out.DebuggerFullscreenURL, nil
	}
	return out.DebuggerURL, nil
}

// Release asks the service to end the session.
func (c *Client) Release(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	body := releaseSessionRequest{ProjectID: c.cfg.ProjectID, Status: "REQUEST_RELEASE"}
	if err := c.do(ctx, http.MethodPost, "/v1/sessions/"+url.PathEscape(id), body, nil); err != nil {
		return fmt.Errorf("release browser session %s: %w", id, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-BB-API-Key", c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &retry.StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// LocalSessions drives a locally launched Chrome. Sessions have no id and
// therefore no replay.
type LocalSessions struct{}

// Create returns an empty Session; the opener launches Chrome itself.
func (LocalSessions) Create(context.Context) (Session, error) { return Session{}, nil }

// Release is a no-op for local browsers.
func (LocalSessions) Release(context.Context, string) error { return nil }
