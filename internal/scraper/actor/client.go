package actor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/JakeFAU/business-discovery/internal/retry"
)

// Terminal run statuses.
const (
	statusSucceeded = "SUCCEEDED"
	statusFailed    = "FAILED"
	statusAborted   = "ABORTED"
	statusTimedOut  = "TIMED-OUT"
)

// maxWaitForFinish is the longest server-side wait a single poll may request.
const maxWaitForFinish = 60

// Run is the subset of an actor run the provider reads.
type Run struct {
	ID               string `json:"id"`
	Status           string `json:"status"`
	DefaultDatasetID string `json:"defaultDatasetId"`
}

func (r Run) terminal() bool {
	switch r.Status {
	case statusSucceeded, statusFailed, statusAborted, statusTimedOut:
		return true
	}
	return false
}

type runEnvelope struct {
	Data Run `json:"data"`
}

// Client calls an Apify-compatible REST API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	retry   *retry.ExponentialPolicy
}

// NewClient returns a Client for baseURL authenticated with token.
func NewClient(baseURL, token string, hc *http.Client, policy *retry.ExponentialPolicy) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 90 * time.Second}
	}
	if policy == nil {
		policy = retry.NewExponentialPolicy()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    hc,
		retry:   policy,
	}
}

// StartRun launches actorID with input and returns the created run.
func (c *Client) StartRun(ctx context.Context, actorID string, input any) (Run, error) {
	path := "/v2/acts/" + url.PathEscape(actorID) + "/runs"
	env, err := retry.Do(ctx, c.retry.ForCreate(), func(ctx context.Context) (runEnvelope, error) {
		var out runEnvelope
		return out, c.do(ctx, http.MethodPost, path, nil, input, &out)
	})
	if err != nil {
		return Run{}, fmt.Errorf("start actor run: %w", err)
	}
	if env.Data.ID == "" {
		return Run{}, errors.New("start actor run: response missing run id")
	}
	return env.Data, nil
}

// GetRun fetches a run, asking the server to hold the request up to wait for
// it to finish.
func (c *Client) GetRun(ctx context.Context, runID string, wait time.Duration) (Run, error) {
	secs := int(wait / time.Second)
	if secs > maxWaitForFinish {
		secs = maxWaitForFinish
	}
	if secs < 0 {
		secs = 0
	}
	query := url.Values{"waitForFinish": {strconv.Itoa(secs)}}
	env, err := retry.Do(ctx, c.retry, func(ctx context.Context) (runEnvelope, error) {
		var out runEnvelope
		return out, c.do(ctx, http.MethodGet, "/v2/actor-runs/"+url.PathEscape(runID), query, nil, &out)
	})
	if err != nil {
		return Run{}, fmt.Errorf("get actor run %s: %w", runID, err)
	}
	return env.Data, nil
}

// DatasetItems reads every item of a dataset as loosely typed maps.
func (c *Client) DatasetItems(ctx context.Context, datasetID string) ([]map[string]any, error) {
	query := url.Values{"clean": {"true"}, "format": {"json"}}
	items, err := retry.Do(ctx, c.retry, func(ctx context.Context) ([]map[string]any, error) {
		var out []map[string]any
		return out, c.do(ctx, http.MethodGet, "/v2/datasets/"+url.PathEscape(datasetID)+"/items", query, nil, &out)
	})
	if err != nil {
		return nil, fmt.Errorf("read dataset %s: %w", datasetID, err)
	}
	return items, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &retry.StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
