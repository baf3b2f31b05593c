// Package labman is the HTTP submission boundary to the instrument
// controller. It posts finished workflow documents and performs no retries;
// transient-failure policy belongs to the caller.
package labman

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"labman/pkg/domain"
)

const defaultTimeout = 30 * time.Second

// Config holds explicit construction parameters for the client.
type Config struct {
	// BaseURL is the controller endpoint, e.g. "http://192.168.1.10:8080".
	BaseURL string
	// HTTPClient overrides the default client when set.
	HTTPClient *http.Client
	// Timeout applies when HTTPClient is nil. Defaults to 30s.
	Timeout time.Duration
}

// Client talks to the instrument controller.
type Client struct {
	base *url.URL
	http *http.Client
}

// New creates a client from Config.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("labman base URL required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse labman base URL: %w", err)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{base: base, http: httpClient}, nil
}

// APIError reports a non-2xx controller response.
type APIError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("labman %s: status %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// ValidateWorkflow asks the controller to dry-run validate a document.
func (c *Client) ValidateWorkflow(ctx context.Context, doc domain.WorkflowDocument) (json.RawMessage, error) {
	return c.post(ctx, "/ValidateWorkflow", doc)
}

// SubmitWorkflow loads a document for execution. The controller endpoint is
// named for the physical precondition: the mixing pots are loaded.
func (c *Client) SubmitWorkflow(ctx context.Context, doc domain.WorkflowDocument) (json.RawMessage, error) {
	return c.post(ctx, "/PotsLoaded", doc)
}

func (c *Client) post(ctx context.Context, endpoint string, doc domain.WorkflowDocument) (json.RawMessage, error) {
	payload, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode workflow document: %w", err)
	}
	target := c.base.JoinPath(endpoint).String()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}
	return json.RawMessage(body), nil
}
