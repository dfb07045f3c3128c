// Package viking talks to the external OpenViking knowledge base. Every
// call degrades to an empty result when the service is unreachable, so
// callers never have to special-case an absent deployment.
package viking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// Client is the knowledge-base surface the agent core consumes.
type Client interface {
	Read(ctx context.Context, uri string) (string, error)
	List(ctx context.Context, uri string) (string, error)
	Search(ctx context.Context, query, scope string) (string, error)
	Grep(ctx context.Context, pattern, scope string) (string, error)
	Glob(ctx context.Context, pattern, scope string) (string, error)
	SearchUserMemory(ctx context.Context, query string) (string, error)
	CommitConversation(ctx context.Context, content string) error
}

// HTTPClient is a Client backed by the OpenViking HTTP API.
type HTTPClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewHTTPClient creates a client for the service at baseURL.
func NewHTTPClient(baseURL, apiKey string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPClient) post(ctx context.Context, path string, payload map[string]any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("viking %s: status %d: %s", path, resp.StatusCode, data)
	}

	var result struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return string(data), nil
	}
	return result.Content, nil
}

func (c *HTTPClient) Read(ctx context.Context, uri string) (string, error) {
	return c.post(ctx, "/read", map[string]any{"uri": uri})
}

func (c *HTTPClient) List(ctx context.Context, uri string) (string, error) {
	return c.post(ctx, "/list", map[string]any{"uri": uri})
}

func (c *HTTPClient) Search(ctx context.Context, query, scope string) (string, error) {
	return c.post(ctx, "/search", map[string]any{"query": query, "scope": scope})
}

func (c *HTTPClient) Grep(ctx context.Context, pattern, scope string) (string, error) {
	return c.post(ctx, "/grep", map[string]any{"pattern": pattern, "scope": scope})
}

func (c *HTTPClient) Glob(ctx context.Context, pattern, scope string) (string, error) {
	return c.post(ctx, "/glob", map[string]any{"pattern": pattern, "scope": scope})
}

func (c *HTTPClient) SearchUserMemory(ctx context.Context, query string) (string, error) {
	return c.post(ctx, "/memory/search", map[string]any{"query": query})
}

func (c *HTTPClient) CommitConversation(ctx context.Context, content string) error {
	_, err := c.post(ctx, "/memory/commit", map[string]any{"content": content})
	if err != nil {
		logrus.Debugf("Viking commit failed: %v", err)
	}
	return err
}
