// Package client provides a small Go SDK for the cache's public HTTP API.
//
// The client talks to a single replica; that replica replicates accepted
// writes to its peers, so the caller never deals with cluster topology.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrNotFound is returned by Get when the key has no live entry.
var ErrNotFound = errors.New("key not found")

// Client represents a connection to one cache replica.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new Client. baseURL example: "http://localhost:8080".
func New(baseURL string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Put stores value under key.
func (c *Client) Put(ctx context.Context, key, value string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		c.baseURL+"/api/v1/cache/"+url.PathEscape(key), strings.NewReader(value))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "text/plain")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("server returned HTTP %d", resp.StatusCode)
	}
	return nil
}

// Get retrieves the value stored under key, or ErrNotFound.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	body, status, err := c.GetRaw(ctx, "/api/v1/cache/"+url.PathEscape(key))
	if err != nil {
		return "", err
	}
	switch status {
	case http.StatusOK:
		return body, nil
	case http.StatusNotFound:
		return "", ErrNotFound
	default:
		return "", fmt.Errorf("server returned HTTP %d", status)
	}
}

// GetRaw performs a GET against an arbitrary path and returns the body and
// status code. Used for the endpoints without a dedicated wrapper.
func (c *Client) GetRaw(ctx context.Context, path string) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return "", 0, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", resp.StatusCode, err
	}
	return string(body), resp.StatusCode, nil
}
