// internal/common/http/client.go
package http

import (
	"context"
	"net/http"
	"time"
)

// Client is a thin timeout-bounded HTTP client with optional basic auth.
type Client struct {
	httpClient *http.Client
	username   string
	password   string
}

func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// WithBasicAuth returns a copy of the client that signs every request.
func (c *Client) WithBasicAuth(username, password string) *Client {
	return &Client{
		httpClient: c.httpClient,
		username:   username,
		password:   password,
	}
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}
	return c.httpClient.Do(req)
}

// Get issues a GET bound to ctx.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}
