// Package httpfetch provides the default speedcore.Fetcher implementation,
// a thin net/http client carrying the 20s timeout spec.md §5 requires of
// HTTP helpers. It is a reference implementation only: the engine itself
// never imports net/http, it depends on the speedcore.Fetcher interface.
package httpfetch

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/speedcore-project/speedcore/spec"
)

// Client is a speedcore.Fetcher backed by net/http.
type Client struct {
	HTTP *http.Client
}

// New returns a Client with the spec-mandated default timeout.
func New() *Client {
	return NewWithTimeout(spec.DefaultHTTPTimeout)
}

// NewWithTimeout returns a Client using timeout in place of the default,
// for callers threading engineconfig.Config.HTTPTimeoutSeconds through.
func NewWithTimeout(timeout time.Duration) *Client {
	return &Client{HTTP: &http.Client{Timeout: timeout}}
}

// Fetch issues method against url, sending body as a POST form payload when
// method is "POST". It returns the non-2xx-aware status code and the full
// response body.
func (c *Client) Fetch(ctx context.Context, method, rawURL, body string) (int, []byte, error) {
	var reqBody io.Reader
	if method == http.MethodPost {
		reqBody = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reqBody)
	if err != nil {
		return 0, nil, err
	}
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, data, nil
}

// ParseQueryString decodes an "a=b&c=d" URL-encoded body into a map,
// matching the form used by the IP-info and share endpoints (spec.md §6).
func ParseQueryString(body string) map[string]string {
	out := map[string]string{}
	values, err := url.ParseQuery(body)
	if err != nil {
		return out
	}
	for k := range values {
		out[k] = values.Get(k)
	}
	return out
}
