// Package bitly is a provider.Provider backed by the Bitly v4 API.
package bitly

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/leonardomso/shortener/internal/provider"
)

// DefaultBaseURL is the Bitly API root.
const DefaultBaseURL = "https://api-ssl.bitly.com"

// Client calls POST /v4/bitlinks.
type Client struct {
	token   string
	baseURL string
	domain  string
	http    *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL points the client at another API root (tests, proxies).
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithDomain sets a branded short domain, e.g. "leafly.info".
func WithDomain(d string) Option {
	return func(c *Client) {
		c.domain = d
	}
}

// WithHTTPClient replaces the default instrumented HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// New creates a Client authenticating with token.
func New(token string, opts ...Option) *Client {
	c := &Client{
		token:   token,
		baseURL: DefaultBaseURL,
		http: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type createRequest struct {
	LongURL   string   `json:"long_url"`
	Domain    string   `json:"domain,omitempty"`
	GroupGUID string   `json:"group_guid,omitempty"`
	Tags      []string `json:"tags,omitempty"`
}

type createResponse struct {
	Link string `json:"link"`
}

type errorResponse struct {
	Message     string `json:"message"`
	Description string `json:"description"`
}

// Shorten implements provider.Provider.
func (c *Client) Shorten(ctx context.Context, req provider.Request) (string, error) {
	body, err := json.Marshal(createRequest{
		LongURL:   req.LongURL,
		Domain:    c.domain,
		GroupGUID: req.GroupID,
		Tags:      req.Tags,
	})
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v4/bitlinks", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.token)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", &provider.NetworkError{Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", &provider.NetworkError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", decodeError(resp.StatusCode, data)
	}

	var out createResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", &provider.Error{StatusCode: resp.StatusCode, Message: fmt.Sprintf("decoding response: %v", err)}
	}
	if out.Link == "" {
		return "", &provider.Error{StatusCode: resp.StatusCode, Message: "response has no link"}
	}
	return out.Link, nil
}

// decodeError maps a non-2xx Bitly response to a provider.Error.
func decodeError(status int, data []byte) error {
	var e errorResponse
	msg := strings.TrimSpace(string(data))
	if json.Unmarshal(data, &e) == nil && e.Message != "" {
		msg = e.Message
		if e.Description != "" {
			msg += ": " + e.Description
		}
	}
	return &provider.Error{StatusCode: status, Message: msg}
}
