// Package checker decides whether a URL is reachable.
//
// A link is reachable when it answers 200 OK, either directly or after
// exactly one 301/302 redirect hop. Further redirects are not chained.
package checker

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"
)

// NetworkError wraps a transport failure (DNS, timeout, refused connection)
// that prevented a status code from being observed.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("checking %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Result describes the outcome of a reachability check.
type Result struct {
	URL         string // The URL that was checked
	StatusCode  int    // Status of the first response
	FinalURL    string // Redirect target, empty when no hop was followed
	FinalStatus int    // Status of the response that decided reachability
}

// Reachable reports whether the deciding response was exactly 200.
func (r Result) Reachable() bool {
	return r.FinalStatus == http.StatusOK
}

// Redirected reports whether a redirect hop was followed.
func (r Result) Redirected() bool {
	return r.FinalURL != ""
}

// Checker performs reachability checks with a shared HTTP client.
type Checker struct {
	opts   Options
	client *http.Client
}

// New creates a new Checker with the given options.
func New(opts Options) *Checker {
	return &Checker{
		opts:   opts,
		client: newHTTPClient(opts),
	}
}

// newHTTPClient creates an HTTP client with proper timeouts
// and connection pooling.
func newHTTPClient(opts Options) *http.Client {
	transport := &http.Transport{
		// Connection pooling - reuse connections for efficiency
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,

		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},

		// Timeout layers for different phases
		DialContext: (&net.Dialer{
			Timeout:   opts.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: opts.Timeout,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout:   opts.Timeout,
		Transport: transport,
		// Redirects are followed by hand, one hop at most.
		CheckRedirect: func(_ *http.Request, _ []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// IsReachable reports whether rawURL answers 200, following at most one redirect.
// Transport failures are returned as *NetworkError. A link without an
// http or https scheme and a host is never requested and is not reachable.
func (c *Checker) IsReachable(ctx context.Context, rawURL string) (bool, error) {
	res, err := c.Check(ctx, rawURL)
	if err != nil {
		return false, err
	}
	return res.Reachable(), nil
}

// Check requests rawURL and, on 301 or 302, requests the Location target once.
func (c *Checker) Check(ctx context.Context, rawURL string) (Result, error) {
	res := Result{URL: rawURL}
	if !requestable(rawURL) {
		return res, nil
	}

	status, location, err := c.fetch(ctx, rawURL)
	if err != nil {
		return res, err
	}
	res.StatusCode = status
	res.FinalStatus = status

	if status != http.StatusMovedPermanently && status != http.StatusFound {
		return res, nil
	}
	if location == "" {
		return res, nil
	}

	target, err := resolveLocation(rawURL, location)
	if err != nil {
		return res, &NetworkError{URL: rawURL, Err: err}
	}
	res.FinalURL = target
	if !requestable(target) {
		return res, nil
	}

	finalStatus, _, err := c.fetch(ctx, target)
	if err != nil {
		return res, err
	}
	res.FinalStatus = finalStatus

	return res, nil
}

// fetch performs HEAD with a GET fallback and returns the status and Location header.
func (c *Checker) fetch(ctx context.Context, rawURL string) (int, string, error) {
	status, location, err := c.doRequest(ctx, http.MethodHead, rawURL)

	// If HEAD fails with 405 or 501, try GET
	if err == nil && (status == http.StatusMethodNotAllowed || status == http.StatusNotImplemented) {
		status, location, err = c.doRequest(ctx, http.MethodGet, rawURL)
	}

	if err != nil {
		return 0, "", &NetworkError{URL: rawURL, Err: err}
	}
	return status, location, nil
}

// doRequest performs an HTTP request and returns the status code and Location header.
func (c *Checker) doRequest(ctx context.Context, method, rawURL string) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, http.NoBody)
	if err != nil {
		return 0, "", err
	}

	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Accept", "*/*")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	// For GET requests, drain body to allow connection reuse
	if method == http.MethodGet {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024*1024)) // 1MB max
	}

	return resp.StatusCode, resp.Header.Get("Location"), nil
}

// requestable reports whether rawURL is an absolute http(s) URL with a host.
func requestable(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// resolveLocation resolves a possibly relative Location header against the request URL.
func resolveLocation(base, location string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	l, err := url.Parse(location)
	if err != nil {
		return "", err
	}
	return b.ResolveReference(l).String(), nil
}
