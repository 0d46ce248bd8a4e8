// Package hostname extracts a comparable host name from URLs and bare domains.
package hostname

import (
	"fmt"
	"net/url"
	"strings"
)

// ParseError is returned when a URL or domain has no extractable host.
type ParseError struct {
	Input string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cannot extract host from %q: %v", e.Input, e.Err)
	}
	return fmt.Sprintf("cannot extract host from %q", e.Input)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Normalize returns the lower-cased host of a URL or bare domain,
// with a single leading "www." removed.
//
// Inputs without a scheme are parsed as if they started with "http://".
// Examples:
//
//	Normalize("https://WWW.Example.com/path") // "example.com"
//	Normalize("leafly.com")                   // "leafly.com"
//	Normalize("localhost:3000")               // "localhost"
func Normalize(urlOrDomain string) (string, error) {
	raw := strings.TrimSpace(urlOrDomain)
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", &ParseError{Input: urlOrDomain, Err: err}
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", &ParseError{Input: urlOrDomain}
	}

	return strings.TrimPrefix(host, "www."), nil
}

// NormalizeAll normalizes every entry and fails on the first bad one.
// Order is preserved, so the first allow-listed domain still wins.
func NormalizeAll(domains []string) ([]string, error) {
	hosts := make([]string, 0, len(domains))
	for _, d := range domains {
		h, err := Normalize(d)
		if err != nil {
			return nil, err
		}
		hosts = append(hosts, h)
	}
	return hosts, nil
}
