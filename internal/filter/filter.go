// Package filter exempts links from shortening based on domains and patterns.
package filter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/gobwas/glob"

	"github.com/leonardomso/shortener/internal/hostname"
)

// Reason types reported by Match.
const (
	ReasonDomain  = "domain"
	ReasonPattern = "pattern"
	ReasonRegex   = "regex"
)

// IgnoreReason describes why a link was exempted.
type IgnoreReason struct {
	Type string // "domain", "pattern", or "regex"
	Rule string // The rule that matched
}

// Filter decides which allow-listed links must be left untouched.
// A Filter is immutable after New and safe for concurrent use.
type Filter struct {
	// domains maps domain names for O(1) lookup.
	// Each domain also matches its subdomains.
	domains map[string]bool

	// globPatterns are compiled glob patterns for URL matching.
	globPatterns []compiledGlob

	// regexPatterns are compiled regex patterns for URL matching.
	regexPatterns []compiledRegex
}

// compiledGlob holds a glob pattern and its original string for error reporting.
type compiledGlob struct {
	pattern  glob.Glob
	original string
}

// compiledRegex holds a regex pattern and its original string for error reporting.
type compiledRegex struct {
	pattern  *regexp.Regexp
	original string
}

// Config holds filter configuration.
type Config struct {
	Domains       []string // Domains to ignore (includes subdomains)
	GlobPatterns  []string // Glob patterns (e.g., "*/admin/*")
	RegexPatterns []string // Regex patterns (e.g., ".*\\.pdf$")
}

// New creates a new Filter from the given configuration.
// Patterns are compiled once; an error names the first pattern that fails.
func New(cfg Config) (*Filter, error) {
	f := &Filter{
		domains: map[string]bool{},
	}

	for _, d := range cfg.Domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			f.domains[strings.TrimPrefix(d, "www.")] = true
		}
	}

	for _, p := range cfg.GlobPatterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid glob pattern %q: %w", p, err)
		}
		f.globPatterns = append(f.globPatterns, compiledGlob{
			pattern:  g,
			original: p,
		})
	}

	for _, p := range cfg.RegexPatterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		r, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid regex pattern %q: %w", p, err)
		}
		f.regexPatterns = append(f.regexPatterns, compiledRegex{
			pattern:  r,
			original: p,
		})
	}

	return f, nil
}

// Match reports whether link should be left alone, and why.
// Check order (fastest first): domain → glob → regex.
func (f *Filter) Match(link string) (IgnoreReason, bool) {
	if f == nil {
		return IgnoreReason{}, false
	}

	if rule, ok := f.matchesDomain(link); ok {
		return IgnoreReason{Type: ReasonDomain, Rule: rule}, true
	}
	if rule, ok := f.matchesGlob(link); ok {
		return IgnoreReason{Type: ReasonPattern, Rule: rule}, true
	}
	if rule, ok := f.matchesRegex(link); ok {
		return IgnoreReason{Type: ReasonRegex, Rule: rule}, true
	}
	return IgnoreReason{}, false
}

// ShouldIgnore is Match without the reason.
func (f *Filter) ShouldIgnore(link string) bool {
	_, ok := f.Match(link)
	return ok
}

// matchesDomain checks if the link's host is, or is a subdomain of, an ignored domain.
func (f *Filter) matchesDomain(link string) (string, bool) {
	if len(f.domains) == 0 {
		return "", false
	}

	host, err := hostname.Normalize(link)
	if err != nil {
		return "", false
	}

	if f.domains[host] {
		return host, true
	}

	for domain := range f.domains {
		if strings.HasSuffix(host, "."+domain) {
			return domain, true
		}
	}

	return "", false
}

// matchesGlob checks if the link matches any glob pattern.
func (f *Filter) matchesGlob(link string) (string, bool) {
	for _, g := range f.globPatterns {
		if g.pattern.Match(link) {
			return g.original, true
		}
	}
	return "", false
}

// matchesRegex checks if the link matches any regex pattern.
func (f *Filter) matchesRegex(link string) (string, bool) {
	for _, r := range f.regexPatterns {
		if r.pattern.MatchString(link) {
			return r.original, true
		}
	}
	return "", false
}

// HasRules returns true if the filter has any rules defined.
func (f *Filter) HasRules() bool {
	if f == nil {
		return false
	}
	return len(f.domains) > 0 || len(f.globPatterns) > 0 || len(f.regexPatterns) > 0
}

// Stats returns a summary of the filter's rules.
func (f *Filter) Stats() (domains, globs, regexes int) {
	if f == nil {
		return 0, 0, 0
	}
	return len(f.domains), len(f.globPatterns), len(f.regexPatterns)
}
