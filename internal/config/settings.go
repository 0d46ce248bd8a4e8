package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/leonardomso/shortener/internal/checker"
	"github.com/leonardomso/shortener/internal/filter"
	"github.com/leonardomso/shortener/internal/shortener"
)

// Validate reports problems that make the config unusable.
// A negative max_retries is left for the shortener to reject per call.
func (c *Config) Validate() error {
	var errs []error

	switch c.Provider.Kind {
	case "", ProviderBitly, ProviderSqids:
	default:
		errs = append(errs, fmt.Errorf("unknown provider kind %q", c.Provider.Kind))
	}
	if c.Provider.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("provider rate_limit must not be negative, got %v", c.Provider.RateLimit))
	}

	switch c.Cache.Kind {
	case "", CacheNone, CacheMemory:
	case CacheRedis:
		if c.Cache.Redis.Addr == "" {
			errs = append(errs, errors.New("cache kind redis requires cache.redis.addr"))
		}
	case CachePostgres:
		if c.Cache.Postgres.DSN == "" {
			errs = append(errs, errors.New("cache kind postgres requires cache.postgres.dsn"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown cache kind %q", c.Cache.Kind))
	}

	for name, value := range map[string]string{
		"retry_backoff":   c.RetryBackoff,
		"call_timeout":    c.CallTimeout,
		"checker.timeout": c.Checker.Timeout,
		"cache.redis.ttl": c.Cache.Redis.TTL,

		"server.shutdown_timeout": c.Server.ShutdownTimeout,
	} {
		if _, err := parseDuration(value); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	if _, err := c.Filter(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Filter compiles the ignore rules.
func (c *Config) Filter() (*filter.Filter, error) {
	return filter.New(filter.Config{
		Domains:       c.Ignore.Domains,
		GlobPatterns:  c.Ignore.Patterns,
		RegexPatterns: c.Ignore.Regex,
	})
}

// Settings converts the config into shortener settings. Fields the config
// leaves unset keep their value from base. The cache model is not set here.
func (c *Config) Settings(base shortener.Settings) (shortener.Settings, error) {
	s := base

	if len(c.Domains) > 0 {
		s.Domains = append([]string(nil), c.Domains...)
	}
	if len(c.Tags) > 0 {
		s.DefaultTags = append([]string(nil), c.Tags...)
	}
	if c.Provider.Token != "" {
		s.ProviderToken = c.Provider.Token
	}
	if c.Provider.GroupID != "" {
		s.ProviderGroupID = c.Provider.GroupID
	}
	if c.MaxRetries != nil {
		s.MaxRetries = *c.MaxRetries
	}
	if c.LocalhostReplacement != "" {
		s.LocalhostReplacement = c.LocalhostReplacement
	}
	if c.Concurrency != 0 {
		s.Concurrency = c.Concurrency
	}
	s.StripProtocol = s.StripProtocol || c.StripProtocol
	s.SkipReachabilityCheck = s.SkipReachabilityCheck || c.SkipReachabilityCheck
	s.DegradeOnReachabilityError = s.DegradeOnReachabilityError || c.DegradeOnReachabilityError

	backoff, err := parseDuration(c.RetryBackoff)
	if err != nil {
		return s, fmt.Errorf("retry_backoff: %w", err)
	}
	if backoff > 0 {
		s.RetryBackoff = backoff
	}

	timeout, err := parseDuration(c.CallTimeout)
	if err != nil {
		return s, fmt.Errorf("call_timeout: %w", err)
	}
	if timeout > 0 {
		s.CallTimeout = timeout
	}

	if !c.Ignore.IsEmpty() {
		f, err := c.Filter()
		if err != nil {
			return s, err
		}
		s.Ignore = f
	}

	return s, nil
}

// CheckerOptions converts the checker section into checker options.
func (c *Config) CheckerOptions() (checker.Options, error) {
	opts := checker.DefaultOptions()

	timeout, err := parseDuration(c.Checker.Timeout)
	if err != nil {
		return opts, fmt.Errorf("checker.timeout: %w", err)
	}

	return opts.WithTimeout(timeout).WithUserAgent(c.Checker.UserAgent), nil
}

// RedisTTL returns the parsed Redis record TTL (0 when unset).
func (c *Config) RedisTTL() (time.Duration, error) {
	return parseDuration(c.Cache.Redis.TTL)
}

// ShutdownTimeout returns the parsed server shutdown timeout, or def when unset.
func (c *Config) ShutdownTimeout(def time.Duration) (time.Duration, error) {
	d, err := parseDuration(c.Server.ShutdownTimeout)
	if err != nil || d == 0 {
		return def, err
	}
	return d, nil
}

// parseDuration parses Go duration syntax. Empty means zero.
func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration must not be negative, got %s", s)
	}
	return d, nil
}
