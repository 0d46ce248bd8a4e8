// Package config handles loading configuration from .shortenerrc files.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Configuration file names, checked in this order in every directory.
const (
	DefaultConfigFileName = ".shortenerrc.yaml"
	TOMLConfigFileName    = ".shortenerrc.toml"
)

// Supported provider kinds.
const (
	ProviderBitly = "bitly"
	ProviderSqids = "sqids"
)

// Supported cache kinds.
const (
	CacheNone     = "none"
	CacheMemory   = "memory"
	CacheRedis    = "redis"
	CachePostgres = "postgres"
)

// Config represents the complete configuration structure.
type Config struct {
	// Domains are the allow-listed domains whose links get shortened.
	Domains []string `yaml:"domains" toml:"domains"`

	// Tags are applied to every shortened link.
	Tags []string `yaml:"tags" toml:"tags"`

	StripProtocol              bool   `yaml:"strip_protocol" toml:"strip_protocol"`
	SkipReachabilityCheck      bool   `yaml:"skip_reachability_check" toml:"skip_reachability_check"`
	DegradeOnReachabilityError bool   `yaml:"degrade_on_reachability_error" toml:"degrade_on_reachability_error"`
	LocalhostReplacement       string `yaml:"localhost_replacement" toml:"localhost_replacement"`

	// MaxRetries is nil when unset so the built-in default applies.
	MaxRetries *int `yaml:"max_retries" toml:"max_retries"`

	// Durations use Go syntax, e.g. "500ms", "2s".
	RetryBackoff string `yaml:"retry_backoff" toml:"retry_backoff"`
	CallTimeout  string `yaml:"call_timeout" toml:"call_timeout"`

	Concurrency int `yaml:"concurrency" toml:"concurrency"`

	Provider ProviderConfig `yaml:"provider" toml:"provider"`
	Cache    CacheConfig    `yaml:"cache" toml:"cache"`
	Checker  CheckerConfig  `yaml:"checker" toml:"checker"`
	Server   ServerConfig   `yaml:"server" toml:"server"`
	Ignore   IgnoreConfig   `yaml:"ignore" toml:"ignore"`
}

// ProviderConfig selects and configures the shortening provider.
type ProviderConfig struct {
	// Kind is "bitly" (default) or "sqids".
	Kind    string `yaml:"kind" toml:"kind"`
	Token   string `yaml:"token" toml:"token"`
	GroupID string `yaml:"group_id" toml:"group_id"`

	// Domain is the Bitly short domain, or the base URL for sqids links.
	Domain string `yaml:"domain" toml:"domain"`

	// BaseURL overrides the provider API endpoint.
	BaseURL string `yaml:"base_url" toml:"base_url"`

	// RateLimit is the maximum calls per second; 0 disables throttling.
	RateLimit float64 `yaml:"rate_limit" toml:"rate_limit"`
	Burst     int     `yaml:"burst" toml:"burst"`
}

// CacheConfig selects the cache store.
type CacheConfig struct {
	// Kind is "none" (default), "memory", "redis" or "postgres".
	Kind string `yaml:"kind" toml:"kind"`

	// LocalSize enables an in-process layer in front of the store
	// holding up to this many links.
	LocalSize int64 `yaml:"local_size" toml:"local_size"`

	Redis    RedisConfig    `yaml:"redis" toml:"redis"`
	Postgres PostgresConfig `yaml:"postgres" toml:"postgres"`
}

// RedisConfig configures the Redis cache store.
type RedisConfig struct {
	Addr     string `yaml:"addr" toml:"addr"`
	Password string `yaml:"password" toml:"password"`
	DB       int    `yaml:"db" toml:"db"`
	Prefix   string `yaml:"prefix" toml:"prefix"`
	TTL      string `yaml:"ttl" toml:"ttl"`
}

// PostgresConfig configures the Postgres cache store.
type PostgresConfig struct {
	DSN     string `yaml:"dsn" toml:"dsn"`
	Migrate bool   `yaml:"migrate" toml:"migrate"`
}

// CheckerConfig configures the reachability check.
type CheckerConfig struct {
	Timeout   string `yaml:"timeout" toml:"timeout"`
	// UserAgent overrides the checker's User-Agent; "browser" sends a
	// desktop browser string.
	UserAgent string `yaml:"user_agent" toml:"user_agent"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr" toml:"addr"`

	// ShutdownTimeout bounds graceful shutdown, e.g. "10s".
	ShutdownTimeout string `yaml:"shutdown_timeout" toml:"shutdown_timeout"`

	// OTLPEndpoint enables trace export over gRPC when set.
	OTLPEndpoint string `yaml:"otlp_endpoint" toml:"otlp_endpoint"`
	ServiceName  string `yaml:"service_name" toml:"service_name"`

	// JWTSecret enables bearer token auth on the shorten endpoint.
	JWTSecret string `yaml:"jwt_secret" toml:"jwt_secret"`
	JWTIssuer string `yaml:"jwt_issuer" toml:"jwt_issuer"`
}

// IgnoreConfig holds all ignore rules.
type IgnoreConfig struct {
	// Domains to ignore (automatically includes subdomains).
	// Example: "example.com" will also match "www.example.com", "api.example.com".
	Domains []string `yaml:"domains" toml:"domains"`

	// Patterns are glob patterns for URL matching.
	// Example: "*.local/*", "*/internal/*"
	Patterns []string `yaml:"patterns" toml:"patterns"`

	// Regex are regular expression patterns for URL matching.
	// Example: ".*\\.test$", ".*/v[0-9]+/draft/.*"
	Regex []string `yaml:"regex" toml:"regex"`
}

// Load reads configuration from the current directory.
// Returns an empty config if no file exists (not an error).
func Load() (*Config, error) {
	for _, name := range []string{DefaultConfigFileName, TOMLConfigFileName} {
		if _, err := os.Stat(name); err == nil {
			return LoadFrom(name)
		}
	}
	return &Config{}, nil
}

// LoadFrom reads configuration from a specific path. Files ending in
// ".toml" are parsed as TOML, everything else as YAML.
// Returns an empty config if the file doesn't exist (not an error).
// Returns an error only if the file exists but cannot be parsed.
func LoadFrom(path string) (*Config, error) {
	// Start with empty config
	cfg := &Config{}

	// Read the file
	data, err := os.ReadFile(path)
	if err != nil {
		// File not found is not an error - just return empty config
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if err := toml.NewDecoder(bytes.NewReader(data)).Decode(cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		return cfg, nil
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	return cfg, nil
}

// FindAndLoad searches for a config file starting from the given directory
// and walking up to parent directories until it finds one or reaches root.
// This allows project-specific configs to be found from subdirectories.
func FindAndLoad(startDir string) (*Config, error) {
	dir := startDir

	for {
		for _, name := range []string{DefaultConfigFileName, TOMLConfigFileName} {
			configPath := filepath.Join(dir, name)
			if _, err := os.Stat(configPath); err == nil {
				return LoadFrom(configPath)
			}
		}

		// Move to parent directory
		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root, no config found
			return &Config{}, nil
		}
		dir = parent
	}
}

// IsEmpty returns true if the config sets nothing.
func (c *Config) IsEmpty() bool {
	return len(c.Domains) == 0 &&
		len(c.Tags) == 0 &&
		c.MaxRetries == nil &&
		c.Provider == (ProviderConfig{}) &&
		c.Cache == (CacheConfig{}) &&
		c.Checker == (CheckerConfig{}) &&
		c.Server == (ServerConfig{}) &&
		c.Ignore.IsEmpty() &&
		!c.StripProtocol &&
		!c.SkipReachabilityCheck &&
		!c.DegradeOnReachabilityError &&
		c.LocalhostReplacement == "" &&
		c.RetryBackoff == "" &&
		c.CallTimeout == "" &&
		c.Concurrency == 0
}

// IsEmpty returns true if no ignore rules are defined.
func (i IgnoreConfig) IsEmpty() bool {
	return len(i.Domains) == 0 &&
		len(i.Patterns) == 0 &&
		len(i.Regex) == 0
}

// Merge combines another config into this one.
// Lists are appended without duplicates; scalars set in other win.
// This is useful for merging CLI flags with file config.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	c.Domains = appendUnique(c.Domains, other.Domains...)
	c.Tags = appendUnique(c.Tags, other.Tags...)
	c.Ignore.Domains = appendUnique(c.Ignore.Domains, other.Ignore.Domains...)
	c.Ignore.Patterns = appendUnique(c.Ignore.Patterns, other.Ignore.Patterns...)
	c.Ignore.Regex = appendUnique(c.Ignore.Regex, other.Ignore.Regex...)

	c.StripProtocol = c.StripProtocol || other.StripProtocol
	c.SkipReachabilityCheck = c.SkipReachabilityCheck || other.SkipReachabilityCheck
	c.DegradeOnReachabilityError = c.DegradeOnReachabilityError || other.DegradeOnReachabilityError

	if other.MaxRetries != nil {
		n := *other.MaxRetries
		c.MaxRetries = &n
	}
	setString(&c.LocalhostReplacement, other.LocalhostReplacement)
	setString(&c.RetryBackoff, other.RetryBackoff)
	setString(&c.CallTimeout, other.CallTimeout)
	if other.Concurrency != 0 {
		c.Concurrency = other.Concurrency
	}

	setString(&c.Provider.Kind, other.Provider.Kind)
	setString(&c.Provider.Token, other.Provider.Token)
	setString(&c.Provider.GroupID, other.Provider.GroupID)
	setString(&c.Provider.Domain, other.Provider.Domain)
	setString(&c.Provider.BaseURL, other.Provider.BaseURL)
	if other.Provider.RateLimit != 0 {
		c.Provider.RateLimit = other.Provider.RateLimit
	}
	if other.Provider.Burst != 0 {
		c.Provider.Burst = other.Provider.Burst
	}

	setString(&c.Cache.Kind, other.Cache.Kind)
	if other.Cache.LocalSize != 0 {
		c.Cache.LocalSize = other.Cache.LocalSize
	}
	setString(&c.Cache.Redis.Addr, other.Cache.Redis.Addr)
	setString(&c.Cache.Redis.Password, other.Cache.Redis.Password)
	setString(&c.Cache.Redis.Prefix, other.Cache.Redis.Prefix)
	setString(&c.Cache.Redis.TTL, other.Cache.Redis.TTL)
	if other.Cache.Redis.DB != 0 {
		c.Cache.Redis.DB = other.Cache.Redis.DB
	}
	setString(&c.Cache.Postgres.DSN, other.Cache.Postgres.DSN)
	c.Cache.Postgres.Migrate = c.Cache.Postgres.Migrate || other.Cache.Postgres.Migrate

	setString(&c.Checker.Timeout, other.Checker.Timeout)
	setString(&c.Checker.UserAgent, other.Checker.UserAgent)
	setString(&c.Server.Addr, other.Server.Addr)
	setString(&c.Server.ShutdownTimeout, other.Server.ShutdownTimeout)
	setString(&c.Server.OTLPEndpoint, other.Server.OTLPEndpoint)
	setString(&c.Server.ServiceName, other.Server.ServiceName)
	setString(&c.Server.JWTSecret, other.Server.JWTSecret)
	setString(&c.Server.JWTIssuer, other.Server.JWTIssuer)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		if !slices.Contains(dst, v) {
			dst = append(dst, v)
		}
	}
	return dst
}
