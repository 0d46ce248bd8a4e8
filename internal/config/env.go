package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables that override file configuration.
const (
	EnvProviderToken = "SHORTENER_PROVIDER_TOKEN"
	EnvGroupID       = "SHORTENER_GROUP_ID"
	EnvRedisAddr     = "SHORTENER_REDIS_ADDR"
	EnvPostgresDSN   = "SHORTENER_POSTGRES_DSN"
	EnvMaxRetries    = "SHORTENER_MAX_RETRIES"
	EnvDomains       = "SHORTENER_DOMAINS"
	EnvJWTSecret     = "SHORTENER_JWT_SECRET"
)

// Lookup reports the value of an environment variable.
type Lookup func(key string) (string, bool)

// LoadEnv returns a Lookup backed by the process environment and, for keys
// the process does not set, by the .env file at path. A missing file is
// not an error. The process environment is not modified.
func LoadEnv(path string) (Lookup, error) {
	values, err := godotenv.Read(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	return func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := values[key]
		return v, ok
	}, nil
}

// ApplyEnv overrides config values with the environment.
// Empty values are ignored.
func (c *Config) ApplyEnv(lookup Lookup) error {
	if lookup == nil {
		return nil
	}

	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}

	setString(&c.Provider.Token, get(EnvProviderToken))
	setString(&c.Provider.GroupID, get(EnvGroupID))
	setString(&c.Server.JWTSecret, get(EnvJWTSecret))

	if v := get(EnvRedisAddr); v != "" {
		c.Cache.Redis.Addr = v
		if c.Cache.Kind == "" {
			c.Cache.Kind = CacheRedis
		}
	}
	if v := get(EnvPostgresDSN); v != "" {
		c.Cache.Postgres.DSN = v
		if c.Cache.Kind == "" {
			c.Cache.Kind = CachePostgres
		}
	}

	if v := get(EnvMaxRetries); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMaxRetries, err)
		}
		c.MaxRetries = &n
	}

	if v := get(EnvDomains); v != "" {
		for _, d := range strings.Split(v, ",") {
			if d = strings.TrimSpace(d); d != "" {
				c.Domains = appendUnique(c.Domains, d)
			}
		}
	}

	return nil
}
