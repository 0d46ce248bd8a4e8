package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/leonardomso/shortener/internal/cache"
	"github.com/leonardomso/shortener/internal/checker"
	"github.com/leonardomso/shortener/internal/config"
	"github.com/leonardomso/shortener/internal/metrics"
	"github.com/leonardomso/shortener/internal/provider"
	"github.com/leonardomso/shortener/internal/provider/bitly"
	"github.com/leonardomso/shortener/internal/provider/sqidsgen"
	"github.com/leonardomso/shortener/internal/shortener"
	"github.com/leonardomso/shortener/internal/store/local"
	"github.com/leonardomso/shortener/internal/store/memory"
	"github.com/leonardomso/shortener/internal/store/pgstore"
	"github.com/leonardomso/shortener/internal/store/redisstore"
)

// connectTimeout bounds connecting to the cache backends at startup.
const connectTimeout = 5 * time.Second

// app holds the shortener and the resources it owns.
type app struct {
	shortener *shortener.Shortener
	closers   []func()
}

// Close releases cache connections in reverse order of creation.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// newApp wires provider, cache store and checker into a shortener.
func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	metrics.Init()

	a := &app{}

	p, err := buildProvider(cfg)
	if err != nil {
		return nil, err
	}

	model, closers, err := buildCacheModel(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.closers = closers

	opts, err := cfg.CheckerOptions()
	if err != nil {
		a.Close()
		return nil, err
	}

	settings, err := cfg.Settings(shortener.DefaultSettings())
	if err != nil {
		a.Close()
		return nil, err
	}
	if model != nil {
		settings.CacheModel = model
	}

	if err := settings.Validate(); err != nil {
		a.Close()
		return nil, err
	}

	a.shortener = shortener.New(settings, p, checker.New(opts), logger)
	return a, nil
}

// buildProvider returns the configured provider. A nil provider lets the
// shortener build a Bitly client from the token in its settings.
func buildProvider(cfg *config.Config) (provider.Provider, error) {
	var p provider.Provider

	switch cfg.Provider.Kind {
	case "", config.ProviderBitly:
		if cfg.Provider.Domain == "" && cfg.Provider.BaseURL == "" && cfg.Provider.RateLimit == 0 {
			return nil, nil
		}
		var opts []bitly.Option
		if cfg.Provider.BaseURL != "" {
			opts = append(opts, bitly.WithBaseURL(cfg.Provider.BaseURL))
		}
		if cfg.Provider.Domain != "" {
			opts = append(opts, bitly.WithDomain(cfg.Provider.Domain))
		}
		p = bitly.New(cfg.Provider.Token, opts...)

	case config.ProviderSqids:
		if cfg.Provider.Domain == "" {
			return nil, errors.New("provider kind sqids requires provider.domain")
		}
		// Seed from the clock so restarts do not hand out codes again.
		g, err := sqidsgen.New(cfg.Provider.Domain, uint64(time.Now().Unix()))
		if err != nil {
			return nil, fmt.Errorf("creating sqids generator: %w", err)
		}
		p = g

	default:
		return nil, fmt.Errorf("unknown provider kind %q", cfg.Provider.Kind)
	}

	if cfg.Provider.RateLimit > 0 {
		p = provider.NewLimited(p, cfg.Provider.RateLimit, cfg.Provider.Burst)
	}
	return p, nil
}

// buildCacheModel opens the configured cache store. It returns a nil model
// when caching is disabled.
func buildCacheModel(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (cache.Model, []func(), error) {
	var (
		model   cache.Model
		closers []func()
	)

	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	switch cfg.Cache.Kind {
	case "", config.CacheNone:
		return nil, nil, nil

	case config.CacheMemory:
		model = memory.New()

	case config.CacheRedis:
		ttl, err := cfg.RedisTTL()
		if err != nil {
			return nil, nil, fmt.Errorf("cache.redis.ttl: %w", err)
		}
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
		closers = append(closers, func() { _ = client.Close() })

		var opts []redisstore.Option
		if cfg.Cache.Redis.Prefix != "" {
			opts = append(opts, redisstore.WithPrefix(cfg.Cache.Redis.Prefix))
		}
		if ttl > 0 {
			opts = append(opts, redisstore.WithTTL(ttl))
		}
		rs := redisstore.New(client, opts...)
		if err := rs.Ping(ctx); err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Cache.Redis.Addr, err)
		}
		model = rs

	case config.CachePostgres:
		pool, err := pgstore.Connect(ctx, cfg.Cache.Postgres.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		closers = append(closers, pool.Close)

		ps := pgstore.New(pool)
		if cfg.Cache.Postgres.Migrate {
			if err := ps.Migrate(ctx); err != nil {
				closeAll()
				return nil, nil, fmt.Errorf("migrating postgres: %w", err)
			}
		}
		model = ps

	default:
		return nil, nil, fmt.Errorf("unknown cache kind %q", cfg.Cache.Kind)
	}

	if cfg.Cache.LocalSize > 0 {
		l1, err := local.New(model, cfg.Cache.LocalSize)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("creating local cache: %w", err)
		}
		closers = append(closers, l1.Close)
		model = l1
	}

	logger.Debug().
		Str("kind", cfg.Cache.Kind).
		Int64("local_size", cfg.Cache.LocalSize).
		Msg("cache store ready")

	return model, closers, nil
}
