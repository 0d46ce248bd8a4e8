// Package redisstore is a cache model backed by Redis lists.
//
// Each long link maps to a list key holding its short links in insertion
// order, so duplicate records stay visible to the adapter.
package redisstore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/leonardomso/shortener/internal/cache"
)

// DefaultPrefix namespaces every key written by the store.
const DefaultPrefix = "shortener:link:"

// Store reads and writes records through a Redis client.
type Store struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// Option customizes a Store.
type Option func(*Store)

// WithPrefix overrides DefaultPrefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithTTL expires a long link's records ttl after the last insert. Zero keeps them forever.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// New creates a Store on top of client.
func New(client *redis.Client, opts ...Option) *Store {
	s := &Store{client: client, prefix: DefaultPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) key(longLink string) string {
	return s.prefix + longLink
}

// NewRecord implements cache.Schema.
func (*Store) NewRecord() any {
	return &cache.Entry{}
}

// FindByLongLink implements cache.Finder.
func (s *Store) FindByLongLink(ctx context.Context, longLink string) ([]cache.Record, error) {
	shorts, err := s.client.LRange(ctx, s.key(longLink), 0, -1).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	records := make([]cache.Record, 0, len(shorts))
	for _, short := range shorts {
		records = append(records, &cache.Entry{Long: longLink, Short: short})
	}
	return records, nil
}

// Create implements cache.Creator.
func (s *Store) Create(ctx context.Context, longLink, shortLink string) (cache.Record, error) {
	key := s.key(longLink)

	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, shortLink)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	return &cache.Entry{Long: longLink, Short: shortLink}, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
