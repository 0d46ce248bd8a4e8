// Package local puts an in-process ristretto cache in front of another cache model.
package local

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/leonardomso/shortener/internal/cache"
)

// Store is an L1 layer over a backing cache.Model.
// Hits are served from memory; misses are remembered for a short time.
type Store struct {
	backing  cache.Model
	cache    *ristretto.Cache
	ttl      time.Duration
	emptyTTL time.Duration
}

// New creates an L1 layer holding up to maxItems long links.
func New(backing cache.Model, maxItems int64) (*Store, error) {
	if maxItems <= 0 {
		maxItems = 10_000
	}
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxItems * 10,
		MaxCost:     maxItems,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Store{
		backing:  backing,
		cache:    c,
		ttl:      5 * time.Minute,
		emptyTTL: 10 * time.Second,
	}, nil
}

// NewRecord implements cache.Schema.
func (s *Store) NewRecord() any {
	return s.backing.NewRecord()
}

// FindByLongLink implements cache.Finder.
func (s *Store) FindByLongLink(ctx context.Context, longLink string) ([]cache.Record, error) {
	if v, ok := s.cache.Get(longLink); ok {
		return toRecords(longLink, v.([]string)), nil
	}

	records, err := s.backing.FindByLongLink(ctx, longLink)
	if err != nil {
		return nil, err
	}

	shorts := make([]string, 0, len(records))
	for _, r := range records {
		shorts = append(shorts, r.ShortLink())
	}

	ttl := s.ttl
	if len(shorts) == 0 {
		ttl = s.emptyTTL
	}
	s.cache.SetWithTTL(longLink, shorts, 1, ttl)
	s.cache.Wait()

	return records, nil
}

// Create implements cache.Creator. The L1 entry is dropped so the next
// lookup sees every record, including any duplicates.
func (s *Store) Create(ctx context.Context, longLink, shortLink string) (cache.Record, error) {
	rec, err := s.backing.Create(ctx, longLink, shortLink)
	if err != nil {
		return nil, err
	}
	s.cache.Del(longLink)
	return rec, nil
}

// Close releases the L1 cache.
func (s *Store) Close() {
	s.cache.Close()
}

func toRecords(longLink string, shorts []string) []cache.Record {
	records := make([]cache.Record, 0, len(shorts))
	for _, short := range shorts {
		records = append(records, &cache.Entry{Long: longLink, Short: short})
	}
	return records
}
