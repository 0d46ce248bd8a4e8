// Package memory is an in-process cache model backed by a map.
package memory

import (
	"context"
	"sync"

	"github.com/leonardomso/shortener/internal/cache"
)

// Store keeps every record in memory. Several records may share a long link.
type Store struct {
	mu      sync.RWMutex
	records map[string][]*cache.Entry
}

// New creates an empty Store.
func New() *Store {
	return &Store{records: map[string][]*cache.Entry{}}
}

// NewRecord implements cache.Schema.
func (*Store) NewRecord() any {
	return &cache.Entry{}
}

// FindByLongLink implements cache.Finder. Records come back in insertion order.
func (s *Store) FindByLongLink(_ context.Context, longLink string) ([]cache.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.records[longLink]
	out := make([]cache.Record, 0, len(entries))
	for _, e := range entries {
		c := *e
		out = append(out, &c)
	}
	return out, nil
}

// Create implements cache.Creator.
func (s *Store) Create(_ context.Context, longLink, shortLink string) (cache.Record, error) {
	e := &cache.Entry{Long: longLink, Short: shortLink}

	s.mu.Lock()
	s.records[longLink] = append(s.records[longLink], e)
	s.mu.Unlock()

	c := *e
	return &c, nil
}

// Len returns the total number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, entries := range s.records {
		n += len(entries)
	}
	return n
}
