package shortener

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leonardomso/shortener/internal/cache"
	"github.com/leonardomso/shortener/internal/checker"
	"github.com/leonardomso/shortener/internal/filter"
	"github.com/leonardomso/shortener/internal/provider"
	"github.com/leonardomso/shortener/internal/provider/bitly"
	"github.com/leonardomso/shortener/internal/store/memory"
)

// =============================================================================
// Test doubles
// =============================================================================

// fakeProvider records every request and answers through respond.
type fakeProvider struct {
	mu       sync.Mutex
	requests []provider.Request
	respond  func(n int, req provider.Request) (string, error)
}

func (p *fakeProvider) Shorten(_ context.Context, req provider.Request) (string, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	n := len(p.requests)
	p.mu.Unlock()
	return p.respond(n, req)
}

func (p *fakeProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

func (p *fakeProvider) last() provider.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requests[len(p.requests)-1]
}

func shortensTo(short string) *fakeProvider {
	return &fakeProvider{respond: func(int, provider.Request) (string, error) { return short, nil }}
}

func alwaysFails() *fakeProvider {
	return &fakeProvider{respond: func(int, provider.Request) (string, error) {
		return "", &provider.Error{StatusCode: 429, Message: "RATE_LIMIT_EXCEEDED"}
	}}
}

// countingValidator answers a fixed result and counts calls.
type countingValidator struct {
	alive bool
	err   error
	n     atomic.Int32
}

func (v *countingValidator) IsReachable(context.Context, string) (bool, error) {
	v.n.Add(1)
	return v.alive, v.err
}

func alive() *countingValidator { return &countingValidator{alive: true} }

func newTestShortener(settings Settings, p provider.Provider, v Validator) *Shortener {
	return New(settings, p, v, zerolog.Nop())
}

func leaflySettings() Settings {
	s := DefaultSettings()
	s.Domains = []string{"leafly.com"}
	return s
}

// =============================================================================
// Process Tests
// =============================================================================

func TestProcess_NoAllowListedDomainIsIdentity(t *testing.T) {
	t.Parallel()

	p := shortensTo("https://leafly.info/1")
	v := alive()
	s := newTestShortener(leaflySettings(), p, v)

	texts := []string{
		"",
		"nothing to see here",
		"visit https://example.com/page and http://other.org",
		"leafly without a dot com",
	}

	for _, text := range texts {
		got, err := s.Process(context.Background(), text)
		require.NoError(t, err)
		assert.Equal(t, text, got)
	}
	assert.Equal(t, 0, p.calls())
	assert.Equal(t, int32(0), v.n.Load())
}

func TestProcess_ReplacesOnlyMatchingToken(t *testing.T) {
	t.Parallel()

	p := shortensTo("https://leafly.info/1CVNybj")
	s := newTestShortener(leaflySettings(), p, alive())

	got, err := s.Process(context.Background(), "read https://www.leafly.com/strains/blue-dream today")
	require.NoError(t, err)

	assert.Equal(t, "read https://leafly.info/1CVNybj today", got)
	assert.Equal(t, 1, p.calls())
	assert.Equal(t, "https://www.leafly.com/strains/blue-dream", p.last().LongURL)
}

func TestProcess_CollapsesWhitespace(t *testing.T) {
	t.Parallel()

	s := newTestShortener(leaflySettings(), shortensTo("x"), alive())

	got, err := s.Process(context.Background(), "  one\ttwo \n\n three  ")
	require.NoError(t, err)
	assert.Equal(t, "one two three", got)
}

func TestProcess_DomainMatching(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		domains  []string
		token    string
		expected string
	}{
		{"BareDomain", []string{"leafly.com"}, "https://leafly.com/a", "leafly.com"},
		{"URLDomain", []string{"https://WWW.Leafly.com/news"}, "https://leafly.com/a", "https://WWW.Leafly.com/news"},
		{"FirstDomainWins", []string{"leafly.com", "leafly.com/a"}, "https://leafly.com/a", "leafly.com"},
		{"SecondDomain", []string{"example.org", "leafly.com"}, "https://leafly.com/a", "leafly.com"},
		{"SubstringMatch", []string{"leafly.com"}, "https://leafly.com.evil.net/x", "leafly.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := newTestShortener(DefaultSettings(), shortensTo("https://s.io/1"), alive())

			report, err := s.ProcessDetailed(context.Background(), tt.token, WithDomains(tt.domains...))
			require.NoError(t, err)
			require.Len(t, report.Replacements, 1)
			assert.Equal(t, tt.expected, report.Replacements[0].Domain)
			assert.Equal(t, "https://s.io/1", report.Text)
		})
	}
}

func TestProcess_InvalidDomainIsConfigurationError(t *testing.T) {
	t.Parallel()

	p := shortensTo("x")
	s := newTestShortener(DefaultSettings(), p, alive())

	_, err := s.Process(context.Background(), "https://leafly.com", WithDomains("http://"))

	var cerr *ConfigurationError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "domains", cerr.Field)
	assert.Equal(t, 0, p.calls())
}

// =============================================================================
// Reachability Tests
// =============================================================================

func TestProcess_UnreachableLinkIsLeftAlone(t *testing.T) {
	t.Parallel()

	p := shortensTo("https://leafly.info/1")
	s := newTestShortener(leaflySettings(), p, &countingValidator{alive: false})

	report, err := s.ProcessDetailed(context.Background(), "go https://leafly.com/404 now")
	require.NoError(t, err)

	assert.Equal(t, "go https://leafly.com/404 now", report.Text)
	assert.Equal(t, 0, p.calls())
	require.Len(t, report.Replacements, 1)
	assert.Equal(t, StatusUnreachable, report.Replacements[0].Status)
	assert.False(t, report.Replacements[0].Changed())
}

func TestProcess_SkipReachabilityCheck(t *testing.T) {
	t.Parallel()

	t.Run("FromSettings", func(t *testing.T) {
		t.Parallel()
		cfg := leaflySettings()
		cfg.SkipReachabilityCheck = true
		v := &countingValidator{alive: false}
		s := newTestShortener(cfg, shortensTo("https://leafly.info/1"), v)

		got, err := s.Process(context.Background(), "https://leafly.com/404")
		require.NoError(t, err)
		assert.Equal(t, "https://leafly.info/1", got)
		assert.Equal(t, int32(0), v.n.Load())
	})

	t.Run("PerCallOverride", func(t *testing.T) {
		t.Parallel()
		cfg := leaflySettings()
		cfg.SkipReachabilityCheck = true
		v := &countingValidator{alive: false}
		s := newTestShortener(cfg, shortensTo("https://leafly.info/1"), v)

		got, err := s.Process(context.Background(), "https://leafly.com/404", WithSkipReachabilityCheck(false))
		require.NoError(t, err)
		assert.Equal(t, "https://leafly.com/404", got)
		assert.Equal(t, int32(1), v.n.Load())
	})
}

func TestProcess_BareDomainTokenIsLeftAlone(t *testing.T) {
	t.Parallel()

	p := shortensTo("https://leafly.info/1")
	s := newTestShortener(leaflySettings(), p, checker.New(checker.DefaultOptions()))

	report, err := s.ProcessDetailed(context.Background(), "see leafly.com/deals or leafly.com, today")
	require.NoError(t, err)

	assert.Equal(t, "see leafly.com/deals or leafly.com, today", report.Text)
	require.Len(t, report.Replacements, 2)
	for _, rep := range report.Replacements {
		assert.Equal(t, StatusUnreachable, rep.Status)
	}
	assert.Equal(t, 0, p.calls())
}

func TestProcess_ReachabilityErrorAbortsByDefault(t *testing.T) {
	t.Parallel()

	netErr := &checker.NetworkError{URL: "https://leafly.com", Err: errors.New("connection refused")}
	p := shortensTo("https://leafly.info/1")
	s := newTestShortener(leaflySettings(), p, &countingValidator{err: netErr})

	_, err := s.Process(context.Background(), "a https://leafly.com b")
	require.Error(t, err)

	var nerr *checker.NetworkError
	require.ErrorAs(t, err, &nerr)
	assert.Equal(t, 0, p.calls())
}

func TestProcess_ReachabilityErrorCanDegrade(t *testing.T) {
	t.Parallel()

	cfg := leaflySettings()
	cfg.DegradeOnReachabilityError = true
	netErr := &checker.NetworkError{URL: "https://leafly.com", Err: errors.New("no such host")}
	s := newTestShortener(cfg, shortensTo("https://leafly.info/1"), &countingValidator{err: netErr})

	report, err := s.ProcessDetailed(context.Background(), "a https://leafly.com b")
	require.NoError(t, err)

	assert.Equal(t, "a https://leafly.com b", report.Text)
	require.Len(t, report.Replacements, 1)
	assert.Equal(t, StatusUnreachable, report.Replacements[0].Status)
	assert.Contains(t, report.Replacements[0].Reason, "no such host")
}

// =============================================================================
// Cache Tests
// =============================================================================

func TestProcess_CacheHitSkipsProvider(t *testing.T) {
	t.Parallel()

	store := memory.New()
	_, err := store.Create(context.Background(), "https://leafly.com/a", "https://leafly.info/cached")
	require.NoError(t, err)

	cfg := leaflySettings()
	cfg.CacheModel = store
	p := shortensTo("https://leafly.info/fresh")
	s := newTestShortener(cfg, p, alive())

	report, err := s.ProcessDetailed(context.Background(), "https://leafly.com/a")
	require.NoError(t, err)

	assert.Equal(t, "https://leafly.info/cached", report.Text)
	assert.Equal(t, 0, p.calls())
	assert.Equal(t, 1, store.Len())
	assert.Equal(t, StatusCached, report.Replacements[0].Status)
}

func TestProcess_CacheAmbiguityUsesFirstRecord(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.New()
	_, err := store.Create(ctx, "https://leafly.com/a", "https://leafly.info/first")
	require.NoError(t, err)
	_, err = store.Create(ctx, "https://leafly.com/a", "https://leafly.info/second")
	require.NoError(t, err)

	cfg := leaflySettings()
	cfg.CacheModel = store
	p := shortensTo("https://leafly.info/fresh")

	var buf bytes.Buffer
	s := New(cfg, p, alive(), zerolog.New(&buf))

	got, err := s.Process(ctx, "https://leafly.com/a")
	require.NoError(t, err)

	assert.Equal(t, "https://leafly.info/first", got)
	assert.Equal(t, 0, p.calls())
	assert.Contains(t, buf.String(), "more than one shortened link")
}

func TestProcess_CacheMissSavesOnce(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.New()
	cfg := leaflySettings()
	cfg.CacheModel = store
	p := shortensTo("https://leafly.info/1")
	s := newTestShortener(cfg, p, alive())

	first, err := s.ProcessDetailed(ctx, "https://leafly.com/a")
	require.NoError(t, err)
	second, err := s.ProcessDetailed(ctx, "https://leafly.com/a")
	require.NoError(t, err)

	assert.Equal(t, 1, p.calls())
	assert.Equal(t, 1, store.Len())
	assert.Equal(t, StatusShortened, first.Replacements[0].Status)
	assert.Equal(t, StatusCached, second.Replacements[0].Status)
	assert.Equal(t, first.Text, second.Text)
}

func TestProcess_ExhaustedRetriesAreNotCached(t *testing.T) {
	t.Parallel()

	store := memory.New()
	cfg := leaflySettings()
	cfg.CacheModel = store
	cfg.MaxRetries = 0
	s := newTestShortener(cfg, alwaysFails(), alive())

	got, err := s.Process(context.Background(), "https://leafly.com/a")
	require.NoError(t, err)
	assert.Equal(t, "https://leafly.com/a", got)
	assert.Equal(t, 0, store.Len())
}

func TestProcess_InvalidCacheModel(t *testing.T) {
	t.Parallel()

	cfg := leaflySettings()
	cfg.CacheModel = struct{ LongLink string }{}
	p := shortensTo("x")
	v := alive()
	s := newTestShortener(cfg, p, v)

	_, err := s.Process(context.Background(), "https://leafly.com/a")

	var cerr *ConfigurationError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "cache_model", cerr.Field)

	var aerr *cache.AttributesError
	require.ErrorAs(t, err, &aerr)
	assert.True(t, aerr.MissingFields)
	assert.True(t, aerr.MissingMethods)

	assert.Equal(t, 0, p.calls())
	assert.Equal(t, int32(0), v.n.Load())
}

// failingStore errors on every operation.
type failingStore struct{ memory.Store }

func (*failingStore) FindByLongLink(context.Context, string) ([]cache.Record, error) {
	return nil, errors.New("store down")
}

func (*failingStore) Create(context.Context, string, string) (cache.Record, error) {
	return nil, errors.New("store down")
}

func TestProcess_CacheStoreErrorsDegrade(t *testing.T) {
	t.Parallel()

	cfg := leaflySettings()
	cfg.CacheModel = &failingStore{}
	p := shortensTo("https://leafly.info/1")
	s := newTestShortener(cfg, p, alive())

	got, err := s.Process(context.Background(), "https://leafly.com/a")
	require.NoError(t, err)
	assert.Equal(t, "https://leafly.info/1", got)
	assert.Equal(t, 1, p.calls())
}

// =============================================================================
// Retry Tests
// =============================================================================

func TestProcess_RetryExhaustion(t *testing.T) {
	t.Parallel()

	cfg := leaflySettings()
	cfg.MaxRetries = 3
	p := alwaysFails()
	s := newTestShortener(cfg, p, alive())

	report, err := s.ProcessDetailed(context.Background(), "see https://leafly.com/a")
	require.NoError(t, err)

	assert.Equal(t, "see https://leafly.com/a", report.Text)
	assert.Equal(t, 4, p.calls())
	require.Len(t, report.Replacements, 1)
	assert.Equal(t, StatusUnshortened, report.Replacements[0].Status)
	assert.Equal(t, 4, report.Replacements[0].Attempts)
	assert.Contains(t, report.Replacements[0].Reason, "RATE_LIMIT_EXCEEDED")
}

func TestProcess_RetryCounts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		maxRetries int
		failures   int
		calls      int
		shortened  bool
	}{
		{"NoRetriesSucceeds", 0, 0, 1, true},
		{"NoRetriesFails", 0, 1, 1, false},
		{"RecoversOnLastTry", 2, 2, 3, true},
		{"RecoversEarly", 5, 1, 2, true},
		{"ExhaustsTwo", 2, 10, 3, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := leaflySettings()
			cfg.MaxRetries = tt.maxRetries
			p := &fakeProvider{respond: func(n int, _ provider.Request) (string, error) {
				if n <= tt.failures {
					return "", &provider.NetworkError{Err: errors.New("timeout")}
				}
				return "https://leafly.info/ok", nil
			}}
			s := newTestShortener(cfg, p, alive())

			got, err := s.Process(context.Background(), "https://leafly.com/a")
			require.NoError(t, err)

			assert.Equal(t, tt.calls, p.calls())
			if tt.shortened {
				assert.Equal(t, "https://leafly.info/ok", got)
			} else {
				assert.Equal(t, "https://leafly.com/a", got)
			}
		})
	}
}

func TestProcess_NegativeMaxRetries(t *testing.T) {
	t.Parallel()

	cfg := leaflySettings()
	cfg.MaxRetries = -1
	p := shortensTo("x")
	v := alive()
	s := newTestShortener(cfg, p, v)

	_, err := s.Process(context.Background(), "https://leafly.com/a")
	require.Error(t, err)

	var cerr *ConfigurationError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "max_retries", cerr.Field)
	assert.ErrorIs(t, err, ErrNegative)
	assert.Contains(t, err.Error(), "-1")

	assert.Equal(t, 0, p.calls())
	assert.Equal(t, int32(0), v.n.Load())
}

func TestProcess_EmptyShortLinkIsFailure(t *testing.T) {
	t.Parallel()

	cfg := leaflySettings()
	cfg.MaxRetries = 1
	p := shortensTo("")
	s := newTestShortener(cfg, p, alive())

	got, err := s.Process(context.Background(), "https://leafly.com/a")
	require.NoError(t, err)
	assert.Equal(t, "https://leafly.com/a", got)
	assert.Equal(t, 2, p.calls())
}

func TestProcess_RetryBackoffHonorsContext(t *testing.T) {
	t.Parallel()

	cfg := leaflySettings()
	cfg.MaxRetries = 5
	cfg.RetryBackoff = time.Hour
	p := alwaysFails()
	s := newTestShortener(cfg, p, alive())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := s.Process(ctx, "https://leafly.com/a")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, p.calls())
}

func TestBackoffDelay(t *testing.T) {
	t.Parallel()

	tests := []struct {
		attempt int
		min     time.Duration
		max     time.Duration
	}{
		{0, 100 * time.Millisecond, 125 * time.Millisecond},
		{1, 100 * time.Millisecond, 125 * time.Millisecond},
		{2, 200 * time.Millisecond, 250 * time.Millisecond},
		{3, 400 * time.Millisecond, 500 * time.Millisecond},
		{20, maxBackoff, maxBackoff + maxBackoff/4},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("Attempt%d", tt.attempt), func(t *testing.T) {
			t.Parallel()
			d := backoffDelay(100*time.Millisecond, tt.attempt)
			assert.GreaterOrEqual(t, d, tt.min)
			assert.LessOrEqual(t, d, tt.max)
		})
	}
}

// =============================================================================
// Post-processing Tests
// =============================================================================

func TestProcess_StripProtocol(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		short    string
		expected string
	}{
		{"HTTPS", "https://leafly.info/1CVNybj", "leafly.info/1CVNybj"},
		{"HTTPNotStripped", "http://leafly.info/1CVNybj", "http://leafly.info/1CVNybj"},
		{"OnlyLeading", "https://leafly.info/https://x", "leafly.info/https://x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := leaflySettings()
			cfg.StripProtocol = true
			s := newTestShortener(cfg, shortensTo(tt.short), alive())

			got, err := s.Process(context.Background(), "https://leafly.com/a")
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestProcess_StripProtocolAppliesToCacheHitsToo(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.New()
	cfg := leaflySettings()
	cfg.StripProtocol = true
	cfg.CacheModel = store
	s := newTestShortener(cfg, shortensTo("https://leafly.info/1"), alive())

	got, err := s.Process(ctx, "https://leafly.com/a")
	require.NoError(t, err)
	assert.Equal(t, "leafly.info/1", got)

	// The cache keeps the full short link.
	records, err := store.FindByLongLink(ctx, "https://leafly.com/a")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "https://leafly.info/1", records[0].ShortLink())

	got, err = s.Process(ctx, "https://leafly.com/a")
	require.NoError(t, err)
	assert.Equal(t, "leafly.info/1", got)

	// Unshortened links keep their scheme.
	cfg.CacheModel = nil
	cfg.MaxRetries = 0
	failing := newTestShortener(cfg, alwaysFails(), alive())
	got, err = failing.Process(ctx, "https://leafly.com/b")
	require.NoError(t, err)
	assert.Equal(t, "https://leafly.com/b", got)
}

func TestProcess_LocalhostReplacement(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.New()
	cfg := DefaultSettings()
	cfg.Domains = []string{"localhost"}
	cfg.LocalhostReplacement = "example.com"
	cfg.CacheModel = store
	p := shortensTo("https://s.io/1")
	s := newTestShortener(cfg, p, alive())

	got, err := s.Process(ctx, "https://localhost:3000/path")
	require.NoError(t, err)

	assert.Equal(t, "https://s.io/1", got)
	assert.Equal(t, "https://example.com/path", p.last().LongURL)

	// The cache key is the rewritten link.
	records, err := store.FindByLongLink(ctx, "https://example.com/path")
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestProcess_LocalhostFallbackIsRewrittenLink(t *testing.T) {
	t.Parallel()

	cfg := DefaultSettings()
	cfg.Domains = []string{"localhost"}
	cfg.LocalhostReplacement = "example.com"
	cfg.MaxRetries = 0
	s := newTestShortener(cfg, alwaysFails(), alive())

	got, err := s.Process(context.Background(), "http://localhost:8080/x")
	require.NoError(t, err)
	assert.Equal(t, "http://example.com/x", got)
}

func TestProcess_LocalhostWithoutReplacementIsUntouched(t *testing.T) {
	t.Parallel()

	cfg := DefaultSettings()
	cfg.Domains = []string{"localhost"}
	p := shortensTo("https://s.io/1")
	s := newTestShortener(cfg, p, alive())

	_, err := s.Process(context.Background(), "http://localhost:8080/x")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/x", p.last().LongURL)
}

// =============================================================================
// Tag and Group Tests
// =============================================================================

func TestProcess_TagPrecedence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		opts     []Option
		expected []string
	}{
		{"Defaults", nil, []string{"blog", "news"}},
		{"ExplicitReplacesDefaults", []Option{WithTags("x")}, []string{"x"}},
		{"AdditionalAppends", []Option{WithAdditionalTags("y")}, []string{"blog", "news", "y"}},
		{"ExplicitPlusAdditional", []Option{WithTags("x"), WithAdditionalTags("y")}, []string{"x", "y"}},
		{"ExplicitEmpty", []Option{WithTags()}, []string{}},
		{"Deduplicates", []Option{WithAdditionalTags("news", "z")}, []string{"blog", "news", "z"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := leaflySettings()
			cfg.DefaultTags = []string{"blog", "news"}
			p := shortensTo("https://leafly.info/1")
			s := newTestShortener(cfg, p, alive())

			_, err := s.Process(context.Background(), "https://leafly.com/a", tt.opts...)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, p.last().Tags)
		})
	}
}

func TestProcess_GroupID(t *testing.T) {
	t.Parallel()

	cfg := leaflySettings()
	cfg.ProviderGroupID = "Bj1"
	p := shortensTo("https://leafly.info/1")
	s := newTestShortener(cfg, p, alive())

	_, err := s.Process(context.Background(), "https://leafly.com/a")
	require.NoError(t, err)
	assert.Equal(t, "Bj1", p.last().GroupID)

	_, err = s.Process(context.Background(), "https://leafly.com/b", WithGroupID("Bk2"))
	require.NoError(t, err)
	assert.Equal(t, "Bk2", p.last().GroupID)
}

// =============================================================================
// Ignore Rules Tests
// =============================================================================

func TestProcess_IgnoreRules(t *testing.T) {
	t.Parallel()

	ignore, err := filter.New(filter.Config{GlobPatterns: []string{"*/admin/*"}})
	require.NoError(t, err)

	cfg := leaflySettings()
	cfg.Ignore = ignore
	p := shortensTo("https://leafly.info/1")
	v := alive()
	s := newTestShortener(cfg, p, v)

	report, err := s.ProcessDetailed(context.Background(), "https://leafly.com/admin/x https://leafly.com/y")
	require.NoError(t, err)

	assert.Equal(t, "https://leafly.com/admin/x https://leafly.info/1", report.Text)
	assert.Equal(t, 1, p.calls())
	assert.Equal(t, int32(1), v.n.Load())
	require.Len(t, report.Replacements, 2)
	assert.Equal(t, StatusIgnored, report.Replacements[0].Status)
	assert.Equal(t, "pattern: */admin/*", report.Replacements[0].Reason)
	assert.Equal(t, StatusShortened, report.Replacements[1].Status)
}

// =============================================================================
// Report Tests
// =============================================================================

func TestProcessDetailed_Report(t *testing.T) {
	t.Parallel()

	v := ValidatorFunc(func(_ context.Context, url string) (bool, error) {
		return !strings.Contains(url, "dead"), nil
	})
	s := newTestShortener(leaflySettings(), shortensTo("https://leafly.info/1"), v)

	report, err := s.ProcessDetailed(context.Background(), "a https://leafly.com/ok b https://leafly.com/dead")
	require.NoError(t, err)

	assert.Equal(t, 4, report.Tokens)
	require.Len(t, report.Replacements, 2)
	assert.Equal(t, 1, report.Replacements[0].Index)
	assert.Equal(t, 3, report.Replacements[1].Index)
	assert.Equal(t, 1, report.Count(StatusShortened))
	assert.Equal(t, 1, report.Count(StatusUnreachable))
	assert.Equal(t, 0, report.Count(StatusCached))
	assert.True(t, report.Replacements[0].Changed())
}

// =============================================================================
// Concurrency and Timeout Tests
// =============================================================================

func TestProcess_ConcurrentPreservesOrder(t *testing.T) {
	t.Parallel()

	cfg := leaflySettings()
	cfg.Concurrency = 8

	p := &fakeProvider{respond: func(_ int, req provider.Request) (string, error) {
		time.Sleep(time.Millisecond)
		return strings.Replace(req.LongURL, "leafly.com", "s.io", 1), nil
	}}
	s := newTestShortener(cfg, p, alive())

	var in, want []string
	for i := range 40 {
		if i%2 == 0 {
			in = append(in, fmt.Sprintf("https://leafly.com/%d", i))
			want = append(want, fmt.Sprintf("https://s.io/%d", i))
		} else {
			in = append(in, fmt.Sprintf("word%d", i))
			want = append(want, fmt.Sprintf("word%d", i))
		}
	}

	got, err := s.Process(context.Background(), strings.Join(in, " "))
	require.NoError(t, err)
	assert.Equal(t, strings.Join(want, " "), got)
	assert.Equal(t, 20, p.calls())
}

func TestProcess_ConcurrentDuplicatesSaveOnce(t *testing.T) {
	t.Parallel()

	store := memory.New()
	cfg := leaflySettings()
	cfg.Concurrency = 4
	cfg.CacheModel = store

	release := make(chan struct{})
	p := &fakeProvider{respond: func(int, provider.Request) (string, error) {
		<-release
		return "https://leafly.info/1", nil
	}}
	s := newTestShortener(cfg, p, alive())

	go func() {
		time.Sleep(20 * time.Millisecond)
		close(release)
	}()

	got, err := s.Process(context.Background(), "https://leafly.com/a https://leafly.com/a https://leafly.com/a")
	require.NoError(t, err)

	assert.Equal(t, "https://leafly.info/1 https://leafly.info/1 https://leafly.info/1", got)
	assert.Equal(t, 1, store.Len())
}

func TestProcess_OverlappingCallsKeepTheirOwnTags(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	p := &fakeProvider{respond: func(_ int, req provider.Request) (string, error) {
		<-release
		return "https://bit.ly/" + strings.Join(req.Tags, "+"), nil
	}}
	s := newTestShortener(leaflySettings(), p, alive())

	var wg sync.WaitGroup
	results := make([]string, 2)
	errs := make([]error, 2)
	for i, tag := range []string{"a", "b"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = s.Process(context.Background(), "http://leafly.com", WithTags(tag))
		}()
	}

	require.Eventually(t, func() bool {
		return p.calls() == 1 && s.links.contenders("http://leafly.com") == 2
	}, time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, "https://bit.ly/a", results[0])
	assert.Equal(t, "https://bit.ly/b", results[1])

	var tagSets [][]string
	for _, req := range p.requests {
		tagSets = append(tagSets, req.Tags)
	}
	assert.ElementsMatch(t, [][]string{{"a"}, {"b"}}, tagSets)
}

func TestProcess_OverlappingCallSharesCacheEntry(t *testing.T) {
	t.Parallel()

	store := memory.New()
	cfg := leaflySettings()
	cfg.CacheModel = store

	release := make(chan struct{})
	p := &fakeProvider{respond: func(int, provider.Request) (string, error) {
		<-release
		return "https://leafly.info/1", nil
	}}
	s := newTestShortener(cfg, p, alive())

	var wg sync.WaitGroup
	results := make([]string, 2)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := s.Process(context.Background(), "https://leafly.com/a")
			assert.NoError(t, err)
			results[i] = out
		}()
	}

	require.Eventually(t, func() bool {
		return s.links.contenders("https://leafly.com/a") == 2
	}, time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, []string{"https://leafly.info/1", "https://leafly.info/1"}, results)
	assert.Equal(t, 1, p.calls())
	assert.Equal(t, 1, store.Len())
}

func TestProcess_CanceledCallDoesNotFailOverlappingCall(t *testing.T) {
	t.Parallel()

	var n atomic.Int32
	p := provider.Func(func(ctx context.Context, _ provider.Request) (string, error) {
		if n.Add(1) == 1 {
			<-ctx.Done()
			return "", &provider.NetworkError{Err: ctx.Err()}
		}
		return "https://bit.ly/b", nil
	})
	s := newTestShortener(leaflySettings(), p, alive())

	ctxA, cancelA := context.WithCancel(context.Background())
	defer cancelA()

	errA := make(chan error, 1)
	go func() {
		_, err := s.Process(ctxA, "http://leafly.com")
		errA <- err
	}()
	require.Eventually(t, func() bool { return n.Load() == 1 }, time.Second, time.Millisecond)

	type result struct {
		out string
		err error
	}
	resB := make(chan result, 1)
	go func() {
		out, err := s.Process(context.Background(), "http://leafly.com")
		resB <- result{out, err}
	}()
	require.Eventually(t, func() bool {
		return s.links.contenders("http://leafly.com") == 2
	}, time.Second, time.Millisecond)

	cancelA()
	assert.ErrorIs(t, <-errA, context.Canceled)

	b := <-resB
	require.NoError(t, b.err)
	assert.Equal(t, "https://bit.ly/b", b.out)
	assert.Equal(t, 0, s.links.contenders("http://leafly.com"))
}

func TestLinkLocks_WaiterGivesUpOnCancel(t *testing.T) {
	t.Parallel()

	var locks linkLocks
	unlock, err := locks.acquire(context.Background(), "k")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = locks.acquire(ctx, "k")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, locks.contenders("k"))

	unlock()
	assert.Equal(t, 0, locks.contenders("k"))

	unlock, err = locks.acquire(context.Background(), "k")
	require.NoError(t, err)
	unlock()
}

func TestProcess_CallTimeout(t *testing.T) {
	t.Parallel()

	cfg := leaflySettings()
	cfg.CallTimeout = 20 * time.Millisecond

	blocking := provider.Func(func(ctx context.Context, _ provider.Request) (string, error) {
		<-ctx.Done()
		return "", &provider.NetworkError{Err: ctx.Err()}
	})
	s := newTestShortener(cfg, blocking, alive())

	_, err := s.Process(context.Background(), "https://leafly.com/a")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// =============================================================================
// Settings Tests
// =============================================================================

func TestConfigureAndReset(t *testing.T) {
	t.Parallel()

	p := shortensTo("https://leafly.info/1")
	s := newTestShortener(DefaultSettings(), p, alive())

	got, err := s.Process(context.Background(), "https://leafly.com/a")
	require.NoError(t, err)
	assert.Equal(t, "https://leafly.com/a", got)

	s.Configure(func(cfg *Settings) {
		cfg.Domains = []string{"leafly.com"}
		cfg.StripProtocol = true
	})

	got, err = s.Process(context.Background(), "https://leafly.com/a")
	require.NoError(t, err)
	assert.Equal(t, "leafly.info/1", got)

	s.Reset()
	assert.Equal(t, DefaultSettings(), s.Settings())

	got, err = s.Process(context.Background(), "https://leafly.com/a")
	require.NoError(t, err)
	assert.Equal(t, "https://leafly.com/a", got)
}

func TestSettings_SnapshotIsACopy(t *testing.T) {
	t.Parallel()

	s := newTestShortener(leaflySettings(), shortensTo("x"), alive())

	snap := s.Settings()
	snap.Domains[0] = "mutated.com"

	assert.Equal(t, []string{"leafly.com"}, s.Settings().Domains)
}

func TestSettings_Validate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, DefaultSettings().Validate())
	assert.NoError(t, Settings{}.Validate())

	bad := DefaultSettings()
	bad.MaxRetries = -3
	err := bad.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "-3")
}

func TestDefaultProviderIsBitly(t *testing.T) {
	t.Parallel()

	s := New(DefaultSettings(), nil, nil, zerolog.Nop())

	first := s.providerFor("token-a")
	_, ok := first.(*bitly.Client)
	assert.True(t, ok)
	assert.Same(t, first, s.providerFor("token-a"))
	assert.NotSame(t, first, s.providerFor("token-b"))
}
