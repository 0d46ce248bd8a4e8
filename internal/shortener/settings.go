package shortener

import (
	"slices"
	"time"

	"github.com/leonardomso/shortener/internal/filter"
)

// Default values applied by DefaultSettings.
const (
	DefaultMaxRetries  = 3
	DefaultConcurrency = 1
)

// Settings configures a Shortener. The zero value is usable but has no
// allow-listed domains, so every call is an identity transform.
type Settings struct {
	// Domains are bare domains or URLs whose hosts are eligible for shortening.
	// Order matters: the first domain a token contains wins.
	Domains []string

	// ProviderToken is the credential handed to the shortening provider.
	ProviderToken string

	// StripProtocol removes a leading "https://" from produced short links.
	StripProtocol bool

	// SkipReachabilityCheck treats every allow-listed link as shortenable.
	SkipReachabilityCheck bool

	// MaxRetries is the number of extra provider attempts after the first
	// failure. Negative values are rejected when a call starts.
	MaxRetries int

	// LocalhostReplacement replaces "localhost:<port>" in links before they
	// are cached or sent to the provider. Empty disables the rewrite.
	LocalhostReplacement string

	// DefaultTags are sent with every shortened link unless a call overrides them.
	DefaultTags []string

	// ProviderGroupID groups created links on the provider side.
	ProviderGroupID string

	// CacheModel is an optional store satisfying the cache contract.
	// Nil disables caching.
	CacheModel any

	// DegradeOnReachabilityError turns transport failures of the reachability
	// check into "unreachable" instead of failing the call.
	DegradeOnReachabilityError bool

	// RetryBackoff is the base delay between provider attempts.
	// Zero retries immediately.
	RetryBackoff time.Duration

	// CallTimeout bounds a whole Process call. Zero means no deadline.
	CallTimeout time.Duration

	// Concurrency is the number of tokens processed in parallel.
	// Values below 1 are treated as 1.
	Concurrency int

	// Ignore exempts matching links even when their domain is allow-listed.
	Ignore *filter.Filter
}

// DefaultSettings returns the settings a fresh Shortener starts with.
func DefaultSettings() Settings {
	return Settings{
		MaxRetries:  DefaultMaxRetries,
		Concurrency: DefaultConcurrency,
	}
}

// Validate runs the checks performed at the start of every call.
func (s Settings) Validate() error {
	_, err := checkSettings(s, s.Domains)
	return err
}

// clone copies the slices so a snapshot cannot be mutated through the original.
func (s Settings) clone() Settings {
	s.Domains = slices.Clone(s.Domains)
	s.DefaultTags = slices.Clone(s.DefaultTags)
	return s
}

// workers returns the effective concurrency.
func (s Settings) workers() int {
	if s.Concurrency < 1 {
		return 1
	}
	return s.Concurrency
}
