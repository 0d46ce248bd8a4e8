package checker

import "time"

// Default values for checker options.
const (
	// DefaultTimeout is the maximum time to wait for a single HTTP request.
	// Most healthy servers respond within 2-3 seconds.
	DefaultTimeout = 5 * time.Second

	// DefaultUserAgent is the User-Agent header sent with requests.
	DefaultUserAgent = "shortener-link-checker/1.0"
)

// Options configures the behavior of the reachability checker.
type Options struct {
	// UserAgent is the User-Agent header sent with requests.
	// Some servers block requests without a proper User-Agent.
	UserAgent string

	// Timeout is the maximum time to wait for a single HTTP request.
	// This includes connection, TLS handshake, and response headers.
	Timeout time.Duration
}

// DefaultOptions returns the default checker configuration.
func DefaultOptions() Options {
	return Options{
		Timeout:   DefaultTimeout,
		UserAgent: DefaultUserAgent,
	}
}

// WithTimeout sets the request timeout.
func (o Options) WithTimeout(d time.Duration) Options {
	if d > 0 {
		o.Timeout = d
	}
	return o
}

// WithUserAgent sets the User-Agent header.
// The value "browser" selects BrowserUserAgent.
func (o Options) WithUserAgent(ua string) Options {
	switch ua {
	case "":
	case BrowserAlias:
		o.UserAgent = BrowserUserAgent
	default:
		o.UserAgent = ua
	}
	return o
}

// BrowserAlias is the user_agent value that selects BrowserUserAgent.
const BrowserAlias = "browser"

// BrowserUserAgent is a realistic browser User-Agent for sites that
// reject unknown clients.
const BrowserUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
