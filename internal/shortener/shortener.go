// Package shortener finds allow-listed links in free text and replaces them
// with short links obtained from a shortening provider.
//
// For each whitespace-separated token, the first allow-listed domain the
// token contains decides whether it is a candidate. Candidates are optionally
// checked for reachability, looked up in the cache, and otherwise sent to the
// provider with bounded retry. Tokens are rejoined with a single space.
package shortener

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/leonardomso/shortener/internal/cache"
	"github.com/leonardomso/shortener/internal/checker"
	"github.com/leonardomso/shortener/internal/hostname"
	"github.com/leonardomso/shortener/internal/metrics"
	"github.com/leonardomso/shortener/internal/provider"
	"github.com/leonardomso/shortener/internal/provider/bitly"
)

const tracerName = "github.com/leonardomso/shortener/internal/shortener"

// localhostPattern matches the part of a link rewritten by LocalhostReplacement.
var localhostPattern = regexp.MustCompile(`localhost:[0-9]+`)

// Validator reports whether a link is alive.
// *checker.Checker satisfies it.
type Validator interface {
	IsReachable(ctx context.Context, url string) (bool, error)
}

// ValidatorFunc adapts a function to the Validator interface.
type ValidatorFunc func(ctx context.Context, url string) (bool, error)

// IsReachable implements Validator.
func (f ValidatorFunc) IsReachable(ctx context.Context, url string) (bool, error) {
	return f(ctx, url)
}

// Shortener rewrites text. It is safe for concurrent use; every call works
// on a snapshot of the settings taken when the call starts.
type Shortener struct {
	mu       sync.RWMutex
	settings Settings

	provider  provider.Provider
	validator Validator
	logger    zerolog.Logger
	tracer    trace.Tracer

	// links serializes cache check-then-insert per long link across calls.
	links linkLocks

	// bitlyMu guards the provider built from Settings.ProviderToken
	// when none was injected.
	bitlyMu    sync.Mutex
	bitlyToken string
	bitly      provider.Provider
}

// New creates a Shortener.
// A nil provider means a Bitly client built from Settings.ProviderToken;
// a nil validator means a checker with default options.
func New(settings Settings, p provider.Provider, v Validator, logger zerolog.Logger) *Shortener {
	if v == nil {
		v = checker.New(checker.DefaultOptions())
	}
	return &Shortener{
		settings:  settings.clone(),
		provider:  p,
		validator: v,
		logger:    logger,
		tracer:    otel.Tracer(tracerName),
	}
}

// Configure mutates the settings in place. Calls already running keep
// the snapshot they started with.
func (s *Shortener) Configure(fn func(*Settings)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.settings)
}

// Reset restores DefaultSettings.
func (s *Shortener) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = DefaultSettings()
}

// Settings returns a copy of the current settings.
func (s *Shortener) Settings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.clone()
}

// Process returns text with every shortenable link replaced.
// Only configuration errors, reachability transport errors (unless degraded)
// and cancellation fail the call; a link the provider cannot shorten is
// left as it was.
func (s *Shortener) Process(ctx context.Context, text string, opts ...Option) (string, error) {
	report, err := s.ProcessDetailed(ctx, text, opts...)
	if err != nil {
		return "", err
	}
	return report.Text, nil
}

// ProcessDetailed is Process plus a per-link account of what happened.
func (s *Shortener) ProcessDetailed(ctx context.Context, text string, opts ...Option) (*Report, error) {
	start := time.Now()
	defer func() {
		metrics.ProcessDuration.Observe(time.Since(start).Seconds())
	}()

	r, err := s.newRun(s.Settings(), buildCallOptions(opts))
	if err != nil {
		return nil, err
	}

	if r.settings.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.settings.CallTimeout)
		defer cancel()
	}

	tokens := strings.Fields(text)

	ctx, span := s.tracer.Start(ctx, "shortener.Process",
		trace.WithAttributes(
			attribute.Int("tokens", len(tokens)),
			attribute.Int("domains", len(r.hosts)),
		))
	defer span.End()

	out := make([]string, len(tokens))
	reps := make([]*Replacement, len(tokens))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.settings.workers())

	for i, token := range tokens {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			result, rep, err := s.processToken(gctx, r, token)
			if err != nil {
				return err
			}
			out[i] = result
			if rep != nil {
				rep.Index = i
				reps[i] = rep
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	report := &Report{
		Text:   strings.Join(out, " "),
		Tokens: len(tokens),
	}
	for _, rep := range reps {
		if rep != nil {
			report.Replacements = append(report.Replacements, *rep)
		}
	}

	span.SetAttributes(attribute.Int("replacements", len(report.Replacements)))
	return report, nil
}

// run is the per-call state derived from a settings snapshot.
type run struct {
	settings  Settings
	domains   []string
	hosts     []string
	skipCheck bool
	tags      []string
	groupID   string
	cache     *cache.Adapter
	provider  provider.Provider

	// flight collapses duplicate links within this call only; overlapping
	// calls may differ in tags, group id or cache model.
	flight singleflight.Group
}

// checkSettings validates what must hold before any network work and
// returns the normalized hosts of domains.
func checkSettings(cfg Settings, domains []string) ([]string, error) {
	if cfg.MaxRetries < 0 {
		return nil, &ConfigurationError{Field: "max_retries", Value: cfg.MaxRetries, Err: ErrNegative}
	}
	if cfg.CacheModel != nil {
		if err := cache.Validate(cfg.CacheModel); err != nil {
			return nil, &ConfigurationError{Field: "cache_model", Value: fmt.Sprintf("%T", cfg.CacheModel), Err: err}
		}
	}
	hosts, err := hostname.NormalizeAll(domains)
	if err != nil {
		return nil, &ConfigurationError{Field: "domains", Value: domains, Err: err}
	}
	return hosts, nil
}

func (s *Shortener) newRun(cfg Settings, o callOptions) (*run, error) {
	domains := cfg.Domains
	if o.domainsSet {
		domains = o.domains
	}

	hosts, err := checkSettings(cfg, domains)
	if err != nil {
		return nil, err
	}

	adapter, err := cache.NewAdapter(cfg.CacheModel, s.logger)
	if err != nil {
		return nil, &ConfigurationError{Field: "cache_model", Value: fmt.Sprintf("%T", cfg.CacheModel), Err: err}
	}

	r := &run{
		settings:  cfg,
		domains:   domains,
		hosts:     hosts,
		skipCheck: cfg.SkipReachabilityCheck,
		tags:      effectiveTags(cfg.DefaultTags, o),
		groupID:   cfg.ProviderGroupID,
		cache:     adapter,
		provider:  s.providerFor(cfg.ProviderToken),
	}
	if o.skipCheck != nil {
		r.skipCheck = *o.skipCheck
	}
	if o.groupID != nil {
		r.groupID = *o.groupID
	}
	return r, nil
}

// providerFor returns the injected provider, or a Bitly client for token.
func (s *Shortener) providerFor(token string) provider.Provider {
	if s.provider != nil {
		return s.provider
	}

	s.bitlyMu.Lock()
	defer s.bitlyMu.Unlock()
	if s.bitly == nil || s.bitlyToken != token {
		s.bitly = bitly.New(token)
		s.bitlyToken = token
	}
	return s.bitly
}

// match returns the first allow-listed domain whose host token contains.
func (r *run) match(token string) (string, bool) {
	for i, host := range r.hosts {
		if strings.Contains(token, host) {
			return r.domains[i], true
		}
	}
	return "", false
}

// rewriteLocalhost replaces "localhost:<port>" so remote providers can resolve the link.
func (r *run) rewriteLocalhost(link string) string {
	if r.settings.LocalhostReplacement == "" || !strings.Contains(link, "localhost") {
		return link
	}
	return localhostPattern.ReplaceAllLiteralString(link, r.settings.LocalhostReplacement)
}

// processToken returns the output text for token. The Replacement is nil
// when the token matched no allow-listed domain.
func (s *Shortener) processToken(ctx context.Context, r *run, token string) (string, *Replacement, error) {
	domain, ok := r.match(token)
	if !ok {
		metrics.Tokens.WithLabelValues("passthrough").Inc()
		return token, nil, nil
	}

	rep := &Replacement{Original: token, Result: token, Domain: domain}

	if reason, ignored := r.settings.Ignore.Match(token); ignored {
		rep.Status = StatusIgnored
		rep.Reason = reason.Type + ": " + reason.Rule
		metrics.Tokens.WithLabelValues(string(rep.Status)).Inc()
		return token, rep, nil
	}

	if !r.skipCheck {
		alive, reason, err := s.checkReachable(ctx, r, token)
		if err != nil {
			return "", nil, err
		}
		if !alive {
			rep.Status = StatusUnreachable
			rep.Reason = reason
			metrics.Tokens.WithLabelValues(string(rep.Status)).Inc()
			return token, rep, nil
		}
	}

	link := r.rewriteLocalhost(token)

	res, err := s.shortenLink(ctx, r, link)
	if err != nil {
		return "", nil, err
	}

	rep.Status = res.status
	rep.Attempts = res.attempts
	rep.Reason = res.reason
	rep.Result = res.link
	if r.settings.StripProtocol && res.status != StatusUnshortened {
		rep.Result = strings.TrimPrefix(res.link, "https://")
	}

	metrics.Tokens.WithLabelValues(string(rep.Status)).Inc()
	return rep.Result, rep, nil
}

// checkReachable runs the validator. Transport errors abort the call
// unless DegradeOnReachabilityError is set; cancellation always aborts.
func (s *Shortener) checkReachable(ctx context.Context, r *run, link string) (bool, string, error) {
	alive, err := s.validator.IsReachable(ctx, link)
	if err == nil {
		if alive {
			metrics.ReachabilityChecks.WithLabelValues("reachable").Inc()
			return true, "", nil
		}
		metrics.ReachabilityChecks.WithLabelValues("unreachable").Inc()
		return false, "not reachable", nil
	}

	metrics.ReachabilityChecks.WithLabelValues("error").Inc()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return false, "", ctxErr
	}
	if !r.settings.DegradeOnReachabilityError {
		return false, "", fmt.Errorf("reachability check for %s: %w", link, err)
	}

	s.logger.Warn().Err(err).Str("link", link).Msg("reachability check failed, leaving link unchanged")
	return false, err.Error(), nil
}

// linkResult is what shortenLink produced for one long link.
type linkResult struct {
	link     string
	status   Status
	attempts int
	reason   string
}

// shortenLink resolves a long link through the cache and the provider.
// Duplicates within a call share one resolution; other calls working on
// the same link wait for the lock and then see its cache entry.
func (s *Shortener) shortenLink(ctx context.Context, r *run, link string) (linkResult, error) {
	v, err, _ := r.flight.Do(link, func() (any, error) {
		unlock, err := s.links.acquire(ctx, link)
		if err != nil {
			return nil, err
		}
		defer unlock()
		return s.resolve(ctx, r, link)
	})
	if err != nil {
		return linkResult{}, err
	}
	return v.(linkResult), nil
}

func (s *Shortener) resolve(ctx context.Context, r *run, link string) (linkResult, error) {
	short, hit, err := r.cache.Lookup(ctx, link)
	switch {
	case err != nil:
		s.logger.Warn().Err(err).Str("long_link", link).Msg("cache lookup failed, treating as miss")
	case hit:
		return linkResult{link: short, status: StatusCached}, nil
	}

	req := provider.Request{LongURL: link, Tags: r.tags, GroupID: r.groupID}
	res, err := s.shortenWithRetry(ctx, r.provider, req, r.settings.MaxRetries, r.settings.RetryBackoff)
	if err != nil {
		return linkResult{}, err
	}
	if !res.shortened {
		return linkResult{
			link:     res.link,
			status:   StatusUnshortened,
			attempts: res.attempts,
			reason:   res.lastErr.Error(),
		}, nil
	}

	if err := r.cache.Save(ctx, link, res.link); err != nil {
		s.logger.Warn().Err(err).Str("long_link", link).Msg("cache save failed")
	}

	return linkResult{link: res.link, status: StatusShortened, attempts: res.attempts}, nil
}
