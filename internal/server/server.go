// Package server exposes the shortener over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/leonardomso/shortener/internal/auth"
	"github.com/leonardomso/shortener/internal/checker"
	"github.com/leonardomso/shortener/internal/metrics"
	"github.com/leonardomso/shortener/internal/shortener"
)

// maxBodyBytes caps the size of a shorten request body.
const maxBodyBytes = 1 << 20

// Processor is the part of the shortener the API needs.
type Processor interface {
	ProcessDetailed(ctx context.Context, text string, opts ...shortener.Option) (*shortener.Report, error)
}

// ShortenRequest is the body of POST /v1/shorten.
type ShortenRequest struct {
	Text                  string   `json:"text"`
	Domains               []string `json:"domains,omitempty"`
	Tags                  []string `json:"tags,omitempty"`
	AdditionalTags        []string `json:"additional_tags,omitempty"`
	GroupID               *string  `json:"group_id,omitempty"`
	SkipReachabilityCheck *bool    `json:"skip_reachability_check,omitempty"`
}

// options converts the request overrides into per-call options.
// Absent fields keep the server settings.
func (r ShortenRequest) options() []shortener.Option {
	var opts []shortener.Option
	if r.Domains != nil {
		opts = append(opts, shortener.WithDomains(r.Domains...))
	}
	if r.Tags != nil {
		opts = append(opts, shortener.WithTags(r.Tags...))
	}
	if len(r.AdditionalTags) > 0 {
		opts = append(opts, shortener.WithAdditionalTags(r.AdditionalTags...))
	}
	if r.GroupID != nil {
		opts = append(opts, shortener.WithGroupID(*r.GroupID))
	}
	if r.SkipReachabilityCheck != nil {
		opts = append(opts, shortener.WithSkipReachabilityCheck(*r.SkipReachabilityCheck))
	}
	return opts
}

// ShortenResponse is the body returned by POST /v1/shorten.
type ShortenResponse struct {
	Text         string                  `json:"text"`
	Replacements []shortener.Replacement `json:"replacements"`
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// Server serves the shortening API.
type Server struct {
	proc   Processor
	logger zerolog.Logger
	tokens auth.TokenService
}

// New creates a Server backed by proc.
func New(proc Processor, logger zerolog.Logger) *Server {
	return &Server{proc: proc, logger: logger}
}

// RequireTokens makes POST /v1/shorten require a bearer token verified by ts.
func (s *Server) RequireTokens(ts auth.TokenService) *Server {
	s.tokens = ts
	return s
}

// Handler returns the HTTP handler with all routes, metrics, access
// logging and tracing wired in.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("POST /v1/shorten", s.instrument("/v1/shorten", s.authenticate(http.HandlerFunc(s.handleShorten))))
	mux.Handle("GET /healthz", s.instrument("/healthz", http.HandlerFunc(handleHealth)))
	mux.Handle("GET /metrics", promhttp.Handler())
	return otelhttp.NewHandler(mux, "http")
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		s.logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}
	return nil
}

func (s *Server) handleShorten(w http.ResponseWriter, r *http.Request) {
	var req ShortenRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	report, err := s.proc.ProcessDetailed(r.Context(), req.Text, req.options()...)
	if err != nil {
		status, body := classify(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error().Err(err).Int("status", status).Msg("shorten failed")
		}
		writeJSON(w, status, body)
		return
	}

	resp := ShortenResponse{Text: report.Text, Replacements: report.Replacements}
	if resp.Replacements == nil {
		resp.Replacements = []shortener.Replacement{}
	}
	writeJSON(w, http.StatusOK, resp)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// classify maps a Process error to an HTTP status and body.
func classify(err error) (int, errorResponse) {
	var cfgErr *shortener.ConfigurationError
	var netErr *checker.NetworkError

	switch {
	case errors.As(err, &cfgErr):
		return http.StatusBadRequest, errorResponse{Error: cfgErr.Error(), Field: cfgErr.Field}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, errorResponse{Error: "processing timed out"}
	case errors.Is(err, context.Canceled):
		// Client went away; status is for the access log only.
		return 499, errorResponse{Error: "request canceled"}
	case errors.As(err, &netErr):
		return http.StatusBadGateway, errorResponse{Error: netErr.Error()}
	default:
		return http.StatusInternalServerError, errorResponse{Error: "internal error"}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusRecorder captures the response status for logging and metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// authenticate rejects requests without a valid bearer token when
// tokens are required.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.tokens == nil {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing bearer token"})
			return
		}

		claims, err := s.tokens.Verify(strings.TrimSpace(token))
		if err != nil {
			s.logger.Debug().Err(err).Msg("rejected token")
			w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid token"})
			return
		}

		s.logger.Debug().Str("subject", claims.Subject).Msg("authenticated")
		next.ServeHTTP(w, r)
	})
}

// instrument records request metrics and an access log line.
func (s *Server) instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		status := strconv.Itoa(rec.status)
		metrics.HTTPRequests.WithLabelValues(r.Method, route, status).Inc()
		s.logger.Debug().
			Str("method", r.Method).
			Str("route", route).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
