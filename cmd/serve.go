package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/leonardomso/shortener/internal/auth"
	"github.com/leonardomso/shortener/internal/server"
)

const (
	defaultAddr            = ":8080"
	defaultServiceName     = "shortener"
	defaultShutdownTimeout = 10 * time.Second
)

var serveAddr string

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the shortener over HTTP",
	Long: `Start an HTTP API exposing the shortener.

Endpoints:
  POST /v1/shorten   {"text": "...", "domains": [...], "tags": [...]}
  GET  /healthz      liveness probe
  GET  /metrics      Prometheus metrics

Traces are exported over OTLP/gRPC when server.otlp_endpoint is set.
When server.jwt_secret (or SHORTENER_JWT_SECRET) is set, POST /v1/shorten
requires "Authorization: Bearer <token>"; mint tokens with "shortener token".
The server drains in-flight requests on SIGINT or SIGTERM.

Examples:
  shortener serve
  shortener serve --addr 127.0.0.1:9000 --cache redis`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "",
		"Listen address (default from config, else "+defaultAddr+")")
}

// runServe is the main entry point for the serve command.
func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	addr := firstNonEmpty(serveAddr, cfg.Server.Addr, defaultAddr)
	shutdownTimeout, err := cfg.ShutdownTimeout(defaultShutdownTimeout)
	if err != nil {
		return err
	}

	if cfg.Server.OTLPEndpoint != "" {
		shutdownTracing, err := server.InitTracing(ctx, cfg.Server.OTLPEndpoint,
			firstNonEmpty(cfg.Server.ServiceName, defaultServiceName))
		if err != nil {
			return err
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := shutdownTracing(flushCtx); err != nil {
				log.Warn().Err(err).Msg("flushing traces")
			}
		}()
	}

	a, err := newApp(ctx, cfg, log.Logger)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := server.New(a.shortener, log.Logger)
	if cfg.Server.JWTSecret != "" {
		tokens, err := auth.NewHS256(cfg.Server.JWTSecret, cfg.Server.JWTIssuer)
		if err != nil {
			return err
		}
		srv.RequireTokens(tokens)
	}

	return srv.Run(ctx, addr, shutdownTimeout)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
