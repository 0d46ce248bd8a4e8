package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/leonardomso/shortener/internal/config"
)

// version is set by main.go via SetVersion.
var version = "dev"

// SetVersion sets the version string (called from main).
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Global flag variables shared by every command.
var (
	configPath string
	envFile    string
	noConfig   bool
	logLevel   string
	logFormat  string

	// Settings overrides.
	flagDomains      []string
	flagTags         []string
	flagStrip        bool
	flagSkipCheck    bool
	flagDegrade      bool
	flagMaxRetries   int
	flagLocalhost    string
	flagConcurrency  int
	flagProvider     string
	flagToken        string
	flagGroupID      string
	flagShortDomain  string
	flagCache        string
	flagIgnoreDomain []string
	flagIgnoreGlob   []string
	flagIgnoreRegex  []string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "shortener",
	Short:   "Replace links to allow-listed domains with short links",
	Version: version,
	Long: `Shortener finds links to allow-listed domains in text and replaces them
with short links from a provider such as Bitly.

Links are checked for reachability first, shortened with retries, and
remembered in an optional cache (memory, Redis or Postgres) so the same
long link is never shortened twice.

Examples:
  shortener shorten --domain leafly.com "see https://www.leafly.com/strains"
  echo "text with links" | shortener shorten
  shortener rewrite ./docs --dry-run
  shortener rewrite --output report.md
  shortener serve --addr :8080

Config file (.shortenerrc.yaml or .shortenerrc.toml):
  domains: [leafly.com]
  tags: [web]
  provider:
    kind: bitly
    token: ...
  cache:
    kind: redis
    redis:
      addr: localhost:6379`,
	SilenceUsage: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		return setupLogger(os.Stderr)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()

	pf.StringVar(&configPath, "config", "",
		"Config file path (default: search for .shortenerrc.yaml/.toml upwards)")
	pf.StringVar(&envFile, "env-file", ".env",
		"Dotenv file with SHORTENER_* variables")
	pf.BoolVar(&noConfig, "no-config", false,
		"Skip loading the config file")
	pf.StringVar(&logLevel, "log-level", "warn",
		"Log level: debug, info, warn, error")
	pf.StringVar(&logFormat, "log-format", "console",
		"Log format: console, json")

	pf.StringSliceVarP(&flagDomains, "domain", "d", nil,
		"Allow-listed domains (can be repeated or comma-separated)")
	pf.StringSliceVar(&flagTags, "tag", nil,
		"Tags applied to every shortened link")
	pf.BoolVar(&flagStrip, "strip-protocol", false,
		`Remove "https://" from shortened links`)
	pf.BoolVar(&flagSkipCheck, "skip-check", false,
		"Skip the reachability check")
	pf.BoolVar(&flagDegrade, "degrade-on-check-error", false,
		"Treat reachability transport errors as unreachable instead of failing")
	pf.IntVar(&flagMaxRetries, "max-retries", 0,
		"Retries after the first provider call (default from config, else 3)")
	pf.StringVar(&flagLocalhost, "localhost-replacement", "",
		`Replacement for "localhost:<port>" before shortening`)
	pf.IntVarP(&flagConcurrency, "concurrency", "c", 0,
		"Links shortened in parallel per call")
	pf.StringVar(&flagProvider, "provider", "",
		"Shortening provider: bitly, sqids")
	pf.StringVar(&flagToken, "token", "",
		"Provider API token (prefer SHORTENER_PROVIDER_TOKEN)")
	pf.StringVar(&flagGroupID, "group-id", "",
		"Provider group ID")
	pf.StringVar(&flagShortDomain, "short-domain", "",
		"Bitly short domain, or the base URL of sqids links")
	pf.StringVar(&flagCache, "cache", "",
		"Cache kind: none, memory, redis, postgres")
	pf.StringSliceVar(&flagIgnoreDomain, "ignore-domain", nil,
		"Domains never shortened, includes subdomains")
	pf.StringSliceVar(&flagIgnoreGlob, "ignore-pattern", nil,
		"Glob patterns for links never shortened")
	pf.StringSliceVar(&flagIgnoreRegex, "ignore-regex", nil,
		"Regex patterns for links never shortened")
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1) //nolint:revive // deep-exit is acceptable for CLI entry points
	}
}

// setupLogger configures the global zerolog logger from the log flags.
func setupLogger(w io.Writer) error {
	level, err := parseLevel(logLevel)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(level)

	switch strings.ToLower(logFormat) {
	case "json":
	case "", "console":
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	default:
		return fmt.Errorf("unknown log format %q (supported: console, json)", logFormat)
	}

	log.Logger = zerolog.New(w).With().Timestamp().Logger()
	return nil
}

func parseLevel(s string) (zerolog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return zerolog.DebugLevel, nil
	case "info":
		return zerolog.InfoLevel, nil
	case "", "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	default:
		return zerolog.NoLevel, fmt.Errorf("unknown log level %q (supported: debug, info, warn, error)", s)
	}
}

// loadConfig resolves the effective configuration: file, then .env and
// process environment, then command-line flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := &config.Config{}

	if !noConfig {
		var err error
		if configPath != "" {
			cfg, err = config.LoadFrom(configPath)
		} else {
			var wd string
			wd, err = os.Getwd()
			if err == nil {
				cfg, err = config.FindAndLoad(wd)
			}
		}
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
	}

	lookup, err := config.LoadEnv(envFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(lookup); err != nil {
		return nil, fmt.Errorf("applying environment: %w", err)
	}

	cfg.Merge(flagConfig(cmd))

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// flagConfig returns the settings given on the command line as a config
// that can be merged over the file config.
func flagConfig(cmd *cobra.Command) *config.Config {
	fc := &config.Config{
		Domains:                    flagDomains,
		Tags:                       flagTags,
		StripProtocol:              flagStrip,
		SkipReachabilityCheck:      flagSkipCheck,
		DegradeOnReachabilityError: flagDegrade,
		LocalhostReplacement:       flagLocalhost,
		Concurrency:                flagConcurrency,
		Provider: config.ProviderConfig{
			Kind:    flagProvider,
			Token:   flagToken,
			GroupID: flagGroupID,
			Domain:  flagShortDomain,
		},
		Cache: config.CacheConfig{Kind: flagCache},
		Ignore: config.IgnoreConfig{
			Domains:  flagIgnoreDomain,
			Patterns: flagIgnoreGlob,
			Regex:    flagIgnoreRegex,
		},
	}
	if cmd != nil && cmd.Flags().Changed("max-retries") {
		n := flagMaxRetries
		fc.MaxRetries = &n
	}
	return fc
}
