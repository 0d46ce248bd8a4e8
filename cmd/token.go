package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/leonardomso/shortener/internal/auth"
)

// Token command flag variables.
var (
	tokenSubject string
	tokenTTL     time.Duration
)

// tokenCmd represents the token command.
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token for the HTTP API",
	Long: `Sign a token accepted by "shortener serve" when server.jwt_secret is set.
The secret and issuer come from the config file or SHORTENER_JWT_SECRET.

Examples:
  SHORTENER_JWT_SECRET=... shortener token --subject ci
  shortener token --subject deploy-bot --ttl 720h`,
	Args: cobra.NoArgs,
	RunE: runToken,
}

func init() {
	rootCmd.AddCommand(tokenCmd)

	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "cli",
		"Subject recorded in the token")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour,
		"How long the token stays valid")
}

// runToken is the main entry point for the token command.
func runToken(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Server.JWTSecret == "" {
		return errors.New("no jwt secret configured: set server.jwt_secret or SHORTENER_JWT_SECRET")
	}

	tokens, err := auth.NewHS256(cfg.Server.JWTSecret, cfg.Server.JWTIssuer)
	if err != nil {
		return err
	}

	token, err := tokens.Sign(tokenSubject, tokenTTL)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
