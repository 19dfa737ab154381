package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/noah-isme/classpal-api/internal/service"
)

var tokenTTL time.Duration

var tokenCmd = &cobra.Command{
	Use:   "token <user-id>",
	Short: "Issue a bearer token for an existing user",
	Long: `Issue a signed access token for a known user id.

Credentials live with the external identity provider; this command is the
operator path for minting tokens against the configured store. With the
in-memory store and SEED_DEMO_DATA=true the demo users (u-you, u-sarah,
u-nguyen, ...) are available.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := openBackend(cmd.Context(), cfg, logr)
		if err != nil {
			return err
		}
		defer b.Close()

		expiry := cfg.JWT.Expiration
		if tokenTTL > 0 {
			expiry = tokenTTL
		}
		auth := service.NewAuthService(b.stores.Users, logr, service.AuthConfig{
			AccessTokenSecret: cfg.JWT.Secret,
			AccessTokenExpiry: expiry,
			Issuer:            cfg.JWT.Issuer,
		})
		issued, err := auth.IssueToken(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(issued); err != nil {
			return fmt.Errorf("encode token: %w", err)
		}
		return nil
	},
}

func init() {
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "Token lifetime, e.g. 2h (defaults to JWT_EXPIRATION)")
}
