package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sujalbistaa/payboard/internal/auth"
)

func tokenCommand() *cobra.Command {
	var (
		userID string
		roles  []string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token signed with the configured secret, for development",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := configFromCommand(cmd)
			id := uuid.New()
			if userID != "" {
				parsed, err := uuid.Parse(userID)
				if err != nil {
					return fmt.Errorf("invalid --user: %w", err)
				}
				id = parsed
			}
			verifier, err := auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience)
			if err != nil {
				return err
			}
			token, err := verifier.Issue(id, roles, ttl)
			if err != nil {
				return fmt.Errorf("failed to sign token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id to embed (random if empty)")
	cmd.Flags().StringSliceVar(&roles, "role", nil, "role to grant, repeatable (e.g. MODERATOR)")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}
