package cmd

import (
	"fmt"

	"github.com/Togather-Foundation/rsvp/internal/auth"
	"github.com/Togather-Foundation/rsvp/internal/config"
	"github.com/spf13/cobra"
)

func newTokenCommand() *cobra.Command {
	var (
		userID string
		name   string
	)

	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for an existing user",
		Long: `Sign a bearer token with the configured JWT secret.

The token is not checked against the database; the user id must belong to a
registered account for authenticated requests to succeed.

Example:
  server token --user-id 01J9Z3... --name Alice
  curl -H "Authorization: Bearer $(server token --user-id 01J9Z3...)" \
    http://localhost:8080/api/v1/auth/me`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				return fmt.Errorf("--user-id is required")
			}
			cfg, err := config.ReadFile(configPath)
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return fmt.Errorf("JWT_SECRET is required")
			}

			token, err := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiry, cfg.Auth.Issuer).Generate(userID, name)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	tokenCmd.Flags().StringVar(&userID, "user-id", "", "id of the user the token authenticates")
	tokenCmd.Flags().StringVar(&name, "name", "", "display name carried in the token")
	return tokenCmd
}
