package main

import (
	"fmt"
	"time"

	"github.com/mohammad-safakhou/learncatalog/internal/auth"
	"github.com/spf13/cobra"
)

func tokenCMD() *cobra.Command {
	var (
		subject string
		ttl     time.Duration
		scopes  []string
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for /mcp using server.jwt_secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			tok, err := auth.SignJWT(subject, []byte(cfg.Server.JWTSecret), ttl, scopes...)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tok)
			return err
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "mcp-client", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	cmd.Flags().StringSliceVar(&scopes, "scope", nil, "scope claim, repeatable")
	return cmd
}
