package main

import (
	"fmt"
	"time"

	"living-science-documents/internal/auth"
	"living-science-documents/internal/domain"

	"github.com/spf13/cobra"
)

var (
	tokenUser  uint64
	tokenRoles []string
	tokenTTL   time.Duration
)

// tokenCmd issues a bearer token for local testing. Production tokens come
// from the identity provider sharing JWT_SECRET.
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a signed token for a user id",
	RunE: func(cmd *cobra.Command, args []string) error {
		p := domain.Principal{UserID: tokenUser}
		for _, r := range tokenRoles {
			p.Roles = append(p.Roles, domain.Role(r))
		}
		token, err := auth.NewManager(cfg.JWTSecret).GenerateJWT(p, tokenTTL)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
		return err
	},
}

func init() {
	tokenCmd.Flags().Uint64Var(&tokenUser, "user", 0, "user id placed in the token subject")
	tokenCmd.Flags().StringSliceVar(&tokenRoles, "role", nil, "roles to grant (staff, reviewer)")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", time.Hour, "token lifetime")
	_ = tokenCmd.MarkFlagRequired("user")
}
