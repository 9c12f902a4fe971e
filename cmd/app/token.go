package app

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/levishimwe/Hadathub/internal/config"
	"github.com/levishimwe/Hadathub/internal/domain"
	"github.com/levishimwe/Hadathub/internal/pkg/jwthelper"
)

var (
	tokenUser string
	tokenRole string
	tokenTTL  time.Duration
)

// tokenCmd mints bearer tokens for local testing. Production tokens come
// from the identity provider.
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Print a signed bearer token for a user and role",
	RunE: func(cmd *cobra.Command, args []string) error {
		role := domain.Role(tokenRole)
		if !role.Valid() {
			return fmt.Errorf("unknown role %q", tokenRole)
		}

		conf, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to initialize config -> %w", err)
		}

		token, err := jwthelper.GenerateToken([]byte(conf.API.JWTSigningKey), tokenUser, string(role), tokenTTL)
		if err != nil {
			return fmt.Errorf("jwthelper.GenerateToken -> %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "user id placed in the sub claim")
	tokenCmd.Flags().StringVar(&tokenRole, "role", string(domain.RoleAttendee), "attendee, organizer or staff")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
	_ = tokenCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(tokenCmd)
}
