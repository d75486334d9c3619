package cli

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/yungbote/dosegate-backend/internal/services"
)

var (
	tokenUserID string
	tokenTTL    time.Duration
)

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().StringVar(&tokenUserID, "user", "", "User id to put in the token subject")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "Token lifetime (default ACCESS_TOKEN_TTL)")
	_ = tokenCmd.MarkFlagRequired("user")
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token signed with JWT_SECRET_KEY (development)",
	RunE:  runToken,
}

func runToken(cmd *cobra.Command, args []string) error {
	userID, err := uuid.Parse(tokenUserID)
	if err != nil {
		return fmt.Errorf("invalid --user: %w", err)
	}
	ttl := tokenTTL
	if ttl <= 0 {
		ttl = cfg.TokenTTL
	}
	tok, err := services.NewAuthService(log, cfg.JWTSecretKey, cfg.JWTIssuer).IssueToken(userID, ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), tok)
	return nil
}
