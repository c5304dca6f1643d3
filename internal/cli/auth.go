package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/pratik-mahalle/ec2inventory/internal/auth"
)

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authentication commands",
	}

	cmd.AddCommand(newAuthTokenCmd())
	cmd.AddCommand(newAuthLogoutCmd())
	cmd.AddCommand(newAuthWhoamiCmd())

	return cmd
}

func newAuthTokenCmd() *cobra.Command {
	var (
		userID    int64
		secret    string
		ttl       time.Duration
		printOnly bool
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an access token for a user with the server's signing secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID <= 0 {
				return fmt.Errorf("--user-id must be a positive user id")
			}
			if secret == "" {
				secret = viper.GetString("jwt_secret")
			}
			if secret == "" {
				secret = promptPassword("JWT signing secret: ")
			}
			if secret == "" {
				return fmt.Errorf("a signing secret is required")
			}

			token, err := auth.MintToken(userID, secret, ttl)
			if err != nil {
				return fmt.Errorf("failed to mint token: %w", err)
			}
			if printOnly {
				fmt.Println(token)
				return nil
			}

			viper.Set("auth.token", token)
			viper.Set("auth.user_id", userID)
			if _, err := writeConfig(); err != nil {
				return fmt.Errorf("failed to save credentials: %w", err)
			}

			fmt.Printf("Authenticated as user %d until %s\n", userID, time.Now().Add(ttl).Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().Int64Var(&userID, "user-id", 0, "user the token is issued for")
	cmd.Flags().StringVar(&secret, "secret", "", "signing secret (default: jwt_secret from config or EC2INVENTORY_JWT_SECRET)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	cmd.Flags().BoolVar(&printOnly, "print", false, "print the token instead of storing it")

	return cmd
}

func newAuthLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear stored credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			viper.Set("auth.token", "")
			viper.Set("auth.user_id", 0)

			if _, err := writeConfig(); err != nil {
				return fmt.Errorf("failed to clear credentials: %w", err)
			}

			fmt.Println("Logged out successfully")
			return nil
		},
	}
}

func newAuthWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the user and expiry of the stored token",
		RunE: func(cmd *cobra.Command, args []string) error {
			claims := &auth.Claims{}
			// The server verifies the signature; the CLI only reads the claims
			if _, _, err := jwt.NewParser().ParseUnverified(apiClient.GetToken(), claims); err != nil {
				return fmt.Errorf("stored token is malformed: %w", err)
			}

			info := map[string]interface{}{"user_id": claims.UserID}
			if claims.ExpiresAt != nil {
				info["expires_at"] = claims.ExpiresAt.Time
			}
			if getOutputFormat() != "table" {
				return printOutput(info)
			}

			fmt.Printf("User ID:  %d\n", claims.UserID)
			if claims.ExpiresAt != nil {
				state := "valid"
				if claims.ExpiresAt.Before(time.Now()) {
					state = "expired"
				}
				fmt.Printf("Expires:  %s (%s)\n", claims.ExpiresAt.Format(time.RFC3339), state)
			}
			return nil
		},
	}
}

func promptInput(prompt string) string {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func promptPassword(prompt string) string {
	fmt.Print(prompt)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return ""
	}
	return string(password)
}
