package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/replydesk/server/internal/auth"
)

func newTokenCmd() *cobra.Command {
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Bearer token utilities",
	}

	inspectCmd := &cobra.Command{
		Use:   "inspect [token]",
		Short: "Show the expiry and role carried by a token",
		Long:  "Decodes the token payload without verifying its signature. Reads the token from stdin when omitted.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := readToken(cmd, args)
			if err != nil {
				return err
			}

			claims, err := auth.ParseClaims(token)
			if err != nil {
				return fmt.Errorf("inspect token: %w", err)
			}

			out := cmd.OutOrStdout()
			if claims.Email != "" {
				fmt.Fprintf(out, "email:   %s\n", claims.Email)
			}
			if exp, ok := auth.ExpiresAt(token); ok {
				fmt.Fprintf(out, "expires: %s\n", exp.UTC().Format(time.RFC3339))
			} else {
				fmt.Fprintln(out, "expires: (no exp claim)")
			}
			fmt.Fprintf(out, "expired: %s\n", yesNo(auth.IsExpired(token, time.Now())))

			role := auth.ResolveRole(nil, token)
			if role == "" {
				role = "(none)"
			}
			fmt.Fprintf(out, "role:    %s\n", role)
			fmt.Fprintf(out, "admin:   %s\n", yesNo(auth.IsAdminRole(role)))
			return nil
		},
	}

	tokenCmd.AddCommand(inspectCmd)
	return tokenCmd
}

func readToken(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 {
		return strings.TrimSpace(args[0]), nil
	}
	var token string
	if _, err := fmt.Fscan(cmd.InOrStdin(), &token); err != nil {
		return "", fmt.Errorf("read token from stdin: %w", err)
	}
	return token, nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
