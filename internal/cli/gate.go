package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/replydesk/server/internal/auth"
	"github.com/replydesk/server/internal/model"
)

func newGateCmd() *cobra.Command {
	var (
		token        string
		profilePath  string
		requireAuth  bool
		requireAdmin bool
	)

	cmd := &cobra.Command{
		Use:   "gate",
		Short: "Evaluate the route gate for a token and cached profile",
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess := model.Session{Token: strings.TrimSpace(token)}
			if profilePath != "" {
				raw, err := os.ReadFile(profilePath)
				if err != nil {
					return fmt.Errorf("read profile: %w", err)
				}
				var profile model.UserProfile
				if err := json.Unmarshal(raw, &profile); err != nil {
					return fmt.Errorf("decode profile: %w", err)
				}
				sess.Profile = &profile
			}

			d := auth.Decide(auth.Requirement{RequireAuth: requireAuth, RequireAdmin: requireAdmin}, sess, time.Now())

			out := cmd.OutOrStdout()
			if d.Kind == auth.Allow {
				fmt.Fprintln(out, successStyle.Render(d.Kind.String()))
				return nil
			}
			fmt.Fprintf(out, "%s -> %s\n", errorStyle.Render(d.Kind.String()), d.Target())
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "bearer token")
	cmd.Flags().StringVar(&profilePath, "profile", "", "path to a cached user profile JSON file")
	cmd.Flags().BoolVar(&requireAuth, "require-auth", true, "the view requires a session")
	cmd.Flags().BoolVar(&requireAdmin, "require-admin", false, "the view requires an admin role")
	return cmd
}
