package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd builds the payctl command tree
func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "payctl",
		Short: "payctl - drive portal card charges from a terminal",
		Long: `payctl talks to the payment backend directly.

It runs the card charge flow interactively, inspects bearer tokens and
evaluates the portal route gate for a token and profile.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}

	rootCmd.AddCommand(newChargeCmd(defaultPrompter{}))
	rootCmd.AddCommand(newTokenCmd())
	rootCmd.AddCommand(newGateCmd())
	return rootCmd
}

// Execute runs the root command
func Execute(version string) error {
	if err := NewRootCmd(version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
		return err
	}
	return nil
}
