// Package cmd provides the CLI commands for login-gate.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:   "login-gate",
	Short: "Session-gated web login demo",
	Long: `login-gate serves a public top page, a login form and a member page
that requires a session.

Configuration comes from the environment, optionally seeded from
.env.local (or the file given with --env-file).`,
	SilenceUsage: true,
	RunE:         runServe,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "env file to load (default: ./.env.local if present)")
}
