package root

import (
	"github.com/spf13/cobra"
)

// Persistent flag names shared by every subcommand.
const (
	FlagToken  = "token"
	FlagAPIURL = "api-url"
)

// RootCmd is the command main executes.
var RootCmd = NewRoot()

// NewRoot builds a fresh root command with the persistent flags registered.
func NewRoot() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "probely-sched",
		Short: "Probely scan scheduler",
		Long: "Gives every Probely target with zero or one scheduled scan a daily schedule,\n" +
			"staggered from the next midnight so scans do not all start at once.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().String(FlagToken, "", "Probely API token (overrides PROBELY_API_TOKEN and the stored token)")
	cmd.PersistentFlags().String(FlagAPIURL, "", "Probely API base URL (overrides PROBELY_API_URL)")
	return cmd
}

// Optional helper to return the RootCmd
func GetRoot() *cobra.Command {
	return RootCmd
}
