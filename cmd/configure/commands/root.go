package commands

import "github.com/spf13/cobra"

// NewRootCmd assembles the configuration CLI.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "portfolio-chat-configure",
		Short:         "Configuration tool for Portfolio Chat",
		Long:          "CLI tool for the settings the chat server reads at runtime: upstream API key, resume context, burst rate, CORS origins and quota records.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(NewSettingsCmd())
	rootCmd.AddCommand(NewRatelimitCmd())
	rootCmd.AddCommand(NewCorsCmd())
	rootCmd.AddCommand(NewTestCmd())

	return rootCmd
}
