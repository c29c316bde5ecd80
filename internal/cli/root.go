// Package cli implements the command-line interface for chatlib using cobra.
// Without a subcommand it opens the interactive chat; subcommands cover
// one-shot sends, account management, conversation and document
// housekeeping, and configuration.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/buker/chatlib/internal/config"
)

var (
	// Version is set at build time via -ldflags
	Version = "dev"

	rootCmd = &cobra.Command{
		Use:   "chatlib",
		Short: "Terminal client for a streaming chat backend",
		Long: `chatlib talks to a chat backend that streams replies over server-sent events.

When run without subcommands it opens the interactive chat. Messages are
queued and answered one at a time; replies render as they stream in.
When stdin or stdout is not a terminal, each input line is sent in turn and
the replies are written as plain text.`,
		SilenceUsage: true,
		RunE:         runChat,
	}
)

func init() {
	cobra.OnInitialize(config.Init)

	// Global flags
	rootCmd.PersistentFlags().String("base-url", "", "Backend base URL")
	rootCmd.PersistentFlags().Int("timeout", 0, "Request timeout in seconds for non-streaming calls")
	rootCmd.PersistentFlags().String("token", "", "Bearer token to send with every request")
	rootCmd.PersistentFlags().String("db", "", "Path of the local database")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-file", "", "Write logs to this file instead of stderr")

	// Bind flags to viper
	config.BindFlags(rootCmd)

	// Add subcommands
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(accountCmd)
	rootCmd.AddCommand(conversationsCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(documentsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command and returns any error encountered.
// This is the main entry point for the CLI application.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// openApp builds the app for cmd from the merged configuration.
func openApp(cmd *cobra.Command, interactive bool) (*app, error) {
	return newApp(cmd.Context(), config.Get(), interactive)
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// markdownStyle picks the glamour style for the current output.
func markdownStyle() string {
	if isTerminal(os.Stdout) {
		return "dark"
	}
	return "notty"
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "chatlib version %s\n", Version)
	},
}
