package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/buker/chatlib/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `View and manage chatlib configuration settings.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Get()
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Current configuration:")
		fmt.Fprintln(out, "----------------------")
		fmt.Fprintf(out, "Base URL:        %s\n", cfg.API.BaseURL)
		fmt.Fprintf(out, "Timeout:         %s\n", cfg.API.TimeoutDuration())
		fmt.Fprintf(out, "Token:           %s\n", maskToken(cfg.API.Token))
		fmt.Fprintf(out, "Retries:         %d (every %s)\n", cfg.API.Retry.Count, cfg.API.Retry.DelayDuration())
		fmt.Fprintf(out, "Database:        %s\n", cfg.Storage.Path)
		fmt.Fprintf(out, "Log level:       %s\n", cfg.Log.Level)
		if cfg.Log.File != "" {
			fmt.Fprintf(out, "Log file:        %s\n", cfg.Log.File)
		}
		fmt.Fprintln(out, "\nChat:")
		fmt.Fprintf(out, "  Title length:  %d\n", cfg.Chat.TitleLength)
		fmt.Fprintf(out, "  Denylist:      %s\n", strings.Join(cfg.Chat.Denylist, ", "))
		fmt.Fprintf(out, "  Refusal:       %q\n", cfg.Chat.Refusal)
		fmt.Fprintf(out, "  Error marker:  %q\n", cfg.Chat.ErrorMarker)
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show config file path",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		path := config.GetConfigPath()
		if path == "" {
			fmt.Fprintln(out, "No config file found. Create one at:")
			fmt.Fprintf(out, "  %s (global)\n", config.GetDefaultConfigPath())
			fmt.Fprintln(out, "  ./.chatlib.yaml (project)")
		} else {
			fmt.Fprintf(out, "Config file: %s\n", path)
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
}

// maskToken hides all but the last four characters of a token.
func maskToken(token string) string {
	switch {
	case token == "":
		return "(none)"
	case len(token) <= 4:
		return "****"
	default:
		return "****" + token[len(token)-4:]
	}
}
