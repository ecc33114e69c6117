package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/benvon/portfolio-chat/internal/database"
	"github.com/benvon/portfolio-chat/internal/services/ai"
	"github.com/benvon/portfolio-chat/internal/validation"
	"github.com/spf13/cobra"
)

// NewSettingsCmd creates the settings command for the upstream API key and resume context.
func NewSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Manage assistant settings",
		Long:  "Show or update the upstream API key and the resume context used in every prompt. Changes apply to the next chat request without a restart.",
	}
	cmd.AddCommand(newSettingsShowCmd())
	cmd.AddCommand(newSettingsSetAPIKeyCmd())
	cmd.AddCommand(newSettingsSetResumeCmd())
	return cmd
}

func newSettingsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show current settings (API key redacted)",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, closeDB, err := openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer closeDB()

			c, err := database.NewSettingsRepository(db).GetAppConfig(cmd.Context())
			if err != nil {
				return fmt.Errorf("get settings: %w", err)
			}
			out := cmd.OutOrStdout()
			if c == nil {
				fmt.Fprintln(out, "No settings in database. Use 'settings set-api-key' to add one.")
				return nil
			}
			apiKey := "(not set)"
			if c.HasAPIKey() {
				apiKey = ai.SanitizeAPIKey(c.APIKey)
			}
			fmt.Fprintln(out, "Settings:")
			fmt.Fprintf(out, "  API key: %s\n", apiKey)
			fmt.Fprintf(out, "  Resume context: %d characters\n", len(c.ResumeContext))
			if !c.UpdatedAt.IsZero() {
				fmt.Fprintf(out, "  Updated: %s\n", c.UpdatedAt.UTC().Format("2006-01-02 15:04:05 MST"))
			}
			return nil
		},
	}
}

func newSettingsSetAPIKeyCmd() *cobra.Command {
	var fromEnv string
	cmd := &cobra.Command{
		Use:   "set-api-key [key]",
		Short: "Set the upstream API key",
		Long:  "Set the upstream API key. Pass it as an argument, name an environment variable with --from-env, or pipe it on stdin with '-'.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var key string
			switch {
			case fromEnv != "":
				key = os.Getenv(fromEnv)
			case len(args) == 1 && args[0] == "-":
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read key from stdin: %w", err)
				}
				key = string(data)
			case len(args) == 1:
				key = args[0]
			}
			key = strings.TrimSpace(key)
			if key == "" {
				return fmt.Errorf("an API key is required (argument, '-' for stdin, or --from-env)")
			}

			_, db, closeDB, err := openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer closeDB()

			if err := database.NewSettingsRepository(db).SetAPIKey(cmd.Context(), key); err != nil {
				return fmt.Errorf("set api key: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "API key updated (%s).\n", ai.SanitizeAPIKey(key))
			return nil
		},
	}
	cmd.Flags().StringVar(&fromEnv, "from-env", "", "Read the key from this environment variable")
	return cmd
}

func newSettingsSetResumeCmd() *cobra.Command {
	var file string
	var text string
	cmd := &cobra.Command{
		Use:   "set-resume",
		Short: "Set the resume / bio context",
		Long:  "Replace the resume context included in every system prompt. Read from --file ('-' for stdin) or --text.",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resume string
			switch {
			case file == "-":
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read resume from stdin: %w", err)
				}
				resume = string(data)
			case file != "":
				data, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("read resume file: %w", err)
				}
				resume = string(data)
			case cmd.Flags().Changed("text"):
				resume = text
			default:
				return fmt.Errorf("--file or --text is required")
			}

			resume = validation.SanitizeText(resume)

			_, db, closeDB, err := openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer closeDB()

			if err := database.NewSettingsRepository(db).SetResumeContext(cmd.Context(), resume); err != nil {
				return fmt.Errorf("set resume context: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Resume context updated (%d characters).\n", len(resume))
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "Path to a text or markdown file ('-' for stdin)")
	cmd.Flags().StringVar(&text, "text", "", "Resume text (an empty string clears it)")
	return cmd
}
