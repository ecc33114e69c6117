package commands

import (
	"fmt"
	"strings"

	"github.com/benvon/portfolio-chat/internal/database"
	"github.com/benvon/portfolio-chat/internal/models"
	"github.com/benvon/portfolio-chat/internal/services/ai"
	"github.com/spf13/cobra"
)

// NewTestCmd creates the test command, which sends one chat message through the configured upstream.
func NewTestCmd() *cobra.Command {
	var message string
	var projectContext string
	var provider string

	cmd := &cobra.Command{
		Use:   "test",
		Short: "Send a test chat message",
		Long:  "Send one chat message through the configured upstream provider using the stored API key and resume context. Quota is not consumed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, closeDB, err := openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer closeDB()

			if provider == "" {
				provider = cfg.UpstreamProvider
			}
			model, err := ai.NewDefaultRegistry().GetProvider(strings.ToLower(provider), ai.ModelConfig{
				Model:   cfg.UpstreamModel,
				BaseURL: cfg.UpstreamBaseURL,
				Timeout: cfg.UpstreamTimeout,
			})
			if err != nil {
				return err
			}
			proxy := ai.NewChatProxy(database.NewSettingsRepository(db), model, ai.ProxyOptions{
				Owner:   cfg.AssistantOwner,
				Timeout: cfg.UpstreamTimeout,
			})

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Provider: %s\n", model.Name())
			resp, err := proxy.Handle(cmd.Context(), &models.ChatRequest{Message: message, Context: projectContext})
			if err != nil {
				if e := ai.AsError(err); e != nil {
					return fmt.Errorf("%s: %s", e.Code, e.Message)
				}
				return err
			}
			fmt.Fprintln(out, "Reply:")
			fmt.Fprintln(out, resp.Response)
			return nil
		},
	}

	cmd.Flags().StringVar(&message, "message", "Give me a one-sentence summary of your background.", "Message to send")
	cmd.Flags().StringVar(&projectContext, "context", "", "Project context to include in the system prompt")
	cmd.Flags().StringVar(&provider, "provider", "", "Override UPSTREAM_PROVIDER (gemini, openai)")

	return cmd
}
