package commands

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/benvon/portfolio-chat/internal/database"
	"github.com/benvon/portfolio-chat/internal/models"
	"github.com/spf13/cobra"
)

const defaultCorsMaxAge = 86400

// NewCorsCmd manages the origins the portfolio frontend calls the chat endpoint from.
func NewCorsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cors",
		Short: "Manage CORS configuration",
		Long:  "List or update the browser origins allowed to call the chat endpoint (stored in database).",
	}
	cmd.AddCommand(newCorsListCmd())
	cmd.AddCommand(newCorsSetCmd())
	cmd.AddCommand(newCorsOriginCmd("allow", "Add one allowed origin", addOrigin))
	cmd.AddCommand(newCorsOriginCmd("revoke", "Remove one allowed origin", removeOrigin))
	return cmd
}

func newCorsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List current CORS configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, closeDB, err := openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer closeDB()
			c, err := database.NewCorsConfigRepository(db).Get(cmd.Context())
			if err != nil {
				return fmt.Errorf("get cors config: %w", err)
			}
			out := cmd.OutOrStdout()
			if c == nil {
				fmt.Fprintf(out, "No CORS configuration in database. FRONTEND_URL (%s) applies until 'cors set' is used.\n", cfg.FrontendURL)
				return nil
			}
			fmt.Fprintln(out, "CORS configuration:")
			fmt.Fprintf(out, "  Allowed origins: %s\n", strings.Join(c.Origins(), ", "))
			fmt.Fprintf(out, "  Allow credentials: %v\n", c.AllowCredentials)
			fmt.Fprintf(out, "  Max-Age: %d\n", c.MaxAge)
			return nil
		},
	}
}

func newCorsSetCmd() *cobra.Command {
	var origins string
	var allowCreds bool
	var maxAge int
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Replace the CORS configuration",
		Long:  "Replace CORS allowed origins (comma-separated) and options. Stored in database.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(models.ParseOrigins(origins)) == 0 {
				return fmt.Errorf("--origins is required (comma-separated list)")
			}
			c := &models.CorsConfig{AllowedOrigins: origins, AllowCredentials: allowCreds, MaxAge: maxAge}
			return saveCors(cmd, func(context.Context, string, *database.CorsConfigRepository) (*models.CorsConfig, error) {
				return c, nil
			})
		},
	}
	cmd.Flags().StringVar(&origins, "origins", "", "Comma-separated allowed origins (required)")
	cmd.Flags().BoolVar(&allowCreds, "allow-credentials", false, "Allow credentials")
	cmd.Flags().IntVar(&maxAge, "max-age", defaultCorsMaxAge, "Access-Control-Max-Age (seconds)")
	return cmd
}

type originEdit func(origins []string, origin string) ([]string, error)

func addOrigin(origins []string, origin string) ([]string, error) {
	if slices.Contains(origins, origin) {
		return nil, fmt.Errorf("origin %s is already allowed", origin)
	}
	return append(origins, origin), nil
}

func removeOrigin(origins []string, origin string) ([]string, error) {
	i := slices.Index(origins, origin)
	if i < 0 {
		return nil, fmt.Errorf("origin %s is not in the allowed list", origin)
	}
	origins = slices.Delete(origins, i, i+1)
	if len(origins) == 0 {
		return nil, fmt.Errorf("cannot revoke the last allowed origin; use 'cors set' instead")
	}
	return origins, nil
}

// newCorsOriginCmd edits the stored origin list, starting from FRONTEND_URL when no row exists.
func newCorsOriginCmd(use, short string, edit originEdit) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <origin>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			origin := strings.TrimRight(strings.TrimSpace(args[0]), "/")
			return saveCors(cmd, func(ctx context.Context, fallback string, repo *database.CorsConfigRepository) (*models.CorsConfig, error) {
				c, err := repo.Get(ctx)
				if err != nil {
					return nil, fmt.Errorf("get cors config: %w", err)
				}
				if c == nil {
					c = &models.CorsConfig{AllowedOrigins: fallback, MaxAge: defaultCorsMaxAge}
				}
				origins, err := edit(c.Origins(), origin)
				if err != nil {
					return nil, err
				}
				c.AllowedOrigins = strings.Join(origins, ",")
				return c, nil
			})
		},
	}
}

// saveCors opens the database, lets build produce the new config and stores it.
// build receives FRONTEND_URL as the fallback origin list.
func saveCors(cmd *cobra.Command, build func(context.Context, string, *database.CorsConfigRepository) (*models.CorsConfig, error)) error {
	cfg, db, closeDB, err := openDB(cmd.Context())
	if err != nil {
		return err
	}
	defer closeDB()
	repo := database.NewCorsConfigRepository(db)
	c, err := build(cmd.Context(), cfg.FrontendURL, repo)
	if err != nil {
		return err
	}
	if err := repo.Set(cmd.Context(), c); err != nil {
		return fmt.Errorf("set cors config: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "CORS origins now: %s. Running servers pick it up within a minute.\n", strings.Join(c.Origins(), ", "))
	return nil
}
