package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/arturoeanton/vietstart-api/internal/domain"
	"github.com/arturoeanton/vietstart-api/internal/middleware"
	"github.com/arturoeanton/vietstart-api/internal/service"
	"github.com/arturoeanton/vietstart-api/pkg/config"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema (idempotent)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			_, pg, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer pg.Close()

			if err := pg.Migrate(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema applied")
			return nil
		},
	}
}

func newReembedCmd() *cobra.Command {
	var users, startups bool

	cmd := &cobra.Command{
		Use:   "reembed",
		Short: "Recompute stored embeddings for users and/or startups",
		Long: "Recompute the skills, roles and category vectors of every user and the team vector of\n" +
			"every startup from their current text. Without flags both are recomputed.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := reembedOptions(users, startups)

			ctx, cancel := signalContext()
			defer cancel()

			b, err := openBackend(ctx)
			if err != nil {
				return err
			}
			defer b.Close()

			start := time.Now()
			report, err := b.embeddings.RecalculateAll(ctx, opts, func(done, total int) {
				if done == total || done%50 == 0 {
					slog.Info("re-embedding", "done", done, "total", total)
				}
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "re-embedded %d profiles and %d startups in %s (%d failed)\n",
				report.Profiles, report.Startups, time.Since(start).Round(time.Millisecond), report.Failed)
			if report.Failed > 0 {
				return fmt.Errorf("%d of %d entities failed", report.Failed, report.Total)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&users, "users", false, "recompute user profile vectors")
	cmd.Flags().BoolVar(&startups, "startups", false, "recompute startup team vectors")
	return cmd
}

// reembedOptions treats "no flag" as "everything".
func reembedOptions(users, startups bool) service.BatchOptions {
	if !users && !startups {
		return service.BatchOptions{Profiles: true, Startups: true}
	}
	return service.BatchOptions{Profiles: users, Startups: startups}
}

func newRankCmd() *cobra.Command {
	var (
		grouped bool
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "rank <startup-id>",
		Short: "Print the candidate ranking of a startup as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return errors.New("--limit must not be negative")
			}

			ctx, cancel := signalContext()
			defer cancel()

			b, err := openBackend(ctx)
			if err != nil {
				return err
			}
			defer b.Close()

			var out any
			if grouped {
				out, err = b.matching.RankGrouped(ctx, args[0], limit)
			} else {
				out, err = b.matching.Rank(ctx, args[0], limit)
			}
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}

	cmd.Flags().BoolVar(&grouped, "grouped", false, "print the per-signal rankings as well")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of candidates (0 selects the default)")
	return cmd
}

func newTokenCmd() *cobra.Command {
	var (
		role  string
		email string
		ttl   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Issue a signed development JWT for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if role != domain.RoleClient && role != domain.RoleAdmin {
				return fmt.Errorf("unknown role %q (want %s or %s)", role, domain.RoleClient, domain.RoleAdmin)
			}

			cfg := config.Load()
			if ttl <= 0 {
				ttl = time.Duration(cfg.JWTExpiration) * time.Hour
			}

			tok, err := middleware.GenerateJWT(&domain.UserContext{
				UserID: args[0],
				Email:  email,
				Role:   role,
			}, middleware.JWTConfig{
				Secret:    cfg.JWTSecret,
				Issuer:    cfg.JWTIssuer,
				ExpiresIn: ttl,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}

	cmd.Flags().StringVar(&role, "role", domain.RoleClient, "role claim: client or admin")
	cmd.Flags().StringVar(&email, "email", "", "email claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default JWT_EXPIRATION_HOURS)")
	return cmd
}
