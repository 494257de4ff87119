package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"portalauth/internal/app"
	"portalauth/internal/config"
	"portalauth/internal/db"
	"portalauth/internal/logger"
	"portalauth/internal/repositories"
)

type globals struct {
	configPath string
}

func rootCmd() *cobra.Command {
	g := &globals{}
	cmd := &cobra.Command{
		Use:          "portal",
		Short:        "Portal account and authentication service",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", config.DefaultPath, "path to the YAML config file")

	cmd.AddCommand(serveCmd(g), migrateCmd(g), promoteCmd(g))
	return cmd
}

func (g *globals) load() (*config.Config, logger.Logger, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, nil, err
	}
	log := logger.New(logger.Config{Level: cfg.Log.Level, JSON: cfg.Log.JSON})
	return cfg, log, nil
}

func serveCmd(g *globals) *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := g.load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if migrate {
				if err := runMigrations(ctx, cfg); err != nil {
					return err
				}
				log.Info("migrations applied")
			}

			a, err := app.New(ctx, cfg, log)
			if err != nil {
				return err
			}
			return a.Run(ctx)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply pending migrations before serving")
	return cmd
}

func runMigrations(ctx context.Context, cfg *config.Config) error {
	pool, err := db.Open(ctx, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer pool.Close()
	return db.Migrate(ctx, pool)
}

func migrateCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := g.load()
			if err != nil {
				return err
			}
			if err := runMigrations(cmd.Context(), cfg); err != nil {
				return err
			}
			log.Info("migrations applied")
			return nil
		},
	}
}

// promoteCmd is the only way to grant admin: there is no self-service path.
func promoteCmd(g *globals) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "promote",
		Short: "Grant admin to an existing account and approve it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			email = strings.TrimSpace(email)
			if email == "" {
				return errors.New("--email is required")
			}
			cfg, log, err := g.load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			pool, err := db.Open(ctx, cfg.Database.DSN)
			if err != nil {
				return err
			}
			defer pool.Close()

			users := repositories.NewUserRepository(pool)
			u, err := users.GetByEmail(ctx, email)
			if errors.Is(err, repositories.ErrNotFound) {
				return fmt.Errorf("no account with email %q", email)
			}
			if err != nil {
				return err
			}
			if err := users.Promote(ctx, u.ID); err != nil {
				return err
			}
			log.Info("account promoted", "user_id", u.ID, "email", u.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email of the account to promote")
	return cmd
}
