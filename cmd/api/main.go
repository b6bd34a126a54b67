package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"authserver/internal/config"
	"authserver/internal/database"
	"authserver/internal/logging"
	"authserver/internal/repository"
	"authserver/internal/server"
	"authserver/internal/telemetry"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type app struct {
	cfg *config.Config
	log zerolog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "authserver",
		Short:         "Session authentication API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				fmt.Fprintln(os.Stderr, "config:", err)
				return err
			}
			a.cfg = cfg
			a.log = logging.NewStderr(cfg.LogLevel, cfg.LogFormat)
			return nil
		},
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API",
			RunE:  func(cmd *cobra.Command, _ []string) error { return a.serve(cmd.Context()) },
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create or update the database schema",
			RunE:  func(cmd *cobra.Command, _ []string) error { return a.migrate(cmd.Context()) },
		},
		&cobra.Command{
			Use:   "cleanup",
			Short: "Delete expired refresh tokens once",
			RunE:  func(cmd *cobra.Command, _ []string) error { return a.cleanup(cmd.Context()) },
		},
	)
	return root
}

func (a *app) open(ctx context.Context) (*gorm.DB, error) {
	db, err := database.Connect(a.cfg.DatabaseURL)
	if err != nil {
		a.log.Error().Err(err).Msg("database connect failed")
		return nil, err
	}
	if err := database.Migrate(ctx, db); err != nil {
		a.log.Error().Err(err).Msg("database migrate failed")
		_ = database.Close(db)
		return nil, err
	}
	a.log.Info().Str("driver", database.Driver(db)).Msg("database ready")
	return db, nil
}

func (a *app) serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, "authserver", a.cfg.OTLPEndpoint)
	if err != nil {
		a.log.Error().Err(err).Msg("telemetry init failed")
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			a.log.Warn().Err(err).Msg("telemetry shutdown failed")
		}
	}()

	db, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer database.Close(db)

	if err := server.New(a.cfg, db, a.log).Run(ctx); err != nil {
		a.log.Error().Err(err).Msg("server stopped with error")
		return err
	}
	a.log.Info().Msg("server stopped")
	return nil
}

func (a *app) migrate(ctx context.Context) error {
	db, err := a.open(ctx)
	if err != nil {
		return err
	}
	return database.Close(db)
}

func (a *app) cleanup(ctx context.Context) error {
	db, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer database.Close(db)

	n, err := server.PurgeExpired(ctx, repository.NewRefreshTokenRepository(db), a.cfg.StoreTimeout)
	if err != nil {
		a.log.Error().Err(err).Msg("refresh token cleanup failed")
		return err
	}
	a.log.Info().Int64("deleted", n).Msg("refresh token cleanup completed")
	return nil
}
