package main

import (
	"context"
	"errors"
	"os"

	"authserver/internal/config"
	"authserver/internal/database"
	"authserver/internal/domain/auth"
	"authserver/internal/logging"
	"authserver/internal/repository"

	"github.com/spf13/cobra"
)

type seedOptions struct {
	email    string
	password string
	name     string
}

func main() {
	if err := newSeedCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newSeedCmd() *cobra.Command {
	opts := &seedOptions{}

	cmd := &cobra.Command{
		Use:           "seed",
		Short:         "Create a demo user",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSeed(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.email, "email", "demo@example.com", "demo user email")
	cmd.Flags().StringVar(&opts.password, "password", "Demo1234", "demo user password")
	cmd.Flags().StringVar(&opts.name, "name", "Demo User", "demo user full name")
	return cmd
}

func runSeed(ctx context.Context, opts *seedOptions) error {
	cfg, err := config.Load()
	if err != nil {
		logging.NewStderr("info", "console").Error().Err(err).Msg("config load failed")
		return err
	}
	log := logging.NewStderr(cfg.LogLevel, "console")

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Error().Err(err).Msg("DB connection failed")
		return err
	}
	defer database.Close(db)

	log.Info().Msg("Running AutoMigrate...")
	if err := database.Migrate(ctx, db); err != nil {
		log.Error().Err(err).Msg("AutoMigrate failed")
		return err
	}

	credentials := auth.NewCredentialStore(repository.NewUserRepository(db), cfg.BcryptCost)
	user, err := credentials.Create(ctx, opts.email, opts.password, opts.name)
	switch {
	case errors.Is(err, auth.ErrDuplicateEmail):
		log.Info().Str("email", opts.email).Msg("demo user already exists")
	case err != nil:
		log.Error().Err(err).Msg("create demo user failed")
		return err
	default:
		log.Info().Int64("id", user.ID).Str("email", user.Email).Msg("demo user created")
	}
	return nil
}
