package main

import (
	"context"
	"os"

	"authserver/internal/config"
	"authserver/internal/database"
	"authserver/internal/logging"
	"authserver/internal/repository"
	"authserver/internal/server"
)

func main() {
	if err := run(context.Background()); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		logging.NewStderr("info", "json").Error().Err(err).Msg("config load failed")
		return err
	}
	log := logging.NewStderr(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Error().Err(err).Msg("db connect failed")
		return err
	}
	defer database.Close(db)

	n, err := server.PurgeExpired(ctx, repository.NewRefreshTokenRepository(db), cfg.StoreTimeout)
	if err != nil {
		log.Error().Err(err).Msg("cleanup refresh_tokens failed")
		return err
	}

	log.Info().Int64("refresh_tokens", n).Msg("auth cleanup completed")
	return nil
}
