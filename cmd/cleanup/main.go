// Command cleanup runs a single refresh-token sweep and exits.  The server
// runs the same sweep periodically; this binary exists for manual runs and
// external schedulers.
package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/serveis-extraordinaris/backend/internal/config"
	"github.com/serveis-extraordinaris/backend/internal/database"
	"github.com/serveis-extraordinaris/backend/internal/jobs"
	"github.com/serveis-extraordinaris/backend/internal/repository"
)

func main() {
	_ = godotenv.Load()

	log := zerolog.New(os.Stdout).With().Timestamp().Str("job", "token-cleanup").Logger()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	defer db.Close()

	cleanup := jobs.NewCleanup(repository.NewTokenRepo(db), cfg.CleanupInterval, log)
	n, err := cleanup.RunOnce(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("token cleanup failed")
	}
	log.Info().Int64("tokens_deleted", n).Msg("token cleanup completed")
}
