package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/serveis-extraordinaris/backend/internal/auth"
	"github.com/serveis-extraordinaris/backend/internal/config"
	"github.com/serveis-extraordinaris/backend/internal/database"
	"github.com/serveis-extraordinaris/backend/internal/handler"
	"github.com/serveis-extraordinaris/backend/internal/jobs"
	"github.com/serveis-extraordinaris/backend/internal/middleware"
	"github.com/serveis-extraordinaris/backend/internal/queue"
	"github.com/serveis-extraordinaris/backend/internal/repository"
	"github.com/serveis-extraordinaris/backend/internal/router"
	"github.com/serveis-extraordinaris/backend/internal/service"
)

func main() {
	_ = godotenv.Load()

	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", "serveis-extraordinaris").Logger()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	defer db.Close()

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	empreses := repository.NewEmpresaRepo(db)

	codec := auth.NewCodec(cfg.AccessSecret, cfg.RefreshSecret,
		auth.ParseExpiry(cfg.AccessTTL), auth.ParseExpiry(cfg.RefreshTTL))
	hasher := auth.NewHasher(cfg.BcryptCost)
	events := queue.NewPublisher(log)

	authSvc := service.NewAuthService(users, tokens, hasher, codec, events, cfg.AccessTTL, log)
	empSvc := service.NewEmpresaService(empreses)

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = handler.HTTPErrorHandler(log)
	e.Use(echomw.RequestID())
	e.Use(echomw.Recover())
	e.Use(echomw.CORS())
	e.Use(echomw.Secure())

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Warn().Msg("redis unavailable, rate limiting disabled")
	}

	router.Register(e, router.Deps{
		Auth:          handler.NewAuthHandler(authSvc),
		Empreses:      handler.NewEmpresaHandler(empSvc),
		Authn:         middleware.Authenticate(codec, users),
		OptionalAuthn: middleware.OptionalAuth(codec, users),
		RateLimit:     middleware.RateLimit(config.LoadRateLimitConfig(), rdb),
	})

	if cfg.CleanupEnabled {
		cleanup := jobs.NewCleanup(tokens, cfg.CleanupInterval, log)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go cleanup.Run(ctx)
	}

	addr := ":" + cfg.Port
	log.Info().Str("addr", addr).Str("env", cfg.Env).Msg("listening")
	if err := e.Start(addr); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
