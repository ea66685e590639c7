package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"stressvision/internal/classifier"
	"stressvision/internal/config"
	"stressvision/internal/logger"
	"stressvision/internal/pipeline"
	"stressvision/internal/server"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Pretty); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize logger")
	}
	if !cfg.Log.Pretty {
		gin.SetMode(gin.ReleaseMode)
	}

	store, closeStore, err := classifier.OpenStore(cfg.Model, config.GetRedisConfig())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open model store")
	}
	defer closeStore()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc := classifier.NewService(store)
	if cfg.Model.EagerLoad {
		if _, err := svc.Model(ctx); err != nil {
			log.Fatal().Err(err).Str("store", store.String()).Msg("Failed to load stress model")
		}
	}

	pool := pipeline.NewPool(pipeline.NewAnalyzer(svc), cfg.Server.Workers, cfg.Server.QueueSize)
	defer pool.Close()

	srv := server.NewServer(pool, int64(cfg.Server.MaxBodyMB)<<20)
	if err := srv.Start(ctx, cfg.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("HTTP server failed")
	}
}
