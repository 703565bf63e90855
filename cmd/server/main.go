package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Antoniohuaman/FacturaFacil-sub007/internal/caja"
	"github.com/Antoniohuaman/FacturaFacil-sub007/internal/config"
	"github.com/Antoniohuaman/FacturaFacil-sub007/internal/infra"
	"github.com/Antoniohuaman/FacturaFacil-sub007/internal/repository"
	"github.com/Antoniohuaman/FacturaFacil-sub007/internal/router"
	"github.com/Antoniohuaman/FacturaFacil-sub007/internal/worker"
)

func main() {
	// Structured logger — dev: pretty, prod: JSON
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	if err := infra.RunMigrations(db); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	rdb, err := infra.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Audit worker pool consumes caja events from Redis and persists them.
	auditoriaRepo := repository.NewAuditoriaRepository(db)
	worker.StartWorkerPool(ctx, rdb, auditoriaRepo, cfg.WorkerPoolSize)

	registro := caja.Nuevo(caja.Opciones{PermitirAperturaEnCero: cfg.AperturaEnCero})
	r, cajaSvc := router.New(cfg, db, rdb, registro)

	// Sessions left open by a previous process keep their ledger.
	if err := cajaSvc.CargarAbiertas(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to rehydrate open sessions")
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Msgf("caja backend listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server exited")
}
