package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"media-transcription-proxy/internal/app"
	"media-transcription-proxy/internal/config"
	apphttp "media-transcription-proxy/internal/http"
	"media-transcription-proxy/internal/observability"
)

const shutdownGrace = 30 * time.Second

func main() {
	loaded := config.LoadEnvFiles(".env", ".env.local")
	cfg := config.Load()

	ctx := context.Background()
	application, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create application")
	}
	if len(loaded) > 0 {
		log.Info().Strs("files", loaded).Msg("Loaded environment files")
	}
	if err := application.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start application")
	}

	obs := observability.NewServer(":"+cfg.Service.MetricsPort, application.Registry, application.Ready)
	obs.Start()

	// Synchronous transcriptions hold the response open for the whole
	// provider call.
	server := &http.Server{
		Addr:              ":" + cfg.Service.HTTPPort,
		Handler:           apphttp.NewRouter(application),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Provider.Timeout + time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Str("provider", cfg.Provider.Name).Msg("Transcription proxy started")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http serve failed")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info().Msg("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownGrace)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown did not complete")
	}
	if err := obs.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("observability shutdown did not complete")
	}
	application.Shutdown()
}
