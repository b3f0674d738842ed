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

	router "github.com/peersignal/relay/internal/adapters/http"
	"github.com/peersignal/relay/internal/adapters/ws"
	"github.com/peersignal/relay/internal/app"
	"github.com/peersignal/relay/internal/config"
	"github.com/peersignal/relay/internal/core"
	"github.com/peersignal/relay/internal/directory"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("failed to load config")
	}
	if cfg.Mode == "debug" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	var dir core.Directory
	switch cfg.Directory {
	case "redis":
		rdir, err := directory.NewRedis(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect redis directory")
		}
		defer rdir.Close()
		dir = rdir
	default:
		dir = directory.NewMemory()
	}

	registry := app.NewRegistry(dir)
	hub := ws.NewHub(cfg)
	relay := app.NewRelayEngine(registry, hub)
	hub.Router = &app.Router{
		Registry: registry,
		Relay:    relay,
		Policy:   app.NewPolicy(cfg.RelayPolicy, registry),
	}

	r := router.SetupRouter(ctx, cfg, hub, dir)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Str("directory", cfg.Directory).Msg("signaling relay started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
