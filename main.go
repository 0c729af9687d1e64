// server/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ViniZap4/lumi-drive/auth"
	"github.com/ViniZap4/lumi-drive/bootstrap"
	"github.com/ViniZap4/lumi-drive/config"
	httphandlers "github.com/ViniZap4/lumi-drive/http"
	"github.com/ViniZap4/lumi-drive/logger"
	"github.com/ViniZap4/lumi-drive/peer"
	"github.com/ViniZap4/lumi-drive/reminders"
	"github.com/ViniZap4/lumi-drive/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fatalLog := logger.New("info", false)
		fatalLog.Fatal().Err(err).Msg("invalid configuration")
	}
	log := logger.New(cfg.LogLevel, cfg.LogPretty)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, closeStorage, err := bootstrap.Repository(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Str("storage", cfg.Storage).Msg("storage unavailable")
	}
	defer closeStorage()

	tax, err := bootstrap.Taxonomy(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("taxonomy unavailable")
	}

	guard, err := auth.New(cfg.Password, cfg.PasswordHash)
	if err != nil {
		log.Fatal().Err(err).Msg("auth setup failed")
	}

	hub := ws.NewHub(cfg.ServerID, log.With().Str("component", "ws").Logger())
	go hub.Run(ctx)

	if len(cfg.Peers) > 0 {
		peer.NewManager(cfg.Peers, cfg.ServerID, repo, hub, log.With().Str("component", "peer").Logger()).Start(ctx)
	}

	syncer := reminders.NewSyncer(repo, reminders.Platform(cfg.ReminderList, log), cfg.ReminderTime,
		log.With().Str("component", "reminders").Logger())

	server := httphandlers.NewServer(repo, tax, hub, guard, syncer, log.With().Str("component", "http").Logger())

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown failed")
		}
	}()

	log.Info().
		Str("server_id", cfg.ServerID).
		Str("storage", cfg.Storage).
		Int("peers", len(cfg.Peers)).
		Msg("lumi-drive starting")
	if err := server.Listen(":" + cfg.Port); err != nil {
		log.Error().Err(err).Msg("server stopped")
	}
}
