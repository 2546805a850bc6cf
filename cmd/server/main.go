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

	"github.com/vkotx/gather/internal/config"
	"github.com/vkotx/gather/internal/core"
	"github.com/vkotx/gather/internal/domain"
	"github.com/vkotx/gather/internal/httpapi"
	"github.com/vkotx/gather/internal/room"
	"github.com/vkotx/gather/internal/rtc"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	rtcConfig := rtc.Configuration(cfg.ICEServers)
	reg := room.NewRegistry(func(id domain.PeerID, ch core.SignalConnection) (core.MediaConnection, error) {
		conn, err := rtc.New(rtcConfig, id, ch)
		if err != nil {
			return nil, err
		}
		if err := conn.Start(ctx); err != nil {
			conn.Close()
			return nil, err
		}
		return conn, nil
	})

	r := httpapi.SetupRouter(ctx, cfg, reg)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Gather server started")
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
