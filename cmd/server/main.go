package main

import (
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Tyrowin/roomchat/internal/server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	config := server.LoadConfig()
	server.ConfigureLogging(config.LogLevel, config.LogPretty)
	server.SetConfig(config)

	log.Info().Msg("starting room chat server")
	server.StartHub()

	httpServer := server.CreateServer(config.Port, server.SetupRoutes())

	go func() {
		if err := server.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	if err := server.ShutdownServer(httpServer, shutdownTimeout); err != nil {
		log.Error().Err(err).Msg("http shutdown incomplete")
	}
	if err := server.GetHub().Shutdown(shutdownTimeout); err != nil {
		log.Error().Err(err).Msg("hub shutdown incomplete")
	}
	log.Info().Msg("server stopped")
}
