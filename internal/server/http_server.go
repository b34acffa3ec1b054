package server

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// CreateServer creates an HTTP server for the given port and handler.
// Write timeouts do not apply to hijacked WebSocket connections.
func CreateServer(port string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// StartHub starts the process-wide hub in a separate goroutine.
// This should be called before starting the HTTP server.
func StartHub() {
	go GetHub().Run()
	log.Info().Msg("hub started and ready to manage websocket connections")
}

// StartServer listens until the server is shut down. It returns
// http.ErrServerClosed after a graceful shutdown.
func StartServer(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("server listening")
	return server.ListenAndServe()
}

// ShutdownServer gracefully shuts down the HTTP server, waiting for active
// requests until the timeout is reached.
func ShutdownServer(server *http.Server, timeout time.Duration) error {
	log.Info().Msg("shutting down http server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
		return err
	}

	log.Info().Msg("http server shutdown completed")
	return nil
}
