// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The Sakya Authors

package server

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/sakya-app/sakya/internal/config"
	myHTTP "github.com/sakya-app/sakya/internal/handler/http"
	"github.com/sakya-app/sakya/internal/logger"
	"github.com/sakya-app/sakya/internal/relay"
)

type server struct {
	httpServer *httpServer
	relay      *relay.Relay

	sweepInterval time.Duration

	logger *logger.Logger
}

// NewServer builds the transport server around the HTTP handler and the
// relay. The relay reference is only used for the periodic room sweep;
// its connections ride on the HTTP server's listener.
func NewServer(handler *myHTTP.Handler, rl *relay.Relay, cfg config.Server, logger *logger.Logger) (Server, error) {
	logger.Info().Msg("creating new server...")

	if cfg.HTTPAddress == "" {
		return nil, errNoServersAreCreated
	}

	return &server{
		httpServer:    newHTTPServer(handler.Init(), cfg, logger),
		relay:         rl,
		sweepInterval: cfg.RoomCleanupInterval,
		logger:        logger,
	}, nil
}

func (s *server) RunServer() {
	if err := s.run(); err != nil {
		s.logger.Info().Msgf("Error running server: %v", err)
	}
}

func (s *server) Shutdown() {
	s.httpServer.Shutdown()
}

func (s *server) run() error {
	idleConnectionsClosed := make(chan struct{})
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
		syscall.SIGQUIT,
	)
	defer stop()

	// listen for stop signals
	go func() {
		<-ctx.Done()
		s.Shutdown()
		close(idleConnectionsClosed)
	}()

	s.logger.Info().Msg("Launching HTTP server")
	go s.httpServer.RunServer()

	// periodic room cleanup; nothing else ever removes empty rooms
	go s.sweepLoop(ctx)

	<-idleConnectionsClosed
	s.logger.Info().Msg("server Shutdown gracefully")

	return nil
}

func (s *server) sweepLoop(ctx context.Context) {
	if s.relay == nil || s.sweepInterval <= 0 {
		return
	}

	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := s.relay.Sweep(); removed > 0 {
				s.logger.Debug().Int("rooms", removed).Msg("swept empty rooms")
			}
		}
	}
}
