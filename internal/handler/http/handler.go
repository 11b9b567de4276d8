// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The Sakya Authors

// Package http implements the HTTP transport of the relay server: the
// magic-link login endpoints, device management, and the WebSocket upgrade
// route. Requests are authenticated here and forwarded to the service
// layer; the relay protocol itself authenticates in-band.
package http

import (
	"github.com/sakya-app/sakya/internal/logger"
	"github.com/sakya-app/sakya/internal/relay"
	"github.com/sakya-app/sakya/internal/service"
)

type Handler struct {
	services *service.Services
	relay    *relay.Relay

	logger *logger.Logger
}

func NewHandler(services *service.Services, relay *relay.Relay, logger *logger.Logger) *Handler {
	logger.Info().Msg("http handler created")
	return &Handler{
		services: services,
		relay:    relay,
		logger:   logger,
	}
}
