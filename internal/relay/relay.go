// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The Sakya Authors

package relay

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sakya-app/sakya/internal/logger"
	"github.com/sakya-app/sakya/internal/service"
	"github.com/sakya-app/sakya/internal/store"
)

// fragmentMaxAge bounds how long a partially reassembled message may sit
// in a connection's reassembler before it is pruned.
const fragmentMaxAge = 2 * time.Minute

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Desktop and mobile clients connect from app origins, not pages.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Relay owns the room table and the persistence hooks shared by all live
// connections.
type Relay struct {
	identity  service.IdentityService
	updates   store.UpdateRepository
	snapshots store.SnapshotRepository
	rooms     *Rooms
	version   string
	logger    *logger.Logger
}

// NewRelay constructs a Relay over the identity service and the sync
// repositories. version is echoed to clients in the auth_ok reply.
func NewRelay(identity service.IdentityService, updates store.UpdateRepository, snapshots store.SnapshotRepository, version string, log *logger.Logger) *Relay {
	return &Relay{
		identity:  identity,
		updates:   updates,
		snapshots: snapshots,
		rooms:     NewRooms(),
		version:   version,
		logger:    log,
	}
}

// Sweep removes empty rooms and returns how many were dropped. Called by
// the server on its cleanup interval.
func (r *Relay) Sweep() int {
	return r.rooms.Sweep()
}

// ServeWS upgrades an HTTP request to a relay connection and starts its
// pumps. The connection starts unauthenticated; every message except auth
// is rejected until a valid session token arrives.
func (r *Relay) ServeWS(w http.ResponseWriter, req *http.Request) {
	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		logger.FromRequest(req).Err(err).Msg("websocket upgrade failed")
		return
	}

	c := newClient(r, conn)

	go c.writePump()
	go c.readPump()
}
