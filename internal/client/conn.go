// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The Sakya Authors

package client

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sakya-app/sakya/internal/config"
	"github.com/sakya-app/sakya/internal/logger"
	"github.com/sakya-app/sakya/internal/protocol"
)

const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second

	// fragmentMaxAge bounds how long a partial incoming message may wait
	// for its remaining fragments.
	fragmentMaxAge = 2 * time.Minute
)

// nextBackoff doubles the reconnect delay up to maxBackoff.
func nextBackoff(current time.Duration) time.Duration {
	if current <= 0 {
		return initialBackoff
	}
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

// wsURL converts the server's base URL into the relay WebSocket endpoint.
func wsURL(serverURL string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("invalid server url: %w", err)
	}

	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("invalid server url scheme %q", u.Scheme)
	}
	u.Path = "/ws"

	return u.String(), nil
}

// Syncer keeps one relay connection alive for an [Engine]: it dials,
// authenticates, joins the enabled projects, catches up, and reconnects
// with exponential backoff when the connection drops.
type Syncer struct {
	engine       *Engine
	serverURL    string
	sessionToken string

	mu   sync.Mutex
	conn *websocket.Conn

	// authed records whether the current connection reached AuthOk. Only
	// touched on Run's goroutine, which also runs the read loop.
	authed bool

	reasm  *protocol.Reassembler
	logger *logger.Logger
}

// NewSyncer constructs a Syncer over the engine. sessionToken must be a
// valid session token for the engine's device.
func NewSyncer(engine *Engine, cfg *config.ClientConfig, sessionToken string, log *logger.Logger) *Syncer {
	return &Syncer{
		engine:       engine,
		serverURL:    cfg.ServerURL,
		sessionToken: sessionToken,
		reasm:        protocol.NewReassembler(),
		logger:       log,
	}
}

// Run connects and serves until ctx is cancelled, reconnecting with
// exponential backoff after every failure. The backoff resets once a
// connection authenticates.
func (s *Syncer) Run(ctx context.Context) error {
	endpoint, err := wsURL(s.serverURL)
	if err != nil {
		return err
	}

	backoff := time.Duration(0)
	for {
		s.authed = false
		if err := s.connectAndServe(ctx, endpoint); err != nil {
			s.logger.Err(err).Msg("relay connection lost")
		}
		if s.authed {
			backoff = 0
		}

		backoff = nextBackoff(backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
}

// SendUpdate encrypts plaintext and pushes it to the relay.
func (s *Syncer) SendUpdate(projectID string, plaintext []byte) error {
	update, err := s.engine.MakeUpdate(projectID, plaintext)
	if err != nil {
		return err
	}
	return s.writeMessage(update)
}

// SendSnapshot encrypts plaintext as a snapshot and pushes it to the relay.
func (s *Syncer) SendSnapshot(projectID, snapshotID string, plaintext []byte) error {
	snapshot, err := s.engine.MakeSnapshot(projectID, snapshotID, plaintext)
	if err != nil {
		return err
	}
	return s.writeMessage(snapshot)
}

// JoinProject asks the relay for the project's room on the live
// connection. Enabled projects are joined automatically on authentication,
// so this is only needed for projects enabled mid-session.
func (s *Syncer) JoinProject(projectID string) error {
	return s.writeMessage(&protocol.JoinRoom{ProjectID: projectID})
}

// SendEphemeral pushes opaque bytes through the project's room without
// persistence.
func (s *Syncer) SendEphemeral(projectID string, data []byte) error {
	return s.writeMessage(&protocol.Ephemeral{ProjectID: projectID, Data: data})
}

func (s *Syncer) connectAndServe(ctx context.Context, endpoint string) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return fmt.Errorf("relay dial failed: %w", err)
	}
	defer conn.Close()

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
	}()

	if err := s.writeMessage(&protocol.Auth{Token: s.sessionToken}); err != nil {
		return err
	}

	// Close the connection when ctx ends so the read loop unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("relay read failed: %w", err)
		}
		s.handleFrame(data)
	}
}

func (s *Syncer) handleFrame(data []byte) {
	msg, err := protocol.Decode(data)
	if err != nil {
		s.logger.Err(err).Msg("undecodable relay frame")
		return
	}
	s.handleMessage(msg)
}

func (s *Syncer) handleMessage(msg protocol.Message) {
	switch m := msg.(type) {
	case *protocol.AuthOk:
		s.logger.Info().Str("server_version", m.ServerVersion).Msg("relay authenticated")
		s.authed = true
		s.joinEnabledProjects()

	case *protocol.RoomJoined:
		if own, ok := m.ServerVersionVector[s.engine.deviceID]; ok {
			s.engine.SeedSequence(m.ProjectID, own)
		}
		if s.engine.NeedsCatchUp(m.ProjectID, m.ServerVersionVector) {
			s.requestSync(m.ProjectID)
		}
		if s.engine.onJoined != nil {
			s.engine.onJoined(m.ProjectID)
		}

	case *protocol.EncryptedUpdate:
		s.applyUpdate(m)

	case *protocol.EncryptedSnapshot:
		s.applySnapshot(m)

	case *protocol.SyncResponse:
		// Snapshot first, then the update tail on top of it.
		if m.LatestSnapshot != nil {
			s.applySnapshot(m.LatestSnapshot)
		}
		for i := range m.Updates {
			s.applyUpdate(&m.Updates[i])
		}

	case *protocol.Ephemeral:
		if s.engine.onEphemeral != nil {
			s.engine.onEphemeral(m.ProjectID, m.Data)
		}

	case *protocol.Ping:
		if err := s.writeMessage(&protocol.Pong{}); err != nil {
			s.logger.Err(err).Msg("pong failed")
		}

	case *protocol.Pong:
		// Keepalive reply, nothing to do.

	case *protocol.ErrorMessage:
		s.logger.Error().Str("code", m.Code).Str("message", m.Message).Msg("relay error")

	case *protocol.Fragment:
		s.handleFragment(m)

	default:
		s.logger.Warn().Str("type", string(msg.MessageType())).Msg("unexpected relay message")
	}
}

func (s *Syncer) handleFragment(frag *protocol.Fragment) {
	s.reasm.Prune(fragmentMaxAge)

	complete, done, err := s.reasm.Add(frag)
	if err != nil {
		s.logger.Err(err).Msg("fragment reassembly failed")
		return
	}
	if !done {
		return
	}
	s.handleFrame(complete)
}

func (s *Syncer) applyUpdate(m *protocol.EncryptedUpdate) {
	plaintext, applied, err := s.engine.ApplyUpdate(m)
	if err != nil {
		s.logger.Err(err).Str("project_id", m.ProjectID).Msg("update apply failed")
		return
	}
	if applied && s.engine.onUpdate != nil {
		s.engine.onUpdate(m.ProjectID, m.DeviceID, m.Sequence, plaintext)
	}
}

func (s *Syncer) applySnapshot(m *protocol.EncryptedSnapshot) {
	plaintext, err := s.engine.ApplySnapshot(m)
	if err != nil {
		s.logger.Err(err).Str("project_id", m.ProjectID).Msg("snapshot apply failed")
		return
	}
	if s.engine.onSnapshot != nil {
		s.engine.onSnapshot(m.ProjectID, m.SnapshotID, plaintext)
	}
}

func (s *Syncer) joinEnabledProjects() {
	for _, projectID := range s.engine.EnabledProjects() {
		if err := s.writeMessage(&protocol.JoinRoom{ProjectID: projectID}); err != nil {
			s.logger.Err(err).Str("project_id", projectID).Msg("room join failed")
		}
	}
}

func (s *Syncer) requestSync(projectID string) {
	req := &protocol.SyncRequest{
		ProjectID:     projectID,
		SinceSequence: s.engine.SinceSequence(projectID),
	}
	if err := s.writeMessage(req); err != nil {
		s.logger.Err(err).Str("project_id", projectID).Msg("sync request failed")
	}
}

// writeMessage encodes and writes one message, fragmenting oversized
// encodings. Writes are serialized; gorilla connections allow only one
// concurrent writer.
func (s *Syncer) writeMessage(m protocol.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return ErrNotConnected
	}

	encoded, err := protocol.Encode(m)
	if err != nil {
		return fmt.Errorf("message encode failed: %w", err)
	}

	if !protocol.NeedsFragmentation(encoded) {
		return s.conn.WriteMessage(websocket.TextMessage, encoded)
	}

	for _, frag := range protocol.Split(encoded) {
		fragEncoded, err := protocol.Encode(frag)
		if err != nil {
			return fmt.Errorf("fragment encode failed: %w", err)
		}
		if err := s.conn.WriteMessage(websocket.TextMessage, fragEncoded); err != nil {
			return err
		}
	}
	return nil
}
