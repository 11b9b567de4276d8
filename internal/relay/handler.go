// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The Sakya Authors

package relay

import (
	"context"
	"errors"

	"github.com/sakya-app/sakya/internal/protocol"
	"github.com/sakya-app/sakya/internal/store"
	"github.com/sakya-app/sakya/internal/token"
	"github.com/sakya-app/sakya/models"
)

// handleFrame decodes one incoming frame and dispatches it. Unknown or
// malformed frames are answered with bad_message; the connection stays
// open, because a single garbled frame does not invalidate the session.
func (c *client) handleFrame(data []byte) {
	msg, err := protocol.Decode(data)
	if err != nil {
		c.sendError(protocol.CodeBadMessage, "unparseable message")
		return
	}
	c.handleMessage(msg)
}

func (c *client) handleMessage(msg protocol.Message) {
	ctx := context.Background()

	if auth, ok := msg.(*protocol.Auth); ok {
		c.handleAuth(ctx, auth)
		return
	}
	if !c.authenticated {
		c.sendError(protocol.CodeUnauthorized, "authenticate first")
		return
	}

	// Fragments buffer server memory, so only authenticated connections
	// may open a set. Auth itself is always a single small frame.
	if frag, ok := msg.(*protocol.Fragment); ok {
		c.handleFragment(frag)
		return
	}

	switch m := msg.(type) {
	case *protocol.JoinRoom:
		c.handleJoinRoom(ctx, m)
	case *protocol.LeaveRoom:
		c.handleLeaveRoom(m)
	case *protocol.EncryptedUpdate:
		c.handleEncryptedUpdate(ctx, m)
	case *protocol.EncryptedSnapshot:
		c.handleEncryptedSnapshot(ctx, m)
	case *protocol.SyncRequest:
		c.handleSyncRequest(ctx, m)
	case *protocol.Ephemeral:
		c.handleEphemeral(m)
	case *protocol.Ping:
		c.sendMessage(&protocol.Pong{})
	case *protocol.Pong:
		// Keepalive reply, nothing to do.
	default:
		// Server-to-client types bounced back by a confused peer.
		c.sendError(protocol.CodeBadMessage, "unexpected message type")
	}
}

// handleAuth validates the presented session token and flips the
// connection into the authenticated state. Re-authentication on a live
// connection replaces the session, keeping joined rooms.
func (c *client) handleAuth(ctx context.Context, m *protocol.Auth) {
	session, err := c.relay.identity.ValidateSession(ctx, m.Token)
	switch {
	case errors.Is(err, token.ErrTokenExpired):
		c.sendError(protocol.CodeTokenExpired, "session token expired")
		return
	case err != nil:
		c.sendError(protocol.CodeInvalidToken, "session token rejected")
		return
	}

	accountID := session.AccountID()
	deviceID := session.Claims.DeviceID

	// A token of a removed device is signed but no longer welcome.
	if err := c.relay.identity.TouchDevice(ctx, accountID, deviceID); err != nil {
		if errors.Is(err, store.ErrDeviceNotFound) {
			c.sendError(protocol.CodeDeviceNotFound, "device is not registered")
			return
		}
		c.relay.logger.Err(err).Str("device_id", deviceID).Msg("device touch failed")
		c.sendError(protocol.CodeInternal, "internal error")
		return
	}

	c.authenticated = true
	c.accountID = accountID
	c.deviceID = deviceID

	c.sendMessage(&protocol.AuthOk{ServerVersion: c.relay.version})
}

// handleJoinRoom adds the connection to the project's room and replies
// with the server's per-device version vector, so the client knows what it
// is missing before asking.
func (c *client) handleJoinRoom(ctx context.Context, m *protocol.JoinRoom) {
	if m.ProjectID == "" {
		c.sendError(protocol.CodeBadMessage, "missing project_id")
		return
	}

	room := c.relay.rooms.getOrCreate(m.ProjectID)
	room.join(c)
	c.joined[m.ProjectID] = room

	vector, err := c.relay.updates.LatestSequences(ctx, m.ProjectID)
	if err != nil {
		c.relay.logger.Err(err).Str("project_id", m.ProjectID).Msg("version vector query failed")
		c.sendError(protocol.CodeInternal, "internal error")
		return
	}

	c.sendMessage(&protocol.RoomJoined{ProjectID: m.ProjectID, ServerVersionVector: vector})
}

func (c *client) handleLeaveRoom(m *protocol.LeaveRoom) {
	if room, ok := c.joined[m.ProjectID]; ok {
		room.leave(c)
		delete(c.joined, m.ProjectID)
	}
}

// handleEncryptedUpdate persists the update, then fans it out to the other
// room members. Persistence comes first: a relayed-but-lost update would
// otherwise be unrecoverable for offline devices.
func (c *client) handleEncryptedUpdate(ctx context.Context, m *protocol.EncryptedUpdate) {
	room, ok := c.joined[m.ProjectID]
	if !ok {
		c.sendError(protocol.CodeBadMessage, "join the room first")
		return
	}

	err := c.relay.updates.StoreUpdate(ctx, models.StoredUpdate{
		ProjectID: m.ProjectID,
		DeviceID:  m.DeviceID,
		Sequence:  m.Sequence,
		Envelope:  m.Envelope,
	})
	if err != nil {
		c.relay.logger.Err(err).Str("project_id", m.ProjectID).Msg("update persistence failed")
		c.sendError(protocol.CodeInternal, "internal error")
		return
	}

	c.broadcast(room, m)
}

func (c *client) handleEncryptedSnapshot(ctx context.Context, m *protocol.EncryptedSnapshot) {
	room, ok := c.joined[m.ProjectID]
	if !ok {
		c.sendError(protocol.CodeBadMessage, "join the room first")
		return
	}

	err := c.relay.snapshots.StoreSnapshot(ctx, models.StoredSnapshot{
		ProjectID:  m.ProjectID,
		SnapshotID: m.SnapshotID,
		Envelope:   m.Envelope,
	})
	if err != nil {
		c.relay.logger.Err(err).Str("project_id", m.ProjectID).Msg("snapshot persistence failed")
		c.sendError(protocol.CodeInternal, "internal error")
		return
	}

	c.broadcast(room, m)
}

// handleSyncRequest answers with every persisted update past the client's
// watermark plus the latest snapshot, if any. Joining the room is not
// required; catch-up is a read, not a membership act.
func (c *client) handleSyncRequest(ctx context.Context, m *protocol.SyncRequest) {
	stored, err := c.relay.updates.GetUpdatesSince(ctx, m.ProjectID, m.SinceSequence, 0)
	if err != nil {
		c.relay.logger.Err(err).Str("project_id", m.ProjectID).Msg("update catch-up query failed")
		c.sendError(protocol.CodeInternal, "internal error")
		return
	}

	resp := &protocol.SyncResponse{ProjectID: m.ProjectID, Updates: make([]protocol.EncryptedUpdate, 0, len(stored))}
	for _, u := range stored {
		resp.Updates = append(resp.Updates, protocol.EncryptedUpdate{
			ProjectID: u.ProjectID,
			Envelope:  u.Envelope,
			Sequence:  u.Sequence,
			DeviceID:  u.DeviceID,
		})
	}

	snapshot, err := c.relay.snapshots.GetLatestSnapshot(ctx, m.ProjectID)
	switch {
	case errors.Is(err, store.ErrSnapshotNotFound):
		// No snapshot yet; updates alone answer the request.
	case err != nil:
		c.relay.logger.Err(err).Str("project_id", m.ProjectID).Msg("snapshot catch-up query failed")
		c.sendError(protocol.CodeInternal, "internal error")
		return
	default:
		resp.LatestSnapshot = &protocol.EncryptedSnapshot{
			ProjectID:  snapshot.ProjectID,
			Envelope:   snapshot.Envelope,
			SnapshotID: snapshot.SnapshotID,
		}
	}

	c.sendMessage(resp)
}

// handleEphemeral fans the payload out without persisting it. Pairing
// provisioning envelopes travel this way.
func (c *client) handleEphemeral(m *protocol.Ephemeral) {
	room, ok := c.joined[m.ProjectID]
	if !ok {
		c.sendError(protocol.CodeBadMessage, "join the room first")
		return
	}
	c.broadcast(room, m)
}

// handleFragment feeds one fragment into the reassembler and dispatches
// the complete message once all parts arrived. Stale partial sets are
// pruned opportunistically on every fragment.
func (c *client) handleFragment(frag *protocol.Fragment) {
	c.reasm.Prune(fragmentMaxAge)

	complete, done, err := c.reasm.Add(frag)
	if err != nil {
		c.sendError(protocol.CodeFragmentIncomplete, "fragment set mismatch")
		return
	}
	if !done {
		return
	}

	msg, err := protocol.Decode(complete)
	if err != nil {
		c.sendError(protocol.CodeBadMessage, "unparseable reassembled message")
		return
	}
	if _, nested := msg.(*protocol.Fragment); nested {
		c.sendError(protocol.CodeBadMessage, "nested fragment")
		return
	}
	c.handleMessage(msg)
}

// broadcast encodes m once and fans it out to the other room members,
// fragmenting for everyone when the encoding is oversized.
func (c *client) broadcast(room *Room, m protocol.Message) {
	encoded, err := protocol.Encode(m)
	if err != nil {
		c.relay.logger.Err(err).Str("type", string(m.MessageType())).Msg("broadcast encode failed")
		return
	}

	if !protocol.NeedsFragmentation(encoded) {
		room.broadcast(c, encoded)
		return
	}

	for _, frag := range protocol.Split(encoded) {
		fragEncoded, err := protocol.Encode(frag)
		if err != nil {
			c.relay.logger.Err(err).Msg("broadcast fragment encode failed")
			return
		}
		room.broadcast(c, fragEncoded)
	}
}
