// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The Sakya Authors

// Package protocol defines the wire protocol spoken between the sync
// client and the relay: an internally tagged JSON message union plus
// fragmentation for oversized messages.
//
// Every message serializes as a JSON object with a "type" discriminator
// field. Unknown or missing tags are parse errors, never silently
// defaulted variants.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/sakya-app/sakya/internal/crypto"
)

// MessageType is the value of the "type" discriminator field.
type MessageType string

// Wire tags. These strings are part of the protocol and must match any
// remote implementation byte for byte.
const (
	TypeAuth              MessageType = "auth"
	TypeAuthOk            MessageType = "auth_ok"
	TypeJoinRoom          MessageType = "join_room"
	TypeRoomJoined        MessageType = "room_joined"
	TypeLeaveRoom         MessageType = "leave_room"
	TypeEncryptedUpdate   MessageType = "encrypted_update"
	TypeEncryptedSnapshot MessageType = "encrypted_snapshot"
	TypeSyncRequest       MessageType = "sync_request"
	TypeSyncResponse      MessageType = "sync_response"
	TypeEphemeral         MessageType = "ephemeral"
	TypeError             MessageType = "error"
	TypePing              MessageType = "ping"
	TypePong              MessageType = "pong"
	TypeFragment          MessageType = "fragment"
)

// Machine-readable error codes carried by [ErrorMessage]. Stable across
// versions; human-readable text may change freely.
const (
	CodeUnauthorized       = "unauthorized"
	CodeTokenExpired       = "token_expired"
	CodeInvalidToken       = "invalid_token"
	CodeRateLimited        = "rate_limited"
	CodeDeviceNotFound     = "device_not_found"
	CodeBadMessage         = "bad_message"
	CodeFragmentIncomplete = "fragment_incomplete"
	CodeInternal           = "internal"
)

// Message is one member of the wire protocol union.
type Message interface {
	// MessageType returns the wire tag of the concrete message.
	MessageType() MessageType
}

// Auth authenticates a freshly opened connection with a session token. It
// must precede any room operation.
type Auth struct {
	Token string `json:"token"`
}

// AuthOk acknowledges a successful Auth and advertises the server version.
type AuthOk struct {
	ServerVersion string `json:"server_version"`
}

// JoinRoom subscribes the connection to a project's room, creating the
// room on first join.
type JoinRoom struct {
	ProjectID string `json:"project_id"`
}

// RoomJoined acknowledges a JoinRoom. ServerVersionVector maps device ids
// to the highest persisted sequence the server holds for the project, so
// the client can decide what to request.
type RoomJoined struct {
	ProjectID           string           `json:"project_id"`
	ServerVersionVector map[string]int64 `json:"server_version_vector"`
}

// LeaveRoom unsubscribes the connection from a project's room.
type LeaveRoom struct {
	ProjectID string `json:"project_id"`
}

// EncryptedUpdate carries one encrypted document update. The relay
// persists the envelope and fans it out to the room without inspecting it.
type EncryptedUpdate struct {
	ProjectID string          `json:"project_id"`
	Envelope  crypto.Envelope `json:"envelope"`
	Sequence  int64           `json:"sequence"`
	DeviceID  string          `json:"device_id"`
}

// EncryptedSnapshot carries one encrypted document snapshot.
type EncryptedSnapshot struct {
	ProjectID  string          `json:"project_id"`
	Envelope   crypto.Envelope `json:"envelope"`
	SnapshotID string          `json:"snapshot_id"`
}

// SyncRequest asks the relay for all persisted updates of a project with
// sequence strictly greater than SinceSequence.
type SyncRequest struct {
	ProjectID     string `json:"project_id"`
	SinceSequence int64  `json:"since_sequence"`
}

// SyncResponse answers a SyncRequest with the matching updates in
// ascending sequence order, plus the latest snapshot if one exists.
type SyncResponse struct {
	ProjectID      string             `json:"project_id"`
	Updates        []EncryptedUpdate  `json:"updates"`
	LatestSnapshot *EncryptedSnapshot `json:"latest_snapshot,omitempty"`
}

// Ephemeral carries opaque bytes through a room without persistence. Used
// by pairing to transfer provisioning envelopes and for other transient
// device-to-device messages.
type Ephemeral struct {
	ProjectID string `json:"project_id"`
	Data      []byte `json:"data"`
}

// ErrorMessage reports a failure to the peer with a stable machine-readable
// code and a human-readable message. Internal details never cross the
// trust boundary through this type.
type ErrorMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Ping is a liveness probe; the peer answers with Pong.
type Ping struct{}

// Pong answers a Ping.
type Pong struct{}

// Fragment is one ordered slice of an oversized encoded message. All
// fragments of one message share MessageID; Total is constant across the
// set and Index runs 0..Total-1.
type Fragment struct {
	MessageID string `json:"message_id"`
	Index     int    `json:"index"`
	Total     int    `json:"total"`
	Data      []byte `json:"data"`
}

func (*Auth) MessageType() MessageType              { return TypeAuth }
func (*AuthOk) MessageType() MessageType            { return TypeAuthOk }
func (*JoinRoom) MessageType() MessageType          { return TypeJoinRoom }
func (*RoomJoined) MessageType() MessageType        { return TypeRoomJoined }
func (*LeaveRoom) MessageType() MessageType         { return TypeLeaveRoom }
func (*EncryptedUpdate) MessageType() MessageType   { return TypeEncryptedUpdate }
func (*EncryptedSnapshot) MessageType() MessageType { return TypeEncryptedSnapshot }
func (*SyncRequest) MessageType() MessageType       { return TypeSyncRequest }
func (*SyncResponse) MessageType() MessageType      { return TypeSyncResponse }
func (*Ephemeral) MessageType() MessageType         { return TypeEphemeral }
func (*ErrorMessage) MessageType() MessageType      { return TypeError }
func (*Ping) MessageType() MessageType              { return TypePing }
func (*Pong) MessageType() MessageType              { return TypePong }
func (*Fragment) MessageType() MessageType          { return TypeFragment }

// tagged wraps a concrete message value with the "type" discriminator for
// encoding. Field order puts the tag first in the output.
type tagged struct {
	Type MessageType `json:"type"`
	Body any         `json:"-"`
}

// MarshalJSON merges the tag into the body object.
func (t tagged) MarshalJSON() ([]byte, error) {
	body, err := json.Marshal(t.Body)
	if err != nil {
		return nil, err
	}

	head := []byte(fmt.Sprintf(`{"type":%q`, t.Type))
	if len(body) <= 2 { // empty object
		return append(head, '}'), nil
	}

	head = append(head, ',')
	return append(head, body[1:]...), nil
}

// Encode serializes m as an internally tagged JSON object.
func Encode(m Message) ([]byte, error) {
	return json.Marshal(tagged{Type: m.MessageType(), Body: m})
}

// Decode parses an internally tagged JSON object into its concrete message
// type. It fails with [ErrMissingType] when the tag is absent,
// [ErrUnknownType] for an unrecognized tag, and [ErrMalformedMessage] for
// anything json cannot decode.
func Decode(data []byte) (Message, error) {
	var head struct {
		Type *MessageType `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, ErrMalformedMessage
	}
	if head.Type == nil {
		return nil, ErrMissingType
	}

	var m Message
	switch *head.Type {
	case TypeAuth:
		m = &Auth{}
	case TypeAuthOk:
		m = &AuthOk{}
	case TypeJoinRoom:
		m = &JoinRoom{}
	case TypeRoomJoined:
		m = &RoomJoined{}
	case TypeLeaveRoom:
		m = &LeaveRoom{}
	case TypeEncryptedUpdate:
		m = &EncryptedUpdate{}
	case TypeEncryptedSnapshot:
		m = &EncryptedSnapshot{}
	case TypeSyncRequest:
		m = &SyncRequest{}
	case TypeSyncResponse:
		m = &SyncResponse{}
	case TypeEphemeral:
		m = &Ephemeral{}
	case TypeError:
		m = &ErrorMessage{}
	case TypePing:
		m = &Ping{}
	case TypePong:
		m = &Pong{}
	case TypeFragment:
		m = &Fragment{}
	default:
		return nil, ErrUnknownType
	}

	if err := json.Unmarshal(data, m); err != nil {
		return nil, ErrMalformedMessage
	}

	return m, nil
}
