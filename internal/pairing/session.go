// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The Sakya Authors

// Package pairing implements the provisioning protocol that transfers
// account credentials and per-project document keys from an authenticated
// device to a newly paired one.
//
// Both participants create a single-use ephemeral X25519 keypair for the
// session. The existing device publishes its public key inside a pairing
// code; the new device answers with its own. The provisioning payload is
// encrypted under the derived shared secret with the account id as AAD, so
// a ciphertext substituted from a different account fails authentication.
// The envelope travels over whatever channel carried the code (QR scan,
// paste, the relay's ephemeral path) and is never persisted.
package pairing

import (
	"encoding/json"
	"time"

	"github.com/sakya-app/sakya/internal/crypto"
)

// DefaultValidity is how long a pairing session stays usable. A session
// with no completion inside the window is discarded.
const DefaultValidity = 5 * time.Minute

// ProjectKey pairs a project id with its raw document key bytes for
// transfer inside a provisioning payload.
type ProjectKey struct {
	ProjectID string `json:"project_id"`
	Key       []byte `json:"key"`
}

// ProvisioningPayload is the plaintext transferred to a newly paired
// device: the account identity, every project's document key, and a live
// session token so the new device can authenticate immediately.
type ProvisioningPayload struct {
	AccountID    string       `json:"account_id"`
	DocumentKeys []ProjectKey `json:"document_keys"`
	SessionToken string       `json:"session_token"`
}

// Session is one side of a pairing exchange. It owns a single-use
// ephemeral keypair and a validity deadline; sealing or opening after the
// deadline fails, and either operation consumes the keypair.
type Session struct {
	keys      *crypto.EphemeralKeyPair
	expiresAt time.Time
	now       func() time.Time
}

// NewSession creates a pairing session valid for the given duration
// (DefaultValidity if zero).
func NewSession(validity time.Duration) (*Session, error) {
	if validity == 0 {
		validity = DefaultValidity
	}

	keys, err := crypto.GenerateEphemeralKeyPair()
	if err != nil {
		return nil, err
	}

	return &Session{
		keys:      keys,
		expiresAt: time.Now().Add(validity),
		now:       time.Now,
	}, nil
}

// PublicKey returns the session's ephemeral public key for embedding in a
// pairing code or response.
func (s *Session) PublicKey() []byte {
	return s.keys.PublicKey()
}

// Code builds the pairing code advertising this session from the existing
// device's id and the relay URL.
func (s *Session) Code(deviceID, serverURL string) Code {
	return Code{
		DeviceID:  deviceID,
		PublicKey: s.keys.PublicKey(),
		ServerURL: serverURL,
	}
}

// SealProvisioning encrypts payload for the peer holding remotePublic.
// The serialized payload is sealed under the session's derived shared
// secret with the account id bytes as AAD. The session's keypair is
// consumed by this call.
func (s *Session) SealProvisioning(remotePublic []byte, payload ProvisioningPayload) (crypto.Envelope, error) {
	if s.now().After(s.expiresAt) {
		s.Discard()
		return crypto.Envelope{}, ErrSessionExpired
	}

	shared, err := s.keys.DeriveSharedSecret(remotePublic)
	if err != nil {
		return crypto.Envelope{}, err
	}
	defer zeroBytes(shared)

	plaintext, err := json.Marshal(payload)
	if err != nil {
		return crypto.Envelope{}, err
	}

	return crypto.Encrypt(shared, plaintext, []byte(payload.AccountID))
}

// OpenProvisioning decrypts an envelope sealed by the peer holding
// remotePublic. Decryption fails on any tampering, including a substituted
// account id in the AAD; as a final consistency check the payload's
// account id must equal the AAD it was bound to. The session's keypair is
// consumed by this call.
func (s *Session) OpenProvisioning(remotePublic []byte, env crypto.Envelope) (ProvisioningPayload, error) {
	if s.now().After(s.expiresAt) {
		s.Discard()
		return ProvisioningPayload{}, ErrSessionExpired
	}

	shared, err := s.keys.DeriveSharedSecret(remotePublic)
	if err != nil {
		return ProvisioningPayload{}, err
	}
	defer zeroBytes(shared)

	plaintext, err := crypto.Decrypt(shared, env)
	if err != nil {
		return ProvisioningPayload{}, err
	}

	var payload ProvisioningPayload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return ProvisioningPayload{}, err
	}

	if payload.AccountID != string(env.AAD) {
		return ProvisioningPayload{}, ErrAccountMismatch
	}

	return payload, nil
}

// Expired reports whether the session's validity window has passed.
func (s *Session) Expired() bool {
	return s.now().After(s.expiresAt)
}

// Discard destroys the session's ephemeral keypair. Idempotent; called
// automatically when the session is used past expiry.
func (s *Session) Discard() {
	s.keys.Destroy()
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
