// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The Sakya Authors

package client

import (
	"fmt"
	"sync"

	"github.com/sakya-app/sakya/internal/crypto"
	"github.com/sakya-app/sakya/internal/logger"
	"github.com/sakya-app/sakya/internal/protocol"
)

// projectState is the sync state of one enabled project.
type projectState struct {
	key *crypto.DocumentKey

	// nextSequence numbers this device's own outgoing updates.
	nextSequence int64

	// maxSeen is the highest persisted sequence observed across all
	// devices; it becomes since_sequence on the next catch-up request.
	maxSeen int64

	// applied tracks the highest applied sequence per remote device, so
	// replayed deliveries are dropped without touching the document.
	applied map[string]int64

	// proofs carries one tamper-evident chain per device stream, advanced
	// over each accepted ciphertext in sequence order. Replicas that saw
	// the same stream hold the same proof.
	proofs map[string]*crypto.HashChain
}

func (s *projectState) chain(deviceID string) *crypto.HashChain {
	c, ok := s.proofs[deviceID]
	if !ok {
		c = crypto.NewHashChain()
		s.proofs[deviceID] = c
	}
	return c
}

// UpdateHandler receives decrypted document updates in arrival order.
type UpdateHandler func(projectID, deviceID string, sequence int64, plaintext []byte)

// SnapshotHandler receives decrypted document snapshots.
type SnapshotHandler func(projectID, snapshotID string, plaintext []byte)

// EphemeralHandler receives transient room payloads, such as pairing
// provisioning envelopes.
type EphemeralHandler func(projectID string, data []byte)

// JoinedHandler fires after the relay confirms a room join.
type JoinedHandler func(projectID string)

// Engine holds the per-project encryption and ordering state of one
// device. It is transport-agnostic; [Syncer] moves its messages.
//
// Envelopes produced by the engine authenticate the project id as
// associated data, so an envelope replayed into a different project's room
// fails to decrypt.
type Engine struct {
	deviceID string

	mu       sync.Mutex
	projects map[string]*projectState

	onUpdate    UpdateHandler
	onSnapshot  SnapshotHandler
	onEphemeral EphemeralHandler
	onJoined    JoinedHandler

	logger *logger.Logger
}

// NewEngine constructs an engine for the given device.
func NewEngine(deviceID string, log *logger.Logger) *Engine {
	return &Engine{
		deviceID: deviceID,
		projects: make(map[string]*projectState),
		logger:   log,
	}
}

// OnUpdate registers the handler for decrypted incoming updates.
func (e *Engine) OnUpdate(h UpdateHandler) { e.onUpdate = h }

// OnSnapshot registers the handler for decrypted incoming snapshots.
func (e *Engine) OnSnapshot(h SnapshotHandler) { e.onSnapshot = h }

// OnEphemeral registers the handler for transient room payloads.
func (e *Engine) OnEphemeral(h EphemeralHandler) { e.onEphemeral = h }

// OnRoomJoined registers the handler fired on every confirmed room join.
func (e *Engine) OnRoomJoined(h JoinedHandler) { e.onJoined = h }

// EnableProject starts syncing projectID with the given document key,
// taking ownership of it. lastSequence seeds the device's own update
// counter, so re-enabling after a restart does not reuse sequence numbers.
func (e *Engine) EnableProject(projectID string, key *crypto.DocumentKey, lastSequence int64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.projects[projectID] = &projectState{
		key:          key,
		nextSequence: lastSequence,
		applied:      make(map[string]int64),
		proofs:       make(map[string]*crypto.HashChain),
	}
}

// DisableProject stops syncing projectID and destroys its key material.
// Unknown project ids are ignored.
func (e *Engine) DisableProject(projectID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if state, ok := e.projects[projectID]; ok {
		state.key.Destroy()
		delete(e.projects, projectID)
	}
}

// SeedSequence raises the device's own update counter so the next
// outgoing update is numbered after lastSequence. It never lowers the
// counter. A restarted client has lost its counter, and reusing a
// sequence would collide with the idempotent server store and with peers'
// replay suppression; the relay's record of this device on room join is
// the floor to resume from.
func (e *Engine) SeedSequence(projectID string, lastSequence int64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if state, ok := e.projects[projectID]; ok && lastSequence > state.nextSequence {
		state.nextSequence = lastSequence
	}
}

// ReplaceProjectKey swaps the project's document key after a rotation,
// destroying the superseded key. Sequence and watermark state is kept, so
// the device keeps numbering its updates where it left off. Returns false
// when the project is not enabled.
func (e *Engine) ReplaceProjectKey(projectID string, key *crypto.DocumentKey) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	state, ok := e.projects[projectID]
	if !ok {
		return false
	}
	state.key.Destroy()
	state.key = key
	return true
}

// EnabledProjects returns the ids of all currently enabled projects.
func (e *Engine) EnabledProjects() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	ids := make([]string, 0, len(e.projects))
	for id := range e.projects {
		ids = append(ids, id)
	}
	return ids
}

// MakeUpdate encrypts plaintext as this device's next update of the
// project.
func (e *Engine) MakeUpdate(projectID string, plaintext []byte) (*protocol.EncryptedUpdate, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	state, ok := e.projects[projectID]
	if !ok {
		return nil, ErrProjectDisabled
	}

	env, err := crypto.Encrypt(state.key.Bytes(), plaintext, []byte(projectID))
	if err != nil {
		return nil, fmt.Errorf("update encryption failed: %w", err)
	}

	state.nextSequence++
	state.chain(e.deviceID).Append(env.Ciphertext)
	return &protocol.EncryptedUpdate{
		ProjectID: projectID,
		Envelope:  env,
		Sequence:  state.nextSequence,
		DeviceID:  e.deviceID,
	}, nil
}

// ApplyUpdate decrypts an incoming update and advances the project's
// watermarks. The returned bool is false when the update was skipped: the
// device's own update echoed back, or one already applied.
func (e *Engine) ApplyUpdate(m *protocol.EncryptedUpdate) ([]byte, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	state, ok := e.projects[m.ProjectID]
	if !ok {
		return nil, false, ErrProjectDisabled
	}

	if m.Sequence > state.maxSeen {
		state.maxSeen = m.Sequence
	}

	if m.DeviceID == e.deviceID {
		return nil, false, nil
	}
	if m.Sequence <= state.applied[m.DeviceID] {
		return nil, false, nil
	}

	if string(m.Envelope.AAD) != m.ProjectID {
		return nil, false, ErrEnvelopeMismatch
	}

	plaintext, err := crypto.Decrypt(state.key.Bytes(), m.Envelope)
	if err != nil {
		return nil, false, fmt.Errorf("update decryption failed: %w", err)
	}

	state.applied[m.DeviceID] = m.Sequence
	state.chain(m.DeviceID).Append(m.Envelope.Ciphertext)
	return plaintext, true, nil
}

// MakeSnapshot encrypts plaintext as a full snapshot of the project.
func (e *Engine) MakeSnapshot(projectID, snapshotID string, plaintext []byte) (*protocol.EncryptedSnapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	state, ok := e.projects[projectID]
	if !ok {
		return nil, ErrProjectDisabled
	}

	env, err := crypto.Encrypt(state.key.Bytes(), plaintext, []byte(projectID))
	if err != nil {
		return nil, fmt.Errorf("snapshot encryption failed: %w", err)
	}

	return &protocol.EncryptedSnapshot{
		ProjectID:  projectID,
		Envelope:   env,
		SnapshotID: snapshotID,
	}, nil
}

// ApplySnapshot decrypts an incoming snapshot.
func (e *Engine) ApplySnapshot(m *protocol.EncryptedSnapshot) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	state, ok := e.projects[m.ProjectID]
	if !ok {
		return nil, ErrProjectDisabled
	}

	if string(m.Envelope.AAD) != m.ProjectID {
		return nil, ErrEnvelopeMismatch
	}

	plaintext, err := crypto.Decrypt(state.key.Bytes(), m.Envelope)
	if err != nil {
		return nil, fmt.Errorf("snapshot decryption failed: %w", err)
	}
	return plaintext, nil
}

// StreamProof returns the running integrity proof of one device's update
// stream within the project. Two replicas that accepted the same stream
// since enabling the project report equal proofs; a relay that dropped,
// reordered, or substituted a ciphertext leaves them diverged. The proof
// starts at genesis each time the project is enabled.
func (e *Engine) StreamProof(projectID, deviceID string) ([crypto.ProofSize]byte, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	state, ok := e.projects[projectID]
	if !ok {
		return [crypto.ProofSize]byte{}, false
	}
	c, ok := state.proofs[deviceID]
	if !ok {
		return crypto.GenesisProof(), true
	}
	return c.Proof(), true
}

// SinceSequence returns the catch-up watermark of the project: the highest
// sequence observed so far.
func (e *Engine) SinceSequence(projectID string) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	if state, ok := e.projects[projectID]; ok {
		return state.maxSeen
	}
	return 0
}

// NeedsCatchUp reports whether the server's version vector is ahead of
// what this device has applied.
func (e *Engine) NeedsCatchUp(projectID string, serverVector map[string]int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	state, ok := e.projects[projectID]
	if !ok {
		return false
	}

	for deviceID, sequence := range serverVector {
		if deviceID == e.deviceID {
			continue
		}
		if sequence > state.applied[deviceID] {
			return true
		}
	}
	return false
}
