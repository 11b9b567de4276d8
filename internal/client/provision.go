// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The Sakya Authors

package client

import (
	"encoding/json"
	"sync"

	"github.com/sakya-app/sakya/internal/crypto"
	"github.com/sakya-app/sakya/internal/logger"
	"github.com/sakya-app/sakya/internal/pairing"
	"github.com/sakya-app/sakya/internal/rotation"
)

// Ephemeral frame kinds understood by the provisioner. Other kinds pass
// through to the application's ephemeral handler untouched.
const (
	frameKindHello    = "hello"
	frameKindRotation = "rotation"
)

// provisionFrame is the JSON shape of provisioner traffic on the relay's
// ephemeral channel. Hello frames carry the sender's long-lived exchange
// public key; rotation frames carry one wrapped key set per remaining
// device.
type provisionFrame struct {
	Kind      string                    `json:"kind"`
	DeviceID  string                    `json:"device_id"`
	PublicKey []byte                    `json:"public_key,omitempty"`
	Envelopes []rotation.DeviceEnvelope `json:"envelopes,omitempty"`
}

// EphemeralSender pushes opaque bytes through a project room without
// persistence. *Syncer satisfies it.
type EphemeralSender interface {
	SendEphemeral(projectID string, data []byte) error
}

// KeyInstallFunc is called with the fresh key set recovered from a
// rotation envelope addressed to this device. The caller installs the keys
// into its engine and persists them.
type KeyInstallFunc func(keys []pairing.ProjectKey)

// Provisioner runs the device-to-device side channel on top of the relay's
// ephemeral path: devices announce their exchange public keys to each room
// they join, and key rotations fan the freshly wrapped key sets out to
// every announced peer.
//
// It owns the engine's ephemeral and room-join hooks once attached.
type Provisioner struct {
	deviceID string
	exchange *crypto.ExchangeKeyPair
	sender   EphemeralSender

	mu      sync.Mutex
	roster  map[string][]byte
	greeted map[string]bool

	onKeys KeyInstallFunc
	logger *logger.Logger
}

// NewProvisioner builds a provisioner for the device owning exchange.
func NewProvisioner(deviceID string, exchange *crypto.ExchangeKeyPair, sender EphemeralSender, log *logger.Logger) *Provisioner {
	return &Provisioner{
		deviceID: deviceID,
		exchange: exchange,
		sender:   sender,
		roster:   make(map[string][]byte),
		greeted:  make(map[string]bool),
		logger:   log,
	}
}

// OnRotatedKeys registers the callback invoked when a peer's rotation
// reaches this device.
func (p *Provisioner) OnRotatedKeys(f KeyInstallFunc) { p.onKeys = f }

// Attach hooks the provisioner into the engine: it announces on every room
// join and consumes the ephemeral stream.
func (p *Provisioner) Attach(engine *Engine) {
	engine.OnRoomJoined(p.Announce)
	engine.OnEphemeral(p.HandleEphemeral)
}

// Announce broadcasts this device's exchange public key into the project
// room so peers can address rotation envelopes to it.
func (p *Provisioner) Announce(projectID string) {
	frame := provisionFrame{
		Kind:      frameKindHello,
		DeviceID:  p.deviceID,
		PublicKey: p.exchange.PublicKey(),
	}
	if err := p.send(projectID, frame); err != nil {
		p.logger.Err(err).Str("project_id", projectID).Msg("roster announce failed")
	}
}

// HandleEphemeral consumes one ephemeral payload. Frames from this device
// and payloads that do not parse as provisioner frames are ignored.
func (p *Provisioner) HandleEphemeral(projectID string, data []byte) {
	var frame provisionFrame
	if err := json.Unmarshal(data, &frame); err != nil || frame.Kind == "" {
		return
	}
	if frame.DeviceID == p.deviceID {
		return
	}

	switch frame.Kind {
	case frameKindHello:
		p.handleHello(projectID, frame)
	case frameKindRotation:
		p.handleRotation(projectID, frame)
	}
}

// handleHello records the peer in the roster and answers with this
// device's own hello exactly once per peer, so two devices that join in
// either order both end up with a complete roster.
func (p *Provisioner) handleHello(projectID string, frame provisionFrame) {
	if len(frame.PublicKey) == 0 {
		return
	}

	p.mu.Lock()
	p.roster[frame.DeviceID] = append([]byte(nil), frame.PublicKey...)
	answered := p.greeted[frame.DeviceID]
	p.greeted[frame.DeviceID] = true
	p.mu.Unlock()

	if !answered {
		p.Announce(projectID)
	}
}

func (p *Provisioner) handleRotation(projectID string, frame provisionFrame) {
	for _, env := range frame.Envelopes {
		if env.DeviceID != p.deviceID {
			continue
		}

		keys, err := rotation.Unwrap(p.exchange, env)
		if err != nil {
			p.logger.Err(err).Str("project_id", projectID).
				Str("from_device", frame.DeviceID).Msg("rotation unwrap failed")
			return
		}

		p.logger.Info().Str("from_device", frame.DeviceID).
			Int("projects", len(keys)).Msg("rotated keys received")
		if p.onKeys != nil {
			p.onKeys(keys)
		}
		return
	}
}

// Roster returns the announced peers as rotation targets, excluding this
// device.
func (p *Provisioner) Roster() []rotation.Device {
	p.mu.Lock()
	defer p.mu.Unlock()

	devices := make([]rotation.Device, 0, len(p.roster))
	for id, key := range p.roster {
		devices = append(devices, rotation.Device{
			DeviceID:  id,
			PublicKey: append([]byte(nil), key...),
		})
	}
	return devices
}

// Forget drops a peer from the roster, typically after its device was
// removed from the account.
func (p *Provisioner) Forget(deviceID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.roster, deviceID)
	delete(p.greeted, deviceID)
}

// Rotate mints fresh document keys for the given projects, broadcasts the
// wrapped key sets to every rostered peer through each rotated project's
// room, and returns the fresh keys for local adoption. Peers absent from
// the roster receive nothing and are locked out of future content.
func (p *Provisioner) Rotate(projectIDs []string) ([]pairing.ProjectKey, error) {
	result, err := rotation.Rotate(projectIDs, p.Roster())
	if err != nil {
		return nil, err
	}

	if len(result.DeviceEnvelopes) > 0 {
		frame := provisionFrame{
			Kind:      frameKindRotation,
			DeviceID:  p.deviceID,
			Envelopes: result.DeviceEnvelopes,
		}
		for _, projectID := range projectIDs {
			if err := p.send(projectID, frame); err != nil {
				return nil, err
			}
		}
	}

	return result.RotatedKeys, nil
}

func (p *Provisioner) send(projectID string, frame provisionFrame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	return p.sender.SendEphemeral(projectID, data)
}
