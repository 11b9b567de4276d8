// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The Sakya Authors

// Package rotation regenerates document keys when a device is removed from
// an account and wraps the fresh keys individually for every remaining
// device.
//
// Old keys are superseded, never mutated: the removed device keeps its copy
// of the old key, but all future updates use the new one, so that copy is
// useless for future content. A device absent from the remaining set cannot
// derive any wrapping key and therefore cannot decrypt any envelope.
package rotation

import (
	"encoding/json"

	"github.com/sakya-app/sakya/internal/crypto"
	"github.com/sakya-app/sakya/internal/pairing"
)

// Device identifies one remaining device by its id and long-lived X25519
// key-agreement public key.
type Device struct {
	DeviceID  string
	PublicKey []byte
}

// DeviceEnvelope is the wrapped key set for one device. SenderPublicKey is
// the ephemeral public key the device combines with its long-lived secret
// to derive the unwrapping key.
type DeviceEnvelope struct {
	DeviceID        string          `json:"device_id"`
	SenderPublicKey []byte          `json:"sender_public_key"`
	Envelope        crypto.Envelope `json:"envelope"`
}

// Result is the outcome of one rotation: the fresh keys to adopt locally
// and the per-device envelopes to distribute. With zero remaining devices
// the rotated keys are still produced (for local bookkeeping) and the
// envelope list is empty.
type Result struct {
	RotatedKeys     []pairing.ProjectKey
	DeviceEnvelopes []DeviceEnvelope
}

// Rotate generates one fresh random document key per project in projectIDs
// and wraps the full serialized key set once per device in remaining.
//
// Each device gets its own fresh ephemeral keypair and thus its own
// wrapping key; the device id is bound in as AAD so an envelope delivered
// to the wrong device fails authentication rather than silently installing
// another device's copy.
func Rotate(projectIDs []string, remaining []Device) (Result, error) {
	rotated := make([]pairing.ProjectKey, 0, len(projectIDs))
	for _, projectID := range projectIDs {
		key, err := crypto.NewDocumentKey()
		if err != nil {
			return Result{}, err
		}
		rotated = append(rotated, pairing.ProjectKey{
			ProjectID: projectID,
			Key:       append([]byte(nil), key.Bytes()...),
		})
		key.Destroy()
	}

	// The same plaintext is wrapped for every device; only the wrapping
	// key and AAD differ.
	plaintext, err := json.Marshal(rotated)
	if err != nil {
		return Result{}, err
	}

	envelopes := make([]DeviceEnvelope, 0, len(remaining))
	for _, device := range remaining {
		eph, err := crypto.GenerateEphemeralKeyPair()
		if err != nil {
			return Result{}, err
		}
		senderPublic := append([]byte(nil), eph.PublicKey()...)

		shared, err := eph.DeriveSharedSecret(device.PublicKey)
		if err != nil {
			return Result{}, err
		}

		env, err := crypto.Encrypt(shared, plaintext, []byte(device.DeviceID))
		zero(shared)
		if err != nil {
			return Result{}, err
		}

		envelopes = append(envelopes, DeviceEnvelope{
			DeviceID:        device.DeviceID,
			SenderPublicKey: senderPublic,
			Envelope:        env,
		})
	}

	return Result{RotatedKeys: rotated, DeviceEnvelopes: envelopes}, nil
}

// Unwrap recovers the rotated key set from a device envelope using the
// device's long-lived exchange keypair. The device id must match the AAD
// the envelope was bound to.
func Unwrap(keys *crypto.ExchangeKeyPair, env DeviceEnvelope) ([]pairing.ProjectKey, error) {
	shared, err := keys.DeriveSharedSecret(env.SenderPublicKey)
	if err != nil {
		return nil, err
	}
	defer zero(shared)

	plaintext, err := crypto.Decrypt(shared, env.Envelope)
	if err != nil {
		return nil, err
	}

	var rotated []pairing.ProjectKey
	if err := json.Unmarshal(plaintext, &rotated); err != nil {
		return nil, err
	}

	return rotated, nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
