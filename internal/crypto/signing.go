// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The Sakya Authors

package crypto

import (
	"crypto/ed25519"
	"crypto/rand"

	"github.com/google/uuid"
)

// DeviceKeyPair is the long-lived Ed25519 identity of one device install.
// The public key is registered with the identity layer; the private key
// never leaves the device.
type DeviceKeyPair struct {
	DeviceID   string
	PublicKey  ed25519.PublicKey
	privateKey ed25519.PrivateKey
}

// GenerateDeviceKeyPair creates a fresh Ed25519 keypair bound to a random
// device identifier.
func GenerateDeviceKeyPair() (*DeviceKeyPair, error) {
	public, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}

	return &DeviceKeyPair{
		DeviceID:   uuid.NewString(),
		PublicKey:  public,
		privateKey: private,
	}, nil
}

// Sign produces a SignedMessage over payload. The payload and the signer's
// public key travel with the signature so that verification needs no
// external state.
func (kp *DeviceKeyPair) Sign(payload []byte) SignedMessage {
	return SignedMessage{
		Payload:         payload,
		Signature:       ed25519.Sign(kp.privateKey, payload),
		SignerPublicKey: kp.PublicKey,
	}
}

// SignedMessage carries a payload, its Ed25519 signature, and the public
// key that produced it. Verification is a pure function of these three
// fields.
type SignedMessage struct {
	Payload         []byte `json:"payload"`
	Signature       []byte `json:"signature"`
	SignerPublicKey []byte `json:"signer_public_key"`
}

// Verify checks the signature over the payload against the embedded public
// key. Altering any of the three fields after signing makes it fail with
// [ErrVerificationFailed].
func (m SignedMessage) Verify() error {
	if len(m.SignerPublicKey) != ed25519.PublicKeySize {
		return ErrInvalidPublicKey
	}
	if !ed25519.Verify(ed25519.PublicKey(m.SignerPublicKey), m.Payload, m.Signature) {
		return ErrVerificationFailed
	}
	return nil
}
