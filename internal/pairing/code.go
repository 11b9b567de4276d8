// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The Sakya Authors

package pairing

import (
	"encoding/base64"
	"encoding/json"

	qrcode "github.com/skip2/go-qrcode"
)

// Code is the transferable pairing code the existing device presents to the
// new one. It carries everything the new device needs to reach the relay
// and address its peer: no secrets, only public material.
type Code struct {
	// DeviceID is the id of the device that generated the code.
	DeviceID string `json:"device_id"`

	// PublicKey is the ephemeral X25519 public key of the pairing session.
	PublicKey []byte `json:"public_key"`

	// ServerURL is the relay base URL both devices must share.
	ServerURL string `json:"server_url"`
}

// Encode serializes the code as base64url-encoded JSON, suitable for
// embedding in a QR code or pasting by hand.
func (c Code) Encode() (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(data), nil
}

// QRPNG renders the encoded code as a PNG image of size x size pixels.
func (c Code) QRPNG(size int) ([]byte, error) {
	encoded, err := c.Encode()
	if err != nil {
		return nil, err
	}
	return qrcode.Encode(encoded, qrcode.Medium, size)
}

// ParseCode decodes a pairing code produced by [Code.Encode]. It fails
// with [ErrInvalidPairingCode] on undecodable input or when any field is
// missing.
func ParseCode(encoded string) (Code, error) {
	data, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return Code{}, ErrInvalidPairingCode
	}

	var c Code
	if err := json.Unmarshal(data, &c); err != nil {
		return Code{}, ErrInvalidPairingCode
	}

	if c.DeviceID == "" || len(c.PublicKey) == 0 || c.ServerURL == "" {
		return Code{}, ErrInvalidPairingCode
	}

	return c, nil
}
