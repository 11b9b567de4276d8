// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The Sakya Authors

// Package crypto implements the cryptographic core of sakya: authenticated
// encryption of document updates, key derivation and exchange, device
// signatures, and the tamper-evident hash chain.
//
// All parameters are fixed for wire interoperability:
//   - AEAD:        XChaCha20-Poly1305, 256-bit key, 192-bit random nonce
//   - KDF:         HKDF-SHA256
//   - Exchange:    X25519
//   - Signatures:  Ed25519
//   - Hash chain:  BLAKE2b-256
//
// Key material never leaves this package in the clear except through
// explicit Bytes accessors, and secret-holding types implement Destroy to
// zero their buffers in place.
package crypto

import (
	"crypto/rand"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

// KeySize is the size in bytes of every symmetric key in the system:
// document keys, wrapping keys derived from key exchange, and the master
// secret input to derivation.
const KeySize = chacha20poly1305.KeySize

// NonceSize is the XChaCha20-Poly1305 nonce size (24 bytes). The extended
// nonce makes random nonces statistically safe at realistic volumes, so no
// counter state needs to be synchronized between devices.
const NonceSize = chacha20poly1305.NonceSizeX

// Envelope is the unit of encrypted data exchanged through the relay and
// persisted by the blob store. The AAD field is authenticated but not
// encrypted: any mutation of Nonce, Ciphertext, or AAD causes decryption
// to fail.
//
// Byte slices marshal to base64 strings, which keeps the envelope readable
// inside the JSON wire protocol.
type Envelope struct {
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
	AAD        []byte `json:"aad,omitempty"`
}

// Encrypt seals plaintext under key with XChaCha20-Poly1305, binding aad
// into the authentication tag. A fresh random 24-byte nonce is drawn from
// the OS CSPRNG on every call, so encrypting identical inputs twice yields
// unlinkable envelopes.
//
// key must be exactly [KeySize] bytes; aad may be nil.
func Encrypt(key, plaintext, aad []byte) (Envelope, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return Envelope{}, ErrInvalidKeySize
	}

	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return Envelope{}, err
	}

	return Envelope{
		Nonce:      nonce,
		Ciphertext: aead.Seal(nil, nonce, plaintext, aad),
		AAD:        aad,
	}, nil
}

// Decrypt opens env with key and returns the plaintext. It fails with
// [ErrDecryptionFailed] on a wrong key, a tampered ciphertext or AAD, or a
// nonce of the wrong length. Partial output is never returned.
func Decrypt(key []byte, env Envelope) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, ErrInvalidKeySize
	}

	if len(env.Nonce) != NonceSize {
		return nil, ErrDecryptionFailed
	}

	plaintext, err := aead.Open(nil, env.Nonce, env.Ciphertext, env.AAD)
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	return plaintext, nil
}
