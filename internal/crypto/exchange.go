// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The Sakya Authors

package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

// hkdfInfoKeyExchange is the HKDF info string applied to every raw X25519
// shared secret before it is used as an AEAD key. Both sides of an exchange
// must use the same string or their derived keys diverge.
const hkdfInfoKeyExchange = "sakya-key-exchange-v1"

// EphemeralKeyPair is a single-use X25519 keypair created for one pairing
// or rotation session. After the first successful DeriveSharedSecret the
// secret scalar is zeroed and the keypair refuses further use.
type EphemeralKeyPair struct {
	secret []byte
	public []byte
}

// GenerateEphemeralKeyPair draws a fresh X25519 scalar from the OS CSPRNG
// and computes its public point.
func GenerateEphemeralKeyPair() (*EphemeralKeyPair, error) {
	secret := make([]byte, curve25519.ScalarSize)
	if _, err := io.ReadFull(rand.Reader, secret); err != nil {
		return nil, err
	}

	public, err := curve25519.X25519(secret, curve25519.Basepoint)
	if err != nil {
		zero(secret)
		return nil, err
	}

	return &EphemeralKeyPair{secret: secret, public: public}, nil
}

// PublicKey returns the 32-byte public point. Safe to share; it is what the
// pairing code carries.
func (kp *EphemeralKeyPair) PublicKey() []byte {
	return kp.public
}

// DeriveSharedSecret performs X25519 with the remote public key and expands
// the raw ECDH output through HKDF-SHA256 with a fixed protocol info
// string. The result is a 32-byte key suitable for [Encrypt]/[Decrypt] and
// is identical on both sides: dh(a, B) == dh(b, A).
//
// The raw ECDH output is never returned. The keypair is consumed by this
// call: the secret scalar is zeroed and a second invocation fails with
// [ErrKeyConsumed].
func (kp *EphemeralKeyPair) DeriveSharedSecret(remotePublic []byte) ([]byte, error) {
	if kp.secret == nil {
		return nil, ErrKeyConsumed
	}

	shared, err := deriveShared(kp.secret, remotePublic)
	if err != nil {
		return nil, err
	}

	kp.Destroy()
	return shared, nil
}

// Destroy zeroes the secret scalar. Idempotent.
func (kp *EphemeralKeyPair) Destroy() {
	zero(kp.secret)
	kp.secret = nil
}

// ExchangeKeyPair is a device's long-lived X25519 key-agreement keypair.
// Unlike [EphemeralKeyPair] it survives multiple agreements: key rotation
// wraps fresh document keys against this public key, and the device unwraps
// them with the matching secret, possibly many times over its lifetime.
type ExchangeKeyPair struct {
	secret []byte
	public []byte
}

// GenerateExchangeKeyPair draws a long-lived X25519 keypair from the OS
// CSPRNG.
func GenerateExchangeKeyPair() (*ExchangeKeyPair, error) {
	secret := make([]byte, curve25519.ScalarSize)
	if _, err := io.ReadFull(rand.Reader, secret); err != nil {
		return nil, err
	}

	public, err := curve25519.X25519(secret, curve25519.Basepoint)
	if err != nil {
		zero(secret)
		return nil, err
	}

	return &ExchangeKeyPair{secret: secret, public: public}, nil
}

// ExchangeKeyPairFromSecret reconstructs a keypair from a persisted secret
// scalar. The caller keeps ownership of secret.
func ExchangeKeyPairFromSecret(secret []byte) (*ExchangeKeyPair, error) {
	if len(secret) != curve25519.ScalarSize {
		return nil, ErrInvalidKeySize
	}

	cp := make([]byte, curve25519.ScalarSize)
	copy(cp, secret)

	public, err := curve25519.X25519(cp, curve25519.Basepoint)
	if err != nil {
		zero(cp)
		return nil, err
	}

	return &ExchangeKeyPair{secret: cp, public: public}, nil
}

// PublicKey returns the 32-byte public point.
func (kp *ExchangeKeyPair) PublicKey() []byte {
	return kp.public
}

// DeriveSharedSecret performs X25519 with the remote public key and expands
// the result through HKDF-SHA256 exactly like
// [EphemeralKeyPair.DeriveSharedSecret], but without consuming the keypair.
func (kp *ExchangeKeyPair) DeriveSharedSecret(remotePublic []byte) ([]byte, error) {
	if kp.secret == nil {
		return nil, ErrKeyDestroyed
	}
	return deriveShared(kp.secret, remotePublic)
}

// Destroy zeroes the secret scalar. Idempotent.
func (kp *ExchangeKeyPair) Destroy() {
	zero(kp.secret)
	kp.secret = nil
}

// deriveShared is the common X25519 + HKDF-SHA256 path shared by the
// ephemeral and long-lived keypair types.
func deriveShared(secret, remotePublic []byte) ([]byte, error) {
	if len(remotePublic) != curve25519.PointSize {
		return nil, ErrInvalidPublicKey
	}

	raw, err := curve25519.X25519(secret, remotePublic)
	if err != nil {
		return nil, ErrInvalidPublicKey
	}

	shared := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, raw, nil, []byte(hkdfInfoKeyExchange)), shared); err != nil {
		return nil, err
	}

	zero(raw)
	return shared, nil
}
