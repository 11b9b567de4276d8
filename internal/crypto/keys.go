// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The Sakya Authors

package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
)

// hkdfInfoDocumentKey is the HKDF domain-separation prefix for document key
// derivation. Changing it invalidates every deterministically derived key.
const hkdfInfoDocumentKey = "sakya-document-key-v1"

// DocumentKey is the 256-bit symmetric key protecting one project's update
// and snapshot stream. It is opaque to the relay and held only by the
// account's authorized devices.
//
// DocumentKey deliberately implements neither fmt.Stringer nor a JSON
// marshaller: key bytes must be extracted explicitly via Bytes so that no
// logging or serialization path can leak them by accident. Call Destroy
// when the key is superseded.
type DocumentKey struct {
	bytes []byte
}

// NewDocumentKey generates a fresh random document key from the OS CSPRNG.
func NewDocumentKey() (*DocumentKey, error) {
	b := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, err
	}
	return &DocumentKey{bytes: b}, nil
}

// DeriveDocumentKey deterministically derives a document key from a master
// secret and a context string using HKDF-SHA256. The same (master, context)
// pair always yields the same key; any change to either input yields an
// unrelated key. The context string is bound into the HKDF info parameter
// together with a fixed protocol prefix for domain separation.
func DeriveDocumentKey(master []byte, context string) (*DocumentKey, error) {
	info := make([]byte, 0, len(hkdfInfoDocumentKey)+len(context))
	info = append(info, hkdfInfoDocumentKey...)
	info = append(info, context...)

	b := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, master, nil, info), b); err != nil {
		return nil, err
	}
	return &DocumentKey{bytes: b}, nil
}

// DocumentKeyFromBytes copies b into a new DocumentKey. The caller keeps
// ownership of b; destroying the returned key does not touch it.
func DocumentKeyFromBytes(b []byte) (*DocumentKey, error) {
	if len(b) != KeySize {
		return nil, ErrInvalidKeySize
	}
	cp := make([]byte, KeySize)
	copy(cp, b)
	return &DocumentKey{bytes: cp}, nil
}

// Bytes returns the raw key material, or nil after Destroy. The returned
// slice aliases the key's internal buffer and must not be retained past the
// key's lifetime.
func (k *DocumentKey) Bytes() []byte {
	return k.bytes
}

// Destroy overwrites the key bytes with zeros and detaches the buffer.
// Subsequent Bytes calls return nil.
func (k *DocumentKey) Destroy() {
	zero(k.bytes)
	k.bytes = nil
}

// zero overwrites b in place.
func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
