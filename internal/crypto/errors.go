package crypto

import "errors"

// Sentinel errors returned by the cryptographic primitives. Callers should
// use [errors.Is] to match against these values.
var (
	// ErrDecryptionFailed is returned when an AEAD open operation fails for
	// any reason: wrong key, tampered ciphertext, tampered AAD, or a
	// malformed nonce. The causes are deliberately not distinguished.
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrVerificationFailed is returned when an Ed25519 signature does not
	// verify against the embedded signer public key.
	ErrVerificationFailed = errors.New("signature verification failed")

	// ErrInvalidKeySize is returned when key material of the wrong length is
	// supplied where a 256-bit key is required.
	ErrInvalidKeySize = errors.New("invalid key size")

	// ErrInvalidPublicKey is returned when a peer public key has the wrong
	// length for the expected curve or signature scheme.
	ErrInvalidPublicKey = errors.New("invalid public key")

	// ErrKeyConsumed is returned when an ephemeral keypair is used for a
	// second key agreement. Ephemeral keys are strictly single-use.
	ErrKeyConsumed = errors.New("ephemeral keypair already consumed")

	// ErrKeyDestroyed is returned when key material is used after its
	// backing bytes have been zeroed.
	ErrKeyDestroyed = errors.New("key material destroyed")
)
