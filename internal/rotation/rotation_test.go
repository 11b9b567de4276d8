package rotation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakya-app/sakya/internal/crypto"
)

func TestRotate_FreshKeyPerProject(t *testing.T) {
	result, err := Rotate([]string{"p1", "p2", "p3"}, nil)
	require.NoError(t, err)

	require.Len(t, result.RotatedKeys, 3)
	seen := make(map[string]bool)
	for _, pk := range result.RotatedKeys {
		assert.Len(t, pk.Key, crypto.KeySize)
		assert.False(t, seen[string(pk.Key)], "rotated keys must be distinct")
		seen[string(pk.Key)] = true
	}
	assert.Empty(t, result.DeviceEnvelopes, "zero remaining devices yields no envelopes")
}

func TestRotate_RemainingDevicesCanUnwrap(t *testing.T) {
	deviceA, err := crypto.GenerateExchangeKeyPair()
	require.NoError(t, err)
	deviceB, err := crypto.GenerateExchangeKeyPair()
	require.NoError(t, err)

	result, err := Rotate([]string{"p1", "p2"}, []Device{
		{DeviceID: "dev-a", PublicKey: deviceA.PublicKey()},
		{DeviceID: "dev-b", PublicKey: deviceB.PublicKey()},
	})
	require.NoError(t, err)
	require.Len(t, result.DeviceEnvelopes, 2)

	keysA, err := Unwrap(deviceA, result.DeviceEnvelopes[0])
	require.NoError(t, err)
	keysB, err := Unwrap(deviceB, result.DeviceEnvelopes[1])
	require.NoError(t, err)

	assert.Equal(t, result.RotatedKeys, keysA)
	assert.Equal(t, result.RotatedKeys, keysB)
}

func TestRotate_ExcludedDeviceCannotDecrypt(t *testing.T) {
	remaining, err := crypto.GenerateExchangeKeyPair()
	require.NoError(t, err)
	removed, err := crypto.GenerateExchangeKeyPair()
	require.NoError(t, err)

	result, err := Rotate([]string{"p1"}, []Device{
		{DeviceID: "dev-remaining", PublicKey: remaining.PublicKey()},
	})
	require.NoError(t, err)
	require.Len(t, result.DeviceEnvelopes, 1)

	// The removed device's keypair derives a different shared secret for
	// every envelope it can see; decryption must fail.
	_, err = Unwrap(removed, result.DeviceEnvelopes[0])
	assert.ErrorIs(t, err, crypto.ErrDecryptionFailed)
}

func TestUnwrap_WrongDeviceAADFails(t *testing.T) {
	device, err := crypto.GenerateExchangeKeyPair()
	require.NoError(t, err)

	result, err := Rotate([]string{"p1"}, []Device{
		{DeviceID: "dev-a", PublicKey: device.PublicKey()},
	})
	require.NoError(t, err)

	// Rebinding the envelope to a different device id breaks the AAD.
	env := result.DeviceEnvelopes[0]
	env.Envelope.AAD = []byte("dev-b")

	_, err = Unwrap(device, env)
	assert.ErrorIs(t, err, crypto.ErrDecryptionFailed)
}

func TestRotate_EnvelopesDifferPerDevice(t *testing.T) {
	deviceA, _ := crypto.GenerateExchangeKeyPair()
	deviceB, _ := crypto.GenerateExchangeKeyPair()

	result, err := Rotate([]string{"p1"}, []Device{
		{DeviceID: "dev-a", PublicKey: deviceA.PublicKey()},
		{DeviceID: "dev-b", PublicKey: deviceB.PublicKey()},
	})
	require.NoError(t, err)
	require.Len(t, result.DeviceEnvelopes, 2)

	a, b := result.DeviceEnvelopes[0], result.DeviceEnvelopes[1]
	assert.NotEqual(t, a.SenderPublicKey, b.SenderPublicKey, "each device gets a fresh ephemeral key")
	assert.NotEqual(t, a.Envelope.Ciphertext, b.Envelope.Ciphertext)
}
