package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakya-app/sakya/internal/crypto"
)

func TestEncode_CarriesTypeTag(t *testing.T) {
	data, err := Encode(&Auth{Token: "tok"})
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "auth", raw["type"])
	assert.Equal(t, "tok", raw["token"])
}

func TestEncode_EmptyBodyMessages(t *testing.T) {
	for _, m := range []Message{&Ping{}, &Pong{}} {
		data, err := Encode(m)
		require.NoError(t, err)

		decoded, err := Decode(data)
		require.NoError(t, err)
		assert.Equal(t, m.MessageType(), decoded.MessageType())
	}
}

func TestEncodeDecode_RoundTripAllTypes(t *testing.T) {
	env := crypto.Envelope{
		Nonce:      make([]byte, crypto.NonceSize),
		Ciphertext: []byte{1, 2, 3},
		AAD:        []byte("proj"),
	}

	messages := []Message{
		&Auth{Token: "session-token"},
		&AuthOk{ServerVersion: "1.4.0"},
		&JoinRoom{ProjectID: "p1"},
		&RoomJoined{ProjectID: "p1", ServerVersionVector: map[string]int64{"dev-a": 7}},
		&LeaveRoom{ProjectID: "p1"},
		&EncryptedUpdate{ProjectID: "p1", Envelope: env, Sequence: 42, DeviceID: "dev-a"},
		&EncryptedSnapshot{ProjectID: "p1", Envelope: env, SnapshotID: "snap-1"},
		&SyncRequest{ProjectID: "p1", SinceSequence: 10},
		&SyncResponse{
			ProjectID:      "p1",
			Updates:        []EncryptedUpdate{{ProjectID: "p1", Envelope: env, Sequence: 11, DeviceID: "dev-b"}},
			LatestSnapshot: &EncryptedSnapshot{ProjectID: "p1", Envelope: env, SnapshotID: "snap-1"},
		},
		&Ephemeral{ProjectID: "p1", Data: []byte("opaque provisioning bytes")},
		&ErrorMessage{Code: CodeUnauthorized, Message: "auth required"},
		&Fragment{MessageID: "m1", Index: 0, Total: 2, Data: []byte("half")},
	}

	for _, m := range messages {
		t.Run(string(m.MessageType()), func(t *testing.T) {
			data, err := Encode(m)
			require.NoError(t, err)

			decoded, err := Decode(data)
			require.NoError(t, err)
			assert.Equal(t, m, decoded)
		})
	}
}

func TestDecode_RejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		data string
		want error
	}{
		{"not json", `{{{`, ErrMalformedMessage},
		{"missing tag", `{"token":"x"}`, ErrMissingType},
		{"unknown tag", `{"type":"totally_new"}`, ErrUnknownType},
		{"wrong field type", `{"type":"sync_request","since_sequence":"nope"}`, ErrMalformedMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.data))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDecode_FieldNamesAreStable(t *testing.T) {
	// Field names are part of the protocol; a remote implementation decodes
	// exactly these strings.
	data := []byte(`{
		"type": "encrypted_update",
		"project_id": "p1",
		"device_id": "dev-a",
		"sequence": 3,
		"envelope": {"nonce": "AAAA", "ciphertext": "AQID", "aad": "cHJvag=="}
	}`)

	m, err := Decode(data)
	require.NoError(t, err)

	upd, ok := m.(*EncryptedUpdate)
	require.True(t, ok)
	assert.Equal(t, "p1", upd.ProjectID)
	assert.Equal(t, "dev-a", upd.DeviceID)
	assert.Equal(t, int64(3), upd.Sequence)
	assert.Equal(t, []byte{1, 2, 3}, upd.Envelope.Ciphertext)
}
