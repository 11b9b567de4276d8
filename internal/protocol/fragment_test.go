package protocol

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit_SmallMessageSingleFragment(t *testing.T) {
	payload := []byte("small")
	frags := Split(payload)

	require.Len(t, frags, 1)
	assert.Equal(t, 1, frags[0].Total)
	assert.Equal(t, 0, frags[0].Index)
	assert.Equal(t, payload, frags[0].Data)
}

func TestSplit_LargeMessageOrderedFragments(t *testing.T) {
	payload := bytes.Repeat([]byte{0xAB}, FragmentThreshold*2+100)
	frags := Split(payload)

	require.Len(t, frags, 3)
	for i, f := range frags {
		assert.Equal(t, i, f.Index)
		assert.Equal(t, 3, f.Total)
		assert.Equal(t, frags[0].MessageID, f.MessageID)
	}
	assert.Len(t, frags[2].Data, 100)
}

func TestReassembler_InOrderRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte{0x5A}, FragmentThreshold+10)
	frags := Split(payload)
	r := NewReassembler()

	for i, f := range frags {
		out, done, err := r.Add(f)
		require.NoError(t, err)
		if i < len(frags)-1 {
			assert.False(t, done)
			assert.Nil(t, out)
		} else {
			assert.True(t, done)
			assert.Equal(t, payload, out)
		}
	}
	assert.Zero(t, r.PendingCount())
}

func TestReassembler_OutOfOrderDelivery(t *testing.T) {
	payload := bytes.Repeat([]byte{0x11}, FragmentThreshold*3)
	frags := Split(payload)
	r := NewReassembler()

	order := []int{2, 0, 1}
	var out []byte
	var done bool
	var err error
	for _, i := range order {
		out, done, err = r.Add(frags[i])
		require.NoError(t, err)
	}

	require.True(t, done)
	assert.Equal(t, payload, out)
}

func TestReassembler_IncompleteSetNeverDelivered(t *testing.T) {
	frags := Split(bytes.Repeat([]byte{0x22}, FragmentThreshold*2))
	r := NewReassembler()

	out, done, err := r.Add(frags[0])
	require.NoError(t, err)
	assert.False(t, done)
	assert.Nil(t, out)
	assert.Equal(t, 1, r.PendingCount())
}

func TestReassembler_RejectsMismatches(t *testing.T) {
	r := NewReassembler()

	// Out-of-range index.
	_, _, err := r.Add(&Fragment{MessageID: "m", Index: 5, Total: 2, Data: []byte("x")})
	assert.ErrorIs(t, err, ErrFragmentMismatch)

	// Total contradicting the pending set.
	_, _, err = r.Add(&Fragment{MessageID: "m2", Index: 0, Total: 3, Data: []byte("a")})
	require.NoError(t, err)
	_, _, err = r.Add(&Fragment{MessageID: "m2", Index: 1, Total: 4, Data: []byte("b")})
	assert.ErrorIs(t, err, ErrFragmentMismatch)
	assert.Zero(t, r.PendingCount(), "mismatched set must be dropped")

	// Conflicting duplicate index.
	_, _, err = r.Add(&Fragment{MessageID: "m3", Index: 0, Total: 2, Data: []byte("a")})
	require.NoError(t, err)
	_, _, err = r.Add(&Fragment{MessageID: "m3", Index: 0, Total: 2, Data: []byte("DIFFERENT")})
	assert.ErrorIs(t, err, ErrFragmentMismatch)
}

func TestReassembler_RejectsOversizedTotalClaim(t *testing.T) {
	r := NewReassembler()

	// One tiny fragment claiming an enormous set must not reserve any
	// buffer space for the claimed siblings.
	_, _, err := r.Add(&Fragment{MessageID: "m", Index: 0, Total: 50_000_000, Data: []byte("x")})
	assert.ErrorIs(t, err, ErrFragmentMismatch)
	assert.Equal(t, 0, r.PendingCount())

	_, _, err = r.Add(&Fragment{MessageID: "m2", Index: 0, Total: MaxFragments + 1, Data: []byte("x")})
	assert.ErrorIs(t, err, ErrFragmentMismatch)

	// The largest permitted claim is still accepted.
	_, done, err := r.Add(&Fragment{MessageID: "m3", Index: 0, Total: MaxFragments, Data: []byte("x")})
	require.NoError(t, err)
	assert.False(t, done)
}

func TestReassembler_RejectsOversizedAccumulation(t *testing.T) {
	r := NewReassembler()

	// Individually oversized fragments can outgrow the byte budget long
	// before the claimed set completes.
	oversized := bytes.Repeat([]byte{0x7C}, MaxReassembledSize/2+1)
	_, _, err := r.Add(&Fragment{MessageID: "m", Index: 0, Total: 3, Data: oversized})
	require.NoError(t, err)
	_, _, err = r.Add(&Fragment{MessageID: "m", Index: 1, Total: 3, Data: oversized})
	assert.ErrorIs(t, err, ErrFragmentMismatch)
	assert.Equal(t, 0, r.PendingCount())
}

func TestReassembler_IdenticalRetransmitIgnored(t *testing.T) {
	r := NewReassembler()

	f := &Fragment{MessageID: "m", Index: 0, Total: 2, Data: []byte("a")}
	_, _, err := r.Add(f)
	require.NoError(t, err)
	_, done, err := r.Add(f)
	require.NoError(t, err)
	assert.False(t, done)

	out, done, err := r.Add(&Fragment{MessageID: "m", Index: 1, Total: 2, Data: []byte("b")})
	require.NoError(t, err)
	require.True(t, done)
	assert.Equal(t, []byte("ab"), out)
}

func TestReassembler_PruneDropsStaleSets(t *testing.T) {
	r := NewReassembler()
	now := time.Now()
	r.now = func() time.Time { return now }

	_, _, err := r.Add(&Fragment{MessageID: "stale", Index: 0, Total: 2, Data: []byte("a")})
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, _, err = r.Add(&Fragment{MessageID: "fresh", Index: 0, Total: 2, Data: []byte("a")})
	require.NoError(t, err)

	dropped := r.Prune(time.Minute)
	assert.Equal(t, 1, dropped)
	assert.Equal(t, 1, r.PendingCount())
}
