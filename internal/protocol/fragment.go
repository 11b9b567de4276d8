// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The Sakya Authors

package protocol

import (
	"bytes"
	"time"

	"github.com/google/uuid"
)

// FragmentThreshold is the encoded-message size above which a message is
// split into fragments before transmission.
const FragmentThreshold = 256 * 1024

// MaxReassembledSize bounds how many bytes one fragment set may claim or
// accumulate. A set that claims more fragments than fit in this budget, or
// whose received data outgrows it, is rejected outright; without the bound
// a single small frame could reserve arbitrary memory on the receiver.
const MaxReassembledSize = 16 * 1024 * 1024

// MaxFragments is the largest Total a fragment may claim, derived from
// MaxReassembledSize at the fragmentation threshold.
const MaxFragments = MaxReassembledSize / FragmentThreshold

// NeedsFragmentation reports whether an encoded message exceeds the
// fragmentation threshold.
func NeedsFragmentation(encoded []byte) bool {
	return len(encoded) > FragmentThreshold
}

// Split cuts an encoded message into ordered fragments sharing a fresh
// message id. The last fragment may be shorter than the threshold. Split
// never returns an empty set: input at or under the threshold yields a
// single fragment, so callers can fragment unconditionally if they prefer.
func Split(encoded []byte) []*Fragment {
	total := (len(encoded) + FragmentThreshold - 1) / FragmentThreshold
	if total == 0 {
		total = 1
	}

	id := uuid.NewString()
	fragments := make([]*Fragment, 0, total)
	for i := 0; i < total; i++ {
		start := i * FragmentThreshold
		end := start + FragmentThreshold
		if end > len(encoded) {
			end = len(encoded)
		}
		fragments = append(fragments, &Fragment{
			MessageID: id,
			Index:     i,
			Total:     total,
			Data:      append([]byte(nil), encoded[start:end]...),
		})
	}

	return fragments
}

// partial buffers the fragments of one in-flight message.
type partial struct {
	total    int
	received int
	size     int
	parts    [][]byte
	started  time.Time
}

// Reassembler buffers partial fragment sets and releases a message only
// when its set is complete. An incomplete set is never surfaced.
//
// Reassembler is not safe for concurrent use; each connection owns one.
type Reassembler struct {
	pending map[string]*partial
	now     func() time.Time
}

// NewReassembler constructs an empty Reassembler.
func NewReassembler() *Reassembler {
	return &Reassembler{
		pending: make(map[string]*partial),
		now:     time.Now,
	}
}

// Add accepts one fragment. When the fragment completes its set, Add
// returns the reassembled encoded message and true; otherwise it returns
// (nil, false). A fragment that contradicts its pending set (mismatched
// total, out-of-range index, a conflicting duplicate, or a claim beyond
// [MaxFragments]/[MaxReassembledSize]) fails with [ErrFragmentMismatch]
// and drops the whole pending set, since the sender is confused.
func (r *Reassembler) Add(f *Fragment) ([]byte, bool, error) {
	if f.Total < 1 || f.Total > MaxFragments || f.Index < 0 || f.Index >= f.Total || f.MessageID == "" {
		return nil, false, ErrFragmentMismatch
	}

	p, ok := r.pending[f.MessageID]
	if !ok {
		p = &partial{
			total:   f.Total,
			parts:   make([][]byte, f.Total),
			started: r.now(),
		}
		r.pending[f.MessageID] = p
	}

	if f.Total != p.total {
		delete(r.pending, f.MessageID)
		return nil, false, ErrFragmentMismatch
	}

	if existing := p.parts[f.Index]; existing != nil {
		if !bytes.Equal(existing, f.Data) {
			delete(r.pending, f.MessageID)
			return nil, false, ErrFragmentMismatch
		}
		// Identical retransmit; ignore.
		return nil, false, nil
	}

	if p.size+len(f.Data) > MaxReassembledSize {
		delete(r.pending, f.MessageID)
		return nil, false, ErrFragmentMismatch
	}

	p.parts[f.Index] = append([]byte(nil), f.Data...)
	p.received++
	p.size += len(f.Data)

	if p.received < p.total {
		return nil, false, nil
	}

	delete(r.pending, f.MessageID)

	out := make([]byte, 0, p.size)
	for _, part := range p.parts {
		out = append(out, part...)
	}

	return out, true, nil
}

// Prune drops pending sets older than maxAge and returns how many were
// discarded. Expiry is checked only when Prune is called; the caller
// invokes it periodically.
func (r *Reassembler) Prune(maxAge time.Duration) int {
	cutoff := r.now().Add(-maxAge)
	dropped := 0
	for id, p := range r.pending {
		if p.started.Before(cutoff) {
			delete(r.pending, id)
			dropped++
		}
	}
	return dropped
}

// PendingCount returns the number of incomplete fragment sets held.
func (r *Reassembler) PendingCount() int {
	return len(r.pending)
}
