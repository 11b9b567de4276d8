// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The Sakya Authors

package crypto

import "golang.org/x/crypto/blake2b"

// genesisPreimage is hashed once to produce the chain's genesis proof.
// It is a protocol constant shared by every implementation.
const genesisPreimage = "sakya-genesis"

// ProofSize is the BLAKE2b-256 digest length carried as the chain proof.
const ProofSize = blake2b.Size256

// HashChain is an append-only tamper-evident proof chain. Each appended
// entry folds into the running proof as
//
//	proof' = BLAKE2b256(proof || data)
//
// so replaying the ordered data sequence from genesis reproduces every
// intermediate proof, and skipping or reordering any entry breaks
// verification from that point forward.
type HashChain struct {
	proof [ProofSize]byte
}

// NewHashChain starts a chain at the genesis proof.
func NewHashChain() *HashChain {
	return &HashChain{proof: GenesisProof()}
}

// NewHashChainAt resumes a chain from a previously persisted proof.
func NewHashChainAt(proof [ProofSize]byte) *HashChain {
	return &HashChain{proof: proof}
}

// GenesisProof returns BLAKE2b256 of the fixed genesis preimage.
func GenesisProof() [ProofSize]byte {
	return blake2b.Sum256([]byte(genesisPreimage))
}

// Append advances the chain over data and returns the new proof.
func (c *HashChain) Append(data []byte) [ProofSize]byte {
	c.proof = chainStep(c.proof, data)
	return c.proof
}

// Proof returns the current head proof without advancing the chain.
func (c *HashChain) Proof() [ProofSize]byte {
	return c.proof
}

// VerifyStep reports whether proof is the immediate successor of prevProof
// for the given data. It cannot validate an entry against any non-immediate
// predecessor; a skipped step always fails.
func VerifyStep(prevProof [ProofSize]byte, data []byte, proof [ProofSize]byte) bool {
	return chainStep(prevProof, data) == proof
}

func chainStep(proof [ProofSize]byte, data []byte) [ProofSize]byte {
	buf := make([]byte, 0, ProofSize+len(data))
	buf = append(buf, proof[:]...)
	buf = append(buf, data...)
	return blake2b.Sum256(buf)
}
