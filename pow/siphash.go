// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package pow

import (
	"encoding/binary"

	"golang.org/x/crypto/blake2b"
)

// SiphashKeys is Cuckaroo's generalized siphash key quadruple: the graph's
// siphash state is seeded directly from four 64-bit words rather than the
// usual two-key-plus-constants construction (pow/cuckaroo/siphash.h's
// siphash_keys).
type SiphashKeys struct {
	K0, K1, K2, K3 uint64
}

// DeriveSiphashKeys derives a graph's siphash keys from the block header
// preimage (the serialized header with an empty proof field, per §4.3): the
// header is hashed with BLAKE2b-256 and the digest is split into four
// little-endian 64-bit words (cuckaroo.cpp's SetHeader, using BLAKE2b in
// place of the reference's header-hash black box).
func DeriveSiphashKeys(header []byte) SiphashKeys {
	digest := blake2b.Sum256(header)
	return SiphashKeys{
		K0: binary.LittleEndian.Uint64(digest[0:8]),
		K1: binary.LittleEndian.Uint64(digest[8:16]),
		K2: binary.LittleEndian.Uint64(digest[16:24]),
		K3: binary.LittleEndian.Uint64(digest[24:32]),
	}
}

// sipState is the mutable four-lane state of one siphash computation,
// mirroring pow/cuckaroo/siphash.h's siphash_state<21> (rotE defaults to 21).
type sipState struct {
	v0, v1, v2, v3 uint64
}

func newSipState(keys SiphashKeys) sipState {
	return sipState{v0: keys.K0, v1: keys.K1, v2: keys.K2, v3: keys.K3}
}

func rotl(x uint64, b uint) uint64 {
	return (x << b) | (x >> (64 - b))
}

func (s *sipState) round() {
	s.v0 += s.v1
	s.v2 += s.v3
	s.v1 = rotl(s.v1, 13)
	s.v3 = rotl(s.v3, 16)
	s.v1 ^= s.v0
	s.v3 ^= s.v2
	s.v0 = rotl(s.v0, 32)
	s.v2 += s.v1
	s.v0 += s.v3
	s.v1 = rotl(s.v1, 17)
	s.v3 = rotl(s.v3, 21)
	s.v1 ^= s.v2
	s.v3 ^= s.v0
	s.v2 = rotl(s.v2, 32)
}

// hash24 mixes nonce into the running state with the standard SipHash-2-4
// round schedule (2 compression rounds, then 4 finalization rounds). The
// reference implementation never resets v0..v3 between calls within one
// sipBlock: consecutive calls chain off the previous state, the
// block-amortization trick that lets one state serve EdgeBlockSize edges.
func (s *sipState) hash24(nonce uint64) {
	s.v3 ^= nonce
	s.round()
	s.round()
	s.v0 ^= nonce
	s.v2 ^= 0xff
	s.round()
	s.round()
	s.round()
	s.round()
}

func (s *sipState) xorLanes() uint64 {
	return (s.v0 ^ s.v1) ^ (s.v2 ^ s.v3)
}

// sipBlock fills buf (length EdgeBlockSize) with the siphash outputs for
// every edge in the 64-edge block containing edge, XOR-folds every entry
// against the block's last entry, and returns the value for edge itself
// (cuckaroo.cpp's sipblock).
func sipBlock(keys SiphashKeys, edge uint64, buf []uint64) uint64 {
	state := newSipState(keys)
	edge0 := edge &^ EdgeBlockMask
	for i := uint64(0); i < EdgeBlockSize; i++ {
		state.hash24(edge0 + i)
		buf[i] = state.xorLanes()
	}

	last := buf[EdgeBlockMask]
	for i := 0; i < EdgeBlockMask; i++ {
		buf[i] ^= last
	}

	return buf[edge&EdgeBlockMask]
}

// edgeValue computes the raw siphash edge value for a single edge index,
// the preimage for its (U, V) endpoint pair.
func edgeValue(keys SiphashKeys, edge uint64) uint64 {
	var buf [EdgeBlockSize]uint64
	return sipBlock(keys, edge, buf[:])
}

// endpoints splits an edge value into its U and V node ids, masked to
// params' node space: low EdgeBits bits are U, bits [32, 32+EdgeBits) are V
// (cuckaroo.cpp: `edge & EDGEMASK` and `(edge >> 32) & EDGEMASK`).
func endpoints(params Params, value uint64) (u, v uint64) {
	mask := params.EdgeMask()
	return value & mask, (value >> 32) & mask
}
