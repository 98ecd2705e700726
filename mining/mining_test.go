// Copyright (c) 2014-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mining

import (
	"context"
	"math/big"
	"testing"

	"github.com/epic-project/epicd/mempool"
	"github.com/epic-project/epicd/params"
	"github.com/epic-project/epicd/util/daghash"
	"github.com/epic-project/epicd/wire"
)

func TestSortitionDistanceXORIdentity(t *testing.T) {
	h := daghash.Hash{1, 2, 3}
	if dist := SortitionDistance(h, h); dist.Sign() != 0 {
		t.Fatalf("SortitionDistance(h, h) = %v, want 0", dist)
	}
}

func TestSortitionDistanceSymmetric(t *testing.T) {
	a := daghash.Hash{1, 2, 3}
	b := daghash.Hash{4, 5, 6}
	if SortitionDistance(a, b).Cmp(SortitionDistance(b, a)) != 0 {
		t.Fatal("SortitionDistance is not symmetric under XOR")
	}
}

func TestAllowedDistanceBounds(t *testing.T) {
	if got := AllowedDistance(0); got.Sign() != 0 {
		t.Fatalf("AllowedDistance(0) = %v, want 0", got)
	}
	if got := AllowedDistance(-1); got.Sign() != 0 {
		t.Fatalf("AllowedDistance(-1) = %v, want 0", got)
	}
	if got := AllowedDistance(1); got.Cmp(maxDistance) != 0 {
		t.Fatalf("AllowedDistance(1) = %v, want maxDistance", got)
	}
	if got := AllowedDistance(2); got.Cmp(maxDistance) != 0 {
		t.Fatalf("AllowedDistance(2) = %v, want maxDistance", got)
	}
}

func TestAllowedDistanceMonotonic(t *testing.T) {
	low := AllowedDistance(0.1)
	high := AllowedDistance(0.9)
	if low.Cmp(high) >= 0 {
		t.Fatalf("AllowedDistance(0.1) = %v should be less than AllowedDistance(0.9) = %v", low, high)
	}
}

func TestAllowedDistanceHalfShareIsRoughlyHalfTheSpace(t *testing.T) {
	half := AllowedDistance(0.5)
	expected := new(big.Int).Rsh(maxDistance, 1)
	diff := new(big.Int).Sub(half, expected)
	diff.Abs(diff)
	if diff.Cmp(big.NewInt(2)) > 0 {
		t.Fatalf("AllowedDistance(0.5) = %v, want approximately %v", half, expected)
	}
}

func TestStateString(t *testing.T) {
	cases := map[State]string{
		StateIdle:       "IDLE",
		StateAssembling: "ASSEMBLING",
		StateSolving:    "SOLVING",
		StateSubmit:     "SUBMIT",
		StateAborted:    "ABORTED",
		State(99):       "UNKNOWN",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", state, got, want)
		}
	}
}

func newTestMiner() *Miner {
	p := params.SimNetParams
	return New(&p, nil, mempool.New(), 1)
}

func firstRegistrationTx() *wire.MsgTx {
	return &wire.MsgTx{
		Version: 1,
		TxIn: []*wire.TxIn{{
			PreviousOutpoint: wire.Outpoint{TxIndex: wire.UnconnectedIndex, OutIndex: wire.UnconnectedIndex},
		}},
		TxOut: []*wire.TxOut{{Value: 0}},
	}
}

func redemptionTx(anchor daghash.Hash) *wire.MsgTx {
	return &wire.MsgTx{
		Version: 1,
		TxIn: []*wire.TxIn{{
			PreviousOutpoint: wire.Outpoint{
				ProducingBlockHash: anchor,
				TxIndex:            wire.UnconnectedIndex,
				OutIndex:           wire.UnconnectedIndex,
			},
		}},
		TxOut: []*wire.TxOut{{Value: 500}},
	}
}

func ordinaryTx(seed byte) *wire.MsgTx {
	return &wire.MsgTx{
		Version: 1,
		TxIn: []*wire.TxIn{{
			PreviousOutpoint: wire.Outpoint{ProducingBlockHash: daghash.Hash{seed}, TxIndex: 0, OutIndex: 0},
		}},
		TxOut: []*wire.TxOut{{Value: 1000}},
	}
}

func TestIterateParksRedemptionUntilRegistered(t *testing.T) {
	m := newTestMiner()
	anchor := daghash.Hash{7}
	tx := redemptionTx(anchor)
	if err := m.pool.EnqueueRedemption(tx); err != nil {
		t.Fatalf("EnqueueRedemption: unexpected error: %v", err)
	}

	if m.iterate(context.Background()) {
		t.Fatal("iterate: expected false (nothing assembled) while unregistered with only a redemption queued")
	}
	if m.pool.PendingRedemptions() != 1 {
		t.Fatal("expected the redemption to be parked back in the queue")
	}
}

func TestIterateNoWorkWhenEmpty(t *testing.T) {
	m := newTestMiner()
	if m.iterate(context.Background()) {
		t.Fatal("iterate: expected false on an empty mempool and redemption queue")
	}
}

func TestReclaimRestoresQueuedOrder(t *testing.T) {
	m := newTestMiner()
	anchorA := daghash.Hash{1}
	anchorB := daghash.Hash{2}
	txA := redemptionTx(anchorA)
	txB := redemptionTx(anchorB)

	m.reclaim([]candidate{{tx: txA, queued: true}, {tx: txB, queued: true}})

	first, ok := m.pool.DequeueRedemption()
	if !ok || first != txA {
		t.Fatal("reclaim did not restore FIFO order: expected txA first")
	}
	second, ok := m.pool.DequeueRedemption()
	if !ok || second != txB {
		t.Fatal("reclaim did not restore FIFO order: expected txB second")
	}
}

func TestReclaimReturnsOrdinaryToMempool(t *testing.T) {
	m := newTestMiner()
	tx := ordinaryTx(3)

	m.reclaim([]candidate{{tx: tx, fee: 50}})

	hash, _ := tx.TxHash()
	if !m.pool.Have(hash) {
		t.Fatal("expected the ordinary transaction back in the mempool after reclaim")
	}
}

func TestFirstRegistrationGatesRegistration(t *testing.T) {
	m := newTestMiner()
	if m.State() != StateIdle {
		t.Fatalf("State() = %v, want IDLE before any iteration", m.State())
	}

	reg := firstRegistrationTx()
	if err := m.pool.EnqueueRedemption(reg); err != nil {
		t.Fatalf("EnqueueRedemption: unexpected error: %v", err)
	}

	m.mu.Lock()
	registered := m.registered
	m.mu.Unlock()
	if registered {
		t.Fatal("a fresh miner must start unregistered")
	}
}
