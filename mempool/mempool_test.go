// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"testing"

	"github.com/epic-project/epicd/util/daghash"
	"github.com/epic-project/epicd/wire"
)

func ordinaryTx(seed byte) *wire.MsgTx {
	return &wire.MsgTx{
		Version: 1,
		TxIn: []*wire.TxIn{{
			PreviousOutpoint: wire.Outpoint{
				ProducingBlockHash: daghash.Hash{seed},
				TxIndex:            0,
				OutIndex:           0,
			},
		}},
		TxOut: []*wire.TxOut{{Value: 1000}},
	}
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

func TestAddAndDedup(t *testing.T) {
	p := New()
	tx := ordinaryTx(1)

	hash, err := p.Add(tx, 10)
	if err != nil {
		t.Fatalf("Add: unexpected error: %v", err)
	}
	if !p.Have(hash) {
		t.Fatal("Have: expected true after Add")
	}
	if p.Len() != 1 {
		t.Fatalf("Len = %d, want 1", p.Len())
	}

	if _, err := p.Add(tx, 10); err != ErrDuplicateTx {
		t.Fatalf("Add duplicate: got %v, want ErrDuplicateTx", err)
	}
}

func TestRemove(t *testing.T) {
	p := New()
	tx := ordinaryTx(2)
	hash, err := p.Add(tx, 0)
	if err != nil {
		t.Fatalf("Add: unexpected error: %v", err)
	}

	p.Remove(hash)
	if p.Have(hash) {
		t.Fatal("Have: expected false after Remove")
	}
	if p.Len() != 0 {
		t.Fatalf("Len = %d, want 0", p.Len())
	}

	// Removing again, and removing a hash never added, must not panic.
	p.Remove(hash)
	p.Remove(daghash.Hash{0xee})
}

func TestRemoveConfirmed(t *testing.T) {
	p := New()
	txA, txB := ordinaryTx(3), ordinaryTx(4)
	hashA, _ := p.Add(txA, 0)
	_, _ = p.Add(txB, 0)

	p.RemoveConfirmed([]*wire.MsgTx{txA})

	if p.Have(hashA) {
		t.Fatal("expected txA removed")
	}
	if p.Len() != 1 {
		t.Fatalf("Len = %d, want 1", p.Len())
	}
}

func TestTxDescs(t *testing.T) {
	p := New()
	for i := byte(0); i < 5; i++ {
		if _, err := p.Add(ordinaryTx(10+i), uint64(i)); err != nil {
			t.Fatalf("Add: unexpected error: %v", err)
		}
	}
	descs := p.TxDescs()
	if len(descs) != 5 {
		t.Fatalf("TxDescs returned %d entries, want 5", len(descs))
	}
}

func TestEnqueueDequeueRedemption(t *testing.T) {
	p := New()
	firstReg := firstRegistrationTx()

	if err := p.EnqueueRedemption(firstReg); err != nil {
		t.Fatalf("EnqueueRedemption: unexpected error: %v", err)
	}
	if p.PendingRedemptions() != 1 {
		t.Fatalf("PendingRedemptions = %d, want 1", p.PendingRedemptions())
	}

	tx, ok := p.DequeueRedemption()
	if !ok {
		t.Fatal("DequeueRedemption: expected ok=true")
	}
	firstRegHash, _ := firstReg.TxHash()
	dequeuedHash, _ := tx.TxHash()
	if dequeuedHash != firstRegHash {
		t.Fatal("DequeueRedemption returned the wrong transaction")
	}

	if _, ok := p.DequeueRedemption(); ok {
		t.Fatal("DequeueRedemption: expected ok=false on empty queue")
	}
}

func TestEnqueueRedemptionRejectsOrdinary(t *testing.T) {
	p := New()
	if err := p.EnqueueRedemption(ordinaryTx(5)); err == nil {
		t.Fatal("expected an error enqueueing an ordinary transaction")
	}
}

func TestEnqueueRedemptionAnchorCollision(t *testing.T) {
	p := New()
	anchor := daghash.Hash{9}
	first := redemptionTx(anchor)
	second := redemptionTx(anchor)

	if err := p.EnqueueRedemption(first); err != nil {
		t.Fatalf("EnqueueRedemption: unexpected error: %v", err)
	}
	if err := p.EnqueueRedemption(second); err != ErrRedemptionAnchorQueued {
		t.Fatalf("EnqueueRedemption: got %v, want ErrRedemptionAnchorQueued", err)
	}

	if _, ok := p.DequeueRedemption(); !ok {
		t.Fatal("expected a redemption to dequeue")
	}
	// The anchor is now free again.
	if err := p.EnqueueRedemption(second); err != nil {
		t.Fatalf("EnqueueRedemption after dequeue: unexpected error: %v", err)
	}
}

func TestEnqueueRedemptionDistinctFirstRegistrations(t *testing.T) {
	p := New()
	first := firstRegistrationTx()
	second := &wire.MsgTx{
		Version: 2,
		TxIn:    first.TxIn,
		TxOut:   first.TxOut,
	}

	if err := p.EnqueueRedemption(first); err != nil {
		t.Fatalf("EnqueueRedemption: unexpected error: %v", err)
	}
	// A distinct first registration (different tx hash) must not collide
	// with the first just because both carry the zero-hash anchor.
	if err := p.EnqueueRedemption(second); err != nil {
		t.Fatalf("EnqueueRedemption second first-registration: unexpected error: %v", err)
	}
	if p.PendingRedemptions() != 2 {
		t.Fatalf("PendingRedemptions = %d, want 2", p.PendingRedemptions())
	}
}

func TestRequeueRedemptionOrdering(t *testing.T) {
	p := New()
	anchorA := daghash.Hash{1}
	anchorB := daghash.Hash{2}
	txA := redemptionTx(anchorA)
	txB := redemptionTx(anchorB)

	if err := p.EnqueueRedemption(txA); err != nil {
		t.Fatalf("EnqueueRedemption: unexpected error: %v", err)
	}
	dequeued, ok := p.DequeueRedemption()
	if !ok {
		t.Fatal("expected a redemption to dequeue")
	}

	if err := p.EnqueueRedemption(txB); err != nil {
		t.Fatalf("EnqueueRedemption: unexpected error: %v", err)
	}
	p.RequeueRedemption(dequeued)

	// txA was requeued at the front, so it must come out before txB.
	first, ok := p.DequeueRedemption()
	if !ok || first != dequeued {
		t.Fatal("RequeueRedemption did not restore FIFO order")
	}
	second, ok := p.DequeueRedemption()
	if !ok || second != txB {
		t.Fatal("expected txB to dequeue after the requeued transaction")
	}
}
