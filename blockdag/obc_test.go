// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockdag

import (
	"testing"

	"github.com/epic-project/epicd/util/daghash"
	"github.com/epic-project/epicd/wire"
)

func orphanBlock(milestone, prev, tip daghash.Hash) *wire.MsgBlock {
	return &wire.MsgBlock{
		Header: wire.BlockHeader{
			MilestoneHash: milestone,
			PrevHash:      prev,
			TipHash:       tip,
		},
	}
}

func TestOBCInsertRejectsZeroMask(t *testing.T) {
	o := NewOrphanBuffer()
	if err := o.Insert(daghash.Hash{1}, orphanBlock(daghash.Hash{}, daghash.Hash{}, daghash.Hash{}), 0); err == nil {
		t.Fatal("Insert with a zero mask must return an error")
	}
}

func TestOBCReleaseClearsOneBit(t *testing.T) {
	o := NewOrphanBuffer()
	milestone := daghash.Hash{1}
	prev := daghash.Hash{2}
	child := daghash.Hash{3}

	if err := o.Insert(child, orphanBlock(milestone, prev, daghash.Hash{}), missingMilestone|missingPrev); err != nil {
		t.Fatalf("Insert: unexpected error: %v", err)
	}
	if !o.Has(child) {
		t.Fatal("Has: expected true after Insert")
	}

	if released := o.Release(milestone); len(released) != 0 {
		t.Fatal("Release: block still missing its prev parent must not be released")
	}
	if !o.Has(child) {
		t.Fatal("block was released too early")
	}

	released := o.Release(prev)
	if len(released) != 1 {
		t.Fatalf("Release: got %d blocks, want 1", len(released))
	}
	if o.Has(child) {
		t.Fatal("block should be gone from the OBC once fully solid")
	}
}

func TestOBCEvictsOldestAtCapacity(t *testing.T) {
	o := NewOrphanBufferWithCapacity(2)

	h1, h2, h3 := daghash.Hash{1}, daghash.Hash{2}, daghash.Hash{3}
	missingParent := daghash.Hash{99}

	if err := o.Insert(h1, orphanBlock(missingParent, daghash.Hash{}, daghash.Hash{}), missingMilestone); err != nil {
		t.Fatalf("Insert h1: unexpected error: %v", err)
	}
	if err := o.Insert(h2, orphanBlock(missingParent, daghash.Hash{}, daghash.Hash{}), missingMilestone); err != nil {
		t.Fatalf("Insert h2: unexpected error: %v", err)
	}
	if o.Len() != 2 {
		t.Fatalf("Len = %d, want 2", o.Len())
	}

	// A third insert beyond capacity must evict h1, the oldest.
	if err := o.Insert(h3, orphanBlock(missingParent, daghash.Hash{}, daghash.Hash{}), missingMilestone); err != nil {
		t.Fatalf("Insert h3: unexpected error: %v", err)
	}
	if o.Len() != 2 {
		t.Fatalf("Len = %d, want 2 after eviction", o.Len())
	}
	if o.Has(h1) {
		t.Fatal("h1 should have been evicted as the oldest entry")
	}
	if !o.Has(h2) || !o.Has(h3) {
		t.Fatal("h2 and h3 should still be buffered")
	}

	// Releasing the shared missing parent must only release the survivors.
	released := o.Release(missingParent)
	if len(released) != 2 {
		t.Fatalf("Release: got %d blocks, want 2", len(released))
	}
}
