// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package catalog

import (
	"os"
	"testing"

	"github.com/epic-project/epicd/filestore"
	"github.com/epic-project/epicd/util/daghash"
)

func newTestCatalog(t *testing.T) *Catalog {
	dir, err := os.MkdirTemp("", "catalog_test")
	if err != nil {
		t.Fatalf("MkdirTemp: %s", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	c, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %s", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestDefaultEntryRoundTrip(t *testing.T) {
	c := newTestCatalog(t)

	hash := daghash.Hash{1, 2, 3}
	entry := DefaultEntry{Height: 42, BlkOffset: 100, VtxOffset: 200}
	if err := c.PutDefaultEntry(hash, entry); err != nil {
		t.Fatalf("PutDefaultEntry: %s", err)
	}

	got, err := c.GetDefaultEntry(hash)
	if err != nil {
		t.Fatalf("GetDefaultEntry: %s", err)
	}
	if got != entry {
		t.Errorf("GetDefaultEntry: got %+v, want %+v", got, entry)
	}
	if got.IsMilestone() {
		t.Errorf("non-zero offsets should not be reported as a milestone")
	}

	milestone := daghash.Hash{9, 9, 9}
	if err := c.PutDefaultEntry(milestone, DefaultEntry{Height: 42}); err != nil {
		t.Fatalf("PutDefaultEntry milestone: %s", err)
	}
	gotMs, err := c.GetDefaultEntry(milestone)
	if err != nil {
		t.Fatalf("GetDefaultEntry milestone: %s", err)
	}
	if !gotMs.IsMilestone() {
		t.Errorf("zero offsets should be reported as a milestone")
	}
}

func TestMsEntryRoundTripAndHighest(t *testing.T) {
	c := newTestCatalog(t)

	for height := uint64(1); height <= 3; height++ {
		entry := MsEntry{
			MilestoneHash: daghash.Hash{byte(height)},
			BlkPos:        filestore.FilePos{Epoch: 0, Name: 0, Offset: uint32(height) * 10},
			VtxPos:        filestore.FilePos{Epoch: 0, Name: 0, Offset: uint32(height) * 20},
		}
		if err := c.PutMsEntry(height, entry); err != nil {
			t.Fatalf("PutMsEntry(%d): %s", height, err)
		}
	}

	got, err := c.GetMsEntry(2)
	if err != nil {
		t.Fatalf("GetMsEntry: %s", err)
	}
	if got.BlkPos.Offset != 20 {
		t.Errorf("GetMsEntry: got offset %d, want 20", got.BlkPos.Offset)
	}

	highest, ok := c.HighestMsHeight()
	if !ok || highest != 3 {
		t.Errorf("HighestMsHeight: got (%d, %t), want (3, true)", highest, ok)
	}
}

func TestUTXOLifecycle(t *testing.T) {
	c := newTestCatalog(t)

	key := []byte("outpoint-key")
	if has, _ := c.HasUTXO(key); has {
		t.Fatalf("HasUTXO: expected false before insertion")
	}

	if err := c.PutUTXO(key, []byte("encoded-utxo")); err != nil {
		t.Fatalf("PutUTXO: %s", err)
	}
	if has, err := c.HasUTXO(key); err != nil || !has {
		t.Fatalf("HasUTXO: got (%t, %v), want (true, nil)", has, err)
	}

	if err := c.DeleteUTXO(key); err != nil {
		t.Fatalf("DeleteUTXO: %s", err)
	}
	if _, err := c.GetUTXO(key); err != ErrNotFound {
		t.Errorf("GetUTXO after delete: got %v, want ErrNotFound", err)
	}
}

func TestBatchCommit(t *testing.T) {
	c := newTestCatalog(t)

	hash := daghash.Hash{5}
	batch := c.NewBatch()
	batch.PutDefaultEntry(hash, DefaultEntry{Height: 7})
	batch.PutInfo("head_height", []byte{7, 0, 0, 0})
	if err := batch.Commit(); err != nil {
		t.Fatalf("Commit: %s", err)
	}

	entry, err := c.GetDefaultEntry(hash)
	if err != nil {
		t.Fatalf("GetDefaultEntry: %s", err)
	}
	if entry.Height != 7 {
		t.Errorf("GetDefaultEntry: got height %d, want 7", entry.Height)
	}

	info, err := c.GetInfo("head_height")
	if err != nil {
		t.Fatalf("GetInfo: %s", err)
	}
	if info[0] != 7 {
		t.Errorf("GetInfo: got %v, want [7 0 0 0]", info)
	}
}

func TestSchemaVersionMismatchRejected(t *testing.T) {
	dir, err := os.MkdirTemp("", "catalog_version_test")
	if err != nil {
		t.Fatalf("MkdirTemp: %s", err)
	}
	defer os.RemoveAll(dir)

	c, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %s", err)
	}
	if err := c.PutInfo(infoKeySchemaVersion, []byte{99, 0, 0, 0}); err != nil {
		t.Fatalf("PutInfo: %s", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %s", err)
	}

	if _, err := Open(dir); err == nil {
		t.Errorf("expected Open to reject an incompatible schema version")
	}
}
