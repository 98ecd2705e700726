// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package filestore

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) (*Store, string) {
	dir, err := os.MkdirTemp("", "filestore_test")
	if err != nil {
		t.Fatalf("MkdirTemp: %s", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	s, err := New(dir, 1000, 64, nil)
	if err != nil {
		t.Fatalf("New: %s", err)
	}
	return s, dir
}

func TestAppendAndReadRange(t *testing.T) {
	s, _ := newTestStore(t)
	defer s.Close()

	blocks := [][]byte{[]byte("block-one"), []byte("block-two")}
	vertices := [][]byte{[]byte("vertex-one"), []byte("vertex-two")}

	blkPos, vtxPos, blkPositions, vtxPositions, err := s.AppendLevelSet(1, blocks, vertices)
	if err != nil {
		t.Fatalf("AppendLevelSet: %s", err)
	}
	if blkPos != blkPositions[0] {
		t.Fatalf("expected blkPos %v to equal first position %v", blkPos, blkPositions[0])
	}
	if vtxPos != vtxPositions[0] {
		t.Fatalf("expected vtxPos %v to equal first position %v", vtxPos, vtxPositions[0])
	}

	lengths := make([]uint32, len(blocks))
	for i, b := range blocks {
		lengths[i] = uint32(len(b))
	}
	got, err := s.ReadRange(KindBlock, blkPositions, lengths)
	if err != nil {
		t.Fatalf("ReadRange: %s", err)
	}
	want := bytes.Join(blocks, nil)
	if !bytes.Equal(got, want) {
		t.Errorf("ReadRange: got %x, want %x", got, want)
	}
}

func TestModifyVertexRejectsLengthChange(t *testing.T) {
	s, _ := newTestStore(t)
	defer s.Close()

	_, vtxPos, _, vtxPositions, err := s.AppendLevelSet(1, nil, [][]byte{[]byte("original")})
	if err != nil {
		t.Fatalf("AppendLevelSet: %s", err)
	}
	_ = vtxPos

	if err := s.ModifyVertex(vtxPositions[0], len("original"), []byte("longer-replacement")); err == nil {
		t.Errorf("expected error when replacement length differs from original")
	}

	if err := s.ModifyVertex(vtxPositions[0], len("original"), []byte("replaced")); err != nil {
		t.Errorf("ModifyVertex with matching length: %s", err)
	}

	got, err := s.ReadAt(KindVertex, vtxPositions[0], uint32(len("replaced")))
	if err != nil {
		t.Fatalf("ReadAt: %s", err)
	}
	if !bytes.Equal(got, []byte("replaced")) {
		t.Errorf("ReadAt after ModifyVertex: got %q, want %q", got, "replaced")
	}
}

func TestTruncationSweepRemovesDanglingFiles(t *testing.T) {
	dir, err := os.MkdirTemp("", "filestore_sweep_test")
	if err != nil {
		t.Fatalf("MkdirTemp: %s", err)
	}
	defer os.RemoveAll(dir)

	s, err := New(dir, 1000, 64, nil)
	if err != nil {
		t.Fatalf("New: %s", err)
	}
	if _, _, _, _, err := s.AppendLevelSet(1, [][]byte{[]byte("committed")}, nil); err != nil {
		t.Fatalf("AppendLevelSet: %s", err)
	}
	lastCommitted := s.WriteCursor(KindBlock)
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %s", err)
	}

	danglingDir := filepath.Join(dir, "BLK", "E000001")
	if err := os.MkdirAll(danglingDir, 0755); err != nil {
		t.Fatalf("MkdirAll: %s", err)
	}
	if err := os.WriteFile(filepath.Join(danglingDir, "BLK000000.dat"), []byte("garbage"), 0644); err != nil {
		t.Fatalf("WriteFile: %s", err)
	}

	reopened, err := New(dir, 1000, 64, map[Kind]FilePos{KindBlock: lastCommitted})
	if err != nil {
		t.Fatalf("reopen New: %s", err)
	}
	defer reopened.Close()

	if _, err := os.Stat(filepath.Join(danglingDir, "BLK000000.dat")); !os.IsNotExist(err) {
		t.Errorf("expected dangling file to be removed by truncation sweep")
	}
}
