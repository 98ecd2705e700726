// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package catalog implements the key/value index (§4.2): five logical
// tables — default, ms, utxo, reg and info — layered over a single
// goleveldb instance by key-prefixing, the way the teacher's ldb package
// layers its cursor over raw leveldb iterators (database/ffldb/ldb/cursor.go).
package catalog

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/epic-project/epicd/filestore"
	"github.com/epic-project/epicd/logs"
	"github.com/epic-project/epicd/util/daghash"
)

var log = logs.NewBackend(nil).Logger("CTLG", logs.LevelInfo)

// ErrNotFound is returned when a lookup finds no matching entry.
var ErrNotFound = errors.New("catalog: key not found")

// table prefixes, one byte each, partitioning a single leveldb keyspace the
// way the teacher's bucket-prefixed cursors do.
const (
	prefixDefault byte = 'D'
	prefixMs      byte = 'M'
	prefixUtxo    byte = 'U'
	prefixReg     byte = 'R'
	prefixInfo    byte = 'I'
)

// infoSchemaVersion is stamped into the info table's "schema_version" entry
// at creation and checked on every open, the supplemented "info table
// versioning byte" guarding against opening a catalog written by an
// incompatible build.
const infoSchemaVersion = 1

const infoKeySchemaVersion = "schema_version"

// Catalog is the five-table key/value index backing one node's view of the
// DAG's metadata.
type Catalog struct {
	ldb *leveldb.DB
}

// Open opens (creating if necessary) the catalog rooted at path, verifying
// or stamping the schema version.
func Open(path string) (*Catalog, error) {
	ldb, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open leveldb")
	}
	c := &Catalog{ldb: ldb}

	existing, err := c.GetInfo(infoKeySchemaVersion)
	if err != nil && err != ErrNotFound {
		ldb.Close()
		return nil, err
	}
	if err == ErrNotFound {
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], infoSchemaVersion)
		if err := c.PutInfo(infoKeySchemaVersion, buf[:]); err != nil {
			ldb.Close()
			return nil, err
		}
		return c, nil
	}
	if len(existing) != 4 || binary.LittleEndian.Uint32(existing) != infoSchemaVersion {
		ldb.Close()
		return nil, errors.Errorf("catalog: incompatible schema version (found %x, want %d)", existing, infoSchemaVersion)
	}
	return c, nil
}

// Close releases the underlying leveldb handle.
func (c *Catalog) Close() error {
	return c.ldb.Close()
}

func prefixedKey(prefix byte, key []byte) []byte {
	out := make([]byte, 1+len(key))
	out[0] = prefix
	copy(out[1:], key)
	return out
}

func (c *Catalog) get(prefix byte, key []byte) ([]byte, error) {
	value, err := c.ldb.Get(prefixedKey(prefix, key), nil)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "leveldb get failed")
	}
	return value, nil
}

func (c *Catalog) put(prefix byte, key, value []byte) error {
	if err := c.ldb.Put(prefixedKey(prefix, key), value, nil); err != nil {
		return errors.Wrap(err, "leveldb put failed")
	}
	return nil
}

func (c *Catalog) delete(prefix byte, key []byte) error {
	if err := c.ldb.Delete(prefixedKey(prefix, key), nil); err != nil {
		return errors.Wrap(err, "leveldb delete failed")
	}
	return nil
}

// cursor begins a new iterator over every key sharing prefix, mirroring the
// teacher's LevelDBCursor (database/ffldb/ldb/cursor.go) trimmed to this
// package's narrower needs.
type cursor struct {
	it     iterator.Iterator
	prefix []byte
}

func (c *Catalog) cursor(prefix byte) *cursor {
	p := []byte{prefix}
	return &cursor{
		it:     c.ldb.NewIterator(util.BytesPrefix(p), nil),
		prefix: p,
	}
}

func (cur *cursor) Next() bool  { return cur.it.Next() }
func (cur *cursor) First() bool { return cur.it.First() }

func (cur *cursor) Key() []byte {
	return bytes.TrimPrefix(cur.it.Key(), cur.prefix)
}

func (cur *cursor) Value() []byte {
	return cur.it.Value()
}

func (cur *cursor) Close() {
	cur.it.Release()
}

// DefaultEntry is the default table's value: the level-set height a block
// belongs to, and its byte offsets relative to that level set's milestone
// file position. A milestone's own entry has both offsets zero (§4.2).
type DefaultEntry struct {
	Height    uint64
	BlkOffset uint32
	VtxOffset uint32
}

// IsMilestone reports whether the entry describes a milestone block itself.
func (e DefaultEntry) IsMilestone() bool {
	return e.BlkOffset == 0 && e.VtxOffset == 0
}

func encodeDefaultEntry(e DefaultEntry) []byte {
	var buf bytes.Buffer
	writeUvarint(&buf, e.Height)
	var rest [8]byte
	binary.LittleEndian.PutUint32(rest[0:4], e.BlkOffset)
	binary.LittleEndian.PutUint32(rest[4:8], e.VtxOffset)
	buf.Write(rest[:])
	return buf.Bytes()
}

func decodeDefaultEntry(b []byte) (DefaultEntry, error) {
	height, n, err := readUvarint(b)
	if err != nil {
		return DefaultEntry{}, err
	}
	if len(b)-n != 8 {
		return DefaultEntry{}, errors.New("malformed default table entry")
	}
	rest := b[n:]
	return DefaultEntry{
		Height:    height,
		BlkOffset: binary.LittleEndian.Uint32(rest[0:4]),
		VtxOffset: binary.LittleEndian.Uint32(rest[4:8]),
	}, nil
}

func writeUvarint(buf *bytes.Buffer, v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	buf.Write(tmp[:n])
}

func readUvarint(b []byte) (uint64, int, error) {
	v, n := binary.Uvarint(b)
	if n <= 0 {
		return 0, 0, errors.New("malformed varint")
	}
	return v, n, nil
}

// PutDefaultEntry records (or overwrites) blockHash's position within the DAG.
func (c *Catalog) PutDefaultEntry(blockHash daghash.Hash, entry DefaultEntry) error {
	return c.put(prefixDefault, blockHash[:], encodeDefaultEntry(entry))
}

// GetDefaultEntry looks up blockHash's default table entry.
func (c *Catalog) GetDefaultEntry(blockHash daghash.Hash) (DefaultEntry, error) {
	raw, err := c.get(prefixDefault, blockHash[:])
	if err != nil {
		return DefaultEntry{}, err
	}
	return decodeDefaultEntry(raw)
}

// DeleteDefaultEntry removes blockHash's default table entry. Deleting a
// milestone's entry must be paired with removing its ms table entry by the
// caller; the cascade described in §4.2 is the blockdag layer's
// responsibility, not this package's.
func (c *Catalog) DeleteDefaultEntry(blockHash daghash.Hash) error {
	return c.delete(prefixDefault, blockHash[:])
}

// MsEntry is the ms table's value: the milestone's block hash together with
// the file positions of the level set it anchors.
type MsEntry struct {
	MilestoneHash daghash.Hash
	BlkPos        filestore.FilePos
	VtxPos        filestore.FilePos
}

func encodeFilePos(buf *bytes.Buffer, pos filestore.FilePos) {
	var tmp [12]byte
	binary.LittleEndian.PutUint32(tmp[0:4], pos.Epoch)
	binary.LittleEndian.PutUint32(tmp[4:8], pos.Name)
	binary.LittleEndian.PutUint32(tmp[8:12], pos.Offset)
	buf.Write(tmp[:])
}

func decodeFilePos(b []byte) (filestore.FilePos, error) {
	if len(b) != 12 {
		return filestore.FilePos{}, errors.New("malformed FilePos")
	}
	return filestore.FilePos{
		Epoch:  binary.LittleEndian.Uint32(b[0:4]),
		Name:   binary.LittleEndian.Uint32(b[4:8]),
		Offset: binary.LittleEndian.Uint32(b[8:12]),
	}, nil
}

func heightKey(height uint64) []byte {
	var key [8]byte
	binary.BigEndian.PutUint64(key[:], height)
	return key[:]
}

func encodeMsEntry(e MsEntry) []byte {
	var buf bytes.Buffer
	buf.Write(e.MilestoneHash[:])
	encodeFilePos(&buf, e.BlkPos)
	encodeFilePos(&buf, e.VtxPos)
	return buf.Bytes()
}

func decodeMsEntry(b []byte) (MsEntry, error) {
	if len(b) != daghash.HashSize+24 {
		return MsEntry{}, errors.New("malformed ms table entry")
	}
	var e MsEntry
	copy(e.MilestoneHash[:], b[:daghash.HashSize])
	blkPos, err := decodeFilePos(b[daghash.HashSize : daghash.HashSize+12])
	if err != nil {
		return MsEntry{}, err
	}
	vtxPos, err := decodeFilePos(b[daghash.HashSize+12 : daghash.HashSize+24])
	if err != nil {
		return MsEntry{}, err
	}
	e.BlkPos, e.VtxPos = blkPos, vtxPos
	return e, nil
}

// PutMsEntry records the level set anchored at height.
func (c *Catalog) PutMsEntry(height uint64, entry MsEntry) error {
	return c.put(prefixMs, heightKey(height), encodeMsEntry(entry))
}

// GetMsEntry looks up the level set anchored at height.
func (c *Catalog) GetMsEntry(height uint64) (MsEntry, error) {
	raw, err := c.get(prefixMs, heightKey(height))
	if err != nil {
		return MsEntry{}, err
	}
	return decodeMsEntry(raw)
}

// DeleteMsEntry removes the ms table entry for height, part of the cascade
// §4.2 requires when a milestone is deleted (reorg rollback).
func (c *Catalog) DeleteMsEntry(height uint64) error {
	return c.delete(prefixMs, heightKey(height))
}

// HighestMsHeight returns the greatest height recorded in the ms table, or
// ok=false if the table is empty.
func (c *Catalog) HighestMsHeight() (height uint64, ok bool) {
	cur := c.cursor(prefixMs)
	defer cur.Close()
	if !cur.it.Last() {
		return 0, false
	}
	return binary.BigEndian.Uint64(cur.Key()), true
}

// PutUTXO records (or overwrites) the UTXO addressed by key.
func (c *Catalog) PutUTXO(key, encodedUTXO []byte) error {
	return c.put(prefixUtxo, key, encodedUTXO)
}

// GetUTXO looks up the UTXO addressed by key.
func (c *Catalog) GetUTXO(key []byte) ([]byte, error) {
	return c.get(prefixUtxo, key)
}

// HasUTXO reports whether key names a live UTXO, without copying its value.
func (c *Catalog) HasUTXO(key []byte) (bool, error) {
	has, err := c.ldb.Has(prefixedKey(prefixUtxo, key), nil)
	if err != nil {
		return false, errors.Wrap(err, "leveldb has failed")
	}
	return has, nil
}

// DeleteUTXO removes the UTXO addressed by key (spent or rolled back).
func (c *Catalog) DeleteUTXO(key []byte) error {
	return c.delete(prefixUtxo, key)
}

// PutRegistration records peerChainHead's last registration hash.
func (c *Catalog) PutRegistration(peerChainHead daghash.Hash, lastRegistration daghash.Hash) error {
	return c.put(prefixReg, peerChainHead[:], lastRegistration[:])
}

// GetRegistration looks up peerChainHead's last registration hash.
func (c *Catalog) GetRegistration(peerChainHead daghash.Hash) (daghash.Hash, error) {
	raw, err := c.get(prefixReg, peerChainHead[:])
	if err != nil {
		return daghash.Hash{}, err
	}
	if len(raw) != daghash.HashSize {
		return daghash.Hash{}, errors.New("malformed reg table entry")
	}
	var h daghash.Hash
	copy(h[:], raw)
	return h, nil
}

// DeleteRegistration removes peerChainHead's registration record.
func (c *Catalog) DeleteRegistration(peerChainHead daghash.Hash) error {
	return c.delete(prefixReg, peerChainHead[:])
}

// PutInfo sets an arbitrary ASCII-named value: cursors, head height,
// chainwork, the miner's chain head, the schema version (§4.2).
func (c *Catalog) PutInfo(name string, value []byte) error {
	return c.put(prefixInfo, []byte(name), value)
}

// GetInfo looks up an info table entry by name.
func (c *Catalog) GetInfo(name string) ([]byte, error) {
	return c.get(prefixInfo, []byte(name))
}

// Batch accumulates a set of writes across tables to be applied atomically,
// mirroring the teacher's transaction-scoped Put/Delete (infrastructure/
// database/ffldb/transaction.go) without the full transactional Cursor and
// flat-file plumbing this package does not need: the flat files are owned
// by filestore, not by this index.
type Batch struct {
	c     *Catalog
	batch *leveldb.Batch
}

// NewBatch begins a new batch of writes.
func (c *Catalog) NewBatch() *Batch {
	return &Batch{c: c, batch: new(leveldb.Batch)}
}

// PutDefaultEntry stages a default table write.
func (b *Batch) PutDefaultEntry(blockHash daghash.Hash, entry DefaultEntry) {
	b.batch.Put(prefixedKey(prefixDefault, blockHash[:]), encodeDefaultEntry(entry))
}

// DeleteDefaultEntry stages a default table delete.
func (b *Batch) DeleteDefaultEntry(blockHash daghash.Hash) {
	b.batch.Delete(prefixedKey(prefixDefault, blockHash[:]))
}

// PutMsEntry stages an ms table write.
func (b *Batch) PutMsEntry(height uint64, entry MsEntry) {
	b.batch.Put(prefixedKey(prefixMs, heightKey(height)), encodeMsEntry(entry))
}

// DeleteMsEntry stages an ms table delete.
func (b *Batch) DeleteMsEntry(height uint64) {
	b.batch.Delete(prefixedKey(prefixMs, heightKey(height)))
}

// PutUTXO stages a utxo table write.
func (b *Batch) PutUTXO(key, encodedUTXO []byte) {
	b.batch.Put(prefixedKey(prefixUtxo, key), encodedUTXO)
}

// DeleteUTXO stages a utxo table delete.
func (b *Batch) DeleteUTXO(key []byte) {
	b.batch.Delete(prefixedKey(prefixUtxo, key))
}

// PutRegistration stages a reg table write.
func (b *Batch) PutRegistration(peerChainHead, lastRegistration daghash.Hash) {
	b.batch.Put(prefixedKey(prefixReg, peerChainHead[:]), lastRegistration[:])
}

// PutInfo stages an info table write.
func (b *Batch) PutInfo(name string, value []byte) {
	b.batch.Put(prefixedKey(prefixInfo, []byte(name)), value)
}

// Commit applies every staged write atomically.
func (b *Batch) Commit() error {
	if err := b.c.ldb.Write(b.batch, nil); err != nil {
		return errors.Wrap(err, "leveldb batch write failed")
	}
	return nil
}
