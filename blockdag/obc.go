// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockdag

import (
	"github.com/pkg/errors"

	"github.com/epic-project/epicd/util/daghash"
	"github.com/epic-project/epicd/wire"
)

// missingMask bits name which of a block's three parent edges are absent
// from the DAG (§4.6).
type missingMask uint8

const (
	missingMilestone missingMask = 1 << iota
	missingPrev
	missingTip
)

// DefaultMaxOrphans bounds the number of blocks the OBC holds at once
// (§5's resource-model concern "no unbounded network-fed buffer"); beyond
// this, Insert evicts the oldest-inserted orphan to make room, the same
// oldest-first discipline the teacher's orphan pool applies
// (blockdag/orphanblock.go's maxOrphanBlocks/limitNumOrphans).
const DefaultMaxOrphans = 10000

// orphanEntry is one block buffered in the OBC pending one or more parents.
type orphanEntry struct {
	block *wire.MsgBlock
	mask  missingMask
}

// OrphanBuffer is the two-level index described in §4.6: block hash ->
// missing-parent bitmask, and missing-parent hash -> set of dependent
// blocks. Grounded on the teacher's orphan pool (blockdag/orphanblock.go's
// intent, reworked around this system's three-parent model instead of a
// single prev pointer).
type OrphanBuffer struct {
	maxEntries int
	entries    map[daghash.Hash]*orphanEntry
	waiting    map[daghash.Hash]map[daghash.Hash]bool
	order      []daghash.Hash // insertion order, oldest first, for eviction
}

// NewOrphanBuffer returns an empty OBC capped at DefaultMaxOrphans entries.
func NewOrphanBuffer() *OrphanBuffer {
	return NewOrphanBufferWithCapacity(DefaultMaxOrphans)
}

// NewOrphanBufferWithCapacity returns an empty OBC capped at maxEntries.
func NewOrphanBufferWithCapacity(maxEntries int) *OrphanBuffer {
	return &OrphanBuffer{
		maxEntries: maxEntries,
		entries:    make(map[daghash.Hash]*orphanEntry),
		waiting:    make(map[daghash.Hash]map[daghash.Hash]bool),
	}
}

// Insert buffers block under hash with the given missing-parent mask. A
// zero mask is a programming error: the caller must not insert a block that
// is already solid (§4.6). If the buffer is at capacity, the oldest-inserted
// orphan is evicted first.
func (o *OrphanBuffer) Insert(hash daghash.Hash, block *wire.MsgBlock, mask missingMask) error {
	if mask == 0 {
		return errors.New("blockdag: OBC insert with no missing parent is a programming error")
	}
	if o.maxEntries > 0 && len(o.entries) >= o.maxEntries {
		o.evictOldest()
	}

	o.entries[hash] = &orphanEntry{block: block, mask: mask}
	o.order = append(o.order, hash)

	header := block.Header
	if mask&missingMilestone != 0 {
		o.index(header.MilestoneHash, hash)
	}
	if mask&missingPrev != 0 {
		o.index(header.PrevHash, hash)
	}
	if mask&missingTip != 0 {
		o.index(header.TipHash, hash)
	}
	return nil
}

// evictOldest drops the oldest entry still present, skipping any hashes
// already removed by Release.
func (o *OrphanBuffer) evictOldest() {
	for len(o.order) > 0 {
		hash := o.order[0]
		o.order = o.order[1:]

		entry, ok := o.entries[hash]
		if !ok {
			continue
		}
		delete(o.entries, hash)

		header := entry.block.Header
		if entry.mask&missingMilestone != 0 {
			o.unindex(header.MilestoneHash, hash)
		}
		if entry.mask&missingPrev != 0 {
			o.unindex(header.PrevHash, hash)
		}
		if entry.mask&missingTip != 0 {
			o.unindex(header.TipHash, hash)
		}
		return
	}
}

func (o *OrphanBuffer) index(parent, child daghash.Hash) {
	set, ok := o.waiting[parent]
	if !ok {
		set = make(map[daghash.Hash]bool)
		o.waiting[parent] = set
	}
	set[child] = true
}

func (o *OrphanBuffer) unindex(parent, child daghash.Hash) {
	set, ok := o.waiting[parent]
	if !ok {
		return
	}
	delete(set, child)
	if len(set) == 0 {
		delete(o.waiting, parent)
	}
}

// Release notifies the OBC that hash has become solid, clearing the
// corresponding bit on every block waiting for it. Returns the blocks that
// became fully solid as a result, in arrival (insertion) order.
func (o *OrphanBuffer) Release(hash daghash.Hash) []*wire.MsgBlock {
	waiters, ok := o.waiting[hash]
	if !ok {
		return nil
	}
	delete(o.waiting, hash)

	var released []*wire.MsgBlock
	for _, child := range o.order {
		if !waiters[child] {
			continue
		}
		entry, ok := o.entries[child]
		if !ok {
			continue
		}
		header := entry.block.Header
		if header.MilestoneHash == hash {
			entry.mask &^= missingMilestone
		}
		if header.PrevHash == hash {
			entry.mask &^= missingPrev
		}
		if header.TipHash == hash {
			entry.mask &^= missingTip
		}
		if entry.mask == 0 {
			delete(o.entries, child)
			released = append(released, entry.block)
		}
	}
	return released
}

// Has reports whether hash names a block currently buffered in the OBC.
func (o *OrphanBuffer) Has(hash daghash.Hash) bool {
	_, ok := o.entries[hash]
	return ok
}

// Len reports the number of blocks currently buffered.
func (o *OrphanBuffer) Len() int {
	return len(o.entries)
}
