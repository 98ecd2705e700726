// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockdag

import (
	"sort"

	"github.com/epic-project/epicd/util/daghash"
	"github.com/epic-project/epicd/wire"
)

// TopSort orders blocks (keyed by hash) into the level-set order §4.7
// specifies: Kahn's algorithm over the subgraph induced by the given block
// set, with edges directed parent -> child across the three parent hashes
// (milestone, prev, tip); ties among simultaneously-ready blocks are broken
// by ascending block hash, except that milestoneHash is always placed
// first regardless of degree.
//
// Parent hashes outside the given set (i.e. already anchored by an earlier
// milestone) are treated as already-satisfied and do not gate release.
func TopSort(blocks map[daghash.Hash]*wire.MsgBlock, milestoneHash daghash.Hash) []daghash.Hash {
	indegree := make(map[daghash.Hash]int, len(blocks))
	children := make(map[daghash.Hash][]daghash.Hash, len(blocks))

	for hash, blk := range blocks {
		for _, parent := range parentHashes(blk) {
			if parent == (daghash.Hash{}) {
				continue
			}
			if _, inSet := blocks[parent]; !inSet {
				continue
			}
			indegree[hash]++
			children[parent] = append(children[parent], hash)
		}
	}

	ready := make([]daghash.Hash, 0, len(blocks))
	for hash := range blocks {
		if indegree[hash] == 0 && hash != milestoneHash {
			ready = append(ready, hash)
		}
	}
	sortHashes(ready)

	order := make([]daghash.Hash, 0, len(blocks))
	if _, ok := blocks[milestoneHash]; ok {
		order = append(order, milestoneHash)
		releaseChildren(milestoneHash, children, indegree, &ready)
		sortHashes(ready)
	}

	for len(ready) > 0 {
		next := ready[0]
		ready = ready[1:]
		order = append(order, next)
		releaseChildren(next, children, indegree, &ready)
		sortHashes(ready)
	}

	return order
}

func releaseChildren(hash daghash.Hash, children map[daghash.Hash][]daghash.Hash, indegree map[daghash.Hash]int, ready *[]daghash.Hash) {
	for _, child := range children[hash] {
		indegree[child]--
		if indegree[child] == 0 {
			*ready = append(*ready, child)
		}
	}
}

func sortHashes(hashes []daghash.Hash) {
	sort.Slice(hashes, func(i, j int) bool {
		return hashes[i].Less(&hashes[j])
	})
}

// parentHashes returns blk's three parent edges (milestone, prev, tip), in
// that order (§3).
func parentHashes(blk *wire.MsgBlock) [3]daghash.Hash {
	h := blk.Header
	return [3]daghash.Hash{h.MilestoneHash, h.PrevHash, h.TipHash}
}
