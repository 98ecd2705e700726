// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockdag

import (
	"github.com/pkg/errors"

	"github.com/epic-project/epicd/util/daghash"
)

// ForkContainer is the set of candidate chains with a tracked best pointer
// (§4.5): max chainwork, tie-broken by ascending tip hash. Erasing the best
// is forbidden; it can only be displaced by inserting a new chain whose
// chainwork strictly exceeds it, or whose chainwork ties and whose tip hash
// sorts lower.
type ForkContainer struct {
	chains map[daghash.Hash]*Chain // keyed by tip milestone hash
	best   daghash.Hash
}

// NewForkContainer returns a fork container seeded with a single chain,
// which becomes best by definition.
func NewForkContainer(genesisTipHash daghash.Hash, genesis *Chain) *ForkContainer {
	return &ForkContainer{
		chains: map[daghash.Hash]*Chain{genesisTipHash: genesis},
		best:   genesisTipHash,
	}
}

// Best returns the current main chain.
func (f *ForkContainer) Best() *Chain {
	return f.chains[f.best]
}

// BestTipHash returns the main chain's tip milestone hash.
func (f *ForkContainer) BestTipHash() daghash.Hash {
	return f.best
}

// Get looks up the chain whose tip milestone hash is tipHash.
func (f *ForkContainer) Get(tipHash daghash.Hash) (*Chain, bool) {
	c, ok := f.chains[tipHash]
	return c, ok
}

// Insert adds chain under the given new tip hash (replacing the entry
// previously keyed by oldTipHash, if any — a chain extended by one more
// milestone is re-keyed rather than duplicated), and promotes it to best if
// its chainwork exceeds best's, or ties with best and its hash sorts lower
// (§4.5). Reports whether a main-chain switch occurred.
func (f *ForkContainer) Insert(oldTipHash, newTipHash daghash.Hash, chain *Chain) (switchedMain bool) {
	if oldTipHash != newTipHash {
		delete(f.chains, oldTipHash)
	}
	f.chains[newTipHash] = chain

	current, hasBest := f.chains[f.best]
	if !hasBest {
		f.best = newTipHash
		return true
	}

	cmp := chain.Chainwork().Cmp(current.Chainwork())
	if cmp > 0 || (cmp == 0 && newTipHash.Less(&f.best)) {
		f.best = newTipHash
		return true
	}
	return false
}

// Erase removes the chain keyed by tipHash. Erasing the current best is a
// programming error (§4.5): the caller must switch main first via Insert.
func (f *ForkContainer) Erase(tipHash daghash.Hash) error {
	if tipHash == f.best {
		return errors.New("blockdag: erasing the best chain is a programming error")
	}
	delete(f.chains, tipHash)
	return nil
}

// Len reports the number of candidate chains currently tracked.
func (f *ForkContainer) Len() int {
	return len(f.chains)
}
