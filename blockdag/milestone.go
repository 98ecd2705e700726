// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockdag

import (
	"math/big"

	"github.com/epic-project/epicd/util/daghash"
)

// Milestone is the per-milestone snapshot owned by its vertex (§3): its
// height, accumulated chainwork, current block/milestone PoW targets, the
// observed hash rate, the level set it anchors (milestone first) and the
// RegChange delta applied since the previous milestone.
type Milestone struct {
	Height          uint64
	Chainwork       *big.Int
	BlockTarget     uint32
	MilestoneTarget uint32
	HashRate        float64
	LastUpdateTime  int64

	// LevelSet holds the hashes of every block this milestone confirms,
	// the milestone itself first (§3, §4.7's topological-sort contract).
	LevelSet []daghash.Hash

	RegChange RegChange
}

// NewGenesisMilestone returns the Milestone snapshot for the network's
// GENESIS block: height zero, zero chainwork, the network's PoW limit as
// both targets, and a single-block level set.
func NewGenesisMilestone(genesisHash daghash.Hash, powLimitBits uint32) *Milestone {
	return &Milestone{
		Height:          0,
		Chainwork:       big.NewInt(0),
		BlockTarget:     powLimitBits,
		MilestoneTarget: powLimitBits,
		LevelSet:        []daghash.Hash{genesisHash},
	}
}
