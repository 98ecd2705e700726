// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockdag

import (
	"testing"

	"github.com/epic-project/epicd/params"
	"github.com/epic-project/epicd/util/daghash"
	"github.com/epic-project/epicd/wire"
)

func newTestChain(t *testing.T) (*Chain, daghash.Hash) {
	t.Helper()
	p := &params.MainNetParams
	genesisHash := *p.GenesisHash
	arena := NewArena()
	genesisMilestone := NewGenesisMilestone(genesisHash, p.PowLimitBits)
	return NewChain(p, arena, genesisMilestone, nil), genesisHash
}

func firstRegBlock(genesisHash daghash.Hash) *wire.MsgBlock {
	return &wire.MsgBlock{
		Header: wire.BlockHeader{
			MilestoneHash: genesisHash,
			PrevHash:      genesisHash,
			TipHash:       genesisHash,
		},
		Transactions: []*wire.MsgTx{{
			Version: 1,
			TxIn: []*wire.TxIn{{
				PreviousOutpoint: wire.Outpoint{TxIndex: wire.UnconnectedIndex, OutIndex: wire.UnconnectedIndex},
			}},
			TxOut: []*wire.TxOut{{Value: 0}},
		}},
	}
}

// TestOnMilestoneTracksFirstRegistration confirms that a level set
// containing only a valid first registration reports the tx as VALID and
// names its own block as newly registered, per the scenario where a
// registration vertex starts out NOT_YET redeemed.
func TestOnMilestoneTracksFirstRegistration(t *testing.T) {
	chain, genesisHash := newTestChain(t)
	block := firstRegBlock(genesisHash)
	hash, err := block.BlockHash()
	if err != nil {
		t.Fatalf("BlockHash: %v", err)
	}

	result, err := chain.OnMilestone(hash, block, 0)
	if err != nil {
		t.Fatalf("OnMilestone: %v", err)
	}

	validity := result.Validity[hash]
	if len(validity) != 1 || validity[0] != ValidityValid {
		t.Fatalf("got validity %v, want [ValidityValid]", validity)
	}
	if len(result.NewlyRegistered) != 1 || result.NewlyRegistered[0] != hash {
		t.Fatalf("got NewlyRegistered %v, want [%s]", result.NewlyRegistered, hash)
	}
	if len(result.Redeemed) != 0 {
		t.Fatalf("got Redeemed %v, want none", result.Redeemed)
	}
}

// TestOnMilestoneTracksRedemption confirms that a valid redemption
// consuming a prior registration's anchor is reported against that exact
// anchor hash, so the DAG can flip the anchor vertex to IS_REDEEMED.
func TestOnMilestoneTracksRedemption(t *testing.T) {
	chain, genesisHash := newTestChain(t)
	regBlock := firstRegBlock(genesisHash)
	regHash, err := regBlock.BlockHash()
	if err != nil {
		t.Fatalf("BlockHash: %v", err)
	}
	if _, err := chain.OnMilestone(regHash, regBlock, 0); err != nil {
		t.Fatalf("OnMilestone (registration): %v", err)
	}

	redemptionBlock := &wire.MsgBlock{
		Header: wire.BlockHeader{
			MilestoneHash: regHash,
			PrevHash:      regHash,
			TipHash:       regHash,
		},
		Transactions: []*wire.MsgTx{{
			Version: 1,
			TxIn: []*wire.TxIn{{
				PreviousOutpoint: wire.Outpoint{
					ProducingBlockHash: regHash,
					TxIndex:            wire.UnconnectedIndex,
					OutIndex:           wire.UnconnectedIndex,
				},
			}},
			TxOut: []*wire.TxOut{{Value: 1}},
		}},
	}
	redemptionHash, err := redemptionBlock.BlockHash()
	if err != nil {
		t.Fatalf("BlockHash: %v", err)
	}

	result, err := chain.OnMilestone(redemptionHash, redemptionBlock, 0)
	if err != nil {
		t.Fatalf("OnMilestone (redemption): %v", err)
	}

	validity := result.Validity[redemptionHash]
	if len(validity) != 1 || validity[0] != ValidityValid {
		t.Fatalf("got validity %v, want [ValidityValid]", validity)
	}
	if len(result.Redeemed) != 1 || result.Redeemed[0] != regHash {
		t.Fatalf("got Redeemed %v, want [%s]", result.Redeemed, regHash)
	}
}

// TestOnMilestoneRejectsRedemptionWithWrongAnchor confirms the anchor
// invariant is enforced: a redemption naming a hash that was never
// registered fails ledger validation and is marked INVALID rather than
// silently spending the peer chain's anchor.
func TestOnMilestoneRejectsRedemptionWithWrongAnchor(t *testing.T) {
	chain, genesisHash := newTestChain(t)

	redemptionBlock := &wire.MsgBlock{
		Header: wire.BlockHeader{
			MilestoneHash: genesisHash,
			PrevHash:      genesisHash,
			TipHash:       genesisHash,
		},
		Transactions: []*wire.MsgTx{{
			Version: 1,
			TxIn: []*wire.TxIn{{
				PreviousOutpoint: wire.Outpoint{
					ProducingBlockHash: daghash.Hash{0xff},
					TxIndex:            wire.UnconnectedIndex,
					OutIndex:           wire.UnconnectedIndex,
				},
			}},
			TxOut: []*wire.TxOut{{Value: 1}},
		}},
	}
	hash, err := redemptionBlock.BlockHash()
	if err != nil {
		t.Fatalf("BlockHash: %v", err)
	}

	result, err := chain.OnMilestone(hash, redemptionBlock, 0)
	if err != nil {
		t.Fatalf("OnMilestone: %v", err)
	}

	validity := result.Validity[hash]
	if len(validity) != 1 || validity[0] != ValidityInvalid {
		t.Fatalf("got validity %v, want [ValidityInvalid]", validity)
	}
	if len(result.Redeemed) != 0 {
		t.Fatalf("got Redeemed %v, want none", result.Redeemed)
	}
}
