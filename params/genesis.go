package params

import (
	"github.com/epic-project/epicd/pow"
	"github.com/epic-project/epicd/util/daghash"
	"github.com/epic-project/epicd/wire"
)

// genesisTimestamp is the fixed creation time stamped into every network's
// genesis header. A constant avoids each network computing a different
// GenesisHash across builds.
const genesisTimestamp = 1735689600 // 2025-01-01T00:00:00Z

// newGenesisBlock builds the canonical genesis block for a network: all
// three parent edges zeroed (§3's GENESIS case), no transactions, and an
// empty proof vector. Genesis is injected directly by blockdag.NewDAG
// rather than run through ProcessBlock, so it carries no real Cuckaroo
// solution (nonce is left at zero; bits is the network's PowLimitBits).
func newGenesisBlock(bits uint32) *wire.MsgBlock {
	header := wire.NewBlockHeader(
		wire.BlockVersion,
		&daghash.ZeroHash,
		&daghash.ZeroHash,
		&daghash.ZeroHash,
		&daghash.ZeroHash,
		genesisTimestamp,
		bits,
	)
	return &wire.MsgBlock{
		Header:       *header,
		Proof:        nil,
		Transactions: nil,
	}
}

// mustGenesisHash computes b's identifier, panicking on failure; block
// hashing only fails on an encoder error, which a fixed, valid genesis
// block can never trigger.
func mustGenesisHash(b *wire.MsgBlock) *daghash.Hash {
	hash, err := b.BlockHash()
	if err != nil {
		panic(err)
	}
	return &hash
}

func init() {
	for _, p := range []*Params{&MainNetParams, &TestNetParams, &SimNetParams} {
		p.PowLimitBits = pow.BigToCompact(p.PowLimit)
		block := newGenesisBlock(p.PowLimitBits)
		p.genesisBlock = block
		p.GenesisHash = mustGenesisHash(block)
	}
}

// GenesisBlock returns the network's genesis block, the value callers pass
// to blockdag.NewDAG alongside this Params.
func (p *Params) GenesisBlock() *wire.MsgBlock {
	return p.genesisBlock
}
