// Copyright (c) 2014-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package params carries the per-network constants the rest of epicd is
// parameterized over: PoW limits, retarget cadence, the genesis block, the
// wire magic and the address version bytes. Parsing these out of a config
// file or CLI flag is out of scope (§1); callers build a *Params value and
// pass it down.
package params

import (
	"math/big"
	"time"

	"github.com/epic-project/epicd/util/address"
	"github.com/epic-project/epicd/util/daghash"
	"github.com/epic-project/epicd/wire"
)

// Magic identifies a network on the wire (§4.9, §6).
type Magic uint32

// Network magics.
const (
	MainNet Magic = 0xd9b4bef9
	TestNet Magic = 0x0709110b
	SimNet  Magic = 0x12141c16
)

// Params groups every network-dependent constant.
type Params struct {
	Name        string
	Net         Magic
	DefaultPort string

	// GenesisHash is the network's genesis block identifier; it seeds every
	// chain's milestone cache. Populated at package init from genesisBlock.
	GenesisHash *daghash.Hash

	// genesisBlock is the constructed genesis block GenesisHash is derived
	// from; see GenesisBlock.
	genesisBlock *wire.MsgBlock

	// PowLimit is the highest (easiest) block target allowed on this
	// network, expressed as a big.Int; PowLimitBits is its compact form.
	PowLimit     *big.Int
	PowLimitBits uint32

	// Cuckaroo parameters (§4.3).
	EdgeBits  uint
	ProofSize int

	// RetargetInterval is the number of milestones between difficulty
	// retargets (§4.3's "interval", default 5).
	RetargetInterval int64
	// TargetTimespan is the desired wall-clock time for RetargetInterval
	// milestones.
	TargetTimespan time.Duration
	// TargetTimePerBlock is the desired spacing between milestones.
	TargetTimePerBlock time.Duration

	// CachedWindow is the configured milestone cache size (§3, default 100).
	// No package reads it: chains keep every milestone snapshot in memory
	// and never flush them to the file store.
	CachedWindow int

	// MinFee is the minimum fee an ordinary transaction must pay (§3).
	MinFee uint64

	// MaxBlockSize bounds a block's encoded size (§8 boundary behavior).
	MaxBlockSize uint32

	// Address encoding version bytes (§6).
	AddressParams *address.Params
}

// MaxTarget returns the network's PowLimit, used as max_target by the
// chainwork accumulator (`chainwork += max_target / target`).
func (p *Params) MaxTarget() *big.Int {
	return p.PowLimit
}

// MainNetParams defines the parameters for the main network.
var MainNetParams = Params{
	Name:               "mainnet",
	Net:                MainNet,
	DefaultPort:        "9791",
	PowLimit:           powLimit(255),
	EdgeBits:           29,
	ProofSize:          42,
	RetargetInterval:   5,
	TargetTimespan:     time.Hour,
	TargetTimePerBlock: 12 * time.Second,
	CachedWindow:       100,
	MinFee:             1000,
	MaxBlockSize:       20000,
	AddressParams: &address.Params{
		PubKeyAddrID:   0x00,
		SecretKeyID:    0x80,
		ExtPubKeyID:    [4]byte{0x04, 0x88, 0xb2, 0x1e},
		ExtSecretKeyID: [4]byte{0x04, 0x88, 0xad, 0xe4},
	},
}

// TestNetParams defines the parameters for the test network.
var TestNetParams = Params{
	Name:               "testnet",
	Net:                TestNet,
	DefaultPort:        "19791",
	PowLimit:           powLimit(239),
	EdgeBits:           29,
	ProofSize:          42,
	RetargetInterval:   5,
	TargetTimespan:     time.Hour,
	TargetTimePerBlock: 12 * time.Second,
	CachedWindow:       100,
	MinFee:             1000,
	MaxBlockSize:       20000,
	AddressParams: &address.Params{
		PubKeyAddrID:   0x6f,
		SecretKeyID:    0xef,
		ExtPubKeyID:    [4]byte{0x04, 0x35, 0x87, 0xcf},
		ExtSecretKeyID: [4]byte{0x04, 0x35, 0x83, 0x94},
	},
}

// SimNetParams defines the parameters for a local simulation network with a
// trivial PoW limit, suitable for tests and the miner's unit tests.
var SimNetParams = Params{
	Name:               "simnet",
	Net:                SimNet,
	DefaultPort:        "19051",
	PowLimit:           powLimit(239),
	EdgeBits:           19,
	ProofSize:          42,
	RetargetInterval:   5,
	TargetTimespan:     time.Minute,
	TargetTimePerBlock: time.Second,
	CachedWindow:       100,
	MinFee:             1,
	MaxBlockSize:       20000,
	AddressParams: &address.Params{
		PubKeyAddrID:   0x3f,
		SecretKeyID:    0x64,
		ExtPubKeyID:    [4]byte{0x04, 0x20, 0xb9, 0x00},
		ExtSecretKeyID: [4]byte{0x04, 0x20, 0xb9, 0x03},
	},
}

func powLimit(bit uint) *big.Int {
	return new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), bit), big.NewInt(1))
}
