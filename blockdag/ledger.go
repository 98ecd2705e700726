// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockdag

import (
	"github.com/pkg/errors"

	"github.com/epic-project/epicd/txscript"
	"github.com/epic-project/epicd/util/daghash"
	"github.com/epic-project/epicd/wire"
)

// MaxOutputValue is the hard ceiling a single output's value must stay
// under (§4.4 rule 3).
const MaxOutputValue = 1 << 60

// TxKind classifies a transaction under §3's invariants.
type TxKind int

// TxKind values.
const (
	TxOrdinary TxKind = iota
	TxFirstRegistration
	TxRedemption
)

// ClassifyTx reports tx's kind by inspecting its input/output shape, without
// consulting the ledger (§3): a single unconnected input with a zero
// producing-block hash and a single zero-value output is a first
// registration; a single unconnected input with any other producing-block
// hash (naming the peer chain's previous registration anchor) and a single
// output is a redemption; anything else is ordinary.
func ClassifyTx(tx *wire.MsgTx) TxKind {
	if len(tx.TxIn) == 1 && len(tx.TxOut) == 1 && tx.TxIn[0].PreviousOutpoint.IsUnconnected() {
		anchor := tx.TxIn[0].PreviousOutpoint.ProducingBlockHash
		if anchor == (daghash.Hash{}) && tx.TxOut[0].Value == 0 {
			return TxFirstRegistration
		}
		return TxRedemption
	}
	return TxOrdinary
}

// ValidationContext carries the per-milestone parameters ledger validation
// needs beyond the UTXO snapshot itself: the minimum fee, the cumulative
// reward credited to the block under validation, and — for a first
// registration — whether its block's prev parent is GENESIS.
type ValidationContext struct {
	MinFee           uint64
	CumulativeReward uint64
	PrevIsGenesis    bool
	IsFirstTxOfBlock bool

	// PeerChainAnchor resolves the previous registration hash recorded for
	// a peer chain, used to validate a redemption's anchor (§3). ok is
	// false if the peer chain has no registration yet.
	PeerChainAnchor func(peerChainHead daghash.Hash) (hash daghash.Hash, ok bool)
}

// ValidateTx checks tx for ledger-validity under set in the given context
// (§4.4). On success for an ordinary transaction it also returns the total
// fee paid; registrations return fee zero.
func ValidateTx(tx *wire.MsgTx, set *UTXOSet, ctx ValidationContext) (fee uint64, err error) {
	switch ClassifyTx(tx) {
	case TxFirstRegistration:
		return 0, validateFirstRegistration(tx, ctx)
	case TxRedemption:
		return 0, validateRedemption(tx, ctx)
	default:
		return validateOrdinary(tx, set, ctx)
	}
}

func validateFirstRegistration(tx *wire.MsgTx, ctx ValidationContext) error {
	if !ctx.PrevIsGenesis {
		return errors.New("blockdag: first registration must be the first tx of a block whose prev is GENESIS")
	}
	if !ctx.IsFirstTxOfBlock {
		return errors.New("blockdag: first registration must be the block's first transaction")
	}
	if tx.TxOut[0].Value != 0 {
		return errors.New("blockdag: first registration output must carry zero value")
	}
	return nil
}

func validateRedemption(tx *wire.MsgTx, ctx ValidationContext) error {
	out := tx.TxOut[0]
	if out.Value > ctx.CumulativeReward {
		return errors.New("blockdag: redemption output exceeds cumulative reward")
	}

	anchor := tx.TxIn[0].PreviousOutpoint.ProducingBlockHash
	if ctx.PeerChainAnchor == nil {
		return errors.New("blockdag: no peer-chain anchor lookup available for redemption")
	}
	lastRegistration, ok := ctx.PeerChainAnchor(anchor)
	if !ok || lastRegistration != anchor {
		return errors.New("blockdag: redemption anchor does not match the peer chain's previous registration")
	}
	return nil
}

func validateOrdinary(tx *wire.MsgTx, set *UTXOSet, ctx ValidationContext) (uint64, error) {
	if len(tx.TxIn) == 0 {
		return 0, errors.New("blockdag: ordinary transaction must have at least one input")
	}

	seen := make(map[wire.Outpoint]bool, len(tx.TxIn))
	var totalIn, totalOut uint64

	entries := make([]*UTXOEntry, len(tx.TxIn))
	for i, in := range tx.TxIn {
		op := in.PreviousOutpoint
		if op.IsUnconnected() {
			return 0, errors.New("blockdag: ordinary transaction input must be connected")
		}
		if seen[op] {
			return 0, errors.New("blockdag: duplicate input outpoint within transaction")
		}
		seen[op] = true

		key := UTXOKey(op.ProducingBlockHash, op.TxIndex, op.OutIndex)
		entry, ok := set.Lookup(key)
		if !ok {
			return 0, errors.Errorf("blockdag: input outpoint %v has no UTXO", op)
		}
		entries[i] = entry

		if totalIn+entry.Output.Value < totalIn {
			return 0, errors.New("blockdag: input value overflow")
		}
		totalIn += entry.Output.Value
	}

	for _, out := range tx.TxOut {
		if out.Value >= MaxOutputValue {
			return 0, errors.New("blockdag: output value exceeds ceiling")
		}
		if totalOut+out.Value < totalOut {
			return 0, errors.New("blockdag: output value overflow")
		}
		totalOut += out.Value
	}

	if totalOut > totalIn {
		return 0, errors.New("blockdag: outputs exceed inputs")
	}
	fee := totalIn - totalOut
	if fee < ctx.MinFee {
		return 0, errors.Errorf("blockdag: fee %d below minimum %d", fee, ctx.MinFee)
	}

	for i, in := range tx.TxIn {
		if err := txscript.Verify(&entries[i].Output.Listing, &in.Listing); err != nil {
			return 0, errors.Wrapf(err, "blockdag: input %d predicate failed", i)
		}
	}

	return fee, nil
}

// ApplyTx mutates set to reflect tx's effect once it has been validated
// (§4.4): ordinary inputs are spent, every output becomes a new UTXO keyed
// by (producingBlockHash, txIndex, outIndex).
func ApplyTx(tx *wire.MsgTx, txIndex uint32, producingBlockHash daghash.Hash, set *UTXOSet) error {
	if ClassifyTx(tx) == TxOrdinary {
		for _, in := range tx.TxIn {
			op := in.PreviousOutpoint
			set.Spend(UTXOKey(op.ProducingBlockHash, op.TxIndex, op.OutIndex))
		}
	}
	for outIdx, out := range tx.TxOut {
		key := UTXOKey(producingBlockHash, txIndex, uint32(outIdx))
		set.Add(key, &UTXOEntry{
			Output:           *out,
			ProducingTxIndex: txIndex,
			ProducingOutIdx:  uint32(outIdx),
		})
	}
	return nil
}
