// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package pow

import (
	"math/big"
	"time"

	"github.com/epic-project/epicd/util/daghash"
)

// compactTargetBits is the width of the compact form's mantissa.
const compactTargetBits = 24

// CompactToBig converts a compact-form target (the Bitcoin-style 32-bit
// mantissa/exponent representation named in §4.3/§6) into its full big.Int
// value.
func CompactToBig(compact uint32) *big.Int {
	mantissa := compact & 0x007fffff
	isNegative := compact&0x00800000 != 0
	exponent := uint(compact >> 24)

	var bn *big.Int
	if exponent <= 3 {
		mantissa >>= 8 * (3 - exponent)
		bn = big.NewInt(int64(mantissa))
	} else {
		bn = big.NewInt(int64(mantissa))
		bn.Lsh(bn, 8*(exponent-3))
	}

	if isNegative {
		bn = bn.Neg(bn)
	}
	return bn
}

// BigToCompact converts a big.Int target into its compact form.
func BigToCompact(n *big.Int) uint32 {
	if n.Sign() == 0 {
		return 0
	}

	var mantissa uint32
	exponent := uint(len(n.Bytes()))

	if exponent <= 3 {
		mantissa = uint32(n.Bits()[0])
		mantissa <<= 8 * (3 - exponent)
	} else {
		tn := new(big.Int).Set(n)
		mantissa = uint32(tn.Rsh(tn, 8*(exponent-3)).Bits()[0])
	}

	if mantissa&0x00800000 != 0 {
		mantissa >>= 8
		exponent++
	}

	compact := uint32(exponent<<24) | mantissa
	if n.Sign() < 0 {
		compact |= 0x00800000
	}
	return compact
}

// CalcWork returns the work value, the measure of total combined proof of
// work, for the passed compact difficulty bits: `max_target / target` as
// named in §3/§4.3's chainwork accumulator.
func CalcWork(maxTarget *big.Int, bits uint32) *big.Int {
	target := CompactToBig(bits)
	if target.Sign() <= 0 {
		return big.NewInt(0)
	}
	return new(big.Int).Div(maxTarget, target)
}

// Retarget recomputes the block/milestone target to keep the observed
// milestone spacing at targetTimespan (§4.3): given the timestamps of the
// first and last milestone in the last `interval` window and the previous
// target, it returns the new compact target, clamped to powLimit.
func Retarget(firstTimestamp, lastTimestamp time.Time, targetTimespan time.Duration, oldBits uint32, powLimit *big.Int) uint32 {
	actualTimespan := lastTimestamp.Sub(firstTimestamp)

	minTimespan := targetTimespan / 4
	maxTimespan := targetTimespan * 4
	if actualTimespan < minTimespan {
		actualTimespan = minTimespan
	} else if actualTimespan > maxTimespan {
		actualTimespan = maxTimespan
	}

	oldTarget := CompactToBig(oldBits)
	newTarget := new(big.Int).Mul(oldTarget, big.NewInt(int64(actualTimespan)))
	newTarget.Div(newTarget, big.NewInt(int64(targetTimespan)))

	if newTarget.Cmp(powLimit) > 0 {
		newTarget = powLimit
	}
	return BigToCompact(newTarget)
}

// HashToBig converts a hash into a big.Int usable in target comparisons,
// treating the hash's bytes as big-endian — the reverse of their
// little-endian wire/disk order (§3).
func HashToBig(hash *daghash.Hash) *big.Int {
	buf := *hash
	blen := len(buf)
	for i := 0; i < blen/2; i++ {
		buf[i], buf[blen-1-i] = buf[blen-1-i], buf[i]
	}
	return new(big.Int).SetBytes(buf[:])
}

// MeetsTarget reports whether hash's numeric value is at or below the
// target named by the compact difficulty bits — the condition a milestone
// candidate's block hash must satisfy against the milestone target (§9
// GLOSSARY: "a block whose PoW meets the milestone target").
func MeetsTarget(hash *daghash.Hash, bits uint32) bool {
	return HashToBig(hash).Cmp(CompactToBig(bits)) <= 0
}
