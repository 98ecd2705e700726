// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package pow

import "github.com/pkg/errors"

// FailureKind enumerates why a candidate proof was rejected, mirroring
// cuckaroo.h's verify_code enum (§4.3).
type FailureKind int

// Failure kinds, in the order the reference verifier checks them.
const (
	OK FailureKind = iota
	TooBig
	TooSmall
	NonMatching
	Branch
	DeadEnd
	ShortCycle
)

func (k FailureKind) String() string {
	switch k {
	case OK:
		return "ok"
	case TooBig:
		return "edge too big"
	case TooSmall:
		return "edges not ascending"
	case NonMatching:
		return "endpoints don't match up"
	case Branch:
		return "branch in cycle"
	case DeadEnd:
		return "cycle dead ends"
	case ShortCycle:
		return "cycle too short"
	default:
		return "unknown"
	}
}

// VerifyError reports a failed proof verification, carrying the structured
// FailureKind alongside a human-readable message.
type VerifyError struct {
	Kind FailureKind
}

func (e *VerifyError) Error() string {
	return "cuckaroo: " + e.Kind.String()
}

// Verify checks that proof is a valid Cuckaroo cycle of params.ProofSize
// edges in the graph keyed by keys. proof must be sorted ascending; this is
// itself part of what is verified, not a precondition the caller must
// establish (cuckaroo.cpp's VerifyProof, ported directly).
func Verify(params Params, proof []uint32, keys SiphashKeys) error {
	if len(proof) != params.ProofSize {
		return errors.Errorf("cuckaroo: proof has %d edges, want %d", len(proof), params.ProofSize)
	}

	var xor0, xor1 uint64
	uvs := make([]uint64, 2*params.ProofSize)

	for n, e := range proof {
		edge := uint64(e)
		if edge > params.EdgeMask() {
			return &VerifyError{Kind: TooBig}
		}
		if n > 0 && edge <= uint64(proof[n-1]) {
			return &VerifyError{Kind: TooSmall}
		}

		value := edgeValue(keys, edge)
		u, v := endpoints(params, value)
		uvs[2*n] = u
		uvs[2*n+1] = v
		xor0 ^= u
		xor1 ^= v
	}

	if xor0|xor1 != 0 {
		return &VerifyError{Kind: NonMatching}
	}

	n, i := 0, 0
	for {
		j := i
		for k := (i + 2) % len(uvs); k != i; k = (k + 2) % len(uvs) {
			if uvs[k] == uvs[i] {
				if j != i {
					return &VerifyError{Kind: Branch}
				}
				j = k
			}
		}
		if j == i {
			return &VerifyError{Kind: DeadEnd}
		}

		i = j ^ 1
		n++
		if i == 0 {
			break
		}
	}

	if n != params.ProofSize {
		return &VerifyError{Kind: ShortCycle}
	}
	return nil
}
