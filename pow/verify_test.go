// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package pow

import "testing"

func TestVerifyAcceptsGenuineCycle(t *testing.T) {
	proof, keys := findTestCycle(t, testParams)

	if err := Verify(testParams, proof, keys); err != nil {
		t.Fatalf("Verify rejected a genuine cycle: %s", err)
	}
}

// Permuting two indices out of ascending order must fail as TooSmall,
// independent of whether the endpoints still happen to match up.
func TestVerifyTooSmallOnNonAscending(t *testing.T) {
	proof, keys := findTestCycle(t, testParams)

	permuted := append([]uint32{}, proof...)
	permuted[0], permuted[1] = permuted[1], permuted[0]

	err := Verify(testParams, permuted, keys)
	verr, ok := err.(*VerifyError)
	if !ok || verr.Kind != TooSmall {
		t.Fatalf("got %v, want TooSmall", err)
	}
}

// Replacing an index with a value beyond the node space must fail as
// TooBig before any cycle-walking is attempted.
func TestVerifyTooBigOnOversizedIndex(t *testing.T) {
	proof, keys := findTestCycle(t, testParams)

	oversized := append([]uint32{}, proof...)
	oversized[len(oversized)-1] = uint32(testParams.EdgeMask()) + 1

	err := Verify(testParams, oversized, keys)
	verr, ok := err.(*VerifyError)
	if !ok || verr.Kind != TooBig {
		t.Fatalf("got %v, want TooBig", err)
	}
}

func TestVerifyRejectsWrongProofSize(t *testing.T) {
	proof, keys := findTestCycle(t, testParams)

	short := proof[:len(proof)-1]
	if err := Verify(testParams, short, keys); err == nil {
		t.Fatal("Verify accepted a proof of the wrong length")
	}
}
