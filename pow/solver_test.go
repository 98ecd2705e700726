// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package pow

import "testing"

// testParams uses a small edge space so trimming and cycle search stay
// fast; the solver/verifier logic is identical regardless of EdgeBits.
var testParams = Params{EdgeBits: 10, ProofSize: 6}

// findTestCycle tries successive headers until Solve returns a cycle,
// mirroring how a miner retries with a fresh nonce on ErrNoSolution.
func findTestCycle(t *testing.T, params Params) ([]uint32, SiphashKeys) {
	header := make([]byte, 80)
	for nonce := uint32(0); nonce < 2000; nonce++ {
		header[0] = byte(nonce)
		header[1] = byte(nonce >> 8)
		header[2] = byte(nonce >> 16)
		header[3] = byte(nonce >> 24)
		keys := DeriveSiphashKeys(header)
		proof, err := Solve(params, keys, nil, 1)
		if err == nil {
			return proof, keys
		}
		if err != ErrNoSolution {
			t.Fatalf("Solve: unexpected error: %s", err)
		}
	}
	t.Fatal("no cycle found after 2000 header attempts")
	return nil, SiphashKeys{}
}

func TestSolveVerifyRoundTrip(t *testing.T) {
	proof, keys := findTestCycle(t, testParams)

	if len(proof) != testParams.ProofSize {
		t.Fatalf("proof has %d edges, want %d", len(proof), testParams.ProofSize)
	}
	for i := 1; i < len(proof); i++ {
		if proof[i] <= proof[i-1] {
			t.Fatalf("proof not strictly ascending at %d: %v", i, proof)
		}
	}
	if err := Verify(testParams, proof, keys); err != nil {
		t.Fatalf("Verify rejected the solver's own proof: %s", err)
	}
}

func TestSolveAborts(t *testing.T) {
	abort := make(chan struct{})
	close(abort)

	_, err := Solve(testParams, SiphashKeys{K0: 1, K1: 2, K2: 3, K3: 4}, abort, 1)
	if err != ErrAborted {
		t.Fatalf("got %v, want ErrAborted", err)
	}
}
