// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package pow

import "sync"

// Barrier is a reusable phased barrier for the solver pool (§4.3, §9): N
// worker goroutines each call Wait once per round; the last arrival wakes
// every waiter and resets the barrier for the next round. An external
// abort flag is checked by every waiter; once set, every blocked and future
// Wait call returns false instead of blocking, letting every worker drain
// out at the next round rather than deadlocking. Returning early via abort
// is a regular outcome, not an error (§9).
type Barrier struct {
	mu      sync.Mutex
	cond    *sync.Cond
	n       int
	waiting int
	gen     uint64
	aborted bool
}

// NewBarrier returns a Barrier for n participating goroutines.
func NewBarrier(n int) *Barrier {
	b := &Barrier{n: n}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Abort sets the abort flag and wakes every goroutine currently blocked in
// Wait.
func (b *Barrier) Abort() {
	b.mu.Lock()
	b.aborted = true
	b.mu.Unlock()
	b.cond.Broadcast()
}

// Aborted reports whether Abort has been called.
func (b *Barrier) Aborted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.aborted
}

// Wait blocks until every one of the n participants has called Wait for the
// current round, then returns true. If Abort is called before or during the
// wait, Wait returns false without blocking further.
func (b *Barrier) Wait() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.aborted {
		return false
	}

	gen := b.gen
	b.waiting++
	if b.waiting == b.n {
		b.waiting = 0
		b.gen++
		b.cond.Broadcast()
		return true
	}

	for gen == b.gen && !b.aborted {
		b.cond.Wait()
	}
	return !b.aborted
}
