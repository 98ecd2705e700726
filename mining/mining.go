// Copyright (c) 2014-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package mining implements the miner state machine of §4.8: IDLE →
// ASSEMBLING → SOLVING → (SUBMIT | ABORTED) → IDLE. It drains the mempool's
// redemption queue and ordinary-transaction set, assembles a candidate
// block against the DAG's current head, and drives the pow package's
// solver, retrying across nonces the way the teacher's standalone miner
// loop (cmd/kaspaminer/mineloop.go's mineNextBlock) increments a nonce and
// re-checks proof of work.
package mining

import (
	"context"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/epic-project/epicd/blockdag"
	"github.com/epic-project/epicd/mempool"
	"github.com/epic-project/epicd/params"
	"github.com/epic-project/epicd/pow"
	"github.com/epic-project/epicd/util/daghash"
	"github.com/epic-project/epicd/wire"
)

// BlockCapacity bounds how many ordinary mempool transactions a single
// candidate block draws from (§4.8 step 2). It is a count only: the miner
// does not check the assembled block's encoded size against
// params.MaxBlockSize, which only blockdag's ProcessBlock enforces.
const BlockCapacity = 2000

// idlePoll is how long Run sleeps between iterations that found no work to
// assemble, rather than busy-looping on an empty mempool.
const idlePoll = 200 * time.Millisecond

// headUpdateTimeout bounds how long a miner idles after a successful
// submission waiting for a chain-head callback before reassembling anyway,
// a backstop for callers that never wire HandleChainHead.
const headUpdateTimeout = 30 * time.Second

// State is the miner's position in the §4.8 state machine.
type State int

// State values.
const (
	StateIdle State = iota
	StateAssembling
	StateSolving
	StateSubmit
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateAssembling:
		return "ASSEMBLING"
	case StateSolving:
		return "SOLVING"
	case StateSubmit:
		return "SUBMIT"
	case StateAborted:
		return "ABORTED"
	default:
		return "UNKNOWN"
	}
}

// maxDistance is the largest value a 256-bit sortition distance can take.
var maxDistance = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// SortitionDistance returns hash(tx) XOR prevHash as an unsigned integer
// (§4.8 step 2, Glossary "Sortition distance"), the value a miner compares
// against AllowedDistance to decide whether a mempool transaction is
// eligible for this round's candidate block.
func SortitionDistance(txHash, prevHash daghash.Hash) *big.Int {
	var xored [daghash.HashSize]byte
	for i := range xored {
		xored[i] = txHash[i] ^ prevHash[i]
	}
	return new(big.Int).SetBytes(xored[:])
}

// AllowedDistance derives the sortition-distance ceiling from a miner's
// share of the network's hash rate (§4.8 step 2: "an allowed distance
// derived from the local hashing fraction of network hash rate"): a miner
// commanding share s of the network's hash rate is allowed to include any
// transaction whose distance falls in the lowest s-fraction of the distance
// space, so that in expectation it wins the right to include exactly the
// fraction of pending transactions proportional to its mining power.
func AllowedDistance(hashRateShare float64) *big.Int {
	switch {
	case hashRateShare <= 0:
		return big.NewInt(0)
	case hashRateShare >= 1:
		return maxDistance
	}
	scaled := new(big.Float).Mul(new(big.Float).SetInt(maxDistance), big.NewFloat(hashRateShare))
	ceiling, _ := scaled.Int(nil)
	return ceiling
}

// candidate is one transaction queued for the block currently being
// assembled, carrying enough of its mempool.TxDesc to be reclaimed on abort
// or verification failure (§4.8 step 4) without re-deriving it.
type candidate struct {
	tx     *wire.MsgTx
	fee    uint64
	queued bool // came from the redemption/first-registration FIFO, not the ordinary set
}

// Miner implements the §4.8 state machine for a single peer-chain identity.
// One Miner instance owns one self-chain: the sequence of blocks it mines,
// chained by the PrevHash parent edge, gated on having published a first
// registration before it may include ordinary transactions.
type Miner struct {
	params  *params.Params
	dag     *blockdag.DAG
	pool    *mempool.Pool
	workers int

	mu            sync.Mutex
	state         State
	selfChainHead daghash.Hash
	registered    bool
	localHashRate float64
	currentAbort  chan struct{}

	headUpdate chan struct{}
}

// New returns a miner that assembles and solves blocks against dag and
// pool, running the Cuckaroo solver over workers goroutines per attempt.
func New(p *params.Params, dag *blockdag.DAG, pool *mempool.Pool, workers int) *Miner {
	return &Miner{
		params:     p,
		dag:        dag,
		pool:       pool,
		workers:    workers,
		headUpdate: make(chan struct{}, 1),
	}
}

// State reports the miner's current position in the state machine.
func (m *Miner) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Miner) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// SelfChainHead returns the tip of this miner's own self-chain, persisted
// as the `minerHead` info key (§6) so a restarted node resumes the same
// self-chain instead of forking a new one from the zero hash.
func (m *Miner) SelfChainHead() daghash.Hash {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.selfChainHead
}

// HandleChainHead should be wired to the DAG's chain-head callback; the
// mempool's confirmed-tx eviction hangs off the separate confirm callback,
// not this one. A main-chain update aborts whatever solve attempt is in
// flight — per §4.8 step 5, the miner blocks "until the DAG confirms a head
// update (either the miner's block or a better external one)" — and wakes
// an idling miner to reassemble against the new head.
func (m *Miner) HandleChainHead(tipHash daghash.Hash, isMainChain bool) {
	if !isMainChain {
		return
	}
	m.mu.Lock()
	if m.currentAbort != nil {
		close(m.currentAbort)
		m.currentAbort = nil
	}
	m.mu.Unlock()

	select {
	case m.headUpdate <- struct{}{}:
	default:
	}
}

// Run drives the state machine until ctx is canceled.
func (m *Miner) Run(ctx context.Context) {
	for ctx.Err() == nil {
		if !m.iterate(ctx) {
			select {
			case <-ctx.Done():
				return
			case <-time.After(idlePoll):
			}
		}
	}
}

// iterate runs one pass of the §4.8 numbered steps. It returns false when
// there was nothing to assemble (no first registration queued while
// unregistered, or an empty mempool and redemption queue once registered),
// in which case Run backs off before trying again.
func (m *Miner) iterate(ctx context.Context) bool {
	m.mu.Lock()
	registered := m.registered
	prevHash := m.selfChainHead
	m.mu.Unlock()

	if !registered {
		tx, ok := m.pool.DequeueRedemption()
		if !ok {
			return false
		}
		if blockdag.ClassifyTx(tx) != blockdag.TxFirstRegistration {
			// Step 1: without a first registration yet, a queued redemption
			// has nothing to anchor to. Park it and wait for the real thing.
			m.pool.RequeueRedemption(tx)
			return false
		}
		m.assembleAndSolve(ctx, []candidate{{tx: tx, queued: true}})
		return true
	}

	var candidates []candidate
	if tx, ok := m.pool.DequeueRedemption(); ok {
		candidates = append(candidates, candidate{tx: tx, queued: true})
	}
	candidates = append(candidates, m.drainOrdinary(prevHash)...)
	if len(candidates) == 0 {
		return false
	}
	m.assembleAndSolve(ctx, candidates)
	return true
}

// drainOrdinary implements step 2: up to BlockCapacity ordinary
// transactions, oldest-added first, filtered to those whose sortition
// distance from prevHash is under the miner's allowed distance.
func (m *Miner) drainOrdinary(prevHash daghash.Hash) []candidate {
	ceiling := AllowedDistance(m.hashRateShare())

	descs := m.pool.TxDescs()
	sort.Slice(descs, func(i, j int) bool { return descs[i].Added.Before(descs[j].Added) })

	out := make([]candidate, 0, BlockCapacity)
	for _, d := range descs {
		if len(out) >= BlockCapacity {
			break
		}
		if SortitionDistance(d.Hash, prevHash).Cmp(ceiling) > 0 {
			continue
		}
		out = append(out, candidate{tx: d.Tx, fee: d.Fee})
		m.pool.Remove(d.Hash)
	}
	return out
}

// hashRateShare estimates this miner's fraction of network hash rate from
// its own measured solve throughput versus the best chain's current
// difficulty (§4.8 step 2). Until at least one solve attempt has been
// timed, the share is zero, so the very first block a fresh miner assembles
// carries no ordinary transactions — a conservative bootstrap rather than
// guessing a share with no evidence for it.
func (m *Miner) hashRateShare() float64 {
	m.mu.Lock()
	local := m.localHashRate
	m.mu.Unlock()
	if local <= 0 {
		return 0
	}
	network := m.networkHashRate()
	if network <= 0 {
		return 1
	}
	share := local / network
	if share > 1 {
		share = 1
	}
	return share
}

// networkHashRate approximates the network's aggregate hash rate from the
// best chain's current milestone target, assuming blocks arrive at the
// network's configured spacing: rate ≈ work(target) / target_time_per_block.
func (m *Miner) networkHashRate() float64 {
	_, milestoneTarget := m.dag.HeadTargets()
	work := pow.CalcWork(m.params.MaxTarget(), milestoneTarget)
	seconds := m.params.TargetTimePerBlock.Seconds()
	if seconds <= 0 {
		return 0
	}
	rate, _ := new(big.Float).Quo(new(big.Float).SetInt(work), big.NewFloat(seconds)).Float64()
	return rate
}

// recordAttempt folds one solve attempt's edge-generation throughput into
// the miner's smoothed local hash-rate estimate.
func (m *Miner) recordAttempt(edges uint64, elapsed time.Duration) {
	if elapsed <= 0 {
		return
	}
	rate := float64(edges) / elapsed.Seconds()

	m.mu.Lock()
	if m.localHashRate == 0 {
		m.localHashRate = rate
	} else {
		m.localHashRate = 0.8*m.localHashRate + 0.2*rate
	}
	m.mu.Unlock()
}

// assembleAndSolve implements §4.8 steps 3-5 for one batch of candidates:
// build the header, solve across nonces until a cycle is found or the
// attempt is aborted by a better external head, submit to the DAG, and
// either advance the self-chain head or reclaim the candidates for a later
// attempt.
func (m *Miner) assembleAndSolve(ctx context.Context, candidates []candidate) {
	m.setState(StateAssembling)

	m.mu.Lock()
	prevHash := m.selfChainHead
	m.mu.Unlock()

	milestoneHash := m.dag.Head()
	tipHash, ok := m.dag.RandomTip(prevHash)
	if !ok {
		tipHash = milestoneHash
	}
	blockTarget, _ := m.dag.HeadTargets()

	txs := make([]*wire.MsgTx, len(candidates))
	txHashes := make([]daghash.Hash, len(candidates))
	for i, c := range candidates {
		txs[i] = c.tx
		hash, err := c.tx.TxHash()
		if err != nil {
			log.Errorf("mining: hashing candidate transaction: %v", err)
			m.reclaim(candidates)
			return
		}
		txHashes[i] = hash
	}
	merkle := wire.MerkleRoot(txHashes)

	header := wire.NewBlockHeader(wire.BlockVersion, &milestoneHash, &prevHash, &tipHash, &merkle,
		uint32(time.Now().Unix()), blockTarget)

	m.setState(StateSolving)
	abort := make(chan struct{})
	m.mu.Lock()
	m.currentAbort = abort
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		if m.currentAbort == abort {
			m.currentAbort = nil
		}
		m.mu.Unlock()
	}()

	powParams := pow.Params{EdgeBits: m.params.EdgeBits, ProofSize: m.params.ProofSize}

	var nonce uint32
	for {
		select {
		case <-ctx.Done():
			m.reclaim(candidates)
			return
		case <-abort:
			m.setState(StateAborted)
			m.reclaim(candidates)
			return
		default:
		}

		header.Nonce = nonce
		headerBytes, err := header.Bytes()
		if err != nil {
			log.Errorf("mining: encoding candidate header: %v", err)
			m.reclaim(candidates)
			return
		}
		keys := pow.DeriveSiphashKeys(headerBytes)

		start := time.Now()
		proof, err := pow.Solve(powParams, keys, abort, m.workers)
		m.recordAttempt(powParams.NumEdges(), time.Since(start))

		switch err {
		case nil:
			// fall through to submission below
		case pow.ErrAborted:
			m.setState(StateAborted)
			m.reclaim(candidates)
			return
		case pow.ErrNoSolution:
			nonce++
			continue
		default:
			log.Warnf("mining: solve attempt failed: %v", err)
			nonce++
			continue
		}

		block := &wire.MsgBlock{Header: *header, Proof: proof, Transactions: txs}
		m.setState(StateSubmit)

		isOrphan, err := m.dag.ProcessBlock(block, blockdag.SourceMiner)
		if err != nil || isOrphan {
			log.Warnf("mining: submitted block rejected: %v", err)
			m.reclaim(candidates)
			m.setState(StateAborted)
			return
		}

		hash, err := block.BlockHash()
		if err != nil {
			log.Errorf("mining: hashing submitted block: %v", err)
			m.setState(StateAborted)
			return
		}

		m.mu.Lock()
		m.selfChainHead = hash
		if len(candidates) == 1 && candidates[0].queued && blockdag.ClassifyTx(candidates[0].tx) == blockdag.TxFirstRegistration {
			m.registered = true
		}
		m.mu.Unlock()

		m.setState(StateIdle)
		m.waitForHeadUpdate(ctx)
		return
	}
}

// reclaim returns candidates to the mempool/redemption queue, preserving
// first-reg/redemption FIFO ordering by re-inserting in reverse so the
// original head ends up back at the front (§4.8 step 4).
func (m *Miner) reclaim(candidates []candidate) {
	for i := len(candidates) - 1; i >= 0; i-- {
		c := candidates[i]
		if c.queued {
			m.pool.RequeueRedemption(c.tx)
			continue
		}
		if _, err := m.pool.Add(c.tx, c.fee); err != nil && err != mempool.ErrDuplicateTx {
			log.Warnf("mining: reclaiming transaction: %v", err)
		}
	}
}

// waitForHeadUpdate blocks until HandleChainHead signals a main-chain
// update, ctx is canceled, or headUpdateTimeout elapses.
func (m *Miner) waitForHeadUpdate(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-m.headUpdate:
	case <-time.After(headUpdateTimeout):
	}
}
