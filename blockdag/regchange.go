// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockdag

import "github.com/epic-project/epicd/util/daghash"

// RegPair is one (peer_chain_head, last_registration_hash) entry (§3).
type RegPair struct {
	PeerChainHead    daghash.Hash
	LastRegistration daghash.Hash
}

// RegChange is the delta to the registration index accumulated by one
// milestone's level set (§3): peer chains that gained a new last-registration
// hash (Created, which also covers advancing an existing peer chain — the
// prior value is recorded so Reverse can restore it) and peer chains removed
// outright (only possible via fork rollback of a first-registration).
type RegChange struct {
	Created []RegPair
	Removed []RegPair

	// previous records, parallel to Created, the prior last-registration
	// hash each Created entry overwrote (the zero hash for a brand new
	// peer chain), so Reverse can restore exactly the prior state rather
	// than merely deleting the entry.
	previous []daghash.Hash
}

// registrationIndex is the minimal interface RegChange needs to apply or
// reverse itself; catalog.Catalog satisfies it directly, and Chain's
// in-memory overlay satisfies it for pending (not-yet-flushed) milestones.
type registrationIndex interface {
	GetRegistration(peerChainHead daghash.Hash) (daghash.Hash, bool)
	PutRegistration(peerChainHead, lastRegistration daghash.Hash)
	DeleteRegistration(peerChainHead daghash.Hash)
}

// Record adds peerChainHead -> lastRegistration to the change set, capturing
// idx's prior value for peerChainHead so the change can later be reversed.
func (rc *RegChange) Record(idx registrationIndex, peerChainHead, lastRegistration daghash.Hash) {
	prior, _ := idx.GetRegistration(peerChainHead)
	rc.Created = append(rc.Created, RegPair{PeerChainHead: peerChainHead, LastRegistration: lastRegistration})
	rc.previous = append(rc.previous, prior)
}

// Apply applies every Created entry (advancing or creating the peer chain's
// last-registration hash) and every Removed entry (deleting the peer
// chain's entry outright) to idx (§3).
func (rc *RegChange) Apply(idx registrationIndex) {
	for _, p := range rc.Created {
		idx.PutRegistration(p.PeerChainHead, p.LastRegistration)
	}
	for _, p := range rc.Removed {
		idx.DeleteRegistration(p.PeerChainHead)
	}
}

// Reverse undoes Apply: every Created entry is restored to its prior value
// (or deleted if it had none), and every Removed entry is restored verbatim
// (§8's invariant 4: applying a RegChange then its inverse is a no-op).
func (rc *RegChange) Reverse(idx registrationIndex) {
	for i := len(rc.Created) - 1; i >= 0; i-- {
		p := rc.Created[i]
		prior := rc.previous[i]
		if prior == (daghash.Hash{}) {
			idx.DeleteRegistration(p.PeerChainHead)
		} else {
			idx.PutRegistration(p.PeerChainHead, prior)
		}
	}
	for _, p := range rc.Removed {
		idx.PutRegistration(p.PeerChainHead, p.LastRegistration)
	}
}
