// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package daghash provides the opaque 256-bit hash type shared by every
// on-disk and on-wire encoding in epicd: block identifiers, proof hashes,
// transaction ids, outpoints and merkle roots are all daghash.Hash values.
package daghash

import (
	"encoding/hex"

	"github.com/pkg/errors"
)

// HashSize is the number of bytes used by the hash type.
const HashSize = 32

// MaxHashStringSize is the maximum length of a Hash hash string.
const MaxHashStringSize = HashSize * 2

// ErrHashStrSize describes an error that indicates the caller specified a hash
// string that has too many characters.
var ErrHashStrSize = errors.Errorf("max hash string length is %v bytes", MaxHashStringSize)

// Hash is a 256-bit opaque identifier. It is stored and transmitted
// little-endian; equality and ordering are always performed over the raw
// byte representation, never over the printable (reversed) hex form.
type Hash [HashSize]byte

// ZeroHash is the Hash value of all zero bytes, used by the genesis block
// and by the unconnected outpoint.
var ZeroHash Hash

// String returns the Hash as the hexadecimal string of the byte-reversed
// hash, matching the historical big-endian display convention.
func (hash Hash) String() string {
	for i := 0; i < HashSize/2; i++ {
		hash[i], hash[HashSize-1-i] = hash[HashSize-1-i], hash[i]
	}
	return hex.EncodeToString(hash[:])
}

// Bytes returns the bytes which represent the hash as a byte slice.
func (hash *Hash) Bytes() []byte {
	newHash := make([]byte, HashSize)
	copy(newHash, hash[:])
	return newHash
}

// SetBytes sets the bytes which represent the hash. An error is returned if
// the number of bytes passed in is not HashSize.
func (hash *Hash) SetBytes(newHash []byte) error {
	if len(newHash) != HashSize {
		return errors.Errorf("invalid hash length of %v, want %v", len(newHash), HashSize)
	}
	copy(hash[:], newHash)
	return nil
}

// IsEqual returns true if target is the same as the hash.
func (hash *Hash) IsEqual(target *Hash) bool {
	if hash == nil && target == nil {
		return true
	}
	if hash == nil || target == nil {
		return false
	}
	return *hash == *target
}

// Less reports whether hash orders strictly before other, lexicographically
// over the raw little-endian byte representation. This is the ordering used
// for tie-breaks across the whole system: topological sort of level sets
// and chain-container best-pointer ties.
func (hash *Hash) Less(other *Hash) bool {
	for i := 0; i < HashSize; i++ {
		if hash[i] != other[i] {
			return hash[i] < other[i]
		}
	}
	return false
}

// Cmp returns -1, 0 or 1 if hash is less than, equal to, or greater than
// other, using the same ordering as Less.
func (hash *Hash) Cmp(other *Hash) int {
	if hash.IsEqual(other) {
		return 0
	}
	if hash.Less(other) {
		return -1
	}
	return 1
}

// NewHash returns a new Hash from a byte slice.
func NewHash(newHash []byte) (*Hash, error) {
	var sh Hash
	err := sh.SetBytes(newHash)
	if err != nil {
		return nil, err
	}
	return &sh, nil
}

// NewHashFromStr creates a Hash from a hash string. The string should be
// the hexadecimal string of a byte-reversed hash, but any missing characters
// result in zero padding at the end of the Hash.
func NewHashFromStr(hash string) (*Hash, error) {
	ret := new(Hash)
	err := Decode(ret, hash)
	if err != nil {
		return nil, err
	}
	return ret, nil
}

// Decode decodes the byte-reversed hexadecimal string encoding of a Hash to
// a destination.
func Decode(dst *Hash, src string) error {
	if len(src) > MaxHashStringSize {
		return ErrHashStrSize
	}

	var srcBytes []byte
	if len(src)%2 == 0 {
		srcBytes = []byte(src)
	} else {
		srcBytes = make([]byte, 1+len(src))
		srcBytes[0] = '0'
		copy(srcBytes[1:], src)
	}

	var reversedHash Hash
	_, err := hex.Decode(reversedHash[HashSize-hex.DecodedLen(len(srcBytes)):], srcBytes)
	if err != nil {
		return err
	}

	for i, b := range reversedHash[:HashSize/2] {
		reversedHash[i], reversedHash[HashSize-1-i] = reversedHash[HashSize-1-i], b
	}
	*dst = reversedHash
	return nil
}

// Hashes is a slice of hash pointers, used where ordering matters (topological
// sort tie-breaks, vector encodings).
type Hashes []*Hash

func (h Hashes) Len() int      { return len(h) }
func (h Hashes) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h Hashes) Less(i, j int) bool {
	return h[i].Less(h[j])
}

// CloneHashes returns a deep copy of the hash slice.
func CloneHashes(hashes []*Hash) []*Hash {
	clone := make([]*Hash, len(hashes))
	for i, hash := range hashes {
		cp := *hash
		clone[i] = &cp
	}
	return clone
}

// JoinHashesStrings is a debug helper that renders a slice of hashes as a
// comma separated list of their string forms.
func JoinHashesStrings(hashes []*Hash, separator string) string {
	strs := make([]string, len(hashes))
	for i, hash := range hashes {
		strs[i] = hash.String()
	}
	out := ""
	for i, s := range strs {
		if i > 0 {
			out += separator
		}
		out += s
	}
	return out
}
