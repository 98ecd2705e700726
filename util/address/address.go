// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package address implements the Base58Check address, WIF and extended-key
// encodings named in §6 of the specification: a single version byte per
// network, hash160 (ripemd160(sha256(pubkey))) payloads for addresses, and
// the BIP32 74-byte payload for extended keys.
package address

import (
	"crypto/sha256"

	"github.com/pkg/errors"
	"golang.org/x/crypto/ripemd160"
)

// Params is the subset of network parameters the address package needs:
// the version prefix used for each encoding kind on this network (one byte
// for addresses and WIF, four bytes for extended keys).
type Params struct {
	PubKeyAddrID   byte
	SecretKeyID    byte
	ExtPubKeyID    [4]byte
	ExtSecretKeyID [4]byte
}

// Hash160 computes ripemd160(sha256(b)), the address payload for a public
// key. SHA-256 and RIPEMD-160 are treated as black-box primitives per §1.
func Hash160(b []byte) []byte {
	h := sha256.Sum256(b)
	ripemd := ripemd160.New()
	ripemd.Write(h[:])
	return ripemd.Sum(nil)
}

// Address is a hash160-based pay-to-key address.
type Address struct {
	hash160 [20]byte
	params  *Params
}

// NewAddressFromPubKey hashes a serialized public key into an Address.
func NewAddressFromPubKey(pubKey []byte, params *Params) *Address {
	a := &Address{params: params}
	copy(a.hash160[:], Hash160(pubKey))
	return a
}

// Hash160 returns the 20-byte hash160 payload of the address.
func (a *Address) Hash160() *[20]byte {
	return &a.hash160
}

// EncodeAddress returns the Base58Check-encoded string form of the address.
func (a *Address) EncodeAddress() string {
	return CheckEncode(a.hash160[:], a.params.PubKeyAddrID)
}

// DecodeAddress parses a Base58Check address string produced by
// EncodeAddress, verifying that its version byte matches params.
func DecodeAddress(addr string, params *Params) (*Address, error) {
	payload, version, err := CheckDecode(addr)
	if err != nil {
		return nil, errors.Wrap(err, "malformed address")
	}
	if version != params.PubKeyAddrID {
		return nil, errors.Errorf("address is for a different network: got version %d, want %d",
			version, params.PubKeyAddrID)
	}
	if len(payload) != 20 {
		return nil, errors.Errorf("invalid address payload length %d", len(payload))
	}
	a := &Address{params: params}
	copy(a.hash160[:], payload)
	return a, nil
}

// WIF encodes a raw secret key as Wallet Import Format.
func WIF(secret []byte, compressed bool, params *Params) string {
	payload := make([]byte, 0, len(secret)+1)
	payload = append(payload, secret...)
	if compressed {
		payload = append(payload, 0x01)
	}
	return CheckEncode(payload, params.SecretKeyID)
}

// DecodeWIF decodes a Wallet Import Format string into its raw secret key
// bytes and whether it denotes a compressed public key.
func DecodeWIF(wif string, params *Params) (secret []byte, compressed bool, err error) {
	payload, version, err := CheckDecode(wif)
	if err != nil {
		return nil, false, err
	}
	if version != params.SecretKeyID {
		return nil, false, errors.New("WIF is for a different network")
	}
	switch len(payload) {
	case 33:
		if payload[32] != 0x01 {
			return nil, false, errors.New("malformed WIF compression flag")
		}
		return payload[:32], true, nil
	case 32:
		return payload, false, nil
	default:
		return nil, false, errors.New("malformed WIF payload length")
	}
}

// extendedKeyPayloadSize is the BIP32 payload size: depth(1) + parent
// fingerprint(4) + child number(4) + chain code(32) + key data(33) = 74.
const extendedKeyPayloadSize = 74

// EncodeExtendedKey Base58Check-encodes a 74-byte BIP32 extended key payload
// under the appropriate version prefix.
func EncodeExtendedKey(payload []byte, isPrivate bool, params *Params) (string, error) {
	if len(payload) != extendedKeyPayloadSize {
		return "", errors.Errorf("extended key payload must be %d bytes, got %d",
			extendedKeyPayloadSize, len(payload))
	}
	version := params.ExtPubKeyID
	if isPrivate {
		version = params.ExtSecretKeyID
	}
	b := make([]byte, 0, len(version)+len(payload))
	b = append(b, version[:]...)
	b = append(b, payload...)
	// CheckEncode expects a single version byte; extended keys use a
	// 4-byte version, so checksum/encode manually here.
	cksum := checksum(b)
	b = append(b, cksum[:]...)
	return base58Encode(b), nil
}
