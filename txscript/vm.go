// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package txscript implements the tiny stack-based verification VM named in
// §3: an output listing's opcode selects a predicate (FAIL, SUCCESS,
// VERIFY, MULTISIG); the paired input listing supplies the witness data the
// predicate checks against. Grounded on the teacher's txscript/engine.go
// (the Engine/parsedOpcode shape for a Bitcoin-style script interpreter),
// reduced to the handful of opcodes and one-byte-per-opcode encoding §9's
// design notes explicitly allow in place of the source's two-byte
// (opcode, trailing FAIL) legacy encoding.
package txscript

import (
	"bytes"
	"crypto/sha256"
	"io"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/ripemd160"

	"github.com/pkg/errors"

	"github.com/epic-project/epicd/wire"
)

// Opcode aliases for wire's Listing.Opcodes byte values (§3).
const (
	OpFail     = wire.OpFail
	OpSuccess  = wire.OpSuccess
	OpVerify   = wire.OpVerify
	OpMultiSig = wire.OpMultiSig
)

// ErrScriptFailed is returned for every predicate that does not reach
// SUCCESS: a bad signature, a wrong address, too few distinct multisig
// signers, or an explicit FAIL opcode.
var ErrScriptFailed = errors.New("txscript: predicate did not succeed")

// hash160 computes ripemd160(sha256(b)), matching util/address.Hash160; the
// VM re-implements it locally rather than importing util/address.
func hash160(b []byte) []byte {
	sum := sha256.Sum256(b)
	r := ripemd160.New()
	r.Write(sum[:])
	return r.Sum(nil)
}

// Verify executes the predicate carried by output against the witness
// carried by input (§3, §4.4's rule 2: "the concatenation (output listing,
// input listing) executes to SUCCESS under the tiny VM"). Returns nil iff
// execution reaches SUCCESS.
func Verify(output, input *wire.Listing) error {
	op, err := selectPredicateOp(output.Opcodes)
	if err != nil {
		return err
	}

	switch op {
	case OpFail:
		return ErrScriptFailed

	case OpSuccess:
		return nil

	case OpVerify:
		return verifySingle(output.Data, input.Data)

	case OpMultiSig:
		return verifyMultiSig(output.Data, input.Data)

	default:
		return errors.Errorf("txscript: unknown opcode %#x", op)
	}
}

// selectPredicateOp returns the single opcode the output listing's opcode
// vector names. A well-formed output listing carries exactly one opcode —
// the predicate kind — per §9's one-byte-per-opcode simplification; an
// empty or longer vector is malformed and fails closed.
func selectPredicateOp(opcodes []byte) (byte, error) {
	if len(opcodes) != 1 {
		return 0, errors.Errorf("txscript: output listing must carry exactly one opcode, got %d", len(opcodes))
	}
	return opcodes[0], nil
}

// verifySingle implements the VERIFY opcode (§3): predicateData is the
// output's 20-byte hash160 address; witnessData is pubkey‖sig‖msgHash, each
// length-prefixed. Checks address == hash160(pubkey) and that sig is a
// valid ECDSA signature of msgHash under pubkey.
func verifySingle(predicateData, witnessData []byte) error {
	if len(predicateData) != 20 {
		return errors.New("txscript: VERIFY predicate must carry a 20-byte address")
	}

	r := bytes.NewReader(witnessData)
	pubKeyBytes, err := wire.ReadVarBytes(r, 65, "pubkey")
	if err != nil {
		return errors.Wrap(err, "txscript: malformed VERIFY witness")
	}
	sigBytes, err := wire.ReadVarBytes(r, 80, "signature")
	if err != nil {
		return errors.Wrap(err, "txscript: malformed VERIFY witness")
	}
	msgHash, err := wire.ReadVarBytes(r, 32, "msg hash")
	if err != nil {
		return errors.Wrap(err, "txscript: malformed VERIFY witness")
	}

	if !bytes.Equal(hash160(pubKeyBytes), predicateData) {
		return errors.Wrap(ErrScriptFailed, "txscript: address does not match pubkey")
	}
	if !checkSig(pubKeyBytes, sigBytes, msgHash) {
		return errors.Wrap(ErrScriptFailed, "txscript: bad signature")
	}
	return nil
}

// verifyMultiSig implements the MULTISIG opcode (§3): predicateData is
// `m (1 byte) ‖ addrCount (1 byte) ‖ addr[*] (20 bytes each)`; witnessData
// is `signerCount (1 byte) ‖ (pubkey, sig, msgHash)[*]`, each of the three
// fields length-prefixed (msgHash at most 32 bytes). Checks that exactly m
// distinct signers, each drawn from the address set and each producing a
// valid signature of their own msgHash under their own pubkey, are present.
func verifyMultiSig(predicateData, witnessData []byte) error {
	pr := bytes.NewReader(predicateData)
	var mByte, addrCountByte [1]byte
	if _, err := io.ReadFull(pr, mByte[:]); err != nil {
		return errors.Wrap(err, "txscript: malformed MULTISIG predicate")
	}
	if _, err := io.ReadFull(pr, addrCountByte[:]); err != nil {
		return errors.Wrap(err, "txscript: malformed MULTISIG predicate")
	}
	m := int(mByte[0])
	addrCount := int(addrCountByte[0])

	addrs := make(map[[20]byte]bool, addrCount)
	for i := 0; i < addrCount; i++ {
		var a [20]byte
		if _, err := io.ReadFull(pr, a[:]); err != nil {
			return errors.Wrap(err, "txscript: malformed MULTISIG predicate")
		}
		addrs[a] = true
	}

	wr := bytes.NewReader(witnessData)
	var signerCountByte [1]byte
	if _, err := io.ReadFull(wr, signerCountByte[:]); err != nil {
		return errors.Wrap(err, "txscript: malformed MULTISIG witness")
	}
	signerCount := int(signerCountByte[0])

	seen := make(map[[20]byte]bool, signerCount)
	validDistinct := 0
	for i := 0; i < signerCount; i++ {
		pubKeyBytes, err := wire.ReadVarBytes(wr, 65, "pubkey")
		if err != nil {
			return errors.Wrap(err, "txscript: malformed MULTISIG witness")
		}
		sigBytes, err := wire.ReadVarBytes(wr, 80, "signature")
		if err != nil {
			return errors.Wrap(err, "txscript: malformed MULTISIG witness")
		}
		msgHash, err := wire.ReadVarBytes(wr, 32, "msg hash")
		if err != nil {
			return errors.Wrap(err, "txscript: malformed MULTISIG witness")
		}

		var addr [20]byte
		copy(addr[:], hash160(pubKeyBytes))
		if !addrs[addr] || seen[addr] {
			continue
		}
		if !checkSig(pubKeyBytes, sigBytes, msgHash) {
			continue
		}
		seen[addr] = true
		validDistinct++
	}

	if validDistinct != m {
		return errors.Wrapf(ErrScriptFailed, "txscript: got %d distinct valid signers, want exactly %d", validDistinct, m)
	}
	return nil
}

// checkSig reports whether sigBytes is a valid DER-encoded ECDSA signature
// of msgHash under pubKeyBytes (§3's "checks ... sig is a valid ECDSA
// signature of msg_hash under pubkey").
func checkSig(pubKeyBytes, sigBytes, msgHash []byte) bool {
	pubKey, err := secp256k1.ParsePubKey(pubKeyBytes)
	if err != nil {
		return false
	}
	sig, err := ecdsa.ParseDERSignature(sigBytes)
	if err != nil {
		return false
	}
	return sig.Verify(msgHash, pubKey)
}

// EncodeVerifyPredicate builds a VERIFY output listing's data field from a
// 20-byte address.
func EncodeVerifyPredicate(addr []byte) []byte {
	out := make([]byte, len(addr))
	copy(out, addr)
	return out
}

// EncodeVerifyWitness builds a VERIFY input listing's data field from the
// signer's public key, signature and signed message hash.
func EncodeVerifyWitness(pubKey, sig, msgHash []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := wire.WriteVarBytes(&buf, pubKey); err != nil {
		return nil, err
	}
	if err := wire.WriteVarBytes(&buf, sig); err != nil {
		return nil, err
	}
	if err := wire.WriteVarBytes(&buf, msgHash); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MultiSigSigner is one (pubkey, sig, msgHash) triple contributed to a
// MULTISIG witness.
type MultiSigSigner struct {
	PubKey  []byte
	Sig     []byte
	MsgHash []byte
}

// EncodeMultiSigPredicate builds a MULTISIG output listing's data field
// from the required signer count and the eligible address set.
func EncodeMultiSigPredicate(m int, addrs [][]byte) ([]byte, error) {
	if m < 0 || m > 255 || len(addrs) > 255 {
		return nil, errors.New("txscript: MULTISIG m/addr count out of range")
	}
	buf := make([]byte, 0, 2+20*len(addrs))
	buf = append(buf, byte(m), byte(len(addrs)))
	for _, a := range addrs {
		if len(a) != 20 {
			return nil, errors.New("txscript: MULTISIG address must be 20 bytes")
		}
		buf = append(buf, a...)
	}
	return buf, nil
}

// EncodeMultiSigWitness builds a MULTISIG input listing's data field from
// the contributing signers.
func EncodeMultiSigWitness(signers []MultiSigSigner) ([]byte, error) {
	if len(signers) > 255 {
		return nil, errors.New("txscript: too many MULTISIG signers")
	}
	var buf bytes.Buffer
	buf.WriteByte(byte(len(signers)))
	for _, s := range signers {
		if err := wire.WriteVarBytes(&buf, s.PubKey); err != nil {
			return nil, err
		}
		if err := wire.WriteVarBytes(&buf, s.Sig); err != nil {
			return nil, err
		}
		if err := wire.WriteVarBytes(&buf, s.MsgHash); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
