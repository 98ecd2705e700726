// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package random provides cryptographically secure helpers for nonces and
// sortition-adjacent random values.
package random

import (
	"crypto/rand"
	"encoding/binary"

	"github.com/pkg/errors"
)

// Uint64 returns a cryptographically random uint64 value, used for message
// nonces (PING/PONG, BUNDLE, GET_INV).
func Uint64() (uint64, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, errors.Wrap(err, "failed to read random bytes")
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

// Bytes returns n cryptographically random bytes.
func Bytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, errors.Wrap(err, "failed to read random bytes")
	}
	return b, nil
}
