// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package wire implements the codec shared by the disk and wire encodings
// (component 1: variable-length integers, compact-size vector prefixes,
// fixed hashes) together with the network message vocabulary (component
// 13's payloads).
package wire

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/pkg/errors"

	"github.com/epic-project/epicd/util/binaryserializer"
	"github.com/epic-project/epicd/util/daghash"
)

var littleEndian = binary.LittleEndian

// errNonCanonicalVarInt is the common format string used for non-canonically
// encoded variable length integer errors.
const errNonCanonicalVarInt = "non-canonical varint %x - discriminant %x must encode a value greater than %x"

// ReadElement reads the next sequence of bytes from r using little endian
// depending on the concrete type of element pointed to.
func ReadElement(r io.Reader, element interface{}) error {
	switch e := element.(type) {
	case *int32:
		rv, err := binaryserializer.Uint32(r, littleEndian)
		if err != nil {
			return err
		}
		*e = int32(rv)
		return nil

	case *uint32:
		rv, err := binaryserializer.Uint32(r, littleEndian)
		if err != nil {
			return err
		}
		*e = rv
		return nil

	case *int64:
		rv, err := binaryserializer.Uint64(r, littleEndian)
		if err != nil {
			return err
		}
		*e = int64(rv)
		return nil

	case *uint64:
		rv, err := binaryserializer.Uint64(r, littleEndian)
		if err != nil {
			return err
		}
		*e = rv
		return nil

	case *bool:
		rv, err := binaryserializer.Uint8(r)
		if err != nil {
			return err
		}
		*e = rv != 0x00
		return nil

	case *daghash.Hash:
		_, err := io.ReadFull(r, e[:])
		return err

	case *[4]byte:
		_, err := io.ReadFull(r, e[:])
		return err
	}

	return binary.Read(r, littleEndian, element)
}

func readElements(r io.Reader, elements ...interface{}) error {
	for _, element := range elements {
		if err := ReadElement(r, element); err != nil {
			return err
		}
	}
	return nil
}

// WriteElement writes the little endian representation of element to w.
func WriteElement(w io.Writer, element interface{}) error {
	switch e := element.(type) {
	case int32:
		return binaryserializer.PutUint32(w, littleEndian, uint32(e))
	case uint32:
		return binaryserializer.PutUint32(w, littleEndian, e)
	case int64:
		return binaryserializer.PutUint64(w, littleEndian, uint64(e))
	case uint64:
		return binaryserializer.PutUint64(w, littleEndian, e)
	case bool:
		if e {
			return binaryserializer.PutUint8(w, 0x01)
		}
		return binaryserializer.PutUint8(w, 0x00)
	case *daghash.Hash:
		_, err := w.Write(e[:])
		return err
	case [4]byte:
		_, err := w.Write(e[:])
		return err
	}

	return binary.Write(w, littleEndian, element)
}

func writeElements(w io.Writer, elements ...interface{}) error {
	for _, element := range elements {
		if err := WriteElement(w, element); err != nil {
			return err
		}
	}
	return nil
}

// ReadVarInt reads a VARINT (§6: 0xFD u16, 0xFE u32, 0xFF u64, else the byte
// itself) from r and returns it as a uint64.
func ReadVarInt(r io.Reader) (uint64, error) {
	discriminant, err := binaryserializer.Uint8(r)
	if err != nil {
		return 0, err
	}

	var rv uint64
	switch discriminant {
	case 0xff:
		sv, err := binaryserializer.Uint64(r, littleEndian)
		if err != nil {
			return 0, err
		}
		rv = sv
		if rv < 0x100000000 {
			return 0, errors.Errorf(errNonCanonicalVarInt, rv, discriminant, 0x100000000)
		}

	case 0xfe:
		sv, err := binaryserializer.Uint32(r, littleEndian)
		if err != nil {
			return 0, err
		}
		rv = uint64(sv)
		if rv < 0x10000 {
			return 0, errors.Errorf(errNonCanonicalVarInt, rv, discriminant, 0x10000)
		}

	case 0xfd:
		sv, err := binaryserializer.Uint16(r, littleEndian)
		if err != nil {
			return 0, err
		}
		rv = uint64(sv)
		if rv < 0xfd {
			return 0, errors.Errorf(errNonCanonicalVarInt, rv, discriminant, 0xfd)
		}

	default:
		rv = uint64(discriminant)
	}

	return rv, nil
}

// WriteVarInt serializes val to w using a variable number of bytes depending
// on its value.
func WriteVarInt(w io.Writer, val uint64) error {
	if val < 0xfd {
		return binaryserializer.PutUint8(w, uint8(val))
	}
	if val <= math.MaxUint16 {
		if err := binaryserializer.PutUint8(w, 0xfd); err != nil {
			return err
		}
		return binaryserializer.PutUint16(w, littleEndian, uint16(val))
	}
	if val <= math.MaxUint32 {
		if err := binaryserializer.PutUint8(w, 0xfe); err != nil {
			return err
		}
		return binaryserializer.PutUint32(w, littleEndian, uint32(val))
	}
	if err := binaryserializer.PutUint8(w, 0xff); err != nil {
		return err
	}
	return binaryserializer.PutUint64(w, littleEndian, val)
}

// VarIntSerializeSize returns the number of bytes it would take to serialize
// val as a VARINT.
func VarIntSerializeSize(val uint64) int {
	if val < 0xfd {
		return 1
	}
	if val <= math.MaxUint16 {
		return 3
	}
	if val <= math.MaxUint32 {
		return 5
	}
	return 9
}

// ReadCompactSize reads a compact-size vector length prefix. It is the same
// encoding as ReadVarInt; the distinct name matches the spec's vocabulary
// for "compact-size prefix for vectors" versus "VARINT for integers that
// are usually small".
func ReadCompactSize(r io.Reader) (uint64, error) {
	return ReadVarInt(r)
}

// WriteCompactSize writes a compact-size vector length prefix.
func WriteCompactSize(w io.Writer, val uint64) error {
	return WriteVarInt(w, val)
}

// ReadVarBytes reads a variable length byte array: a VARINT length prefix
// followed by that many bytes. maxAllowed guards against memory exhaustion
// from a malformed length field.
func ReadVarBytes(r io.Reader, maxAllowed uint64, fieldName string) ([]byte, error) {
	count, err := ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	if count > maxAllowed {
		return nil, errors.Errorf("%s is larger than the max allowed size [count %d, max %d]",
			fieldName, count, maxAllowed)
	}
	b := make([]byte, count)
	_, err = io.ReadFull(r, b)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// WriteVarBytes serializes a variable length byte array to w as a VARINT
// length prefix followed by the bytes themselves.
func WriteVarBytes(w io.Writer, b []byte) error {
	if err := WriteVarInt(w, uint64(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

// ReadHash reads a fixed 32-byte hash from r.
func ReadHash(r io.Reader) (*daghash.Hash, error) {
	var h daghash.Hash
	if _, err := io.ReadFull(r, h[:]); err != nil {
		return nil, err
	}
	return &h, nil
}

// WriteHash writes a fixed 32-byte hash to w.
func WriteHash(w io.Writer, h *daghash.Hash) error {
	_, err := w.Write(h[:])
	return err
}
