// Package cleanse holds sensitive byte buffers (private keys, passphrases)
// that must never be logged and must be explicitly zeroed rather than left
// to garbage collection, per the design note on memory-cleansing sensitive
// buffers: Go gives no zero-on-drop guarantee, so callers must call Zero
// themselves once the buffer is no longer needed.
package cleanse

// Bytes is a byte slice that should be wiped with Zero as soon as it is no
// longer needed. It deliberately has no String/GoString method so that
// fmt/%v and logging calls do not accidentally print it.
type Bytes []byte

// Zero overwrites every byte of b with 0. It is safe to call multiple times
// and on a nil or empty slice.
func Zero(b Bytes) {
	for i := range b {
		b[i] = 0
	}
}

// New copies src into a fresh Bytes buffer the caller owns and must Zero.
func New(src []byte) Bytes {
	b := make(Bytes, len(src))
	copy(b, src)
	return b
}
