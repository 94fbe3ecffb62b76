package smbus

import "golang.org/x/exp/constraints"

// SMBus payloads are little-endian: LOW byte first.

// PutLE stores the low len(b) bytes of v into b, low byte first.
func PutLE[T constraints.Unsigned](b []byte, v T) {
	for i := range b {
		b[i] = byte(v)
		v >>= 8
	}
}

// GetLE assembles b, low byte first. Bytes beyond the width of T are
// shifted out.
func GetLE[T constraints.Unsigned](b []byte) T {
	var v T
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | T(b[i])
	}
	return v
}

// SwapWord exchanges the two bytes of a 16-bit word.
func SwapWord(w uint16) uint16 { return w<<8 | w>>8 }
