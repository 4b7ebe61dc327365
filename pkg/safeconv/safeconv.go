// Package safeconv provides safe integer type conversion functions that panic on overflow.
package safeconv

import "math"

// MaxUint32 is the maximum value for uint32 type.
const MaxUint32 = uint32(math.MaxUint32)

// MustUintToUint32 converts uint to uint32, panics on overflow.
// Use only when overflow is logically impossible (byte offsets into
// in-memory source files cannot exceed 4 GiB).
func MustUintToUint32(v uint) uint32 {
	if v > uint(MaxUint32) {
		panic("safeconv: uint to uint32 overflow")
	}

	return uint32(v)
}
