// Package nds decodes data in the formats consumed by the Nintendo DS 3D
// engine: packed bit fields, fixed-point numbers and GPU command lists.
//
// See the GBATEK documentation for the hardware reference.
package nds

import "math"

// Bits returns the bits of x in the range [lo, hi) shifted down to the low
// end of the result.
func Bits(x uint32, lo, hi uint) uint32 {
	if hi-lo >= 32 {
		return x >> lo
	}
	return (x >> lo) & (1<<(hi-lo) - 1)
}

// Fix32 reads a fixed-point number from the low bits of x.
//
// The format (signBits, intBits, fracBits) gives the number of sign, integer
// and fraction bits. The low signBits+intBits+fracBits bits of x are read as
// an integer (two's complement when signBits is 1) and scaled by
// 2^-fracBits. For example vertex coordinates are (1,3,12).
func Fix32(x uint32, signBits, intBits, fracBits uint) float64 {
	width := signBits + intBits + fracBits
	x = Bits(x, 0, width)

	var y float64
	if signBits == 0 {
		y = float64(x)
	} else {
		signMask := uint32(1) << (intBits + fracBits)
		if x&signMask != 0 {
			y = float64(int32(x | ^(signMask - 1)))
		} else {
			y = float64(x)
		}
	}
	return y * math.Ldexp(1, -int(fracBits))
}

// Fix16 is Fix32 for 16-bit values.
func Fix16(x uint16, signBits, intBits, fracBits uint) float64 {
	return Fix32(uint32(x), signBits, intBits, fracBits)
}
