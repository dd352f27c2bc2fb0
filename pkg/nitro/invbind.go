package nitro

import (
	"encoding/binary"

	"github.com/Faultbox/nitro-rig/pkg/math"
	"github.com/Faultbox/nitro-rig/pkg/nds"
)

// invBindSize is the size of one inverse bind entry: a 4x3 matrix followed by
// a 3x3 matrix (possibly for normals) that we ignore, each entry a (1,19,12)
// fixed-point word.
const invBindSize = (4*3 + 3*3) * 4

// DecodeInvBinds reads up to n inverse bind matrices from buf. Models that
// don't skin often store fewer than one per object, so it stops quietly at
// the end of the buffer.
func DecodeInvBinds(buf []byte, n int) []math.Mat4 {
	invBinds := make([]math.Mat4, 0, n)
	for i := 0; i < n && len(buf) >= invBindSize; i++ {
		e := func(j int) float64 {
			return nds.Fix32(binary.LittleEndian.Uint32(buf[4*j:]), 1, 19, 12)
		}
		invBinds = append(invBinds, math.Mat4{
			e(0), e(1), e(2), 0,
			e(3), e(4), e(5), 0,
			e(6), e(7), e(8), 0,
			e(9), e(10), e(11), 1,
		})
		buf = buf[invBindSize:]
	}
	return invBinds
}

// DecodeMatrix4x3 reads twelve (1,19,12) words in the same column order as
// DecodeInvBinds, without the trailing 3x3.
func DecodeMatrix4x3(words [12]uint32) math.Mat4 {
	e := func(j int) float64 {
		return nds.Fix32(words[j], 1, 19, 12)
	}
	return math.Mat4{
		e(0), e(1), e(2), 0,
		e(3), e(4), e(5), 0,
		e(6), e(7), e(8), 0,
		e(9), e(10), e(11), 1,
	}
}
