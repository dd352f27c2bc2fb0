package nds

import (
	"encoding/binary"
	"math"
)

// RawCmd is an undecoded GPU command: an opcode and its parameter words.
type RawCmd struct {
	Opcode uint8
	Params []uint32
}

// Pack encodes cmds in the grouped layout read by CmdParser. The last group
// is padded with NOPs.
func Pack(cmds ...RawCmd) []byte {
	var out []byte
	for len(cmds) > 0 {
		group := cmds
		if len(group) > 4 {
			group = group[:4]
		}
		cmds = cmds[len(group):]

		var opcodes [4]byte
		for i, c := range group {
			opcodes[i] = c.Opcode
		}
		out = append(out, opcodes[:]...)
		for _, c := range group {
			for _, p := range c.Params {
				out = binary.LittleEndian.AppendUint32(out, p)
			}
		}
	}
	return out
}

// ToFix encodes v as a two's complement fixed-point number with fracBits
// fraction bits. The caller masks the result down to the field width.
func ToFix(v float64, fracBits uint) uint32 {
	return uint32(int32(math.Round(math.Ldexp(v, int(fracBits)))))
}

// Begin returns a BEGIN_VTXS command.
func Begin(primType uint32) RawCmd {
	return RawCmd{Opcode: 0x40, Params: []uint32{primType}}
}

// End returns an END_VTXS command.
func End() RawCmd {
	return RawCmd{Opcode: 0x41}
}

// Restore returns an MTX_RESTORE command.
func Restore(stackIdx uint32) RawCmd {
	return RawCmd{Opcode: 0x14, Params: []uint32{stackIdx}}
}

// Vertex16 returns a VTX_16 command for the given position.
func Vertex16(x, y, z float64) RawCmd {
	fx := ToFix(x, 12) & 0xffff
	fy := ToFix(y, 12) & 0xffff
	fz := ToFix(z, 12) & 0xffff
	return RawCmd{Opcode: 0x23, Params: []uint32{fx | fy<<16, fz}}
}

// TexCoord returns a TEXCOORD command for a texel-space coordinate.
func TexCoord(s, t float64) RawCmd {
	fs := ToFix(s, 4) & 0xffff
	ft := ToFix(t, 4) & 0xffff
	return RawCmd{Opcode: 0x22, Params: []uint32{fs | ft<<16}}
}

// Color returns a COLOR command from 5-bit channels.
func Color(r, g, b uint32) RawCmd {
	return RawCmd{Opcode: 0x20, Params: []uint32{r&31 | (g&31)<<5 | (b&31)<<10}}
}

// Normal returns a NORMAL command.
func Normal(x, y, z float64) RawCmd {
	fx := ToFix(x, 9) & 0x3ff
	fy := ToFix(y, 9) & 0x3ff
	fz := ToFix(z, 9) & 0x3ff
	return RawCmd{Opcode: 0x21, Params: []uint32{fx | fy<<10 | fz<<20}}
}

// Scale returns an MTX_SCALE command.
func Scale(x, y, z float64) RawCmd {
	return RawCmd{Opcode: 0x1b, Params: []uint32{ToFix(x, 12), ToFix(y, 12), ToFix(z, 12)}}
}
