package nds

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"iter"
)

// GPU command errors.
var (
	ErrTruncatedGPUCommands   = errors.New("truncated GPU command buffer")
	ErrUnknownGPUOpcode       = errors.New("unknown GPU opcode")
	ErrUnimplementedGPUOpcode = errors.New("unimplemented GPU opcode")
)

// CmdKind identifies the type of a decoded GPU command.
type CmdKind uint8

const (
	CmdNop      CmdKind = iota // Do nothing
	CmdRestore                 // Load the current matrix from a stack slot
	CmdScale                   // Post-multiply the current matrix by a scale
	CmdBegin                   // Begin a primitive group
	CmdEnd                     // End the current primitive group
	CmdVertex                  // Emit a vertex
	CmdTexCoord                // Set the texcoord for subsequent vertices
	CmdColor                   // Set the color for subsequent vertices
	CmdNormal                  // Set the normal for subsequent vertices
)

// String returns the command name.
func (k CmdKind) String() string {
	switch k {
	case CmdNop:
		return "Nop"
	case CmdRestore:
		return "Restore"
	case CmdScale:
		return "Scale"
	case CmdBegin:
		return "Begin"
	case CmdEnd:
		return "End"
	case CmdVertex:
		return "Vertex"
	case CmdTexCoord:
		return "TexCoord"
	case CmdColor:
		return "Color"
	case CmdNormal:
		return "Normal"
	default:
		return fmt.Sprintf("Unknown(%d)", k)
	}
}

// Primitive types for CmdBegin.
const (
	PrimSeparateTriangles uint32 = 0
	PrimSeparateQuads     uint32 = 1
	PrimTriangleStrip     uint32 = 2
	PrimQuadStrip         uint32 = 3
)

// Cmd is a decoded GPU command. Only the fields for its Kind are set.
type Cmd struct {
	Kind CmdKind

	StackIdx uint32     // CmdRestore
	Scale    [3]float64 // CmdScale
	PrimType uint32     // CmdBegin

	// Position is untransformed; the consumer applies the current matrix.
	Position [3]float64 // CmdVertex
	// TexCoord is in texels: (0,0) is the top-left corner of the image and
	// (w,h) the bottom-right.
	TexCoord [2]float64 // CmdTexCoord
	Color    [3]float32 // CmdColor
	Normal   [3]float64 // CmdNormal
}

// CmdParser iterates over the GPU commands packed in a buffer.
//
// Commands are packed in groups of four: one word holding the four opcodes,
// followed by the parameter words of the first, second, third and fourth
// command in turn.
type CmdParser struct {
	opcodes []byte // unprocessed opcodes of the current group
	buf     []byte // parameters of opcodes[0], or the next group

	// vertex is the last position sent. The partial and relative vertex
	// commands are defined in terms of it.
	vertex [3]float64

	done bool
}

// NewCmdParser returns a parser over cmds.
func NewCmdParser(cmds []byte) *CmdParser {
	return &CmdParser{buf: cmds}
}

// Next decodes the next command. It returns io.EOF when the buffer is
// exhausted cleanly. After any error the parser is finished.
func (p *CmdParser) Next() (Cmd, error) {
	if p.done {
		return Cmd{}, io.EOF
	}

	if len(p.opcodes) == 0 {
		if len(p.buf) == 0 {
			p.done = true
			return Cmd{}, io.EOF
		}
		if len(p.buf) < 4 {
			p.done = true
			return Cmd{}, fmt.Errorf("%w: %d bytes left for opcode group", ErrTruncatedGPUCommands, len(p.buf))
		}
		p.opcodes = p.buf[:4]
		p.buf = p.buf[4:]
	}

	opcode := p.opcodes[0]
	p.opcodes = p.opcodes[1:]

	n, err := numParams(opcode)
	if err != nil {
		p.done = true
		return Cmd{}, err
	}
	if len(p.buf) < 4*n {
		p.done = true
		return Cmd{}, fmt.Errorf("%w: opcode %#02x needs %d parameter words", ErrTruncatedGPUCommands, opcode, n)
	}
	params := p.buf[:4*n]
	p.buf = p.buf[4*n:]

	cmd, err := p.decode(opcode, params)
	if err != nil {
		p.done = true
		return Cmd{}, err
	}
	return cmd, nil
}

// All returns an iterator over the remaining commands. Iteration stops after
// the first error, which is yielded.
func (p *CmdParser) All() iter.Seq2[Cmd, error] {
	return func(yield func(Cmd, error) bool) {
		for {
			cmd, err := p.Next()
			if err == io.EOF {
				return
			}
			if !yield(cmd, err) || err != nil {
				return
			}
		}
	}
}

// CountVertices returns the number of vertices cmds emits, up to the first
// decode error.
func CountVertices(cmds []byte) int {
	n := 0
	for cmd, err := range NewCmdParser(cmds).All() {
		if err != nil {
			break
		}
		if cmd.Kind == CmdVertex {
			n++
		}
	}
	return n
}

func (p *CmdParser) decode(opcode uint8, params []byte) (Cmd, error) {
	param := func(i int) uint32 {
		return binary.LittleEndian.Uint32(params[4*i:])
	}
	vtx := func(x uint32) float64 {
		return Fix16(uint16(x), 1, 3, 12)
	}

	switch opcode {
	case 0x00: // NOP
		return Cmd{Kind: CmdNop}, nil

	case 0x14: // MTX_RESTORE
		return Cmd{Kind: CmdRestore, StackIdx: param(0) & 31}, nil

	case 0x1b: // MTX_SCALE
		return Cmd{Kind: CmdScale, Scale: [3]float64{
			Fix32(param(0), 1, 19, 12),
			Fix32(param(1), 1, 19, 12),
			Fix32(param(2), 1, 19, 12),
		}}, nil

	case 0x40: // BEGIN_VTXS
		return Cmd{Kind: CmdBegin, PrimType: param(0) & 3}, nil

	case 0x41: // END_VTXS
		return Cmd{Kind: CmdEnd}, nil

	case 0x23: // VTX_16
		p0, p1 := param(0), param(1)
		return p.vertexCmd([3]float64{vtx(Bits(p0, 0, 16)), vtx(Bits(p0, 16, 32)), vtx(Bits(p1, 0, 16))}), nil

	case 0x24: // VTX_10
		v := param(0)
		return p.vertexCmd([3]float64{
			Fix32(Bits(v, 0, 10), 1, 3, 6),
			Fix32(Bits(v, 10, 20), 1, 3, 6),
			Fix32(Bits(v, 20, 30), 1, 3, 6),
		}), nil

	case 0x25: // VTX_XY
		v := param(0)
		return p.vertexCmd([3]float64{vtx(Bits(v, 0, 16)), vtx(Bits(v, 16, 32)), p.vertex[2]}), nil

	case 0x26: // VTX_XZ
		v := param(0)
		return p.vertexCmd([3]float64{vtx(Bits(v, 0, 16)), p.vertex[1], vtx(Bits(v, 16, 32))}), nil

	case 0x27: // VTX_YZ
		v := param(0)
		return p.vertexCmd([3]float64{p.vertex[0], vtx(Bits(v, 0, 16)), vtx(Bits(v, 16, 32))}), nil

	case 0x28: // VTX_DIFF
		// 10-bit differences in (1,0,9) scaled by 1/8 to match the (1,3,12)
		// vertex format.
		v := param(0)
		const scale = 1.0 / 8
		return p.vertexCmd([3]float64{
			p.vertex[0] + scale*Fix32(Bits(v, 0, 10), 1, 0, 9),
			p.vertex[1] + scale*Fix32(Bits(v, 10, 20), 1, 0, 9),
			p.vertex[2] + scale*Fix32(Bits(v, 20, 30), 1, 0, 9),
		}), nil

	case 0x22: // TEXCOORD
		v := param(0)
		return Cmd{Kind: CmdTexCoord, TexCoord: [2]float64{
			Fix32(Bits(v, 0, 16), 1, 11, 4),
			Fix32(Bits(v, 16, 32), 1, 11, 4),
		}}, nil

	case 0x20: // COLOR
		v := param(0)
		return Cmd{Kind: CmdColor, Color: [3]float32{
			float32(Bits(v, 0, 5)) / 31,
			float32(Bits(v, 5, 10)) / 31,
			float32(Bits(v, 10, 15)) / 31,
		}}, nil

	case 0x21: // NORMAL
		v := param(0)
		return Cmd{Kind: CmdNormal, Normal: [3]float64{
			Fix32(Bits(v, 0, 10), 1, 0, 9),
			Fix32(Bits(v, 10, 20), 1, 0, 9),
			Fix32(Bits(v, 20, 30), 1, 0, 9),
		}}, nil
	}

	return Cmd{}, fmt.Errorf("%w: %#02x", ErrUnimplementedGPUOpcode, opcode)
}

func (p *CmdParser) vertexCmd(pos [3]float64) Cmd {
	p.vertex = pos
	return Cmd{Kind: CmdVertex, Position: pos}
}

// paramCounts is the number of parameter words for each opcode; -1 marks
// opcodes that don't exist.
var paramCounts = [66]int8{
	0, -1, -1, -1, -1, -1, -1, -1, -1, -1, -1, -1, -1, -1, -1, -1, // 0x00
	1, 0, 1, 1, 1, 0, 16, 12, 16, 12, 9, 3, 3, -1, -1, -1, // 0x10
	1, 1, 1, 2, 1, 1, 1, 1, 1, 1, 1, 1, -1, -1, -1, -1, // 0x20
	1, 1, 1, 1, 1, -1, -1, -1, -1, -1, -1, -1, -1, -1, -1, -1, // 0x30
	1, 0, // 0x40
}

func numParams(opcode uint8) (int, error) {
	if int(opcode) >= len(paramCounts) || paramCounts[opcode] < 0 {
		return 0, fmt.Errorf("%w: %#02x", ErrUnknownGPUOpcode, opcode)
	}
	return int(paramCounts[opcode]), nil
}
