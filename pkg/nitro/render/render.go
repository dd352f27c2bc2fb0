// Package render interprets the render commands of a Nitro model.
//
// Render commands are the per-model program that sets up the GPU matrix
// stack, binds materials and draws meshes. Each command is analysed into zero
// or more operations on a Sink (think micro-ops to a CPU instruction), so a
// consumer never needs to know which concrete opcode produced an operation.
package render

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/nitro-rig/internal/logger"
)

// Render command errors.
var (
	ErrTruncatedRenderCommands = errors.New("render commands ended without an end command")
	ErrUnknownRenderOpcode     = errors.New("unknown render command opcode")
)

// StackSize is the number of slots in the GPU matrix stack.
const StackSize = 32

// SkinTerm is one term of the skinning equation
//
//	cur_matrix = Σ Weight * matrix_stack[StackPos] * inv_binds[InvBindIdx]
type SkinTerm struct {
	StackPos   uint8
	InvBindIdx uint8
	Weight     float64
}

// Sink receives the operations decoded from a render command stream.
type Sink interface {
	// LoadMatrix sets cur_matrix = matrix_stack[stackPos].
	LoadMatrix(stackPos uint8)
	// StoreMatrix sets matrix_stack[stackPos] = cur_matrix.
	StoreMatrix(stackPos uint8)
	// MulByObject sets cur_matrix = cur_matrix * objects[objectIdx].
	MulByObject(objectIdx uint8)
	// Blend sets cur_matrix to the skinning equation over terms.
	Blend(terms []SkinTerm)
	// ScaleUp sets cur_matrix = cur_matrix * scale(up_scale).
	ScaleUp()
	// ScaleDown sets cur_matrix = cur_matrix * scale(down_scale).
	ScaleDown()
	// BindMaterial binds materials[materialIdx] for subsequent draws.
	BindMaterial(materialIdx uint8)
	// Draw draws meshes[meshIdx] with the bound material.
	Draw(meshIdx, materialIdx uint8)
}

// Run decodes buf and drives sink through the resulting operations. It
// returns nil when the end command is reached.
func Run(buf []byte, sink Sink) error {
	var curMaterial uint8
	pos := 0

	for {
		opcode, params, err := nextCommand(buf, pos)
		if err != nil {
			return err
		}
		pos += 1 + len(params)

		switch opcode {
		case 0x00:
			// NOP

		case 0x01:
			// End of render commands
			return nil

		case 0x02:
			// Visibility. Always present once per model, after the initial
			// stack setup. Emits no GPU commands.

		case 0x03:
			sink.LoadMatrix(params[0])

		case 0x04, 0x24, 0x44:
			curMaterial = params[0]
			sink.BindMaterial(curMaterial)

		case 0x05:
			sink.Draw(params[0], curMaterial)

		case 0x06, 0x26, 0x46, 0x66:
			// Multiply by an object matrix, optionally loading a stack slot
			// first and optionally storing the result after. params[1] is
			// the parent object and params[2] is unknown.
			objectIdx := params[0]
			var load, store bool
			var loadPos, storePos uint8
			switch opcode {
			case 0x26:
				store, storePos = true, params[3]
			case 0x46:
				load, loadPos = true, params[3]
			case 0x66:
				store, storePos = true, params[3]
				load, loadPos = true, params[4]
			}

			if load {
				sink.LoadMatrix(loadPos)
			}
			sink.MulByObject(objectIdx)
			if store {
				sink.StoreMatrix(storePos)
			}

		case 0x09:
			// Skinning. Vertices drawn under this matrix are in model space;
			// the inverse binds take them into each influencing object's
			// local space. The result is always stored to params[0].
			storePos := params[0]
			numTerms := int(params[1])
			terms := make([]SkinTerm, numTerms)
			for i := range terms {
				p := params[2+3*i:]
				terms[i] = SkinTerm{
					StackPos:   p[0],
					InvBindIdx: p[1],
					Weight:     float64(p[2]) / 256,
				}
			}
			sink.Blend(terms)
			sink.StoreMatrix(storePos)

		case 0x0b:
			sink.ScaleUp()

		case 0x2b:
			sink.ScaleDown()

		default:
			logger.Debug("skipping render command",
				zap.Uint8("opcode", opcode),
				zap.Binary("params", params))
		}
	}
}

// nextCommand returns the opcode at buf[pos] and its parameter bytes.
func nextCommand(buf []byte, pos int) (uint8, []byte, error) {
	if pos >= len(buf) {
		return 0, nil, fmt.Errorf("%w (offset %#x)", ErrTruncatedRenderCommands, pos)
	}
	opcode := buf[pos]

	var n int
	if opcode == 0x09 {
		// The only variable-length command: store position, term count,
		// then count (stack pos, inv bind, weight) triples.
		if pos+2 >= len(buf) {
			return 0, nil, fmt.Errorf("%w (skin command at %#x)", ErrTruncatedRenderCommands, pos)
		}
		n = 2 + 3*int(buf[pos+2])
	} else {
		size, ok := paramSizes[opcode]
		if !ok {
			return 0, nil, fmt.Errorf("%w: %#02x at offset %#x", ErrUnknownRenderOpcode, opcode, pos)
		}
		n = size
	}

	if pos+1+n > len(buf) {
		return 0, nil, fmt.Errorf("%w (opcode %#02x at %#x)", ErrTruncatedRenderCommands, opcode, pos)
	}
	return opcode, buf[pos+1 : pos+1+n], nil
}

// paramSizes is the parameter byte count of each fixed-size opcode.
var paramSizes = map[uint8]int{
	0x00: 0,
	0x01: 0,
	0x02: 2,
	0x03: 1,
	0x04: 1,
	0x05: 1,
	0x06: 3,
	0x07: 1,
	0x08: 1,
	0x0b: 0,
	0x0c: 2,
	0x0d: 2,
	0x24: 1,
	0x26: 4,
	0x2b: 0,
	0x40: 0,
	0x44: 1,
	0x46: 4,
	0x47: 2,
	0x66: 5,
	0x80: 0,
}
