package primitives

import (
	"go.uber.org/zap"

	"github.com/Faultbox/nitro-rig/internal/logger"
	"github.com/Faultbox/nitro-rig/pkg/nds"
)

// NoIndex fills the fourth slot of a triangle when faces are written four
// indices at a time.
const NoIndex uint16 = 0xffff

// PolyType selects how faces are written to the index buffer.
type PolyType uint8

const (
	// PolyTypeTris writes three indices per triangle. Quads are split in two.
	PolyTypeTris PolyType = iota
	// PolyTypeTrisAndQuads writes four indices per face. Triangles have
	// NoIndex as their fourth index.
	PolyTypeTrisAndQuads
)

func (p PolyType) String() string {
	if p == PolyTypeTrisAndQuads {
		return "tris+quads"
	}
	return "tris"
}

// IndexBuilder turns the primitive groups of GPU commands into an index
// buffer. It only tracks topology; vertex data is kept by the caller, one
// vertex per Vertex call.
type IndexBuilder struct {
	Indices []uint16

	polyType PolyType
	primType uint32
	// vertices of the open primitive group
	start, end uint16
}

// NewIndexBuilder returns a builder writing faces as polyType.
func NewIndexBuilder(polyType PolyType) *IndexBuilder {
	return &IndexBuilder{polyType: polyType}
}

// Begin starts a new primitive group, closing any open one.
func (b *IndexBuilder) Begin(primType uint32) {
	b.End()
	b.primType = primType
}

// Vertex adds the next vertex to the open group.
func (b *IndexBuilder) Vertex() {
	b.end++
}

// End closes the open group and writes its faces. Vertices left over that
// don't make a whole primitive are dropped with a warning.
func (b *IndexBuilder) End() {
	start, end := b.start, b.end
	b.start = end
	if start == end {
		return
	}

	var complete bool
	switch b.primType {
	case nds.PrimSeparateTriangles:
		//    0      5
		//   / \    / \
		//  1---2  3---4
		i := start
		for ; i+2 < end; i += 3 {
			b.tri(i, i+1, i+2)
		}
		complete = i == end

	case nds.PrimSeparateQuads:
		//  0---3  6---5
		//  |   |  |   |
		//  1---2  7---4
		i := start
		for ; i+3 < end; i += 4 {
			b.quad(i, i+1, i+2, i+3)
		}
		complete = i == end

	case nds.PrimTriangleStrip:
		//  0---2---4
		//   \ / \ / \
		//    1---3---5
		odd := false
		for i := start; i+2 < end; i++ {
			if odd {
				b.tri(i, i+2, i+1)
			} else {
				b.tri(i, i+1, i+2)
			}
			odd = !odd
		}
		complete = end-start > 2

	case nds.PrimQuadStrip:
		//  0---2---4
		//  |   |   |
		//  1---3---5
		i := start
		for ; i+3 < end; i += 2 {
			if b.polyType == PolyTypeTrisAndQuads {
				b.Indices = append(b.Indices, i, i+1, i+3, i+2)
			} else {
				b.Indices = append(b.Indices, i, i+1, i+2, i+2, i+1, i+3)
			}
		}
		complete = end-start > 3 && i+2 == end
	}

	if !complete {
		logger.Warn("primitive group left open; not enough vertices to complete a primitive",
			zap.Uint32("prim_type", b.primType),
			zap.Uint16("vertices", end-start))
	}
}

func (b *IndexBuilder) tri(i0, i1, i2 uint16) {
	if b.polyType == PolyTypeTrisAndQuads {
		b.Indices = append(b.Indices, i0, i1, i2, NoIndex)
		return
	}
	b.Indices = append(b.Indices, i0, i1, i2)
}

// quad writes the face with corners i0..i3 in winding order.
func (b *IndexBuilder) quad(i0, i1, i2, i3 uint16) {
	if b.polyType == PolyTypeTrisAndQuads {
		b.Indices = append(b.Indices, i0, i1, i2, i3)
		return
	}
	b.Indices = append(b.Indices, i0, i1, i2, i2, i3, i0)
}
