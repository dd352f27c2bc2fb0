// Package primitives replays a model's render commands numerically to
// produce vertex and index buffers for a given pose.
//
// Vertices come out in the same order as skeleton.BuildVertexRecord visits
// them, so skin data can be zipped against them index for index.
package primitives

import (
	"errors"

	"github.com/chewxy/math32"
	"go.uber.org/zap"

	"github.com/Faultbox/nitro-rig/internal/logger"
	"github.com/Faultbox/nitro-rig/pkg/math"
	"github.com/Faultbox/nitro-rig/pkg/nds"
	"github.com/Faultbox/nitro-rig/pkg/nitro"
	"github.com/Faultbox/nitro-rig/pkg/nitro/render"
)

// ErrTooManyVertices reports a model whose draws don't fit in one 16-bit
// indexed vertex buffer.
var ErrTooManyVertices = errors.New("too many vertices")

// Vertex is one vertex of the output buffer.
type Vertex struct {
	Position [3]float32
	TexCoord [2]float32
	Color    [3]float32
	Normal   [3]float32
}

// defaultVertex holds the attributes a vertex gets before any GPU command
// sets them.
var defaultVertex = Vertex{Color: [3]float32{1, 1, 1}}

// Range is a half-open range [Start, End).
type Range struct {
	Start, End int
}

// Len returns the number of elements in the range.
func (r Range) Len() int { return r.End - r.Start }

// DrawCall records what one Draw render command produced.
type DrawCall struct {
	VertexRange Range
	IndexRange  Range
	MaterialIdx uint8
	MeshIdx     uint8
}

// Bounds is an axis-aligned bounding box.
type Bounds struct {
	Min [3]float32
	Max [3]float32
}

// Primitives is the vertex and index data for a model in one pose.
type Primitives struct {
	Vertices  []Vertex
	Indices   []uint16
	PolyType  PolyType
	DrawCalls []DrawCall
	Bounds    Bounds
	// DroppedDraws counts draws skipped because they would overflow the
	// vertex buffer.
	DroppedDraws int
}

// DynamicState is the pose-dependent input to Build.
type DynamicState struct {
	// Objects are the object matrices, one per model object.
	Objects []math.Mat4
	// UVMats optionally override the texture matrix of each material.
	UVMats []math.Mat4
}

// RestState returns the dynamic state of the model's rest pose.
func RestState(model *nitro.Model) DynamicState {
	return DynamicState{Objects: model.RestPose()}
}

// Build replays the model's render commands with state's matrices. The
// model must have passed Validate.
func Build(model *nitro.Model, polyType PolyType, state DynamicState) *Primitives {
	b := &builder{
		model: model,
		state: state,
		ib:    NewIndexBuilder(polyType),
		cur:   math.Identity(),
	}
	for i := range b.stack {
		b.stack[i] = math.Identity()
	}
	render.Replay(model.RenderOps, b)

	return &Primitives{
		Vertices:  b.vertices,
		Indices:   b.ib.Indices,
		PolyType:  polyType,
		DrawCalls: b.drawCalls,
		Bounds:    bounds(b.vertices),

		DroppedDraws: b.dropped,
	}
}

// builder is a render.Sink over a numeric matrix stack.
type builder struct {
	model *nitro.Model
	state DynamicState

	cur   math.Mat4
	stack [render.StackSize]math.Mat4

	// texture state of the draw in progress
	texWidth, texHeight float64
	texMat              math.Mat4

	vertices  []Vertex
	ib        *IndexBuilder
	drawCalls []DrawCall
	next      Vertex
	dropped   int
}

func (b *builder) LoadMatrix(pos uint8)  { b.cur = b.stack[pos] }
func (b *builder) StoreMatrix(pos uint8) { b.stack[pos] = b.cur }

func (b *builder) MulByObject(objectIdx uint8) {
	b.cur = b.cur.Mul(b.state.Objects[objectIdx])
}

func (b *builder) Blend(terms []render.SkinTerm) {
	var m math.Mat4
	for _, t := range terms {
		term := b.stack[t.StackPos].Mul(b.model.InvBinds[t.InvBindIdx])
		m = m.Add(term.MulScalar(t.Weight))
	}
	b.cur = m
}

func (b *builder) ScaleUp() {
	b.cur = b.cur.Mul(math.UniformScale(b.model.UpScale))
}

func (b *builder) ScaleDown() {
	b.cur = b.cur.Mul(math.UniformScale(b.model.DownScale))
}

func (b *builder) BindMaterial(uint8) {}

func (b *builder) Draw(meshIdx, materialIdx uint8) {
	mesh := &b.model.Meshes[meshIdx]
	if !nitro.FitsVertexBuffer(len(b.vertices), mesh) {
		logger.Error("vertex buffer full; skipping draw",
			zap.String("model", b.model.Name),
			zap.Uint8("mesh", meshIdx),
			zap.Int("vertices", len(b.vertices)))
		b.dropped++
		return
	}
	b.bindTexture(materialIdx)

	call := DrawCall{
		VertexRange: Range{len(b.vertices), len(b.vertices)},
		IndexRange:  Range{len(b.ib.Indices), len(b.ib.Indices)},
		MaterialIdx: materialIdx,
		MeshIdx:     meshIdx,
	}
	b.next = defaultVertex

	b.runGPUCommands(mesh)
	// Groups don't carry over from one mesh to the next.
	b.ib.End()

	call.VertexRange.End = len(b.vertices)
	call.IndexRange.End = len(b.ib.Indices)
	b.drawCalls = append(b.drawCalls, call)
}

func (b *builder) bindTexture(materialIdx uint8) {
	b.texWidth, b.texHeight = 1, 1
	b.texMat = math.Identity()
	if int(materialIdx) < len(b.model.Materials) {
		mat := &b.model.Materials[materialIdx]
		if mat.Width > 0 && mat.Height > 0 {
			b.texWidth, b.texHeight = float64(mat.Width), float64(mat.Height)
		}
		b.texMat = mat.TextureMat
	}
	if int(materialIdx) < len(b.state.UVMats) {
		b.texMat = b.state.UVMats[materialIdx]
	}
}

func (b *builder) runGPUCommands(mesh *nitro.Mesh) {
	for cmd, err := range nds.NewCmdParser(mesh.GPUCommands).All() {
		if err != nil {
			logger.Warn("stopping mesh early on bad GPU commands",
				zap.String("model", b.model.Name),
				zap.String("mesh", mesh.Name),
				zap.Error(err))
			return
		}

		switch cmd.Kind {
		case nds.CmdRestore:
			b.cur = b.stack[cmd.StackIdx]
		case nds.CmdScale:
			b.cur = b.cur.Mul(math.Scale(cmd.Scale[0], cmd.Scale[1], cmd.Scale[2]))
		case nds.CmdBegin:
			b.ib.Begin(cmd.PrimType)
		case nds.CmdEnd:
			b.ib.End()
		case nds.CmdTexCoord:
			b.next.TexCoord = b.texCoord(cmd.TexCoord)
		case nds.CmdColor:
			b.next.Color = cmd.Color
		case nds.CmdNormal:
			b.next.Normal = normalize(b.cur.TransformDirection(cmd.Normal))
		case nds.CmdVertex:
			p := b.cur.TransformPoint(cmd.Position)
			b.next.Position = [3]float32{float32(p[0]), float32(p[1]), float32(p[2])}
			b.vertices = append(b.vertices, b.next)
			b.ib.Vertex()
		}
	}
}

// texCoord maps texel coordinates to [0,1]x[0,1] with y up, then applies the
// texture matrix.
func (b *builder) texCoord(st [2]float64) [2]float32 {
	uv := b.texMat.MulVec4(math.Vec4{st[0] / b.texWidth, 1 - st[1]/b.texHeight, 0, 0})
	return [2]float32{float32(uv[0]), float32(uv[1])}
}

func normalize(n [3]float64) [3]float32 {
	v := [3]float32{float32(n[0]), float32(n[1]), float32(n[2])}
	l := math32.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
	if l == 0 {
		return v
	}
	return [3]float32{v[0] / l, v[1] / l, v[2] / l}
}

func bounds(vertices []Vertex) Bounds {
	if len(vertices) == 0 {
		return Bounds{}
	}
	bb := Bounds{Min: vertices[0].Position, Max: vertices[0].Position}
	for _, v := range vertices[1:] {
		for i, c := range v.Position {
			bb.Min[i] = math32.Min(bb.Min[i], c)
			bb.Max[i] = math32.Max(bb.Max[i], c)
		}
	}
	return bb
}
