package skeleton

import (
	"go.uber.org/zap"

	"github.com/Faultbox/nitro-rig/internal/logger"
	"github.com/Faultbox/nitro-rig/pkg/nds"
	"github.com/Faultbox/nitro-rig/pkg/nitro"
	"github.com/Faultbox/nitro-rig/pkg/nitro/render"
)

// MatrixIdx indexes VertexRecord.Matrices.
type MatrixIdx uint32

// VertexRecord records which symbolic matrix applies to each vertex of a
// model. It depends only on the render commands, not on the pose.
type VertexRecord struct {
	// Matrices is every AMatrix computed while drawing the model. Entry 0 is
	// the identity. Entries are appended and never modified.
	Matrices []AMatrix
	// Vertices holds, for each vertex in draw order, the index of the matrix
	// applied to it.
	Vertices []MatrixIdx
}

// BuildVertexRecord runs the model's render commands over a symbolic matrix
// stack. The model must have passed Validate.
func BuildVertexRecord(model *nitro.Model) *VertexRecord {
	b := &vertexRecordBuilder{
		model: model,
		vr:    &VertexRecord{Matrices: []AMatrix{AMatrixOne()}},
	}
	render.Replay(model.RenderOps, b)
	return b.vr
}

// vertexRecordBuilder is a render.Sink that tracks symbolic matrices.
type vertexRecordBuilder struct {
	model *nitro.Model
	vr    *VertexRecord

	curMatrix MatrixIdx
	// stack slots are nil until stored to or first read
	stack [render.StackSize]*MatrixIdx
}

func (b *vertexRecordBuilder) addMatrix(m AMatrix) MatrixIdx {
	b.vr.Matrices = append(b.vr.Matrices, m)
	return MatrixIdx(len(b.vr.Matrices) - 1)
}

// fetch returns the matrix in a stack slot. Reading a slot that was never
// stored to creates an Uninitialized matrix for it and caches it there, so
// every read of the slot sees the same entry.
func (b *vertexRecordBuilder) fetch(pos uint8) MatrixIdx {
	if b.stack[pos] == nil {
		idx := b.addMatrix(FromSMatrix(Uninitialized(pos)))
		b.stack[pos] = &idx
	}
	return *b.stack[pos]
}

func (b *vertexRecordBuilder) LoadMatrix(pos uint8) {
	b.curMatrix = b.fetch(pos)
}

func (b *vertexRecordBuilder) StoreMatrix(pos uint8) {
	idx := b.curMatrix
	b.stack[pos] = &idx
}

func (b *vertexRecordBuilder) MulByObject(objectIdx uint8) {
	m := b.vr.Matrices[b.curMatrix].MulSMatrix(Object(objectIdx))
	b.curMatrix = b.addMatrix(m)
}

// Blend computes sum(weight * stack[pos] * invBind) into a new entry. The
// store that always follows a blend comes as its own StoreMatrix.
func (b *vertexRecordBuilder) Blend(terms []render.SkinTerm) {
	acc := AMatrixZero()
	for _, t := range terms {
		idx := b.fetch(t.StackPos)
		m := b.vr.Matrices[idx]
		acc = acc.Add(m.MulSMatrix(InvBind(t.InvBindIdx)).MulScalar(t.Weight))
	}
	b.curMatrix = b.addMatrix(acc)
}

// Scaling is ignored. In practice the scale ends up in the pose-invariant
// suffix the joint tree builder trims off, so it doesn't change the
// skeleton.
func (b *vertexRecordBuilder) ScaleUp()   {}
func (b *vertexRecordBuilder) ScaleDown() {}

func (b *vertexRecordBuilder) BindMaterial(uint8) {}

// Draw skips meshes that would overflow the vertex buffer, the same way
// primitives.Build does, so the two stay index for index.
func (b *vertexRecordBuilder) Draw(meshIdx, _ uint8) {
	mesh := &b.model.Meshes[meshIdx]
	if !nitro.FitsVertexBuffer(len(b.vr.Vertices), mesh) {
		return
	}
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
			b.LoadMatrix(uint8(cmd.StackIdx))
		case nds.CmdVertex:
			b.vr.Vertices = append(b.vr.Vertices, b.curMatrix)
		}
	}
}
