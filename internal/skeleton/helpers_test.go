package skeleton

import (
	"github.com/Faultbox/nitro-rig/pkg/math"
	"github.com/Faultbox/nitro-rig/pkg/nds"
	"github.com/Faultbox/nitro-rig/pkg/nitro"
	"github.com/Faultbox/nitro-rig/pkg/nitro/render"
)

func opLoad(pos uint8) render.Op  { return render.Op{Kind: render.OpLoadMatrix, StackPos: pos} }
func opStore(pos uint8) render.Op { return render.Op{Kind: render.OpStoreMatrix, StackPos: pos} }
func opMul(obj uint8) render.Op   { return render.Op{Kind: render.OpMulByObject, ObjectIdx: obj} }
func opDraw(mesh uint8) render.Op { return render.Op{Kind: render.OpDraw, MeshIdx: mesh} }

func opBlend(terms ...render.SkinTerm) render.Op {
	return render.Op{Kind: render.OpBlend, Terms: terms}
}

// triangle is a mesh drawing one separate triangle.
func triangle() nitro.Mesh {
	return nitro.Mesh{
		Name: "triangle",
		GPUCommands: nds.Pack(
			nds.Begin(nds.PrimSeparateTriangles),
			nds.Vertex16(0, 0, 0),
			nds.Vertex16(1, 0, 0),
			nds.Vertex16(0, 1, 0),
			nds.End(),
		),
	}
}

// testModel builds a model with the given object matrices, one triangle mesh
// and the given render ops.
func testModel(objects []math.Mat4, invBinds []math.Mat4, ops ...render.Op) *nitro.Model {
	m := &nitro.Model{
		Name:      "test",
		Meshes:    []nitro.Mesh{triangle()},
		InvBinds:  invBinds,
		RenderOps: ops,
		UpScale:   1,
		DownScale: 1,
	}
	for i, mat := range objects {
		m.Objects = append(m.Objects, nitro.Object{Name: objectName(i), Matrix: mat})
	}
	return m
}

func objectName(i int) string {
	return string(rune('a' + i))
}

func build(m *nitro.Model) (*VertexRecord, *Skeleton) {
	vr := BuildVertexRecord(m)
	return vr, BuildSkeleton(vr, m, m.RestPose())
}
