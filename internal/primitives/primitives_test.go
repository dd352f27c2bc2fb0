package primitives

import (
	"testing"

	"github.com/chewxy/math32"

	"github.com/Faultbox/nitro-rig/pkg/math"
	"github.com/Faultbox/nitro-rig/pkg/nds"
	"github.com/Faultbox/nitro-rig/pkg/nitro"
	"github.com/Faultbox/nitro-rig/pkg/nitro/render"
)

func near(a, b [3]float32) bool {
	for i := range a {
		if math32.Abs(a[i]-b[i]) > 1e-5 {
			return false
		}
	}
	return true
}

func newModel(objects []math.Mat4, gpu []byte, ops ...render.Op) *nitro.Model {
	m := &nitro.Model{
		Name: "test",
		Materials: []nitro.Material{
			{Name: "skin", Width: 16, Height: 8, TextureMat: math.Identity()},
		},
		Meshes:    []nitro.Mesh{{Name: "mesh", GPUCommands: gpu}},
		RenderOps: ops,
		UpScale:   2,
		DownScale: 0.5,
	}
	for _, o := range objects {
		m.Objects = append(m.Objects, nitro.Object{Matrix: o})
	}
	return m
}

func draw(mesh, material uint8) render.Op {
	return render.Op{Kind: render.OpDraw, MeshIdx: mesh, MaterialIdx: material}
}

func TestBuild_Triangle(t *testing.T) {
	rotZ := math.FromMat3x3([9]float64{0, 1, 0, -1, 0, 0, 0, 0, 1})
	obj := math.Translate(1, 2, 3).Mul(rotZ)
	gpu := nds.Pack(
		nds.Begin(nds.PrimSeparateTriangles),
		nds.Vertex16(0, 0, 0),
		nds.Color(31, 0, 0),
		nds.TexCoord(8, 2),
		nds.Normal(0.5, 0, 0),
		nds.Vertex16(1, 0, 0),
		nds.Vertex16(0, 1, 0),
		nds.End(),
	)
	m := newModel([]math.Mat4{obj}, gpu,
		render.Op{Kind: render.OpMulByObject, ObjectIdx: 0},
		draw(0, 0),
	)

	p := Build(m, PolyTypeTris, RestState(m))

	if len(p.Vertices) != 3 {
		t.Fatalf("got %d vertices, want 3", len(p.Vertices))
	}
	wantPos := [][3]float32{{1, 2, 3}, {1, 3, 3}, {0, 2, 3}}
	for i, want := range wantPos {
		if !near(p.Vertices[i].Position, want) {
			t.Errorf("vertex %d position = %v, want %v", i, p.Vertices[i].Position, want)
		}
	}

	v0, v1 := p.Vertices[0], p.Vertices[1]
	if v0.Color != [3]float32{1, 1, 1} || v0.Normal != [3]float32{} {
		t.Errorf("first vertex should have default attributes, got %+v", v0)
	}
	if v1.Color != [3]float32{1, 0, 0} {
		t.Errorf("color = %v", v1.Color)
	}
	if v1.TexCoord != [2]float32{0.5, 0.75} {
		t.Errorf("texcoord = %v, want [0.5 0.75]", v1.TexCoord)
	}
	if !near(v1.Normal, [3]float32{0, 1, 0}) {
		t.Errorf("normal = %v, want unit y", v1.Normal)
	}
	if p.Vertices[2].Color != v1.Color {
		t.Error("attributes should carry over to later vertices")
	}

	if len(p.Indices) != 3 || len(p.DrawCalls) != 1 {
		t.Fatalf("indices = %v, draw calls = %+v", p.Indices, p.DrawCalls)
	}
	call := p.DrawCalls[0]
	if call.VertexRange != (Range{0, 3}) || call.IndexRange != (Range{0, 3}) {
		t.Errorf("draw call = %+v", call)
	}

	if !near(p.Bounds.Min, [3]float32{0, 2, 3}) || !near(p.Bounds.Max, [3]float32{1, 3, 3}) {
		t.Errorf("bounds = %+v", p.Bounds)
	}
}

func TestBuild_Blend(t *testing.T) {
	gpu := nds.Pack(nds.Begin(nds.PrimSeparateTriangles), nds.Vertex16(0, 0, 0))
	m := newModel([]math.Mat4{math.Translate(1, 0, 0), math.Translate(0, 2, 0)}, gpu,
		render.Op{Kind: render.OpStoreMatrix, StackPos: 0},
		render.Op{Kind: render.OpMulByObject, ObjectIdx: 0},
		render.Op{Kind: render.OpStoreMatrix, StackPos: 1},
		render.Op{Kind: render.OpLoadMatrix, StackPos: 0},
		render.Op{Kind: render.OpMulByObject, ObjectIdx: 1},
		render.Op{Kind: render.OpStoreMatrix, StackPos: 2},
		render.Op{Kind: render.OpBlend, Terms: []render.SkinTerm{
			{StackPos: 1, InvBindIdx: 0, Weight: 0.5},
			{StackPos: 2, InvBindIdx: 0, Weight: 0.5},
		}},
		draw(0, 0),
	)
	m.InvBinds = []math.Mat4{math.Identity()}

	p := Build(m, PolyTypeTris, RestState(m))
	if got := p.Vertices[0].Position; !near(got, [3]float32{0.5, 1, 0}) {
		t.Errorf("blended position = %v", got)
	}
}

func TestBuild_Scaling(t *testing.T) {
	gpu := nds.Pack(
		nds.Restore(4),
		nds.Vertex16(1, 0, 0),
		nds.Scale(3, 1, 1),
		nds.Vertex16(1, 0, 0),
	)
	m := newModel(nil, gpu,
		render.Op{Kind: render.OpScaleUp},
		render.Op{Kind: render.OpStoreMatrix, StackPos: 4},
		draw(0, 0),
		render.Op{Kind: render.OpLoadMatrix, StackPos: 31},
		render.Op{Kind: render.OpScaleDown},
		render.Op{Kind: render.OpStoreMatrix, StackPos: 4},
		draw(0, 0),
	)

	p := Build(m, PolyTypeTris, RestState(m))
	want := [][3]float32{{2, 0, 0}, {6, 0, 0}, {0.5, 0, 0}, {1.5, 0, 0}}
	if len(p.Vertices) != len(want) {
		t.Fatalf("got %d vertices, want %d", len(p.Vertices), len(want))
	}
	for i := range want {
		if !near(p.Vertices[i].Position, want[i]) {
			t.Errorf("vertex %d = %v, want %v", i, p.Vertices[i].Position, want[i])
		}
	}
}

func TestBuild_UVMatOverride(t *testing.T) {
	gpu := nds.Pack(nds.TexCoord(8, 8), nds.Vertex16(0, 0, 0))
	m := newModel(nil, gpu, draw(0, 0))

	state := RestState(m)
	state.UVMats = []math.Mat4{math.Scale(2, 4, 1)}
	p := Build(m, PolyTypeTris, state)

	// (8/16, 1 - 8/8) scaled
	if got := p.Vertices[0].TexCoord; got != [2]float32{1, 0} {
		t.Errorf("texcoord = %v", got)
	}
}

func TestBuild_UnknownMaterial(t *testing.T) {
	gpu := nds.Pack(nds.TexCoord(1, 1), nds.Vertex16(0, 0, 0))
	m := newModel(nil, gpu, draw(0, 0))
	m.Materials = nil

	p := Build(m, PolyTypeTris, RestState(m))
	// Texel coordinates pass through a 1x1 texture.
	if got := p.Vertices[0].TexCoord; got != [2]float32{1, 0} {
		t.Errorf("texcoord = %v", got)
	}
}

func TestBuild_DrawCalls(t *testing.T) {
	quad := nds.Pack(
		nds.Begin(nds.PrimSeparateQuads),
		nds.Vertex16(0, 0, 0), nds.Vertex16(1, 0, 0), nds.Vertex16(1, 1, 0), nds.Vertex16(0, 1, 0),
	)
	m := newModel(nil, quad, draw(0, 0), draw(0, 1))
	m.Materials = append(m.Materials, nitro.Material{Name: "cloth", Width: 8, Height: 8, TextureMat: math.Identity()})

	p := Build(m, PolyTypeTrisAndQuads, RestState(m))

	if len(p.DrawCalls) != 2 {
		t.Fatalf("got %d draw calls", len(p.DrawCalls))
	}
	second := p.DrawCalls[1]
	if second.VertexRange != (Range{4, 8}) || second.IndexRange != (Range{4, 8}) || second.MaterialIdx != 1 {
		t.Errorf("second draw call = %+v", second)
	}
	// The group left open by the first mesh is closed at the end of its
	// draw call.
	if got := p.Indices[4:8]; got[0] != 4 || got[3] != 7 {
		t.Errorf("second quad = %v", got)
	}
	if p.PolyType != PolyTypeTrisAndQuads {
		t.Errorf("poly type = %v", p.PolyType)
	}

	tris := EncodeNgons(p)
	if len(tris.Indices) != 12 || tris.DrawCalls[1].IndexRange != (Range{6, 12}) {
		t.Errorf("encoded = %v %+v", tris.Indices, tris.DrawCalls)
	}
}

func TestBuild_BadGPUCommands(t *testing.T) {
	gpu := append(nds.Pack(nds.Begin(nds.PrimSeparateTriangles), nds.Vertex16(0, 0, 0)), 0xff, 0, 0, 0)
	m := newModel(nil, gpu, draw(0, 0))

	p := Build(m, PolyTypeTris, RestState(m))
	if len(p.Vertices) != 1 || len(p.DrawCalls) != 1 {
		t.Errorf("got %d vertices, %d draw calls", len(p.Vertices), len(p.DrawCalls))
	}
}

// triangles returns GPU commands for n separate-triangle vertices.
func triangles(n int) []byte {
	cmds := []nds.RawCmd{nds.Begin(nds.PrimSeparateTriangles)}
	for i := range n {
		cmds = append(cmds, nds.Vertex16(float64(i%8), 0, 0))
	}
	cmds = append(cmds, nds.End())
	return nds.Pack(cmds...)
}

func TestBuild_VertexLimit(t *testing.T) {
	tests := []struct {
		name         string
		meshes       [][]byte
		draws        []uint8
		wantVertices int
		wantIndices  int
		wantDropped  int
	}{
		{
			name:         "fills the buffer",
			meshes:       [][]byte{triangles(nitro.MaxVertices)},
			draws:        []uint8{0},
			wantVertices: nitro.MaxVertices,
			wantIndices:  nitro.MaxVertices,
		},
		{
			name:        "single draw too big",
			meshes:      [][]byte{triangles(nitro.MaxVertices + 3)},
			draws:       []uint8{0},
			wantDropped: 1,
		},
		{
			name:         "later draw too big",
			meshes:       [][]byte{triangles(3), triangles(nitro.MaxVertices)},
			draws:        []uint8{0, 1, 0},
			wantVertices: 6,
			wantIndices:  6,
			wantDropped:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newModel(nil, nil)
			m.Meshes = nil
			for _, gpu := range tt.meshes {
				m.Meshes = append(m.Meshes, nitro.Mesh{Name: "mesh", GPUCommands: gpu})
			}
			for _, d := range tt.draws {
				m.RenderOps = append(m.RenderOps, draw(d, 0))
			}

			p := Build(m, PolyTypeTris, RestState(m))
			if len(p.Vertices) != tt.wantVertices {
				t.Errorf("got %d vertices, want %d", len(p.Vertices), tt.wantVertices)
			}
			if len(p.Indices) != tt.wantIndices {
				t.Errorf("got %d indices, want %d", len(p.Indices), tt.wantIndices)
			}
			if p.DroppedDraws != tt.wantDropped {
				t.Errorf("dropped %d draws, want %d", p.DroppedDraws, tt.wantDropped)
			}
			if len(p.DrawCalls) != len(tt.draws)-tt.wantDropped {
				t.Errorf("got %d draw calls, want %d", len(p.DrawCalls), len(tt.draws)-tt.wantDropped)
			}
			for i, idx := range p.Indices {
				if int(idx) >= len(p.Vertices) {
					t.Fatalf("index %d = %d, out of range for %d vertices", i, idx, len(p.Vertices))
				}
			}
		})
	}
}
