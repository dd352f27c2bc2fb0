package modelfile

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Faultbox/nitro-rig/internal/primitives"
	"github.com/Faultbox/nitro-rig/pkg/math"
	"github.com/Faultbox/nitro-rig/pkg/nds"
	"github.com/Faultbox/nitro-rig/pkg/nitro"
	"github.com/Faultbox/nitro-rig/pkg/nitro/render"
)

const boxYAML = `
name: box
up_scale: 2
objects:
  - name: root
    trans: [0, 1, 0]
  - name: lid
    matrix: [1,0,0, 0,1,0, 0,0,1, 0,0,3]
inv_binds:
  - matrix: [1,0,0, 0,1,0, 0,0,1, 0,0,0]
  - matrix: [1,0,0, 0,1,0, 0,0,1, 0,-1,0]
materials:
  - {name: wood, width: 64, height: 32}
  - {name: iron, width: 8, height: 8}
meshes:
  - name: lid
    commands:
      - begin: 0
      - texcoord: [32, 16]
      - vertex: [0, 0, 0]
      - vertex: [1, 0, 0]
      - vertex: [0, 1, 0]
      - end: true
render_ops:
  - mul_object: 0
  - store: 1
  - bind_material: 1
  - draw: 0
  - blend: [[1, 0, 128], [2, 1, 128]]
  - scale_up: true
`

func decode(t *testing.T, src string) *nitro.Model {
	t.Helper()
	m, err := Decode(strings.NewReader(src), "default")
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	return m
}

func TestDecode(t *testing.T) {
	m := decode(t, boxYAML)

	if m.Name != "box" {
		t.Errorf("Name = %q, want %q", m.Name, "box")
	}
	if m.UpScale != 2 || m.DownScale != 1 {
		t.Errorf("scales = %v, %v, want 2, 1", m.UpScale, m.DownScale)
	}
	if len(m.Objects) != 2 {
		t.Fatalf("len(Objects) = %d, want 2", len(m.Objects))
	}
	if got := m.Objects[0].Matrix.TransformPoint([3]float64{}); got != [3]float64{0, 1, 0} {
		t.Errorf("root origin = %v, want [0 1 0]", got)
	}
	if got := m.Objects[1].Matrix.TransformPoint([3]float64{}); got != [3]float64{0, 0, 3} {
		t.Errorf("lid origin = %v, want [0 0 3]", got)
	}
	if got := m.InvBinds[1].TransformPoint([3]float64{0, 1, 0}); got != [3]float64{} {
		t.Errorf("inv bind 1 of (0,1,0) = %v, want origin", got)
	}
	if m.Materials[0].TextureMat != math.Identity() {
		t.Errorf("default texture matrix = %v, want identity", m.Materials[0].TextureMat)
	}
	if m.Materials[1].Width != 8 {
		t.Errorf("Materials[1].Width = %d, want 8", m.Materials[1].Width)
	}

	wantKinds := []render.OpKind{
		render.OpMulByObject, render.OpStoreMatrix, render.OpBindMaterial,
		render.OpDraw, render.OpBlend, render.OpScaleUp,
	}
	if len(m.RenderOps) != len(wantKinds) {
		t.Fatalf("len(RenderOps) = %d, want %d", len(m.RenderOps), len(wantKinds))
	}
	for i, k := range wantKinds {
		if m.RenderOps[i].Kind != k {
			t.Errorf("RenderOps[%d].Kind = %v, want %v", i, m.RenderOps[i].Kind, k)
		}
	}
	if draw := m.RenderOps[3]; draw.MaterialIdx != 1 {
		t.Errorf("draw material = %d, want the bound material 1", draw.MaterialIdx)
	}
	terms := m.RenderOps[4].Terms
	if len(terms) != 2 || terms[1] != (render.SkinTerm{StackPos: 2, InvBindIdx: 1, Weight: 0.5}) {
		t.Errorf("blend terms = %v", terms)
	}
}

func TestDecode_MeshCommands(t *testing.T) {
	m := decode(t, boxYAML)

	p := primitives.Build(m, primitives.PolyTypeTris, primitives.RestState(m))
	if len(p.Vertices) != 3 {
		t.Fatalf("len(Vertices) = %d, want 3", len(p.Vertices))
	}
	if len(p.Indices) != 3 {
		t.Errorf("len(Indices) = %d, want 3", len(p.Indices))
	}
	// Drawn under object 0, which moves everything up by one.
	if got := p.Vertices[1].Position; got != [3]float32{1, 1, 0} {
		t.Errorf("Vertices[1].Position = %v, want [1 1 0]", got)
	}
	// (32, 16) on the 8x8 iron texture.
	if got := p.Vertices[0].TexCoord; got != [2]float32{4, -1} {
		t.Errorf("Vertices[0].TexCoord = %v, want [4 -1]", got)
	}
}

func TestDecode_RenderCommandsHex(t *testing.T) {
	const src = `
objects: [{name: a}]
materials: [{name: m, width: 1, height: 1}]
meshes: [{name: empty}]
render_commands: |
  26 00 00 00 05
  03 05
  04 00
  05 00
  01
`
	m := decode(t, src)
	if m.Name != "default" {
		t.Errorf("Name = %q, want the default name", m.Name)
	}

	want := []render.Op{
		{Kind: render.OpMulByObject, ObjectIdx: 0},
		{Kind: render.OpStoreMatrix, StackPos: 5},
		{Kind: render.OpLoadMatrix, StackPos: 5},
		{Kind: render.OpBindMaterial, MaterialIdx: 0},
		{Kind: render.OpDraw, MeshIdx: 0, MaterialIdx: 0},
	}
	if len(m.RenderOps) != len(want) {
		t.Fatalf("RenderOps = %v, want %v", m.RenderOps, want)
	}
	for i := range want {
		if m.RenderOps[i].String() != want[i].String() {
			t.Errorf("RenderOps[%d] = %v, want %v", i, m.RenderOps[i], want[i])
		}
	}
}

func TestDecode_GPUCommandsHex(t *testing.T) {
	gpu := nds.Pack(nds.Begin(0), nds.Vertex16(0, 0, 0), nds.Vertex16(1, 0, 0), nds.Vertex16(0, 0, 1), nds.End())
	src := "meshes:\n  - name: tri\n    gpu_commands: '" + hex.EncodeToString(gpu) + "'\n"

	m := decode(t, src)
	if string(m.Meshes[0].GPUCommands) != string(gpu) {
		t.Errorf("GPUCommands = %x, want %x", m.Meshes[0].GPUCommands, gpu)
	}
}

// fixedHex encodes a 4x3 column-major matrix as (1,19,12) words.
func fixedHex(vals ...float64) string {
	var buf []byte
	for _, v := range vals {
		buf = binary.LittleEndian.AppendUint32(buf, nds.ToFix(v, 12))
	}
	return hex.EncodeToString(buf)
}

func TestDecode_InvBindsHex(t *testing.T) {
	ident := []float64{1, 0, 0, 0, 1, 0, 0, 0, 1}
	entry := fixedHex(append(ident, 2, 0, -1)...)
	// Each block entry carries a trailing 3x3 that is skipped.
	block := entry + fixedHex(ident...)

	t.Run("Block", func(t *testing.T) {
		src := "objects: [{name: a}, {name: b}]\ninv_binds_hex: '" + block + block + "'\n"
		m := decode(t, src)
		if len(m.InvBinds) != 2 {
			t.Fatalf("len(InvBinds) = %d, want 2", len(m.InvBinds))
		}
		if got := m.InvBinds[1].TransformPoint([3]float64{}); got != [3]float64{2, 0, -1} {
			t.Errorf("InvBinds[1] origin = %v, want [2 0 -1]", got)
		}
	})

	t.Run("ShortBlock", func(t *testing.T) {
		// Fewer entries than objects is fine.
		src := "objects: [{name: a}, {name: b}]\ninv_binds_hex: '" + block + "'\n"
		if m := decode(t, src); len(m.InvBinds) != 1 {
			t.Errorf("len(InvBinds) = %d, want 1", len(m.InvBinds))
		}
	})

	t.Run("PerEntry", func(t *testing.T) {
		src := "inv_binds:\n  - hex: '" + entry + "'\n"
		m := decode(t, src)
		if got := m.InvBinds[0].TransformPoint([3]float64{1, 1, 1}); got != [3]float64{3, 1, 0} {
			t.Errorf("InvBinds[0] of (1,1,1) = %v, want [3 1 0]", got)
		}
	})
}

func TestDecode_TRS(t *testing.T) {
	const src = `
objects:
  - name: spin
    trans: [1, 2, 3]
    rot: [0,1,0, -1,0,0, 0,0,1]
    scale: [2, 2, 2]
`
	m := decode(t, src)
	obj := m.Objects[0]
	if obj.Trans == nil || obj.Rot == nil || obj.Scale == nil {
		t.Fatalf("TRS components not kept: %+v", obj)
	}
	// Scale, then rotate x onto y, then translate.
	if got := obj.Matrix.TransformPoint([3]float64{1, 0, 0}); got != [3]float64{1, 4, 3} {
		t.Errorf("Matrix * (1,0,0) = %v, want [1 4 3]", got)
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantErr error
	}{
		{"UnknownKey", "nmae: x\n", ErrBadModelFile},
		{"NotYAML", "objects: [\n", ErrBadModelFile},
		{"ShortRot", "objects: [{rot: [1, 0, 0]}]\n", ErrBadModelFile},
		{"ShortTrans", "objects: [{trans: [1, 0]}]\n", ErrBadModelFile},
		{"MatrixAndTRS", "objects: [{matrix: [1,0,0,0,1,0,0,0,1,0,0,0], trans: [0,0,0]}]\n", ErrBadModelFile},
		{"ShortMatrix", "inv_binds: [{matrix: [1, 0, 0]}]\n", ErrBadModelFile},
		{"InvBindsBothForms", "inv_binds: [{matrix: [1,0,0,0,1,0,0,0,1,0,0,0]}]\ninv_binds_hex: '00'\n", ErrBadModelFile},
		{"ShortInvBindHex", "inv_binds: [{hex: '00100000'}]\n", ErrBadModelFile},
		{"BadHex", "meshes: [{gpu_commands: 'zz'}]\n", ErrBadModelFile},
		{"TwoGPUCommands", "meshes: [{commands: [{begin: 0, end: true}]}]\n", ErrBadModelFile},
		{"EmptyGPUCommand", "meshes: [{commands: [{}]}]\n", ErrBadModelFile},
		{"ShortTexCoord", "meshes: [{commands: [{texcoord: [1]}]}]\n", ErrBadModelFile},
		{"MeshBothForms", "meshes: [{gpu_commands: '00', commands: [{end: true}]}]\n", ErrBadModelFile},
		{"TextureMatrixLength", "materials: [{texture_matrix: [1, 0]}]\n", ErrBadModelFile},
		{"TwoRenderOps", "render_ops: [{load: 0, store: 1}]\n", ErrBadModelFile},
		{"BlendTermLength", "render_ops: [{blend: [[0, 0]]}]\n", ErrBadModelFile},
		{"RenderBothForms", "render_commands: '01'\nrender_ops: [{load: 0}]\n", ErrBadModelFile},
		{"TruncatedRenderCommands", "render_commands: '06 00'\n", render.ErrTruncatedRenderCommands},
		{"UnknownRenderOpcode", "render_commands: 'ff'\n", render.ErrUnknownRenderOpcode},
		{"ObjectOutOfRange", "render_ops: [{mul_object: 0}]\n", nitro.ErrIndexOutOfRange},
		{"StackOutOfRange", "render_ops: [{load: 32}]\n", nitro.ErrIndexOutOfRange},
		{"MeshOutOfRange", "render_ops: [{draw: 0}]\n", nitro.ErrIndexOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.src), "bad")
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Decode() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestDecode_Empty(t *testing.T) {
	m := decode(t, "")
	if m.Name != "default" || len(m.RenderOps) != 0 {
		t.Errorf("Decode(\"\") = %+v, want an empty model named default", m)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chest.yaml")
	src := strings.Replace(boxYAML, "name: box\n", "", 1)
	if err := os.WriteFile(path, []byte(src), 0644); err != nil {
		t.Fatalf("Failed to write model file: %v", err)
	}

	m, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if m.Name != "chest" {
		t.Errorf("Name = %q, want the file name %q", m.Name, "chest")
	}
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load() error = %v, want os.ErrNotExist", err)
	}
}

func TestDecode_RawNames(t *testing.T) {
	const src = `
raw_name: '636865737400000000000000'
objects:
  - raw_name: '837b815b8393000000000000000000' # Shift JIS
materials:
  - {raw_name: '776f6f64', width: 1, height: 1}
meshes:
  - raw_name: '6c6964'
`
	m := decode(t, src)
	if m.Name != "chest" {
		t.Errorf("Name = %q, want %q", m.Name, "chest")
	}
	if m.Objects[0].Name != "ボーン" {
		t.Errorf("Objects[0].Name = %q, want %q", m.Objects[0].Name, "ボーン")
	}
	if m.Materials[0].Name != "wood" || m.Meshes[0].Name != "lid" {
		t.Errorf("names = %q, %q, want wood, lid", m.Materials[0].Name, m.Meshes[0].Name)
	}

	for _, bad := range []string{
		"objects: [{name: a, raw_name: '61'}]\n",
		"meshes: [{raw_name: 'zz'}]\n",
		"raw_name: '6161616161616161616161616161616161'\n",
	} {
		if _, err := Decode(strings.NewReader(bad), "bad"); !errors.Is(err, ErrBadModelFile) {
			t.Errorf("Decode(%q) error = %v, want ErrBadModelFile", bad, err)
		}
	}
}
