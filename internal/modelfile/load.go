package modelfile

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Faultbox/nitro-rig/internal/logger"
	"github.com/Faultbox/nitro-rig/pkg/encoding"
	"github.com/Faultbox/nitro-rig/pkg/math"
	"github.com/Faultbox/nitro-rig/pkg/nds"
	"github.com/Faultbox/nitro-rig/pkg/nitro"
	"github.com/Faultbox/nitro-rig/pkg/nitro/render"
)

// ErrBadModelFile is returned when a model file is malformed.
var ErrBadModelFile = errors.New("bad model file")

// Load reads and converts the model file at path. The model name defaults
// to the file name without its extension.
func Load(path string) (*nitro.Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model file: %w", err)
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	model, err := Decode(bytes.NewReader(data), name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	logger.Debug("loaded model file",
		zap.String("path", path),
		zap.String("model", model.Name),
		zap.Int("objects", len(model.Objects)),
		zap.Int("meshes", len(model.Meshes)),
		zap.Int("render_ops", len(model.RenderOps)))
	return model, nil
}

// Decode reads a model file from r and converts it to a validated model.
// defaultName is used when the file doesn't name the model.
func Decode(r io.Reader, defaultName string) (*nitro.Model, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %w", ErrBadModelFile, err)
	}
	model, err := f.Model()
	if err != nil {
		return nil, err
	}
	if model.Name == "" {
		model.Name = defaultName
	}
	if err := model.Validate(); err != nil {
		return nil, err
	}
	return model, nil
}

// Model converts f to a model. It does not validate render op indices.
func (f *File) Model() (*nitro.Model, error) {
	name, err := decodeName(f.Name, f.RawName)
	if err != nil {
		return nil, badField("raw_name", err)
	}
	m := &nitro.Model{
		Name:      name,
		UpScale:   orOne(f.UpScale),
		DownScale: orOne(f.DownScale),
	}

	for i, desc := range f.Objects {
		obj, err := desc.object()
		if err != nil {
			return nil, badField(fmt.Sprintf("objects[%d]", i), err)
		}
		m.Objects = append(m.Objects, obj)
	}

	if f.InvBindHex != "" && len(f.InvBinds) > 0 {
		return nil, badField("inv_binds", errors.New("inv_binds and inv_binds_hex are exclusive"))
	}
	if f.InvBindHex != "" {
		buf, err := decodeHex(f.InvBindHex)
		if err != nil {
			return nil, badField("inv_binds_hex", err)
		}
		m.InvBinds = nitro.DecodeInvBinds(buf, len(f.Objects))
	}
	for i, desc := range f.InvBinds {
		mat, err := desc.matrix()
		if err != nil {
			return nil, badField(fmt.Sprintf("inv_binds[%d]", i), err)
		}
		m.InvBinds = append(m.InvBinds, mat)
	}

	for i, desc := range f.Materials {
		mat, err := desc.material()
		if err != nil {
			return nil, badField(fmt.Sprintf("materials[%d]", i), err)
		}
		m.Materials = append(m.Materials, mat)
	}

	for i, desc := range f.Meshes {
		mesh, err := desc.mesh()
		if err != nil {
			return nil, badField(fmt.Sprintf("meshes[%d]", i), err)
		}
		m.Meshes = append(m.Meshes, mesh)
	}

	switch {
	case f.RenderCommands != "" && len(f.RenderOps) > 0:
		return nil, badField("render_ops", errors.New("render_commands and render_ops are exclusive"))
	case f.RenderCommands != "":
		buf, err := decodeHex(f.RenderCommands)
		if err != nil {
			return nil, badField("render_commands", err)
		}
		if m.RenderOps, err = render.Parse(buf); err != nil {
			return nil, badField("render_commands", err)
		}
	default:
		// Draws use the last bound material, as in a command stream.
		var curMaterial uint8
		for i, desc := range f.RenderOps {
			op, err := desc.op()
			if err != nil {
				return nil, badField(fmt.Sprintf("render_ops[%d]", i), err)
			}
			switch op.Kind {
			case render.OpBindMaterial:
				curMaterial = op.MaterialIdx
			case render.OpDraw:
				op.MaterialIdx = curMaterial
			}
			m.RenderOps = append(m.RenderOps, op)
		}
	}

	return m, nil
}

func (d *ObjectDesc) object() (nitro.Object, error) {
	name, err := decodeName(d.Name, d.RawName)
	if err != nil {
		return nitro.Object{}, err
	}

	if d.Matrix != nil {
		if d.Trans != nil || d.Rot != nil || d.Scale != nil {
			return nitro.Object{}, errors.New("matrix excludes trans, rot and scale")
		}
		mat, err := matrix4x3(d.Matrix)
		if err != nil {
			return nitro.Object{}, err
		}
		return nitro.Object{Name: name, Matrix: mat}, nil
	}

	var trans, scale *math.Vec3
	var rot *[9]float64
	if d.Trans != nil {
		v, err := vec3(d.Trans)
		if err != nil {
			return nitro.Object{}, fmt.Errorf("trans: %w", err)
		}
		trans = &v
	}
	if d.Rot != nil {
		if len(d.Rot) != 9 {
			return nitro.Object{}, fmt.Errorf("rot: want 9 values, got %d", len(d.Rot))
		}
		rot = (*[9]float64)(d.Rot)
	}
	if d.Scale != nil {
		v, err := vec3(d.Scale)
		if err != nil {
			return nitro.Object{}, fmt.Errorf("scale: %w", err)
		}
		scale = &v
	}
	return nitro.NewObject(name, trans, rot, scale), nil
}

func (d *InvBindDesc) matrix() (math.Mat4, error) {
	switch {
	case d.Matrix != nil && d.Hex != "":
		return math.Mat4{}, errors.New("matrix and hex are exclusive")
	case d.Matrix != nil:
		return matrix4x3(d.Matrix)
	}

	buf, err := decodeHex(d.Hex)
	if err != nil {
		return math.Mat4{}, err
	}
	if len(buf) != 12*4 {
		return math.Mat4{}, fmt.Errorf("want 48 bytes, got %d", len(buf))
	}
	var words [12]uint32
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(buf[4*i:])
	}
	return nitro.DecodeMatrix4x3(words), nil
}

func (d *MaterialDesc) material() (nitro.Material, error) {
	name, err := decodeName(d.Name, d.RawName)
	if err != nil {
		return nitro.Material{}, err
	}
	mat := nitro.Material{
		Name:       name,
		Width:      d.Width,
		Height:     d.Height,
		TextureMat: math.Identity(),
	}
	if d.TextureMatrix != nil {
		if len(d.TextureMatrix) != 16 {
			return nitro.Material{}, fmt.Errorf("texture_matrix: want 16 values, got %d", len(d.TextureMatrix))
		}
		mat.TextureMat = math.Mat4(d.TextureMatrix)
	}
	return mat, nil
}

func (d *MeshDesc) mesh() (nitro.Mesh, error) {
	name, err := decodeName(d.Name, d.RawName)
	if err != nil {
		return nitro.Mesh{}, err
	}
	if d.GPUCommands != "" && d.Commands != nil {
		return nitro.Mesh{}, errors.New("gpu_commands and commands are exclusive")
	}
	if d.GPUCommands != "" {
		buf, err := decodeHex(d.GPUCommands)
		if err != nil {
			return nitro.Mesh{}, fmt.Errorf("gpu_commands: %w", err)
		}
		return nitro.Mesh{Name: name, GPUCommands: buf}, nil
	}

	cmds := make([]nds.RawCmd, 0, len(d.Commands))
	for i, desc := range d.Commands {
		cmd, err := desc.cmd()
		if err != nil {
			return nitro.Mesh{}, fmt.Errorf("commands[%d]: %w", i, err)
		}
		cmds = append(cmds, cmd)
	}
	return nitro.Mesh{Name: name, GPUCommands: nds.Pack(cmds...)}, nil
}

func (d *GPUCmdDesc) cmd() (nds.RawCmd, error) {
	var cmd nds.RawCmd
	set := 0
	if d.Begin != nil {
		cmd, set = nds.Begin(*d.Begin), set+1
	}
	if d.End {
		cmd, set = nds.End(), set+1
	}
	if d.Restore != nil {
		cmd, set = nds.Restore(*d.Restore), set+1
	}
	if d.Scale != nil {
		v, err := vec3(d.Scale)
		if err != nil {
			return cmd, fmt.Errorf("scale: %w", err)
		}
		cmd, set = nds.Scale(v.X, v.Y, v.Z), set+1
	}
	if d.Vertex != nil {
		v, err := vec3(d.Vertex)
		if err != nil {
			return cmd, fmt.Errorf("vertex: %w", err)
		}
		cmd, set = nds.Vertex16(v.X, v.Y, v.Z), set+1
	}
	if d.TexCoord != nil {
		if len(d.TexCoord) != 2 {
			return cmd, fmt.Errorf("texcoord: want 2 values, got %d", len(d.TexCoord))
		}
		cmd, set = nds.TexCoord(d.TexCoord[0], d.TexCoord[1]), set+1
	}
	if d.Color != nil {
		if len(d.Color) != 3 {
			return cmd, fmt.Errorf("color: want 3 values, got %d", len(d.Color))
		}
		cmd, set = nds.Color(d.Color[0], d.Color[1], d.Color[2]), set+1
	}
	if d.Normal != nil {
		v, err := vec3(d.Normal)
		if err != nil {
			return cmd, fmt.Errorf("normal: %w", err)
		}
		cmd, set = nds.Normal(v.X, v.Y, v.Z), set+1
	}
	if set != 1 {
		return cmd, fmt.Errorf("want exactly one command, got %d", set)
	}
	return cmd, nil
}

func (d *RenderOpDesc) op() (render.Op, error) {
	var op render.Op
	set := 0
	if d.Load != nil {
		op, set = render.Op{Kind: render.OpLoadMatrix, StackPos: *d.Load}, set+1
	}
	if d.Store != nil {
		op, set = render.Op{Kind: render.OpStoreMatrix, StackPos: *d.Store}, set+1
	}
	if d.MulObject != nil {
		op, set = render.Op{Kind: render.OpMulByObject, ObjectIdx: *d.MulObject}, set+1
	}
	if d.Blend != nil {
		terms := make([]render.SkinTerm, len(d.Blend))
		for i, t := range d.Blend {
			if len(t) != 3 {
				return op, fmt.Errorf("blend term %d: want [stack, inv_bind, weight], got %d values", i, len(t))
			}
			terms[i] = render.SkinTerm{StackPos: t[0], InvBindIdx: t[1], Weight: float64(t[2]) / 256}
		}
		op, set = render.Op{Kind: render.OpBlend, Terms: terms}, set+1
	}
	if d.ScaleUp {
		op, set = render.Op{Kind: render.OpScaleUp}, set+1
	}
	if d.ScaleDown {
		op, set = render.Op{Kind: render.OpScaleDown}, set+1
	}
	if d.BindMaterial != nil {
		op, set = render.Op{Kind: render.OpBindMaterial, MaterialIdx: *d.BindMaterial}, set+1
	}
	if d.Draw != nil {
		op, set = render.Op{Kind: render.OpDraw, MeshIdx: *d.Draw}, set+1
	}
	if set != 1 {
		return op, fmt.Errorf("want exactly one op, got %d", set)
	}
	return op, nil
}

// matrix4x3 converts twelve column-major values to an affine matrix.
func matrix4x3(v []float64) (math.Mat4, error) {
	if len(v) != 12 {
		return math.Mat4{}, fmt.Errorf("matrix: want 12 values, got %d", len(v))
	}
	return math.Mat4{
		v[0], v[1], v[2], 0,
		v[3], v[4], v[5], 0,
		v[6], v[7], v[8], 0,
		v[9], v[10], v[11], 1,
	}, nil
}

func vec3(v []float64) (math.Vec3, error) {
	if len(v) != 3 {
		return math.Vec3{}, fmt.Errorf("want 3 values, got %d", len(v))
	}
	return math.Vec3{X: v[0], Y: v[1], Z: v[2]}, nil
}

// decodeName returns name, or the decoded raw name field if given.
func decodeName(name, raw string) (string, error) {
	if raw == "" {
		return name, nil
	}
	if name != "" {
		return "", errors.New("name and raw_name are exclusive")
	}
	buf, err := decodeHex(raw)
	if err != nil {
		return "", fmt.Errorf("raw_name: %w", err)
	}
	if len(buf) > encoding.NameSize {
		return "", fmt.Errorf("raw_name: %d bytes, max %d", len(buf), encoding.NameSize)
	}
	return encoding.FixedStringToUTF8(buf), nil
}

// decodeHex decodes s ignoring any whitespace.
func decodeHex(s string) ([]byte, error) {
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	return hex.DecodeString(s)
}

func orOne(v float64) float64 {
	if v == 0 {
		return 1
	}
	return v
}

func badField(field string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrBadModelFile, field, err)
}
