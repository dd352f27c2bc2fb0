// Package nitro holds the parsed form of Nitro (NSBMD) models.
//
// A Nitro model is rendered by interpreting its render commands. The rest of
// the model data matters only insofar as the commands reference it: object
// matrices to multiply by, inverse bind matrices to skin with, materials to
// bind and meshes (blobs of GPU commands) to draw. Animation runs the same
// commands with different object matrices; the ones stored in the model give
// the rest pose.
package nitro

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/nitro-rig/internal/logger"
	"github.com/Faultbox/nitro-rig/pkg/math"
	"github.com/Faultbox/nitro-rig/pkg/nds"
	"github.com/Faultbox/nitro-rig/pkg/nitro/render"
)

// ErrIndexOutOfRange is returned by Validate when a render op references an
// object, inverse bind, material, mesh or stack slot that doesn't exist.
var ErrIndexOutOfRange = errors.New("render op index out of range")

// MaxVertices is the most vertices a model's draws may emit in total.
// Indices are 16 bits wide and 0xffff is reserved.
const MaxVertices = 0xffff

// FitsVertexBuffer reports whether drawing mesh on top of used vertices
// stays within MaxVertices. Draws that don't fit are skipped whole.
func FitsVertexBuffer(used int, mesh *Mesh) bool {
	return used+nds.CountVertices(mesh.GPUCommands) <= MaxVertices
}

// Model is a parsed Nitro model.
type Model struct {
	Name      string
	Materials []Material
	Meshes    []Mesh
	Objects   []Object
	// InvBinds are the inverse bind matrices used by skinning commands. They
	// don't change with the pose.
	InvBinds  []math.Mat4
	RenderOps []render.Op
	UpScale   float64
	DownScale float64
}

// Material is the drawing state bound before a draw. Only what's needed to
// place texture coordinates is kept here.
type Material struct {
	Name       string
	Width      uint16 // texture width in texels
	Height     uint16 // texture height in texels
	TextureMat math.Mat4
}

// Mesh is a piece of a model: a blob of GPU commands drawn by submitting it
// to the GPU as-is.
type Mesh struct {
	Name        string
	GPUCommands []byte
}

// Object is an object matrix, typically one bone of a skeleton. The value
// stored here is the rest pose.
type Object struct {
	Name  string
	Trans *math.Vec3
	Rot   *[9]float64 // column-major 3x3
	Scale *math.Vec3

	// Matrix is the TRS transform of the fields above.
	Matrix math.Mat4
}

// NewObject builds an Object from optional TRS components.
func NewObject(name string, trans *math.Vec3, rot *[9]float64, scale *math.Vec3) Object {
	return Object{
		Name:   name,
		Trans:  trans,
		Rot:    rot,
		Scale:  scale,
		Matrix: ObjectMatrix(trans, rot, scale),
	}
}

// ObjectMatrix composes T * R * S from whichever components are present.
func ObjectMatrix(trans *math.Vec3, rot *[9]float64, scale *math.Vec3) math.Mat4 {
	m := math.Identity()
	if scale != nil {
		m = math.Scale(scale.X, scale.Y, scale.Z)
	}
	if rot != nil {
		m = math.FromMat3x3(*rot).Mul(m)
	}
	if trans != nil {
		m = math.Translate(trans.X, trans.Y, trans.Z).Mul(m)
	}
	return m
}

// Validate checks that every index in the render ops is in bounds. A model
// that fails validation must not be handed to the skeleton or primitive
// builders.
func (m *Model) Validate() error {
	for i, op := range m.RenderOps {
		var err error
		switch op.Kind {
		case render.OpLoadMatrix, render.OpStoreMatrix:
			err = checkIndex("stack slot", op.StackPos, render.StackSize)
		case render.OpMulByObject:
			err = checkIndex("object", op.ObjectIdx, len(m.Objects))
		case render.OpBindMaterial:
			err = checkIndex("material", op.MaterialIdx, len(m.Materials))
		case render.OpDraw:
			err = checkIndex("mesh", op.MeshIdx, len(m.Meshes))
			if err == nil && len(m.Materials) > 0 {
				err = checkIndex("material", op.MaterialIdx, len(m.Materials))
			}
		case render.OpBlend:
			for _, term := range op.Terms {
				if err = checkIndex("stack slot", term.StackPos, render.StackSize); err != nil {
					break
				}
				if err = checkIndex("inverse bind", term.InvBindIdx, len(m.InvBinds)); err != nil {
					break
				}
			}
		}
		if err != nil {
			return fmt.Errorf("model %q, op %d (%v): %w", m.Name, i, op, err)
		}
	}
	return nil
}

func checkIndex(what string, idx uint8, n int) error {
	if int(idx) >= n {
		return fmt.Errorf("%w: %s %d of %d", ErrIndexOutOfRange, what, idx, n)
	}
	return nil
}

// RestPose returns the object matrices of the rest pose, each made
// invertible. Matrices that can't be repaired are replaced by the identity
// and logged.
func (m *Model) RestPose() []math.Mat4 {
	objects := make([]math.Mat4, len(m.Objects))
	for i, obj := range m.Objects {
		mat, ok := math.MakeInvertible(obj.Matrix)
		if !ok {
			logger.Warn("singular object matrix; using the identity",
				zap.String("model", m.Name),
				zap.String("object", obj.Name),
				zap.Float64s("matrix", obj.Matrix[:]))
		}
		objects[i] = mat
	}
	return objects
}
