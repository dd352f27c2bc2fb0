// Package skeleton recovers a skinning skeleton from a model's render
// commands.
//
// The render commands never describe a skeleton. They are a program for the
// GPU's matrix stack: multiply by this object matrix, store to slot N, blend
// these slots. Running that program with symbolic instead of numeric
// matrices (BuildVertexRecord) tells us which expression M(p) in the object
// matrices p is applied to each vertex. BuildSkeleton then finds a tree of
// joints and per-vertex influences that reproduce every M(p) through the
// usual skinning equation
//
//	v(p) = sum_i w_i * A[j_i](p) * A[j_i](rest)^-1 * V(rest)
//
// where A[j](p) is the local-to-world transform of joint j.
package skeleton

import (
	"fmt"

	"github.com/Faultbox/nitro-rig/pkg/math"
	"github.com/Faultbox/nitro-rig/pkg/nitro"
)

// Influence is one joint acting on a vertex.
type Influence struct {
	Joint  JointID
	Weight float64
}

// SkinVertex lists the influences on one vertex, heaviest first, with at most
// one influence per joint and no zero weights.
type SkinVertex struct {
	Influences []Influence
}

// Skeleton is the result of BuildSkeleton.
type Skeleton struct {
	Tree *JointTree
	Root JointID
	// Vertices has one entry per vertex of the VertexRecord. Vertices made
	// with the same symbolic matrix share their Influences slice.
	Vertices         []SkinVertex
	MaxNumInfluences int

	// UnusualMatrices is set when some vertex matrix didn't look like a
	// skinning matrix. The skin is still built but may deform imperfectly.
	UnusualMatrices bool
	// SingularMatrices counts the rest matrices that had to be nudged to be
	// inverted.
	SingularMatrices int
}

// WorldTransforms returns the local-to-world transform A[j](p) of every
// joint for the pose given by objects.
func (s *Skeleton) WorldTransforms(model *nitro.Model, objects []math.Mat4) []math.Mat4 {
	world := make([]math.Mat4, s.Tree.Len())
	s.Tree.Walk(s.Root, func(id JointID, _ int) bool {
		j := s.Tree.Joint(id)
		local := evalTransform(j.LocalToParent, model, objects)
		if j.Parent == NoJoint {
			world[id] = local
		} else {
			world[id] = world[j.Parent].Mul(local)
		}
		return true
	})
	return world
}

// SkinningMatrices returns A[j](p) * A[j](rest)^-1 for every joint: the
// matrix that moves a rest-pose vertex bound to j into the pose.
func (s *Skeleton) SkinningMatrices(model *nitro.Model, objects []math.Mat4) []math.Mat4 {
	world := s.WorldTransforms(model, objects)
	for i := range world {
		world[i] = world[i].Mul(s.Tree.Joints[i].RestWorldToLocal)
	}
	return world
}

// JointName returns a readable name for a joint: the object name for object
// joints, otherwise a name derived from the transform.
func JointName(model *nitro.Model, j *Joint) string {
	t := j.LocalToParent
	switch {
	case t.Kind == TransformRoot:
		return "root"
	case t.SMatrix.Kind == SMatrixObject && int(t.SMatrix.Index) < len(model.Objects):
		return model.Objects[t.SMatrix.Index].Name
	case t.SMatrix.Kind == SMatrixUninitialized:
		return fmt.Sprintf("uninitialized%d", t.SMatrix.Index)
	case t.SMatrix.Kind == SMatrixInvBind:
		return fmt.Sprintf("inv_bind%d", t.SMatrix.Index)
	}
	return t.String()
}

func evalTransform(t Transform, model *nitro.Model, objects []math.Mat4) math.Mat4 {
	if t.Kind == TransformRoot {
		return math.Identity()
	}
	return evalSMatrix(t.SMatrix, model, objects)
}

// evalSMatrix evaluates s in the pose given by objects.
func evalSMatrix(s SMatrix, model *nitro.Model, objects []math.Mat4) math.Mat4 {
	switch s.Kind {
	case SMatrixObject:
		return objects[s.Index]
	case SMatrixInvBind:
		return model.InvBinds[s.Index]
	default:
		return math.Identity()
	}
}
