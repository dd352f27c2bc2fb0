package skeleton

import (
	"fmt"
	"iter"

	"github.com/Faultbox/nitro-rig/pkg/math"
)

// JointID indexes JointTree.Joints.
type JointID int32

// NoJoint marks a missing parent, child or sibling link.
const NoJoint JointID = -1

// TransformKind tags a Transform.
type TransformKind uint8

const (
	// TransformRoot is the identity transform of a synthesized root.
	TransformRoot TransformKind = iota
	// TransformSMatrix is the value of an SMatrix.
	TransformSMatrix
)

// Transform is the local-to-parent transform of a joint.
type Transform struct {
	Kind    TransformKind
	SMatrix SMatrix // TransformSMatrix only
}

// RootTransform returns the transform of a synthesized root.
func RootTransform() Transform { return Transform{Kind: TransformRoot} }

// SMatrixTransform returns the transform given by s.
func SMatrixTransform(s SMatrix) Transform { return Transform{Kind: TransformSMatrix, SMatrix: s} }

// Is reports whether t is the transform of s.
func (t Transform) Is(s SMatrix) bool {
	return t.Kind == TransformSMatrix && t.SMatrix == s
}

func (t Transform) String() string {
	if t.Kind == TransformRoot {
		return "Root"
	}
	return t.SMatrix.String()
}

// Joint is a node of a JointTree.
type Joint struct {
	LocalToParent Transform
	// RestWorldToLocal is the inverse bind matrix of the joint: the inverse
	// of its local-to-world transform in the rest pose.
	RestWorldToLocal math.Mat4

	Parent      JointID
	FirstChild  JointID
	NextSibling JointID
}

// JointTree is an arena of joints linked by index. Joints are only ever
// added; the only restructuring is attaching a parentless joint to a parent.
type JointTree struct {
	Joints []Joint
}

// NewJointTree returns an empty tree with room for n joints.
func NewJointTree(n int) *JointTree {
	return &JointTree{Joints: make([]Joint, 0, n)}
}

// Len returns the number of joints.
func (t *JointTree) Len() int {
	return len(t.Joints)
}

// Joint returns the joint with the given id.
func (t *JointTree) Joint(id JointID) *Joint {
	return &t.Joints[id]
}

// AddNode adds a parentless joint.
func (t *JointTree) AddNode(local Transform, rest math.Mat4) JointID {
	t.Joints = append(t.Joints, Joint{
		LocalToParent:    local,
		RestWorldToLocal: rest,
		Parent:           NoJoint,
		FirstChild:       NoJoint,
		NextSibling:      NoJoint,
	})
	return JointID(len(t.Joints) - 1)
}

// AddChild adds a joint under parent.
func (t *JointTree) AddChild(parent JointID, local Transform, rest math.Mat4) JointID {
	id := t.AddNode(local, rest)
	t.Attach(parent, id)
	return id
}

// Attach makes the parentless joint child the last child of parent.
func (t *JointTree) Attach(parent, child JointID) {
	c := &t.Joints[child]
	if c.Parent != NoJoint {
		panic(fmt.Sprintf("skeleton: joint %d already has parent %d", child, c.Parent))
	}
	c.Parent = parent

	p := &t.Joints[parent]
	if p.FirstChild == NoJoint {
		p.FirstChild = child
		return
	}
	last := p.FirstChild
	for t.Joints[last].NextSibling != NoJoint {
		last = t.Joints[last].NextSibling
	}
	t.Joints[last].NextSibling = child
}

// Children iterates over the children of id in insertion order.
func (t *JointTree) Children(id JointID) iter.Seq[JointID] {
	return func(yield func(JointID) bool) {
		for c := t.Joints[id].FirstChild; c != NoJoint; c = t.Joints[c].NextSibling {
			if !yield(c) {
				return
			}
		}
	}
}

// Walk visits the subtree at id depth-first, parents before children.
// Returning false from fn skips the joint's children.
func (t *JointTree) Walk(id JointID, fn func(id JointID, depth int) bool) {
	var walk func(JointID, int)
	walk = func(id JointID, depth int) {
		if !fn(id, depth) {
			return
		}
		for c := range t.Children(id) {
			walk(c, depth+1)
		}
	}
	walk(id, 0)
}

// Depth returns the number of ancestors of id.
func (t *JointTree) Depth(id JointID) int {
	d := 0
	for p := t.Joints[id].Parent; p != NoJoint; p = t.Joints[p].Parent {
		d++
	}
	return d
}
