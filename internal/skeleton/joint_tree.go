package skeleton

import (
	gomath "math"
	"slices"

	"go.uber.org/zap"

	"github.com/Faultbox/nitro-rig/internal/logger"
	"github.com/Faultbox/nitro-rig/pkg/math"
	"github.com/Faultbox/nitro-rig/pkg/nitro"
)

// How a vertex matrix M(p) becomes influences.
//
// Write each term of M as a * M1(p) ... Mn(p) * K, where K = K1 ... Km is the
// longest suffix of pose-invariant factors. Joints j1 -> ... -> jn with
// local-to-parent transforms M1, ..., Mn give a joint j = jn with
// A[j] = M1 ... Mn, and (j, a) is the term's influence.
//
// Dropping K is harmless for a single term: vertex positions are then in
// the space of j, and a joint whose own transform never changes acts
// exactly like its parent. For a sum of terms it is exact when each
// Mi(rest) * Ki is the identity and the weights sum to one, which is what a
// real skinning matrix looks like. Anything else is flagged as unusual but
// handled the same way.

// BuildSkeleton builds the joint tree and skin for a vertex record. objects
// are the rest-pose object matrices, as returned by Model.RestPose.
func BuildSkeleton(vr *VertexRecord, model *nitro.Model, objects []math.Mat4) *Skeleton {
	b := &jointTreeBuilder{
		model:   model,
		objects: objects,
		tree:    NewJointTree(len(objects) + 1),
	}

	cache := make([][]Influence, len(vr.Matrices))
	done := make([]bool, len(vr.Matrices))
	maxInfluences := 0

	vertices := make([]SkinVertex, len(vr.Vertices))
	for i, idx := range vr.Vertices {
		if !done[idx] {
			cache[idx] = simplify(b.influences(vr.Matrices[idx]))
			done[idx] = true
			maxInfluences = max(maxInfluences, len(cache[idx]))
		}
		vertices[i] = SkinVertex{Influences: cache[idx]}
	}

	if b.unusual {
		logger.Warn("unusual matrices encountered; the skin for this model may function imperfectly",
			zap.String("model", model.Name))
	}

	// A single tree is expected downstream, even when there is only one
	// joint.
	root := b.makeRoot()

	// Until now RestWorldToLocal held the rest local-to-world transform.
	// Inverting the accumulated product once is better conditioned than
	// multiplying a chain of inverses.
	singular := 0
	for id := range b.tree.Joints {
		j := &b.tree.Joints[id]
		inv, nudged := invertMatrix(j.RestWorldToLocal)
		if nudged {
			singular++
			logger.Warn("singular rest matrix; perturbed to invert it",
				zap.String("model", model.Name),
				zap.Stringer("joint", j.LocalToParent),
				zap.Float64s("matrix", j.RestWorldToLocal[:]))
		}
		j.RestWorldToLocal = inv
	}

	return &Skeleton{
		Tree:             b.tree,
		Root:             root,
		Vertices:         vertices,
		MaxNumInfluences: maxInfluences,
		UnusualMatrices:  b.unusual,
		SingularMatrices: singular,
	}
}

type jointTreeBuilder struct {
	model   *nitro.Model
	objects []math.Mat4

	// tree is a forest until makeRoot runs.
	tree  *JointTree
	roots []JointID

	unusual bool
}

func (b *jointTreeBuilder) influences(m AMatrix) []Influence {
	b.checkUnusual(m)

	infl := make([]Influence, len(m.Terms))
	for i, t := range m.Terms {
		infl[i] = Influence{Joint: b.cmatrixToJoint(t.CMat.Factors), Weight: t.Weight}
	}
	return infl
}

// cmatrixToJoint returns the joint for a product of factors, creating the
// chain of joints as needed.
func (b *jointTreeBuilder) cmatrixToJoint(factors []SMatrix) JointID {
	for len(factors) > 0 && factors[len(factors)-1].PoseInvariant() {
		factors = factors[:len(factors)-1]
	}
	if len(factors) == 0 {
		return b.makeRoot()
	}

	node := b.findRoot(factors[0])
	for _, f := range factors[1:] {
		node = b.findChild(node, f)
	}
	return node
}

// makeRoot puts every root under a single universal root joint, unless there
// already is one, and returns it.
func (b *jointTreeBuilder) makeRoot() JointID {
	if len(b.roots) == 1 && b.tree.Joint(b.roots[0]).LocalToParent.Kind == TransformRoot {
		return b.roots[0]
	}

	root := b.tree.AddNode(RootTransform(), math.Identity())
	for _, old := range b.roots {
		b.tree.Attach(root, old)
	}
	b.roots = append(b.roots[:0], root)
	return root
}

// findRoot finds or creates a root joint with transform s. Once a universal
// root exists, roots are made under it instead.
func (b *jointTreeBuilder) findRoot(s SMatrix) JointID {
	if len(b.roots) == 1 && b.tree.Joint(b.roots[0]).LocalToParent.Kind == TransformRoot {
		return b.findChild(b.roots[0], s)
	}

	for _, r := range b.roots {
		if b.tree.Joint(r).LocalToParent.Is(s) {
			return r
		}
	}

	r := b.tree.AddNode(SMatrixTransform(s), b.eval(s))
	b.roots = append(b.roots, r)
	return r
}

// findChild finds or creates a child of node with transform s.
func (b *jointTreeBuilder) findChild(node JointID, s SMatrix) JointID {
	for c := range b.tree.Children(node) {
		if b.tree.Joint(c).LocalToParent.Is(s) {
			return c
		}
	}

	rest := b.tree.Joint(node).RestWorldToLocal.Mul(b.eval(s))
	return b.tree.AddChild(node, SMatrixTransform(s), rest)
}

// checkUnusual flags sums whose terms aren't each the identity at rest or
// whose weights don't add up to one. Tolerances are generous.
func (b *jointTreeBuilder) checkUnusual(m AMatrix) {
	if len(m.Terms) <= 1 {
		return
	}

	sum := 0.0
	for _, t := range m.Terms {
		sum += t.Weight
		if !b.evalProduct(t.CMat.Factors).ApproxEqual(math.Identity(), 0.1, 0.1) {
			b.unusual = true
		}
	}
	if gomath.Abs(sum-1) > 0.1 {
		b.unusual = true
	}
}

func (b *jointTreeBuilder) eval(s SMatrix) math.Mat4 {
	return evalSMatrix(s, b.model, b.objects)
}

func (b *jointTreeBuilder) evalProduct(factors []SMatrix) math.Mat4 {
	m := math.Identity()
	for _, f := range factors {
		m = m.Mul(b.eval(f))
	}
	return m
}

// simplify merges influences on the same joint, drops zero weights and sorts
// heaviest first. Ties keep their order.
func simplify(infl []Influence) []Influence {
	for i := range infl {
		for j := i + 1; j < len(infl); j++ {
			if infl[i].Joint == infl[j].Joint {
				infl[i].Weight += infl[j].Weight
				infl[j].Weight = 0
			}
		}
	}
	infl = slices.DeleteFunc(infl, func(in Influence) bool { return in.Weight == 0 })
	slices.SortStableFunc(infl, func(a, b Influence) int {
		switch {
		case a.Weight > b.Weight:
			return -1
		case a.Weight < b.Weight:
			return 1
		}
		return 0
	})
	return infl
}

// maxInvertAttempts bounds invertMatrix for matrices the bumps can't fix,
// such as ones with a degenerate last row.
const maxInvertAttempts = 1 << 12

// invertEpsilons are the bumps tried by invertMatrix. The smallest number a
// (1,19,12) fixed-point matrix entry can hold is about 0.0002, so these stay
// below anything the model could have meant.
var invertEpsilons = [5]float64{0.000012, -0.000017, 0.000006, -0.000008, 0.00001}

// invertMatrix inverts m, bumping entries of its upper-left 3x3 block with a
// fixed pseudo-random sequence until it is invertible. nudged reports
// whether any bump was needed. If nothing works it gives up with the
// identity.
func invertMatrix(m math.Mat4) (inv math.Mat4, nudged bool) {
	rng := uint32(0x83e17875)
	for range maxInvertAttempts {
		if inv, ok := m.Invert(); ok {
			return inv, nudged
		}
		nudged = true

		a := uint(rng)
		for col := uint(0); col < 3; col++ {
			row := (a + col) % 3
			m[col*4+row] += invertEpsilons[(a+col)%uint(len(invertEpsilons))]
		}

		// xorshift
		rng ^= rng << 17
		rng ^= rng >> 13
		rng ^= rng << 5
	}
	return math.Identity(), true
}
