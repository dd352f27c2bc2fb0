package skeleton

import (
	"fmt"
	"strings"
)

// SMatrixKind tags an SMatrix.
type SMatrixKind uint8

const (
	// SMatrixObject is an object matrix. Its value depends on the pose; a
	// pose is exactly the set of object matrix values.
	SMatrixObject SMatrixKind = iota
	// SMatrixInvBind is an inverse bind matrix from the model file.
	SMatrixInvBind
	// SMatrixUninitialized is the contents of a stack slot nothing was
	// stored to. It evaluates to the identity but is never merged with a
	// real matrix.
	SMatrixUninitialized
)

// SMatrix is an elementary symbolic matrix. Two SMatrices are equal when
// their kind and index are; their numeric values never enter into it.
type SMatrix struct {
	Kind  SMatrixKind
	Index uint8 // object index, inverse bind index or stack slot
}

// Object returns the SMatrix for object matrix idx.
func Object(idx uint8) SMatrix { return SMatrix{Kind: SMatrixObject, Index: idx} }

// InvBind returns the SMatrix for inverse bind matrix idx.
func InvBind(idx uint8) SMatrix { return SMatrix{Kind: SMatrixInvBind, Index: idx} }

// Uninitialized returns the SMatrix for the unwritten stack slot pos.
func Uninitialized(pos uint8) SMatrix { return SMatrix{Kind: SMatrixUninitialized, Index: pos} }

// PoseInvariant reports whether the value of s is the same in every pose.
func (s SMatrix) PoseInvariant() bool {
	return s.Kind != SMatrixObject
}

func (s SMatrix) String() string {
	switch s.Kind {
	case SMatrixObject:
		return fmt.Sprintf("Object{%d}", s.Index)
	case SMatrixInvBind:
		return fmt.Sprintf("InvBind{%d}", s.Index)
	case SMatrixUninitialized:
		return fmt.Sprintf("Uninitialized{%d}", s.Index)
	}
	return fmt.Sprintf("SMatrix(%d){%d}", s.Kind, s.Index)
}

// CMatrix is a composition f1 * f2 * ... * fn of SMatrices. No factors means
// the identity.
type CMatrix struct {
	Factors []SMatrix
}

func (c CMatrix) String() string {
	if len(c.Factors) == 0 {
		return "1"
	}
	parts := make([]string, len(c.Factors))
	for i, f := range c.Factors {
		parts[i] = f.String()
	}
	return strings.Join(parts, "*")
}

// ATerm is one weighted product in an AMatrix.
type ATerm struct {
	Weight float64
	CMat   CMatrix
}

// AMatrix is a weighted sum of CMatrices. No terms means zero.
//
// Like terms are not combined. Grouping happens later against joints, which
// are much easier to compare than factor lists.
type AMatrix struct {
	Terms []ATerm
}

// AMatrixOne returns the identity: one term of weight 1 with no factors.
func AMatrixOne() AMatrix {
	return AMatrix{Terms: []ATerm{{Weight: 1}}}
}

// AMatrixZero returns the empty sum.
func AMatrixZero() AMatrix {
	return AMatrix{}
}

// FromSMatrix returns the AMatrix 1 * s.
func FromSMatrix(s SMatrix) AMatrix {
	return AMatrix{Terms: []ATerm{{Weight: 1, CMat: CMatrix{Factors: []SMatrix{s}}}}}
}

// MulSMatrix returns a * s, distributing s over every term. a is not
// modified; catalogue entries are shared and must stay immutable.
func (a AMatrix) MulSMatrix(s SMatrix) AMatrix {
	terms := make([]ATerm, len(a.Terms))
	for i, t := range a.Terms {
		factors := make([]SMatrix, len(t.CMat.Factors), len(t.CMat.Factors)+1)
		copy(factors, t.CMat.Factors)
		terms[i] = ATerm{Weight: t.Weight, CMat: CMatrix{Factors: append(factors, s)}}
	}
	return AMatrix{Terms: terms}
}

// MulScalar returns k * a. Multiplying by zero gives the empty sum.
func (a AMatrix) MulScalar(k float64) AMatrix {
	if k == 0 {
		return AMatrixZero()
	}
	terms := make([]ATerm, len(a.Terms))
	for i, t := range a.Terms {
		terms[i] = ATerm{Weight: t.Weight * k, CMat: t.CMat}
	}
	return AMatrix{Terms: terms}
}

// Add returns a + b by concatenating the terms. Terms can never cancel: the
// skinning command has no way to encode a negative weight.
func (a AMatrix) Add(b AMatrix) AMatrix {
	terms := make([]ATerm, 0, len(a.Terms)+len(b.Terms))
	terms = append(terms, a.Terms...)
	terms = append(terms, b.Terms...)
	return AMatrix{Terms: terms}
}

func (a AMatrix) String() string {
	if len(a.Terms) == 0 {
		return "0"
	}
	parts := make([]string, len(a.Terms))
	for i, t := range a.Terms {
		parts[i] = fmt.Sprintf("%g*%v", t.Weight, t.CMat)
	}
	return strings.Join(parts, " + ")
}
