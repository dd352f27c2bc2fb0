package render

import "fmt"

// OpKind identifies a recorded render operation.
type OpKind uint8

const (
	OpLoadMatrix OpKind = iota
	OpStoreMatrix
	OpMulByObject
	OpBlend
	OpScaleUp
	OpScaleDown
	OpBindMaterial
	OpDraw
)

// String returns the operation name.
func (k OpKind) String() string {
	switch k {
	case OpLoadMatrix:
		return "LoadMatrix"
	case OpStoreMatrix:
		return "StoreMatrix"
	case OpMulByObject:
		return "MulByObject"
	case OpBlend:
		return "Blend"
	case OpScaleUp:
		return "ScaleUp"
	case OpScaleDown:
		return "ScaleDown"
	case OpBindMaterial:
		return "BindMaterial"
	case OpDraw:
		return "Draw"
	default:
		return fmt.Sprintf("Unknown(%d)", k)
	}
}

// Op is one recorded Sink call. Only the fields for its Kind are set.
type Op struct {
	Kind        OpKind
	StackPos    uint8      // OpLoadMatrix, OpStoreMatrix
	ObjectIdx   uint8      // OpMulByObject
	Terms       []SkinTerm // OpBlend
	MaterialIdx uint8      // OpBindMaterial, OpDraw
	MeshIdx     uint8      // OpDraw
}

// String formats the op for debug output.
func (op Op) String() string {
	switch op.Kind {
	case OpLoadMatrix, OpStoreMatrix:
		return fmt.Sprintf("%v{%d}", op.Kind, op.StackPos)
	case OpMulByObject:
		return fmt.Sprintf("%v{%d}", op.Kind, op.ObjectIdx)
	case OpBlend:
		return fmt.Sprintf("%v%v", op.Kind, op.Terms)
	case OpBindMaterial:
		return fmt.Sprintf("%v{%d}", op.Kind, op.MaterialIdx)
	case OpDraw:
		return fmt.Sprintf("%v{mesh=%d, material=%d}", op.Kind, op.MeshIdx, op.MaterialIdx)
	default:
		return op.Kind.String()
	}
}

// Parse decodes buf into the list of operations Run would send to a sink.
func Parse(buf []byte) ([]Op, error) {
	var rec recorder
	if err := Run(buf, &rec); err != nil {
		return nil, err
	}
	return rec.ops, nil
}

// Replay drives sink through previously parsed ops.
func Replay(ops []Op, sink Sink) {
	for i := range ops {
		op := &ops[i]
		switch op.Kind {
		case OpLoadMatrix:
			sink.LoadMatrix(op.StackPos)
		case OpStoreMatrix:
			sink.StoreMatrix(op.StackPos)
		case OpMulByObject:
			sink.MulByObject(op.ObjectIdx)
		case OpBlend:
			sink.Blend(op.Terms)
		case OpScaleUp:
			sink.ScaleUp()
		case OpScaleDown:
			sink.ScaleDown()
		case OpBindMaterial:
			sink.BindMaterial(op.MaterialIdx)
		case OpDraw:
			sink.Draw(op.MeshIdx, op.MaterialIdx)
		}
	}
}

// recorder is a Sink that appends every call to ops.
type recorder struct {
	ops []Op
}

func (r *recorder) LoadMatrix(stackPos uint8) {
	r.ops = append(r.ops, Op{Kind: OpLoadMatrix, StackPos: stackPos})
}

func (r *recorder) StoreMatrix(stackPos uint8) {
	r.ops = append(r.ops, Op{Kind: OpStoreMatrix, StackPos: stackPos})
}

func (r *recorder) MulByObject(objectIdx uint8) {
	r.ops = append(r.ops, Op{Kind: OpMulByObject, ObjectIdx: objectIdx})
}

func (r *recorder) Blend(terms []SkinTerm) {
	r.ops = append(r.ops, Op{Kind: OpBlend, Terms: append([]SkinTerm(nil), terms...)})
}

func (r *recorder) ScaleUp() {
	r.ops = append(r.ops, Op{Kind: OpScaleUp})
}

func (r *recorder) ScaleDown() {
	r.ops = append(r.ops, Op{Kind: OpScaleDown})
}

func (r *recorder) BindMaterial(materialIdx uint8) {
	r.ops = append(r.ops, Op{Kind: OpBindMaterial, MaterialIdx: materialIdx})
}

func (r *recorder) Draw(meshIdx, materialIdx uint8) {
	r.ops = append(r.ops, Op{Kind: OpDraw, MeshIdx: meshIdx, MaterialIdx: materialIdx})
}
