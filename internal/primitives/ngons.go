package primitives

// EncodeNgons triangulates a PolyTypeTrisAndQuads primitive set so that the
// quads can be recovered from the triangles: consecutive triangles sharing
// their first index belong to one face, so each face picks a first index
// different from the previous face's.
//
// It returns a new PolyTypeTris primitive set sharing p's vertices. p must be
// PolyTypeTrisAndQuads.
func EncodeNgons(p *Primitives) *Primitives {
	if p.PolyType != PolyTypeTrisAndQuads {
		panic("primitives: EncodeNgons needs tris+quads primitives")
	}

	tris := make([]uint16, 0, len(p.Indices)*3/2)
	calls := make([]DrawCall, len(p.DrawCalls))
	for ci, call := range p.DrawCalls {
		start := len(tris)

		last := NoIndex
		faces := p.Indices[call.IndexRange.Start:call.IndexRange.End]
		for ; len(faces) >= 4; faces = faces[4:] {
			f := faces[:4]
			if last != f[0] {
				last = f[0]
				tris = append(tris, f[0], f[1], f[2])
				if f[3] != NoIndex {
					tris = append(tris, f[0], f[2], f[3])
				}
			} else {
				last = f[2]
				tris = append(tris, f[2], f[0], f[1])
				if f[3] != NoIndex {
					tris = append(tris, f[2], f[3], f[0])
				}
			}
		}

		calls[ci] = call
		calls[ci].IndexRange = Range{start, len(tris)}
	}

	return &Primitives{
		Vertices:  p.Vertices,
		Indices:   tris,
		PolyType:  PolyTypeTris,
		DrawCalls: calls,
		Bounds:    p.Bounds,

		DroppedDraws: p.DroppedDraws,
	}
}
