package kernel

import (
	"fmt"
	"sort"
	"strconv"

	"topo/internal/hasher"
	"topo/internal/shape"
)

// SigPoison is a congruence signature the synthetic kernel refuses to
// compare, standing in for a kernel-level comparison failure.
const SigPoison = ^uint64(0)

// Synthetic is the in-process shape-transform oracle. It builds purely
// combinatorial topologies with deterministic content but unstable
// ordinals: derived operations renumber surviving sub-elements, the way a
// real kernel reassigns indices on every rebuild.
type Synthetic struct{}

// NewSynthetic creates the synthetic oracle.
func NewSynthetic() *Synthetic {
	return &Synthetic{}
}

// Congruent compares elements by signature.
func (k *Synthetic) Congruent(a, b shape.Element) (bool, error) {
	if a.Sig == SigPoison || b.Sig == SigPoison {
		return false, fmt.Errorf("signature comparison rejected by kernel")
	}
	return a.Sig != 0 && a.Sig == b.Sig, nil
}

// Execute runs one operation.
func (k *Synthetic) Execute(op Operation, inputs []*shape.Topology) (*Result, error) {
	switch op.Code {
	case OpBox:
		return makeBox(op)
	case OpFillet:
		return makeFillet(op, inputs)
	case OpFuse:
		return makeFuse(op, inputs)
	case OpTransform:
		return makeTransform(op, inputs)
	case OpCompound:
		return makeCompound(op, inputs)
	}
	return nil, fmt.Errorf("unknown operation code %q", op.Code)
}

func sig(parts ...string) uint64 {
	s := ""
	for _, p := range parts {
		s += p + "|"
	}
	return uint64(hasher.Digest(s))
}

func paramString(op Operation, key, def string) string {
	if v, ok := op.Params[key]; ok {
		return fmt.Sprint(v)
	}
	return def
}

func paramBool(op Operation, key string) bool {
	v, ok := op.Params[key]
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Box topology: 8 vertices, 12 edges, 6 wires, 6 faces, 1 shell, 1 solid.
// Standard corner numbering, bottom face 1-2-3-4, top face 5-6-7-8.
var (
	boxEdgeVerts = [12][2]int{
		{1, 2}, {2, 3}, {3, 4}, {4, 1},
		{5, 6}, {6, 7}, {7, 8}, {8, 5},
		{1, 5}, {2, 6}, {3, 7}, {4, 8},
	}
	boxFaceEdges = [6][4]int{
		{1, 2, 3, 4},   // bottom
		{5, 6, 7, 8},   // top
		{1, 10, 5, 9},  // front
		{2, 11, 6, 10}, // right
		{3, 12, 7, 11}, // back
		{4, 9, 8, 12},  // left
	}
	boxEdgeClass = [12]string{"x", "y", "x", "y", "x", "y", "x", "y", "z", "z", "z", "z"}
	boxFaceClass = [6]string{"xy", "xy", "xz", "yz", "xz", "yz"}
)

func makeBox(op Operation) (*Result, error) {
	dims := paramString(op, "lx", "1") + "x" + paramString(op, "ly", "1") + "x" + paramString(op, "lz", "1")
	seed := paramString(op, "seed", "")

	t := shape.NewTopology()
	for i := 0; i < 8; i++ {
		t.Elems[shape.KindVertex] = append(t.Elems[shape.KindVertex],
			shape.Element{Sig: sig("box.v", dims, seed)})
	}
	for i, vv := range boxEdgeVerts {
		t.Elems[shape.KindEdge] = append(t.Elems[shape.KindEdge],
			shape.Element{Lower: []int{vv[0], vv[1]}, Sig: sig("box.e", dims, seed, boxEdgeClass[i])})
	}
	var allFaces []int
	for i, ee := range boxFaceEdges {
		edges := append([]int(nil), ee[:]...)
		t.Elems[shape.KindWire] = append(t.Elems[shape.KindWire],
			shape.Element{Lower: append([]int(nil), edges...), Sig: sig("box.w", dims, seed, boxFaceClass[i])})
		t.Elems[shape.KindFace] = append(t.Elems[shape.KindFace],
			shape.Element{Lower: edges, Sig: sig("box.f", dims, seed, boxFaceClass[i])})
		allFaces = append(allFaces, i+1)
	}
	t.Elems[shape.KindShell] = []shape.Element{{Lower: append([]int(nil), allFaces...), Sig: sig("box.sh", dims, seed)}}
	t.Elems[shape.KindSolid] = []shape.Element{{Lower: allFaces, Sig: sig("box.so", dims, seed)}}

	return &Result{Topo: t}, nil
}

// makeFillet replaces one edge with a blend face bounded by two new edges.
// All surviving edges and faces are renumbered in reverse order to emulate
// kernel index instability.
func makeFillet(op Operation, inputs []*shape.Topology) (*Result, error) {
	if len(inputs) != 1 || inputs[0] == nil {
		return nil, fmt.Errorf("fillet requires one input shape")
	}
	in := inputs[0]
	edgeRef, ok := shape.ParseIndexName(paramString(op, "edge", ""))
	if !ok || edgeRef.Kind != shape.KindEdge {
		return nil, fmt.Errorf("fillet requires an edge parameter, got %q", paramString(op, "edge", ""))
	}
	if edgeRef.Index > in.Count(shape.KindEdge) {
		return nil, fmt.Errorf("fillet edge %s out of range", edgeRef)
	}

	nEdges := in.Count(shape.KindEdge)
	nFaces := in.Count(shape.KindFace)

	// Renumber surviving edges in reverse; the two blend edges go last.
	edgeMap := make(map[int]int, nEdges) // old ordinal -> new ordinal
	pos := 0
	for old := nEdges; old >= 1; old-- {
		if old == edgeRef.Index {
			continue
		}
		pos++
		edgeMap[old] = pos
	}
	blendA := pos + 1
	blendB := pos + 2

	// Faces renumbered in reverse; the blend face goes last.
	faceMap := make(map[int]int, nFaces)
	pos = 0
	for old := nFaces; old >= 1; old-- {
		pos++
		faceMap[old] = pos
	}
	blendFace := pos + 1

	adjacent := in.Ancestors(edgeRef, shape.KindFace)

	t := shape.NewTopology()
	t.Elems[shape.KindVertex] = append([]shape.Element(nil), in.Elems[shape.KindVertex]...)

	newEdges := make([]shape.Element, blendB)
	for old := 1; old <= nEdges; old++ {
		if old == edgeRef.Index {
			continue
		}
		e := in.Elems[shape.KindEdge][old-1]
		newEdges[edgeMap[old]-1] = shape.Element{Lower: append([]int(nil), e.Lower...), Sig: e.Sig}
	}
	oldEdgeSig := in.Elems[shape.KindEdge][edgeRef.Index-1].Sig
	newEdges[blendA-1] = shape.Element{Sig: sig("flt.e", strconv.FormatUint(oldEdgeSig, 10), "a")}
	newEdges[blendB-1] = shape.Element{Sig: sig("flt.e", strconv.FormatUint(oldEdgeSig, 10), "b")}
	t.Elems[shape.KindEdge] = newEdges

	newFaces := make([]shape.Element, blendFace)
	newWires := make([]shape.Element, blendFace)
	for old := 1; old <= nFaces; old++ {
		f := in.Elems[shape.KindFace][old-1]
		var lower []int
		replaced := false
		for _, e := range f.Lower {
			if e == edgeRef.Index {
				// First adjacent face takes blend edge A, the rest B.
				if len(adjacent) > 0 && old == adjacent[0] {
					lower = append(lower, blendA)
				} else {
					lower = append(lower, blendB)
				}
				replaced = true
				continue
			}
			lower = append(lower, edgeMap[e])
		}
		fs := f.Sig
		if replaced {
			fs = sig("flt.f", strconv.FormatUint(f.Sig, 10))
		}
		newFaces[faceMap[old]-1] = shape.Element{Lower: lower, Sig: fs}
		newWires[faceMap[old]-1] = shape.Element{Lower: append([]int(nil), lower...), Sig: fs}
	}
	blendLower := []int{blendA, blendB}
	blendSig := sig("flt.face", strconv.FormatUint(oldEdgeSig, 10))
	newFaces[blendFace-1] = shape.Element{Lower: blendLower, Sig: blendSig}
	newWires[blendFace-1] = shape.Element{Lower: append([]int(nil), blendLower...), Sig: blendSig}
	t.Elems[shape.KindFace] = newFaces
	t.Elems[shape.KindWire] = newWires

	allFaces := make([]int, blendFace)
	for i := range allFaces {
		allFaces[i] = i + 1
	}
	if in.Count(shape.KindShell) > 0 {
		t.Elems[shape.KindShell] = []shape.Element{{Lower: append([]int(nil), allFaces...), Sig: sig("flt.sh", strconv.FormatUint(blendSig, 10))}}
	}
	if in.Count(shape.KindSolid) > 0 {
		t.Elems[shape.KindSolid] = []shape.Element{{Lower: allFaces, Sig: sig("flt.so", strconv.FormatUint(blendSig, 10))}}
	}

	res := &Result{Topo: t}
	for old := 1; old <= in.Count(shape.KindVertex); old++ {
		res.Corr = append(res.Corr, Correspondence{
			From: shape.IndexName{Kind: shape.KindVertex, Index: old},
			To:   []shape.IndexName{{Kind: shape.KindVertex, Index: old}},
		})
	}
	for old := 1; old <= nEdges; old++ {
		if old == edgeRef.Index {
			continue
		}
		res.Corr = append(res.Corr, Correspondence{
			From: shape.IndexName{Kind: shape.KindEdge, Index: old},
			To:   []shape.IndexName{{Kind: shape.KindEdge, Index: edgeMap[old]}},
		})
	}
	res.Corr = append(res.Corr, Correspondence{
		From:     edgeRef,
		To:       []shape.IndexName{{Kind: shape.KindEdge, Index: blendA}, {Kind: shape.KindEdge, Index: blendB}},
		Modified: true,
	})
	res.Corr = append(res.Corr, Correspondence{
		From:     edgeRef,
		To:       []shape.IndexName{{Kind: shape.KindFace, Index: blendFace}},
		Modified: true,
	})
	adjSet := make(map[int]bool, len(adjacent))
	for _, a := range adjacent {
		adjSet[a] = true
	}
	for old := 1; old <= nFaces; old++ {
		res.Corr = append(res.Corr, Correspondence{
			From:     shape.IndexName{Kind: shape.KindFace, Index: old},
			To:       []shape.IndexName{{Kind: shape.KindFace, Index: faceMap[old]}},
			Modified: adjSet[old],
		})
	}
	return res, nil
}

// makeFuse unions two solids. The synthetic union keeps every sub-element
// of both inputs, renumbered with the second input's elements first.
func makeFuse(op Operation, inputs []*shape.Topology) (*Result, error) {
	if len(inputs) != 2 || inputs[0] == nil || inputs[1] == nil {
		return nil, fmt.Errorf("fuse requires two input shapes")
	}
	t := shape.NewTopology()
	res := &Result{Topo: t}

	// offsets[i][kind] is the ordinal base for input i.
	order := []int{1, 0}
	offsets := make([]map[shape.Kind]int, len(inputs))
	for i := range offsets {
		offsets[i] = make(map[shape.Kind]int)
	}
	for _, kind := range []shape.Kind{shape.KindVertex, shape.KindEdge, shape.KindFace} {
		base := 0
		for _, i := range order {
			offsets[i][kind] = base
			base += inputs[i].Count(kind)
		}
	}
	for _, kind := range []shape.Kind{shape.KindVertex, shape.KindEdge, shape.KindFace} {
		elems := make([]shape.Element, 0)
		for _, i := range order {
			for _, e := range inputs[i].Elems[kind] {
				lower := make([]int, len(e.Lower))
				for j, ord := range e.Lower {
					lower[j] = ord + offsets[i][kind.DirectLower()]
				}
				elems = append(elems, shape.Element{Lower: lower, Sig: e.Sig})
			}
		}
		t.Elems[kind] = elems
	}
	// Wires mirror faces.
	for _, f := range t.Elems[shape.KindFace] {
		t.Elems[shape.KindWire] = append(t.Elems[shape.KindWire],
			shape.Element{Lower: append([]int(nil), f.Lower...), Sig: f.Sig})
	}
	allFaces := make([]int, t.Count(shape.KindFace))
	for i := range allFaces {
		allFaces[i] = i + 1
	}
	fuseSig := sig("fus", strconv.Itoa(len(allFaces)))
	t.Elems[shape.KindShell] = []shape.Element{{Lower: append([]int(nil), allFaces...), Sig: fuseSig}}
	t.Elems[shape.KindSolid] = []shape.Element{{Lower: allFaces, Sig: fuseSig}}

	for i := range inputs {
		for _, kind := range []shape.Kind{shape.KindVertex, shape.KindEdge, shape.KindFace} {
			for ord := 1; ord <= inputs[i].Count(kind); ord++ {
				res.Corr = append(res.Corr, Correspondence{
					Input: i,
					From:  shape.IndexName{Kind: kind, Index: ord},
					To:    []shape.IndexName{{Kind: kind, Index: ord + offsets[i][kind]}},
				})
			}
		}
	}
	return res, nil
}

func makeTransform(op Operation, inputs []*shape.Topology) (*Result, error) {
	if len(inputs) != 1 || inputs[0] == nil {
		return nil, fmt.Errorf("transform requires one input shape")
	}
	scaled := paramBool(op, "scale")
	in := inputs[0]
	t := shape.NewTopology()
	for kind, elems := range in.Elems {
		out := make([]shape.Element, len(elems))
		for i, e := range elems {
			s := e.Sig
			if scaled {
				s = sig("trf", strconv.FormatUint(e.Sig, 10), paramString(op, "scale", "true"))
			}
			out[i] = shape.Element{Lower: append([]int(nil), e.Lower...), Sig: s}
		}
		t.Elems[kind] = out
	}
	res := &Result{Topo: t, Scaled: scaled}
	for _, kind := range []shape.Kind{shape.KindVertex, shape.KindEdge, shape.KindFace} {
		for ord := 1; ord <= in.Count(kind); ord++ {
			res.Corr = append(res.Corr, Correspondence{
				From: shape.IndexName{Kind: kind, Index: ord},
				To:   []shape.IndexName{{Kind: kind, Index: ord}},
			})
		}
	}
	return res, nil
}

// makeCompound concatenates all inputs. Every sub-element is reported as
// modified so the mapper stamps per-input names; a compound of the same
// shape twice must not collapse the two copies onto one durable name.
func makeCompound(op Operation, inputs []*shape.Topology) (*Result, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("compound requires at least one input shape")
	}
	t := shape.NewTopology()
	res := &Result{Topo: t}

	offsets := make([]map[shape.Kind]int, len(inputs))
	kinds := []shape.Kind{shape.KindVertex, shape.KindEdge, shape.KindFace, shape.KindSolid}
	for _, kind := range kinds {
		base := 0
		for i, in := range inputs {
			if offsets[i] == nil {
				offsets[i] = make(map[shape.Kind]int)
			}
			offsets[i][kind] = base
			if in != nil {
				base += in.Count(kind)
			}
		}
	}
	for _, kind := range kinds {
		for i, in := range inputs {
			if in == nil {
				continue
			}
			for _, e := range in.Elems[kind] {
				lower := make([]int, len(e.Lower))
				for j, ord := range e.Lower {
					lower[j] = ord + offsets[i][kind.DirectLower()]
				}
				t.Elems[kind] = append(t.Elems[kind], shape.Element{Lower: lower, Sig: e.Sig})
			}
		}
	}
	allFaces := make([]int, t.Count(shape.KindFace))
	for i := range allFaces {
		allFaces[i] = i + 1
	}
	t.Elems[shape.KindCompound] = []shape.Element{{Lower: allFaces, Sig: sig("cpd", strconv.Itoa(len(inputs)))}}

	for i, in := range inputs {
		if in == nil {
			continue
		}
		for _, kind := range kinds {
			for ord := 1; ord <= in.Count(kind); ord++ {
				res.Corr = append(res.Corr, Correspondence{
					Input:    i,
					From:     shape.IndexName{Kind: kind, Index: ord},
					To:       []shape.IndexName{{Kind: kind, Index: ord + offsets[i][kind]}},
					Modified: true,
				})
			}
		}
	}
	return res, nil
}

// SortCorrespondences orders correspondences deterministically, for
// callers that iterate them building names.
func SortCorrespondences(corr []Correspondence) {
	sort.SliceStable(corr, func(i, j int) bool {
		a, b := corr[i], corr[j]
		if a.Input != b.Input {
			return a.Input < b.Input
		}
		if a.From.Kind != b.From.Kind {
			return a.From.Kind < b.From.Kind
		}
		return a.From.Index < b.From.Index
	})
}
