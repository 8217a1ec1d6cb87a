package kernel

import (
	"testing"

	"topo/internal/shape"
)

func mustBox(t *testing.T, params map[string]interface{}) *Result {
	t.Helper()
	res, err := NewSynthetic().Execute(Operation{Code: OpBox, Params: params}, nil)
	if err != nil {
		t.Fatalf("box failed: %v", err)
	}
	return res
}

func TestBoxTopology(t *testing.T) {
	res := mustBox(t, nil)
	counts := map[shape.Kind]int{
		shape.KindVertex: 8,
		shape.KindEdge:   12,
		shape.KindWire:   6,
		shape.KindFace:   6,
		shape.KindShell:  1,
		shape.KindSolid:  1,
	}
	for kind, want := range counts {
		if got := res.Topo.Count(kind); got != want {
			t.Errorf("%s count = %d, want %d", kind, got, want)
		}
	}
	if len(res.Corr) != 0 {
		t.Errorf("primitive box reported %d correspondences", len(res.Corr))
	}
}

func TestBoxSigsDependOnDims(t *testing.T) {
	a := mustBox(t, map[string]interface{}{"lx": "2"})
	b := mustBox(t, nil)
	ea, _ := a.Topo.Element(shape.IndexName{Kind: shape.KindEdge, Index: 1})
	eb, _ := b.Topo.Element(shape.IndexName{Kind: shape.KindEdge, Index: 1})
	if ea.Sig == eb.Sig {
		t.Error("boxes of different dimensions share edge signatures")
	}
}

func TestFilletRenumbersInReverse(t *testing.T) {
	box := mustBox(t, nil)
	res, err := NewSynthetic().Execute(
		Operation{Code: OpFillet, Params: map[string]interface{}{"edge": "Edge3"}},
		[]*shape.Topology{box.Topo},
	)
	if err != nil {
		t.Fatalf("fillet failed: %v", err)
	}

	if got := res.Topo.Count(shape.KindEdge); got != 13 {
		t.Errorf("edge count = %d, want 13 (11 survivors + 2 blend)", got)
	}
	if got := res.Topo.Count(shape.KindFace); got != 7 {
		t.Errorf("face count = %d, want 7 (6 renumbered + blend)", got)
	}

	// Reverse renumbering: old Edge1 lands at Edge11.
	var found bool
	for _, c := range res.Corr {
		if c.From == (shape.IndexName{Kind: shape.KindEdge, Index: 1}) {
			found = true
			if len(c.To) != 1 || c.To[0].Index != 11 {
				t.Errorf("Edge1 mapped to %v, want Edge11", c.To)
			}
			if c.Modified {
				t.Error("carried Edge1 reported as modified")
			}
		}
	}
	if !found {
		t.Fatal("no correspondence for Edge1")
	}

	// The filleted edge yields two blend edges and the blend face.
	var edgeTo, faceTo []shape.IndexName
	for _, c := range res.Corr {
		if c.From != (shape.IndexName{Kind: shape.KindEdge, Index: 3}) || !c.Modified {
			continue
		}
		switch c.To[0].Kind {
		case shape.KindEdge:
			edgeTo = c.To
		case shape.KindFace:
			faceTo = c.To
		}
	}
	if len(edgeTo) != 2 || edgeTo[0].Index != 12 || edgeTo[1].Index != 13 {
		t.Errorf("blend edges = %v, want [Edge12 Edge13]", edgeTo)
	}
	if len(faceTo) != 1 || faceTo[0].Index != 7 {
		t.Errorf("blend face = %v, want [Face7]", faceTo)
	}
}

func TestFilletRejectsBadEdge(t *testing.T) {
	box := mustBox(t, nil)
	k := NewSynthetic()
	for _, edge := range []string{"", "Face1", "Edge99"} {
		_, err := k.Execute(
			Operation{Code: OpFillet, Params: map[string]interface{}{"edge": edge}},
			[]*shape.Topology{box.Topo},
		)
		if err == nil {
			t.Errorf("fillet accepted edge %q", edge)
		}
	}
}

func TestFuseConcatenatesSecondInputFirst(t *testing.T) {
	a := mustBox(t, nil)
	b := mustBox(t, map[string]interface{}{"lx": "2"})
	res, err := NewSynthetic().Execute(Operation{Code: OpFuse}, []*shape.Topology{a.Topo, b.Topo})
	if err != nil {
		t.Fatalf("fuse failed: %v", err)
	}
	if got := res.Topo.Count(shape.KindFace); got != 12 {
		t.Errorf("fused face count = %d, want 12", got)
	}
	for _, c := range res.Corr {
		if c.Input == 1 && c.From.Kind == shape.KindFace && c.From.Index == 1 {
			if c.To[0].Index != 1 {
				t.Errorf("second input's Face1 landed at %v, want Face1", c.To[0])
			}
		}
		if c.Input == 0 && c.From.Kind == shape.KindFace && c.From.Index == 1 {
			if c.To[0].Index != 7 {
				t.Errorf("first input's Face1 landed at %v, want Face7", c.To[0])
			}
		}
	}
}

func TestTransformScaleFlag(t *testing.T) {
	box := mustBox(t, nil)
	k := NewSynthetic()

	rigid, err := k.Execute(Operation{Code: OpTransform}, []*shape.Topology{box.Topo})
	if err != nil {
		t.Fatalf("transform failed: %v", err)
	}
	if rigid.Scaled {
		t.Error("rigid transform reported Scaled")
	}
	e0, _ := box.Topo.Element(shape.IndexName{Kind: shape.KindEdge, Index: 1})
	e1, _ := rigid.Topo.Element(shape.IndexName{Kind: shape.KindEdge, Index: 1})
	if e0.Sig != e1.Sig {
		t.Error("rigid transform changed signatures")
	}

	scaled, err := k.Execute(
		Operation{Code: OpTransform, Params: map[string]interface{}{"scale": true}},
		[]*shape.Topology{box.Topo},
	)
	if err != nil {
		t.Fatalf("scaled transform failed: %v", err)
	}
	if !scaled.Scaled {
		t.Error("scaling transform did not report Scaled")
	}
	e2, _ := scaled.Topo.Element(shape.IndexName{Kind: shape.KindEdge, Index: 1})
	if e0.Sig == e2.Sig {
		t.Error("scaling transform kept signatures")
	}
}

func TestCompoundMarksEverythingModified(t *testing.T) {
	box := mustBox(t, nil)
	res, err := NewSynthetic().Execute(Operation{Code: OpCompound}, []*shape.Topology{box.Topo, box.Topo})
	if err != nil {
		t.Fatalf("compound failed: %v", err)
	}
	if got := res.Topo.Count(shape.KindCompound); got != 1 {
		t.Errorf("compound count = %d, want 1", got)
	}
	if got := res.Topo.Count(shape.KindFace); got != 12 {
		t.Errorf("face count = %d, want 12", got)
	}
	for _, c := range res.Corr {
		if !c.Modified {
			t.Fatalf("correspondence %v not marked modified", c)
		}
	}
}

func TestCongruentPoison(t *testing.T) {
	k := NewSynthetic()
	good := shape.Element{Sig: 42}
	bad := shape.Element{Sig: SigPoison}

	if _, err := k.Congruent(good, bad); err == nil {
		t.Error("poisoned signature did not fail the comparison")
	}
	same, err := k.Congruent(good, shape.Element{Sig: 42})
	if err != nil || !same {
		t.Errorf("equal signatures: %v, %v", same, err)
	}
	same, err = k.Congruent(good, shape.Element{Sig: 43})
	if err != nil || same {
		t.Errorf("unequal signatures: %v, %v", same, err)
	}
}

func TestUnknownOperation(t *testing.T) {
	if _, err := NewSynthetic().Execute(Operation{Code: "NOPE"}, nil); err == nil {
		t.Error("unknown operation code accepted")
	}
}
