package feature

import (
	"testing"

	"topo/internal/config"
	"topo/internal/document"
	"topo/internal/kernel"
	"topo/internal/logging"
	"topo/internal/shape"
)

// newBoxTransform builds a box rigidly moved by a transform: every element
// is carried with its name, index and signature intact, the one case where
// the tag shortcut may answer without a search.
func newBoxTransform(t *testing.T) (box, moved *document.Object, eng *Engine) {
	t.Helper()
	logger := logging.Discard()
	doc := document.New("moved", logger)

	box, err := doc.AddObject("Box", kernel.Operation{Code: kernel.OpBox})
	if err != nil {
		t.Fatalf("AddObject(Box): %v", err)
	}
	moved, err = doc.AddObject("Move", kernel.Operation{Code: kernel.OpTransform}, box)
	if err != nil {
		t.Fatalf("AddObject(Move): %v", err)
	}

	cache := NewCache(64, logger)
	cache.Attach(doc)
	eng = NewEngine(kernel.NewSynthetic(), cache, config.Default(), logger)
	if err := doc.Recompute(eng); err != nil {
		t.Fatalf("Recompute: %v", err)
	}
	return box, moved, eng
}

func TestSourceSearchShortcut(t *testing.T) {
	box, moved, eng := newBoxTransform(t)

	matches, err := eng.ElementFromSource(moved, "", box, "Edge1", false)
	if err != nil {
		t.Fatalf("ElementFromSource: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(matches))
	}
	if (matches[0].Index != shape.IndexName{Kind: shape.KindEdge, Index: 1}) {
		t.Errorf("carried edge found at %v, want Edge1", matches[0].Index)
	}
	if matches[0].Name != "Edge1;BOX" {
		t.Errorf("carried edge named %q, want Edge1;BOX", matches[0].Name)
	}

	stats := eng.Stats()
	if stats.ShortcutHits != 1 || stats.GeometricSearches != 0 || stats.ExhaustiveScans != 0 {
		t.Errorf("stats after shortcut = %+v", stats)
	}
}

func TestSourceSearchUnrelatedFeatures(t *testing.T) {
	// Two boxes built from different parameters hold byte-identical
	// durable names, but neither derives from the other: no stage may
	// report a correspondence, and an empty result is not an error.
	logger := logging.Discard()
	doc := document.New("pair", logger)

	boxA, err := doc.AddObject("BoxA", kernel.Operation{
		Code:   kernel.OpBox,
		Params: map[string]interface{}{"seed": "a"},
	})
	if err != nil {
		t.Fatalf("AddObject(BoxA): %v", err)
	}
	boxB, err := doc.AddObject("BoxB", kernel.Operation{
		Code:   kernel.OpBox,
		Params: map[string]interface{}{"seed": "b"},
	})
	if err != nil {
		t.Fatalf("AddObject(BoxB): %v", err)
	}

	cache := NewCache(64, logger)
	cache.Attach(doc)
	eng := NewEngine(kernel.NewSynthetic(), cache, config.Default(), logger)
	if err := doc.Recompute(eng); err != nil {
		t.Fatalf("Recompute: %v", err)
	}

	matches, err := eng.ElementFromSource(boxB, "", boxA, "Face1", false)
	if err != nil {
		t.Fatalf("ElementFromSource: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("unrelated boxes reported corresponding elements: %v", matches)
	}
	if stats := eng.Stats(); stats.ShortcutHits != 0 {
		t.Errorf("shortcut accepted a name with no lineage to the source: %+v", stats)
	}
}

func TestSourceSearchGeometric(t *testing.T) {
	f := newBoxFillet(t)

	// The consumed edge's name resolves nowhere on the fillet, but its
	// signature class survives on three carried edges.
	matches, err := f.eng.ElementFromSource(f.fillet, "", f.box, "Edge3", false)
	if err != nil {
		t.Fatalf("ElementFromSource: %v", err)
	}
	if len(matches) != 3 {
		t.Fatalf("got %d matches, want 3 congruent edges", len(matches))
	}

	stats := f.eng.Stats()
	if stats.ShortcutHits != 0 || stats.GeometricSearches != 1 || stats.ExhaustiveScans != 0 {
		t.Errorf("stats after geometric search = %+v", stats)
	}
}

func TestSourceSearchExhaustive(t *testing.T) {
	f := newBoxFillet(t)

	// Poisoning the source signature makes every congruence check fail,
	// forcing the lineage scan. Per-candidate kernel failures must skip
	// candidates, not abort the search.
	f.box.Shape().Topo.Elems[shape.KindEdge][2].Sig = kernel.SigPoison

	matches, err := f.eng.ElementFromSource(f.fillet, "", f.box, "Edge3", false)
	if err != nil {
		t.Fatalf("ElementFromSource: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("got %d matches, want the 2 blend edges", len(matches))
	}
	for i, want := range []shape.DurableName{"Edge3;BOX;FLT:1", "Edge3;BOX;FLT:2"} {
		if matches[i].Name != want {
			t.Errorf("match %d = %q, want %q", i, matches[i].Name, want)
		}
	}

	stats := f.eng.Stats()
	if stats.GeometricSearches != 1 || stats.ExhaustiveScans != 1 {
		t.Errorf("stats after exhaustive scan = %+v", stats)
	}

	// single returns only the first match.
	matches, err = f.eng.ElementFromSource(f.fillet, "", f.box, "Edge3", true)
	if err != nil || len(matches) != 1 {
		t.Errorf("single search = %d matches, %v", len(matches), err)
	}
}

func TestSourceSearchStageMonotonicity(t *testing.T) {
	// Cheap stages must short-circuit the expensive ones: a shortcut hit
	// runs no geometric search, a geometric hit runs no exhaustive scan.
	box, moved, teng := newBoxTransform(t)
	if _, err := teng.ElementFromSource(moved, "", box, "Edge1", false); err != nil {
		t.Fatalf("shortcut query: %v", err)
	}
	if after := teng.Stats(); after.GeometricSearches != 0 || after.ExhaustiveScans != 0 {
		t.Errorf("shortcut hit ran later stages: %+v", after)
	}

	f := newBoxFillet(t)
	if _, err := f.eng.ElementFromSource(f.fillet, "", f.box, "Edge3", false); err != nil {
		t.Fatalf("geometric query: %v", err)
	}
	after2 := f.eng.Stats()
	if after2.ExhaustiveScans != 0 {
		t.Errorf("geometric hit ran the exhaustive scan: %+v", after2)
	}

	f.box.Shape().Topo.Elems[shape.KindEdge][2].Sig = kernel.SigPoison
	if _, err := f.eng.ElementFromSource(f.fillet, "", f.box, "Edge3", false); err != nil {
		t.Fatalf("exhaustive query: %v", err)
	}
	after3 := f.eng.Stats()
	if after3.ExhaustiveScans != 1 || after3.ShortcutHits != 0 {
		t.Errorf("stats after all stages = %+v", after3)
	}
}

func TestRelatedElementsOfConsumedEdge(t *testing.T) {
	f := newBoxFillet(t)

	related, err := f.eng.RelatedElements(f.fillet, shape.NewMappedRef("Edge3;BOX"), false, true)
	if err != nil {
		t.Fatalf("RelatedElements: %v", err)
	}
	want := []struct {
		name  shape.DurableName
		index shape.IndexName
	}{
		{"Edge3;BOX;FLT:1", shape.IndexName{Kind: shape.KindEdge, Index: 12}},
		{"Edge3;BOX;FLT:2", shape.IndexName{Kind: shape.KindEdge, Index: 13}},
		{"Edge3;BOX;FLT", shape.IndexName{Kind: shape.KindFace, Index: 7}},
	}
	if len(related) != len(want) {
		t.Fatalf("got %d related elements, want %d: %v", len(related), len(want), related)
	}
	for i, w := range want {
		if related[i].Name != w.name || related[i].Index != w.index {
			t.Errorf("related[%d] = %q %v, want %q %v", i, related[i].Name, related[i].Index, w.name, w.index)
		}
	}

	// The result is memoized inside the element map.
	if _, ok := f.fillet.Shape().RelatedElementsCached("Edge3;BOX", false); !ok {
		t.Error("result not memoized")
	}
	again, err := f.eng.RelatedElements(f.fillet, shape.NewMappedRef("Edge3;BOX"), false, true)
	if err != nil || len(again) != len(related) {
		t.Errorf("memoized query = %d elements, %v", len(again), err)
	}
}

func TestRelatedElementsLiveReference(t *testing.T) {
	f := newBoxFillet(t)

	// A resolving reference relates at least to itself.
	related, err := f.eng.RelatedElements(f.fillet, "Face7", true, false)
	if err != nil {
		t.Fatalf("RelatedElements: %v", err)
	}
	if len(related) != 1 || related[0].Name != "Edge3;BOX;FLT" {
		t.Errorf("related = %v, want the blend face itself", related)
	}
}
