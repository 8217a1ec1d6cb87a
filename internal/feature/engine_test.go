package feature

import (
	"testing"

	"topo/internal/config"
	"topo/internal/document"
	"topo/internal/errors"
	"topo/internal/kernel"
	"topo/internal/logging"
	"topo/internal/shape"
)

// fixture is a recomputed box-with-fillet document, the canonical
// renumbering scenario: filleting Edge3 renumbers every surviving edge and
// face and introduces two blend edges plus a blend face.
type fixture struct {
	doc    *document.Document
	box    *document.Object
	fillet *document.Object
	cache  *Cache
	eng    *Engine
}

func newBoxFillet(t *testing.T) *fixture {
	t.Helper()
	logger := logging.Discard()
	doc := document.New("test", logger)

	box, err := doc.AddObject("Box", kernel.Operation{Code: kernel.OpBox})
	if err != nil {
		t.Fatalf("AddObject(Box): %v", err)
	}
	fillet, err := doc.AddObject("Fillet", kernel.Operation{
		Code:   kernel.OpFillet,
		Params: map[string]interface{}{"edge": "Edge3"},
	}, box)
	if err != nil {
		t.Fatalf("AddObject(Fillet): %v", err)
	}

	cache := NewCache(64, logger)
	cache.Attach(doc)
	eng := NewEngine(kernel.NewSynthetic(), cache, config.Default(), logger)
	if err := doc.Recompute(eng); err != nil {
		t.Fatalf("Recompute: %v", err)
	}
	return &fixture{doc: doc, box: box, fillet: fillet, cache: cache, eng: eng}
}

func durableAt(t *testing.T, s *shape.Shape, kind shape.Kind, index int) shape.DurableName {
	t.Helper()
	d, ok := s.DurableOf(shape.IndexName{Kind: kind, Index: index})
	if !ok {
		t.Fatalf("no durable name at %s%d", kind, index)
	}
	return d
}

func TestPrimitiveOriginNames(t *testing.T) {
	f := newBoxFillet(t)
	s := f.box.Shape()

	if got := durableAt(t, s, shape.KindFace, 1); got != "Face1;BOX" {
		t.Errorf("Face1 durable = %q, want Face1;BOX", got)
	}
	if got := s.Map().Len(); got != 26 {
		t.Errorf("box mapped %d names, want 26 (8 vertices, 12 edges, 6 faces)", got)
	}
	if _, ok := s.Generation("Face1;BOX"); ok {
		t.Error("origin name carries a generation record")
	}
}

func TestFilletDurableNames(t *testing.T) {
	f := newBoxFillet(t)
	s := f.fillet.Shape()

	// Consumed edge becomes two blend edges and the blend face.
	if got := durableAt(t, s, shape.KindFace, 7); got != "Edge3;BOX;FLT" {
		t.Errorf("blend face = %q, want Edge3;BOX;FLT", got)
	}
	if got := durableAt(t, s, shape.KindEdge, 12); got != "Edge3;BOX;FLT:1" {
		t.Errorf("blend edge A = %q, want Edge3;BOX;FLT:1", got)
	}
	if got := durableAt(t, s, shape.KindEdge, 13); got != "Edge3;BOX;FLT:2" {
		t.Errorf("blend edge B = %q, want Edge3;BOX;FLT:2", got)
	}

	// Carried elements keep their names byte-identical despite renumbering.
	if got := durableAt(t, s, shape.KindEdge, 11); got != "Edge1;BOX" {
		t.Errorf("carried edge = %q, want Edge1;BOX", got)
	}
	if got := durableAt(t, s, shape.KindFace, 5); got != "Face2;BOX" {
		t.Errorf("carried face = %q, want Face2;BOX", got)
	}

	// Faces adjacent to the filleted edge are modified, not carried.
	if got := durableAt(t, s, shape.KindFace, 6); got != "Face1;BOX;FLT" {
		t.Errorf("adjacent face = %q, want Face1;BOX;FLT", got)
	}
}

func TestGenerationRecords(t *testing.T) {
	f := newBoxFillet(t)
	s := f.fillet.Shape()

	gen, ok := s.Generation("Edge3;BOX;FLT")
	if !ok {
		t.Fatal("blend face has no generation record")
	}
	if gen.Tag != f.box.Tag() || gen.Op != kernel.OpFillet {
		t.Errorf("blend face generation = %+v, want tag %d op FLT", gen, f.box.Tag())
	}
	if len(gen.Ancestors) != 1 || gen.Ancestors[0] != "Edge3;BOX" {
		t.Errorf("blend face ancestors = %v", gen.Ancestors)
	}

	carried, ok := s.Generation("Edge1;BOX")
	if !ok {
		t.Fatal("carried edge has no generation record")
	}
	if carried.Tag != -f.box.Tag() {
		t.Errorf("carried tag = %d, want %d", carried.Tag, -f.box.Tag())
	}
}

func TestRebuildKeepsDurableNames(t *testing.T) {
	f := newBoxFillet(t)
	before := make(map[shape.IndexName]shape.DurableName)
	for _, d := range f.fillet.Shape().Map().Names() {
		idx, _ := f.fillet.Shape().IndexOf(d)
		before[idx] = d
	}

	f.box.Touch()
	if err := f.doc.Recompute(f.eng); err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	after := f.fillet.Shape()
	for idx, want := range before {
		got, ok := after.DurableOf(idx)
		if !ok || got != want {
			t.Errorf("after rebuild %v = %q, want %q", idx, got, want)
		}
	}
}

func TestResolveStaleDurableReference(t *testing.T) {
	f := newBoxFillet(t)

	me, owner, err := f.eng.ElementName(f.fillet, shape.NewMappedRef("Edge1;BOX"))
	if err != nil {
		t.Fatalf("ElementName: %v", err)
	}
	if owner != f.fillet {
		t.Errorf("owner = %v", owner.Name())
	}
	if (me.Index != shape.IndexName{Kind: shape.KindEdge, Index: 11}) {
		t.Errorf("Edge1;BOX resolved to %v, want Edge11", me.Index)
	}
}

func TestResolveIndexReference(t *testing.T) {
	f := newBoxFillet(t)

	me, _, err := f.eng.ElementName(f.fillet, "Face7")
	if err != nil {
		t.Fatalf("ElementName: %v", err)
	}
	if me.Name != "Edge3;BOX;FLT" {
		t.Errorf("Face7 durable = %q", me.Name)
	}

	if _, _, err := f.eng.ElementName(f.fillet, "Face99"); errors.CodeOf(err) != errors.ElementNotFound {
		t.Errorf("out-of-range reference reported %v", err)
	}
	if _, _, err := f.eng.ElementName(f.fillet, "garbage"); errors.CodeOf(err) != errors.ElementNotFound {
		t.Errorf("malformed reference reported %v", err)
	}
}

func TestResolveDottedSubname(t *testing.T) {
	f := newBoxFillet(t)

	me, owner, err := f.eng.ElementName(f.fillet, "Box.Face1")
	if err != nil {
		t.Fatalf("ElementName: %v", err)
	}
	if owner != f.box || me.Name != "Face1;BOX" {
		t.Errorf("Box.Face1 = %q on %v", me.Name, owner.Name())
	}
}

func TestWireComboSynthesis(t *testing.T) {
	f := newBoxFillet(t)

	me, _, err := f.eng.ElementName(f.box, "Wire1")
	if err != nil {
		t.Fatalf("ElementName: %v", err)
	}
	want := "(Edge1;BOX,Edge2;BOX,Edge3;BOX);CMB:Wire1"
	if string(me.Name) != want {
		t.Errorf("Wire1 combo = %q, want %q", me.Name, want)
	}

	back, _, err := f.eng.ElementName(f.box, shape.NewMappedRef(me.Name))
	if err != nil {
		t.Fatalf("combo did not resolve back: %v", err)
	}
	if (back.Index != shape.IndexName{Kind: shape.KindWire, Index: 1}) {
		t.Errorf("combo resolved to %v", back.Index)
	}
}

func TestCompoundKeepsCopiesApart(t *testing.T) {
	logger := logging.Discard()
	doc := document.New("test", logger)
	box, _ := doc.AddObject("Box", kernel.Operation{Code: kernel.OpBox})
	comp, _ := doc.AddObject("Comp", kernel.Operation{Code: kernel.OpCompound}, box, box)
	eng := NewEngine(kernel.NewSynthetic(), nil, config.Default(), logger)
	if err := doc.Recompute(eng); err != nil {
		t.Fatalf("Recompute: %v", err)
	}

	s := comp.Shape()
	first := durableAt(t, s, shape.KindFace, 1)
	second := durableAt(t, s, shape.KindFace, 7)
	if first == second {
		t.Fatalf("both compound copies share the name %q", first)
	}
	if first != "Face1;BOX;CPD:0" || second != "Face1;BOX;CPD:1" {
		t.Errorf("compound names = %q, %q", first, second)
	}
}

func TestKernelFailureSurfaces(t *testing.T) {
	logger := logging.Discard()
	doc := document.New("test", logger)
	box, _ := doc.AddObject("Box", kernel.Operation{Code: kernel.OpBox})
	fillet, _ := doc.AddObject("Fillet", kernel.Operation{
		Code:   kernel.OpFillet,
		Params: map[string]interface{}{"edge": "Edge99"},
	}, box)
	eng := NewEngine(kernel.NewSynthetic(), nil, config.Default(), logger)

	err := doc.Recompute(eng)
	if err == nil {
		t.Fatal("expected the kernel failure to surface")
	}
	if fillet.ExecError == "" {
		t.Error("failed feature carries no error marker")
	}
	if box.Touched() {
		t.Error("successful upstream feature left touched")
	}
}
