package shape

import (
	"strconv"

	"topo/internal/hasher"
)

// Shape couples one kernel topology snapshot with its element map. The map
// is shared copy-on-write between shapes created via Share, so passing
// shapes through the pipeline does not duplicate the tables.
type Shape struct {
	// Topo is the kernel-produced sub-element structure. Nil means a null
	// shape; every resolution on a null shape reports not-found.
	Topo *Topology

	// Tag is the stable tag of the feature that produced this shape, zero
	// for shapes with no owner.
	Tag int64

	// Hasher is the owning document's string hasher, used to intern long
	// durable names. May be nil, in which case names are never shortened.
	Hasher *hasher.Hasher

	// HashThreshold is the name length above which names are interned.
	// Zero disables interning.
	HashThreshold int

	// Scaled records that a non-rigid transform was baked into this shape,
	// which forces shape-cache writes.
	Scaled bool

	m *ElementMap
}

// New creates a shape over a topology with an empty, privately owned
// element map.
func New(topo *Topology, tag int64, h *hasher.Hasher) *Shape {
	return &Shape{Topo: topo, Tag: tag, Hasher: h, m: NewElementMap()}
}

// IsNull reports whether the shape has no topology.
func (s *Shape) IsNull() bool { return s == nil || s.Topo == nil }

// Share returns a copy of the shape sharing this shape's element map. The
// first mutating resolver call on either copy detaches it.
func (s *Shape) Share() *Shape {
	c := *s
	if s.m != nil {
		s.m.refs++
	}
	return &c
}

// edit returns the element map ready for mutation, cloning it first if it
// is shared with another shape.
func (s *Shape) edit() *ElementMap {
	if s.m == nil {
		s.m = NewElementMap()
		return s.m
	}
	if s.m.refs > 1 {
		s.m.refs--
		s.m = s.m.clone()
	}
	return s.m
}

// Map exposes the element map for read-only use.
func (s *Shape) Map() *ElementMap {
	if s == nil {
		return nil
	}
	return s.m
}

// ResetElementMap discards all durable names, leaving other holders of the
// previous map untouched.
func (s *Shape) ResetElementMap() {
	if s == nil {
		return
	}
	if s.m != nil && s.m.refs > 1 {
		s.m.refs--
	}
	s.m = NewElementMap()
}

// DurableOf returns the durable name mapped to an index name, if any.
func (s *Shape) DurableOf(idx IndexName) (DurableName, bool) {
	if s.IsNull() || s.m == nil {
		return "", false
	}
	d, ok := s.m.reverse[idx]
	return d, ok
}

// IndexOf returns the index name a durable name maps to directly, without
// attempting combo-name decoding (see IndexName for the recovery path).
func (s *Shape) IndexOf(d DurableName) (IndexName, bool) {
	if s.IsNull() || s.m == nil || d.IsZero() {
		return IndexName{}, false
	}
	idx, ok := s.m.forward[d]
	return idx, ok
}

// ElementKind returns the element kind recorded for a durable name, or
// KindNone if the name is not mapped here.
func (s *Shape) ElementKind(d DurableName) Kind {
	if s.IsNull() || s.m == nil {
		return KindNone
	}
	return s.m.kinds[d]
}

// SetElementName maps a durable name onto an index name and records its
// generation. Within one map a durable name maps to at most one index
// name; remapping an existing name is a no-op returning the stored index.
func (s *Shape) SetElementName(idx IndexName, d DurableName, gen Generation) IndexName {
	if s.IsNull() || idx.IsZero() || d.IsZero() {
		return IndexName{}
	}
	if s.m != nil {
		if prev, ok := s.m.forward[d]; ok {
			return prev
		}
	}
	m := s.edit()
	m.forward[d] = idx
	m.reverse[idx] = d
	m.kinds[d] = idx.Kind
	if gen.Tag != 0 || len(gen.Ancestors) > 0 {
		m.history[d] = gen
	}
	return idx
}

// HistoryStep returns a durable name's one-step generation record: the
// original name the walk continues from, intermediate names consumed along
// the way, and the generator tag. Tag zero means origin reached.
func (s *Shape) HistoryStep(d DurableName) (original DurableName, intermediates []DurableName, tag int64) {
	if s.IsNull() || s.m == nil {
		return "", nil, 0
	}
	gen, ok := s.m.history[d]
	if !ok || gen.Tag == 0 {
		return "", nil, 0
	}
	if len(gen.Ancestors) == 0 {
		return "", nil, gen.Tag
	}
	return gen.Ancestors[0], gen.Ancestors[1:], gen.Tag
}

// Generation returns the raw generation record of a durable name.
func (s *Shape) Generation(d DurableName) (Generation, bool) {
	if s.IsNull() || s.m == nil {
		return Generation{}, false
	}
	gen, ok := s.m.history[d]
	return gen, ok
}

// CacheRelatedElements stores a related-elements query result inside the
// element map. The cache dies with the map when the shape is rebuilt.
func (s *Shape) CacheRelatedElements(d DurableName, sameType bool, elems []MappedElement) {
	if s.IsNull() {
		return
	}
	m := s.edit()
	m.related[relKey{name: d, sameType: sameType}] = elems
}

// RelatedElementsCached returns a previously cached related-elements
// result.
func (s *Shape) RelatedElementsCached(d DurableName, sameType bool) ([]MappedElement, bool) {
	if s.IsNull() || s.m == nil {
		return nil, false
	}
	elems, ok := s.m.related[relKey{name: d, sameType: sameType}]
	return elems, ok
}

// OpRetag marks generation records written by RetagElementMap.
const OpRetag = "TAG"

// RetagElementMap rebinds the shape to a new owning tag and hasher, as
// needed when a shape crosses a document or link boundary. Every mapped
// name is wrapped in a retag step so lineage still points at the previous
// owner.
func (s *Shape) RetagElementMap(tag int64, h *hasher.Hasher) {
	if s.IsNull() {
		return
	}
	oldTag := s.Tag
	old := s.m
	s.Tag = tag
	s.Hasher = h
	s.m = NewElementMap()
	if old == nil {
		return
	}
	if old.refs > 1 {
		old.refs--
	}
	for d, idx := range old.forward {
		wrapped := DurableName(s.shorten(string(d) + opSep + OpRetag + opArgSep + strconv.FormatInt(oldTag, 10)))
		s.m.forward[wrapped] = idx
		s.m.reverse[idx] = wrapped
		s.m.kinds[wrapped] = idx.Kind
		s.m.history[wrapped] = Generation{Tag: oldTag, Op: OpRetag, Ancestors: []DurableName{d}}
	}
}

func (s *Shape) shorten(name string) string {
	return s.Hasher.Shorten(name, s.HashThreshold)
}

// Shorten interns a freshly built name text through the document hasher
// when it exceeds the shape's threshold.
func (s *Shape) Shorten(name string) DurableName {
	return DurableName(s.shorten(name))
}

// expand resolves interned #<id> handles back to full name text.
func (s *Shape) expand(d DurableName) (string, bool) {
	if !hasher.IsHandle(string(d)) {
		return string(d), true
	}
	if s.Hasher == nil {
		return "", false
	}
	full, err := s.Hasher.Expand(string(d))
	if err != nil {
		return "", false
	}
	return full, true
}
