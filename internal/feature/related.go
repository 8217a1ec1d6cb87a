package feature

import (
	"sort"

	"topo/internal/document"
	"topo/internal/shape"
)

// RelatedElements finds, on an object's current shape, the mapped elements
// sharing the deepest ancestor lineage with the referenced element:
// candidates are scored by the length of the generation-chain suffix they
// share with the reference, and only the deepest-sharing group is kept. A
// fillet splitting one edge into two relates both successors to the old
// edge reference, which is what the query exists for.
//
// With sameType set only elements of the referenced kind are returned.
// Results are memoized inside the shape's element map when withCache is
// set; the memo dies with the map on the next rebuild.
func (e *Engine) RelatedElements(obj *document.Object, ref string, sameType, withCache bool) ([]shape.MappedElement, error) {
	d, s, owner, err := e.lenientDurable(obj, ref)
	if err != nil {
		return nil, err
	}
	if withCache {
		if cached, ok := s.RelatedElementsCached(d, sameType); ok {
			return cached, nil
		}
	}

	// The queried kind is unknowable for a stale name; sameType then
	// filters nothing rather than everything.
	kind := s.ElementKind(d)
	if kind == shape.KindNone {
		if idx, ok := s.IndexOf(d); ok {
			kind = idx.Kind
		}
	}
	if kind == shape.KindNone {
		sameType = false
	}

	// A directly resolving reference relates at least to itself.
	var out []shape.MappedElement
	if idx, ok := s.IndexOf(d); ok {
		out = append(out, shape.MappedElement{Name: d, Index: idx})
	}

	out = append(out, e.lineageMatches(owner, s, d, kind, sameType)...)
	sortMapped(out)

	if withCache {
		s.CacheRelatedElements(d, sameType, out)
	}
	return out, nil
}

// lenientDurable extracts the durable name behind a reference without
// requiring it to resolve on the current shape. A stale durable reference
// is exactly what the related-elements query is for.
func (e *Engine) lenientDurable(obj *document.Object, ref string) (shape.DurableName, *shape.Shape, *document.Object, error) {
	owner, elem, err := document.ResolveSubname(obj, ref)
	if err != nil {
		return "", nil, nil, err
	}
	s, owner, err := e.TopoShape(owner, "")
	if err != nil {
		return "", nil, owner, err
	}
	if shape.IsMappedName(elem) {
		return shape.StripMappedRef(elem), s, owner, nil
	}
	d, _, _, err := e.resolveDurable(owner, elem)
	return d, s, owner, err
}

// lineageMatches scans every mapped name of the shape, scores each
// candidate by the length of the ancestor-chain suffix it shares with the
// queried name, and keeps the deepest-sharing group. The queried name
// itself is excluded.
func (e *Engine) lineageMatches(owner *document.Object, s *shape.Shape, self shape.DurableName, kind shape.Kind, sameType bool) []shape.MappedElement {
	qc := e.chainNames(owner, s, self)
	var out []shape.MappedElement
	best := 0
	for _, n := range s.Map().Names() {
		if n == self {
			continue
		}
		idx, ok := s.IndexOf(n)
		if !ok {
			continue
		}
		if sameType && idx.Kind != kind {
			continue
		}
		score := commonSuffixLen(qc, e.chainNames(owner, s, n))
		if score == 0 || score < best {
			continue
		}
		if score > best {
			best = score
			out = out[:0]
		}
		out = append(out, shape.MappedElement{Name: n, Index: idx})
	}
	return out
}

// chainNames collects a name's full lineage, newest first, ending at the
// origin. The walk stops where history does: at tag zero, a vanished
// feature, or a cycle.
func (e *Engine) chainNames(owner *document.Object, s *shape.Shape, d shape.DurableName) []shape.DurableName {
	chain := []shape.DurableName{d}
	visited := make(map[visitKey]bool)
	for {
		orig, _, tag := s.HistoryStep(d)
		if tag == 0 || orig.IsZero() {
			return chain
		}
		if tag < 0 {
			tag = -tag
		}
		key := visitKey{doc: owner.Document().ID(), tag: tag}
		if visited[key] {
			return chain
		}
		visited[key] = true
		up := owner.Document().ObjectByTag(tag)
		if up == nil {
			return chain
		}
		target := up.LinkedObject(e.maxLinkDepth)
		upShape := target.Shape()
		if upShape.IsNull() {
			return chain
		}
		chain = append(chain, orig)
		owner, s, d = target, upShape, orig
	}
}

// commonSuffixLen counts how many trailing entries two chains share.
func commonSuffixLen(a, b []shape.DurableName) int {
	n := 0
	for n < len(a) && n < len(b) && a[len(a)-1-n] == b[len(b)-1-n] {
		n++
	}
	return n
}

// sortMapped orders results by (kind, ordinal).
func sortMapped(elems []shape.MappedElement) {
	sort.Slice(elems, func(i, j int) bool {
		if elems[i].Index.Kind != elems[j].Index.Kind {
			return elems[i].Index.Kind < elems[j].Index.Kind
		}
		return elems[i].Index.Index < elems[j].Index.Index
	})
}
