package feature

import (
	"sort"

	"topo/internal/document"
	"topo/internal/errors"
	"topo/internal/shape"
)

// ElementFromSource finds, on obj's shape, the element(s) corresponding to
// an element referenced on src. Three stages run in cost order, each only
// when the previous found nothing:
//
//  1. tag shortcut: the source's durable name resolves directly on the
//     target shape (combo re-identification included), the sub-shape
//     counts of the two shapes agree, and the name's lineage on the
//     target actually passes through src;
//  2. geometric search: candidates of the same kind whose congruence
//     signature the oracle accepts; a kernel failure on one candidate
//     skips that candidate, never the stage;
//  3. exhaustive scan: every mapped target name of the same kind whose
//     lineage passes through src at the referenced element, within the
//     configured number of generation steps beyond the source's own chain.
//
// Durable names are content-derived, so an unrelated feature can hold a
// byte-identical name; only the lineage walk ties a candidate back to src
// itself. With single set, at most the first match is returned. No
// correspondence is an empty result, not an error.
func (e *Engine) ElementFromSource(obj *document.Object, subname string, src *document.Object, srcSub string, single bool) ([]shape.MappedElement, error) {
	dSrc, srcShape, srcOwner, err := e.resolveDurable(src, srcSub)
	if err != nil {
		return nil, err
	}
	target, tgtOwner, err := e.TopoShape(obj, subname)
	if err != nil {
		return nil, err
	}

	kind := srcShape.ElementKind(dSrc)
	srcIdx, hasIdx := srcShape.IndexOf(dSrc)
	if kind == shape.KindNone && hasIdx {
		kind = srcIdx.Kind
	}
	if kind == shape.KindNone {
		return nil, errors.Newf(errors.ElementNotFound, "cannot determine kind of %q", srcSub)
	}

	budget := e.chainLength(srcOwner, srcShape, dSrc) + e.extraTagChanges

	// Stage 1: the durable name still means something on the target.
	if idx, ok := target.IndexName(dSrc); ok {
		if target.Topo.Count(kind) == srcShape.Topo.Count(kind) &&
			e.lineageThrough(tgtOwner, target, dSrc, srcOwner, dSrc, budget) {
			e.stats.ShortcutHits++
			return []shape.MappedElement{{Name: dSrc, Index: idx}}, nil
		}
	}

	// Stage 2: geometric congruence against same-kind candidates.
	if hasIdx {
		if matches := e.congruentElements(srcShape, srcIdx, target, single); len(matches) > 0 {
			return matches, nil
		}
	}

	// Stage 3: exhaustive same-kind lineage scan.
	e.stats.ExhaustiveScans++
	names := target.Map().Names()
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	out := []shape.MappedElement{}
	for _, n := range names {
		if target.ElementKind(n) != kind {
			continue
		}
		idx, ok := target.IndexOf(n)
		if !ok {
			continue
		}
		if !e.lineageThrough(tgtOwner, target, n, srcOwner, dSrc, budget) {
			continue
		}
		out = append(out, shape.MappedElement{Name: n, Index: idx})
		if single {
			break
		}
	}
	return out, nil
}

// lineageThrough reports whether the lineage of name d on s reaches src
// with ancestor name want at the crossing, within at most maxSteps
// generation steps. A name held by src itself matches directly.
func (e *Engine) lineageThrough(owner *document.Object, s *shape.Shape, d shape.DurableName, src *document.Object, want shape.DurableName, maxSteps int) bool {
	if owner == src && d == want {
		return true
	}
	visited := make(map[visitKey]bool)
	for steps := 0; steps < maxSteps; steps++ {
		orig, _, tag := s.HistoryStep(d)
		if tag == 0 || orig.IsZero() {
			return false
		}
		abs := tag
		if abs < 0 {
			abs = -abs
		}
		key := visitKey{doc: owner.Document().ID(), tag: abs}
		if visited[key] {
			return false
		}
		visited[key] = true
		up := owner.Document().ObjectByTag(abs)
		if up == nil {
			return false
		}
		next := up.LinkedObject(e.maxLinkDepth)
		if (up == src || next == src) && orig == want {
			return true
		}
		upShape := next.Shape()
		if upShape.IsNull() {
			return false
		}
		owner, s, d = next, upShape, orig
	}
	return false
}

// congruentElements asks the oracle which same-kind elements of target are
// geometrically congruent with the source element. Per-candidate kernel
// failures skip that candidate only.
func (e *Engine) congruentElements(srcShape *shape.Shape, srcIdx shape.IndexName, target *shape.Shape, single bool) []shape.MappedElement {
	srcElem, ok := srcShape.Topo.Element(srcIdx)
	if !ok {
		return nil
	}
	e.stats.GeometricSearches++
	var out []shape.MappedElement
	for i := 1; i <= target.Topo.Count(srcIdx.Kind); i++ {
		idx := shape.IndexName{Kind: srcIdx.Kind, Index: i}
		cand, _ := target.Topo.Element(idx)
		same, err := e.oracle.Congruent(srcElem, cand)
		if err != nil {
			e.logger.Debug("congruence check failed, skipping candidate", map[string]interface{}{
				"candidate": idx.String(),
				"error":     err.Error(),
			})
			continue
		}
		if !same {
			continue
		}
		me := target.ElementName(idx)
		if me.Index.IsZero() {
			me = shape.MappedElement{Index: idx}
		}
		out = append(out, me)
		if single {
			break
		}
	}
	return out
}
