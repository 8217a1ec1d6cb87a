package feature

import (
	"github.com/google/uuid"

	"topo/internal/document"
	"topo/internal/shape"
)

// HistoryItem is one step of an element's lineage, newest first. The first
// item is the queried element itself; each following item is the ancestor
// name attributed to the upstream feature that produced it.
type HistoryItem struct {
	// Object is the feature the name belongs to, nil when the tag no
	// longer resolves.
	Object *document.Object `json:"-"`

	// Tag is the generation tag that led here: magnitude identifies the
	// feature, a negative sign means the element was carried through
	// unchanged. Zero on the first item.
	Tag int64 `json:"tag"`

	// Element is the durable name at this stage.
	Element shape.DurableName `json:"element"`

	// Index is the name resolved against that feature's current shape,
	// zero when it no longer resolves there.
	Index shape.IndexName `json:"-"`

	// Intermediates are ancestor names consumed alongside Element by the
	// step that produced the previous item.
	Intermediates []shape.DurableName `json:"intermediates,omitempty"`

	// LineageLost marks a truncated walk: the recorded tag exists but its
	// feature is gone, or the lineage loops.
	LineageLost bool `json:"lineageLost,omitempty"`
}

type visitKey struct {
	doc uuid.UUID
	tag int64
}

// ElementHistory traces a durable name back through the features that
// produced it. With recursive set the walk follows each ancestor into the
// upstream feature's own element map; otherwise it stops after one step.
// With sameType set the walk stops when the ancestor is of a different
// element kind than the queried element.
//
// The walk terminates at an origin name (generation tag zero), at a
// feature that no longer exists, or when a lineage cycle is detected;
// the last two append a final item marked LineageLost.
func (e *Engine) ElementHistory(obj *document.Object, ref string, recursive, sameType bool) ([]HistoryItem, error) {
	d, s, owner, err := e.resolveDurable(obj, ref)
	if err != nil {
		return nil, err
	}
	kind := s.ElementKind(d)
	if kind == shape.KindNone {
		if idx, ok := s.IndexOf(d); ok {
			kind = idx.Kind
		}
	}

	items := []HistoryItem{e.historyItem(owner, 0, s, d, nil)}
	visited := make(map[visitKey]bool)
	cur, curShape := owner, s

	for {
		orig, inter, tag := curShape.HistoryStep(d)
		if tag == 0 {
			return items, nil
		}
		abs := tag
		if abs < 0 {
			abs = -abs
		}
		key := visitKey{doc: cur.Document().ID(), tag: abs}
		if visited[key] {
			e.logger.Warn("lineage cycle detected", map[string]interface{}{
				"document": cur.Document().Name(),
				"tag":      abs,
				"element":  string(d),
			})
			items[len(items)-1].LineageLost = true
			return items, nil
		}
		visited[key] = true

		up := cur.Document().ObjectByTag(abs)
		if up == nil || orig.IsZero() {
			items = append(items, HistoryItem{Object: up, Tag: tag, Element: orig, Intermediates: inter, LineageLost: true})
			return items, nil
		}
		target := up.LinkedObject(e.maxLinkDepth)
		upShape := target.Shape()
		if sameType && upShape != nil {
			upKind := upShape.ElementKind(orig)
			if upKind != shape.KindNone && upKind != kind {
				return items, nil
			}
		}
		items = append(items, e.historyItem(target, tag, upShape, orig, inter))
		if !recursive || upShape.IsNull() {
			return items, nil
		}
		cur, curShape, d = target, upShape, orig
	}
}

func (e *Engine) historyItem(o *document.Object, tag int64, s *shape.Shape, d shape.DurableName, inter []shape.DurableName) HistoryItem {
	item := HistoryItem{Object: o, Tag: tag, Element: d, Intermediates: inter}
	if !s.IsNull() {
		if idx, ok := s.IndexName(d); ok {
			item.Index = idx
		}
	}
	return item
}

// chainLength counts the generation steps from a name to its origin,
// bounded by the cycle guard.
func (e *Engine) chainLength(owner *document.Object, s *shape.Shape, d shape.DurableName) int {
	visited := make(map[visitKey]bool)
	n := 0
	for {
		orig, _, tag := s.HistoryStep(d)
		if tag == 0 || orig.IsZero() {
			return n
		}
		if tag < 0 {
			tag = -tag
		}
		key := visitKey{doc: owner.Document().ID(), tag: tag}
		if visited[key] {
			return n
		}
		visited[key] = true
		up := owner.Document().ObjectByTag(tag)
		if up == nil {
			return n
		}
		n++
		target := up.LinkedObject(e.maxLinkDepth)
		upShape := target.Shape()
		if upShape.IsNull() {
			return n
		}
		owner, s, d = target, upShape, orig
	}
}
