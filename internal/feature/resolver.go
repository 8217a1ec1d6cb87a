package feature

import (
	"topo/internal/document"
	"topo/internal/errors"
	"topo/internal/shape"
)

// ElementName resolves a textual element reference on an object to the
// durable/index name pair on the object's current shape. The reference is
// either an index name ("Face3", datum aliases included), a durable-name
// reference (leading ";"), or a dotted subname path ending in one of those.
//
// Index references synthesize combo names on first encounter for
// high-level kinds. Durable references are re-identified against the
// current topology, decoding combo names when the direct mapping is gone.
func (e *Engine) ElementName(obj *document.Object, ref string) (shape.MappedElement, *document.Object, error) {
	owner, elem, err := document.ResolveSubname(obj, ref)
	if err != nil {
		return shape.MappedElement{}, nil, err
	}
	if elem == "" {
		return shape.MappedElement{}, owner, errors.Newf(errors.ElementNotFound, "no element reference in %q", ref)
	}
	s, owner, err := e.TopoShape(owner, "")
	if err != nil {
		return shape.MappedElement{}, owner, err
	}

	if shape.IsMappedName(elem) {
		d := shape.StripMappedRef(elem)
		idx, ok := s.IndexName(d)
		if !ok {
			return shape.MappedElement{Name: d}, owner,
				errors.Newf(errors.ElementNotFound, "durable name %q does not resolve on %q", d, owner.Name())
		}
		return shape.MappedElement{Name: d, Index: idx}, owner, nil
	}

	idx, ok := shape.ParseIndexName(shape.TranslateDatum(elem))
	if !ok {
		return shape.MappedElement{}, owner, errors.Newf(errors.ElementNotFound, "malformed element reference %q", elem)
	}
	if idx.Index > s.Topo.Count(idx.Kind) {
		return shape.MappedElement{}, owner,
			errors.Newf(errors.ElementNotFound, "%s out of range on %q", elem, owner.Name())
	}
	return s.ElementName(idx), owner, nil
}

// resolveDurable resolves a reference all the way to a durable name plus
// the shape it lives on, for the history and correspondence queries.
func (e *Engine) resolveDurable(obj *document.Object, ref string) (shape.DurableName, *shape.Shape, *document.Object, error) {
	me, owner, err := e.ElementName(obj, ref)
	if err != nil {
		return "", nil, owner, err
	}
	if me.Name.IsZero() {
		return "", nil, owner, errors.Newf(errors.ElementNotFound, "element %q of %q has no durable name", ref, owner.Name())
	}
	s, owner, err := e.TopoShape(owner, "")
	if err != nil {
		return "", nil, owner, err
	}
	return me.Name, s, owner, nil
}
