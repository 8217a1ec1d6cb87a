package feature

import (
	"topo/internal/document"
	"topo/internal/errors"
	"topo/internal/shape"
)

// TopoShape returns the shape to resolve element references of (obj,
// subname) against, together with the owning object the subname walk ended
// on. Link proxies are seen through up to the configured depth; a shape
// pulled across a link or document boundary is retagged so its lineage
// records the crossing. Results are cached per queried (object, subname)
// pair, a hit skipping the subname walk; scaled shapes force the cache
// write since they cannot be replayed from the link target.
func (e *Engine) TopoShape(obj *document.Object, subname string) (*shape.Shape, *document.Object, error) {
	if obj.Deleted() {
		return nil, nil, errors.Newf(errors.ObjectDeleted, "object is deleted")
	}
	if e.cache != nil {
		if s, owner, ok := e.cache.Get(obj, subname); ok {
			return s, owner, nil
		}
	}
	owner, _, err := document.ResolveSubname(obj, subname)
	if err != nil {
		return nil, nil, err
	}

	linked := owner.LinkedObject(e.maxLinkDepth)
	if linked.Deleted() {
		return nil, owner, errors.Newf(errors.ObjectNotFound, "link target of %q is gone", owner.Name())
	}
	if linked.Link != nil {
		// LinkedObject returned the original: the chain never terminated.
		return nil, owner, errors.Newf(errors.TraceTooDeep, "link chain from %q exceeds depth %d", owner.Name(), e.maxLinkDepth)
	}
	base := linked.Shape()
	if base.IsNull() {
		return nil, owner, errors.Newf(errors.ElementNotFound, "object %q has no shape", linked.Name())
	}

	crossed := owner != linked
	s := base
	if crossed {
		s = base.Share()
		s.RetagElementMap(owner.Tag(), owner.Document().Hasher())
	}
	if e.cache != nil && crossed {
		if s.Scaled {
			e.cache.SetForced(obj, subname, owner, s)
		} else {
			e.cache.Set(obj, subname, owner, s)
		}
	}
	return s, owner, nil
}
