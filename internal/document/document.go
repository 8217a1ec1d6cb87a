// Package document implements the feature graph the naming engine runs
// against: documents, feature objects with stable integer tags, link
// proxies, and the strictly ordered single-writer recompute pipeline.
package document

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"topo/internal/errors"
	"topo/internal/hasher"
	"topo/internal/kernel"
	"topo/internal/logging"
	"topo/internal/shape"
)

// Object is one feature in a document. It either carries a shape-producing
// operation or is a transparent link proxy for another object, possibly in
// another document.
type Object struct {
	doc     *Document
	tag     int64
	name    string
	deleted bool

	// Op is the feature's shape-producing step, ignored for links.
	Op kernel.Operation

	// Inputs are the upstream dependencies, in operation-argument order.
	Inputs []*Object

	// Link makes this object a transparent proxy of another object's
	// shape. A linked object has no operation of its own.
	Link *Object

	shape   *shape.Shape
	touched bool

	// ExecError records the last recompute failure, empty when the last
	// recompute succeeded.
	ExecError string
}

// Tag returns the feature's stable per-document integer tag.
func (o *Object) Tag() int64 { return o.tag }

// Name returns the feature's document-unique name.
func (o *Object) Name() string { return o.name }

// Document returns the owning document, nil after deletion.
func (o *Object) Document() *Document {
	if o == nil || o.deleted {
		return nil
	}
	return o.doc
}

// Deleted reports whether the object was removed from its document.
func (o *Object) Deleted() bool { return o == nil || o.deleted }

// Shape returns the object's current shape, nil before the first
// recompute.
func (o *Object) Shape() *shape.Shape {
	if o == nil {
		return nil
	}
	return o.shape
}

// SetShape installs a freshly built shape. Called by the executor from
// within the recompute pipeline.
func (o *Object) SetShape(s *shape.Shape) { o.shape = s }

// Touch marks the object and all its dependents for recompute.
func (o *Object) Touch() {
	if o == nil || o.deleted {
		return
	}
	o.touched = true
	o.doc.notifyChanged(o)
	for _, dep := range o.doc.dependentsOf(o) {
		if !dep.touched {
			dep.Touch()
		}
	}
}

// Touched reports whether the object awaits recompute.
func (o *Object) Touched() bool { return o.touched }

// PurgeTouched clears the recompute mark without running the executor, as
// done after a restore installed a persisted shape.
func (o *Object) PurgeTouched() {
	if o != nil {
		o.touched = false
	}
}

// LinkedObject resolves through up to depth transparent link proxies and
// returns the final target. A non-link object returns itself. The original
// object is returned when the chain exceeds depth, guarding against link
// loops.
func (o *Object) LinkedObject(depth int) *Object {
	cur := o
	for i := 0; i < depth; i++ {
		if cur == nil || cur.Link == nil {
			return cur
		}
		cur = cur.Link
	}
	if cur != nil && cur.Link != nil {
		return o
	}
	return cur
}

// Document is one feature graph with its own tag namespace and string
// hasher.
type Document struct {
	id     uuid.UUID
	name   string
	hasher *hasher.Hasher
	logger *logging.Logger

	objects map[int64]*Object
	byName  map[string]*Object
	order   []int64 // insertion order, drives recompute ordering
	nextTag int64

	// Restoring suppresses downstream cache writes while a bulk restore
	// replays the document.
	Restoring bool

	onChange []func(*Object)
}

// New creates an empty document.
func New(name string, logger *logging.Logger) *Document {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Document{
		id:      uuid.New(),
		name:    name,
		hasher:  hasher.New(),
		logger:  logger,
		objects: make(map[int64]*Object),
		byName:  make(map[string]*Object),
		nextTag: 1,
	}
}

// Restore recreates a document with a known identity, for the store layer.
func Restore(id uuid.UUID, name string, logger *logging.Logger) *Document {
	d := New(name, logger)
	d.id = id
	return d
}

// ID returns the document identity.
func (d *Document) ID() uuid.UUID { return d.id }

// Name returns the document name.
func (d *Document) Name() string { return d.name }

// Hasher returns the document's shared string hasher.
func (d *Document) Hasher() *hasher.Hasher { return d.hasher }

// AddObject creates a feature object with the next free tag.
func (d *Document) AddObject(name string, op kernel.Operation, inputs ...*Object) (*Object, error) {
	return d.addObject(name, 0, op, nil, inputs)
}

// AddLink creates a transparent link proxy for target.
func (d *Document) AddLink(name string, target *Object) (*Object, error) {
	return d.addObject(name, 0, kernel.Operation{}, target, nil)
}

// AddObjectWithTag recreates an object under a persisted tag, for the
// store layer.
func (d *Document) AddObjectWithTag(name string, tag int64, op kernel.Operation, inputs ...*Object) (*Object, error) {
	return d.addObject(name, tag, op, nil, inputs)
}

// AddLinkWithTag recreates a link proxy under a persisted tag.
func (d *Document) AddLinkWithTag(name string, tag int64, target *Object) (*Object, error) {
	return d.addObject(name, tag, kernel.Operation{}, target, nil)
}

func (d *Document) addObject(name string, tag int64, op kernel.Operation, link *Object, inputs []*Object) (*Object, error) {
	if _, exists := d.byName[name]; exists {
		return nil, errors.Newf(errors.InternalError, "object name %q already used in document %q", name, d.name)
	}
	if tag == 0 {
		tag = d.nextTag
	}
	if _, exists := d.objects[tag]; exists {
		return nil, errors.Newf(errors.InternalError, "tag %d already used in document %q", tag, d.name)
	}
	if tag >= d.nextTag {
		d.nextTag = tag + 1
	}
	o := &Object{doc: d, tag: tag, name: name, Op: op, Inputs: inputs, Link: link, touched: true}
	d.objects[tag] = o
	d.byName[name] = o
	d.order = append(d.order, tag)
	return o, nil
}

// Remove deletes an object. Its tag is never reused within this document,
// but history records still carry it and report lineage lost.
func (d *Document) Remove(o *Object) {
	if o == nil || o.doc != d || o.deleted {
		return
	}
	o.deleted = true
	delete(d.objects, o.tag)
	delete(d.byName, o.name)
	for i, t := range d.order {
		if t == o.tag {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
	d.notifyChanged(o)
}

// ObjectByTag resolves a feature tag, the sign being irrelevant. Deleted
// tags resolve to nil.
func (d *Document) ObjectByTag(tag int64) *Object {
	if tag < 0 {
		tag = -tag
	}
	return d.objects[tag]
}

// ObjectByName resolves an object name.
func (d *Document) ObjectByName(name string) *Object {
	return d.byName[name]
}

// Objects returns all live objects in insertion order.
func (d *Document) Objects() []*Object {
	out := make([]*Object, 0, len(d.order))
	for _, tag := range d.order {
		out = append(out, d.objects[tag])
	}
	return out
}

// OnChange registers a change-notification callback, fired when an object
// is touched or removed. The shape cache subscribes here.
func (d *Document) OnChange(fn func(*Object)) {
	d.onChange = append(d.onChange, fn)
}

func (d *Document) notifyChanged(o *Object) {
	for _, fn := range d.onChange {
		fn(o)
	}
}

func (d *Document) dependentsOf(o *Object) []*Object {
	var out []*Object
	for _, tag := range d.order {
		cand := d.objects[tag]
		for _, in := range cand.Inputs {
			if in == o {
				out = append(out, cand)
				break
			}
		}
		if cand.Link == o {
			out = append(out, cand)
		}
	}
	return out
}

// Executor runs one feature's execute step, producing its shape and
// overlaying durable names keyed by the feature's tag.
type Executor interface {
	Execute(o *Object) error
}

// Recompute runs the execute step of every touched object, upstream before
// downstream. The pipeline is strictly ordered and single-writer: no two
// execute steps ever run concurrently on one document. A failing step
// marks its object and skips the object's dependents, and the first error
// is returned after the sweep.
func (d *Document) Recompute(exec Executor) error {
	sorted, err := d.topoOrder()
	if err != nil {
		return err
	}
	var firstErr error
	failed := make(map[*Object]bool)
	for _, o := range sorted {
		if o.Link != nil {
			o.touched = false
			continue
		}
		if !o.touched {
			continue
		}
		skip := false
		for _, in := range o.Inputs {
			if failed[in] {
				skip = true
				break
			}
		}
		if skip {
			failed[o] = true
			o.ExecError = "skipped: upstream recompute failed"
			continue
		}
		if err := exec.Execute(o); err != nil {
			o.ExecError = err.Error()
			failed[o] = true
			d.logger.Error("recompute failed", map[string]interface{}{
				"document": d.name,
				"object":   o.name,
				"error":    err.Error(),
			})
			if firstErr == nil {
				firstErr = fmt.Errorf("recompute of %s: %w", o.name, err)
			}
			continue
		}
		o.ExecError = ""
		o.touched = false
	}
	return firstErr
}

// topoOrder sorts live objects so inputs precede dependents, breaking ties
// by insertion order.
func (d *Document) topoOrder() ([]*Object, error) {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[*Object]int)
	var out []*Object
	var visit func(o *Object) error
	visit = func(o *Object) error {
		switch state[o] {
		case done:
			return nil
		case visiting:
			return errors.Newf(errors.DependencyCycle, "dependency cycle through %q", o.name)
		}
		state[o] = visiting
		deps := append([]*Object(nil), o.Inputs...)
		if o.Link != nil && o.Link.doc == d {
			deps = append(deps, o.Link)
		}
		sort.SliceStable(deps, func(i, j int) bool { return deps[i].tag < deps[j].tag })
		for _, in := range deps {
			if in.doc == d && !in.deleted {
				if err := visit(in); err != nil {
					return err
				}
			}
		}
		state[o] = done
		out = append(out, o)
		return nil
	}
	for _, tag := range d.order {
		if err := visit(d.objects[tag]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ResolveSubname walks a dotted subname path ("Pad.Fillet.Face3") from obj
// to the owning object, returning it and the trailing element reference
// (possibly empty). Path segments name objects; the final segment is an
// element reference when it parses as one or is a durable-name reference.
func ResolveSubname(obj *Object, subname string) (*Object, string, error) {
	subname = strings.TrimPrefix(subname, ".")
	if subname == "" {
		return obj, "", nil
	}
	if shape.IsMappedName(subname) {
		return obj, subname, nil
	}
	parts := strings.Split(subname, ".")
	owner := obj
	for i, part := range parts {
		last := i == len(parts)-1
		if last {
			if _, ok := shape.ParseIndexName(shape.TranslateDatum(part)); ok {
				return owner, part, nil
			}
		}
		next := owner.Document().ObjectByName(part)
		if next == nil {
			if last {
				return owner, part, nil
			}
			return nil, "", errors.Newf(errors.ObjectNotFound, "no object %q under %q", part, owner.Name())
		}
		owner = next
	}
	return owner, "", nil
}
