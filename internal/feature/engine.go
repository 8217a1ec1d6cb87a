// Package feature is the naming engine proper: it runs feature execute
// steps against the shape-transform oracle, overlays durable names onto
// fresh kernel indices, and answers the public name, history,
// correspondence and related-element queries.
package feature

import (
	"fmt"

	"topo/internal/config"
	"topo/internal/document"
	"topo/internal/errors"
	"topo/internal/kernel"
	"topo/internal/logging"
	"topo/internal/shape"
)

// SearchStats counts which correspondence-search stages ran, mostly so
// tests can assert the cheap paths short-circuit the expensive ones.
type SearchStats struct {
	ShortcutHits      int
	GeometricSearches int
	ExhaustiveScans   int
}

// Engine wires the oracle, the shape cache and the documents together.
// It is single-threaded: all queries and the recompute pipeline run on
// one goroutine.
type Engine struct {
	oracle kernel.Oracle
	cache  *Cache
	logger *logging.Logger

	hashThreshold   int
	extraTagChanges int
	maxLinkDepth    int

	stats SearchStats
}

// NewEngine creates an engine. cache may be nil, in which case shape
// queries always recompute.
func NewEngine(oracle kernel.Oracle, cache *Cache, cfg *config.Config, logger *logging.Logger) *Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Engine{
		oracle:          oracle,
		cache:           cache,
		logger:          logger,
		hashThreshold:   cfg.Naming.HashThreshold,
		extraTagChanges: cfg.Trace.ExtraTagChanges,
		maxLinkDepth:    cfg.Trace.MaxLinkDepth,
	}
}

// Stats returns the correspondence-search stage counters.
func (e *Engine) Stats() SearchStats { return e.stats }

// ResetStats clears the stage counters.
func (e *Engine) ResetStats() { e.stats = SearchStats{} }

// Cache returns the engine's shape cache, possibly nil.
func (e *Engine) Cache() *Cache { return e.cache }

// Execute runs one feature's shape-producing step and overlays durable
// names onto the result, keyed by the feature's tag. It implements
// document.Executor.
func (e *Engine) Execute(o *document.Object) error {
	doc := o.Document()
	if doc == nil {
		return errors.Newf(errors.ObjectDeleted, "cannot execute deleted object")
	}

	inShapes := make([]*shape.Shape, len(o.Inputs))
	inTopos := make([]*shape.Topology, len(o.Inputs))
	for i, in := range o.Inputs {
		s, _, err := e.TopoShape(in, "")
		if err != nil {
			return fmt.Errorf("input %s: %w", in.Name(), err)
		}
		if s.IsNull() {
			return errors.Newf(errors.ElementNotFound, "input %s has no shape", in.Name())
		}
		inShapes[i] = s
		inTopos[i] = s.Topo
	}

	res, err := e.oracle.Execute(o.Op, inTopos)
	if err != nil {
		// Kernel exceptions propagate out of execute steps; the recompute
		// pipeline reports them per feature.
		return errors.New(errors.KernelFailure, fmt.Sprintf("%s failed", o.Op.Code), err)
	}

	s := shape.New(res.Topo, o.Tag(), doc.Hasher())
	s.HashThreshold = e.hashThreshold
	s.Scaled = res.Scaled

	if len(o.Inputs) == 0 {
		e.nameOrigin(s, o.Op.Code)
	} else {
		e.overlayNames(s, o.Op.Code, res, inShapes)
	}

	o.SetShape(s)
	if e.cache != nil {
		e.cache.InvalidateObject(o)
	}
	e.logger.Debug("executed feature", map[string]interface{}{
		"document": doc.Name(),
		"object":   o.Name(),
		"op":       o.Op.Code,
		"mapped":   s.Map().Len(),
	})
	return nil
}

// nameOrigin assigns atomic durable names to every low-level element of a
// primitive shape. These elements have no ancestry: their names derive
// from the primitive's own stable indices and carry no generation record.
func (e *Engine) nameOrigin(s *shape.Shape, op string) {
	for _, kind := range []shape.Kind{shape.KindVertex, shape.KindEdge, shape.KindFace} {
		for i := 1; i <= s.Topo.Count(kind); i++ {
			idx := shape.IndexName{Kind: kind, Index: i}
			d := s.Shorten(shape.DerivedName(shape.DurableName(idx.String()), op, 0))
			s.SetElementName(idx, d, shape.Generation{})
		}
	}
}
