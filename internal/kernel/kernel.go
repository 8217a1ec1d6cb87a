// Package kernel defines the abstract shape-transform oracle interface.
//
// The real geometry kernel is an external collaborator: given input shapes
// it produces an output shape plus a generator-to-result correspondence.
// The naming engine consumes only that contract; the synthetic in-process
// implementation exists for the CLI and tests and is combinatorial, not
// geometric.
package kernel

import (
	"topo/internal/shape"
)

// Operation is one feature's shape-producing step.
type Operation struct {
	// Code is the operation code recorded in generation records, e.g.
	// OpBox or OpFillet.
	Code string `json:"code"`

	// Params are operation-specific parameters.
	Params map[string]interface{} `json:"params,omitempty"`
}

// Operation codes understood by the synthetic kernel.
const (
	OpBox       = "BOX" // primitive box, no inputs
	OpFillet    = "FLT" // replace one edge with a blend face
	OpFuse      = "FUS" // boolean union of two solids
	OpTransform = "TRF" // rigid or scaling transform
	OpCompound  = "CPD" // compound of all inputs
)

// Correspondence records that one input element produced one or more
// output elements. Modified distinguishes elements the operation reshaped
// or generated from elements carried through untouched.
type Correspondence struct {
	// Input is the index of the consuming operation input.
	Input int
	// From is the element in that input.
	From shape.IndexName
	// To are the produced elements in the result, in kernel order.
	To []shape.IndexName
	// Modified is false when the element was carried through unchanged.
	Modified bool
}

// Result is the output of one shape-transform invocation.
type Result struct {
	Topo *shape.Topology
	Corr []Correspondence
	// Scaled reports a non-rigid transform was baked into the result,
	// which forces shape-cache writes downstream.
	Scaled bool
}

// Oracle is the shape-transform primitive consumed by the naming engine.
type Oracle interface {
	// Execute runs an operation over input topologies. Failures are
	// kernel failures in the sense of the error taxonomy: the caller
	// decides whether they abort a recompute or merely skip a candidate.
	Execute(op Operation, inputs []*shape.Topology) (*Result, error)

	// Congruent compares two sub-elements geometrically.
	Congruent(a, b shape.Element) (bool, error)
}
