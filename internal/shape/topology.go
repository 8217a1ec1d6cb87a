package shape

import "sort"

// Element is one kernel-assigned sub-element of a topology.
type Element struct {
	// Lower holds the 1-based ordinals of the element's direct members of
	// kind Kind.direct(): edges of a wire or face, faces of a shell, and so
	// on. Order is kernel-assigned and carries no meaning.
	Lower []int `json:"lower,omitempty"`

	// Sig is the kernel's congruence signature for the element. Two
	// elements with equal signatures are geometrically identical as far as
	// this engine is concerned.
	Sig uint64 `json:"sig,omitempty"`
}

// Topology is an immutable snapshot of a shape's sub-element structure as
// produced by one kernel invocation. Ordinals are valid only within this
// snapshot.
type Topology struct {
	Elems map[Kind][]Element `json:"elems"`
}

// NewTopology creates an empty topology.
func NewTopology() *Topology {
	return &Topology{Elems: make(map[Kind][]Element)}
}

// Count returns the number of sub-elements of a kind.
func (t *Topology) Count(k Kind) int {
	if t == nil {
		return 0
	}
	return len(t.Elems[k])
}

// Element returns the element behind an index name.
func (t *Topology) Element(n IndexName) (Element, bool) {
	if t == nil || n.IsZero() || n.Index > len(t.Elems[n.Kind]) {
		return Element{}, false
	}
	return t.Elems[n.Kind][n.Index-1], true
}

// Members returns the direct members of an element as index names.
func (t *Topology) Members(n IndexName) []IndexName {
	e, ok := t.Element(n)
	if !ok {
		return nil
	}
	lower := n.Kind.DirectLower()
	if lower == KindNone {
		return nil
	}
	out := make([]IndexName, 0, len(e.Lower))
	for _, ord := range e.Lower {
		out = append(out, IndexName{Kind: lower, Index: ord})
	}
	return out
}

// Contains reports whether the containment closure of element n includes
// the element named by sub.
func (t *Topology) Contains(n IndexName, sub IndexName) bool {
	if n == sub {
		return true
	}
	for _, m := range t.Members(n) {
		if t.Contains(m, sub) {
			return true
		}
	}
	return false
}

// Ancestors returns, in ascending order, the ordinals of all elements of
// kind higher whose containment closure includes sub.
func (t *Topology) Ancestors(sub IndexName, higher Kind) []int {
	if t == nil || sub.IsZero() {
		return nil
	}
	var out []int
	for i := range t.Elems[higher] {
		n := IndexName{Kind: higher, Index: i + 1}
		if n == sub {
			continue
		}
		if t.Contains(n, sub) {
			out = append(out, i+1)
		}
	}
	sort.Ints(out)
	return out
}

// LowerElements returns, in ascending ordinal order, the distinct elements
// of kind k in the containment closure of n.
func (t *Topology) LowerElements(n IndexName, k Kind) []IndexName {
	seen := make(map[int]bool)
	var walk func(IndexName)
	walk = func(cur IndexName) {
		for _, m := range t.Members(cur) {
			if m.Kind == k {
				seen[m.Index] = true
			}
			walk(m)
		}
	}
	walk(n)
	ords := make([]int, 0, len(seen))
	for ord := range seen {
		ords = append(ords, ord)
	}
	sort.Ints(ords)
	out := make([]IndexName, len(ords))
	for i, ord := range ords {
		out[i] = IndexName{Kind: k, Index: ord}
	}
	return out
}

// FindSig returns the index names of all elements of kind k whose
// congruence signature equals sig.
func (t *Topology) FindSig(k Kind, sig uint64) []IndexName {
	if t == nil {
		return nil
	}
	var out []IndexName
	for i, e := range t.Elems[k] {
		if e.Sig == sig {
			out = append(out, IndexName{Kind: k, Index: i + 1})
		}
	}
	return out
}

// Kinds returns the kinds present in the topology, in containment order
// from vertex up.
func (t *Topology) Kinds() []Kind {
	var out []Kind
	for k := KindVertex; k <= KindCompound; k++ {
		if t.Count(k) > 0 {
			out = append(out, k)
		}
	}
	return out
}
