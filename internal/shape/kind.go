// Package shape holds the in-memory model of a B-rep shape as this engine
// sees it: the kernel-assigned sub-element topology, and the element map
// that overlays durable names onto it.
//
// The geometry itself (surfaces, curves, coordinates) never enters this
// package; the kernel is consulted through opaque congruence signatures.
package shape

import (
	"strconv"
	"strings"
)

// Kind is the closed set of sub-element kinds this engine cares about.
// Dispatch is by explicit switch, not open-ended polymorphism.
type Kind uint8

const (
	KindNone Kind = iota
	KindVertex
	KindEdge
	KindWire
	KindFace
	KindShell
	KindSolid
	KindCompSolid
	KindCompound
)

var kindNames = [...]string{
	KindNone:      "",
	KindVertex:    "Vertex",
	KindEdge:      "Edge",
	KindWire:      "Wire",
	KindFace:      "Face",
	KindShell:     "Shell",
	KindSolid:     "Solid",
	KindCompSolid: "CompSolid",
	KindCompound:  "Compound",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return ""
}

// Lower returns the kind whose elements make up elements of k, as used for
// combo-name synthesis: edges for a wire, faces for shells, solids and
// compounds. Kinds with a kernel-native stable identity return KindNone.
func (k Kind) Lower() Kind {
	switch k {
	case KindWire:
		return KindEdge
	case KindShell, KindSolid, KindCompSolid, KindCompound:
		return KindFace
	default:
		return KindNone
	}
}

// DirectLower returns the kind of an element's direct members in the
// topology containment tree.
func (k Kind) DirectLower() Kind {
	switch k {
	case KindEdge:
		return KindVertex
	case KindWire, KindFace:
		return KindEdge
	case KindShell, KindSolid:
		return KindFace
	case KindCompSolid:
		return KindSolid
	case KindCompound:
		return KindFace
	default:
		return KindNone
	}
}

// HighLevel reports whether elements of this kind lack a kernel-native
// stable name and get synthesized combo names instead.
func (k Kind) HighLevel() bool {
	return k.Lower() != KindNone
}

// ParseKind parses a kind name such as "Face". Unknown names yield KindNone.
func ParseKind(s string) Kind {
	for k, name := range kindNames {
		if name != "" && name == s {
			return Kind(k)
		}
	}
	return KindNone
}

// IndexName is the kernel-assigned (kind, ordinal) pair for the current
// in-memory shape, e.g. Face3. Ordinals are 1-based and unique per kind
// within one shape instance, but carry no meaning across rebuilds.
type IndexName struct {
	Kind  Kind
	Index int
}

// IsZero reports whether the name is empty.
func (n IndexName) IsZero() bool {
	return n.Kind == KindNone || n.Index <= 0
}

func (n IndexName) String() string {
	if n.IsZero() {
		return ""
	}
	return n.Kind.String() + strconv.Itoa(n.Index)
}

// ParseIndexName parses names such as "Face3". The boolean result is false
// for anything that is not a well-formed index name.
func ParseIndexName(s string) (IndexName, bool) {
	i := len(s)
	for i > 0 && s[i-1] >= '0' && s[i-1] <= '9' {
		i--
	}
	if i == 0 || i == len(s) {
		return IndexName{}, false
	}
	kind := ParseKind(s[:i])
	if kind == KindNone {
		return IndexName{}, false
	}
	idx, err := strconv.Atoi(s[i:])
	if err != nil || idx <= 0 {
		return IndexName{}, false
	}
	return IndexName{Kind: kind, Index: idx}, true
}

// TranslateDatum maps datum reference names onto the index name of the
// datum's single sub-element.
func TranslateDatum(s string) string {
	switch s {
	case "Plane":
		return "Face1"
	case "Line":
		return "Edge1"
	case "Point":
		return "Vertex1"
	}
	return s
}

// DurableName is an opaque, content-derived identifier for a sub-element.
// Unlike an IndexName it survives rebuilds: it is either atomic (assigned
// when the element is first produced) or combined from lower-level names.
type DurableName string

// IsZero reports whether the name is empty.
func (d DurableName) IsZero() bool { return d == "" }

func (d DurableName) String() string { return string(d) }

// MappedElement pairs a durable name with its resolved index name. Either
// half may be empty when resolution failed in that direction.
type MappedElement struct {
	Name  DurableName `json:"name,omitempty"`
	Index IndexName   `json:"-"`
}

// IndexString is the index half in textual form, for JSON output.
func (m MappedElement) IndexString() string { return m.Index.String() }

// IsMappedName reports whether a textual element reference is a durable
// name rather than an index name. Durable references are written with a
// leading ";" to keep them out of the index-name namespace.
func IsMappedName(s string) bool {
	return strings.HasPrefix(s, mappedPrefix)
}

// mappedPrefix marks a textual durable-name reference.
const mappedPrefix = ";"

// NewMappedRef formats a durable name as a textual reference.
func NewMappedRef(d DurableName) string {
	return mappedPrefix + string(d)
}

// StripMappedRef undoes NewMappedRef.
func StripMappedRef(s string) DurableName {
	return DurableName(strings.TrimPrefix(s, mappedPrefix))
}
