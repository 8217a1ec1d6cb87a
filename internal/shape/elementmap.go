package shape

// Generation is the one-step generation record of a durable name: which
// ancestor names were consumed to produce it, via which upstream feature.
type Generation struct {
	// Tag identifies the feature owning the ancestor names. Zero means no
	// lineage (an origin element). The sign distinguishes how the element
	// came to be: positive when the owning feature modified or generated
	// it, negative when the name was carried through unchanged.
	Tag int64

	// Op is the operation code of the generating step, empty for carried
	// names.
	Op string

	// Ancestors are the durable names consumed by the step. The first is
	// the "original" name the history walk continues from; the rest were
	// intermediates consumed along the way.
	Ancestors []DurableName
}

type relKey struct {
	name     DurableName
	sameType bool
}

// ElementMap is the per-shape table mapping durable names to kernel index
// names, with reverse lookup and per-name generation history. It is owned
// by one Shape value logically, but shared by reference between shape
// copies until a mutating call forces a private clone (see Shape.edit).
type ElementMap struct {
	refs    int
	forward map[DurableName]IndexName
	reverse map[IndexName]DurableName
	history map[DurableName]Generation
	kinds   map[DurableName]Kind
	related map[relKey][]MappedElement
}

// NewElementMap creates an empty element map with a single owner.
func NewElementMap() *ElementMap {
	return &ElementMap{
		refs:    1,
		forward: make(map[DurableName]IndexName),
		reverse: make(map[IndexName]DurableName),
		history: make(map[DurableName]Generation),
		kinds:   make(map[DurableName]Kind),
		related: make(map[relKey][]MappedElement),
	}
}

func (m *ElementMap) clone() *ElementMap {
	c := &ElementMap{
		refs:    1,
		forward: make(map[DurableName]IndexName, len(m.forward)),
		reverse: make(map[IndexName]DurableName, len(m.reverse)),
		history: make(map[DurableName]Generation, len(m.history)),
		kinds:   make(map[DurableName]Kind, len(m.kinds)),
		related: make(map[relKey][]MappedElement, len(m.related)),
	}
	for k, v := range m.forward {
		c.forward[k] = v
	}
	for k, v := range m.reverse {
		c.reverse[k] = v
	}
	for k, v := range m.history {
		c.history[k] = v
	}
	for k, v := range m.kinds {
		c.kinds[k] = v
	}
	for k, v := range m.related {
		c.related[k] = v
	}
	return c
}

// Len returns the number of mapped names.
func (m *ElementMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.forward)
}

// Names returns all mapped durable names in unspecified order.
func (m *ElementMap) Names() []DurableName {
	out := make([]DurableName, 0, len(m.forward))
	for d := range m.forward {
		out = append(out, d)
	}
	return out
}
