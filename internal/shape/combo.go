package shape

import (
	"sort"
	"strconv"
	"strings"
)

// Combo-name selection bounds. A higher element is identified by at least
// MinLowerTopoNames lower elements for robustness against model edits, and
// by at most MaxLowerTopoNames to keep names bounded; beyond that an index
// postfix disambiguates.
const (
	MinLowerTopoNames = 3
	MaxLowerTopoNames = 10
)

// OpCombine marks synthesized higher-element combo names.
const OpCombine = "CMB"

// Name grammar separators. A durable name is a tree of lower names joined
// by these markers:
//
//	atomic     Face1;BOX
//	derived    Face1;BOX;FLT         one generated output
//	           Edge7;BOX;FLT:2       second of several outputs
//	combo      (a,b,c);CMB:Wire2     synthesized higher-element name,
//	                                 Wire2 is the index clue at encode time
//	disambig   ...;:L1               index into the surviving ambiguity set
//	retag      ...;TAG:42            crossed a link or document boundary
//	handle     #9f23ab...            interned via the document hasher
const (
	opSep        = ";"
	opArgSep     = ":"
	indexPostfix = ";:L"
	comboOpen    = "("
	comboClose   = ")"
	comboSep     = ","
)

// DerivedName builds the durable name of an element produced from a single
// ancestor. ordinal distinguishes several outputs of one ancestor; pass
// zero when there is only one.
func DerivedName(parent DurableName, op string, ordinal int) string {
	name := string(parent) + opSep + op
	if ordinal > 0 {
		name += opArgSep + strconv.Itoa(ordinal)
	}
	return name
}

// ComboName builds the durable name combining several ancestors.
func ComboName(parents []DurableName, op string, clue IndexName, postfix string) string {
	parts := make([]string, len(parents))
	for i, p := range parents {
		parts[i] = string(p)
	}
	return comboOpen + strings.Join(parts, comboSep) + comboClose +
		opSep + op + opArgSep + clue.String() + postfix
}

// decodeCombo splits a combo name into its constituent names, the index
// clue recorded at encode time, and the disambiguation ordinal (-1 when
// absent). ok is false for non-combo names.
func decodeCombo(full string) (names []DurableName, clue IndexName, disamb int, ok bool) {
	disamb = -1
	if !strings.HasPrefix(full, comboOpen) {
		return nil, IndexName{}, -1, false
	}
	depth := 0
	end := -1
	for i := 0; i < len(full); i++ {
		switch full[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				end = i
			}
		}
		if end >= 0 {
			break
		}
	}
	if end < 0 {
		return nil, IndexName{}, -1, false
	}
	for _, part := range splitTop(full[1:end]) {
		if part != "" {
			names = append(names, DurableName(part))
		}
	}
	rest := full[end+1:]
	if !strings.HasPrefix(rest, opSep) {
		return nil, IndexName{}, -1, false
	}
	// Any operation code may follow; only the index clue matters here.
	colon := strings.Index(rest, opArgSep)
	if colon < 0 {
		return nil, IndexName{}, -1, false
	}
	rest = rest[colon+len(opArgSep):]
	if i := strings.Index(rest, indexPostfix); i >= 0 {
		n, err := strconv.Atoi(rest[i+len(indexPostfix):])
		if err != nil {
			return nil, IndexName{}, -1, false
		}
		disamb = n
		rest = rest[:i]
	}
	clue, k := ParseIndexName(rest)
	if !k || len(names) == 0 {
		return nil, IndexName{}, -1, false
	}
	return names, clue, disamb, true
}

// splitTop splits on commas at parenthesis depth zero.
func splitTop(s string) []string {
	var out []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	return append(out, s[start:])
}

// SetComboName synthesizes and stores the combo name of a higher element
// from the chosen lower-element names.
func (s *Shape) SetComboName(idx IndexName, names []DurableName, postfix string) DurableName {
	full := ComboName(names, OpCombine, idx, postfix)
	d := DurableName(s.shorten(full))
	s.SetElementName(idx, d, Generation{Op: OpCombine, Ancestors: names})
	return d
}

// ElementName resolves an index name to its durable name. A cached mapping
// is returned as is. For higher-level kinds with no kernel-native identity
// a combo name is synthesized on first encounter: the minimal run of
// lower-element names whose combined ancestor sets single out this element,
// plus an index postfix when they cannot. Lower kinds with no mapped name
// resolve to an empty durable name; nothing is ever fabricated.
func (s *Shape) ElementName(idx IndexName) MappedElement {
	if s.IsNull() || idx.IsZero() || idx.Index > s.Topo.Count(idx.Kind) {
		return MappedElement{}
	}
	if d, ok := s.DurableOf(idx); ok {
		return MappedElement{Name: d, Index: idx}
	}
	lower := idx.Kind.Lower()
	if lower == KindNone {
		return MappedElement{Index: idx}
	}

	type entry struct {
		name      DurableName
		ancestors []int
	}
	var entries []entry
	for _, m := range s.Topo.LowerElements(idx, lower) {
		d, ok := s.DurableOf(m)
		if !ok {
			continue
		}
		entries = append(entries, entry{name: d, ancestors: s.Topo.Ancestors(m, idx.Kind)})
	}
	if len(entries) == 0 {
		return MappedElement{Index: idx}
	}

	// Prefer lower elements that identify the higher element on their own,
	// then order lexicographically by durable name. This makes synthesis a
	// deterministic total order independent of kernel iteration order.
	sort.Slice(entries, func(i, j int) bool {
		if len(entries[i].ancestors) != len(entries[j].ancestors) {
			return len(entries[i].ancestors) < len(entries[j].ancestors)
		}
		return entries[i].name < entries[j].name
	})

	var chosen []DurableName
	var surviving []int
	for _, e := range entries {
		chosen = append(chosen, e.name)
		if surviving == nil {
			surviving = e.ancestors
		} else if len(surviving) > 1 {
			surviving = intersect(surviving, e.ancestors)
		}
		if len(surviving) == 1 && len(chosen) >= MinLowerTopoNames {
			break
		}
		if len(chosen) >= MaxLowerTopoNames {
			break
		}
	}

	postfix := ""
	if len(surviving) != 1 {
		pos := -1
		for i, ord := range surviving {
			if ord == idx.Index {
				pos = i
				break
			}
		}
		if pos < 0 {
			// The element is not in its own ambiguity set; the topology
			// contradicts itself and no name has an evidentiary basis.
			return MappedElement{Index: idx}
		}
		postfix = indexPostfix + strconv.Itoa(pos)
	}

	return MappedElement{Name: s.SetComboName(idx, chosen, postfix), Index: idx}
}

// IndexName resolves a durable name to the current index name. A direct
// reverse hit is returned immediately. On a miss, combo names are decoded
// as a best-effort re-identification: each constituent lower name is
// resolved recursively, their ancestor sets at the clue kind intersected,
// and the disambiguation ordinal applied; exactly one survivor wins. Zero
// candidates, a null shape, or remaining ambiguity report not-found.
func (s *Shape) IndexName(d DurableName) (IndexName, bool) {
	if s.IsNull() || d.IsZero() {
		return IndexName{}, false
	}
	if idx, ok := s.IndexOf(d); ok {
		return idx, true
	}
	full, ok := s.expand(d)
	if !ok {
		return IndexName{}, false
	}
	names, clue, disamb, ok := decodeCombo(full)
	if !ok {
		return IndexName{}, false
	}
	var surviving []int
	for _, n := range names {
		idxN, ok := s.IndexName(n)
		if !ok {
			return IndexName{}, false
		}
		anc := s.Topo.Ancestors(idxN, clue.Kind)
		if len(anc) == 0 {
			return IndexName{}, false
		}
		if surviving == nil {
			surviving = anc
		} else {
			surviving = intersect(surviving, anc)
			if len(surviving) == 0 {
				// model changed beyond recognition, bail
				return IndexName{}, false
			}
		}
	}
	if len(surviving) > 1 && disamb >= 0 && disamb < len(surviving) {
		surviving = surviving[disamb : disamb+1]
	}
	if len(surviving) != 1 {
		return IndexName{}, false
	}
	return IndexName{Kind: clue.Kind, Index: surviving[0]}, true
}

// intersect keeps the elements of a that also appear in b, preserving
// a's (ascending) order.
func intersect(a, b []int) []int {
	out := a[:0:len(a)]
	for _, v := range a {
		for _, w := range b {
			if v == w {
				out = append(out, v)
				break
			}
		}
	}
	return out
}
