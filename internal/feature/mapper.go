package feature

import (
	"sort"
	"strconv"

	"topo/internal/kernel"
	"topo/internal/shape"
)

// ancestorRef is one input element feeding an output element.
type ancestorRef struct {
	name     shape.DurableName
	input    int
	ordinal  int // 1-based among several outputs of one ancestor, 0 otherwise
	modified bool
}

// overlayNames maps the kernel's generator-to-result correspondence onto
// durable names in the freshly built shape.
//
// Naming rules, in order:
//   - carried element (unmodified, single ancestor): the ancestor's name is
//     kept byte-identical, with a generation record whose tag is the
//     negated upstream tag;
//   - modified or generated element with one ancestor: ancestor name plus
//     the operation code, plus the input ordinal when the operation has
//     several inputs, plus the output ordinal when one ancestor produced
//     several outputs;
//   - several ancestors: a combo of all ancestor names under the operation
//     code.
//
// Generation tags always carry the magnitude of the upstream feature that
// owns the ancestor names; the sign records whether this feature changed
// the element (positive) or merely carried it (negative).
func (e *Engine) overlayNames(s *shape.Shape, op string, res *kernel.Result, inputs []*shape.Shape) {
	type group struct {
		idx       shape.IndexName
		ancestors []ancestorRef
		modified  bool
	}
	groups := make(map[shape.IndexName]*group)
	var order []shape.IndexName

	kernel.SortCorrespondences(res.Corr)
	for _, c := range res.Corr {
		if c.Input < 0 || c.Input >= len(inputs) {
			continue
		}
		in := inputs[c.Input]
		d, ok := in.DurableOf(c.From)
		if !ok {
			if c.From.Kind.HighLevel() {
				d = in.ElementName(c.From).Name
			}
			if d.IsZero() {
				continue // unnamed ancestry produces unnamed offspring
			}
		}
		for k, to := range c.To {
			g := groups[to]
			if g == nil {
				g = &group{idx: to}
				groups[to] = g
				order = append(order, to)
			}
			ordinal := 0
			if len(c.To) > 1 {
				ordinal = k + 1
			}
			g.ancestors = append(g.ancestors, ancestorRef{
				name: d, input: c.Input, ordinal: ordinal, modified: c.Modified,
			})
			g.modified = g.modified || c.Modified
		}
	}

	sort.Slice(order, func(i, j int) bool {
		if order[i].Kind != order[j].Kind {
			return order[i].Kind < order[j].Kind
		}
		return order[i].Index < order[j].Index
	})

	multiInput := len(inputs) > 1
	for _, to := range order {
		g := groups[to]
		upTag := inputs[g.ancestors[0].input].Tag

		if !g.modified && len(g.ancestors) == 1 {
			a := g.ancestors[0]
			s.SetElementName(to, a.name, shape.Generation{
				Tag:       -upTag,
				Ancestors: []shape.DurableName{a.name},
			})
			continue
		}

		var d shape.DurableName
		names := make([]shape.DurableName, len(g.ancestors))
		for i, a := range g.ancestors {
			names[i] = a.name
		}
		if len(g.ancestors) == 1 {
			a := g.ancestors[0]
			suffixed := op
			if multiInput {
				suffixed += ":" + strconv.Itoa(a.input)
			}
			d = s.Shorten(shape.DerivedName(a.name, suffixed, a.ordinal))
		} else {
			sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
			d = s.Shorten(shape.ComboName(names, op, to, ""))
		}
		s.SetElementName(to, d, shape.Generation{
			Tag:       upTag,
			Op:        op,
			Ancestors: names,
		})
	}
}
