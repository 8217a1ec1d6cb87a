package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"topo/internal/feature"
	"topo/internal/shape"
	"topo/internal/version"
)

// OutputFormat selects between machine and human rendering.
type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"
	FormatHuman OutputFormat = "human"
)

// Response is the common wrapper for all topo command responses.
type Response struct {
	TopoVersion string      `json:"topoVersion"`
	Document    string      `json:"document"`
	Facts       interface{} `json:"facts"`
	Warnings    []string    `json:"warnings,omitempty"`
}

func newResponse(docName string, facts interface{}) *Response {
	return &Response{
		TopoVersion: version.Version,
		Document:    docName,
		Facts:       facts,
	}
}

// FormatResponse renders a response. Human rendering is delegated to the
// facts when they know how to render themselves; everything else falls
// back to JSON.
func FormatResponse(r *Response, format OutputFormat) (string, error) {
	switch format {
	case FormatHuman:
		if h, ok := r.Facts.(humanRenderer); ok {
			return h.renderHuman(), nil
		}
		fallthrough
	case FormatJSON, "":
		out, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to encode response: %w", err)
		}
		return string(out), nil
	default:
		return "", fmt.Errorf("unknown output format %q", format)
	}
}

type humanRenderer interface {
	renderHuman() string
}

// elementFacts is the resolve command's payload.
type elementFacts struct {
	Object  string `json:"object"`
	Element string `json:"element"`
	Durable string `json:"durable,omitempty"`
	Index   string `json:"index,omitempty"`
}

func (f elementFacts) renderHuman() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s.%s\n", f.Object, f.Element)
	fmt.Fprintf(&b, "  index:   %s\n", orDash(f.Index))
	fmt.Fprintf(&b, "  durable: %s\n", orDash(f.Durable))
	return strings.TrimRight(b.String(), "\n")
}

// historyFacts is the history command's payload.
type historyFacts struct {
	Object  string        `json:"object"`
	Element string        `json:"element"`
	Items   []historyStep `json:"items"`
}

type historyStep struct {
	Object        string   `json:"object,omitempty"`
	Tag           int64    `json:"tag"`
	Element       string   `json:"element,omitempty"`
	Index         string   `json:"index,omitempty"`
	Intermediates []string `json:"intermediates,omitempty"`
	LineageLost   bool     `json:"lineageLost,omitempty"`
}

func historyStepsOf(items []feature.HistoryItem) []historyStep {
	out := make([]historyStep, len(items))
	for i, it := range items {
		step := historyStep{
			Tag:         it.Tag,
			Element:     string(it.Element),
			Index:       it.Index.String(),
			LineageLost: it.LineageLost,
		}
		if it.Object != nil {
			step.Object = it.Object.Name()
		}
		for _, inter := range it.Intermediates {
			step.Intermediates = append(step.Intermediates, string(inter))
		}
		out[i] = step
	}
	return out
}

func (f historyFacts) renderHuman() string {
	var b strings.Builder
	fmt.Fprintf(&b, "history of %s.%s\n", f.Object, f.Element)
	for i, it := range f.Items {
		marker := " "
		if i == 0 {
			marker = "*"
		}
		fmt.Fprintf(&b, "%s %-12s tag %-4d %s", marker, orDash(it.Object), it.Tag, orDash(it.Element))
		if it.Index != "" {
			fmt.Fprintf(&b, "  -> %s", it.Index)
		}
		if len(it.Intermediates) > 0 {
			fmt.Fprintf(&b, "  (+%d intermediate)", len(it.Intermediates))
		}
		if it.LineageLost {
			b.WriteString("  [lineage lost]")
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// matchFacts is the payload of source and related.
type matchFacts struct {
	Object  string         `json:"object"`
	Query   string         `json:"query"`
	Matches []elementFacts `json:"matches"`
}

func matchesOf(objName string, elems []shape.MappedElement) []elementFacts {
	out := make([]elementFacts, len(elems))
	for i, me := range elems {
		out[i] = elementFacts{
			Object:  objName,
			Element: me.Index.String(),
			Durable: string(me.Name),
			Index:   me.Index.String(),
		}
	}
	return out
}

func (f matchFacts) renderHuman() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d match(es) for %s on %s\n", len(f.Matches), f.Query, f.Object)
	for _, m := range f.Matches {
		fmt.Fprintf(&b, "  %-10s %s\n", orDash(m.Index), orDash(m.Durable))
	}
	return strings.TrimRight(b.String(), "\n")
}

// recomputeFacts is the recompute command's payload.
type recomputeFacts struct {
	Objects []objectFacts `json:"objects"`
	Saved   bool          `json:"saved,omitempty"`
}

type objectFacts struct {
	Name   string `json:"name"`
	Op     string `json:"op,omitempty"`
	Link   string `json:"link,omitempty"`
	Mapped int    `json:"mapped"`
	Error  string `json:"error,omitempty"`
}

func (f recomputeFacts) renderHuman() string {
	var b strings.Builder
	for _, o := range f.Objects {
		what := o.Op
		if o.Link != "" {
			what = "-> " + o.Link
		}
		fmt.Fprintf(&b, "%-12s %-10s %4d mapped", o.Name, what, o.Mapped)
		if o.Error != "" {
			fmt.Fprintf(&b, "  ERROR: %s", o.Error)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
