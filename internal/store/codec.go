package store

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/klauspost/compress/zstd"

	"topo/internal/hasher"
	"topo/internal/shape"
)

// shapeRecord is the persisted form of a shape: the topology snapshot plus
// the element map flattened to rows. Interned handles are stored as is;
// the document's interned-name table travels alongside.
type shapeRecord struct {
	Tag    int64            `json:"tag"`
	Scaled bool             `json:"scaled,omitempty"`
	Topo   *shape.Topology  `json:"topo"`
	Names  []nameRecord     `json:"names,omitempty"`
}

type nameRecord struct {
	Name       shape.DurableName `json:"name"`
	Index      string            `json:"index"`
	Generation *shape.Generation `json:"generation,omitempty"`
}

type codec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func newCodec(level int) (*codec, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return &codec{enc: enc, dec: dec}, nil
}

func (c *codec) encodeShape(s *shape.Shape) ([]byte, error) {
	rec := shapeRecord{Tag: s.Tag, Scaled: s.Scaled, Topo: s.Topo}
	names := s.Map().Names()
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	for _, d := range names {
		idx, ok := s.IndexOf(d)
		if !ok {
			continue
		}
		nr := nameRecord{Name: d, Index: idx.String()}
		if gen, ok := s.Generation(d); ok {
			g := gen
			nr.Generation = &g
		}
		rec.Names = append(rec.Names, nr)
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	return c.enc.EncodeAll(raw, nil), nil
}

func (c *codec) decodeShape(payload []byte, h *hasher.Hasher, hashThreshold int) (*shape.Shape, error) {
	raw, err := c.dec.DecodeAll(payload, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decode: %w", err)
	}
	var rec shapeRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("json decode: %w", err)
	}
	if rec.Topo == nil {
		return nil, fmt.Errorf("shape payload has no topology")
	}
	s := shape.New(rec.Topo, rec.Tag, h)
	s.HashThreshold = hashThreshold
	s.Scaled = rec.Scaled
	for _, nr := range rec.Names {
		idx, ok := shape.ParseIndexName(nr.Index)
		if !ok {
			return nil, fmt.Errorf("malformed index name %q", nr.Index)
		}
		gen := shape.Generation{}
		if nr.Generation != nil {
			gen = *nr.Generation
		}
		s.SetElementName(idx, nr.Name, gen)
	}
	return s, nil
}
