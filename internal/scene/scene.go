// Package scene loads declarative scene files, YAML or TOML, and builds
// document feature graphs from them. Scenes are the CLI's input format and
// double as test fixtures.
package scene

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"topo/internal/document"
	"topo/internal/errors"
	"topo/internal/kernel"
	"topo/internal/logging"
)

// ObjectSpec declares one feature of a scene. Exactly one of Op and Link
// must be set.
type ObjectSpec struct {
	Name   string                 `yaml:"name" toml:"name"`
	Op     string                 `yaml:"op,omitempty" toml:"op,omitempty"`
	Params map[string]interface{} `yaml:"params,omitempty" toml:"params,omitempty"`
	Inputs []string               `yaml:"inputs,omitempty" toml:"inputs,omitempty"`
	Link   string                 `yaml:"link,omitempty" toml:"link,omitempty"`
}

// Scene is a declarative document: named features in creation order,
// referring to each other by name.
type Scene struct {
	Name    string       `yaml:"name" toml:"name"`
	Objects []ObjectSpec `yaml:"objects" toml:"objects"`
}

// Load reads a scene file, picking the decoder by extension.
func Load(path string) (*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scene file: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	case ".toml":
		return ParseTOML(data)
	default:
		return nil, errors.Newf(errors.SceneInvalid, "unsupported scene format %q", filepath.Ext(path))
	}
}

// ParseYAML decodes a YAML scene.
func ParseYAML(data []byte) (*Scene, error) {
	var sc Scene
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, errors.New(errors.SceneInvalid, "malformed YAML scene", err)
	}
	return &sc, sc.Validate()
}

// ParseTOML decodes a TOML scene.
func ParseTOML(data []byte) (*Scene, error) {
	var sc Scene
	if err := toml.Unmarshal(data, &sc); err != nil {
		return nil, errors.New(errors.SceneInvalid, "malformed TOML scene", err)
	}
	return &sc, sc.Validate()
}

// Validate checks structural consistency: non-empty names, no duplicates,
// op/link exclusivity, and references only to earlier objects.
func (sc *Scene) Validate() error {
	if sc.Name == "" {
		return errors.Newf(errors.SceneInvalid, "scene has no name")
	}
	seen := make(map[string]bool, len(sc.Objects))
	for i, spec := range sc.Objects {
		if spec.Name == "" {
			return errors.Newf(errors.SceneInvalid, "object %d has no name", i)
		}
		if seen[spec.Name] {
			return errors.Newf(errors.SceneInvalid, "duplicate object name %q", spec.Name)
		}
		if (spec.Op == "") == (spec.Link == "") {
			return errors.Newf(errors.SceneInvalid, "object %q needs exactly one of op and link", spec.Name)
		}
		if spec.Link != "" && !seen[spec.Link] {
			return errors.Newf(errors.SceneInvalid, "object %q links to undeclared %q", spec.Name, spec.Link)
		}
		for _, in := range spec.Inputs {
			if !seen[in] {
				return errors.Newf(errors.SceneInvalid, "object %q consumes undeclared %q", spec.Name, in)
			}
		}
		seen[spec.Name] = true
	}
	return nil
}

// Build materializes the scene as a document. The document comes back
// fully touched; the caller runs the recompute pipeline.
func (sc *Scene) Build(logger *logging.Logger) (*document.Document, error) {
	d := document.New(sc.Name, logger)
	for _, spec := range sc.Objects {
		if spec.Link != "" {
			target := d.ObjectByName(spec.Link)
			if _, err := d.AddLink(spec.Name, target); err != nil {
				return nil, err
			}
			continue
		}
		inputs := make([]*document.Object, len(spec.Inputs))
		for i, in := range spec.Inputs {
			inputs[i] = d.ObjectByName(in)
		}
		op := kernel.Operation{Code: spec.Op, Params: spec.Params}
		if _, err := d.AddObject(spec.Name, op, inputs...); err != nil {
			return nil, err
		}
	}
	return d, nil
}
