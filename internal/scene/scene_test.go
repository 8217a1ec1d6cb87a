package scene

import (
	"os"
	"path/filepath"
	"testing"

	"topo/internal/errors"
	"topo/internal/logging"
)

const yamlScene = `
name: part
objects:
  - name: Box
    op: BOX
    params:
      dims: 10x20x30
  - name: Fillet
    op: FLT
    params:
      edge: Edge3
    inputs: [Box]
  - name: View
    link: Box
`

const tomlScene = `
name = "part"

[[objects]]
name = "Box"
op = "BOX"
params = { dims = "10x20x30" }

[[objects]]
name = "Fillet"
op = "FLT"
inputs = ["Box"]
params = { edge = "Edge3" }

[[objects]]
name = "View"
link = "Box"
`

func writeScene(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write scene file: %v", err)
	}
	return path
}

func checkPartScene(t *testing.T, sc *Scene) {
	t.Helper()
	if sc.Name != "part" || len(sc.Objects) != 3 {
		t.Fatalf("scene = %q with %d objects", sc.Name, len(sc.Objects))
	}
	fillet := sc.Objects[1]
	if fillet.Op != "FLT" || len(fillet.Inputs) != 1 || fillet.Inputs[0] != "Box" {
		t.Errorf("fillet spec = %+v", fillet)
	}
	if fillet.Params["edge"] != "Edge3" {
		t.Errorf("fillet params = %v", fillet.Params)
	}
	if view := sc.Objects[2]; view.Link != "Box" || view.Op != "" {
		t.Errorf("view spec = %+v", view)
	}
}

func TestLoadYAML(t *testing.T) {
	sc, err := Load(writeScene(t, "part.yaml", yamlScene))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	checkPartScene(t, sc)
}

func TestLoadTOML(t *testing.T) {
	sc, err := Load(writeScene(t, "part.toml", tomlScene))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	checkPartScene(t, sc)
}

func TestLoadUnknownExtension(t *testing.T) {
	_, err := Load(writeScene(t, "part.json", "{}"))
	if errors.CodeOf(err) != errors.SceneInvalid {
		t.Errorf("error = %v, want SceneInvalid", err)
	}
}

func TestValidate(t *testing.T) {
	box := ObjectSpec{Name: "Box", Op: "BOX"}
	cases := []struct {
		name  string
		scene Scene
	}{
		{"no scene name", Scene{Objects: []ObjectSpec{box}}},
		{"unnamed object", Scene{Name: "s", Objects: []ObjectSpec{{Op: "BOX"}}}},
		{"duplicate name", Scene{Name: "s", Objects: []ObjectSpec{box, box}}},
		{"neither op nor link", Scene{Name: "s", Objects: []ObjectSpec{{Name: "X"}}}},
		{"both op and link", Scene{Name: "s", Objects: []ObjectSpec{box, {Name: "X", Op: "FLT", Link: "Box"}}}},
		{"undeclared input", Scene{Name: "s", Objects: []ObjectSpec{{Name: "X", Op: "FLT", Inputs: []string{"Box"}}}}},
		{"undeclared link target", Scene{Name: "s", Objects: []ObjectSpec{{Name: "X", Link: "Box"}}}},
		{"forward reference", Scene{Name: "s", Objects: []ObjectSpec{{Name: "X", Op: "FLT", Inputs: []string{"Box"}}, box}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.scene.Validate(); errors.CodeOf(err) != errors.SceneInvalid {
				t.Errorf("Validate() = %v, want SceneInvalid", err)
			}
		})
	}

	ok := Scene{Name: "s", Objects: []ObjectSpec{box, {Name: "View", Link: "Box"}}}
	if err := ok.Validate(); err != nil {
		t.Errorf("valid scene rejected: %v", err)
	}
}

func TestBuild(t *testing.T) {
	sc, err := ParseYAML([]byte(yamlScene))
	if err != nil {
		t.Fatalf("ParseYAML: %v", err)
	}
	doc, err := sc.Build(logging.Discard())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if doc.Name() != "part" {
		t.Errorf("document name = %q", doc.Name())
	}
	box := doc.ObjectByName("Box")
	fillet := doc.ObjectByName("Fillet")
	view := doc.ObjectByName("View")
	if box == nil || fillet == nil || view == nil {
		t.Fatal("built document lacks declared objects")
	}
	if len(fillet.Inputs) != 1 || fillet.Inputs[0] != box {
		t.Errorf("fillet inputs = %v", fillet.Inputs)
	}
	if fillet.Op.Params["edge"] != "Edge3" {
		t.Errorf("fillet params = %v", fillet.Op.Params)
	}
	if view.Link != box {
		t.Errorf("view link = %v", view.Link)
	}
	if !box.Touched() {
		t.Error("built objects should await recompute")
	}
}
