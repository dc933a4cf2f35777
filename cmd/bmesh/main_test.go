package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/flywave/go3d/vec3"

	bmesh "github.com/flywave/go-bmesh"
)

func writeGlb(t *testing.T, dir string) string {
	t.Helper()
	obj := bmesh.NewMemoryObject("Tri")
	obj.AddTriangle(
		bmesh.Corner{Position: vec3.T{0, 0, 0}, Normal: vec3.T{0, 0, 1}},
		bmesh.Corner{Position: vec3.T{1, 0, 0}, Normal: vec3.T{0, 0, 1}},
		bmesh.Corner{Position: vec3.T{0, 1, 0}, Normal: vec3.T{0, 0, 1}},
	)
	rec, err := bmesh.BuildRecord(obj)
	if err != nil {
		t.Fatal(err)
	}
	doc, err := bmesh.RecordsToGltf([]*bmesh.MeshRecord{rec})
	if err != nil {
		t.Fatal(err)
	}
	bt, err := bmesh.GetGltfBinary(doc, 4)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "tri.glb")
	if err := os.WriteFile(path, bt, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExportInfoGltf(t *testing.T) {
	dir := t.TempDir()
	glb := writeGlb(t, dir)
	out := filepath.Join(dir, "scene.bmesh")

	if err := newApp().Run([]string{"bmesh", "export", "--log-level", "error", "-o", out, glb}); err != nil {
		t.Fatalf("export failed: %v", err)
	}
	ct, err := bmesh.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if ct.Format != bmesh.V1 || len(ct.Records) != 1 || ct.Records[0].VertexCount() != 3 {
		t.Errorf("Unexpected container %+v", ct)
	}

	v2dir := filepath.Join(dir, "v2")
	if err := newApp().Run([]string{"bmesh", "export", "-f", "2", "-z", "--log-level", "error", "-o", v2dir, glb}); err != nil {
		t.Fatalf("v2 export failed: %v", err)
	}
	ct, err = bmesh.ReadFile(filepath.Join(v2dir, "Tri.bmesh"))
	if err != nil {
		t.Fatal(err)
	}
	if ct.Format != bmesh.V2 || !ct.Compressed {
		t.Errorf("Unexpected container header %d %v", ct.Format, ct.Compressed)
	}

	if err := newApp().Run([]string{"bmesh", "info", out}); err != nil {
		t.Errorf("info failed: %v", err)
	}
	if err := newApp().Run([]string{"bmesh", "gltf", out}); err != nil {
		t.Fatalf("gltf failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "scene.glb")); err != nil {
		t.Errorf("GLB not written: %v", err)
	}
}

func TestExportRejectsBadConfig(t *testing.T) {
	dir := t.TempDir()
	glb := writeGlb(t, dir)
	if err := newApp().Run([]string{"bmesh", "export", "-z", "-o", filepath.Join(dir, "x.bmesh"), glb}); err == nil {
		t.Error("Expected compression with format 1 to be rejected")
	}
	for _, f := range []string{"3", "257"} {
		if err := newApp().Run([]string{"bmesh", "export", "-f", f, "-o", filepath.Join(dir, "y.bmesh"), glb}); err == nil {
			t.Errorf("Expected format %s to be rejected", f)
		}
	}
	cfgPath := filepath.Join(dir, "bmesh.toml")
	os.WriteFile(cfgPath, []byte("format = 5\n"), 0o644)
	if err := newApp().Run([]string{"bmesh", "export", "-c", cfgPath, glb}); err == nil {
		t.Error("Expected invalid config file to be rejected")
	}
}
