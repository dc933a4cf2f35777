package bmesh

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func testLogger(buf *bytes.Buffer) *log.Logger {
	l := log.New(buf)
	l.SetLevel(log.DebugLevel)
	return l
}

func exportObjects() []MeshObject {
	tri := NewMemoryObject("Tri")
	tri.AddTriangle(corner(0, 0, 0), corner(1, 0, 0), corner(0, 1, 0))
	broken := NewMemoryObject("Broken")
	broken.Err = ErrNoMesh
	return []MeshObject{quadObject("Quad"), broken, tri, NewMemoryObject("Empty")}
}

// TestExportV1 测试 v1 单文件导出
func TestExportV1(t *testing.T) {
	var logs bytes.Buffer
	out := filepath.Join(t.TempDir(), "scene"+BMESHEXT)
	ex := NewExporter(EncodeOptions{Format: V1}, testLogger(&logs))
	sum, err := ex.Export(exportObjects(), out)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if sum.Objects != 3 || sum.Skipped != 1 || sum.Vertices != 7 || sum.Indices != 9 {
		t.Errorf("Summary = %+v", sum)
	}
	if len(sum.Files) != 1 || sum.Files[0] != out {
		t.Errorf("Files = %v", sum.Files)
	}
	if !strings.Contains(logs.String(), "Broken") {
		t.Errorf("Skipped object not logged: %s", logs.String())
	}

	ct, err := ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, r := range ct.Records {
		names = append(names, r.Name)
	}
	if strings.Join(names, ",") != "Quad,Tri,Empty" {
		t.Errorf("Record names = %v", names)
	}
}

// TestExportV2 测试 v2 每对象一个文件
func TestExportV2(t *testing.T) {
	var logs bytes.Buffer
	dir := t.TempDir()
	objs := append(exportObjects(), quadObject("Quad"), quadObject("a/b"))
	ex := NewExporter(EncodeOptions{Format: V2, Compress: true}, testLogger(&logs))
	sum, err := ex.Export(objs, dir)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if sum.Objects != 5 || sum.Skipped != 1 {
		t.Errorf("Summary = %+v", sum)
	}
	want := []string{"Quad", "Tri", "Empty", "Quad_1", "a_b"}
	if len(sum.Files) != len(want) {
		t.Fatalf("Files = %v", sum.Files)
	}
	for i, w := range want {
		if sum.Files[i] != filepath.Join(dir, w+BMESHEXT) {
			t.Errorf("File %d = %s, want %s", i, sum.Files[i], w+BMESHEXT)
		}
		ct, err := ReadFile(sum.Files[i])
		if err != nil {
			t.Fatalf("ReadFile %s failed: %v", sum.Files[i], err)
		}
		if ct.Format != V2 || !ct.Compressed || len(ct.Records) != 1 {
			t.Errorf("%s: format %d compressed %v records %d", w, ct.Format, ct.Compressed, len(ct.Records))
		}
	}
}

// TestExportEncodeFailure 测试编码失败时不留文件
func TestExportEncodeFailure(t *testing.T) {
	out := filepath.Join(t.TempDir(), "scene"+BMESHEXT)
	long := NewMemoryObject(strings.Repeat("n", MAX_NAME_LENGTH+1))
	ex := NewExporter(EncodeOptions{Format: V1}, log.New(&bytes.Buffer{}))
	if _, err := ex.Export([]MeshObject{quadObject("Quad"), long}, out); !errors.Is(err, ErrNameTooLong) {
		t.Errorf("Expected ErrNameTooLong, got %v", err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Error("Failed export left a file behind")
	}

	ex.Options.Format = 9
	if _, err := ex.Export(nil, out); !errors.Is(err, ErrUnsupportedVersion) {
		t.Errorf("Expected ErrUnsupportedVersion, got %v", err)
	}
}

// TestFileNamer 测试文件名生成
func TestFileNamer(t *testing.T) {
	n := newFileNamer()
	got := []string{n.next("Cube"), n.next("cube"), n.next(""), n.next(".."), n.next("Cube_1"), n.next("Ümlaut")}
	want := []string{"Cube", "cube_1", "mesh", "mesh_1", "Cube_1_1", "_mlaut"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("next %d = %q, want %q", i, got[i], want[i])
		}
	}
}
