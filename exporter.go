package bmesh

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
)

// Summary reports what an export wrote.
type Summary struct {
	Objects  int
	Skipped  int
	Vertices int
	Indices  int
	Files    []string
}

func (s *Summary) add(r *MeshRecord) {
	s.Objects++
	s.Vertices += len(r.Vertices)
	s.Indices += len(r.Indices)
}

// Exporter runs evaluate, deduplicate, encode and write for a list of
// objects, one object at a time.
type Exporter struct {
	Options EncodeOptions
	Logger  *log.Logger
}

func NewExporter(opts EncodeOptions, logger *log.Logger) *Exporter {
	if logger == nil {
		logger = log.Default()
	}
	return &Exporter{Options: opts, Logger: logger}
}

func (e *Exporter) buildRecord(obj MeshObject) (*MeshRecord, bool) {
	rec, err := BuildRecord(obj)
	if err != nil {
		e.Logger.Warn("skipping object", "name", obj.Name(), "err", err)
		return nil, false
	}
	e.Logger.Debug("built record", "name", rec.Name, "vertices", len(rec.Vertices), "indices", len(rec.Indices))
	return rec, true
}

// Build deduplicates every object. Objects whose triangles cannot be
// enumerated are logged and left out.
func (e *Exporter) Build(objs []MeshObject) ([]*MeshRecord, Summary) {
	var sum Summary
	records := make([]*MeshRecord, 0, len(objs))
	for _, obj := range objs {
		rec, ok := e.buildRecord(obj)
		if !ok {
			sum.Skipped++
			continue
		}
		records = append(records, rec)
		sum.add(rec)
	}
	return records, sum
}

// Export writes objs to output. With v1 output is a single container file
// holding every object; with v2 it is a directory receiving one file per
// object. An encode or I/O failure aborts the export.
func (e *Exporter) Export(objs []MeshObject, output string) (Summary, error) {
	switch e.Options.Format {
	case V1:
		return e.exportV1(objs, output)
	case V2:
		return e.exportV2(objs, output)
	default:
		return Summary{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, e.Options.Format)
	}
}

func (e *Exporter) exportV1(objs []MeshObject, output string) (Summary, error) {
	records, sum := e.Build(objs)
	if err := WriteFile(output, records, e.Options); err != nil {
		return Summary{Skipped: sum.Skipped}, fmt.Errorf("write %s: %w", output, err)
	}
	sum.Files = []string{output}
	e.Logger.Info("exported", "objects", sum.Objects, "skipped", sum.Skipped,
		"vertices", sum.Vertices, "indices", sum.Indices, "file", output)
	return sum, nil
}

func (e *Exporter) exportV2(objs []MeshObject, dir string) (Summary, error) {
	var sum Summary
	names := newFileNamer()
	for _, obj := range objs {
		rec, ok := e.buildRecord(obj)
		if !ok {
			sum.Skipped++
			continue
		}
		path := filepath.Join(dir, names.next(rec.Name)+BMESHEXT)
		if err := WriteFile(path, []*MeshRecord{rec}, e.Options); err != nil {
			return sum, fmt.Errorf("object %q: write %s: %w", rec.Name, path, err)
		}
		sum.add(rec)
		sum.Files = append(sum.Files, path)
		e.Logger.Debug("wrote", "name", rec.Name, "file", path)
	}
	e.Logger.Info("exported", "objects", sum.Objects, "skipped", sum.Skipped,
		"vertices", sum.Vertices, "indices", sum.Indices, "dir", dir)
	return sum, nil
}

type fileNamer struct {
	used map[string]int
}

func newFileNamer() *fileNamer {
	return &fileNamer{used: make(map[string]int)}
}

// next maps an object name to a unique, path-safe file stem.
func (n *fileNamer) next(name string) string {
	stem := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-', r == '_', r == '.':
			return r
		}
		return '_'
	}, name)
	stem = strings.Trim(stem, ".")
	if stem == "" {
		stem = "mesh"
	}
	key := strings.ToLower(stem)
	c := n.used[key]
	n.used[key] = c + 1
	if c == 0 {
		return stem
	}
	return n.next(fmt.Sprintf("%s_%d", stem, c))
}
