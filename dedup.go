package bmesh

import (
	"math"

	"github.com/flywave/go3d/vec2"
	"github.com/flywave/go3d/vec3"
)

// KEY_PRECISION is the number of decimal places corners are rounded to before
// they are compared.
const KEY_PRECISION = 6

var keyScale = math.Pow10(KEY_PRECISION)

// Corner is the attribute tuple of one triangle corner. A nil UV means the
// source has no UV layer and reads as (0,0).
type Corner struct {
	Position vec3.T
	Normal   vec3.T
	UV       *vec2.T
}

func (c *Corner) vertex() Vertex {
	v := Vertex{Position: c.Position, Normal: c.Normal}
	if c.UV != nil {
		v.UV = *c.UV
	}
	return v
}

// Triangle holds the corners of one face. A nil corner marks an attribute
// lookup that failed upstream.
type Triangle []*Corner

// TriangleSource enumerates triangles lazily.
type TriangleSource interface {
	EnumerateTriangles(fn func(tri Triangle)) error
}

type dedupKey [8]uint64

// quantize rounds f to KEY_PRECISION decimals and returns the bits of the
// scaled value. The scaled value stays a float64 so no float32 overflows it;
// -0 folds into +0.
func quantize(f float32) uint64 {
	q := math.Round(float64(f) * keyScale)
	if q == 0 {
		q = 0
	}
	return math.Float64bits(q)
}

func keyOf(v *Vertex) dedupKey {
	return dedupKey{
		quantize(v.Position[0]), quantize(v.Position[1]), quantize(v.Position[2]),
		quantize(v.Normal[0]), quantize(v.Normal[1]), quantize(v.Normal[2]),
		quantize(v.UV[0]), quantize(v.UV[1]),
	}
}

// Deduplicator folds a triangle stream into a vertex and index buffer. The
// zero value is not usable, see NewDeduplicator.
type Deduplicator struct {
	lookup   map[dedupKey]uint32
	vertices []Vertex
	indices  []uint32
	dropped  int
}

func NewDeduplicator() *Deduplicator {
	return &Deduplicator{lookup: make(map[dedupKey]uint32)}
}

// Add resolves the corners of tri and appends them to the buffers. It reports
// false, and writes nothing, when tri does not have exactly three valid corners.
func (d *Deduplicator) Add(tri Triangle) bool {
	if len(tri) != 3 || tri[0] == nil || tri[1] == nil || tri[2] == nil {
		d.dropped++
		return false
	}
	var resolved [3]uint32
	for i, c := range tri {
		v := c.vertex()
		k := keyOf(&v)
		idx, ok := d.lookup[k]
		if !ok {
			idx = uint32(len(d.vertices))
			d.vertices = append(d.vertices, v)
			d.lookup[k] = idx
		}
		resolved[i] = idx
	}
	d.indices = append(d.indices, resolved[:]...)
	return true
}

func (d *Deduplicator) Vertices() []Vertex {
	return d.vertices
}

func (d *Deduplicator) Indices() []uint32 {
	return d.indices
}

// Dropped is the number of malformed triangles skipped so far.
func (d *Deduplicator) Dropped() int {
	return d.dropped
}

// Deduplicate drains src into a fresh vertex and index buffer. Both buffers
// are non-nil, possibly empty.
func Deduplicate(src TriangleSource) ([]Vertex, []uint32, error) {
	d := NewDeduplicator()
	if err := src.EnumerateTriangles(func(tri Triangle) { d.Add(tri) }); err != nil {
		return nil, nil, err
	}
	vs, is := d.Vertices(), d.Indices()
	if vs == nil {
		vs = []Vertex{}
	}
	if is == nil {
		is = []uint32{}
	}
	return vs, is, nil
}
