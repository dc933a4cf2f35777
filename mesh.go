package bmesh

import (
	"math"

	"github.com/flywave/go3d/mat4"
	"github.com/flywave/go3d/vec3"

	dvec3 "github.com/flywave/go3d/float64/vec3"
)

// MeshObject is what a host adapter must provide for one exported object.
type MeshObject interface {
	TriangleSource
	Name() string
	Transform() mat4.T
}

// MemoryObject is a MeshObject backed by an in-memory triangle list.
type MemoryObject struct {
	ObjName   string
	Matrix    mat4.T
	Triangles []Triangle
	Err       error
}

func NewMemoryObject(name string) *MemoryObject {
	return &MemoryObject{ObjName: name, Matrix: mat4.Ident}
}

func (o *MemoryObject) Name() string {
	return o.ObjName
}

func (o *MemoryObject) Transform() mat4.T {
	return o.Matrix
}

func (o *MemoryObject) EnumerateTriangles(fn func(tri Triangle)) error {
	if o.Err != nil {
		return o.Err
	}
	for _, t := range o.Triangles {
		fn(t)
	}
	return nil
}

// AddTriangle appends a fully resolved triangle.
func (o *MemoryObject) AddTriangle(a, b, c Corner) {
	o.Triangles = append(o.Triangles, Triangle{&a, &b, &c})
}

// BuildRecord deduplicates obj into a MeshRecord.
func BuildRecord(obj MeshObject) (*MeshRecord, error) {
	vs, is, err := Deduplicate(obj)
	if err != nil {
		return nil, err
	}
	return &MeshRecord{
		Name:      obj.Name(),
		Transform: obj.Transform(),
		Vertices:  vs,
		Indices:   is,
	}, nil
}

// Corners expands the index buffer back into per-corner vertices.
func (r *MeshRecord) Corners() []Vertex {
	out := make([]Vertex, 0, len(r.Indices))
	for _, i := range r.Indices {
		out = append(out, r.Vertices[i])
	}
	return out
}

// GetBoundbox returns min xyz followed by max xyz of the vertex positions.
func (r *MeshRecord) GetBoundbox() *[6]float64 {
	minX := math.MaxFloat64
	minY := math.MaxFloat64
	minZ := math.MaxFloat64
	maxX := -math.MaxFloat64
	maxY := -math.MaxFloat64
	maxZ := -math.MaxFloat64
	for i := range r.Vertices {
		p := r.Vertices[i].Position
		minX = math.Min(minX, float64(p[0]))
		minY = math.Min(minY, float64(p[1]))
		minZ = math.Min(minZ, float64(p[2]))

		maxX = math.Max(maxX, float64(p[0]))
		maxY = math.Max(maxY, float64(p[1]))
		maxZ = math.Max(maxZ, float64(p[2]))
	}
	return &[6]float64{minX, minY, minZ, maxX, maxY, maxZ}
}

// Stats sums vertex and index counts over all records.
type Stats struct {
	Records  int
	Vertices int
	Indices  int
}

func (c *Container) Stats() Stats {
	s := Stats{Records: len(c.Records)}
	for _, r := range c.Records {
		s.Vertices += len(r.Vertices)
		s.Indices += len(r.Indices)
	}
	return s
}

// ComputeBBox joins the local-space bounds of every non-empty record.
func (c *Container) ComputeBBox() dvec3.Box {
	bbox := dvec3.MinBox
	empty := true
	for _, r := range c.Records {
		if len(r.Vertices) == 0 {
			continue
		}
		bx := r.GetBoundbox()
		bbx := dvec3.Box{Min: dvec3.T{bx[0], bx[1], bx[2]}, Max: dvec3.T{bx[3], bx[4], bx[5]}}
		bbox.Join(&bbx)
		empty = false
	}
	if empty {
		return dvec3.Box{}
	}
	return bbox
}

// faceNormal is the unit normal of the triangle (p1, p2, p3), or +Z when the
// triangle has no area.
func faceNormal(p1, p2, p3 vec3.T) vec3.T {
	sub1 := vec3.Sub(&p2, &p1)
	sub2 := vec3.Sub(&p3, &p1)
	cro := vec3.Cross(&sub1, &sub2)
	l := cro.Length()
	if l == 0 {
		return vec3.T{0, 0, 1}
	}
	return *cro.Scale(1 / l)
}
