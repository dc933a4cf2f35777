package bmesh

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/flywave/go3d/mat4"
	"github.com/flywave/go3d/vec2"
	"github.com/flywave/go3d/vec3"
	"github.com/flywave/go3d/vec4"

	"github.com/qmuntal/gltf"
)

// GltfScene adapts a glTF document to MeshObjects, one per node that
// references a mesh.
type GltfScene struct {
	doc     *gltf.Document
	objects []MeshObject
}

func OpenGltf(path string) (*GltfScene, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, err
	}
	return NewGltfScene(doc), nil
}

func NewGltfScene(doc *gltf.Document) *GltfScene {
	s := &GltfScene{doc: doc}
	visited := make(map[uint32]bool)
	for _, root := range sceneRoots(doc) {
		s.walk(root, mat4.Ident, visited)
	}
	return s
}

func (s *GltfScene) Objects() []MeshObject {
	return s.objects
}

func sceneRoots(doc *gltf.Document) []uint32 {
	if len(doc.Scenes) > 0 {
		idx := uint32(0)
		if doc.Scene != nil && int(*doc.Scene) < len(doc.Scenes) {
			idx = *doc.Scene
		}
		return doc.Scenes[idx].Nodes
	}
	isChild := make(map[uint32]bool)
	for _, nd := range doc.Nodes {
		for _, c := range nd.Children {
			isChild[c] = true
		}
	}
	var roots []uint32
	for i := range doc.Nodes {
		if !isChild[uint32(i)] {
			roots = append(roots, uint32(i))
		}
	}
	return roots
}

func (s *GltfScene) walk(id uint32, parent mat4.T, visited map[uint32]bool) {
	if int(id) >= len(s.doc.Nodes) || visited[id] {
		return
	}
	visited[id] = true
	nd := s.doc.Nodes[id]
	local := nodeMatrix(nd)
	world := mulMat(&parent, &local)
	if nd.Mesh != nil && int(*nd.Mesh) < len(s.doc.Meshes) {
		name := nd.Name
		mh := s.doc.Meshes[*nd.Mesh]
		if name == "" {
			name = mh.Name
		}
		if name == "" {
			name = fmt.Sprintf("node_%d", id)
		}
		s.objects = append(s.objects, &gltfObject{doc: s.doc, mesh: mh, name: name, transform: world})
	}
	for _, c := range nd.Children {
		s.walk(c, world, visited)
	}
}

var (
	identityMatrix = [16]float32{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}
	emptyMatrix    = [16]float32{}
)

// nodeMatrix returns the local transform of nd in row-major order. glTF
// matrices are column-major. Decoded nodes already carry the default TRS; a
// node built in code with no transform at all is the identity.
func nodeMatrix(nd *gltf.Node) mat4.T {
	if nd.Matrix != emptyMatrix && nd.Matrix != identityMatrix {
		m := mat4.T{}
		for c := 0; c < 4; c++ {
			for r := 0; r < 4; r++ {
				m[r][c] = nd.Matrix[c*4+r]
			}
		}
		return m
	}
	if nd.Translation == [3]float32{} && nd.Rotation == [4]float32{} && nd.Scale == [3]float32{} {
		return mat4.Ident
	}
	return composeTRS(nd.Translation, nd.Rotation, nd.Scale)
}

// composeTRS builds T * R * S. A zero quaternion yields no rotation.
func composeTRS(t [3]float32, q [4]float32, s [3]float32) mat4.T {
	x, y, z, w := q[0], q[1], q[2], q[3]
	rot := [3][3]float32{
		{1 - 2*(y*y+z*z), 2 * (x*y - z*w), 2 * (x*z + y*w)},
		{2 * (x*y + z*w), 1 - 2*(x*x+z*z), 2 * (y*z - x*w)},
		{2 * (x*z - y*w), 2 * (y*z + x*w), 1 - 2*(x*x+y*y)},
	}
	m := mat4.T{}
	for r := 0; r < 3; r++ {
		m[r] = vec4.T{rot[r][0] * s[0], rot[r][1] * s[1], rot[r][2] * s[2], t[r]}
	}
	m[3] = vec4.T{0, 0, 0, 1}
	return m
}

func mulMat(a, b *mat4.T) mat4.T {
	var m mat4.T
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			var sum float32
			for k := 0; k < 4; k++ {
				sum += a[r][k] * b[k][c]
			}
			m[r][c] = sum
		}
	}
	return m
}

type gltfObject struct {
	doc       *gltf.Document
	mesh      *gltf.Mesh
	name      string
	transform mat4.T
}

func (o *gltfObject) Name() string {
	return o.name
}

func (o *gltfObject) Transform() mat4.T {
	return o.transform
}

// EnumerateTriangles walks every triangle-list primitive of the mesh. A mesh
// without any POSITION data yields ErrNoMesh.
func (o *gltfObject) EnumerateTriangles(fn func(tri Triangle)) error {
	found := false
	for pi, ps := range o.mesh.Primitives {
		if ps.Mode != gltf.PrimitiveTriangles {
			continue
		}
		posIdx, ok := ps.Attributes["POSITION"]
		if !ok {
			continue
		}
		pos, err := readVec3(o.doc, posIdx)
		if err != nil {
			return fmt.Errorf("primitive %d: POSITION: %w", pi, err)
		}
		found = true

		var normals []vec3.T
		if idx, ok := ps.Attributes["NORMAL"]; ok {
			if normals, err = readVec3(o.doc, idx); err != nil {
				return fmt.Errorf("primitive %d: NORMAL: %w", pi, err)
			}
		}
		var uvs []vec2.T
		if idx, ok := ps.Attributes["TEXCOORD_0"]; ok {
			if uvs, err = readVec2(o.doc, idx); err != nil {
				return fmt.Errorf("primitive %d: TEXCOORD_0: %w", pi, err)
			}
		}

		var indices []uint32
		if ps.Indices != nil {
			if indices, err = readIndices(o.doc, *ps.Indices); err != nil {
				return fmt.Errorf("primitive %d: indices: %w", pi, err)
			}
		} else {
			indices = make([]uint32, len(pos))
			for i := range indices {
				indices[i] = uint32(i)
			}
		}

		corner := func(i uint32) *Corner {
			if int(i) >= len(pos) {
				return nil
			}
			c := &Corner{Position: pos[i]}
			if normals != nil {
				if int(i) >= len(normals) {
					return nil
				}
				c.Normal = normals[i]
			}
			if uvs != nil {
				if int(i) >= len(uvs) {
					return nil
				}
				uv := uvs[i]
				c.UV = &uv
			}
			return c
		}

		for t := 0; t+2 < len(indices); t += 3 {
			tri := Triangle{corner(indices[t]), corner(indices[t+1]), corner(indices[t+2])}
			if normals == nil && tri[0] != nil && tri[1] != nil && tri[2] != nil {
				n := faceNormal(tri[0].Position, tri[1].Position, tri[2].Position)
				for _, c := range tri {
					c.Normal = n
				}
			}
			fn(tri)
		}
	}
	if !found {
		return fmt.Errorf("mesh %q: %w", o.mesh.Name, ErrNoMesh)
	}
	return nil
}

// accessorElements slices the raw bytes of every element of an accessor,
// honouring the buffer view stride. A nil element means all zeros.
func accessorElements(doc *gltf.Document, id uint32, elemSize int) ([][]byte, error) {
	if int(id) >= len(doc.Accessors) {
		return nil, fmt.Errorf("accessor %d out of range", id)
	}
	acc := doc.Accessors[id]
	out := make([][]byte, acc.Count)
	if acc.BufferView == nil {
		return out, nil
	}
	if int(*acc.BufferView) >= len(doc.BufferViews) {
		return nil, fmt.Errorf("buffer view %d out of range", *acc.BufferView)
	}
	view := doc.BufferViews[*acc.BufferView]
	if int(view.Buffer) >= len(doc.Buffers) {
		return nil, fmt.Errorf("buffer %d out of range", view.Buffer)
	}
	data := doc.Buffers[view.Buffer].Data
	stride := int(view.ByteStride)
	if stride == 0 {
		stride = elemSize
	}
	base := int(view.ByteOffset) + int(acc.ByteOffset)
	end := int(view.ByteOffset) + int(view.ByteLength)
	if end > len(data) {
		end = len(data)
	}
	for i := range out {
		off := base + i*stride
		if off+elemSize > end {
			return nil, fmt.Errorf("accessor %d element %d past end of buffer view", id, i)
		}
		out[i] = data[off : off+elemSize]
	}
	return out, nil
}

func readFloats(doc *gltf.Document, id uint32, want gltf.AccessorType, n int) ([][]byte, error) {
	if int(id) >= len(doc.Accessors) {
		return nil, fmt.Errorf("accessor %d out of range", id)
	}
	acc := doc.Accessors[id]
	if acc.ComponentType != gltf.ComponentFloat || acc.Type != want {
		return nil, fmt.Errorf("accessor %d: unsupported layout", id)
	}
	return accessorElements(doc, id, n*4)
}

func float32At(b []byte, i int) float32 {
	if b == nil {
		return 0
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
}

func readVec3(doc *gltf.Document, id uint32) ([]vec3.T, error) {
	els, err := readFloats(doc, id, gltf.AccessorVec3, 3)
	if err != nil {
		return nil, err
	}
	out := make([]vec3.T, len(els))
	for i, b := range els {
		out[i] = vec3.T{float32At(b, 0), float32At(b, 1), float32At(b, 2)}
	}
	return out, nil
}

func readVec2(doc *gltf.Document, id uint32) ([]vec2.T, error) {
	els, err := readFloats(doc, id, gltf.AccessorVec2, 2)
	if err != nil {
		return nil, err
	}
	out := make([]vec2.T, len(els))
	for i, b := range els {
		out[i] = vec2.T{float32At(b, 0), float32At(b, 1)}
	}
	return out, nil
}

func readIndices(doc *gltf.Document, id uint32) ([]uint32, error) {
	if int(id) >= len(doc.Accessors) {
		return nil, fmt.Errorf("accessor %d out of range", id)
	}
	acc := doc.Accessors[id]
	if acc.Type != gltf.AccessorScalar {
		return nil, fmt.Errorf("accessor %d: indices must be scalar", id)
	}
	var size int
	switch acc.ComponentType {
	case gltf.ComponentUbyte:
		size = 1
	case gltf.ComponentUshort:
		size = 2
	case gltf.ComponentUint:
		size = 4
	default:
		return nil, fmt.Errorf("accessor %d: unsupported index component type", id)
	}
	els, err := accessorElements(doc, id, size)
	if err != nil {
		return nil, err
	}
	out := make([]uint32, len(els))
	for i, b := range els {
		if b == nil {
			continue
		}
		switch size {
		case 1:
			out[i] = uint32(b[0])
		case 2:
			out[i] = uint32(binary.LittleEndian.Uint16(b))
		case 4:
			out[i] = binary.LittleEndian.Uint32(b)
		}
	}
	return out, nil
}
