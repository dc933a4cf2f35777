package bmesh

import (
	"errors"

	"github.com/flywave/go3d/mat4"
	"github.com/flywave/go3d/vec2"
	"github.com/flywave/go3d/vec3"
)

const (
	MESH_SIGNATURE     string = "BMESH"
	MESH_SIGNATURE_V1  string = "BMESH\x00"
	BMESHEXT           string = ".bmesh"
	PAYLOAD_SCHEMA_V1  uint32 = 1
	MAX_NAME_LENGTH           = 0xFFFF
	FLAG_COMPRESSED    uint8  = 1 << 0
	vertexStride              = 8 * 4
	transformByteCount        = 16 * 4
)

// Format is the container version byte.
type Format uint8

const (
	V1 Format = 1
	V2 Format = 2
)

func (f Format) Valid() bool {
	return f == V1 || f == V2
}

var (
	ErrBadMagic           = errors.New("bmesh: bad magic")
	ErrUnsupportedVersion = errors.New("bmesh: unsupported version")
	ErrUnsupportedFlags   = errors.New("bmesh: unsupported flags")
	ErrPayloadSchema      = errors.New("bmesh: unknown payload schema")
	ErrTruncated          = errors.New("bmesh: truncated data")
	ErrDecompress         = errors.New("bmesh: decompression failed")
	ErrLengthMismatch     = errors.New("bmesh: decompressed length mismatch")
	ErrTrailingData       = errors.New("bmesh: trailing data")
	ErrNameTooLong        = errors.New("bmesh: name too long")
	ErrRecordCount        = errors.New("bmesh: record count not valid for format")
	ErrIndexRange         = errors.New("bmesh: index out of range")
	ErrCompressionFormat  = errors.New("bmesh: compression requires format v2")
	ErrNoMesh             = errors.New("bmesh: object yields no mesh")
)

// Vertex is one deduplicated attribute tuple, laid out exactly as on disk.
type Vertex struct {
	Position vec3.T `json:"position"`
	Normal   vec3.T `json:"normal"`
	UV       vec2.T `json:"uv"`
}

// MeshRecord is one exported object.
type MeshRecord struct {
	Name      string   `json:"name"`
	Transform mat4.T   `json:"transform"` // Transform[row][col]
	Vertices  []Vertex `json:"vertices"`
	Indices   []uint32 `json:"indices"`
}

func (r *MeshRecord) VertexCount() int {
	return len(r.Vertices)
}

func (r *MeshRecord) IndexCount() int {
	return len(r.Indices)
}

func (r *MeshRecord) TriangleCount() int {
	return len(r.Indices) / 3
}

// Container is a decoded BMESH file.
type Container struct {
	Format     Format        `json:"format"`
	Compressed bool          `json:"compressed"`
	Records    []*MeshRecord `json:"records"`
}
