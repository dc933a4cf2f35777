package bmesh

import (
	"bytes"
	"encoding/binary"

	"github.com/qmuntal/gltf"
)

const GLTF_VERSION = "2.0"

// RecordsToGltf converts decoded records to a glTF document, one node and one
// mesh per record.
func RecordsToGltf(records []*MeshRecord) (*gltf.Document, error) {
	doc := CreateDoc()
	for _, r := range records {
		if err := BuildGltf(doc, r); err != nil {
			return nil, err
		}
	}
	if len(doc.Buffers[0].Data) == 0 {
		doc.Buffers = nil
	}
	return doc, nil
}

func CreateDoc() *gltf.Document {
	doc := &gltf.Document{}
	doc.Asset.Version = GLTF_VERSION
	doc.Asset.Generator = "go-bmesh"
	srcIndex := uint32(0)
	doc.Scene = &srcIndex
	doc.Scenes = append(doc.Scenes, &gltf.Scene{})
	doc.Buffers = append(doc.Buffers, &gltf.Buffer{})
	return doc
}

// calcPadding is the number of bytes that brings offset to a multiple of unit.
func calcPadding(offset, unit int) int {
	return (unit - offset%unit) % unit
}

// GetGltfBinary encodes doc as GLB, space padded to a multiple of paddingUnit.
func GetGltfBinary(doc *gltf.Document, paddingUnit int) ([]byte, error) {
	var buf bytes.Buffer
	enc := gltf.NewEncoder(&buf)
	enc.AsBinary = true
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	if padding := calcPadding(buf.Len(), paddingUnit); padding > 0 {
		buf.Write(bytes.Repeat([]byte{0x20}, padding))
	}
	return buf.Bytes(), nil
}

// appendView writes v at the end of buffer 0 and registers a buffer view for
// it, 4-byte aligned.
func appendView(doc *gltf.Document, v interface{}, target gltf.Target) uint32 {
	buffer := doc.Buffers[0]
	if pad := calcPadding(len(buffer.Data), 4); pad > 0 {
		buffer.Data = append(buffer.Data, make([]byte, pad)...)
	}
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, v)
	view := &gltf.BufferView{
		Buffer:     0,
		ByteOffset: uint32(len(buffer.Data)),
		ByteLength: uint32(buf.Len()),
		Target:     target,
	}
	buffer.Data = append(buffer.Data, buf.Bytes()...)
	buffer.ByteLength = uint32(len(buffer.Data))
	doc.BufferViews = append(doc.BufferViews, view)
	return uint32(len(doc.BufferViews) - 1)
}

func appendAccessor(doc *gltf.Document, acc *gltf.Accessor) uint32 {
	doc.Accessors = append(doc.Accessors, acc)
	return uint32(len(doc.Accessors) - 1)
}

// BuildGltf appends one record to doc. The record transform becomes the node
// matrix, converted to glTF column-major order.
func BuildGltf(doc *gltf.Document, r *MeshRecord) error {
	mesh := &gltf.Mesh{Name: r.Name}
	if len(r.Vertices) > 0 && len(r.Indices) > 0 {
		positions := make([][3]float32, len(r.Vertices))
		normals := make([][3]float32, len(r.Vertices))
		uvs := make([][2]float32, len(r.Vertices))
		for i, v := range r.Vertices {
			positions[i] = v.Position
			normals[i] = v.Normal
			uvs[i] = v.UV
		}

		bvPos := appendView(doc, positions, gltf.TargetArrayBuffer)
		bvNl := appendView(doc, normals, gltf.TargetArrayBuffer)
		bvTexc := appendView(doc, uvs, gltf.TargetArrayBuffer)
		bvIdx := appendView(doc, r.Indices, gltf.TargetElementArrayBuffer)

		box := r.GetBoundbox()
		posacc := appendAccessor(doc, &gltf.Accessor{
			BufferView:    &bvPos,
			ComponentType: gltf.ComponentFloat,
			Type:          gltf.AccessorVec3,
			Count:         uint32(len(r.Vertices)),
			Min:           []float32{float32(box[0]), float32(box[1]), float32(box[2])},
			Max:           []float32{float32(box[3]), float32(box[4]), float32(box[5])},
		})
		nlacc := appendAccessor(doc, &gltf.Accessor{
			BufferView:    &bvNl,
			ComponentType: gltf.ComponentFloat,
			Type:          gltf.AccessorVec3,
			Count:         uint32(len(r.Vertices)),
		})
		texacc := appendAccessor(doc, &gltf.Accessor{
			BufferView:    &bvTexc,
			ComponentType: gltf.ComponentFloat,
			Type:          gltf.AccessorVec2,
			Count:         uint32(len(r.Vertices)),
		})
		indexacc := appendAccessor(doc, &gltf.Accessor{
			BufferView:    &bvIdx,
			ComponentType: gltf.ComponentUint,
			Type:          gltf.AccessorScalar,
			Count:         uint32(len(r.Indices)),
		})

		mesh.Primitives = append(mesh.Primitives, &gltf.Primitive{
			Attributes: gltf.Attribute{
				"POSITION":   posacc,
				"NORMAL":     nlacc,
				"TEXCOORD_0": texacc,
			},
			Indices: &indexacc,
			Mode:    gltf.PrimitiveTriangles,
		})
	}

	nde := &gltf.Node{Name: r.Name}
	for c := 0; c < 4; c++ {
		for row := 0; row < 4; row++ {
			nde.Matrix[c*4+row] = r.Transform[row][c]
		}
	}
	if len(mesh.Primitives) > 0 {
		l := uint32(len(doc.Meshes))
		nde.Mesh = &l
		doc.Meshes = append(doc.Meshes, mesh)
	}
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, uint32(len(doc.Nodes)))
	doc.Nodes = append(doc.Nodes, nde)
	return nil
}
