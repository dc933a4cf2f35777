package bmesh

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
)

// All multi-byte fields of both formats are little-endian.
var le = binary.LittleEndian

// EncodeOptions selects the container variant written by Marshal.
type EncodeOptions struct {
	Format   Format
	Compress bool
	// Level is a compress/zlib level; 0 selects zlib.DefaultCompression.
	Level int
}

func DefaultEncodeOptions() EncodeOptions {
	return EncodeOptions{Format: V1}
}

func (o EncodeOptions) level() int {
	if o.Level == 0 {
		return zlib.DefaultCompression
	}
	return o.Level
}

func writeLittleByte(wt io.Writer, v interface{}) error {
	return binary.Write(wt, le, v)
}

func writeName(wt io.Writer, name string) error {
	if len(name) > MAX_NAME_LENGTH {
		return fmt.Errorf("%w: %d bytes", ErrNameTooLong, len(name))
	}
	if err := writeLittleByte(wt, uint16(len(name))); err != nil {
		return err
	}
	_, err := io.WriteString(wt, name)
	return err
}

// MeshRecordMarshal writes the record body shared by the v1 stream and the v2
// payload: name, transform, counts, vertices, indices.
func MeshRecordMarshal(wt io.Writer, r *MeshRecord) error {
	if len(r.Vertices) > math.MaxUint32 || len(r.Indices) > math.MaxUint32 {
		return fmt.Errorf("record %q: buffer too large", r.Name)
	}
	for _, i := range r.Indices {
		if int(i) >= len(r.Vertices) {
			return fmt.Errorf("record %q: %w: %d >= %d", r.Name, ErrIndexRange, i, len(r.Vertices))
		}
	}
	if err := writeName(wt, r.Name); err != nil {
		return fmt.Errorf("record %q: %w", r.Name, err)
	}
	if err := writeLittleByte(wt, &r.Transform); err != nil {
		return err
	}
	if err := writeLittleByte(wt, uint32(len(r.Vertices))); err != nil {
		return err
	}
	if err := writeLittleByte(wt, uint32(len(r.Indices))); err != nil {
		return err
	}
	if len(r.Vertices) > 0 {
		if err := writeLittleByte(wt, r.Vertices); err != nil {
			return err
		}
	}
	if len(r.Indices) > 0 {
		if err := writeLittleByte(wt, r.Indices); err != nil {
			return err
		}
	}
	return nil
}

func marshalV1(wt *bytes.Buffer, records []*MeshRecord) error {
	if uint64(len(records)) > math.MaxUint32 {
		return fmt.Errorf("%w: %d records", ErrRecordCount, len(records))
	}
	var body bytes.Buffer
	for _, r := range records {
		if err := MeshRecordMarshal(&body, r); err != nil {
			return err
		}
	}
	wt.WriteString(MESH_SIGNATURE_V1)
	wt.WriteByte(byte(V1))
	writeLittleByte(wt, uint32(len(records)))
	wt.Write(body.Bytes())
	return nil
}

// MarshalPayload returns the uncompressed v2 payload of r.
func MarshalPayload(r *MeshRecord) ([]byte, error) {
	var payload bytes.Buffer
	writeLittleByte(&payload, PAYLOAD_SCHEMA_V1)
	if err := MeshRecordMarshal(&payload, r); err != nil {
		return nil, err
	}
	return payload.Bytes(), nil
}

func marshalV2(wt *bytes.Buffer, r *MeshRecord, opts EncodeOptions) error {
	payload, err := MarshalPayload(r)
	if err != nil {
		return err
	}
	wt.WriteString(MESH_SIGNATURE)
	wt.WriteByte(byte(V2))
	if !opts.Compress {
		wt.WriteByte(0)
		wt.Write(payload)
		return nil
	}
	if uint64(len(payload)) > math.MaxUint32 {
		return fmt.Errorf("record %q: payload too large", r.Name)
	}
	packed, err := CompressPayload(payload, opts.level())
	if err != nil {
		return fmt.Errorf("record %q: compress: %w", r.Name, err)
	}
	if uint64(len(packed)) > math.MaxUint32 {
		return fmt.Errorf("record %q: compressed payload too large", r.Name)
	}
	wt.WriteByte(FLAG_COMPRESSED)
	writeLittleByte(wt, uint32(len(packed)))
	writeLittleByte(wt, uint32(len(payload)))
	wt.Write(packed)
	return nil
}

// Marshal encodes records into a complete container. Nothing is returned
// unless every record serialized.
func Marshal(records []*MeshRecord, opts EncodeOptions) ([]byte, error) {
	var buf bytes.Buffer
	switch opts.Format {
	case V1:
		if opts.Compress {
			return nil, ErrCompressionFormat
		}
		if err := marshalV1(&buf, records); err != nil {
			return nil, err
		}
	case V2:
		if len(records) != 1 {
			return nil, fmt.Errorf("%w: v2 holds one record, got %d", ErrRecordCount, len(records))
		}
		if err := marshalV2(&buf, records[0], opts); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, opts.Format)
	}
	return buf.Bytes(), nil
}

// Encode marshals records and writes them to wt in a single call.
func Encode(wt io.Writer, records []*MeshRecord, opts EncodeOptions) error {
	data, err := Marshal(records, opts)
	if err != nil {
		return err
	}
	_, err = wt.Write(data)
	return err
}

type byteReader struct {
	buf []byte
	off int
}

func (r *byteReader) remaining() int {
	return len(r.buf) - r.off
}

func (r *byteReader) next(n int, what string) ([]byte, error) {
	if n < 0 || r.remaining() < n {
		return nil, fmt.Errorf("%w: %s needs %d bytes at offset %d, %d left", ErrTruncated, what, n, r.off, r.remaining())
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *byteReader) readUint16(what string) (uint16, error) {
	b, err := r.next(2, what)
	if err != nil {
		return 0, err
	}
	return le.Uint16(b), nil
}

func (r *byteReader) readUint32(what string) (uint32, error) {
	b, err := r.next(4, what)
	if err != nil {
		return 0, err
	}
	return le.Uint32(b), nil
}

func readLittleByte(b []byte, v interface{}) error {
	return binary.Read(bytes.NewReader(b), le, v)
}

// meshRecordUnMarshal is the inverse of MeshRecordMarshal. Sizes are checked
// against the remaining input before anything is allocated.
func meshRecordUnMarshal(rd *byteReader) (*MeshRecord, error) {
	r := &MeshRecord{}
	nameLen, err := rd.readUint16("name length")
	if err != nil {
		return nil, err
	}
	name, err := rd.next(int(nameLen), "name")
	if err != nil {
		return nil, err
	}
	r.Name = string(name)

	mt, err := rd.next(transformByteCount, "transform")
	if err != nil {
		return nil, err
	}
	if err := readLittleByte(mt, &r.Transform); err != nil {
		return nil, err
	}

	vertexCount, err := rd.readUint32("vertex count")
	if err != nil {
		return nil, err
	}
	indexCount, err := rd.readUint32("index count")
	if err != nil {
		return nil, err
	}

	vb, err := rd.next(int(uint64(vertexCount)*vertexStride), "vertex data")
	if err != nil {
		return nil, err
	}
	r.Vertices = make([]Vertex, vertexCount)
	if err := readLittleByte(vb, r.Vertices); err != nil {
		return nil, err
	}

	ib, err := rd.next(int(uint64(indexCount)*4), "index data")
	if err != nil {
		return nil, err
	}
	r.Indices = make([]uint32, indexCount)
	for i := range r.Indices {
		r.Indices[i] = le.Uint32(ib[i*4:])
		if r.Indices[i] >= vertexCount {
			return nil, fmt.Errorf("%w: index %d is %d, vertex count %d", ErrIndexRange, i, r.Indices[i], vertexCount)
		}
	}
	return r, nil
}

const minRecordSize = 2 + transformByteCount + 4 + 4

func unmarshalV1(rd *byteReader) (*Container, error) {
	count, err := rd.readUint32("record count")
	if err != nil {
		return nil, err
	}
	capHint := rd.remaining() / minRecordSize
	if int(count) < capHint {
		capHint = int(count)
	}
	ct := &Container{Format: V1, Records: make([]*MeshRecord, 0, capHint)}
	for i := uint32(0); i < count; i++ {
		r, err := meshRecordUnMarshal(rd)
		if err != nil {
			return nil, fmt.Errorf("v1 record %d of %d: %w", i, count, err)
		}
		ct.Records = append(ct.Records, r)
	}
	if rd.remaining() != 0 {
		return nil, fmt.Errorf("v1: %w: %d bytes after %d records", ErrTrailingData, rd.remaining(), count)
	}
	return ct, nil
}

// UnmarshalPayload decodes an uncompressed v2 payload.
func UnmarshalPayload(payload []byte) (*MeshRecord, error) {
	rd := &byteReader{buf: payload}
	schema, err := rd.readUint32("payload schema")
	if err != nil {
		return nil, err
	}
	if schema != PAYLOAD_SCHEMA_V1 {
		return nil, fmt.Errorf("%w: %d", ErrPayloadSchema, schema)
	}
	r, err := meshRecordUnMarshal(rd)
	if err != nil {
		return nil, err
	}
	if rd.remaining() != 0 {
		return nil, fmt.Errorf("%w: %d bytes after payload", ErrTrailingData, rd.remaining())
	}
	return r, nil
}

func unmarshalV2(rd *byteReader) (*Container, error) {
	fb, err := rd.next(1, "flags")
	if err != nil {
		return nil, err
	}
	flags := fb[0]
	if flags&^FLAG_COMPRESSED != 0 {
		return nil, fmt.Errorf("v2: %w: 0x%02x", ErrUnsupportedFlags, flags)
	}
	ct := &Container{Format: V2, Compressed: flags&FLAG_COMPRESSED != 0}
	payload := rd.buf[rd.off:]
	if ct.Compressed {
		clen, err := rd.readUint32("compressed length")
		if err != nil {
			return nil, fmt.Errorf("v2: %w", err)
		}
		ulen, err := rd.readUint32("uncompressed length")
		if err != nil {
			return nil, fmt.Errorf("v2: %w", err)
		}
		packed, err := rd.next(int(clen), "compressed payload")
		if err != nil {
			return nil, fmt.Errorf("v2: %w", err)
		}
		if rd.remaining() != 0 {
			return nil, fmt.Errorf("v2: %w: %d bytes after compressed payload", ErrTrailingData, rd.remaining())
		}
		if payload, err = DecompressPayload(packed, ulen); err != nil {
			return nil, fmt.Errorf("v2: %w", err)
		}
	}
	r, err := UnmarshalPayload(payload)
	if err != nil {
		return nil, fmt.Errorf("v2 payload: %w", err)
	}
	ct.Records = []*MeshRecord{r}
	return ct, nil
}

// Unmarshal decodes a complete container. The variant is picked from the
// header; a v1 stream starts with "BMESH\0" then 1, a v2 file with "BMESH"
// then 2.
func Unmarshal(data []byte) (*Container, error) {
	sig := []byte(MESH_SIGNATURE)
	if len(data) < len(sig) {
		if bytes.HasPrefix(sig, data) {
			return nil, fmt.Errorf("%w: header needs %d bytes, got %d", ErrTruncated, len(sig)+1, len(data))
		}
		return nil, fmt.Errorf("%w: %q", ErrBadMagic, data)
	}
	if !bytes.Equal(data[:len(sig)], sig) {
		return nil, fmt.Errorf("%w: %q", ErrBadMagic, data[:len(sig)])
	}
	rd := &byteReader{buf: data, off: len(sig)}
	tag, err := rd.next(1, "version")
	if err != nil {
		return nil, err
	}
	switch tag[0] {
	case 0:
		vb, err := rd.next(1, "version")
		if err != nil {
			return nil, err
		}
		if Format(vb[0]) != V1 {
			return nil, fmt.Errorf("%w: %d after 6-byte magic", ErrUnsupportedVersion, vb[0])
		}
		return unmarshalV1(rd)
	case byte(V2):
		return unmarshalV2(rd)
	case byte(V1):
		return nil, fmt.Errorf("%w: v1 needs a NUL after %q", ErrBadMagic, MESH_SIGNATURE)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, tag[0])
	}
}

// Decode reads rd to the end and unmarshals it.
func Decode(rd io.Reader) (*Container, error) {
	data, err := io.ReadAll(rd)
	if err != nil {
		return nil, err
	}
	return Unmarshal(data)
}

func ReadFile(path string) (*Container, error) {
	f, e := os.Open(path)
	if e != nil {
		return nil, e
	}
	defer f.Close()
	ct, e := Decode(f)
	if e != nil {
		return nil, fmt.Errorf("%s: %w", path, e)
	}
	return ct, nil
}

// WriteFile encodes records and replaces path with the result. The bytes go to
// a temporary file in the same directory which is renamed over path only once
// complete, so a failed write never leaves a readable partial file.
func WriteFile(path string, records []*MeshRecord, opts EncodeOptions) error {
	data, err := Marshal(records, opts)
	if err != nil {
		return err
	}
	return writeFileAtomic(path, data)
}

func writeFileAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(tmp)
		}
	}()
	if _, err = f.Write(data); err != nil {
		return err
	}
	if err = f.Sync(); err != nil {
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmp, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
