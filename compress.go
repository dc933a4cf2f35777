package bmesh

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
)

func CompressPayload(buf []byte, level int) ([]byte, error) {
	var bt []byte
	bf := bytes.NewBuffer(bt)
	w, err := zlib.NewWriterLevel(bf, level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(buf); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return bf.Bytes(), nil
}

// DecompressPayload inflates src and requires exactly size bytes out. The
// zlib checksum is verified.
func DecompressPayload(src []byte, size uint32) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecompress, err)
	}
	defer r.Close()
	out, err := io.ReadAll(io.LimitReader(r, int64(size)+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecompress, err)
	}
	if len(out) != int(size) {
		return nil, fmt.Errorf("%w: got %d bytes, header says %d", ErrLengthMismatch, len(out), size)
	}
	return out, nil
}
