package heatmap

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// The persisted blob layout is fixed and shared with the existing store:
// row-major float32, little-endian, zlib-compressed. Lossless on purpose —
// intensity values are an analytical time series that must re-aggregate
// exactly and survive future colormap changes, unlike the rendered JPEG.

const bytesPerElement = 4

// compressionLevel trades speed against size the same way the original store
// writer did.
const compressionLevel = 6

// EncodeMatrix serialises a matrix to its compressed blob form.
func EncodeMatrix(m []float32) ([]byte, error) {
	raw := make([]byte, len(m)*bytesPerElement)
	for i, v := range m {
		binary.LittleEndian.PutUint32(raw[i*bytesPerElement:], math.Float32bits(v))
	}

	var buf bytes.Buffer
	zw, err := zlib.NewWriterLevel(&buf, compressionLevel)
	if err != nil {
		return nil, fmt.Errorf("init compressor: %w", err)
	}
	if _, err := zw.Write(raw); err != nil {
		return nil, fmt.Errorf("compress matrix: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("flush compressor: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeMatrix reconstructs a height x width matrix from a compressed blob.
// The decompressed payload must be exactly height*width*4 bytes; any mismatch
// is a *CorruptDataError.
func DecodeMatrix(blob []byte, height, width int) ([]float32, error) {
	if height <= 0 || width <= 0 {
		return nil, &CorruptDataError{Reason: "non-positive shape", Got: height * width, Want: 1}
	}

	zr, err := zlib.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, &CorruptDataError{Reason: "not a zlib stream", Got: len(blob), Want: 0}
	}
	defer zr.Close()

	want := height * width * bytesPerElement
	raw := make([]byte, 0, want)
	// Read with a hard cap one byte past the expected size so oversized
	// payloads are detected without buffering arbitrary data.
	limited := io.LimitReader(zr, int64(want)+1)
	chunk := make([]byte, 32*1024)
	for {
		n, err := limited.Read(chunk)
		raw = append(raw, chunk[:n]...)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &CorruptDataError{Reason: "inflate failed", Got: len(raw), Want: want}
		}
	}
	if len(raw) != want {
		return nil, &CorruptDataError{Reason: "payload length mismatch", Got: len(raw), Want: want}
	}

	m := make([]float32, height*width)
	for i := range m {
		m[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*bytesPerElement:]))
	}
	return m, nil
}
