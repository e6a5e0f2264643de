package heatmap

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []struct {
		name   string
		h, w   int
		matrix []float32
	}{
		{"2x2", 2, 2, []float32{0, 10, 20, 30}},
		{"all zero", 3, 4, make([]float32, 12)},
		{"fractional", 1, 5, []float32{0.5, 1.25, 3.75, 100.001, 0}},
		{"single element", 1, 1, []float32{42}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			blob, err := EncodeMatrix(tc.matrix)
			if err != nil {
				t.Fatalf("EncodeMatrix: %v", err)
			}
			got, err := DecodeMatrix(blob, tc.h, tc.w)
			if err != nil {
				t.Fatalf("DecodeMatrix: %v", err)
			}
			if diff := cmp.Diff(tc.matrix, got); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRoundTripIsLossless(t *testing.T) {
	// Exercise awkward float32 values; the codec must be bit-exact.
	matrix := []float32{
		math.Float32frombits(0x00000001), // smallest subnormal
		math.MaxFloat32,
		1.0 / 3.0,
		59.999996,
	}
	blob, err := EncodeMatrix(matrix)
	if err != nil {
		t.Fatalf("EncodeMatrix: %v", err)
	}
	got, err := DecodeMatrix(blob, 1, 4)
	if err != nil {
		t.Fatalf("DecodeMatrix: %v", err)
	}
	for i := range matrix {
		if math.Float32bits(got[i]) != math.Float32bits(matrix[i]) {
			t.Errorf("element %d: bits %08x, want %08x", i, math.Float32bits(got[i]), math.Float32bits(matrix[i]))
		}
	}
}

func TestBlobLayoutIsLittleEndianRowMajor(t *testing.T) {
	// The wire format is shared with an existing store; pin it down.
	blob, err := EncodeMatrix([]float32{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("EncodeMatrix: %v", err)
	}
	zr, err := zlib.NewReader(bytes.NewReader(blob))
	if err != nil {
		t.Fatalf("blob is not a zlib stream: %v", err)
	}
	defer zr.Close()

	raw := make([]byte, 16)
	if _, err := io.ReadFull(zr, raw); err != nil {
		t.Fatalf("read payload: %v", err)
	}
	for i, want := range []float32{1, 2, 3, 4} {
		bits := binary.LittleEndian.Uint32(raw[i*4:])
		if math.Float32frombits(bits) != want {
			t.Errorf("element %d = %g, want %g", i, math.Float32frombits(bits), want)
		}
	}
}

func TestDecodeRejectsLengthMismatch(t *testing.T) {
	blob, err := EncodeMatrix([]float32{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("EncodeMatrix: %v", err)
	}

	for _, shape := range []struct{ h, w int }{{2, 3}, {1, 1}, {4, 4}} {
		if _, err := DecodeMatrix(blob, shape.h, shape.w); err == nil {
			t.Errorf("DecodeMatrix with shape %dx%d succeeded, want CorruptDataError", shape.h, shape.w)
		} else {
			var corrupt *CorruptDataError
			if !errors.As(err, &corrupt) {
				t.Errorf("shape %dx%d: error %v is not a CorruptDataError", shape.h, shape.w, err)
			}
		}
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	var corrupt *CorruptDataError
	_, err := DecodeMatrix([]byte("not a zlib stream"), 2, 2)
	if !errors.As(err, &corrupt) {
		t.Fatalf("error %v is not a CorruptDataError", err)
	}
}

func TestDecodeRejectsTruncatedStream(t *testing.T) {
	blob, err := EncodeMatrix(make([]float32, 256))
	if err != nil {
		t.Fatalf("EncodeMatrix: %v", err)
	}
	var corrupt *CorruptDataError
	if _, err := DecodeMatrix(blob[:len(blob)/2], 16, 16); !errors.As(err, &corrupt) {
		t.Fatalf("truncated blob error %v is not a CorruptDataError", err)
	}
}
