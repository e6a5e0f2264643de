package heatmap

import (
	"bytes"
	"errors"
	"image/jpeg"
	"testing"
	"time"
)

func mustRecord(t *testing.T, cameraID string, minute time.Time, h, w int, matrix []float32) MinuteRecord {
	t.Helper()
	blob, err := EncodeMatrix(matrix)
	if err != nil {
		t.Fatalf("EncodeMatrix: %v", err)
	}
	total := 0.0
	max := 0.0
	nonzero := 0
	for _, v := range matrix {
		total += float64(v)
		if float64(v) > max {
			max = float64(v)
		}
		if v > 0 {
			nonzero++
		}
	}
	return MinuteRecord{
		CameraID:       cameraID,
		MinuteStart:    minute,
		Height:         h,
		Width:          w,
		Intensity:      blob,
		FrameCount:     1,
		TotalIntensity: total,
		MaxIntensity:   max,
		NonzeroPixels:  nonzero,
	}
}

func TestAggregateEmptyIsNoData(t *testing.T) {
	_, err := Aggregate(nil)
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("Aggregate(nil) = %v, want ErrNoData", err)
	}
	_, err = RenderAggregate([]MinuteRecord{}, RenderOptions{})
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("RenderAggregate(empty) = %v, want ErrNoData", err)
	}
}

func TestAggregateDoublesTotals(t *testing.T) {
	// Two identical minutes with total 45 each aggregate to 90, average 45.
	matrix := []float32{0, 10, 20, 15}
	rec := mustRecord(t, "cam", testMinute, 2, 2, matrix)
	rec2 := mustRecord(t, "cam", testMinute.Add(time.Minute), 2, 2, matrix)

	agg, err := Aggregate([]MinuteRecord{rec, rec2})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if agg.Minutes != 2 {
		t.Errorf("Minutes = %d, want 2", agg.Minutes)
	}
	if agg.TotalIntensity != 90 {
		t.Errorf("TotalIntensity = %g, want 90", agg.TotalIntensity)
	}
	if agg.AvgIntensity != 45 {
		t.Errorf("AvgIntensity = %g, want 45", agg.AvgIntensity)
	}
	if agg.PeakIntensity != 40 {
		t.Errorf("PeakIntensity = %g, want 40", agg.PeakIntensity)
	}
	want := []float32{0, 20, 40, 30}
	for i, v := range agg.Matrix {
		if v != want[i] {
			t.Errorf("Matrix[%d] = %g, want %g", i, v, want[i])
		}
	}
}

func TestAggregateRejectsShapeMismatch(t *testing.T) {
	a := mustRecord(t, "cam", testMinute, 2, 2, []float32{1, 2, 3, 4})
	b := mustRecord(t, "cam", testMinute.Add(time.Minute), 1, 4, []float32{1, 2, 3, 4})

	_, err := Aggregate([]MinuteRecord{a, b})
	var mismatch *ShapeMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("Aggregate error = %v, want ShapeMismatchError", err)
	}
}

func TestAggregateSurfacesCorruptBlob(t *testing.T) {
	rec := mustRecord(t, "cam", testMinute, 2, 2, []float32{1, 2, 3, 4})
	rec.Intensity = []byte("garbage")

	_, err := Aggregate([]MinuteRecord{rec})
	var corrupt *CorruptDataError
	if !errors.As(err, &corrupt) {
		t.Fatalf("Aggregate error = %v, want CorruptDataError", err)
	}
}

func TestRenderAllZeroMatrix(t *testing.T) {
	rec := mustRecord(t, "cam", testMinute, 4, 4, make([]float32, 16))

	res, err := RenderAggregate([]MinuteRecord{rec}, RenderOptions{})
	if err != nil {
		t.Fatalf("RenderAggregate of all-zero minutes failed: %v", err)
	}

	img, err := jpeg.Decode(bytes.NewReader(res.Image))
	if err != nil {
		t.Fatalf("output is not a decodable JPEG: %v", err)
	}
	if img.Bounds().Dx() != 4 || img.Bounds().Dy() != 4 {
		t.Errorf("image bounds %v, want 4x4", img.Bounds())
	}
}

func TestRenderExtremesMapToScaleEnds(t *testing.T) {
	// One hot pixel at max intensity, rest zero: the hot pixel renders at the
	// red end of the scale, zero pixels at the dark blue base.
	matrix := make([]float32, 180*320)
	matrix[90*320+160] = 50
	rec := mustRecord(t, "cam", testMinute, 180, 320, matrix)

	agg, err := Aggregate([]MinuteRecord{rec})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	img, err := Rasterize(agg)
	if err != nil {
		t.Fatalf("Rasterize: %v", err)
	}

	hot := img.RGBAAt(160, 90)
	if hot.R < 128 || hot.G != 0 || hot.B != 0 {
		t.Errorf("peak pixel = %+v, want red end of scale", hot)
	}
	cold := img.RGBAAt(0, 0)
	if cold.R != 0 || cold.G != 0 || cold.B < 120 {
		t.Errorf("zero pixel = %+v, want dark blue base color", cold)
	}
}

func TestRenderQualityMonotonicSize(t *testing.T) {
	// Regression check on the encoder configuration: for fixed input, output
	// size must not decrease as quality increases.
	matrix := make([]float32, 32*32)
	for i := range matrix {
		matrix[i] = float32(i % 97)
	}
	rec := mustRecord(t, "cam", testMinute, 32, 32, matrix)

	prevSize := -1
	for _, q := range []int{10, 30, 50, 70, 90, 100} {
		res, err := RenderAggregate([]MinuteRecord{rec}, RenderOptions{Quality: q})
		if err != nil {
			t.Fatalf("RenderAggregate(q=%d): %v", q, err)
		}
		if len(res.Image) < prevSize {
			t.Errorf("quality %d produced %d bytes, smaller than previous %d", q, len(res.Image), prevSize)
		}
		prevSize = len(res.Image)
	}
}

func TestRenderDeterministic(t *testing.T) {
	rec := mustRecord(t, "cam", testMinute, 8, 8, func() []float32 {
		m := make([]float32, 64)
		for i := range m {
			m[i] = float32(i)
		}
		return m
	}())

	a, err := RenderAggregate([]MinuteRecord{rec}, RenderOptions{Quality: 90})
	if err != nil {
		t.Fatalf("RenderAggregate: %v", err)
	}
	b, err := RenderAggregate([]MinuteRecord{rec}, RenderOptions{Quality: 90})
	if err != nil {
		t.Fatalf("RenderAggregate: %v", err)
	}
	if !bytes.Equal(a.Image, b.Image) {
		t.Error("identical inputs rendered different bytes")
	}
}
