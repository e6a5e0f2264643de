package heatmap

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/floats"
)

// MinuteAccumulator folds a segment's per-frame motion matrices into one
// minute record. Intensity is an elementwise sum across frames — a cumulative
// activity measure, not an instantaneous one.
type MinuteAccumulator struct {
	cameraID    string
	minuteStart time.Time
	width       int
	height      int

	sum    []float64 // accumulated at float64 to avoid drift over a minute of frames
	frames int
}

// NewMinuteAccumulator creates an accumulator for one (camera, minute) bucket
// at the given working resolution.
func NewMinuteAccumulator(cameraID string, minuteStart time.Time, width, height int) (*MinuteAccumulator, error) {
	if cameraID == "" {
		return nil, fmt.Errorf("camera id is required")
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid working resolution %dx%d", width, height)
	}
	return &MinuteAccumulator{
		cameraID:    cameraID,
		minuteStart: minuteStart.UTC().Truncate(time.Minute),
		width:       width,
		height:      height,
		sum:         make([]float64, width*height),
	}, nil
}

// MinuteStart returns the bucket this accumulator is scoped to.
func (a *MinuteAccumulator) MinuteStart() time.Time { return a.minuteStart }

// FrameCount returns the number of frames folded so far.
func (a *MinuteAccumulator) FrameCount() int { return a.frames }

// Add folds one motion matrix into the accumulator. The matrix must match the
// accumulator's working resolution.
func (a *MinuteAccumulator) Add(m []float32) error {
	if len(m) != a.width*a.height {
		return &ShapeMismatchError{
			CameraID: a.cameraID,
			WantH:    a.height, WantW: a.width,
			GotH: len(m) / a.width, GotW: a.width,
		}
	}
	for i, v := range m {
		a.sum[i] += float64(v)
	}
	a.frames++
	return nil
}

// Finalize encodes the accumulated matrix and derives the cached scalar
// stats. A minute with zero usable frames yields a valid all-zero record with
// FrameCount 0; whether it is persisted is the caller's policy.
func (a *MinuteAccumulator) Finalize(downscaleFactor float64, sourceSegment string, processedAt time.Time) (*MinuteRecord, error) {
	// Stats are derived from the float32 matrix that is actually persisted,
	// not the float64 accumulator, so a decode-and-recompute always agrees
	// with the cached values.
	matrix := make([]float32, len(a.sum))
	stats := make([]float64, len(a.sum))
	nonzero := 0
	for i, v := range a.sum {
		matrix[i] = float32(v)
		stats[i] = float64(matrix[i])
		if matrix[i] > 0 {
			nonzero++
		}
	}

	blob, err := EncodeMatrix(matrix)
	if err != nil {
		return nil, fmt.Errorf("encode minute %s/%s: %w", a.cameraID, a.minuteStart.Format(time.RFC3339), err)
	}

	total := floats.Sum(stats)
	max := 0.0
	if len(stats) > 0 {
		max = floats.Max(stats)
	}

	return &MinuteRecord{
		CameraID:        a.cameraID,
		MinuteStart:     a.minuteStart,
		Height:          a.height,
		Width:           a.width,
		DownscaleFactor: downscaleFactor,
		Intensity:       blob,
		FrameCount:      a.frames,
		TotalIntensity:  total,
		MaxIntensity:    max,
		NonzeroPixels:   nonzero,
		SourceSegment:   sourceSegment,
		ProcessedAt:     processedAt.UTC(),
	}, nil
}
