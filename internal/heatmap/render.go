package heatmap

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"time"
)

// RenderOptions configure heatmap rasterisation.
type RenderOptions struct {
	// Quality is the JPEG quality on a 0-100 scale. Higher means larger
	// output and cleaner gradients. Zero selects DefaultQuality.
	Quality int
}

// DefaultQuality is the JPEG quality used when none is requested.
const DefaultQuality = 90

// RenderResult is a rendered heatmap plus the aggregate metadata it was
// built from.
type RenderResult struct {
	Image     []byte // JPEG bytes
	Aggregate AggregateResult
}

// Aggregate decodes and elementwise-sums a set of minute records. Records
// must all share one shape; a mismatch is a *ShapeMismatchError, never a
// silent partial sum. An empty record set returns ErrNoData.
func Aggregate(records []MinuteRecord) (*AggregateResult, error) {
	if len(records) == 0 {
		return nil, ErrNoData
	}

	first := records[0]
	sum := make([]float32, first.Height*first.Width)

	for i := range records {
		rec := &records[i]
		if rec.Height != first.Height || rec.Width != first.Width {
			return nil, &ShapeMismatchError{
				CameraID: rec.CameraID,
				WantH:    first.Height, WantW: first.Width,
				GotH: rec.Height, GotW: rec.Width,
			}
		}
		m, err := DecodeMatrix(rec.Intensity, rec.Height, rec.Width)
		if err != nil {
			return nil, fmt.Errorf("minute %s: %w", rec.MinuteStart.Format(time.RFC3339), err)
		}
		for j, v := range m {
			sum[j] += v
		}
	}

	total := 0.0
	peak := 0.0
	for _, v := range sum {
		total += float64(v)
		if float64(v) > peak {
			peak = float64(v)
		}
	}

	return &AggregateResult{
		CameraID:       first.CameraID,
		Height:         first.Height,
		Width:          first.Width,
		Matrix:         sum,
		Minutes:        len(records),
		TotalIntensity: total,
		PeakIntensity:  peak,
		AvgIntensity:   total / float64(len(records)),
	}, nil
}

// RenderAggregate aggregates the records and rasterises the result as a
// jet-colormapped JPEG. Deterministic given its inputs and the quality
// option.
func RenderAggregate(records []MinuteRecord, opts RenderOptions) (*RenderResult, error) {
	agg, err := Aggregate(records)
	if err != nil {
		return nil, err
	}

	img, err := Rasterize(agg)
	if err != nil {
		return nil, err
	}

	quality := opts.Quality
	if quality <= 0 {
		quality = DefaultQuality
	}
	if quality > 100 {
		quality = 100
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}

	return &RenderResult{Image: buf.Bytes(), Aggregate: *agg}, nil
}

// Rasterize normalizes an aggregate matrix to [0, 1] and maps it through the
// jet transfer function into an RGBA raster. An all-zero aggregate clamps the
// normalization denominator to 1 and renders the base color rather than
// dividing by zero.
func Rasterize(agg *AggregateResult) (*image.RGBA, error) {
	if len(agg.Matrix) != agg.Height*agg.Width {
		return nil, &CorruptDataError{Reason: "aggregate matrix length", Got: len(agg.Matrix), Want: agg.Height * agg.Width}
	}

	denom := agg.PeakIntensity
	if denom == 0 {
		denom = 1
	}

	img := image.NewRGBA(image.Rect(0, 0, agg.Width, agg.Height))
	for y := 0; y < agg.Height; y++ {
		for x := 0; x < agg.Width; x++ {
			v := float64(agg.Matrix[y*agg.Width+x]) / denom
			img.SetRGBA(x, y, JetColor(v))
		}
	}
	return img, nil
}
