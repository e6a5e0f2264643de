// Package motion implements per-frame motion detection against a rolling
// background model.
//
// A Detector is scoped to one processing session (one camera, one segment)
// and owned by a single goroutine. The background estimate is a per-pixel
// exponentially weighted average of prior frames; each frame's motion
// magnitude is its thresholded absolute difference from that estimate.
package motion

import (
	"fmt"
)

// DetectorParams configures a detection session.
type DetectorParams struct {
	// DownscaleFactor is the ratio applied to the source resolution before
	// differencing, in (0, 1]. Downscaling happens before the diff so compute
	// cost is bounded by the working resolution.
	DownscaleFactor float64

	// BackgroundUpdateFraction is the alpha of the exponentially weighted
	// background average, e.g. 0.05.
	BackgroundUpdateFraction float32

	// DeltaThreshold is the minimum absolute pixel difference (0-255) for a
	// pixel to register as motion. Differences below it are noise.
	DeltaThreshold uint8
}

// DefaultParams mirror the tuning the system ships with.
func DefaultParams() DetectorParams {
	return DetectorParams{
		DownscaleFactor:          0.25,
		BackgroundUpdateFraction: 0.05,
		DeltaThreshold:           16,
	}
}

func (p DetectorParams) validate() error {
	if p.DownscaleFactor <= 0 || p.DownscaleFactor > 1 {
		return fmt.Errorf("downscale factor %g outside (0, 1]", p.DownscaleFactor)
	}
	if p.BackgroundUpdateFraction <= 0 || p.BackgroundUpdateFraction > 1 {
		return fmt.Errorf("background update fraction %g outside (0, 1]", p.BackgroundUpdateFraction)
	}
	return nil
}

// Detector maintains the rolling background model for one processing session.
// It is not safe for concurrent use; confinement to one goroutine per camera
// is the caller's responsibility.
type Detector struct {
	params DetectorParams

	srcWidth  int
	srcHeight int
	width     int // working resolution
	height    int

	background []float32
	scratch    []uint8
	primed     bool
}

// NewDetector creates a detector for frames of the given source resolution.
func NewDetector(srcWidth, srcHeight int, params DetectorParams) (*Detector, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	if srcWidth <= 0 || srcHeight <= 0 {
		return nil, fmt.Errorf("invalid source resolution %dx%d", srcWidth, srcHeight)
	}

	w := int(float64(srcWidth) * params.DownscaleFactor)
	h := int(float64(srcHeight) * params.DownscaleFactor)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	return &Detector{
		params:     params,
		srcWidth:   srcWidth,
		srcHeight:  srcHeight,
		width:      w,
		height:     h,
		background: make([]float32, w*h),
		scratch:    make([]uint8, w*h),
	}, nil
}

// WorkingSize returns the downscaled resolution motion matrices are produced
// at.
func (d *Detector) WorkingSize() (width, height int) {
	return d.width, d.height
}

// Apply consumes one frame and returns its motion-magnitude matrix at the
// working resolution, row-major, values in [0, 1]. The first frame of a
// session seeds the background model and yields an all-zero matrix so model
// bootstrap never reads as motion.
func (d *Detector) Apply(f Frame) ([]float32, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if f.Width != d.srcWidth || f.Height != d.srcHeight {
		return nil, fmt.Errorf("frame resolution %dx%d does not match session %dx%d",
			f.Width, f.Height, d.srcWidth, d.srcHeight)
	}

	downscale(f, d.width, d.height, d.scratch)

	out := make([]float32, d.width*d.height)
	if !d.primed {
		for i, px := range d.scratch {
			d.background[i] = float32(px)
		}
		d.primed = true
		return out, nil
	}

	alpha := d.params.BackgroundUpdateFraction
	thresh := float32(d.params.DeltaThreshold)
	for i, px := range d.scratch {
		obs := float32(px)
		diff := obs - d.background[i]
		if diff < 0 {
			diff = -diff
		}
		if diff >= thresh {
			out[i] = diff / 255.0
		}
		d.background[i] += alpha * (obs - d.background[i])
	}
	return out, nil
}
