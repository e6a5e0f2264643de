package motion

import (
	"testing"
)

func flatFrame(w, h int, value uint8) Frame {
	pix := make([]uint8, w*h)
	for i := range pix {
		pix[i] = value
	}
	return Frame{Width: w, Height: h, Pix: pix}
}

func TestNewDetectorValidation(t *testing.T) {
	cases := []struct {
		name   string
		w, h   int
		params DetectorParams
	}{
		{"zero downscale", 640, 480, DetectorParams{DownscaleFactor: 0, BackgroundUpdateFraction: 0.05}},
		{"downscale above one", 640, 480, DetectorParams{DownscaleFactor: 1.5, BackgroundUpdateFraction: 0.05}},
		{"zero alpha", 640, 480, DetectorParams{DownscaleFactor: 0.25, BackgroundUpdateFraction: 0}},
		{"bad resolution", 0, 480, DefaultParams()},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewDetector(tc.w, tc.h, tc.params); err == nil {
				t.Errorf("NewDetector(%d, %d, %+v) succeeded, want error", tc.w, tc.h, tc.params)
			}
		})
	}
}

func TestWorkingSizeAppliesDownscale(t *testing.T) {
	d, err := NewDetector(1280, 720, DetectorParams{
		DownscaleFactor:          0.25,
		BackgroundUpdateFraction: 0.05,
		DeltaThreshold:           16,
	})
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}
	w, h := d.WorkingSize()
	if w != 320 || h != 180 {
		t.Errorf("WorkingSize() = %dx%d, want 320x180", w, h)
	}
}

func TestFirstFrameEmitsZeros(t *testing.T) {
	d, err := NewDetector(8, 8, DetectorParams{
		DownscaleFactor:          1.0,
		BackgroundUpdateFraction: 0.1,
		DeltaThreshold:           16,
	})
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}

	out, err := d.Apply(flatFrame(8, 8, 200))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	for i, v := range out {
		if v != 0 {
			t.Fatalf("first frame pixel %d = %g, want 0 (bootstrap must not read as motion)", i, v)
		}
	}
}

func TestStaticSceneStaysQuiet(t *testing.T) {
	d, _ := NewDetector(8, 8, DetectorParams{
		DownscaleFactor:          1.0,
		BackgroundUpdateFraction: 0.1,
		DeltaThreshold:           16,
	})

	d.Apply(flatFrame(8, 8, 100))
	for i := 0; i < 10; i++ {
		out, err := d.Apply(flatFrame(8, 8, 100))
		if err != nil {
			t.Fatalf("Apply: %v", err)
		}
		for _, v := range out {
			if v != 0 {
				t.Fatalf("static scene produced motion %g on frame %d", v, i)
			}
		}
	}
}

func TestChangedRegionRegistersMotion(t *testing.T) {
	d, _ := NewDetector(8, 8, DetectorParams{
		DownscaleFactor:          1.0,
		BackgroundUpdateFraction: 0.05,
		DeltaThreshold:           16,
	})

	d.Apply(flatFrame(8, 8, 50))

	// Brighten the top-left quadrant well past the threshold.
	f := flatFrame(8, 8, 50)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			f.Pix[y*8+x] = 250
		}
	}
	out, err := d.Apply(f)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			v := out[y*8+x]
			inRegion := y < 4 && x < 4
			if inRegion && v <= 0 {
				t.Errorf("pixel (%d,%d) = %g, want > 0", x, y, v)
			}
			if !inRegion && v != 0 {
				t.Errorf("pixel (%d,%d) = %g, want 0", x, y, v)
			}
		}
	}
}

func TestSubThresholdNoiseIgnored(t *testing.T) {
	d, _ := NewDetector(4, 4, DetectorParams{
		DownscaleFactor:          1.0,
		BackgroundUpdateFraction: 0.05,
		DeltaThreshold:           16,
	})
	d.Apply(flatFrame(4, 4, 100))

	out, err := d.Apply(flatFrame(4, 4, 110)) // +10 < threshold 16
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	for _, v := range out {
		if v != 0 {
			t.Fatalf("sub-threshold change produced motion %g", v)
		}
	}
}

func TestBackgroundAdaptsToNewScene(t *testing.T) {
	d, _ := NewDetector(4, 4, DetectorParams{
		DownscaleFactor:          1.0,
		BackgroundUpdateFraction: 0.5, // fast adaptation for the test
		DeltaThreshold:           16,
	})
	d.Apply(flatFrame(4, 4, 0))

	// A persistent bright scene converges into the background and stops
	// registering as motion.
	var last []float32
	for i := 0; i < 12; i++ {
		last, _ = d.Apply(flatFrame(4, 4, 200))
	}
	for _, v := range last {
		if v != 0 {
			t.Fatalf("background failed to absorb persistent scene change, residual %g", v)
		}
	}
}

func TestMismatchedResolutionRejected(t *testing.T) {
	d, _ := NewDetector(8, 8, DefaultParams())
	if _, err := d.Apply(flatFrame(4, 4, 0)); err == nil {
		t.Fatal("Apply with wrong resolution succeeded, want error")
	}
}

func TestShortBufferRejected(t *testing.T) {
	d, _ := NewDetector(8, 8, DefaultParams())
	f := Frame{Width: 8, Height: 8, Pix: make([]uint8, 10)}
	if _, err := d.Apply(f); err == nil {
		t.Fatal("Apply with short buffer succeeded, want error")
	}
}
