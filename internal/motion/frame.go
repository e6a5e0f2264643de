package motion

import "fmt"

// Frame is a single decoded video frame in 8-bit grayscale, row-major.
type Frame struct {
	Width  int
	Height int
	Pix    []uint8 // len = Width*Height
}

// Validate checks that the pixel buffer matches the declared dimensions.
func (f Frame) Validate() error {
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("invalid frame dimensions %dx%d", f.Width, f.Height)
	}
	if len(f.Pix) != f.Width*f.Height {
		return fmt.Errorf("frame buffer length %d does not match %dx%d", len(f.Pix), f.Width, f.Height)
	}
	return nil
}

// downscale resamples the frame to dstW x dstH using nearest-neighbour
// sampling, writing into dst (len dstW*dstH). Nearest-neighbour is enough
// here: the result feeds a background difference, not a display surface.
func downscale(f Frame, dstW, dstH int, dst []uint8) {
	for y := 0; y < dstH; y++ {
		srcY := y * f.Height / dstH
		rowOff := srcY * f.Width
		dstOff := y * dstW
		for x := 0; x < dstW; x++ {
			srcX := x * f.Width / dstW
			dst[dstOff+x] = f.Pix[rowOff+srcX]
		}
	}
}
