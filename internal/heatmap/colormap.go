package heatmap

import "image/color"

// JetColor maps a normalized intensity in [0, 1] through the fixed
// piecewise-linear "jet" transfer function: dark blue at zero rising through
// cyan, green and yellow to red at full intensity. Five linear segments over
// the breakpoints [0, .125, .375, .625, .875, 1]. Inputs outside [0, 1] are
// clamped.
func JetColor(v float64) color.RGBA {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}

	var r, g, b float64
	switch {
	case v < 0.125:
		// dark blue -> blue
		b = 0.5 + 4*v
	case v < 0.375:
		// blue -> cyan
		g = 4 * (v - 0.125)
		b = 1
	case v < 0.625:
		// cyan -> yellow
		r = 4 * (v - 0.375)
		g = 1
		b = 1 - 4*(v-0.375)
	case v < 0.875:
		// yellow -> red
		r = 1
		g = 1 - 4*(v-0.625)
	default:
		// red -> dark red
		r = 1 - 2*(v-0.875)
		if r < 0.5 {
			r = 0.5
		}
	}

	return color.RGBA{
		R: uint8(r*255 + 0.5),
		G: uint8(g*255 + 0.5),
		B: uint8(b*255 + 0.5),
		A: 255,
	}
}
