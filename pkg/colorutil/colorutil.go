// Package colorutil converts between image colours and model samples.
package colorutil

import (
	"image/color"
)

// Mask colours, from certain foreground down to certain background.
var (
	White     = color.Gray{Y: 255}
	LightGray = color.Gray{Y: 170}
	DarkGray  = color.Gray{Y: 85}
	Black     = color.Gray{Y: 0}
)

// BGR returns the 8-bit blue, green and red channels of c as float64, in
// OpenCV channel order. Alpha is ignored.
func BGR(c color.Color) [3]float64 {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return [3]float64{float64(n.B), float64(n.G), float64(n.R)}
}

// FromBGR converts a BGR triple back to an opaque colour, clamping each
// channel to 0-255.
func FromBGR(bgr [3]float64) color.RGBA {
	return color.RGBA{R: clamp8(bgr[2]), G: clamp8(bgr[1]), B: clamp8(bgr[0]), A: 255}
}

func clamp8(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v + 0.5)
	}
}
