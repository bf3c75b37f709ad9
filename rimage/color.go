package rimage

import (
	colorful "github.com/lucasb-eyer/go-colorful"
)

// PseudoColor maps a grey image to a blue-green-red ramp: blue falls as the value grows, red rises
// with it and green peaks in the middle of the range.
func PseudoColor(grey *Image) *Image {
	src := grey
	if grey.channels != 1 {
		src = grey.Gray()
	}
	out := NewImage(src.width, src.height, 3)
	var lut [256][3]uint8
	for v := 0; v < 256; v++ {
		r, g, b := rampColor(uint8(v)).RGB255()
		lut[v] = [3]uint8{r, g, b}
	}
	for k, v := range src.pix {
		copy(out.pix[3*k:3*k+3], lut[v][:])
	}
	return out
}

func rampColor(v uint8) colorful.Color {
	g := int(v)
	green := 2 * g
	if g >= 128 {
		green = 2 * (255 - g)
	}
	if green > 255 {
		green = 255
	}
	return colorful.Color{
		R: float64(g) / 255,
		G: float64(green) / 255,
		B: float64(255-g) / 255,
	}.Clamped()
}
