// Package rimage holds the raster types of the stereo pipeline: 8-bit images with one or three
// channels and fixed point disparity maps.
package rimage

import (
	"image"
	"image/color"

	"github.com/pkg/errors"
)

// Image is an 8-bit raster with 1 (grey) or 3 (RGB) interleaved channels.
type Image struct {
	width, height int
	channels      int
	pix           []uint8
}

// NewImage returns a zeroed image.
func NewImage(width, height, channels int) *Image {
	if width < 0 || height < 0 {
		width, height = 0, 0
	}
	if channels != 3 {
		channels = 1
	}
	return &Image{
		width:    width,
		height:   height,
		channels: channels,
		pix:      make([]uint8, width*height*channels),
	}
}

// NewImageFromStdImage copies img into a new Image. When grey is set the result has one channel
// computed with the ITU-R BT.601 luma weights, otherwise it has three.
func NewImageFromStdImage(img image.Image, grey bool) *Image {
	bounds := img.Bounds()
	channels := 3
	if grey {
		channels = 1
	}
	out := NewImage(bounds.Dx(), bounds.Dy(), channels)

	if src, ok := img.(*Image); ok {
		if src.channels == channels {
			copy(out.pix, src.pix)
			return out
		}
		if grey {
			return src.Gray()
		}
	}

	for y := 0; y < out.height; y++ {
		for x := 0; x < out.width; x++ {
			c := color.NRGBAModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.NRGBA)
			idx := out.offset(x, y)
			if grey {
				out.pix[idx] = luma(c.R, c.G, c.B)
				continue
			}
			out.pix[idx] = c.R
			out.pix[idx+1] = c.G
			out.pix[idx+2] = c.B
		}
	}
	return out
}

// NewImageFromPix wraps pix without copying. len(pix) must be width*height*channels.
func NewImageFromPix(width, height, channels int, pix []uint8) (*Image, error) {
	if channels != 1 && channels != 3 {
		return nil, errors.Errorf("unsupported channel count %d", channels)
	}
	if len(pix) != width*height*channels {
		return nil, errors.Errorf("pixel buffer has %d bytes, expected %d", len(pix), width*height*channels)
	}
	return &Image{width: width, height: height, channels: channels, pix: pix}, nil
}

// luma is the BT.601 weighting with rounding.
func luma(r, g, b uint8) uint8 {
	return uint8((299*uint32(r) + 587*uint32(g) + 114*uint32(b) + 500) / 1000)
}

func (i *Image) offset(x, y int) int {
	return (y*i.width + x) * i.channels
}

// Width returns the horizontal size.
func (i *Image) Width() int {
	return i.width
}

// Height returns the vertical size.
func (i *Image) Height() int {
	return i.height
}

// Channels returns 1 or 3.
func (i *Image) Channels() int {
	return i.channels
}

// Empty is true for a nil image or one without pixels.
func (i *Image) Empty() bool {
	return i == nil || i.width == 0 || i.height == 0
}

// Size returns width and height as a point.
func (i *Image) Size() image.Point {
	return image.Pt(i.width, i.height)
}

// In checks whether (x, y) is inside the image.
func (i *Image) In(x, y int) bool {
	return x >= 0 && y >= 0 && x < i.width && y < i.height
}

// Pix exposes the interleaved pixel buffer.
func (i *Image) Pix() []uint8 {
	return i.pix
}

// Row returns the interleaved samples of row y.
func (i *Image) Row(y int) []uint8 {
	stride := i.width * i.channels
	return i.pix[y*stride : (y+1)*stride]
}

// GetXY returns channel c at (x, y).
func (i *Image) GetXY(x, y, c int) uint8 {
	return i.pix[i.offset(x, y)+c]
}

// SetXY sets channel c at (x, y).
func (i *Image) SetXY(x, y, c int, v uint8) {
	i.pix[i.offset(x, y)+c] = v
}

// Clone returns a deep copy.
func (i *Image) Clone() *Image {
	out := NewImage(i.width, i.height, i.channels)
	copy(out.pix, i.pix)
	return out
}

// Gray returns a single channel copy.
func (i *Image) Gray() *Image {
	if i.channels == 1 {
		return i.Clone()
	}
	out := NewImage(i.width, i.height, 1)
	for k := range out.pix {
		out.pix[k] = luma(i.pix[3*k], i.pix[3*k+1], i.pix[3*k+2])
	}
	return out
}

// ColorModel is part of image.Image.
func (i *Image) ColorModel() color.Model {
	if i.channels == 1 {
		return color.GrayModel
	}
	return color.NRGBAModel
}

// Bounds is part of image.Image.
func (i *Image) Bounds() image.Rectangle {
	return image.Rect(0, 0, i.width, i.height)
}

// At is part of image.Image.
func (i *Image) At(x, y int) color.Color {
	if !i.In(x, y) {
		return color.Gray{}
	}
	idx := i.offset(x, y)
	if i.channels == 1 {
		return color.Gray{Y: i.pix[idx]}
	}
	return color.NRGBA{R: i.pix[idx], G: i.pix[idx+1], B: i.pix[idx+2], A: 255}
}

// ToStdImage converts into the matching image/ type so encoders take their fast paths.
func (i *Image) ToStdImage() image.Image {
	if i.channels == 1 {
		g := image.NewGray(i.Bounds())
		copy(g.Pix, i.pix)
		return g
	}
	out := image.NewNRGBA(i.Bounds())
	for k := 0; k < i.width*i.height; k++ {
		out.Pix[4*k] = i.pix[3*k]
		out.Pix[4*k+1] = i.pix[3*k+1]
		out.Pix[4*k+2] = i.pix[3*k+2]
		out.Pix[4*k+3] = 255
	}
	return out
}

// SameShape reports whether both images have identical size and channel count.
func SameShape(a, b *Image) bool {
	return a.width == b.width && a.height == b.height && a.channels == b.channels
}
