package rimage

import (
	"image"

	"github.com/pkg/errors"
)

// Crop copies the pixels of rect, which must be a non-empty rectangle inside img.
func Crop(img *Image, rect image.Rectangle) (*Image, error) {
	if rect.Empty() || !rect.In(img.Bounds()) {
		return nil, errors.Errorf("crop %v is not inside image bounds %v", rect, img.Bounds())
	}
	out := NewImage(rect.Dx(), rect.Dy(), img.channels)
	rowLen := rect.Dx() * img.channels
	for y := 0; y < rect.Dy(); y++ {
		src := img.offset(rect.Min.X, rect.Min.Y+y)
		copy(out.pix[y*rowLen:(y+1)*rowLen], img.pix[src:src+rowLen])
	}
	return out, nil
}

// HStack places the images side by side. Heights may differ and grey images are expanded to RGB
// when mixed with colour ones.
func HStack(imgs ...*Image) *Image {
	width, height := 0, 0
	for _, img := range imgs {
		width += img.width
		height = max(height, img.height)
	}
	out := NewImage(width, height, stackChannels(imgs))
	offsetX := 0
	for _, img := range imgs {
		paste(out, img, image.Pt(offsetX, 0))
		offsetX += img.width
	}
	return out
}

// VStack places the images on top of each other, left aligned.
func VStack(imgs ...*Image) *Image {
	width, height := 0, 0
	for _, img := range imgs {
		width = max(width, img.width)
		height += img.height
	}
	out := NewImage(width, height, stackChannels(imgs))
	offsetY := 0
	for _, img := range imgs {
		paste(out, img, image.Pt(0, offsetY))
		offsetY += img.height
	}
	return out
}

func stackChannels(imgs []*Image) int {
	for _, img := range imgs {
		if img.channels == 3 {
			return 3
		}
	}
	return 1
}

// paste copies img into dst at offset, repeating grey samples into every channel of dst.
func paste(dst, img *Image, offset image.Point) {
	for y := 0; y < img.height; y++ {
		for x := 0; x < img.width; x++ {
			for c := 0; c < dst.channels; c++ {
				src := c
				if img.channels == 1 {
					src = 0
				}
				dst.SetXY(offset.X+x, offset.Y+y, c, img.GetXY(x, y, src))
			}
		}
	}
}
