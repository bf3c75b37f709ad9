package rimage

import (
	"github.com/nfnt/resize"
)

// DefaultMipmapMinSize is the side below which Mipmaps stops halving.
const DefaultMipmapMinSize = 32

// Mipmaps halves img repeatedly and returns every level after the original. It stops once either
// side of the last level is at most minSize.
func Mipmaps(img *Image, minSize int) []*Image {
	if minSize <= 0 {
		minSize = DefaultMipmapMinSize
	}
	var levels []*Image
	cur := img
	for cur.width > minSize && cur.height > minSize {
		w, h := cur.width/2, cur.height/2
		if w == 0 || h == 0 {
			break
		}
		half := resize.Resize(uint(w), uint(h), cur.ToStdImage(), resize.Bilinear)
		cur = NewImageFromStdImage(half, img.channels == 1)
		levels = append(levels, cur)
	}
	return levels
}
